//go:build ignore

// Command mock-agent simulates an ACP agent for integration tests. It
// implements the subset of the JSON-RPC 2.0 ACP protocol this adapter
// drives: initialize, session/new, session/prompt, session/set_mode,
// session/cancel.
//
// ACP_MOCK_MODE selects a failure/behavior mode:
//
//	(empty)             — normal handshake, streams a text+tool_call turn
//	init-error          — return a JSON-RPC error to initialize
//	handshake-crash     — exit after initialize, before session/new
//	echo-cwd            — embed the received cwd in the session id
//	set-mode-fail       — return an error for session/set_mode
//	slow-prompt         — delay the prompt response by 2s
//	hang                — never respond to session/prompt (cancellation test)
//	prompt-then-exit    — respond to the prompt, then exit immediately
package main

import (
	"bufio"
	"encoding/json"
	"os"
	"time"
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

var (
	enc     = json.NewEncoder(os.Stdout)
	scanner = bufio.NewScanner(os.Stdin)
	mode    = os.Getenv("ACP_MOCK_MODE")
)

func main() {
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		var req rpcRequest
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			continue
		}
		handleRequest(&req)
	}
}

func handleRequest(req *rpcRequest) {
	switch req.Method {
	case "initialize":
		handleInitialize(req)
	case "session/new":
		handleSessionNew(req)
	case "session/prompt":
		handleSessionPrompt(req)
	case "session/set_mode":
		handleSetMode(req)
	case "session/cancel":
		respond(req.ID, nil)
	}
}

func handleInitialize(req *rpcRequest) {
	if mode == "init-error" {
		respondError(req.ID, -32600, "mock init error")
		return
	}
	respond(req.ID, map[string]any{
		"protocolVersion": "0.1",
		"agentInfo":       map[string]string{"name": "mock-agent", "version": "0.1.0"},
	})
	if mode == "handshake-crash" {
		os.Exit(1)
	}
}

func handleSessionNew(req *rpcRequest) {
	var params struct {
		CWD string `json:"cwd"`
	}
	_ = json.Unmarshal(req.Params, &params)

	sessionID := "mock-session-001"
	if mode == "echo-cwd" {
		sessionID = "cwd-" + sanitizeCWD(params.CWD)
	}
	respond(req.ID, map[string]any{"sessionId": sessionID})
}

func handleSessionPrompt(req *rpcRequest) {
	if mode == "hang" {
		return // never responds; exercises mid-turn cancellation
	}
	if mode == "slow-prompt" {
		time.Sleep(2 * time.Second)
	}

	var params struct {
		SessionID string `json:"sessionId"`
	}
	_ = json.Unmarshal(req.Params, &params)
	sid := params.SessionID

	notifyUpdate(sid, map[string]any{
		"sessionUpdate": "agent_message_chunk",
		"content":       map[string]string{"type": "text", "text": "Hello"},
	})
	notifyUpdate(sid, map[string]any{
		"sessionUpdate": "agent_message_chunk",
		"content":       map[string]string{"type": "text", "text": " world"},
	})
	notifyUpdate(sid, map[string]any{
		"sessionUpdate": "tool_call",
		"toolCallId":    "call_001",
		"title":         "read_file",
		"status":        "pending",
	})
	notifyUpdate(sid, map[string]any{
		"sessionUpdate": "tool_call_update",
		"toolCallId":    "call_001",
		"status":        "completed",
	})

	respond(req.ID, map[string]any{"stopReason": "end_turn"})

	if mode == "prompt-then-exit" {
		os.Exit(0)
	}
}

func handleSetMode(req *rpcRequest) {
	if mode == "set-mode-fail" {
		respondError(req.ID, -32000, "mock set_mode error")
		return
	}
	respond(req.ID, nil)
}

func respond(id *int64, result any) {
	if result == nil {
		_ = enc.Encode(rpcResponse{JSONRPC: "2.0", ID: id, Result: json.RawMessage("null")})
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	_ = enc.Encode(rpcResponse{JSONRPC: "2.0", ID: id, Result: data})
}

func respondError(id *int64, code int, message string) {
	_ = enc.Encode(rpcResponse{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: message}})
}

func notifyUpdate(sessionID string, update any) {
	data, err := json.Marshal(update)
	if err != nil {
		return
	}
	params := map[string]any{"sessionId": sessionID, "update": json.RawMessage(data)}
	paramsData, err := json.Marshal(params)
	if err != nil {
		return
	}
	_ = enc.Encode(map[string]any{
		"jsonrpc": "2.0",
		"method":  "session/update",
		"params":  json.RawMessage(paramsData),
	})
}

// sanitizeCWD makes a cwd path safe for use inside a session id.
func sanitizeCWD(cwd string) string {
	safe := make([]byte, 0, len(cwd))
	for _, b := range []byte(cwd) {
		if (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9') || b == '-' || b == '_' {
			safe = append(safe, b)
		}
	}
	if len(safe) > 200 {
		safe = safe[:200]
	}
	if len(safe) == 0 {
		return "empty"
	}
	return string(safe)
}
