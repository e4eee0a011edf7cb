// Package transport implements the JSON-RPC 2.0 wire layer of the Agent
// Client Protocol: framing, request id allocation, response correlation,
// per-method timeouts, and decline-by-default handling of agent-initiated
// requests.
package transport

import "encoding/json"

// JSON-RPC 2.0 method names used by the Agent Client Protocol.
const (
	MethodInitialize     = "initialize"
	MethodSessionNew     = "session/new"
	MethodSessionPrompt  = "session/prompt"
	MethodSessionUpdate  = "session/update"
	MethodSessionCancel  = "session/cancel"
	MethodSessionSetMode = "session/set_mode"
)

// ControlMethods are the RPC methods subject to the fixed 30-second timeout.
// session/prompt is deliberately absent: it is the streaming operation and
// has no timeout.
var ControlMethods = map[string]bool{
	MethodInitialize:     true,
	MethodSessionNew:     true,
	MethodSessionCancel:  true,
	MethodSessionSetMode: true,
}

// ClientName and ClientVersion identify this adapter during initialize,
// matching the host gateway's own name.
const (
	ClientName      = "openclaw"
	ClientVersion   = "1.0.0"
	ProtocolVersion = "0.1"
)

// MethodNotSupportedCode is the JSON-RPC error code returned for any
// agent-initiated request: this adapter never implements the reverse
// direction beyond declining politely.
const MethodNotSupportedCode = -32601

// --- Outbound request params ---

// ClientInfo identifies this client in the initialize handshake.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeParams is sent as the initialize request.
type InitializeParams struct {
	ProtocolVersion string     `json:"protocolVersion"`
	ClientInfo      ClientInfo `json:"clientInfo"`
}

// MCPServer describes an MCP server attached to a session (unused; kept
// as an always-empty slice per the wire format session/new expects).
type MCPServer struct {
	Name    string   `json:"name"`
	Command string   `json:"command"`
	Args    []string `json:"args"`
}

// NewSessionParams is sent as the session/new request.
type NewSessionParams struct {
	CWD        string      `json:"cwd"`
	MCPServers []MCPServer `json:"mcpServers"`
}

// NewSessionResult is the agent's response to session/new.
type NewSessionResult struct {
	SessionID string `json:"sessionId"`
}

// ContentBlock is a single prompt content element (text-only in this adapter).
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// PromptParams is sent as the session/prompt request.
type PromptParams struct {
	SessionID string         `json:"sessionId"`
	Prompt    []ContentBlock `json:"prompt"`
}

// PromptResult is the agent's response once a prompt turn completes.
type PromptResult struct {
	StopReason string `json:"stopReason,omitempty"`
}

// CancelParams is sent as the session/cancel request.
type CancelParams struct {
	SessionID string `json:"sessionId"`
}

// SetModeParams is sent as the session/set_mode request.
type SetModeParams struct {
	SessionID string `json:"sessionId"`
	ModeID    string `json:"modeId"`
}

// --- Inbound notification envelope ---

// SessionUpdateParams is the outer envelope of a session/update notification.
type SessionUpdateParams struct {
	SessionID string          `json:"sessionId"`
	Update    json.RawMessage `json:"update"`
}

// UpdateHeader extracts only the discriminator from an inner update payload.
type UpdateHeader struct {
	SessionUpdate string `json:"sessionUpdate"`
}
