package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ControlTimeout is the fixed deadline applied to control methods
// (initialize, session/new, session/cancel, session/set_mode). session/prompt
// carries no timeout.
const ControlTimeout = 30 * time.Second

// maxLineBytes bounds a single newline-delimited JSON message.
const maxLineBytes = 8 << 20 // 8 MiB

// pendingCall is the one-shot completion slot for an in-flight request.
type pendingCall struct {
	resultCh chan rpcResult
}

type rpcResult struct {
	result json.RawMessage
	err    error
}

// rpcRequest is an outbound JSON-RPC 2.0 request or notification.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      *int64 `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// rpcMessage is a generic inbound JSON-RPC 2.0 message.
type rpcMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RPCError is returned from Call when the agent replies with a JSON-RPC
// error object.
type RPCError struct {
	Method  string
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("acp: %s: rpc error %d: %s", e.Method, e.Code, e.Message)
}

// TimeoutError is returned when a control method exceeds ControlTimeout.
type TimeoutError struct {
	Method string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("acp: %s: timed out after %s", e.Method, ControlTimeout)
}

// ErrClosed is returned (wrapped) by Call once the connection's read loop
// has exited, and is the error every pending call is rejected with. Notify
// does not check for a closed connection.
var ErrClosed = fmt.Errorf("acp: agent process exited")

// Conn is a bidirectional JSON-RPC 2.0 connection over newline-delimited
// JSON, one per agent subprocess. Conn allocates monotonic request ids,
// correlates responses, enforces the control-method timeout, and declines
// any agent-initiated request the host hasn't registered a handler for.
type Conn struct {
	log *zap.Logger

	wmu sync.Mutex // serializes writes to w
	enc *json.Encoder

	nextID atomic.Int64

	mu      sync.Mutex
	pending map[int64]*pendingCall
	closed  bool

	notifyHandlers map[string]func(json.RawMessage)
	methodHandlers map[string]func(json.RawMessage) (any, error)

	scanner *bufio.Scanner
	onWarn  func(line string)

	done chan struct{}
}

// New creates a Conn reading from r and writing to w. Call ReadLoop in a
// goroutine to begin dispatching inbound messages; register notification
// and method handlers before doing so.
func New(r io.Reader, w io.Writer, log *zap.Logger) *Conn {
	if log == nil {
		log = zap.NewNop()
	}
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 4096), maxLineBytes)
	return &Conn{
		log:            log,
		enc:            json.NewEncoder(w),
		pending:        make(map[int64]*pendingCall),
		notifyHandlers: make(map[string]func(json.RawMessage)),
		methodHandlers: make(map[string]func(json.RawMessage) (any, error)),
		scanner:        s,
		done:           make(chan struct{}),
	}
}

// OnNotification registers a handler for an inbound notification method.
// Must be called before ReadLoop starts.
func (c *Conn) OnNotification(method string, h func(json.RawMessage)) {
	c.notifyHandlers[method] = h
}

// OnMethod registers a handler for an inbound agent-initiated request.
// Any method without a registered handler is declined with -32601.
// Must be called before ReadLoop starts.
func (c *Conn) OnMethod(method string, h func(json.RawMessage) (any, error)) {
	c.methodHandlers[method] = h
}

// Call sends a JSON-RPC request and blocks for its response. Control
// methods (per ControlMethods) are bounded by ControlTimeout regardless of
// ctx; session/prompt is bounded only by ctx.
func (c *Conn) Call(ctx context.Context, method string, params, result any) error {
	id := c.nextID.Add(1)
	call := &pendingCall{resultCh: make(chan rpcResult, 1)}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("acp: %s: %w", method, ErrClosed)
	}
	c.pending[id] = call
	c.mu.Unlock()

	if ControlMethods[method] {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ControlTimeout)
		defer cancel()
	}

	if err := c.send(&rpcRequest{JSONRPC: "2.0", ID: &id, Method: method, Params: params}); err != nil {
		c.removePending(id)
		return fmt.Errorf("acp: %s: write: %w", method, err)
	}

	select {
	case res := <-call.resultCh:
		return c.finishCall(method, res, result)
	case <-ctx.Done():
		c.removePending(id)
		// A response may have landed between ctx firing and the lock above.
		select {
		case res := <-call.resultCh:
			return c.finishCall(method, res, result)
		default:
		}
		if ControlMethods[method] && ctx.Err() == context.DeadlineExceeded {
			return &TimeoutError{Method: method}
		}
		return ctx.Err()
	}
}

func (c *Conn) finishCall(method string, res rpcResult, result any) error {
	if res.err != nil {
		return res.err
	}
	if result != nil && len(res.result) > 0 {
		if err := json.Unmarshal(res.result, result); err != nil {
			return fmt.Errorf("acp: %s: unmarshal result: %w", method, err)
		}
	}
	return nil
}

func (c *Conn) removePending(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// Notify sends a JSON-RPC notification (no response expected).
func (c *Conn) Notify(method string, params any) error {
	return c.send(&rpcRequest{JSONRPC: "2.0", Method: method, Params: params})
}

func (c *Conn) send(v any) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.enc.Encode(v)
}

// ReadLoop reads and dispatches inbound messages until the reader is
// exhausted or errors. Must be called exactly once, from its own goroutine.
// On return, every still-pending call is rejected with ErrClosed.
func (c *Conn) ReadLoop() {
	defer c.closeOut()

	for c.scanner.Scan() {
		line := c.scanner.Bytes()
		if len(line) == 0 || line[0] != '{' {
			continue // blank line or agent prelude noise — tolerated, not logged
		}
		var msg rpcMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			continue // malformed line never fails the turn
		}
		c.dispatch(&msg)
	}
}

// Done returns a channel closed once ReadLoop has exited.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// WarnStderr routes a line read from the child's stderr to the warn log.
// Stderr is never interpreted as protocol traffic.
func (c *Conn) WarnStderr(line string) {
	c.log.Warn("agent stderr", zap.String("line", line))
}

func (c *Conn) closeOut() {
	c.mu.Lock()
	c.closed = true
	pending := c.pending
	c.pending = make(map[int64]*pendingCall)
	c.mu.Unlock()

	for _, call := range pending {
		call.resultCh <- rpcResult{err: ErrClosed}
	}
	close(c.done)
}

func (c *Conn) dispatch(msg *rpcMessage) {
	switch {
	case msg.ID != nil && msg.Method != "":
		c.handleAgentRequest(msg)
	case msg.ID != nil:
		c.handleResponse(msg)
	case msg.Method != "":
		c.handleNotification(msg)
	}
}

func (c *Conn) handleResponse(msg *rpcMessage) {
	c.mu.Lock()
	call, ok := c.pending[*msg.ID]
	if ok {
		delete(c.pending, *msg.ID)
	}
	c.mu.Unlock()
	if !ok {
		return // unknown id — ignored
	}
	if msg.Error != nil {
		call.resultCh <- rpcResult{err: &RPCError{Code: msg.Error.Code, Message: msg.Error.Message}}
		return
	}
	call.resultCh <- rpcResult{result: msg.Result}
}

func (c *Conn) handleNotification(msg *rpcMessage) {
	h, ok := c.notifyHandlers[msg.Method]
	if !ok {
		return
	}
	h(msg.Params)
}

// handleAgentRequest dispatches an agent-initiated request. Registered
// handlers run in a dedicated goroutine so they never block ReadLoop;
// unregistered methods are declined immediately and synchronously.
func (c *Conn) handleAgentRequest(msg *rpcMessage) {
	h, ok := c.methodHandlers[msg.Method]
	if !ok {
		c.sendError(*msg.ID, MethodNotSupportedCode, "Method not supported by this client")
		return
	}
	id := *msg.ID
	params := msg.Params
	go func() {
		result, err := h(params)
		if err != nil {
			c.sendError(id, MethodNotSupportedCode, err.Error())
			return
		}
		c.sendResult(id, result)
	}()
}

func (c *Conn) sendResult(id int64, result any) {
	data, err := json.Marshal(result)
	if err != nil {
		c.sendError(id, MethodNotSupportedCode, "marshal result: "+err.Error())
		return
	}
	_ = c.send(&struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      int64           `json:"id"`
		Result  json.RawMessage `json:"result"`
	}{"2.0", id, data})
}

func (c *Conn) sendError(id int64, code int, message string) {
	_ = c.send(&struct {
		JSONRPC string   `json:"jsonrpc"`
		ID      int64    `json:"id"`
		Error   rpcError `json:"error"`
	}{"2.0", id, rpcError{Code: code, Message: message}})
}
