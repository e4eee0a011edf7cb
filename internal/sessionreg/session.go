// Package sessionreg implements the session-key-keyed cache of live agent
// sessions: dedup of concurrent initialization, cwd-change invalidation,
// and the single-slot notification sink each running turn installs.
package sessionreg

import (
	"sync"

	"github.com/openclaw/acpadapter/internal/launch"
	"github.com/openclaw/acpadapter/internal/transport"
)

// UpdateSink receives one mapped event at a time. At most one sink may be
// active per Session: at most one turn per session holds the
// notification sink.
type UpdateSink func(kind, text, stream, statusText string)

// Session is one live child process bound to a session key: the Go
// realization of a live agent session.
type Session struct {
	Key       string
	BackendID string // generated once per session (see acpadapter domain stack: uuid)
	Conn      *transport.Conn
	Child     *launch.Child
	SessionID string // agent-assigned; "" until session/new completes
	CWD       string

	sinkMu sync.Mutex
	sink   UpdateSink

	exitMu  sync.Mutex
	exited  chan struct{}
	exitErr error
}

// NewSession constructs a Session with its exit-tracking channel armed.
func NewSession(key, backendID string, conn *transport.Conn, child *launch.Child, cwd string) *Session {
	return &Session{
		Key:       key,
		BackendID: backendID,
		Conn:      conn,
		Child:     child,
		CWD:       cwd,
		exited:    make(chan struct{}),
	}
}

// Exited returns a channel closed once the child process has fully exited
// (after ReadLoop and cmd.Wait both complete).
func (s *Session) Exited() <-chan struct{} {
	return s.exited
}

// MarkExited records the process's terminal error and closes Exited().
// Safe to call at most once; subsequent calls are no-ops.
func (s *Session) MarkExited(err error) {
	s.exitMu.Lock()
	defer s.exitMu.Unlock()
	select {
	case <-s.exited:
		return
	default:
	}
	s.exitErr = err
	close(s.exited)
}

// ExitErr returns the terminal error recorded by MarkExited, or nil if the
// process hasn't exited yet or exited cleanly.
func (s *Session) ExitErr() error {
	s.exitMu.Lock()
	defer s.exitMu.Unlock()
	return s.exitErr
}

// SetSink installs the notification sink for the currently running turn.
// Replaces any previous sink (the engine is responsible for ensuring only
// one turn runs per session at a time).
func (s *Session) SetSink(sink UpdateSink) {
	s.sinkMu.Lock()
	s.sink = sink
	s.sinkMu.Unlock()
}

// ClearSink removes the sink, e.g. when a turn completes.
func (s *Session) ClearSink() {
	s.sinkMu.Lock()
	s.sink = nil
	s.sinkMu.Unlock()
}

// Deliver forwards one mapped event to the active sink, if any. Safe to
// call from the Conn's notification-dispatch path; a nil sink silently
// drops the event (no turn is listening).
func (s *Session) Deliver(kind, text, stream, statusText string) {
	s.sinkMu.Lock()
	sink := s.sink
	s.sinkMu.Unlock()
	if sink != nil {
		sink(kind, text, stream, statusText)
	}
}

// RuntimeSessionName returns the agent-assigned session id, falling back
// to the session key if the agent's session/new response omitted one —
// defense against a non-compliant agent, but matches observed behavior.
func (s *Session) RuntimeSessionName() string {
	if s.SessionID != "" {
		return s.SessionID
	}
	return s.Key
}
