package acpadapter

import "errors"

// Error codes surfaced to the host gateway. These are string codes, not
// Go sentinel errors, because they cross the plugin boundary into the
// host's own error-reporting shape (Doctor's {ok, code, message}).
const (
	// CodeBackendUnavailable is returned by Doctor when probeAvailability fails.
	CodeBackendUnavailable = "ACP_BACKEND_UNAVAILABLE"
	// CodeTurnFailed is the synchronous precondition failure RunTurn raises
	// when invoked against an unknown session.
	CodeTurnFailed = "ACP_TURN_FAILED"
)

// ErrUnknownSession is wrapped into the error RunTurn returns when its
// Handle no longer resolves to a live session.
var ErrUnknownSession = errors.New("acpadapter: unknown session")

// TurnError wraps ErrUnknownSession (or other synchronous preconditions)
// with the ACP_TURN_FAILED code RunTurn raises on an unknown session.
// This is a synchronous return from RunTurn, never an Event.
type TurnError struct {
	Code string
	Err  error
}

func (e *TurnError) Error() string { return e.Code + ": " + e.Err.Error() }
func (e *TurnError) Unwrap() error { return e.Err }
