package acpadapter

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openclaw/acpadapter/internal/abort"
	"github.com/openclaw/acpadapter/internal/errfmt"
	"github.com/openclaw/acpadapter/internal/sessionreg"
	"github.com/openclaw/acpadapter/internal/stopreason"
	"github.com/openclaw/acpadapter/internal/transport"
	"github.com/openclaw/acpadapter/internal/updatemap"
)

// turnEventBuffer bounds how many events a turn may queue before the
// consumer drains any, sized for ACP's typically-chatty update stream.
const turnEventBuffer = 4096

// abortEntry is the bookkeeping the Adapter keeps for the one turn (if
// any) currently running against a session key, so a later out-of-band
// Cancel call can reach it.
type abortEntry struct {
	signal *abort.Signal
}

// RunTurnInput is the input to RunTurn.
type RunTurnInput struct {
	Handle Handle
	Text   string
	// RequestID is an opaque caller-supplied correlation id, logged but
	// otherwise unused. A uuid is generated when empty.
	RequestID string
	// Signal, if non-nil, lets the caller pre-arm or later fire
	// cancellation from outside Adapter.Cancel (e.g. a context-derived
	// signal the host already owns). If nil, RunTurn creates one
	// internally, reachable only via Adapter.Cancel(handle, ...).
	Signal *abort.Signal
}

// turnState is the single-slot, terminal-event-guarded sink a turn's
// event-pump writes to.
type turnState struct {
	out    chan Event
	mu     sync.Mutex
	done   bool
	doneCh chan struct{}
}

func newTurnState() *turnState {
	return &turnState{out: make(chan Event, turnEventBuffer), doneCh: make(chan struct{})}
}

// trySend appends a non-terminal event if the turn hasn't already
// finished. Returns false (a no-op) once a terminal event has won.
func (t *turnState) trySend(e Event) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return false
	}
	t.out <- e
	return true
}

// tryFinish appends the terminal event if no other source has already
// finished the turn. Exactly one caller ever observes true — that caller
// is responsible for nothing further; cleanup runs off doneCh.
func (t *turnState) tryFinish(e Event) bool {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return false
	}
	t.done = true
	t.mu.Unlock()
	t.out <- e
	close(t.doneCh)
	return true
}

// RunTurn drives one prompt-to-completion cycle and returns a finite,
// non-restartable, lazily-produced sequence of Events. The
// returned channel always ends with exactly one terminal Event (Done or
// Error) and is then closed.
func (a *Adapter) RunTurn(ctx context.Context, input RunTurnInput) (<-chan Event, error) {
	// Step 1: pre-aborted short-circuit.
	if input.Signal != nil && input.Signal.Aborted() {
		ch := make(chan Event, 1)
		ch <- Done("cancelled")
		close(ch)
		return ch, nil
	}

	// Step 2: resolve the session; absence is a synchronous precondition
	// failure, never yielded as an Event.
	sess, ok := a.registry.Get(input.Handle.SessionKey)
	if !ok {
		return nil, &TurnError{Code: CodeTurnFailed, Err: ErrUnknownSession}
	}

	signal := input.Signal
	if signal == nil {
		signal = abort.New()
	}
	requestID := input.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	log := a.log.With(zap.String("session_key", sess.Key), zap.String("request_id", requestID))

	a.activeMu.Lock()
	a.active[sess.Key] = &abortEntry{signal: signal}
	a.activeMu.Unlock()

	ts := newTurnState()

	// Step 3: install the notification sink.
	sess.SetSink(func(kind, text, stream, statusText string) {
		switch kind {
		case updatemap.KindTextDelta:
			ts.trySend(TextDelta(text, stream))
		case updatemap.KindToolCall:
			ts.trySend(ToolCall(text))
		case updatemap.KindStatus:
			ts.trySend(Status(statusText))
		}
	})

	cleanup := func() {
		sess.ClearSink()
		a.activeMu.Lock()
		if cur, ok := a.active[sess.Key]; ok && cur.signal == signal {
			delete(a.active, sess.Key)
		}
		a.activeMu.Unlock()
		close(ts.out)
	}
	go func() {
		<-ts.doneCh
		cleanup()
	}()

	// Step 4: process-close hook.
	go func() {
		select {
		case <-sess.Exited():
			msg := "agent process exited unexpectedly"
			if err := sess.ExitErr(); err != nil {
				msg = errfmt.Truncate(fmt.Sprintf("agent process exited unexpectedly: %s", err))
			}
			ts.tryFinish(ErrorEvent(msg))
		case <-ts.doneCh:
		}
	}()

	// Step 5: cancellation hook. Fires session/cancel fire-and-forget and
	// unconditionally synthesizes done{cancelled} so the sequence unwinds
	// even if the agent ignores the cancel request.
	go func() {
		select {
		case <-signal.Done():
			go a.fireCancelNotify(sess, log)
			ts.tryFinish(Done("cancelled"))
		case <-ts.doneCh:
		}
	}()

	// Step 6: send session/prompt and attach completion handling.
	go func() {
		var result transport.PromptResult
		err := sess.Conn.Call(ctx, transport.MethodSessionPrompt, transport.PromptParams{
			SessionID: sess.RuntimeSessionName(),
			Prompt:    []transport.ContentBlock{{Type: "text", Text: input.Text}},
		}, &result)
		if err != nil {
			ts.tryFinish(ErrorEvent(errfmt.Truncate(err.Error())))
			return
		}
		reason := stopreason.Sanitize(result.StopReason)
		if reason == "" {
			reason = "end_turn"
		}
		ts.tryFinish(Done(reason))
	}()

	return ts.out, nil
}

// fireCancelNotify issues session/cancel best-effort; failures are logged,
// never surfaced.
func (a *Adapter) fireCancelNotify(sess *sessionreg.Session, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), transport.ControlTimeout)
	defer cancel()
	if err := sess.Conn.Call(ctx, transport.MethodSessionCancel, transport.CancelParams{
		SessionID: sess.RuntimeSessionName(),
	}, nil); err != nil {
		log.Warn("acp: session/cancel failed", zap.Error(err))
	}
}

// Cancel aborts the turn currently running against handle's session, if
// any. A no-op if no turn is active.
func (a *Adapter) Cancel(handle Handle, reason string) {
	a.activeMu.RLock()
	entry, ok := a.active[handle.SessionKey]
	a.activeMu.RUnlock()
	if !ok {
		return
	}
	entry.signal.Fire(reason)
}
