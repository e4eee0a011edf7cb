package acpadapter

import "context"

// Filter returns a channel that only passes events of the given kinds.
// Spawns a goroutine that exits when ctx is cancelled or ch closes; the
// returned channel is closed when that goroutine exits. Useful for a host
// that only wants, say, EventTextDelta plus the terminal event.
func Filter(ctx context.Context, ch <-chan Event, kinds ...EventKind) <-chan Event {
	allowed := make(map[EventKind]struct{}, len(kinds))
	for _, k := range kinds {
		allowed[k] = struct{}{}
	}
	return pipe(ctx, ch, func(e Event) bool {
		_, ok := allowed[e.Kind]
		return ok
	})
}

// Completed drops EventTextDelta, passing only tool_call, status, and the
// terminal event — the coarse-grained view of a turn a host rendering only
// milestones would want.
func Completed(ctx context.Context, ch <-chan Event) <-chan Event {
	return pipe(ctx, ch, func(e Event) bool {
		return e.Kind != EventTextDelta
	})
}

// TerminalOnly passes only the turn's final event (Done or Error),
// dropping every streamed delta.
func TerminalOnly(ctx context.Context, ch <-chan Event) <-chan Event {
	return pipe(ctx, ch, func(e Event) bool {
		return e.Terminal()
	})
}

// pipe spawns a goroutine that reads from ch, passes events matching
// accept to the returned channel, and closes it when ch closes or ctx is
// cancelled. Callers must either drain the returned channel or cancel ctx
// to avoid leaking the goroutine.
func pipe(ctx context.Context, ch <-chan Event, accept func(Event) bool) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-ch:
				if !ok {
					return
				}
				if accept(e) && !trySend(ctx, out, e) {
					return
				}
			}
		}
	}()
	return out
}

// trySend sends e on out, returning true on success, false if ctx is
// cancelled before the send completes.
func trySend(ctx context.Context, out chan<- Event, e Event) bool {
	select {
	case out <- e:
		return true
	case <-ctx.Done():
		return false
	}
}
