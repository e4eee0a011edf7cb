package acpadapter

// EventKind discriminates the variants of Event: text_delta, tool_call,
// status, done, error.
type EventKind string

const (
	// EventTextDelta carries a chunk of assistant output text.
	EventTextDelta EventKind = "text_delta"
	// EventToolCall announces a new tool invocation.
	EventToolCall EventKind = "tool_call"
	// EventStatus carries a tool-call status transition.
	EventStatus EventKind = "status"
	// EventDone is the successful terminal event of a turn.
	EventDone EventKind = "done"
	// EventError is the failing terminal event of a turn.
	EventError EventKind = "error"
)

// Event is one item in the lazy sequence a turn yields. Exactly one field
// group is populated, selected by Kind — the idiomatic Go flattening of a
// tagged union rather than an interface-per-variant design, since every
// variant here carries only one or two string fields.
type Event struct {
	Kind EventKind

	// Text is populated for EventTextDelta.
	Text string
	// Stream names the output stream a text delta belongs to; always
	// "output" for an agent_message_chunk update.
	Stream string

	// ToolText is populated for EventToolCall (the tool's title).
	ToolText string

	// StatusText is populated for EventStatus.
	StatusText string

	// StopReason is populated for EventDone.
	StopReason string

	// Message is populated for EventError.
	Message string
}

// TextDelta constructs an EventTextDelta.
func TextDelta(text, stream string) Event {
	return Event{Kind: EventTextDelta, Text: text, Stream: stream}
}

// ToolCall constructs an EventToolCall.
func ToolCall(text string) Event {
	return Event{Kind: EventToolCall, ToolText: text}
}

// Status constructs an EventStatus.
func Status(text string) Event {
	return Event{Kind: EventStatus, StatusText: text}
}

// Done constructs an EventDone.
func Done(stopReason string) Event {
	return Event{Kind: EventDone, StopReason: stopReason}
}

// ErrorEvent constructs an EventError.
func ErrorEvent(message string) Event {
	return Event{Kind: EventError, Message: message}
}

// Terminal reports whether Kind ends a turn's event sequence.
func (e Event) Terminal() bool {
	return e.Kind == EventDone || e.Kind == EventError
}
