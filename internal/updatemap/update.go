// Package updatemap translates inbound session/update notification payloads
// into acpadapter.Event values.
package updatemap

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/openclaw/acpadapter/internal/errfmt"
	"github.com/openclaw/acpadapter/internal/transport"
)

// Event mirrors acpadapter.Event's shape without importing the root
// package (which imports this one) — adapter.go and turn.go adapt between them.
type Event struct {
	Kind       string
	Text       string
	Stream     string
	ToolText   string
	StatusText string
}

const (
	KindTextDelta = "text_delta"
	KindToolCall  = "tool_call"
	KindStatus    = "status"
)

// contentChunk is the shape of an agent_message_chunk update.
type contentChunk struct {
	Content struct {
		Text string `json:"text"`
	} `json:"content"`
}

// toolCallPayload is the shape of a tool_call update.
type toolCallPayload struct {
	Title string `json:"title"`
}

// toolCallUpdatePayload is the shape of a tool_call_update update.
type toolCallUpdatePayload struct {
	ToolCallID string `json:"toolCallId"`
	Status     string `json:"status"`
}

// Map parses a session/update notification's outer envelope and returns
// the mapped Event, or nil when the update should be dropped (any
// sessionUpdate value other than the three kinds this adapter maps, or a
// missing/unparseable discriminator). Non-mapped update kinds are still
// logged at debug level so the host can observe richer agent telemetry
// without it ever reaching the Event stream.
func Map(rawParams json.RawMessage, log *zap.Logger) *Event {
	var params transport.SessionUpdateParams
	if err := json.Unmarshal(rawParams, &params); err != nil {
		log.Debug("acp: malformed session/update envelope", zap.Error(err))
		return nil
	}
	return mapInner(params.Update, log)
}

func mapInner(update json.RawMessage, log *zap.Logger) *Event {
	if len(update) == 0 {
		return nil
	}
	var header transport.UpdateHeader
	if err := json.Unmarshal(update, &header); err != nil {
		log.Debug("acp: malformed session/update payload", zap.Error(err))
		return nil
	}

	switch header.SessionUpdate {
	case "agent_message_chunk":
		var c contentChunk
		if err := json.Unmarshal(update, &c); err != nil {
			log.Debug("acp: malformed agent_message_chunk", zap.Error(err))
			return nil
		}
		return &Event{Kind: KindTextDelta, Text: errfmt.Truncate(c.Content.Text), Stream: "output"}

	case "tool_call":
		var tc toolCallPayload
		if err := json.Unmarshal(update, &tc); err != nil {
			log.Debug("acp: malformed tool_call", zap.Error(err))
			return nil
		}
		title := errfmt.SanitizeCode(tc.Title)
		if title == "" {
			title = "tool"
		}
		return &Event{Kind: KindToolCall, ToolText: title}

	case "tool_call_update":
		var tu toolCallUpdatePayload
		if err := json.Unmarshal(update, &tu); err != nil {
			log.Debug("acp: malformed tool_call_update", zap.Error(err))
			return nil
		}
		status := fmt.Sprintf("tool %s: %s", errfmt.SanitizeCode(tu.ToolCallID), tu.Status)
		return &Event{Kind: KindStatus, StatusText: errfmt.Truncate(status)}

	case "":
		log.Debug("acp: session/update missing sessionUpdate discriminator")
		return nil

	default:
		log.Debug("acp: dropping unmapped session/update kind", zap.String("sessionUpdate", header.SessionUpdate))
		return nil
	}
}
