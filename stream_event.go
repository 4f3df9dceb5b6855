package jobchat

import (
	"strings"

	"github.com/bytedance/sonic"
)

const (
	streamDataPrefix = "data: "
	streamDoneToken  = "[DONE]"
)

// StreamEventKind tags a decoded stream line.
type StreamEventKind int

const (
	// EventIgnored is a line that carries no data (blank, comment, other field).
	EventIgnored StreamEventKind = iota
	// EventDelta carries an optional content delta.
	EventDelta
	// EventDone is the terminator; nothing after it is parsed.
	EventDone
)

func (k StreamEventKind) String() string {
	switch k {
	case EventDelta:
		return "delta"
	case EventDone:
		return "done"
	default:
		return "ignored"
	}
}

// StreamEvent is one decoded line of a chat completion event stream.
// Content is empty when the payload had no delta content.
type StreamEvent struct {
	Kind    StreamEventKind
	Content string
}

type streamPayload struct {
	Choices []struct {
		Delta struct {
			Content *string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// ParseStreamLine decodes a single event-stream line.
//
// Only lines starting with "data: " are considered. The literal [DONE] token ends the
// stream. Any other payload must be a JSON object; a missing choices[0].delta.content
// yields an empty delta. Malformed JSON is reported as *StreamDecodeError.
func ParseStreamLine(line string) (StreamEvent, error) {
	line = strings.TrimRight(line, "\r")
	if !strings.HasPrefix(line, streamDataPrefix) {
		return StreamEvent{Kind: EventIgnored}, nil
	}

	data := strings.TrimSpace(line[len(streamDataPrefix):])
	if data == streamDoneToken {
		return StreamEvent{Kind: EventDone}, nil
	}

	var payload streamPayload
	if err := sonic.UnmarshalString(data, &payload); err != nil {
		return StreamEvent{Kind: EventIgnored}, &StreamDecodeError{Payload: data, Err: err}
	}

	event := StreamEvent{Kind: EventDelta}
	if len(payload.Choices) > 0 && payload.Choices[0].Delta.Content != nil {
		event.Content = *payload.Choices[0].Delta.Content
	}
	return event, nil
}
