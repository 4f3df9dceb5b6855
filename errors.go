package jobchat

import (
	"errors"
	"fmt"
)

var (
	// ErrChatNotFound is returned by storages when a conversation id is unknown.
	ErrChatNotFound = errors.New("chat not found")
	// ErrChatExists is returned by CreateChat when the id is already taken.
	ErrChatExists = errors.New("chat already exists")
	// ErrEmptyMessage rejects blank user input before any request is made.
	ErrEmptyMessage = errors.New("message must not be empty")
)

// LLMError reports a non-2xx answer from the chat completion service.
type LLMError struct {
	Code    int
	Message string
}

func (e *LLMError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API request failed with status %d", e.Code)
	}
	return fmt.Sprintf("API request failed with status %d: %s", e.Code, e.Message)
}

// StreamDecodeError is a single event payload that could not be parsed.
// It never aborts a stream; the event is logged and skipped.
type StreamDecodeError struct {
	Payload string
	Err     error
}

func (e *StreamDecodeError) Error() string {
	return fmt.Sprintf("failed to decode stream event %q: %v", e.Payload, e.Err)
}

func (e *StreamDecodeError) Unwrap() error { return e.Err }

// TransportError wraps network level failures talking to the chat service.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
