// Package events defines the turn progress event protocol: the kinds, the
// payload shapes, and the emitters that move events from the engine to
// subscribers over NATS.
package events

import (
	"encoding/json"
	"fmt"
)

// Kind identifies one event type in a turn's lifecycle.
type Kind string

const (
	KindThinking   Kind = "thinking"
	KindToolCall   Kind = "tool_call"
	KindToolResult Kind = "tool_result"
	KindToken      Kind = "token"
	KindDone       Kind = "done"
	KindError      Kind = "error"
)

// Terminal reports whether the kind ends the stream.
func (k Kind) Terminal() bool {
	return k == KindDone || k == KindError
}

// Event is one protocol frame. The payload is one of the payload structs
// below, already shaped for the wire.
type Event struct {
	Kind    Kind
	Payload any
}

// ThinkingPayload signals that the engine started working on the message.
type ThinkingPayload struct {
	Message string `json:"message"`
}

// ToolCallPayload announces a tool invocation before it runs.
type ToolCallPayload struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
}

// ToolResultPayload reports the outcome of one tool invocation.
type ToolResultPayload struct {
	Tool    string `json:"tool"`
	Success bool   `json:"success"`
}

// TokenPayload carries one chunk of the final message text.
type TokenPayload struct {
	Content string `json:"content"`
}

// DonePayload is the successful terminal frame.
type DonePayload struct {
	ThreadID        string `json:"thread_id"`
	Response        any    `json:"response"`
	ToolCallHistory any    `json:"tool_call_history"`
}

// ErrorPayload is the failed terminal frame. Flat on purpose so SSE clients
// read code and message without digging.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Marshal encodes the event payload for the wire.
func (e Event) Marshal() ([]byte, error) {
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("events: marshal %s payload: %w", e.Kind, err)
	}
	return data, nil
}
