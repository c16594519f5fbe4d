// Package checkpoint persists conversation state between turns. A thread is
// the engine's memory of one conversation: the message transcript plus the
// tool call history the next turn can draw on.
package checkpoint

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no thread exists for a conversation id.
var ErrNotFound = errors.New("checkpoint: thread not found")

// MaxMessages bounds the retained transcript. Older messages fall off the
// front; the thread itself is never dropped.
const MaxMessages = 50

// Role of one transcript message.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one transcript entry.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToolCall is one historical tool invocation retained across turns.
type ToolCall struct {
	Tool    string         `json:"tool"`
	Args    map[string]any `json:"args,omitempty"`
	Success bool           `json:"success"`
	Error   string         `json:"error,omitempty"`
}

// Thread is the checkpointed state of one conversation.
type Thread struct {
	ConversationID  string     `json:"conversation_id"`
	Messages        []Message  `json:"messages"`
	ToolCallHistory []ToolCall `json:"tool_call_history"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Append adds messages to the transcript, trimming from the front past
// MaxMessages.
func (t *Thread) Append(messages ...Message) {
	t.Messages = append(t.Messages, messages...)
	if len(t.Messages) > MaxMessages {
		t.Messages = t.Messages[len(t.Messages)-MaxMessages:]
	}
}

// Store loads and saves threads. Save is last-write-wins per conversation
// id; Acquire/Release serialize turns so concurrent requests for the same
// conversation run one at a time.
type Store interface {
	Load(ctx context.Context, conversationID string) (*Thread, error)
	Save(ctx context.Context, thread *Thread) error
	Acquire(conversationID string)
	Release(conversationID string)
}
