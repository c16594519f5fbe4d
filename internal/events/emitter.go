package events

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// SubjectPrefix roots every turn event subject.
const SubjectPrefix = "turns"

// Subject builds the NATS subject for one event kind of one turn.
func Subject(conversationID, turnID string, kind Kind) string {
	return fmt.Sprintf("%s.%s.%s.%s",
		SubjectPrefix, sanitizeToken(conversationID), sanitizeToken(turnID), kind)
}

// TurnSubject is the wildcard subject covering all kinds of one turn.
func TurnSubject(conversationID, turnID string) string {
	return fmt.Sprintf("%s.%s.%s.*",
		SubjectPrefix, sanitizeToken(conversationID), sanitizeToken(turnID))
}

// sanitizeToken keeps caller-supplied ids from breaking subject structure.
func sanitizeToken(id string) string {
	if id == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, id)
}

// Emitter delivers turn events to subscribers.
type Emitter interface {
	Emit(ctx context.Context, conversationID, turnID string, event Event) error
}

// NATSEmitter publishes events as JSON to per-turn subjects.
type NATSEmitter struct {
	conn   *nats.Conn
	logger *zap.Logger
}

// NewNATSEmitter creates an emitter over an established connection.
func NewNATSEmitter(conn *nats.Conn, logger *zap.Logger) *NATSEmitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSEmitter{conn: conn, logger: logger}
}

func (e *NATSEmitter) Emit(ctx context.Context, conversationID, turnID string, event Event) error {
	data, err := event.Marshal()
	if err != nil {
		return err
	}
	subject := Subject(conversationID, turnID, event.Kind)
	if err := e.conn.Publish(subject, data); err != nil {
		e.logger.Warn("event publish failed",
			zap.String("subject", subject), zap.Error(err))
		return fmt.Errorf("events: publish %s: %w", subject, err)
	}
	return nil
}

var _ Emitter = (*NATSEmitter)(nil)

// Recorder captures events in order. Test double for the engine.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	// FailOn, when set, makes Emit return an error for that kind.
	FailOn Kind
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Emit(ctx context.Context, conversationID, turnID string, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailOn != "" && event.Kind == r.FailOn {
		return fmt.Errorf("events: recorder configured to fail on %s", r.FailOn)
	}
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of everything recorded.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Kinds returns the recorded kinds in order.
func (r *Recorder) Kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Kind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

var _ Emitter = (*Recorder)(nil)
