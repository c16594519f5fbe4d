package checkpoint

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MemoryStore keeps threads in process memory. State lives as long as the
// daemon; restart starts conversations fresh.
type MemoryStore struct {
	mu      sync.RWMutex
	threads map[string]*Thread

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	logger *zap.Logger
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{
		threads: make(map[string]*Thread),
		locks:   make(map[string]*sync.Mutex),
		logger:  logger,
	}
}

func (s *MemoryStore) Load(ctx context.Context, conversationID string) (*Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	thread, ok := s.threads[conversationID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyThread(thread), nil
}

func (s *MemoryStore) Save(ctx context.Context, thread *Thread) error {
	stored := copyThread(thread)
	stored.UpdatedAt = time.Now()

	s.mu.Lock()
	s.threads[stored.ConversationID] = stored
	s.mu.Unlock()

	s.logger.Debug("thread checkpointed",
		zap.String("conversation_id", stored.ConversationID),
		zap.Int("messages", len(stored.Messages)),
		zap.Int("tool_calls", len(stored.ToolCallHistory)))
	return nil
}

// Acquire blocks until this goroutine holds the conversation's turn lock.
func (s *MemoryStore) Acquire(conversationID string) {
	s.conversationLock(conversationID).Lock()
}

func (s *MemoryStore) Release(conversationID string) {
	s.conversationLock(conversationID).Unlock()
}

func (s *MemoryStore) conversationLock(conversationID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	lock, ok := s.locks[conversationID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[conversationID] = lock
	}
	return lock
}

// copyThread isolates callers from the stored slices.
func copyThread(thread *Thread) *Thread {
	out := &Thread{
		ConversationID: thread.ConversationID,
		UpdatedAt:      thread.UpdatedAt,
	}
	out.Messages = append([]Message(nil), thread.Messages...)
	out.ToolCallHistory = append([]ToolCall(nil), thread.ToolCallHistory...)
	return out
}

var _ Store = (*MemoryStore)(nil)
