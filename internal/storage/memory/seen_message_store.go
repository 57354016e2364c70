package memory

import (
	"context"
	"sync"

	"signal-trader/internal/storage"
)

// SeenMessageStore is an in-memory implementation of storage.SeenMessageStore.
type SeenMessageStore struct {
	mu   sync.RWMutex
	seen map[string]map[string]string // channel_id -> message_id -> outcome
}

// NewSeenMessageStore creates a new in-memory seen-message store.
func NewSeenMessageStore() *SeenMessageStore {
	return &SeenMessageStore{
		seen: make(map[string]map[string]string),
	}
}

// IsSeen checks if a message id has been recorded.
func (s *SeenMessageStore) IsSeen(_ context.Context, channelID, messageID string) (bool, error) {
	if messageID == "" {
		return false, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.seen[channelID][messageID]
	return ok, nil
}

// MarkSeen records a terminal message id. The first outcome wins.
func (s *SeenMessageStore) MarkSeen(_ context.Context, channelID, messageID, outcome string) error {
	if messageID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.seen[channelID]
	if !ok {
		ch = make(map[string]string)
		s.seen[channelID] = ch
	}
	if _, exists := ch[messageID]; !exists {
		ch[messageID] = outcome
	}
	return nil
}

// LoadSeen returns all seen message ids for a channel.
func (s *SeenMessageStore) LoadSeen(_ context.Context, channelID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.seen[channelID]))
	for id := range s.seen[channelID] {
		ids = append(ids, id)
	}
	return ids, nil
}

// Compile-time interface check.
var _ storage.SeenMessageStore = (*SeenMessageStore)(nil)
