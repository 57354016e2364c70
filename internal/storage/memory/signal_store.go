package memory

import (
	"context"
	"sort"
	"sync"

	"signal-trader/internal/domain"
	"signal-trader/internal/storage"
)

// SignalStore is an in-memory implementation of storage.SignalStore.
type SignalStore struct {
	mu       sync.RWMutex
	data     map[string]*domain.Signal // keyed by signal_id
	bySource map[string]string         // channel_id|source_message_id -> signal_id
}

// NewSignalStore creates a new in-memory signal store.
func NewSignalStore() *SignalStore {
	return &SignalStore{
		data:     make(map[string]*domain.Signal),
		bySource: make(map[string]string),
	}
}

func sourceKey(channelID, messageID string) string {
	return channelID + "|" + messageID
}

// Insert adds a new signal. Returns ErrDuplicateKey if signal_id or source message exists.
func (s *SignalStore) Insert(_ context.Context, sig *domain.Signal) error {
	if sig == nil || sig.SignalID == "" || sig.SourceMessageID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[sig.SignalID]; exists {
		return storage.ErrDuplicateKey
	}
	key := sourceKey(sig.ChannelID, sig.SourceMessageID)
	if _, exists := s.bySource[key]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[sig.SignalID] = sig.Clone()
	s.bySource[key] = sig.SignalID
	return nil
}

// GetByID retrieves a signal by its ID.
func (s *SignalStore) GetByID(_ context.Context, signalID string) (*domain.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sig, ok := s.data[signalID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return sig.Clone(), nil
}

// GetBySourceMessage retrieves the signal created from a message.
func (s *SignalStore) GetBySourceMessage(_ context.Context, channelID, messageID string) (*domain.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.bySource[sourceKey(channelID, messageID)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return s.data[id].Clone(), nil
}

// GetByStatus retrieves signals in a status, ordered by created_at ASC.
func (s *SignalStore) GetByStatus(_ context.Context, status domain.SignalStatus) ([]*domain.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Signal
	for _, sig := range s.data {
		if sig.Status == status {
			result = append(result, sig.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return result[i].SignalID < result[j].SignalID
	})
	return result, nil
}

// UpdateStatus moves a signal from one status to another.
func (s *SignalStore) UpdateStatus(_ context.Context, signalID string, from, to domain.SignalStatus, reason *string, updatedAt int64) error {
	if !to.IsValid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.updateStatusLocked(signalID, from, to, reason, updatedAt)
}

// updateStatusLocked requires s.mu held for writing.
func (s *SignalStore) updateStatusLocked(signalID string, from, to domain.SignalStatus, reason *string, updatedAt int64) error {
	sig, ok := s.data[signalID]
	if !ok {
		return storage.ErrNotFound
	}
	if sig.Status != from {
		return storage.ErrConflict
	}

	sig.Status = to
	sig.UpdatedAt = updatedAt
	if reason != nil {
		r := *reason
		sig.DecisionReason = &r
	}
	return nil
}

// Compile-time interface check.
var _ storage.SignalStore = (*SignalStore)(nil)
