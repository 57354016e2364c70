package postgres

import (
	"context"
	"fmt"

	"signal-trader/internal/storage"
)

// SeenMessageStore implements storage.SeenMessageStore using PostgreSQL.
type SeenMessageStore struct {
	pool *Pool
}

// NewSeenMessageStore creates a new SeenMessageStore.
func NewSeenMessageStore(pool *Pool) *SeenMessageStore {
	return &SeenMessageStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SeenMessageStore = (*SeenMessageStore)(nil)

// IsSeen checks if a message id has been recorded.
func (s *SeenMessageStore) IsSeen(ctx context.Context, channelID, messageID string) (bool, error) {
	if messageID == "" {
		return false, storage.ErrInvalidInput
	}

	var seen bool
	query := `SELECT EXISTS (SELECT 1 FROM seen_messages WHERE channel_id = $1 AND message_id = $2)`
	if err := s.pool.QueryRow(ctx, query, channelID, messageID).Scan(&seen); err != nil {
		return false, fmt.Errorf("check seen message: %w", err)
	}
	return seen, nil
}

// MarkSeen records a terminal message id. The first outcome wins.
func (s *SeenMessageStore) MarkSeen(ctx context.Context, channelID, messageID, outcome string) error {
	if messageID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO seen_messages (channel_id, message_id, outcome)
		VALUES ($1, $2, $3)
		ON CONFLICT (channel_id, message_id) DO NOTHING
	`
	if _, err := s.pool.Exec(ctx, query, channelID, messageID, outcome); err != nil {
		return fmt.Errorf("mark seen message: %w", err)
	}
	return nil
}

// LoadSeen returns all seen message ids for a channel.
func (s *SeenMessageStore) LoadSeen(ctx context.Context, channelID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT message_id FROM seen_messages WHERE channel_id = $1`, channelID)
	if err != nil {
		return nil, fmt.Errorf("load seen messages: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan seen message row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate seen message rows: %w", err)
	}
	return ids, nil
}
