// Package replay records observed chat messages as JSON lines and replays
// them in deterministic order, so gate and policy changes can be checked
// against real channel history.
package replay

import (
	"context"

	"signal-trader/internal/domain"
)

// Engine processes replayed messages.
type Engine interface {
	// OnMessage is called for each message in order.
	// Messages are guaranteed to be ordered by (observed_at, channel_id, id).
	OnMessage(ctx context.Context, msg domain.RawMessage) error
}

// EngineFunc adapts a function to Engine.
type EngineFunc func(ctx context.Context, msg domain.RawMessage) error

// OnMessage calls f.
func (f EngineFunc) OnMessage(ctx context.Context, msg domain.RawMessage) error {
	return f(ctx, msg)
}
