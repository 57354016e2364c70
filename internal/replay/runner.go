package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"signal-trader/internal/domain"
)

// maxLineSize bounds one recorded message line.
const maxLineSize = 1 << 20

// ReadMessages decodes a JSON-lines recording. Blank lines are skipped;
// a malformed line or a message without an id is an error naming the line.
func ReadMessages(r io.Reader) ([]domain.RawMessage, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var msgs []domain.RawMessage
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var msg domain.RawMessage
		if err := json.Unmarshal([]byte(text), &msg); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if msg.ID == "" {
			return nil, fmt.Errorf("line %d: message has no id", line)
		}
		msgs = append(msgs, msg)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read recording: %w", err)
	}
	return msgs, nil
}

// Runner replays a recording in deterministic order.
type Runner struct {
	msgs []domain.RawMessage
}

// NewRunner creates a runner over msgs. msgs is copied and sorted.
func NewRunner(msgs []domain.RawMessage) *Runner {
	sorted := make([]domain.RawMessage, len(msgs))
	copy(sorted, msgs)
	SortMessages(sorted)
	return &Runner{msgs: sorted}
}

// Len returns the number of recorded messages.
func (r *Runner) Len() int {
	return len(r.msgs)
}

// Run replays messages observed within [from, to] ms through the engine.
// Returns the number of messages replayed.
func (r *Runner) Run(ctx context.Context, from, to int64, engine Engine) (int, error) {
	n := 0
	for _, msg := range r.msgs {
		if msg.ObservedAt < from || msg.ObservedAt > to {
			continue
		}
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if err := engine.OnMessage(ctx, msg); err != nil {
			return n, fmt.Errorf("replay message %s: %w", msg.ID, err)
		}
		n++
	}
	return n, nil
}

// RunAll replays every recorded message through the engine.
func (r *Runner) RunAll(ctx context.Context, engine Engine) (int, error) {
	for i, msg := range r.msgs {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if err := engine.OnMessage(ctx, msg); err != nil {
			return i, fmt.Errorf("replay message %s: %w", msg.ID, err)
		}
	}
	return len(r.msgs), nil
}
