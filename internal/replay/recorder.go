package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sync"

	"signal-trader/internal/detector"
	"signal-trader/internal/domain"
)

// Recorder appends messages to w as JSON lines. A message is written again
// only when its text changes. Safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	enc     *json.Encoder
	written map[string]string // message id -> last written text
}

// NewRecorder creates a recorder writing to w.
func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{
		enc:     json.NewEncoder(w),
		written: make(map[string]string),
	}
}

// Record writes msg unless the same id and text were already written.
// Returns whether a line was written.
func (r *Recorder) Record(msg domain.RawMessage) (bool, error) {
	if msg.ID == "" {
		return false, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if text, ok := r.written[msg.ID]; ok && text == msg.Text {
		return false, nil
	}
	if err := r.enc.Encode(msg); err != nil {
		return false, fmt.Errorf("record message %s: %w", msg.ID, err)
	}
	r.written[msg.ID] = msg.Text
	return true, nil
}

// RecordingFeed records every captured message before handing it on.
// Recording failures are logged and never fail a capture.
type RecordingFeed struct {
	feed     detector.Feed
	recorder *Recorder
	logger   *log.Logger
}

// Compile-time interface check.
var _ detector.Feed = (*RecordingFeed)(nil)

// NewRecordingFeed wraps feed.
func NewRecordingFeed(feed detector.Feed, recorder *Recorder, logger *log.Logger) *RecordingFeed {
	if logger == nil {
		logger = log.Default()
	}
	return &RecordingFeed{feed: feed, recorder: recorder, logger: logger}
}

// CaptureVisibleMessages captures from the wrapped feed and records the result.
func (f *RecordingFeed) CaptureVisibleMessages(ctx context.Context) ([]domain.RawMessage, error) {
	msgs, err := f.feed.CaptureVisibleMessages(ctx)
	if err != nil {
		return nil, err
	}
	for _, m := range msgs {
		if _, err := f.recorder.Record(m); err != nil {
			f.logger.Printf("Error recording message: %v", err)
		}
	}
	return msgs, nil
}

// ScrollToBottom passes through to the wrapped feed.
func (f *RecordingFeed) ScrollToBottom(ctx context.Context) error {
	return f.feed.ScrollToBottom(ctx)
}

// ScrollUp passes through to the wrapped feed.
func (f *RecordingFeed) ScrollUp(ctx context.Context, amount int) error {
	return f.feed.ScrollUp(ctx, amount)
}
