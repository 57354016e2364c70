// Package feed provides message feeds for the detector: a direct WebSocket
// feed and the text-block splitter used by the screen feed.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"signal-trader/internal/detector"
	"signal-trader/internal/domain"
)

// ErrClosed is returned by a feed after Close.
var ErrClosed = errors.New("feed closed")

// WSConfig configures WebSocket feed behavior.
type WSConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// WindowSize bounds the visible message window.
	WindowSize int
	// Header is sent with the handshake, e.g. an Authorization token.
	Header http.Header
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		WindowSize:        50,
	}
}

// WSFeed keeps the most recent messages of one channel, as pushed by a
// WebSocket gateway. Edits replace the stored text in place, which is how a
// revealed message shows up.
type WSFeed struct {
	endpoint  string
	channelID string
	config    WSConfig
	logger    *log.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	mu     sync.Mutex
	window []domain.RawMessage

	done         chan struct{}
	wg           sync.WaitGroup
	reconnecting atomic.Bool
}

// Compile-time interface check.
var _ detector.Feed = (*WSFeed)(nil)

// NewWSFeed connects to endpoint and subscribes to channelID.
func NewWSFeed(ctx context.Context, endpoint, channelID string, config *WSConfig, logger *log.Logger) (*WSFeed, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = DefaultWSConfig().WindowSize
	}
	if logger == nil {
		logger = log.Default()
	}

	f := &WSFeed{
		endpoint:  endpoint,
		channelID: channelID,
		config:    cfg,
		logger:    logger,
		done:      make(chan struct{}),
	}

	if err := f.connect(ctx); err != nil {
		return nil, err
	}

	// Start reader goroutine
	f.wg.Add(1)
	go f.readLoop()

	// Start ping goroutine
	f.wg.Add(1)
	go f.pingLoop()

	return f, nil
}

// connect establishes the connection and sends the subscribe frame.
func (f *WSFeed) connect(ctx context.Context) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, f.endpoint, f.config.Header)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	conn.SetWriteDeadline(time.Now().Add(f.config.WriteTimeout))
	if err := conn.WriteJSON(wsSubscribe{Op: "subscribe", ChannelID: f.channelID}); err != nil {
		conn.Close()
		return fmt.Errorf("write subscribe: %w", err)
	}

	f.conn = conn
	return nil
}

// CaptureVisibleMessages returns the current window, oldest first.
func (f *WSFeed) CaptureVisibleMessages(ctx context.Context) ([]domain.RawMessage, error) {
	if f.closed.Load() {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.connMu.Lock()
	connected := f.conn != nil
	f.connMu.Unlock()
	if !connected {
		return nil, fmt.Errorf("not connected")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.RawMessage, len(f.window))
	copy(out, f.window)
	return out, nil
}

// ScrollToBottom is a no-op: the window always holds the newest messages.
func (f *WSFeed) ScrollToBottom(ctx context.Context) error {
	return ctx.Err()
}

// ScrollUp is a no-op for a pushed feed.
func (f *WSFeed) ScrollUp(ctx context.Context, _ int) error {
	return ctx.Err()
}

// Close closes the WebSocket connection.
func (f *WSFeed) Close() error {
	if f.closed.Swap(true) {
		return nil // Already closed
	}

	close(f.done)

	f.connMu.Lock()
	if f.conn != nil {
		f.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		f.conn.Close()
	}
	f.connMu.Unlock()

	f.wg.Wait()
	return nil
}

// readLoop reads events and applies them to the window.
func (f *WSFeed) readLoop() {
	defer f.wg.Done()

	reconnectDelay := f.config.ReconnectDelay

	for !f.closed.Load() {
		f.connMu.Lock()
		conn := f.conn
		f.connMu.Unlock()

		if conn == nil {
			select {
			case <-f.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(f.config.ReadTimeout))

		_, data, err := conn.ReadMessage()
		if err != nil {
			if f.closed.Load() {
				return
			}

			// Connection error - attempt reconnect with exponential backoff
			if !f.reconnecting.Swap(true) {
				f.logger.Printf("Feed connection lost, reconnecting in %v: %v", reconnectDelay, err)
				go f.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > f.config.MaxReconnectDelay {
				reconnectDelay = f.config.MaxReconnectDelay
			}

			select {
			case <-f.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		// Reset delay on successful read
		reconnectDelay = f.config.ReconnectDelay

		f.handleEvent(data)
	}
}

// reconnect replaces the connection after delay. The window is kept.
func (f *WSFeed) reconnect(delay time.Duration) {
	defer f.reconnecting.Store(false)

	if f.closed.Load() {
		return
	}

	select {
	case <-f.done:
		return
	case <-time.After(delay):
	}

	f.connMu.Lock()
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
	f.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := f.connect(ctx); err != nil {
		// Reconnect failed, will retry on next read error
		f.logger.Printf("Feed reconnect failed: %v", err)
		return
	}
	f.logger.Printf("Feed reconnected to channel %q", f.channelID)
}

// handleEvent applies one gateway event.
func (f *WSFeed) handleEvent(data []byte) {
	var ev wsEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		f.logger.Printf("Feed dropped malformed event: %v", err)
		return
	}
	if ev.ChannelID != f.channelID || ev.Message == nil || ev.Message.ID == "" {
		return
	}

	msg := domain.RawMessage{
		ID:         ev.Message.ID,
		Author:     ev.Message.Author,
		Text:       ev.Message.Content,
		ChannelID:  ev.ChannelID,
		ObservedAt: time.Now().UnixMilli(),
	}

	switch ev.Type {
	case eventCreate, eventUpdate:
		f.upsert(msg)
	case eventDelete:
		f.remove(msg.ID)
	}
}

func (f *WSFeed) upsert(msg domain.RawMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.window {
		if f.window[i].ID == msg.ID {
			f.window[i] = msg
			return
		}
	}
	f.window = append(f.window, msg)
	if over := len(f.window) - f.config.WindowSize; over > 0 {
		f.window = append(f.window[:0:0], f.window[over:]...)
	}
}

func (f *WSFeed) remove(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.window {
		if f.window[i].ID == id {
			f.window = append(f.window[:i], f.window[i+1:]...)
			return
		}
	}
}

// pingLoop sends periodic ping frames to keep connection alive.
func (f *WSFeed) pingLoop() {
	defer f.wg.Done()

	ticker := time.NewTicker(f.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case <-ticker.C:
			f.connMu.Lock()
			if f.conn != nil {
				f.conn.SetWriteDeadline(time.Now().Add(f.config.WriteTimeout))
				// A dead connection surfaces in readLoop.
				_ = f.conn.WriteMessage(websocket.PingMessage, nil)
			}
			f.connMu.Unlock()
		}
	}
}

// Gateway wire types.

const (
	eventCreate = "message_create"
	eventUpdate = "message_update"
	eventDelete = "message_delete"
)

type wsSubscribe struct {
	Op        string `json:"op"`
	ChannelID string `json:"channel_id"`
}

type wsEvent struct {
	Type      string     `json:"type"`
	ChannelID string     `json:"channel_id"`
	Message   *wsMessage `json:"message"`
}

type wsMessage struct {
	ID      string `json:"id"`
	Author  string `json:"author"`
	Content string `json:"content"`
}
