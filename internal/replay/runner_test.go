package replay

import (
	"context"
	"errors"
	"strings"
	"testing"

	"signal-trader/internal/domain"
)

// collectingEngine collects messages for verification.
type collectingEngine struct {
	msgs []domain.RawMessage
}

func (e *collectingEngine) OnMessage(_ context.Context, msg domain.RawMessage) error {
	e.msgs = append(e.msgs, msg)
	return nil
}

func testMessages() []domain.RawMessage {
	return []domain.RawMessage{
		{ID: "m3", ChannelID: "trades", Text: "ETH short", ObservedAt: 3000},
		{ID: "m1", ChannelID: "trades", Text: "BTC long", ObservedAt: 1000},
		{ID: "m2b", ChannelID: "trades", Text: "SOL long", ObservedAt: 2000},
		{ID: "m2a", ChannelID: "trades", Text: "ARB long", ObservedAt: 2000},
		{ID: "x1", ChannelID: "alpha", Text: "DOGE long", ObservedAt: 2000},
	}
}

func TestRunner_RunAllOrdered(t *testing.T) {
	runner := NewRunner(testMessages())
	engine := &collectingEngine{}

	n, err := runner.RunAll(context.Background(), engine)
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if n != 5 {
		t.Fatalf("expected 5 messages, got %d", n)
	}

	want := []string{"m1", "x1", "m2a", "m2b", "m3"}
	for i, id := range want {
		if engine.msgs[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, engine.msgs[i].ID)
		}
	}
	if err := CheckOrdered(engine.msgs); err != nil {
		t.Errorf("CheckOrdered: %v", err)
	}
}

func TestRunner_RunRange(t *testing.T) {
	runner := NewRunner(testMessages())
	engine := &collectingEngine{}

	n, err := runner.Run(context.Background(), 2000, 2000, engine)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 messages in range, got %d", n)
	}
	for _, m := range engine.msgs {
		if m.ObservedAt != 2000 {
			t.Errorf("message %s outside range", m.ID)
		}
	}
}

func TestRunner_DoesNotMutateInput(t *testing.T) {
	msgs := testMessages()
	NewRunner(msgs)
	if msgs[0].ID != "m3" {
		t.Errorf("input reordered: first is %s", msgs[0].ID)
	}
}

func TestRunner_EngineErrorStops(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	engine := EngineFunc(func(_ context.Context, msg domain.RawMessage) error {
		calls++
		if msg.ID == "x1" {
			return boom
		}
		return nil
	})

	n, err := NewRunner(testMessages()).RunAll(context.Background(), engine)
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if n != 1 || calls != 2 {
		t.Errorf("expected 1 replayed and 2 calls, got %d and %d", n, calls)
	}
}

func TestRunner_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(testMessages()).RunAll(ctx, &collectingEngine{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestCheckOrdered_Unsorted(t *testing.T) {
	if err := CheckOrdered(testMessages()); !errors.Is(err, ErrInvalidOrdering) {
		t.Errorf("expected ErrInvalidOrdering, got %v", err)
	}
}

func TestReadMessages(t *testing.T) {
	input := `{"id":"m1","author":"@yramki","text":"BTC long","channel_id":"trades","observed_at":1000}

{"id":"m2","author":"@yramki","text":"ETH short","channel_id":"trades","observed_at":2000}
`
	msgs, err := ReadMessages(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadMessages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[1].Text != "ETH short" || msgs[1].ObservedAt != 2000 {
		t.Errorf("unexpected second message: %+v", msgs[1])
	}
}

func TestReadMessages_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"malformed", "{\"id\":\"m1\"}\nnot json\n", "line 2"},
		{"missing id", `{"text":"BTC long"}`, "no id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadMessages(strings.NewReader(tt.input))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
