package stream

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/copp1723/seorylie-sub005/internal/conversation/transport"
	"github.com/copp1723/seorylie-sub005/platform/config"
	"github.com/copp1723/seorylie-sub005/platform/logger"
	"github.com/copp1723/seorylie-sub005/platform/validator"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type recordingHandler struct {
	mu    sync.Mutex
	leads []transport.LeadEvent
	err   error
}

func (h *recordingHandler) HandleLead(_ context.Context, lead transport.LeadEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.leads = append(h.leads, lead)
	return nil
}

func (h *recordingHandler) handled() []transport.LeadEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]transport.LeadEvent, len(h.leads))
	copy(out, h.leads)
	return out
}

func testConsumer(t *testing.T, handler LeadHandler) (*Consumer, *miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := &config.Config{
		RedisURL:           "redis://" + mr.Addr(),
		LeadStreamKey:      "leads:new",
		LeadStreamGroup:    "conversation-orchestrator",
		LeadStreamConsumer: "orchestrator-test",
	}
	return NewConsumer(cfg, rdb, handler, validator.New(), logger.NewNop()), mr, rdb
}

func addLead(t *testing.T, rdb *redis.Client, lead transport.LeadEvent) {
	t.Helper()
	raw, err := json.Marshal(lead)
	if err != nil {
		t.Fatalf("marshal lead: %v", err)
	}
	if err := rdb.XAdd(context.Background(), &redis.XAddArgs{
		Stream: "leads:new",
		Values: map[string]any{payloadField: string(raw)},
	}).Err(); err != nil {
		t.Fatalf("xadd: %v", err)
	}
}

func awaitCondition(t *testing.T, check func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within deadline")
}

func TestConsumerDeliversValidLead(t *testing.T) {
	handler := &recordingHandler{}
	consumer, _, rdb := testConsumer(t, handler)

	addLead(t, rdb, transport.LeadEvent{ID: "lead-1", DealershipID: "dealer-1"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go consumer.Run(ctx)

	awaitCondition(t, func() bool { return len(handler.handled()) == 1 })

	if got := handler.handled()[0].ID; got != "lead-1" {
		t.Fatalf("handled lead ID = %q, want %q", got, "lead-1")
	}

	awaitCondition(t, func() bool {
		pending, err := rdb.XPending(context.Background(), "leads:new", "conversation-orchestrator").Result()
		return err == nil && pending.Count == 0
	})
}

func TestConsumerDropsMalformedEvent(t *testing.T) {
	handler := &recordingHandler{}
	consumer, _, rdb := testConsumer(t, handler)

	if err := rdb.XAdd(context.Background(), &redis.XAddArgs{
		Stream: "leads:new",
		Values: map[string]any{payloadField: "{not json"},
	}).Err(); err != nil {
		t.Fatalf("xadd: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go consumer.Run(ctx)

	// Malformed events are acked away without reaching the handler.
	awaitCondition(t, func() bool {
		pending, err := rdb.XPending(context.Background(), "leads:new", "conversation-orchestrator").Result()
		return err == nil && pending.Count == 0
	})
	if len(handler.handled()) != 0 {
		t.Fatalf("handler received %d leads, want 0", len(handler.handled()))
	}
}

func TestConsumerDropsInvalidLead(t *testing.T) {
	handler := &recordingHandler{}
	consumer, _, rdb := testConsumer(t, handler)

	// Missing the required dealership ID.
	addLead(t, rdb, transport.LeadEvent{ID: "lead-1"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go consumer.Run(ctx)

	awaitCondition(t, func() bool {
		pending, err := rdb.XPending(context.Background(), "leads:new", "conversation-orchestrator").Result()
		return err == nil && pending.Count == 0
	})
	if len(handler.handled()) != 0 {
		t.Fatalf("handler received %d leads, want 0", len(handler.handled()))
	}
}

func TestConsumerLeavesFailedLeadPending(t *testing.T) {
	handler := &recordingHandler{err: context.DeadlineExceeded}
	consumer, _, rdb := testConsumer(t, handler)

	addLead(t, rdb, transport.LeadEvent{ID: "lead-1", DealershipID: "dealer-1"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go consumer.Run(ctx)

	awaitCondition(t, func() bool {
		pending, err := rdb.XPending(context.Background(), "leads:new", "conversation-orchestrator").Result()
		return err == nil && pending.Count == 1
	})
}

func TestConsumerStatus(t *testing.T) {
	handler := &recordingHandler{}
	consumer, mr, rdb := testConsumer(t, handler)

	status := consumer.Status(context.Background())
	if !status.Connected {
		t.Fatalf("expected connected status")
	}
	if status.StreamsActive != 0 {
		t.Fatalf("StreamsActive = %d, want 0 before any event", status.StreamsActive)
	}

	addLead(t, rdb, transport.LeadEvent{ID: "lead-1", DealershipID: "dealer-1"})
	status = consumer.Status(context.Background())
	if status.StreamsActive != 1 {
		t.Fatalf("StreamsActive = %d, want 1", status.StreamsActive)
	}

	mr.Close()
	status = consumer.Status(context.Background())
	if status.Connected {
		t.Fatalf("expected disconnected status after redis shutdown")
	}
}
