package conversation

import (
	"context"
	"testing"

	"github.com/copp1723/seorylie-sub005/internal/conversation/metrics"
	"github.com/copp1723/seorylie-sub005/internal/conversation/queue"
	"github.com/copp1723/seorylie-sub005/internal/conversation/stream"
	"github.com/copp1723/seorylie-sub005/platform/breaker"
	"github.com/copp1723/seorylie-sub005/platform/config"
	"github.com/copp1723/seorylie-sub005/platform/logger"
	"github.com/copp1723/seorylie-sub005/platform/validator"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeQueueStats struct {
	stats queue.Stats
	err   error
}

func (f *fakeQueueStats) Stats() (queue.Stats, error) { return f.stats, f.err }

func newHealthFixture(t *testing.T, queueStats *fakeQueueStats) (*Orchestrator, *breaker.Breaker) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := &config.Config{
		LeadStreamKey:      "leads:new",
		LeadStreamGroup:    "conversation-orchestrator",
		LeadStreamConsumer: "orchestrator-test",
	}
	consumer := stream.NewConsumer(cfg, rdb, &LeadIntake{}, validator.New(), logger.NewNop())

	store := newFakeStore()
	collector := metrics.NewCollector(store, logger.NewNop())

	brk := breaker.New("ai-responder", breaker.Options{FailureThreshold: 1})

	orch := NewOrchestrator(OrchestratorOptions{
		Breaker:          brk,
		Consumer:         consumer,
		QueueStats:       queueStats,
		Collector:        collector,
		Bus:              &fakeBus{},
		Log:              logger.NewNop(),
		BacklogThreshold: 100,
	})
	return orch, brk
}

func TestHealthStatusHealthy(t *testing.T) {
	orch, _ := newHealthFixture(t, &fakeQueueStats{stats: queue.Stats{Waiting: 5, Active: 2}})

	report := orch.HealthStatus(context.Background())
	if report.Status != StatusHealthy {
		t.Fatalf("status = %s, want healthy", report.Status)
	}
	if report.Queue.Waiting != 5 || report.Queue.Active != 2 {
		t.Fatalf("queue counts = %+v", report.Queue)
	}
	if report.CircuitBreaker.State != string(breaker.StateClosed) {
		t.Fatalf("breaker state = %s", report.CircuitBreaker.State)
	}
	if !report.Stream.Connected {
		t.Fatalf("stream should report connected")
	}
}

func TestHealthStatusDegradedOnBacklog(t *testing.T) {
	orch, _ := newHealthFixture(t, &fakeQueueStats{stats: queue.Stats{Waiting: 250}})

	report := orch.HealthStatus(context.Background())
	if report.Status != StatusDegraded {
		t.Fatalf("status = %s, want degraded", report.Status)
	}
}

func TestHealthStatusUnhealthyOnOpenBreaker(t *testing.T) {
	orch, brk := newHealthFixture(t, &fakeQueueStats{})

	// Threshold 1: a single failure opens the circuit.
	_ = brk.Execute(context.Background(), func(context.Context) error { return context.DeadlineExceeded })

	report := orch.HealthStatus(context.Background())
	if report.Status != StatusUnhealthy {
		t.Fatalf("status = %s, want unhealthy", report.Status)
	}
	if report.CircuitBreaker.State != string(breaker.StateOpen) {
		t.Fatalf("breaker state = %s, want open", report.CircuitBreaker.State)
	}
}

func TestHealthStatusToleratesStatsFailure(t *testing.T) {
	orch, _ := newHealthFixture(t, &fakeQueueStats{err: context.DeadlineExceeded})

	report := orch.HealthStatus(context.Background())
	if report.Status != StatusHealthy {
		t.Fatalf("status = %s, want healthy with zeroed queue stats", report.Status)
	}
	if report.Queue.Waiting != 0 {
		t.Fatalf("queue stats should zero out on error, got %+v", report.Queue)
	}
}
