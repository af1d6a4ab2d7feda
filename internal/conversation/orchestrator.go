package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/copp1723/seorylie-sub005/internal/conversation/metrics"
	"github.com/copp1723/seorylie-sub005/internal/conversation/queue"
	"github.com/copp1723/seorylie-sub005/internal/conversation/stream"
	"github.com/copp1723/seorylie-sub005/internal/conversation/transport"
	"github.com/copp1723/seorylie-sub005/internal/events"
	"github.com/copp1723/seorylie-sub005/platform/breaker"
	"github.com/copp1723/seorylie-sub005/platform/logger"

	"golang.org/x/sync/errgroup"
)

// closer matches the Close method shared by the queue client and inspector.
type closer interface {
	Close() error
}

// Orchestrator ties the conversation subsystem together: the stream consumer
// feeding lead intake, the queue worker driving the turn engine, and the
// metrics sampler backing the health endpoint.
type Orchestrator struct {
	breaker          *breaker.Breaker
	consumer         *stream.Consumer
	worker           *queue.Worker
	queueStats       queue.StatsProvider
	collector        *metrics.Collector
	bus              events.Bus
	log              *logger.Logger
	metricsInterval  time.Duration
	shutdownTimeout  time.Duration
	backlogThreshold int

	closers      []closer
	shutdownOnce sync.Once
}

type OrchestratorOptions struct {
	Breaker          *breaker.Breaker
	Consumer         *stream.Consumer
	Worker           *queue.Worker
	QueueStats       queue.StatsProvider
	Collector        *metrics.Collector
	Bus              events.Bus
	Log              *logger.Logger
	MetricsInterval  time.Duration
	ShutdownTimeout  time.Duration
	BacklogThreshold int
	// Closers are connection owners released on shutdown, such as the queue
	// client and inspector.
	Closers []closer
}

func NewOrchestrator(opts OrchestratorOptions) *Orchestrator {
	return &Orchestrator{
		breaker:          opts.Breaker,
		consumer:         opts.Consumer,
		worker:           opts.Worker,
		queueStats:       opts.QueueStats,
		collector:        opts.Collector,
		bus:              opts.Bus,
		log:              opts.Log,
		metricsInterval:  opts.MetricsInterval,
		shutdownTimeout:  opts.ShutdownTimeout,
		backlogThreshold: opts.BacklogThreshold,
		closers:          opts.Closers,
	}
}

// Run starts the stream consumer, the queue worker pool and the metrics
// sampler, and blocks until ctx is cancelled or one of them fails. In-flight
// turns are drained on the way out, bounded by the shutdown timeout.
func (o *Orchestrator) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := o.consumer.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})

	g.Go(func() error {
		o.worker.Run(ctx)
		return nil
	})

	g.Go(func() error {
		o.collector.Run(ctx, o.metricsInterval)
		return nil
	})

	err := g.Wait()
	o.Shutdown()
	return err
}

// Shutdown releases queue and stream resources and announces the shutdown.
// Idempotent: repeated calls after the first are no-ops.
func (o *Orchestrator) Shutdown() {
	o.shutdownOnce.Do(func() {
		o.log.Info("orchestrator shutting down")

		o.worker.Shutdown()
		for _, c := range o.closers {
			if err := c.Close(); err != nil {
				o.log.Warn("resource close failed during shutdown", "error", err)
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), o.shutdownTimeout)
		defer cancel()
		if err := o.bus.PublishSync(ctx, events.OrchestratorShutdown{BaseEvent: events.NewBaseEvent()}); err != nil {
			o.log.Warn("shutdown event delivery failed", "error", err)
		}

		o.log.Info("orchestrator shutdown complete")
	})
}

// HealthStatus assembles the health report from queue counts, breaker state,
// conversation metrics and stream connectivity. Unreachable queue stats
// report as zeroes rather than failing the whole report.
func (o *Orchestrator) HealthStatus(ctx context.Context) transport.HealthResponse {
	queueStats, err := o.queueStats.Stats()
	if err != nil {
		o.log.Warn("queue stats unavailable", "error", err)
		queueStats = queue.Stats{}
	}

	brk := o.breaker.Snapshot()
	snap := o.collector.Snapshot()
	streamStatus := o.consumer.Status(ctx)

	return transport.HealthResponse{
		Status: DetermineHealth(brk.State, queueStats.Waiting, o.backlogThreshold),
		Queue: transport.QueueHealth{
			Waiting:   queueStats.Waiting,
			Active:    queueStats.Active,
			Completed: queueStats.Completed,
			Failed:    queueStats.Failed,
		},
		CircuitBreaker: transport.CircuitBreakerHealth{
			State:    string(brk.State),
			Failures: brk.Failures,
		},
		Metrics: transport.MetricsHealth{
			TotalConversations:          snap.TotalConversations,
			ActiveConversations:         snap.ActiveConversations,
			AverageTurnsPerConversation: snap.AverageTurns,
		},
		Stream: transport.StreamHealth{
			Connected:     streamStatus.Connected,
			StreamsActive: streamStatus.StreamsActive,
		},
	}
}
