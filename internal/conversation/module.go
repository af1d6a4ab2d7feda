// Package conversation module wiring. The module owns every moving part of
// the orchestrator: repository, AI responder, circuit breaker, job queue,
// stream consumer and metrics, composed here and exposed through the
// Orchestrator.
package conversation

import (
	"context"

	"github.com/copp1723/seorylie-sub005/internal/conversation/ai"
	"github.com/copp1723/seorylie-sub005/internal/conversation/metrics"
	"github.com/copp1723/seorylie-sub005/internal/conversation/queue"
	"github.com/copp1723/seorylie-sub005/internal/conversation/repository"
	"github.com/copp1723/seorylie-sub005/internal/conversation/scoring"
	"github.com/copp1723/seorylie-sub005/internal/conversation/stream"
	"github.com/copp1723/seorylie-sub005/internal/events"
	"github.com/copp1723/seorylie-sub005/platform/breaker"
	"github.com/copp1723/seorylie-sub005/platform/config"
	"github.com/copp1723/seorylie-sub005/platform/logger"
	"github.com/copp1723/seorylie-sub005/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the conversation bounded context.
type Module struct {
	orchestrator *Orchestrator
	engine       *Engine
	intake       *LeadIntake
	repo         *repository.Repository
}

// NewModule creates and initializes the conversation module with all its
// dependencies.
func NewModule(ctx context.Context, pool *pgxpool.Pool, eventBus events.Bus, val *validator.Validator, cfg *config.Config, log *logger.Logger) (*Module, error) {
	repo := repository.New(pool)

	responder, err := ai.NewGeminiResponder(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	brk := breaker.New("ai-responder", breaker.Options{
		FailureThreshold:         cfg.GetBreakerFailureThreshold(),
		ResetTimeout:             cfg.GetBreakerResetTimeout(),
		HalfOpenSuccessThreshold: cfg.GetBreakerHalfOpenSuccesses(),
	})

	queueClient, err := queue.NewClient(cfg)
	if err != nil {
		return nil, err
	}

	inspector, err := queue.NewInspector(cfg)
	if err != nil {
		return nil, err
	}

	engine := NewEngine(repo, responder, brk, queueClient, eventBus, cfg, log)

	worker, err := queue.NewWorker(cfg, engine, cfg.GetShutdownTimeout(), log)
	if err != nil {
		return nil, err
	}

	// Surface escalations prominently; downstream CRM notification hangs off
	// this same event.
	eventBus.Subscribe(events.ConversationEscalated{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.ConversationEscalated)
		if !ok {
			return nil
		}
		log.Warn("conversation escalated, human follow-up required",
			"conversationId", e.ConversationID.String(),
			"leadId", e.LeadID,
			"dealershipId", e.DealershipID,
			"reason", e.Reason,
			"turn", e.Turn,
		)
		return nil
	}))

	scorer := scoring.New(cfg, cfg)
	intake := NewLeadIntake(repo, scorer, queueClient, log)

	rdb, err := stream.NewRedisClient(cfg)
	if err != nil {
		return nil, err
	}
	consumer := stream.NewConsumer(cfg, rdb, intake, val, log)

	collector := metrics.NewCollector(repo, log)

	orchestrator := NewOrchestrator(OrchestratorOptions{
		Breaker:          brk,
		Consumer:         consumer,
		Worker:           worker,
		QueueStats:       inspector,
		Collector:        collector,
		Bus:              eventBus,
		Log:              log,
		MetricsInterval:  cfg.GetMetricsInterval(),
		ShutdownTimeout:  cfg.GetShutdownTimeout(),
		BacklogThreshold: cfg.GetQueueBacklogThreshold(),
		Closers:          []closer{queueClient, inspector, rdb},
	})

	return &Module{
		orchestrator: orchestrator,
		engine:       engine,
		intake:       intake,
		repo:         repo,
	}, nil
}

// Name returns the module identifier.
func (m *Module) Name() string { return "conversation" }

// Orchestrator exposes the running core for the composition root.
func (m *Module) Orchestrator() *Orchestrator { return m.orchestrator }

// Repository exposes the store for cross-module reads.
func (m *Module) Repository() *repository.Repository { return m.repo }
