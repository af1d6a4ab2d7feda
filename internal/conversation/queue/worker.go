package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/copp1723/seorylie-sub005/platform/config"
	"github.com/copp1723/seorylie-sub005/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// TurnProcessor handles one conversation turn. A returned error triggers the
// queue's retry policy.
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, conversationID uuid.UUID, turnNumber int) error
}

type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor TurnProcessor
	log       *logger.Logger
}

func NewWorker(cfg config.QueueConfig, processor TurnProcessor, shutdownTimeout time.Duration, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := RedisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetQueueConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			QueueCritical: 6,
			QueueDefault:  3,
			QueueLow:      1,
		},
		ShutdownTimeout: shutdownTimeout,
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:    server,
		mux:       mux,
		processor: processor,
		log:       log,
	}

	mux.HandleFunc(TaskConversationTurn, w.handleConversationTurn)

	return w, nil
}

func (w *Worker) handleConversationTurn(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseTurnPayload(task)
	if err != nil {
		return err
	}

	conversationID, err := uuid.Parse(payload.ConversationID)
	if err != nil {
		return err
	}

	if err := w.processor.ProcessTurn(ctx, conversationID, payload.TurnNumber); err != nil {
		w.log.QueueError(TaskConversationTurn, err)
		return err
	}

	return nil
}

// Start runs the worker pool without blocking.
func (w *Worker) Start() error {
	if w == nil || w.server == nil {
		return fmt.Errorf("worker not initialized")
	}
	return w.server.Start(w.mux)
}

// Shutdown stops the server and waits for in-flight tasks up to the
// configured ShutdownTimeout. Safe to call more than once.
func (w *Worker) Shutdown() {
	if w == nil || w.server == nil {
		return
	}
	w.server.Shutdown()
}

// Run blocks until ctx is cancelled, then drains in-flight jobs.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("conversation worker stopped", "error", err)
	}
}
