// Package conversation drives multi-turn AI conversations with sales leads:
// lead intake, turn processing, escalation and completion.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/copp1723/seorylie-sub005/internal/conversation/ai"
	"github.com/copp1723/seorylie-sub005/internal/conversation/queue"
	"github.com/copp1723/seorylie-sub005/internal/conversation/repository"
	"github.com/copp1723/seorylie-sub005/internal/events"
	"github.com/copp1723/seorylie-sub005/platform/breaker"
	"github.com/copp1723/seorylie-sub005/platform/config"
	"github.com/copp1723/seorylie-sub005/platform/logger"

	"github.com/google/uuid"
)

// Thresholds for adaptive turn decisions.
const (
	lowSentimentThreshold   = 0.3
	highConfidenceThreshold = 0.8
)

// nextAction is the outcome of one processed turn.
type nextAction int

const (
	actionContinue nextAction = iota
	actionComplete
	actionEscalate
)

// Engine processes conversation turns delivered by the job queue. Delivery is
// at-least-once, so every step tolerates replays: terminal and already-applied
// turns are no-ops, and the assistant message insert is conflict-free.
type Engine struct {
	store     repository.ConversationStore
	responder ai.Responder
	breaker   *breaker.Breaker
	enqueuer  queue.Enqueuer
	bus       events.Bus
	cfg       config.ConversationConfig
	log       *logger.Logger
}

func NewEngine(
	store repository.ConversationStore,
	responder ai.Responder,
	brk *breaker.Breaker,
	enqueuer queue.Enqueuer,
	bus events.Bus,
	cfg config.ConversationConfig,
	log *logger.Logger,
) *Engine {
	return &Engine{
		store:     store,
		responder: responder,
		breaker:   brk,
		enqueuer:  enqueuer,
		bus:       bus,
		cfg:       cfg,
		log:       log,
	}
}

// ProcessTurn runs one conversation turn: generate the assistant reply, store
// it, decide whether the conversation continues, completes or escalates, and
// schedule the follow-up turn when it continues.
//
// A returned error tells the queue to retry the turn. Duplicates and turns
// for terminal conversations return nil so the queue drops them.
func (e *Engine) ProcessTurn(ctx context.Context, conversationID uuid.UUID, turnNumber int) error {
	log := e.log.WithConversationID(conversationID.String())

	conv, err := e.store.GetConversationState(ctx, conversationID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Warn("turn for unknown conversation dropped", "turn", turnNumber)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load conversation state: %w", err)
	}

	if conv.State != repository.StateActive {
		log.Debug("turn for terminal conversation dropped", "turn", turnNumber, "state", conv.State)
		return nil
	}
	if turnNumber <= conv.CurrentTurn || conv.CurrentTurn >= conv.MaxTurns {
		log.Debug("duplicate turn dropped", "turn", turnNumber, "currentTurn", conv.CurrentTurn)
		return nil
	}

	history, err := e.store.GetConversationHistory(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("load conversation history: %w", err)
	}

	reply, elapsed, err := e.generateReply(ctx, conv, history)
	if err != nil {
		e.recordTurnFailure(ctx, conv, turnNumber, err)
		return err
	}

	msg := repository.Message{
		Role:       repository.RoleAssistant,
		Content:    reply.Content,
		TurnNumber: turnNumber,
		Metadata: repository.MessageMetadata{
			Model:            conv.AIModel,
			ProcessingTimeMs: float64(elapsed.Milliseconds()),
			Confidence:       reply.Confidence,
			TokensUsed:       reply.TokensUsed,
			Cost:             reply.Cost,
			Intent:           reply.Intent,
			Sentiment:        reply.Sentiment,
		},
	}
	if _, err := e.store.StoreMessage(ctx, conversationID, msg); err != nil {
		return fmt.Errorf("store assistant message: %w", err)
	}

	if turnNumber == 1 {
		e.bus.Publish(ctx, events.ConversationStarted{
			BaseEvent:      events.NewBaseEvent(),
			ConversationID: conv.ID,
			LeadID:         conv.LeadID,
			DealershipID:   conv.DealershipID,
			AIModel:        conv.AIModel,
			Priority:       conv.Priority,
		})
	}

	action, reason := e.decide(conv, reply, turnNumber)
	return e.applyOutcome(ctx, conv, turnNumber, action, reason)
}

// generateReply calls the responder through the circuit breaker and validates
// the result at the boundary.
func (e *Engine) generateReply(ctx context.Context, conv repository.Conversation, history []repository.Message) (*ai.Reply, time.Duration, error) {
	req := ai.Request{
		History:     toTurns(history),
		Metadata:    conv.Metadata,
		Model:       conv.AIModel,
		Temperature: conv.Temperature,
	}

	var reply *ai.Reply
	start := time.Now()
	err := e.breaker.Execute(ctx, func(ctx context.Context) error {
		var respondErr error
		reply, respondErr = e.responder.Respond(ctx, req)
		if respondErr != nil {
			return respondErr
		}
		return ai.ValidateReply(reply)
	})
	elapsed := time.Since(start)

	e.log.AICall(conv.AIModel, float64(elapsed.Milliseconds()), tokensOf(reply), err == nil)
	if err != nil {
		return nil, elapsed, fmt.Errorf("generate reply: %w", err)
	}

	return reply, elapsed, nil
}

// decide picks the next action for a finished turn. Escalation signals win
// over completion signals when both fire on the same reply: a frustrated
// customer who also sounds ready to book still gets a human.
func (e *Engine) decide(conv repository.Conversation, reply *ai.Reply, turnNumber int) (nextAction, string) {
	if reply.EscalationReason != "" {
		return actionEscalate, reply.EscalationReason
	}

	if e.cfg.IsAdaptiveConversationsEnabled() {
		if reply.Sentiment < lowSentimentThreshold && isDisengaged(reply.Intent) {
			return actionEscalate, "customer disengaged"
		}
		if reply.Confidence >= highConfidenceThreshold && isBookingIntent(reply.Intent) {
			return actionComplete, ""
		}
	}

	if turnNumber >= conv.MaxTurns {
		return actionComplete, ""
	}

	return actionContinue, ""
}

// applyOutcome persists the turn advance plus any terminal transition, then
// either schedules the next turn or publishes the terminal lifecycle event.
// The state write happens before the follow-up enqueue so a crash between the
// two loses a job (recoverable via redelivery) rather than corrupting state.
func (e *Engine) applyOutcome(ctx context.Context, conv repository.Conversation, turnNumber int, action nextAction, reason string) error {
	now := time.Now()
	update := repository.StateUpdate{CurrentTurn: &turnNumber}

	switch action {
	case actionComplete:
		state := repository.StateCompleted
		update.State = &state
		update.CompletedAt = &now
	case actionEscalate:
		state := repository.StateEscalated
		update.State = &state
		update.EscalationReason = &reason
		update.EscalatedAt = &now
	}

	if err := e.store.UpdateConversationState(ctx, conv.ID, update); err != nil {
		return fmt.Errorf("update conversation state: %w", err)
	}

	switch action {
	case actionContinue:
		payload := queue.TurnPayload{ConversationID: conv.ID.String(), TurnNumber: turnNumber + 1}
		if err := e.enqueuer.EnqueueTurn(ctx, payload, conv.Priority); err != nil {
			return fmt.Errorf("enqueue next turn: %w", err)
		}
	case actionComplete:
		e.bus.Publish(ctx, events.ConversationCompleted{
			BaseEvent:      events.NewBaseEvent(),
			ConversationID: conv.ID,
			LeadID:         conv.LeadID,
			DealershipID:   conv.DealershipID,
			TotalTurns:     turnNumber,
		})
	case actionEscalate:
		e.bus.Publish(ctx, events.ConversationEscalated{
			BaseEvent:      events.NewBaseEvent(),
			ConversationID: conv.ID,
			LeadID:         conv.LeadID,
			DealershipID:   conv.DealershipID,
			Reason:         reason,
			Turn:           turnNumber,
		})
	}

	return nil
}

// recordTurnFailure stores the failure for inspection and announces it. The
// write is best-effort: the turn error must not mask the original failure.
func (e *Engine) recordTurnFailure(ctx context.Context, conv repository.Conversation, turnNumber int, turnErr error) {
	e.log.TurnError(conv.ID.String(), turnNumber, turnErr)

	if err := e.store.RecordTurnError(ctx, conv.ID, turnNumber, turnErr); err != nil {
		e.log.DatabaseError("record turn error", err)
	}

	e.bus.Publish(ctx, events.ConversationTurnFailed{
		BaseEvent:      events.NewBaseEvent(),
		ConversationID: conv.ID,
		Turn:           turnNumber,
		Error:          turnErr.Error(),
	})
}

func toTurns(history []repository.Message) []ai.Turn {
	turns := make([]ai.Turn, 0, len(history))
	for _, msg := range history {
		turns = append(turns, ai.Turn{Role: msg.Role, Content: msg.Content})
	}
	return turns
}

func isDisengaged(intent string) bool {
	return intent == "disengaged" || intent == "frustrated"
}

func isBookingIntent(intent string) bool {
	return intent == "appointment" || intent == "booking"
}

func tokensOf(reply *ai.Reply) int {
	if reply == nil {
		return 0
	}
	return reply.TokensUsed
}
