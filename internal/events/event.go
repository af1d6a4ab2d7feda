// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"github.com/copp1723/seorylie-sub005/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var (
	NewBaseEvent   = events.NewBaseEvent
	NewInMemoryBus = events.NewInMemoryBus
)

// =============================================================================
// Conversation Lifecycle Events
// =============================================================================

// ConversationStarted is published when the first turn of a conversation has
// been processed.
type ConversationStarted struct {
	BaseEvent
	ConversationID uuid.UUID `json:"conversationId"`
	LeadID         string    `json:"leadId"`
	DealershipID   string    `json:"dealershipId"`
	AIModel        string    `json:"aiModel"`
	Priority       int       `json:"priority"`
}

func (e ConversationStarted) EventName() string { return "conversation.started" }

// ConversationCompleted is published when a conversation reaches its natural
// end: turn budget spent or a confident booking intent.
type ConversationCompleted struct {
	BaseEvent
	ConversationID uuid.UUID `json:"conversationId"`
	LeadID         string    `json:"leadId"`
	DealershipID   string    `json:"dealershipId"`
	TotalTurns     int       `json:"totalTurns"`
}

func (e ConversationCompleted) EventName() string { return "conversation.completed" }

// ConversationEscalated is published when a conversation is handed off to a
// human agent.
type ConversationEscalated struct {
	BaseEvent
	ConversationID uuid.UUID `json:"conversationId"`
	LeadID         string    `json:"leadId"`
	DealershipID   string    `json:"dealershipId"`
	Reason         string    `json:"reason"`
	Turn           int       `json:"turn"`
}

func (e ConversationEscalated) EventName() string { return "conversation.escalated" }

// ConversationTurnFailed is published when a turn fails; the queue's retry
// policy decides whether the turn runs again.
type ConversationTurnFailed struct {
	BaseEvent
	ConversationID uuid.UUID `json:"conversationId"`
	Turn           int       `json:"turn"`
	Error          string    `json:"error"`
}

func (e ConversationTurnFailed) EventName() string { return "conversation.turn_failed" }

// OrchestratorShutdown is published once when the orchestrator has released
// its queue and stream connections.
type OrchestratorShutdown struct {
	BaseEvent
}

func (e OrchestratorShutdown) EventName() string { return "orchestrator.shutdown" }
