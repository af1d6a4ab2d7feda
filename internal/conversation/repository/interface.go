package repository

import (
	"context"

	"github.com/google/uuid"
)

// ConversationStore is the persistence gateway consumed by the orchestrator.
// Each write is atomic for its own statement and surfaces failures as errors.
type ConversationStore interface {
	CreateConversation(ctx context.Context, params CreateConversationParams) (Conversation, error)
	GetConversationState(ctx context.Context, id uuid.UUID) (Conversation, error)
	GetConversationHistory(ctx context.Context, id uuid.UUID) ([]Message, error)
	StoreMessage(ctx context.Context, conversationID uuid.UUID, msg Message) (bool, error)
	UpdateConversationState(ctx context.Context, id uuid.UUID, update StateUpdate) error
	RecordTurnError(ctx context.Context, conversationID uuid.UUID, turnNumber int, turnErr error) error
	ConversationStats(ctx context.Context) (Stats, error)
}

var _ ConversationStore = (*Repository)(nil)
