package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("conversation not found")

// Conversation states. Completed and escalated are terminal.
const (
	StateActive    = "active"
	StateCompleted = "completed"
	StateEscalated = "escalated"
)

// Message roles.
const (
	RoleCustomer  = "customer"
	RoleAssistant = "assistant"
)

type Conversation struct {
	ID               uuid.UUID
	LeadID           string
	DealershipID     string
	CurrentTurn      int
	MaxTurns         int
	State            string
	AIModel          string
	Temperature      float64
	Priority         int
	Metadata         map[string]any
	EscalationReason *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	CompletedAt      *time.Time
	EscalatedAt      *time.Time
}

// MessageMetadata captures how an assistant message was produced.
type MessageMetadata struct {
	Model            string  `json:"model,omitempty"`
	ProcessingTimeMs float64 `json:"processingTimeMs,omitempty"`
	Confidence       float64 `json:"confidence,omitempty"`
	TokensUsed       int     `json:"tokensUsed,omitempty"`
	Cost             float64 `json:"cost,omitempty"`
	Intent           string  `json:"intent,omitempty"`
	Sentiment        float64 `json:"sentiment,omitempty"`
}

type Message struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	Role           string
	Content        string
	TurnNumber     int
	Metadata       MessageMetadata
	CreatedAt      time.Time
}

type CreateConversationParams struct {
	LeadID       string
	DealershipID string
	MaxTurns     int
	AIModel      string
	Temperature  float64
	Priority     int
	Metadata     map[string]any
}

// StateUpdate carries the mutable conversation fields. Nil fields are left
// untouched.
type StateUpdate struct {
	CurrentTurn      *int
	State            *string
	EscalationReason *string
	CompletedAt      *time.Time
	EscalatedAt      *time.Time
}

// Stats are the repository aggregates backing conversation metrics.
type Stats struct {
	Total        int64
	Active       int64
	AverageTurns float64
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateConversation persists a new conversation in the active state with
// current_turn 0.
func (r *Repository) CreateConversation(ctx context.Context, params CreateConversationParams) (Conversation, error) {
	metadata, err := json.Marshal(params.Metadata)
	if err != nil {
		return Conversation{}, fmt.Errorf("marshal conversation metadata: %w", err)
	}

	var conv Conversation
	var rawMetadata []byte
	err = r.pool.QueryRow(ctx, `
		INSERT INTO conversations (id, lead_id, dealership_id, current_turn, max_turns, state, ai_model, temperature, priority, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, 0, $4, $5, $6, $7, $8, $9, now(), now())
		RETURNING id, lead_id, dealership_id, current_turn, max_turns, state, ai_model, temperature, priority, metadata, escalation_reason, created_at, updated_at, completed_at, escalated_at
	`, uuid.New(), params.LeadID, params.DealershipID, params.MaxTurns, StateActive, params.AIModel, params.Temperature, params.Priority, metadata).Scan(
		&conv.ID, &conv.LeadID, &conv.DealershipID, &conv.CurrentTurn, &conv.MaxTurns, &conv.State,
		&conv.AIModel, &conv.Temperature, &conv.Priority, &rawMetadata, &conv.EscalationReason,
		&conv.CreatedAt, &conv.UpdatedAt, &conv.CompletedAt, &conv.EscalatedAt,
	)
	if err != nil {
		return Conversation{}, err
	}

	if len(rawMetadata) > 0 {
		_ = json.Unmarshal(rawMetadata, &conv.Metadata)
	}

	return conv, nil
}

// GetConversationState loads the conversation row without its history.
func (r *Repository) GetConversationState(ctx context.Context, id uuid.UUID) (Conversation, error) {
	var conv Conversation
	var rawMetadata []byte
	err := r.pool.QueryRow(ctx, `
		SELECT id, lead_id, dealership_id, current_turn, max_turns, state, ai_model, temperature, priority, metadata, escalation_reason, created_at, updated_at, completed_at, escalated_at
		FROM conversations
		WHERE id = $1
	`, id).Scan(
		&conv.ID, &conv.LeadID, &conv.DealershipID, &conv.CurrentTurn, &conv.MaxTurns, &conv.State,
		&conv.AIModel, &conv.Temperature, &conv.Priority, &rawMetadata, &conv.EscalationReason,
		&conv.CreatedAt, &conv.UpdatedAt, &conv.CompletedAt, &conv.EscalatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Conversation{}, ErrNotFound
	}
	if err != nil {
		return Conversation{}, err
	}

	if len(rawMetadata) > 0 {
		_ = json.Unmarshal(rawMetadata, &conv.Metadata)
	}

	return conv, nil
}

// GetConversationHistory returns all messages ordered by turn, then creation.
func (r *Repository) GetConversationHistory(ctx context.Context, id uuid.UUID) ([]Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, conversation_id, role, content, turn_number, metadata, created_at
		FROM conversation_messages
		WHERE conversation_id = $1
		ORDER BY turn_number ASC, created_at ASC
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]Message, 0)
	for rows.Next() {
		var msg Message
		var rawMetadata []byte
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &msg.TurnNumber, &rawMetadata, &msg.CreatedAt); err != nil {
			return nil, err
		}
		if len(rawMetadata) > 0 {
			_ = json.Unmarshal(rawMetadata, &msg.Metadata)
		}
		messages = append(messages, msg)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return messages, nil
}

// StoreMessage inserts a message for a turn. A message already stored for the
// same (conversation, turn, role) is skipped, which makes redelivered turn
// jobs safe. Returns whether a row was written.
func (r *Repository) StoreMessage(ctx context.Context, conversationID uuid.UUID, msg Message) (bool, error) {
	metadata, err := json.Marshal(msg.Metadata)
	if err != nil {
		return false, fmt.Errorf("marshal message metadata: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		INSERT INTO conversation_messages (id, conversation_id, role, content, turn_number, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (conversation_id, turn_number, role) DO NOTHING
	`, uuid.New(), conversationID, msg.Role, msg.Content, msg.TurnNumber, metadata)
	if err != nil {
		return false, err
	}

	return tag.RowsAffected() > 0, nil
}

// UpdateConversationState applies the non-nil fields of update.
func (r *Repository) UpdateConversationState(ctx context.Context, id uuid.UUID, update StateUpdate) error {
	sets := []string{"updated_at = now()"}
	args := []any{id}

	appendSet := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.CurrentTurn != nil {
		appendSet("current_turn", *update.CurrentTurn)
	}
	if update.State != nil {
		appendSet("state", *update.State)
	}
	if update.EscalationReason != nil {
		appendSet("escalation_reason", *update.EscalationReason)
	}
	if update.CompletedAt != nil {
		appendSet("completed_at", *update.CompletedAt)
	}
	if update.EscalatedAt != nil {
		appendSet("escalated_at", *update.EscalatedAt)
	}

	query := fmt.Sprintf("UPDATE conversations SET %s WHERE id = $1", strings.Join(sets, ", "))
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// RecordTurnError stores a turn failure for later inspection. The queue's
// retry policy decides whether the turn runs again.
func (r *Repository) RecordTurnError(ctx context.Context, conversationID uuid.UUID, turnNumber int, turnErr error) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO conversation_turn_errors (id, conversation_id, turn_number, error, created_at)
		VALUES ($1, $2, $3, $4, now())
	`, uuid.New(), conversationID, turnNumber, turnErr.Error())
	return err
}

// ConversationStats returns the aggregates backing health metrics.
func (r *Repository) ConversationStats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := r.pool.QueryRow(ctx, `
		SELECT
			count(*),
			count(*) FILTER (WHERE state = $1),
			coalesce(avg(current_turn), 0)
		FROM conversations
	`, StateActive).Scan(&stats.Total, &stats.Active, &stats.AverageTurns)
	if err != nil {
		return Stats{}, err
	}
	return stats, nil
}
