package conversation

import (
	"context"
	"fmt"

	"github.com/copp1723/seorylie-sub005/internal/conversation/queue"
	"github.com/copp1723/seorylie-sub005/internal/conversation/repository"
	"github.com/copp1723/seorylie-sub005/internal/conversation/scoring"
	"github.com/copp1723/seorylie-sub005/internal/conversation/transport"
	"github.com/copp1723/seorylie-sub005/platform/logger"
	"github.com/copp1723/seorylie-sub005/platform/phone"
	"github.com/copp1723/seorylie-sub005/platform/sanitize"
)

// LeadIntake turns a validated lead event into a conversation and its first
// queued turn. It satisfies the stream consumer's handler contract: an error
// leaves the stream entry pending for redelivery, so the conversation insert
// must happen before the enqueue.
type LeadIntake struct {
	store    repository.ConversationStore
	scorer   *scoring.Service
	enqueuer queue.Enqueuer
	log      *logger.Logger
}

func NewLeadIntake(store repository.ConversationStore, scorer *scoring.Service, enqueuer queue.Enqueuer, log *logger.Logger) *LeadIntake {
	return &LeadIntake{
		store:    store,
		scorer:   scorer,
		enqueuer: enqueuer,
		log:      log,
	}
}

// HandleLead scores the lead, persists a new conversation and schedules turn
// one. Failures propagate so the stream redelivers the lead event.
func (h *LeadIntake) HandleLead(ctx context.Context, lead transport.LeadEvent) error {
	log := h.log.WithLeadID(lead.ID)

	priority := h.scorer.Priority(lead)
	model := h.scorer.SelectModel(lead)

	conv, err := h.store.CreateConversation(ctx, repository.CreateConversationParams{
		LeadID:       lead.ID,
		DealershipID: lead.DealershipID,
		MaxTurns:     h.scorer.MaxTurns(lead),
		AIModel:      model,
		Temperature:  h.scorer.Temperature(model),
		Priority:     priority,
		Metadata:     leadContext(lead),
	})
	if err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}

	payload := queue.TurnPayload{ConversationID: conv.ID.String(), TurnNumber: 1}
	if err := h.enqueuer.EnqueueTurn(ctx, payload, priority); err != nil {
		return fmt.Errorf("enqueue first turn: %w", err)
	}

	log.Info("conversation created",
		"conversationId", conv.ID.String(),
		"dealershipId", lead.DealershipID,
		"model", model,
		"priority", priority,
		"maxTurns", conv.MaxTurns,
	)
	return nil
}

// leadContext picks the lead fields worth handing to the AI responder as
// conversation context. Free-text fields are sanitized and the phone number
// normalized to E.164 before they enter the prompt.
func leadContext(lead transport.LeadEvent) map[string]any {
	meta := map[string]any{
		"leadId":       lead.ID,
		"dealershipId": lead.DealershipID,
	}
	if lead.Source != "" {
		meta["source"] = lead.Source
	}
	if name := sanitize.Text(lead.Customer.Name); name != "" {
		meta["customerName"] = name
	}
	if number := phone.NormalizeE164(lead.Customer.Phone); number != "" {
		meta["customerPhone"] = number
	}
	if lead.Vehicle.Model != "" {
		meta["vehicleModel"] = lead.Vehicle.Model
	}
	if lead.Vehicle.Price != nil {
		meta["vehiclePrice"] = *lead.Vehicle.Price
	}
	if lead.Dealership.PremiumTier {
		meta["premiumDealership"] = true
	}
	if comments := sanitize.Text(lead.Comments); comments != "" {
		meta["comments"] = comments
	}
	return meta
}
