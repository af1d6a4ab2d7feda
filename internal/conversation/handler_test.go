package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/copp1723/seorylie-sub005/internal/conversation/repository"
	"github.com/copp1723/seorylie-sub005/internal/conversation/scoring"
	"github.com/copp1723/seorylie-sub005/internal/conversation/transport"
	"github.com/copp1723/seorylie-sub005/platform/config"
	"github.com/copp1723/seorylie-sub005/platform/logger"
)

func intakeConfig() *config.Config {
	return &config.Config{
		DefaultModel:            "gemini-2.0-flash",
		PremiumModel:            "gemini-2.5-pro",
		DefaultMaxTurns:         2,
		MaxTurnsCap:             10,
		HighValuePriceThreshold: 50000,
	}
}

func newIntake(store *fakeStore, enqueuer *fakeEnqueuer) *LeadIntake {
	cfg := intakeConfig()
	return NewLeadIntake(store, scoring.New(cfg, cfg), enqueuer, logger.NewNop())
}

func TestHandleLeadCreatesConversationAndSchedulesFirstTurn(t *testing.T) {
	store := newFakeStore()
	enqueuer := &fakeEnqueuer{}
	intake := newIntake(store, enqueuer)

	price := 80000.0
	lead := transport.LeadEvent{
		ID:           "lead-1",
		DealershipID: "dealer-1",
		Vehicle:      transport.Vehicle{Model: "Grand Tourer", Price: &price},
		Dealership:   transport.Dealership{PremiumTier: true},
	}

	if err := intake.HandleLead(context.Background(), lead); err != nil {
		t.Fatalf("handle lead: %v", err)
	}

	if len(store.conversations) != 1 {
		t.Fatalf("created %d conversations, want 1", len(store.conversations))
	}
	var conv repository.Conversation
	for _, c := range store.conversations {
		conv = c
	}

	// Premium dealership with a high-value vehicle gets the premium model.
	if conv.AIModel != "gemini-2.5-pro" {
		t.Fatalf("model = %q, want premium", conv.AIModel)
	}
	if conv.Temperature != 0.5 {
		t.Fatalf("temperature = %v, want 0.5", conv.Temperature)
	}
	if conv.MaxTurns != 2 {
		t.Fatalf("maxTurns = %d, want default 2", conv.MaxTurns)
	}
	// High value (25) + premium tier (20).
	if conv.Priority != 45 {
		t.Fatalf("priority = %d, want 45", conv.Priority)
	}

	enqueued := enqueuer.enqueued()
	if len(enqueued) != 1 {
		t.Fatalf("enqueued %d turns, want 1", len(enqueued))
	}
	if enqueued[0].ConversationID != conv.ID.String() || enqueued[0].TurnNumber != 1 {
		t.Fatalf("first turn payload = %+v", enqueued[0])
	}
}

func TestHandleLeadPersistenceFailureSkipsEnqueue(t *testing.T) {
	store := newFakeStore()
	store.createErr = errors.New("connection refused")
	enqueuer := &fakeEnqueuer{}
	intake := newIntake(store, enqueuer)

	err := intake.HandleLead(context.Background(), transport.LeadEvent{ID: "lead-1", DealershipID: "dealer-1"})
	if err == nil {
		t.Fatalf("expected error when persistence fails")
	}
	if len(enqueuer.enqueued()) != 0 {
		t.Fatalf("turn enqueued despite failed conversation insert")
	}
}

func TestHandleLeadEnqueueFailurePropagates(t *testing.T) {
	store := newFakeStore()
	enqueuer := &fakeEnqueuer{err: errors.New("redis down")}
	intake := newIntake(store, enqueuer)

	err := intake.HandleLead(context.Background(), transport.LeadEvent{ID: "lead-1", DealershipID: "dealer-1"})
	if err == nil {
		t.Fatalf("expected error when enqueue fails")
	}
}

func TestLeadContextCarriesVehicleAndCustomer(t *testing.T) {
	store := newFakeStore()
	enqueuer := &fakeEnqueuer{}
	intake := newIntake(store, enqueuer)

	price := 32000.0
	lead := transport.LeadEvent{
		ID:           "lead-1",
		DealershipID: "dealer-1",
		Source:       "web",
		Customer:     transport.Customer{Name: "Jordan"},
		Vehicle:      transport.Vehicle{Model: "Compact EV", Price: &price},
		Comments:     "interested in a test drive",
	}

	if err := intake.HandleLead(context.Background(), lead); err != nil {
		t.Fatalf("handle lead: %v", err)
	}

	var conv repository.Conversation
	for _, c := range store.conversations {
		conv = c
	}
	if conv.Metadata["customerName"] != "Jordan" {
		t.Fatalf("customerName = %v", conv.Metadata["customerName"])
	}
	if conv.Metadata["vehicleModel"] != "Compact EV" {
		t.Fatalf("vehicleModel = %v", conv.Metadata["vehicleModel"])
	}
	if conv.Metadata["vehiclePrice"] != 32000.0 {
		t.Fatalf("vehiclePrice = %v", conv.Metadata["vehiclePrice"])
	}
	if conv.Metadata["comments"] != "interested in a test drive" {
		t.Fatalf("comments = %v", conv.Metadata["comments"])
	}
}
