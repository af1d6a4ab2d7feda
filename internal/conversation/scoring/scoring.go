// Package scoring decides how a new lead is handled: its queue priority, the
// AI model it is routed to, and its turn budget.
package scoring

import (
	"strings"

	"github.com/copp1723/seorylie-sub005/internal/conversation/transport"
	"github.com/copp1723/seorylie-sub005/platform/config"
)

const (
	// Factor contributions. Priority starts at 0 and signals add to it;
	// a higher total means earlier dequeue.
	urgencyBonus     = 30
	highValueBonus   = 25
	premiumBonus     = 20
	maxSessionBonus  = 15
	sessionPerMinute = 3.0
)

// urgencyPhrases in free-text comments that indicate a customer who wants to
// transact quickly.
var urgencyPhrases = []string{
	"today",
	"now",
	"asap",
	"immediately",
	"right away",
	"this week",
}

// Service computes intake policy for new leads. Thresholds come from config
// so dealership groups can tune them without redeploying.
type Service struct {
	cfg config.ConversationConfig

	highValueThreshold float64
	defaultModel       string
	premiumModel       string
}

func New(cfg config.ConversationConfig, aiCfg config.AIConfig) *Service {
	return &Service{
		cfg:                cfg,
		highValueThreshold: cfg.GetHighValuePriceThreshold(),
		defaultModel:       aiCfg.GetDefaultModel(),
		premiumModel:       aiCfg.GetPremiumModel(),
	}
}

// Priority scores a lead. Base 0; urgency phrasing, vehicle value, dealership
// tier and session engagement each add a bounded bonus.
func (s *Service) Priority(lead transport.LeadEvent) int {
	priority := 0

	if containsUrgency(lead.Comments) {
		priority += urgencyBonus
	}
	if s.isHighValue(lead) {
		priority += highValueBonus
	}
	if lead.Dealership.PremiumTier {
		priority += premiumBonus
	}
	priority += sessionBonus(lead.Metadata.SessionDuration)

	return priority
}

// SelectModel routes premium-tier dealerships and high-value vehicle interest
// to the higher-capability model.
func (s *Service) SelectModel(lead transport.LeadEvent) string {
	if lead.Dealership.PremiumTier || s.isHighValue(lead) {
		return s.premiumModel
	}
	return s.defaultModel
}

// Temperature keeps the premium model more conservative.
func (s *Service) Temperature(model string) float64 {
	if model == s.premiumModel {
		return 0.5
	}
	return 0.7
}

// MaxTurns returns the fixed default budget unless adaptive conversations are
// enabled and the lead carries a bounded explicit override.
func (s *Service) MaxTurns(lead transport.LeadEvent) int {
	budget := s.cfg.GetDefaultMaxTurns()

	if !s.cfg.IsAdaptiveConversationsEnabled() {
		return budget
	}

	if lead.Metadata.MaxTurns != nil {
		override := *lead.Metadata.MaxTurns
		if override >= 1 && override <= s.cfg.GetMaxTurnsCap() {
			return override
		}
	}

	return budget
}

func (s *Service) isHighValue(lead transport.LeadEvent) bool {
	return lead.Vehicle.Price != nil && *lead.Vehicle.Price >= s.highValueThreshold
}

func containsUrgency(comments string) bool {
	if comments == "" {
		return false
	}
	lowered := strings.ToLower(comments)
	for _, phrase := range urgencyPhrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}

func sessionBonus(duration *float64) int {
	if duration == nil || *duration <= 0 {
		return 0
	}
	bonus := int(*duration / 60.0 * sessionPerMinute)
	if bonus > maxSessionBonus {
		bonus = maxSessionBonus
	}
	return bonus
}
