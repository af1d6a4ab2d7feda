// Package transport defines the wire shapes crossing the conversation
// subsystem boundary.
package transport

// LeadEvent is the raw lead record read from the event stream.
type LeadEvent struct {
	ID           string       `json:"id" validate:"required"`
	DealershipID string       `json:"dealership_id" validate:"required"`
	Source       string       `json:"source"`
	Customer     Customer     `json:"customer"`
	Vehicle      Vehicle      `json:"vehicle"`
	Dealership   Dealership   `json:"dealership"`
	Comments     string       `json:"comments"`
	Metadata     LeadMetadata `json:"metadata"`
}

type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email" validate:"omitempty,email"`
	Phone string `json:"phone"`
}

type Vehicle struct {
	Model string   `json:"model"`
	Price *float64 `json:"price,omitempty"`
}

type Dealership struct {
	PremiumTier bool `json:"premium_tier"`
}

type LeadMetadata struct {
	SessionDuration *float64 `json:"sessionDuration,omitempty"` // seconds
	MaxTurns        *int     `json:"maxTurns,omitempty"`
}

// HealthResponse is the health endpoint shape consumed by external
// monitoring.
type HealthResponse struct {
	Status         string               `json:"status"`
	Queue          QueueHealth          `json:"queue"`
	CircuitBreaker CircuitBreakerHealth `json:"circuitBreaker"`
	Metrics        MetricsHealth        `json:"metrics"`
	Stream         StreamHealth         `json:"stream"`
}

type QueueHealth struct {
	Waiting   int `json:"waiting"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

type CircuitBreakerHealth struct {
	State    string `json:"state"`
	Failures int    `json:"failures"`
}

type MetricsHealth struct {
	TotalConversations          int64   `json:"totalConversations"`
	ActiveConversations         int64   `json:"activeConversations"`
	AverageTurnsPerConversation float64 `json:"averageTurnsPerConversation"`
}

type StreamHealth struct {
	Connected     bool `json:"connected"`
	StreamsActive int  `json:"streamsActive"`
}
