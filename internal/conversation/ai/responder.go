// Package ai defines the AI responder boundary: the request/reply contract
// and the Gemini-backed client that fulfils it.
package ai

import (
	"context"
	"fmt"
)

// Turn is one prior exchange passed to the responder as context.
type Turn struct {
	Role    string `json:"role"` // "customer" or "assistant"
	Content string `json:"content"`
}

// Request carries everything the responder needs to generate the next reply.
type Request struct {
	History     []Turn
	Metadata    map[string]any
	Model       string
	Temperature float64
}

// Reply is the closed result type returned by the responder. EscalationReason
// is empty unless the provider explicitly requested a human handoff.
type Reply struct {
	Content          string
	Confidence       float64 // [0,1]
	Intent           string
	Sentiment        float64 // [0,1], 0.5 is neutral
	TokensUsed       int
	Cost             float64
	EscalationReason string
}

// Responder generates the next assistant reply for a conversation.
type Responder interface {
	Respond(ctx context.Context, req Request) (*Reply, error)
}

// ValidateReply normalizes a provider reply at the boundary. Content must be
// present; confidence and sentiment are clamped into range rather than
// trusted.
func ValidateReply(r *Reply) error {
	if r == nil {
		return fmt.Errorf("responder returned nil reply")
	}
	if r.Content == "" {
		return fmt.Errorf("responder returned empty content")
	}
	r.Confidence = clamp01(r.Confidence)
	r.Sentiment = clamp01(r.Sentiment)
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
