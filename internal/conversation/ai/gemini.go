package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/copp1723/seorylie-sub005/platform/apperr"
	"github.com/copp1723/seorylie-sub005/platform/config"
	"github.com/copp1723/seorylie-sub005/platform/logger"

	"google.golang.org/genai"
)

const systemInstruction = `You are an automotive dealership sales assistant replying to an inbound customer lead.
Reply ONLY with a JSON object of this shape:
{"reply": string, "intent": string, "sentiment": number, "confidence": number, "escalation_reason": string}

Rules:
- "reply" is your next message to the customer: helpful, concise, no pressure.
- "intent" is your read of the customer's current intent, one of:
  "browsing", "price_inquiry", "appointment", "booking", "disengaged", "frustrated", "other".
- "sentiment" is the customer's sentiment from 0 (very negative) to 1 (very positive).
- "confidence" is your confidence in the intent classification, 0 to 1.
- "escalation_reason" is empty unless a human sales agent must take over
  (legal questions, complaints, financing specifics, explicit request for a person).`

// wireReply mirrors the JSON the model is instructed to emit.
type wireReply struct {
	Reply            string  `json:"reply"`
	Intent           string  `json:"intent"`
	Sentiment        float64 `json:"sentiment"`
	Confidence       float64 `json:"confidence"`
	EscalationReason string  `json:"escalation_reason"`
}

// GeminiResponder calls the Gemini API to generate conversation replies.
type GeminiResponder struct {
	client  *genai.Client
	timeout time.Duration
	log     *logger.Logger
}

// NewGeminiResponder creates a responder backed by the Gemini API.
func NewGeminiResponder(ctx context.Context, cfg config.AIConfig, log *logger.Logger) (*GeminiResponder, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GetGeminiAPIKey(),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	timeout := cfg.GetAITimeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &GeminiResponder{
		client:  client,
		timeout: timeout,
		log:     log,
	}, nil
}

// Respond generates the next assistant reply. The call is bounded by the
// configured operation timeout; a deadline breach surfaces as an error so the
// caller's circuit breaker counts it as a failure.
func (g *GeminiResponder) Respond(ctx context.Context, req Request) (*Reply, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	contents := buildContents(req)
	genCfg := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(float32(req.Temperature)),
		ResponseMIMEType:  "application/json",
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
	}

	started := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, req.Model, contents, genCfg)
	latency := float64(time.Since(started).Milliseconds())
	if err != nil {
		g.log.AICall(req.Model, latency, 0, false)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperr.Wrap(apperr.KindTimeout, "gemini generate timed out", err).WithOp("ai.Respond")
		}
		return nil, apperr.Wrap(apperr.KindUnavailable, "gemini generate failed", err).WithOp("ai.Respond")
	}

	raw := strings.TrimSpace(resp.Text())
	var wire wireReply
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		g.log.AICall(req.Model, latency, 0, false)
		return nil, apperr.Wrap(apperr.KindInternal, "gemini reply is not valid JSON", err).WithOp("ai.Respond")
	}

	tokens := 0
	if resp.UsageMetadata != nil {
		tokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	reply := &Reply{
		Content:          wire.Reply,
		Confidence:       wire.Confidence,
		Intent:           wire.Intent,
		Sentiment:        wire.Sentiment,
		TokensUsed:       tokens,
		Cost:             estimateCost(req.Model, tokens),
		EscalationReason: wire.EscalationReason,
	}
	if err := ValidateReply(reply); err != nil {
		g.log.AICall(req.Model, latency, tokens, false)
		return nil, err
	}

	g.log.AICall(req.Model, latency, tokens, true)
	return reply, nil
}

// Rough per-1k-token pricing for cost attribution. Not billing-grade.
var costPerThousandTokens = map[string]float64{
	"gemini-2.0-flash": 0.0003,
	"gemini-2.5-pro":   0.0050,
}

func estimateCost(model string, tokens int) float64 {
	rate, ok := costPerThousandTokens[model]
	if !ok {
		rate = 0.001
	}
	return rate * float64(tokens) / 1000.0
}

func buildContents(req Request) []*genai.Content {
	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, turn := range req.History {
		var role genai.Role = genai.RoleUser
		if turn.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Content, role))
	}

	// Lead metadata travels as a final user part so the first turn has
	// something to respond to even before the customer writes back.
	if len(req.Metadata) > 0 {
		if encoded, err := json.Marshal(req.Metadata); err == nil {
			contents = append(contents, genai.NewContentFromText("Lead context: "+string(encoded), genai.RoleUser))
		}
	}

	if len(contents) == 0 {
		contents = append(contents, genai.NewContentFromText("A new customer lead arrived with no message yet. Open the conversation.", genai.RoleUser))
	}

	return contents
}
