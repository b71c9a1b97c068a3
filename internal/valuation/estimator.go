// Package valuation turns a notification payload into a numeric worth
// estimate using an LLM. It owns prompt construction and response
// parsing; transport lives in the providers package.
package valuation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rsproule/attngate/internal/providers"
)

// Estimate is the model's judgment of a notification's intrinsic worth.
type Estimate struct {
	Value  float64
	Reason string
}

// Estimator prices a notification payload for one recipient. Implementations
// must respect ctx and fail with an error rather than guess.
type Estimator interface {
	Estimate(ctx context.Context, payload json.RawMessage, customPrompt string) (*Estimate, error)
}

const valuePromptFmt = `You estimate how much a notification is worth to its recipient, in %s.
Consider urgency, relevance, and whether the sender is a person or a machine.
Typical marketing notifications are worth 0. A message from a real person with
time-sensitive content can be worth several units.`

const responseInstruction = `Respond with only a JSON object: {"value": <number>, "reason": "<one sentence>"}`

// LLMEstimator asks a chat provider to price payloads. Each call gets a
// hard timeout; retries happen inside the provider and must finish
// within it.
type LLMEstimator struct {
	provider providers.Provider
	model    string
	currency string
	timeout  time.Duration
	logger   *slog.Logger
}

// NewLLMEstimator prices payloads in the given currency unit; an empty
// currency falls back to USD.
func NewLLMEstimator(p providers.Provider, model, currency string, timeout time.Duration, logger *slog.Logger) *LLMEstimator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if currency == "" {
		currency = "USD"
	}
	return &LLMEstimator{
		provider: p,
		model:    model,
		currency: currency,
		timeout:  timeout,
		logger:   logger.With("component", "valuation"),
	}
}

func (e *LLMEstimator) Estimate(ctx context.Context, payload json.RawMessage, customPrompt string) (*Estimate, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	systemPrompt := fmt.Sprintf(valuePromptFmt, e.currency)
	if customPrompt != "" {
		systemPrompt = customPrompt
	}

	resp, err := e.provider.Chat(ctx, providers.ChatRequest{
		Model: e.model,
		Messages: []providers.Message{
			{Role: "system", Content: systemPrompt + "\n\n" + responseInstruction},
			{Role: "user", Content: string(payload)},
		},
		MaxTokens: 256,
	})
	if err != nil {
		return nil, fmt.Errorf("valuation call: %w", err)
	}

	est, err := parseEstimate(resp.Content)
	if err != nil {
		e.logger.Warn("unparseable valuation response", "content", truncate(resp.Content, 200), "error", err)
		return nil, err
	}

	if est.Value < 0 {
		est.Value = 0
	}
	return est, nil
}

// parseEstimate extracts the {"value","reason"} object from the model
// output. Models sometimes wrap JSON in code fences or prose, so scan
// for the outermost braces instead of decoding the raw string.
func parseEstimate(content string) (*Estimate, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in valuation response")
	}

	var parsed struct {
		Value  *float64 `json:"value"`
		Reason string   `json:"reason"`
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &parsed); err != nil {
		return nil, fmt.Errorf("decode valuation response: %w", err)
	}
	if parsed.Value == nil {
		return nil, fmt.Errorf("valuation response missing value field")
	}

	return &Estimate{Value: *parsed.Value, Reason: parsed.Reason}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
