package valuation

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/rsproule/attngate/internal/providers"
)

type recordingProvider struct {
	lastReq providers.ChatRequest
}

func (p *recordingProvider) Chat(_ context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	p.lastReq = req
	return &providers.ChatResponse{Content: `{"value": 1, "reason": "ok"}`}, nil
}

func (p *recordingProvider) DefaultModel() string { return "test-model" }
func (p *recordingProvider) Name() string         { return "test" }

func TestEstimatePromptUsesConfiguredCurrency(t *testing.T) {
	provider := &recordingProvider{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	est := NewLLMEstimator(provider, "", "EUR", time.Second, logger)

	if _, err := est.Estimate(context.Background(), json.RawMessage(`{"text":"hi"}`), ""); err != nil {
		t.Fatalf("Estimate() error = %v", err)
	}

	system := provider.lastReq.Messages[0].Content
	if !strings.Contains(system, "in EUR") {
		t.Errorf("system prompt does not price in configured currency:\n%s", system)
	}
	if strings.Contains(system, "USD") {
		t.Errorf("system prompt still mentions USD:\n%s", system)
	}
}

func TestEstimateCustomPromptReplacesValuationSection(t *testing.T) {
	provider := &recordingProvider{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	est := NewLLMEstimator(provider, "", "", time.Second, logger)

	if _, err := est.Estimate(context.Background(), json.RawMessage(`{}`), "Only billing alerts matter."); err != nil {
		t.Fatalf("Estimate() error = %v", err)
	}

	system := provider.lastReq.Messages[0].Content
	if !strings.HasPrefix(system, "Only billing alerts matter.") {
		t.Errorf("custom prompt not used:\n%s", system)
	}
	if !strings.Contains(system, `{"value": <number>, "reason": "<one sentence>"}`) {
		t.Errorf("response instruction missing from custom prompt:\n%s", system)
	}
}

func TestParseEstimate(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		wantValue  float64
		wantReason string
		wantErr    bool
	}{
		{
			name:       "bare JSON",
			content:    `{"value": 2.5, "reason": "time-sensitive"}`,
			wantValue:  2.5,
			wantReason: "time-sensitive",
		},
		{
			name:       "code-fenced JSON",
			content:    "```json\n{\"value\": 0, \"reason\": \"marketing\"}\n```",
			wantValue:  0,
			wantReason: "marketing",
		},
		{
			name:       "JSON wrapped in prose",
			content:    `Here is my assessment: {"value": 1, "reason": "routine"} Hope that helps.`,
			wantValue:  1,
			wantReason: "routine",
		},
		{
			name:    "no JSON object",
			content: "I think this is worth about a dollar.",
			wantErr: true,
		},
		{
			name:    "missing value field",
			content: `{"reason": "unsure"}`,
			wantErr: true,
		},
		{
			name:    "malformed JSON",
			content: `{"value": }`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseEstimate(tt.content)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseEstimate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if got.Value != tt.wantValue {
				t.Errorf("Value = %v, want %v", got.Value, tt.wantValue)
			}
			if got.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", got.Reason, tt.wantReason)
			}
		})
	}
}
