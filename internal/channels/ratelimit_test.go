package channels

import (
	"context"
	"testing"

	"golang.org/x/time/rate"
)

func TestSendLimiterFromConfiguredRate(t *testing.T) {
	tests := []struct {
		name      string
		perMinute int
		wantLimit rate.Limit
		wantBurst int
	}{
		{"sixty per minute", 60, rate.Limit(1), 5},
		{"burst capped by tiny rate", 2, rate.Limit(2.0 / 60), 2},
		{"zero is unlimited", 0, rate.Inf, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lim := newSendLimiters(tt.perMinute).newLimiter()
			if lim.Limit() != tt.wantLimit {
				t.Errorf("limit = %v, want %v", lim.Limit(), tt.wantLimit)
			}
			if lim.Burst() != tt.wantBurst {
				t.Errorf("burst = %d, want %d", lim.Burst(), tt.wantBurst)
			}
		})
	}
}

func TestUnlimitedSendLimiterNeverBlocks(t *testing.T) {
	s := newSendLimiters(0)
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		if err := s.wait(ctx, "telegram"); err != nil {
			t.Fatalf("wait() error = %v on iteration %d", err, i)
		}
	}
}
