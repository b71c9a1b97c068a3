package channels

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

const maxSendBurst = 5

// sendLimiters throttles outbound sends per channel so one burst of
// admitted notifications cannot trip a platform's flood control.
// perMinute is the configured cap; zero means unlimited.
type sendLimiters struct {
	perMinute int
	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
}

func newSendLimiters(perMinute int) *sendLimiters {
	return &sendLimiters{
		perMinute: perMinute,
		limiters:  make(map[string]*rate.Limiter),
	}
}

func (s *sendLimiters) newLimiter() *rate.Limiter {
	if s.perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := maxSendBurst
	if burst > s.perMinute {
		burst = s.perMinute
	}
	return rate.NewLimiter(rate.Limit(float64(s.perMinute))/60, burst)
}

func (s *sendLimiters) wait(ctx context.Context, channel string) error {
	s.mu.Lock()
	lim, ok := s.limiters[channel]
	if !ok {
		lim = s.newLimiter()
		s.limiters[channel] = lim
	}
	s.mu.Unlock()

	return lim.Wait(ctx)
}
