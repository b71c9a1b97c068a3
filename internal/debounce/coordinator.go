// Package debounce coalesces bursts of inbound human messages into a
// single downstream trigger per conversation.
package debounce

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rsproule/attngate/internal/bus"
)

// Handler receives the last message of a coalesced burst.
type Handler func(ctx context.Context, msg bus.InboundMessage)

type window struct {
	latest time.Time
	msg    bus.InboundMessage
}

// Coordinator implements last-write-wins burst coalescing. Every
// observation overwrites the stored latest timestamp for its
// conversation and schedules its own delayed trigger; at fire time a
// trigger proceeds only if its carried timestamp still equals the
// stored latest. Superseded timers fire and drop, no cancellation.
type Coordinator struct {
	mu      sync.Mutex
	windows map[string]window

	delay   time.Duration
	handler Handler
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewCoordinator(delay time.Duration, handler Handler, logger *slog.Logger) *Coordinator {
	if delay <= 0 {
		delay = 5 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		windows: make(map[string]window),
		delay:   delay,
		handler: handler,
		logger:  logger.With("component", "debounce"),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Observe records msg as the latest activity for conversationID and
// schedules a trigger that fires after the configured delay.
func (c *Coordinator) Observe(conversationID string, msg bus.InboundMessage, at time.Time) {
	c.mu.Lock()
	c.windows[conversationID] = window{latest: at, msg: msg}
	c.mu.Unlock()

	c.wg.Add(1)
	time.AfterFunc(c.delay, func() {
		defer c.wg.Done()
		c.fire(conversationID, at)
	})
}

func (c *Coordinator) fire(conversationID string, scheduled time.Time) {
	select {
	case <-c.ctx.Done():
		return
	default:
	}

	c.mu.Lock()
	win, ok := c.windows[conversationID]
	if !ok || !win.latest.Equal(scheduled) {
		c.mu.Unlock()
		c.logger.Debug("superseded trigger dropped", "conversation_id", conversationID)
		return
	}
	delete(c.windows, conversationID)
	c.mu.Unlock()

	c.logger.Debug("burst settled, triggering", "conversation_id", conversationID)
	c.handler(c.ctx, win.msg)
}

// Close stops future triggers and waits for in-flight timers to drain.
func (c *Coordinator) Close() {
	c.cancel()
	c.wg.Wait()
}
