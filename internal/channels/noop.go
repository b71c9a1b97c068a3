package channels

import (
	"context"
	"log/slog"

	"github.com/rsproule/attngate/internal/bus"
)

// NoopChannel accepts every send and logs it. Used for recipients
// without a platform binding and as a drop-in during dry runs.
type NoopChannel struct {
	*BaseChannel
	logger *slog.Logger
}

func NewNoopChannel(msgBus *bus.MessageBus, logger *slog.Logger) *NoopChannel {
	return &NoopChannel{
		BaseChannel: NewBaseChannel("noop", msgBus),
		logger:      logger.With("channel", "noop"),
	}
}

func (c *NoopChannel) Start(_ context.Context) error {
	c.SetRunning(true)
	return nil
}

func (c *NoopChannel) Stop(_ context.Context) error {
	c.SetRunning(false)
	return nil
}

func (c *NoopChannel) Send(_ context.Context, msg bus.OutboundMessage) error {
	c.logger.Info("noop send", "chat_id", msg.ChatID, "request_id", msg.RequestID, "content", msg.Content)
	return nil
}
