package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rsproule/attngate/internal/bus"
	"github.com/rsproule/attngate/internal/store"
)

// Manager manages all registered channels, handling their lifecycle,
// routing bus outbound messages to the correct channel, and serving as
// the delivery pipeline's outbound-send capability.
type Manager struct {
	channels   map[string]Channel
	bus        *bus.MessageBus
	recipients store.RecipientStore
	limiters   *sendLimiters
	cancel     context.CancelFunc
	mu         sync.RWMutex
}

// NewManager wires the channel registry to the bus and recipient
// directory. sendRatePerMinute caps outbound sends per channel; zero
// means unlimited.
func NewManager(msgBus *bus.MessageBus, recipients store.RecipientStore, sendRatePerMinute int) *Manager {
	return &Manager{
		channels:   make(map[string]Channel),
		bus:        msgBus,
		recipients: recipients,
		limiters:   newSendLimiters(sendRatePerMinute),
	}
}

// RegisterChannel adds a channel. Call before StartAll.
func (m *Manager) RegisterChannel(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[ch.Name()] = ch
}

// StartAll starts all registered channels and the outbound dispatch loop.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	dispatchCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	go m.dispatchOutbound(dispatchCtx)

	if len(m.channels) == 0 {
		slog.Warn("no channels enabled")
		return nil
	}

	for name, channel := range m.channels {
		slog.Info("starting channel", "channel", name)
		if err := channel.Start(ctx); err != nil {
			slog.Error("failed to start channel", "channel", name, "error", err)
		}
	}

	return nil
}

// StopAll gracefully stops all channels and the dispatch loop.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}

	for name, channel := range m.channels {
		slog.Info("stopping channel", "channel", name)
		if err := channel.Stop(ctx); err != nil {
			slog.Error("error stopping channel", "channel", name, "error", err)
		}
	}

	return nil
}

// Send resolves the recipient's channel binding and delivers the
// request payload synchronously. This is the delivery.Sender used by
// the forwarder, so the outcome must be known before returning.
func (m *Manager) Send(ctx context.Context, conversationID string, req *store.QueuedRequest) error {
	rec, err := m.recipients.ByConversation(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("recipient %s: %w", conversationID, err)
	}

	m.mu.RLock()
	channel, exists := m.channels[rec.Channel]
	m.mu.RUnlock()
	if !exists {
		return fmt.Errorf("channel %q not registered", rec.Channel)
	}

	if err := m.limiters.wait(ctx, rec.Channel); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	return channel.Send(ctx, bus.OutboundMessage{
		Channel:   rec.Channel,
		ChatID:    rec.ChatID,
		Content:   RenderContent(req.Payload, req.Source),
		RequestID: req.ID.String(),
	})
}

// dispatchOutbound consumes bus outbound messages (debounce replies and
// other asynchronous sends) and routes them to their channel.
func (m *Manager) dispatchOutbound(ctx context.Context) {
	slog.Info("outbound dispatcher started")

	for {
		msg, ok := m.bus.SubscribeOutbound(ctx)
		if !ok {
			slog.Info("outbound dispatcher stopped")
			return
		}

		m.mu.RLock()
		channel, exists := m.channels[msg.Channel]
		m.mu.RUnlock()
		if !exists {
			slog.Warn("unknown channel for outbound message", "channel", msg.Channel)
			continue
		}

		if err := m.limiters.wait(ctx, msg.Channel); err != nil {
			return
		}
		if err := channel.Send(ctx, msg); err != nil {
			slog.Error("error sending message to channel", "channel", msg.Channel, "error", err)
		}
	}
}

// RenderContent turns an opaque notification payload into message text.
// A top-level "text" field is used verbatim; anything else is sent as
// compact JSON with the source prefixed.
func RenderContent(payload json.RawMessage, source string) string {
	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(payload, &parsed); err == nil && parsed.Text != "" {
		if source != "" {
			return fmt.Sprintf("[%s] %s", source, parsed.Text)
		}
		return parsed.Text
	}

	compact := string(payload)
	if source != "" {
		return fmt.Sprintf("[%s] %s", source, compact)
	}
	return compact
}
