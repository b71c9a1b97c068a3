package telegram

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mymmrac/telego"

	"github.com/rsproule/attngate/internal/bus"
	"github.com/rsproule/attngate/internal/channels"
)

func newHandlerChannel() (*Channel, *bus.MessageBus) {
	msgBus := bus.NewMessageBus(slog.New(slog.NewTextHandler(io.Discard, nil)))
	return &Channel{BaseChannel: channels.NewBaseChannel("telegram", msgBus)}, msgBus
}

func TestHandleMessageCarriesTelegramTimestamp(t *testing.T) {
	c, msgBus := newHandlerChannel()
	sent := time.Date(2026, 8, 1, 12, 30, 0, 0, time.UTC)

	c.handleMessage(&telego.Message{
		Date: sent.Unix(),
		Text: "hello",
		From: &telego.User{ID: 42},
		Chat: telego.Chat{ID: 7},
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, ok := msgBus.ConsumeInbound(ctx)
	if !ok {
		t.Fatal("no inbound message published")
	}
	if !msg.CreatedAt.Equal(sent) {
		t.Errorf("CreatedAt = %v, want %v", msg.CreatedAt, sent)
	}
	if msg.SenderID != "42" || msg.ChatID != "7" {
		t.Errorf("sender/chat = %s/%s, want 42/7", msg.SenderID, msg.ChatID)
	}
}

func TestHandleMessageIgnoresBotsAndEmptyText(t *testing.T) {
	c, msgBus := newHandlerChannel()

	c.handleMessage(&telego.Message{Date: 1, Text: "", From: &telego.User{ID: 1}})
	c.handleMessage(&telego.Message{Date: 1, Text: "hi", From: &telego.User{ID: 1, IsBot: true}})
	c.handleMessage(&telego.Message{Date: 1, Text: "hi"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if msg, ok := msgBus.ConsumeInbound(ctx); ok {
		t.Fatalf("unexpected message published: %+v", msg)
	}
}
