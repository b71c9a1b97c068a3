package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rsproule/attngate/internal/admission"
	"github.com/rsproule/attngate/internal/batch"
	"github.com/rsproule/attngate/internal/bus"
	"github.com/rsproule/attngate/internal/channels"
	"github.com/rsproule/attngate/internal/channels/discord"
	"github.com/rsproule/attngate/internal/channels/telegram"
	"github.com/rsproule/attngate/internal/config"
	"github.com/rsproule/attngate/internal/debounce"
	"github.com/rsproule/attngate/internal/delivery"
	gatehttp "github.com/rsproule/attngate/internal/http"
	"github.com/rsproule/attngate/internal/providers"
	"github.com/rsproule/attngate/internal/resolver"
	"github.com/rsproule/attngate/internal/store"
	"github.com/rsproule/attngate/internal/store/pg"
	"github.com/rsproule/attngate/internal/store/sqlite"
	"github.com/rsproule/attngate/internal/telemetry"
	"github.com/rsproule/attngate/internal/valuation"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the notification gateway",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
}

func runServe() {
	setupLogging()

	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "path", cfgPath, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		slog.Error("telemetry setup failed", "error", err)
		os.Exit(1)
	}

	stores := openStores(cfg)

	registry := providers.NewRegistry()
	if key := cfg.Providers.Anthropic.APIKey; key != "" {
		registry.Register(providers.NewAnthropicProvider(key,
			providers.WithAnthropicModel(cfg.Providers.Anthropic.Model),
			providers.WithAnthropicBaseURL(cfg.Providers.Anthropic.BaseURL)))
	}
	if key := cfg.Providers.OpenAI.APIKey; key != "" {
		registry.Register(providers.NewOpenAIProvider("openai", key,
			cfg.Providers.OpenAI.BaseURL, cfg.Providers.OpenAI.Model))
	}

	provider, err := registry.Get(cfg.Admission.Provider)
	if err != nil {
		slog.Error("valuation provider unavailable; set the matching API key env var",
			"provider", cfg.Admission.Provider, "registered", registry.Names())
		os.Exit(1)
	}

	logger := slog.Default()
	msgBus := bus.NewMessageBus(logger)

	estimator := valuation.NewLLMEstimator(provider, cfg.Admission.Model, cfg.Admission.Currency,
		time.Duration(cfg.Admission.TimeoutMs)*time.Millisecond, logger)
	evaluator := admission.NewEvaluator(stores.Config, stores.Evaluations, estimator,
		cfg.Admission.DefaultMinimumPrice, logger)

	channelMgr := channels.NewManager(msgBus, stores.Recipients, cfg.Channels.RateLimitPerMinute)
	channelMgr.RegisterChannel(channels.NewNoopChannel(msgBus, logger))
	if cfg.Channels.Telegram.Enabled {
		tg, err := telegram.New(cfg.Channels.Telegram, msgBus)
		if err != nil {
			slog.Error("telegram channel init failed", "error", err)
			os.Exit(1)
		}
		channelMgr.RegisterChannel(tg)
	}
	if cfg.Channels.Discord.Enabled {
		dc, err := discord.New(cfg.Channels.Discord, msgBus)
		if err != nil {
			slog.Error("discord channel init failed", "error", err)
			os.Exit(1)
		}
		channelMgr.RegisterChannel(dc)
	}

	forwarder := delivery.NewForwarder(channelMgr, stores.Deliveries, logger)
	targetResolver := resolver.New(stores.Recipients, resolver.NewStoreSegments(stores.Recipients))
	processor := batch.NewProcessor(stores.Queue, targetResolver, evaluator, forwarder,
		cfg.Batch.Size, logger)
	runner := batch.NewRunner(processor,
		time.Duration(cfg.Batch.IntervalMs)*time.Millisecond, cfg.Batch.Schedule, logger)
	reaper := batch.NewReaper(stores.Queue,
		time.Duration(cfg.Batch.ReclaimAfterMs)*time.Millisecond, logger)

	coordinator := debounce.NewCoordinator(
		time.Duration(cfg.Debounce.DelayMs)*time.Millisecond,
		func(_ context.Context, msg bus.InboundMessage) {
			// Response pipeline hook: the burst has settled, the latest
			// message wins.
			slog.Info("conversation burst settled",
				"channel", msg.Channel, "chat_id", msg.ChatID, "sender_id", msg.SenderID)
		}, logger)

	reporter := delivery.NewReporter(stores.Queue, stores.Evaluations, stores.Deliveries)
	dedupe := bus.NewDedupeCache(time.Duration(cfg.Gateway.DedupeTTLMinutes)*time.Minute, 5000)
	server := gatehttp.NewServer(cfg.Gateway.Host, cfg.Gateway.Port,
		gatehttp.NewNotificationsHandler(stores.Queue, stores.Deliveries, reporter, dedupe, cfg.Gateway.Token),
		gatehttp.NewPrioritizationHandler(stores.Config, cfg.Admission.DefaultMinimumPrice, cfg.Gateway.Token),
	)

	if err := config.Watch(ctx, cfgPath, func(fresh *config.Config) {
		processor.SetBatchSize(fresh.Batch.Size)
		evaluator.SetDefaultPrice(fresh.Admission.DefaultMinimumPrice)
	}); err != nil {
		slog.Warn("config watch disabled", "error", err)
	}

	if err := channelMgr.StartAll(ctx); err != nil {
		slog.Error("channel startup failed", "error", err)
		os.Exit(1)
	}

	go consumeInboundMessages(ctx, msgBus, coordinator)
	go runner.Start(ctx)
	go reaper.Start(ctx)

	serverErr := make(chan error, 1)
	go func() { serverErr <- server.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("graceful shutdown initiated", "signal", sig)
	case err := <-serverErr:
		if err != nil {
			slog.Error("http server failed", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown error", "error", err)
	}

	cancel()
	<-runner.Done()
	<-reaper.Done()
	coordinator.Close()

	if err := channelMgr.StopAll(shutdownCtx); err != nil {
		slog.Warn("channel shutdown error", "error", err)
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
}

func setupLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func openStores(cfg *config.Config) *store.Stores {
	if cfg.IsManagedMode() {
		stores, err := pg.NewPGStores(cfg.Database.PostgresDSN)
		if err != nil {
			slog.Error("failed to open postgres stores", "error", err)
			os.Exit(1)
		}
		slog.Info("managed mode: postgres stores ready")
		return stores
	}

	path := config.ExpandHome(cfg.Database.SQLitePath)
	stores, err := sqlite.NewSQLiteStores(path)
	if err != nil {
		slog.Error("failed to open sqlite stores", "path", path, "error", err)
		os.Exit(1)
	}
	slog.Info("standalone mode: sqlite stores ready", "path", path)
	return stores
}

// consumeInboundMessages feeds inbound human messages from the channels
// into the debounce coordinator, keyed by channel-qualified chat id.
func consumeInboundMessages(ctx context.Context, msgBus *bus.MessageBus, coordinator *debounce.Coordinator) {
	slog.Info("inbound message consumer started")

	for {
		msg, ok := msgBus.ConsumeInbound(ctx)
		if !ok {
			slog.Info("inbound message consumer stopped")
			return
		}
		conversationID := msg.Channel + ":" + msg.ChatID
		at := msg.CreatedAt
		if at.IsZero() {
			at = time.Now()
		}
		coordinator.Observe(conversationID, msg, at)
	}
}
