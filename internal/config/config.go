package config

// Config is the root configuration for the attngate daemon.
type Config struct {
	Gateway   GatewayConfig   `json:"gateway"`
	Admission AdmissionConfig `json:"admission"`
	Batch     BatchConfig     `json:"batch"`
	Debounce  DebounceConfig  `json:"debounce"`
	Providers ProvidersConfig `json:"providers"`
	Channels  ChannelsConfig  `json:"channels"`
	Database  DatabaseConfig  `json:"database,omitempty"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`
}

// GatewayConfig configures the HTTP API listener.
type GatewayConfig struct {
	Host  string `json:"host"`
	Port  int    `json:"port"`
	Token string `json:"-"` // from env ATTNGATE_GATEWAY_TOKEN only

	// DedupeTTLMinutes bounds the ingestion idempotency-key window.
	DedupeTTLMinutes int `json:"dedupe_ttl_minutes,omitempty"`
}

// AdmissionConfig configures the evaluator defaults.
type AdmissionConfig struct {
	// DefaultMinimumPrice applies to recipients without a stored policy.
	DefaultMinimumPrice float64 `json:"default_minimum_price"`
	// Currency is the unit the valuation prompt prices content in.
	Currency string `json:"currency"`
	// Provider / Model select the valuation LLM; empty model uses the
	// provider default.
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
	// TimeoutMs is the hard per-call valuation timeout. The call is retried
	// once; after that the evaluation fails closed.
	TimeoutMs int `json:"timeout_ms"`
}

// BatchConfig configures the queue batch processor.
type BatchConfig struct {
	Size       int    `json:"size"`
	IntervalMs int    `json:"interval_ms"`
	// Schedule, when set, is a cron expression that replaces the fixed
	// interval (e.g. "*/1 * * * *").
	Schedule string `json:"schedule,omitempty"`
	// ReclaimAfterMs returns requests stuck in processing to pending.
	// 0 disables the reaper.
	ReclaimAfterMs int `json:"reclaim_after_ms,omitempty"`
}

// DebounceConfig configures burst coalescing of inbound human messages.
type DebounceConfig struct {
	DelayMs int `json:"delay_ms"`
}

// ProvidersConfig holds valuation LLM provider credentials.
type ProvidersConfig struct {
	Anthropic ProviderConfig `json:"anthropic,omitempty"`
	OpenAI    ProviderConfig `json:"openai,omitempty"`
}

// ProviderConfig is one LLM provider's settings. API keys come from env only.
type ProviderConfig struct {
	APIKey  string `json:"-"`
	Model   string `json:"model,omitempty"`
	BaseURL string `json:"base_url,omitempty"`
}

// ChannelsConfig configures outbound delivery channels.
type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram,omitempty"`
	Discord  DiscordConfig  `json:"discord,omitempty"`
	// RateLimitPerMinute caps outbound sends per channel (0 = unlimited).
	RateLimitPerMinute int `json:"rate_limit_per_minute,omitempty"`
}

// TelegramConfig configures the Telegram bot channel.
type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"-"` // from env ATTNGATE_TELEGRAM_TOKEN only
}

// DiscordConfig configures the Discord bot channel.
type DiscordConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"-"` // from env ATTNGATE_DISCORD_TOKEN only
}

// DatabaseConfig selects the store backend.
// PostgresDSN is never read from the config file (secret); env only.
type DatabaseConfig struct {
	Mode        string `json:"mode,omitempty"` // "standalone" (default) or "managed"
	PostgresDSN string `json:"-"`              // from env ATTNGATE_POSTGRES_DSN only
	SQLitePath  string `json:"sqlite_path,omitempty"`
}

// IsManagedMode reports whether the daemon runs against Postgres.
func (c *Config) IsManagedMode() bool {
	return c.Database.Mode == "managed" && c.Database.PostgresDSN != ""
}

// TelemetryConfig configures the optional OTLP trace exporter.
type TelemetryConfig struct {
	Enabled     bool   `json:"enabled,omitempty"`
	Endpoint    string `json:"endpoint,omitempty"`
	Protocol    string `json:"protocol,omitempty"` // "grpc" (default) or "http"
	ServiceName string `json:"service_name,omitempty"`
	Insecure    bool   `json:"insecure,omitempty"`
}
