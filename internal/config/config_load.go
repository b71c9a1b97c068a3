package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Host:             "0.0.0.0",
			Port:             8790,
			DedupeTTLMinutes: 20,
		},
		Admission: AdmissionConfig{
			DefaultMinimumPrice: 1.0,
			Currency:            "USD",
			Provider:            "anthropic",
			TimeoutMs:           10000,
		},
		Batch: BatchConfig{
			Size:           10,
			IntervalMs:     5000,
			ReclaimAfterMs: 600000,
		},
		Debounce: DebounceConfig{
			DelayMs: 5000,
		},
		Database: DatabaseConfig{
			SQLitePath: "~/.attngate/attngate.db",
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars.
// A missing file is not an error: defaults plus env apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values; secrets are env-only.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	envStr("ATTNGATE_GATEWAY_TOKEN", &c.Gateway.Token)
	envStr("ATTNGATE_ANTHROPIC_API_KEY", &c.Providers.Anthropic.APIKey)
	envStr("ATTNGATE_OPENAI_API_KEY", &c.Providers.OpenAI.APIKey)
	envStr("ATTNGATE_TELEGRAM_TOKEN", &c.Channels.Telegram.Token)
	envStr("ATTNGATE_DISCORD_TOKEN", &c.Channels.Discord.Token)
	envStr("ATTNGATE_POSTGRES_DSN", &c.Database.PostgresDSN)
	envStr("ATTNGATE_MODE", &c.Database.Mode)
	envStr("ATTNGATE_SQLITE_PATH", &c.Database.SQLitePath)

	// Auto-enable channels if credentials are provided via env
	if c.Channels.Telegram.Token != "" {
		c.Channels.Telegram.Enabled = true
	}
	if c.Channels.Discord.Token != "" {
		c.Channels.Discord.Enabled = true
	}

	envStr("ATTNGATE_PROVIDER", &c.Admission.Provider)
	envStr("ATTNGATE_MODEL", &c.Admission.Model)

	envStr("ATTNGATE_HOST", &c.Gateway.Host)
	if v := os.Getenv("ATTNGATE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Gateway.Port = port
		}
	}

	// Telemetry
	envStr("ATTNGATE_TELEMETRY_ENDPOINT", &c.Telemetry.Endpoint)
	envStr("ATTNGATE_TELEMETRY_PROTOCOL", &c.Telemetry.Protocol)
	envStr("ATTNGATE_TELEMETRY_SERVICE_NAME", &c.Telemetry.ServiceName)
	if v := os.Getenv("ATTNGATE_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("ATTNGATE_TELEMETRY_INSECURE"); v != "" {
		c.Telemetry.Insecure = v == "true" || v == "1"
	}
}

// ExpandHome replaces leading ~ with the user home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, _ := os.UserHomeDir()
	if len(path) > 1 && path[1] == '/' {
		return home + path[1:]
	}
	return home
}
