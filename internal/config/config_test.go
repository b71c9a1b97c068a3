package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Gateway.Port != 8790 {
		t.Errorf("port = %d, want default 8790", cfg.Gateway.Port)
	}
	if cfg.Admission.DefaultMinimumPrice != 1.0 {
		t.Errorf("default price = %v, want 1.0", cfg.Admission.DefaultMinimumPrice)
	}
	if cfg.IsManagedMode() {
		t.Error("managed mode without postgres config, want sqlite")
	}
}

func TestLoadFileWithComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
	// local dev setup
	gateway: { port: 9001 },
	batch: { size: 25 },
	admission: { default_minimum_price: 2.5 },
}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Gateway.Port != 9001 {
		t.Errorf("port = %d, want 9001", cfg.Gateway.Port)
	}
	if cfg.Batch.Size != 25 {
		t.Errorf("batch size = %d, want 25", cfg.Batch.Size)
	}
	if cfg.Admission.DefaultMinimumPrice != 2.5 {
		t.Errorf("default price = %v, want 2.5", cfg.Admission.DefaultMinimumPrice)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{gateway: {port: 9001}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("ATTNGATE_PORT", "9002")
	t.Setenv("ATTNGATE_GATEWAY_TOKEN", "sekrit")
	t.Setenv("ATTNGATE_TELEGRAM_TOKEN", "tg-token")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Gateway.Port != 9002 {
		t.Errorf("port = %d, want env override 9002", cfg.Gateway.Port)
	}
	if cfg.Gateway.Token != "sekrit" {
		t.Errorf("token = %q, want env value", cfg.Gateway.Token)
	}
	if !cfg.Channels.Telegram.Enabled {
		t.Error("telegram not auto-enabled by token env var")
	}
}

func TestManagedModeRequiresDSN(t *testing.T) {
	t.Setenv("ATTNGATE_MODE", "managed")
	t.Setenv("ATTNGATE_POSTGRES_DSN", "postgres://localhost/attngate")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.IsManagedMode() {
		t.Error("want managed mode when mode and DSN are set")
	}
}

func TestExpandHome(t *testing.T) {
	home, _ := os.UserHomeDir()
	tests := []struct {
		in, want string
	}{
		{"~/.attngate/attngate.db", home + "/.attngate/attngate.db"},
		{"~", home},
		{"/var/lib/attngate.db", "/var/lib/attngate.db"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ExpandHome(tt.in); got != tt.want {
			t.Errorf("ExpandHome(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
