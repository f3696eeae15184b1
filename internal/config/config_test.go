package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, "kazi.yaml", `
server:
  listen_addr: ":9090"
  api_keys:
    secret-key: user-1
providers:
  default: openai
  openai:
    api_key: sk-test
    model: gpt-4o-mini
chat:
  context_window: 10
storage:
  driver: sqlite
  sqlite:
    path: /tmp/kazi-test.db
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr() != ":9090" {
		t.Errorf("Addr() = %q", cfg.Server.Addr())
	}
	if cfg.Server.APIKeys["secret-key"] != "user-1" {
		t.Errorf("APIKeys = %v", cfg.Server.APIKeys)
	}
	if cfg.Chat.Window() != 10 {
		t.Errorf("Window() = %d", cfg.Chat.Window())
	}
	if cfg.StorageDriverName() != "sqlite" {
		t.Errorf("StorageDriverName() = %q", cfg.StorageDriverName())
	}
}

func TestLoad_JSONWithDefaults(t *testing.T) {
	path := writeConfig(t, "kazi.json", `{
  "providers": {"openai": {"api_key": "sk-test", "model": "gpt-4o-mini"}}
}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Providers.Default != "openai" {
		t.Errorf("Default = %q", cfg.Providers.Default)
	}
	if cfg.Server.Addr() != ":8080" {
		t.Errorf("Addr() = %q", cfg.Server.Addr())
	}
	if cfg.Chat.Window() != 6 {
		t.Errorf("Window() = %d", cfg.Chat.Window())
	}
	if cfg.Chat.Iterations() != 10 {
		t.Errorf("Iterations() = %d", cfg.Chat.Iterations())
	}
	if cfg.Server.RateLimit.Limit() != 5 {
		t.Errorf("rate limit = %d", cfg.Server.RateLimit.Limit())
	}
	if cfg.Server.RateLimit.Window() != 60*time.Second {
		t.Errorf("rate window = %v", cfg.Server.RateLimit.Window())
	}
	if cfg.StorageDriverName() != "sqlite" {
		t.Errorf("StorageDriverName() = %q", cfg.StorageDriverName())
	}
}

func TestLoad_MissingProviderKey(t *testing.T) {
	path := writeConfig(t, "kazi.json", `{
  "providers": {"openai": {"model": "gpt-4o-mini"}}
}`)

	t.Setenv("OPENAI_API_KEY", "")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing api_key")
	}
}

func TestLoad_EnvOverridesKey(t *testing.T) {
	path := writeConfig(t, "kazi.json", `{
  "providers": {"openai": {"api_key": "from-file", "model": "gpt-4o-mini"}}
}`)

	t.Setenv("OPENAI_API_KEY", "from-env")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Providers.OpenAI.APIKey != "from-env" {
		t.Errorf("APIKey = %q, want env override", cfg.Providers.OpenAI.APIKey)
	}
}

func TestLoad_InvalidStorageDriver(t *testing.T) {
	path := writeConfig(t, "kazi.yaml", `
providers:
  openai:
    api_key: sk-test
    model: gpt-4o-mini
storage:
  driver: mysql
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestLoad_PostgresRequiresDSN(t *testing.T) {
	path := writeConfig(t, "kazi.yaml", `
providers:
  openai:
    api_key: sk-test
    model: gpt-4o-mini
storage:
  driver: postgres
`)

	t.Setenv("KAZI_DB_DSN", "")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing postgres DSN")
	}
}

func TestRateLimit_NegativeDisables(t *testing.T) {
	rl := RateLimitConfig{Requests: -1}
	if rl.Limit() != 0 {
		t.Errorf("Limit() = %d, want 0 (unlimited)", rl.Limit())
	}
}
