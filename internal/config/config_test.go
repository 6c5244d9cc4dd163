package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"genprovider/internal/models"
)

const sample = `
server:
  port: 9090
log_level: debug
active_provider: claude
retry:
  max_attempts: 3
  initial_backoff: 250ms
  max_backoff: 4s
providers:
  openai:
    enabled: false
  anthropic:
    enabled: true
    api_key: ${TEST_ANTHROPIC_KEY}
    default_model: claude-3-haiku
    models: [claude-3-haiku, claude-3-opus]
    timeout: 30s
    max_retries: 2
    rate_limits:
      requests_per_minute: 50
    headers:
      X-Team: research
  ollama:
    enabled: true
    api_base_url: http://gpu-box:11434
`

func TestParseExpandsEnvironmentAndAppliesDefaults(t *testing.T) {
	t.Setenv("TEST_ANTHROPIC_KEY", "sk-ant-test")

	cfg, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Server.Port != 9090 || cfg.LogLevel != "debug" {
		t.Fatalf("unexpected server settings %+v %q", cfg.Server, cfg.LogLevel)
	}
	if cfg.Retry.MaxAttempts != 3 || cfg.Retry.InitialBackoff != 250*time.Millisecond || cfg.Retry.MaxBackoff != 4*time.Second {
		t.Fatalf("unexpected retry settings %+v", cfg.Retry)
	}

	anthropic := cfg.Provider(models.ProviderAnthropic)
	if anthropic.APIKey != "sk-ant-test" {
		t.Fatalf("api key was not expanded from the environment: %q", anthropic.APIKey)
	}
	if anthropic.BaseURL != DefaultAnthropicBaseURL || anthropic.Timeout != 30*time.Second {
		t.Fatalf("unexpected anthropic settings %+v", anthropic)
	}
	if anthropic.Headers["X-Team"] != "research" || anthropic.RateLimits.RequestsPerMinute != 50 {
		t.Fatalf("unexpected anthropic extras %+v", anthropic)
	}

	ollama := cfg.Provider(models.ProviderOllama)
	if ollama.BaseURL != "http://gpu-box:11434" || ollama.DefaultModel != models.ProviderOllama.DefaultModel() || ollama.Timeout != defaultTimeout {
		t.Fatalf("unexpected ollama defaults %+v", ollama)
	}

	active, err := cfg.Active()
	if err != nil || active != models.ProviderAnthropic {
		t.Fatalf("expected anthropic to be active, got %v %v", active, err)
	}
}

func TestDefaultIsLocalOnly(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
	active, err := cfg.Active()
	if err != nil || active != models.ProviderOllama {
		t.Fatalf("expected ollama as the default provider, got %v %v", active, err)
	}
	if cfg.Provider(models.ProviderOpenAI).Enabled || cfg.Provider(models.ProviderAnthropic).Enabled {
		t.Fatal("hosted providers must be disabled by default")
	}
}

func TestActiveFallsBackToFirstEnabled(t *testing.T) {
	cfg := Default()
	cfg.ActiveProvider = ""
	cfg.Providers.Anthropic = ProviderConfig{Enabled: true, APIKey: "k", BaseURL: DefaultAnthropicBaseURL}

	active, err := cfg.Active()
	if err != nil || active != models.ProviderAnthropic {
		t.Fatalf("expected the first enabled provider, got %v %v", active, err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"negative retries", func(c *Config) { c.Retry.MaxAttempts = -1 }, "max_attempts"},
		{"backoff order", func(c *Config) { c.Retry.MaxBackoff = time.Millisecond }, "max_backoff"},
		{"missing key", func(c *Config) { c.Providers.OpenAI.Enabled = true }, "api_key"},
		{"bad scheme", func(c *Config) { c.Providers.Ollama.BaseURL = "ftp://host" }, "http or https"},
		{"no host", func(c *Config) { c.Providers.Ollama.BaseURL = "http://" }, "no host"},
		{"empty model", func(c *Config) { c.Providers.Ollama.Models = []string{" "} }, "model id"},
		{"header", func(c *Config) { c.Providers.Ollama.Headers = Headers{"X Bad": "v"} }, "header"},
		{"negative timeout", func(c *Config) { c.Providers.Ollama.Timeout = -time.Second }, "timeout"},
		{"unknown active", func(c *Config) { c.ActiveProvider = "gemini" }, "unknown provider"},
		{"disabled active", func(c *Config) { c.ActiveProvider = "openai" }, "not enabled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("log_level: warn\nproviders:\n  ollama:\n    enabled: true\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("unexpected log level %q", cfg.LogLevel)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil || !strings.Contains(err.Error(), "read config file") {
		t.Fatalf("expected read error, got %v", err)
	}
}
