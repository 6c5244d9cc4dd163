package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"genprovider/internal/models"
)

const (
	defaultPort           = 8080
	defaultTimeout        = 60 * time.Second
	defaultInitialBackoff = 500 * time.Millisecond
	defaultMaxBackoff     = 8 * time.Second

	DefaultOpenAIBaseURL    = "https://api.openai.com/v1"
	DefaultAnthropicBaseURL = "https://api.anthropic.com"
	DefaultOllamaBaseURL    = "http://localhost:11434"
)

// Config represents the application configuration parsed from YAML.
type Config struct {
	Server         ServerConfig    `yaml:"server"`
	LogLevel       string          `yaml:"log_level"`
	ActiveProvider string          `yaml:"active_provider"`
	Retry          RetryConfig     `yaml:"retry"`
	Providers      ProvidersConfig `yaml:"providers"`
}

// ServerConfig defines listener configuration.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// RetryConfig bounds the optional retry wrapper. MaxAttempts <= 1 disables it.
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

// ProvidersConfig catalogues the configured backends.
type ProvidersConfig struct {
	OpenAI    ProviderConfig `yaml:"openai"`
	Anthropic ProviderConfig `yaml:"anthropic"`
	Ollama    ProviderConfig `yaml:"ollama"`
}

// ProviderConfig captures authentication, endpoint and model info for a backend.
type ProviderConfig struct {
	Enabled      bool          `yaml:"enabled"`
	APIKey       string        `yaml:"api_key"`
	BaseURL      string        `yaml:"api_base_url"`
	DefaultModel string        `yaml:"default_model"`
	Models       []string      `yaml:"models"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	RateLimits   RateLimits    `yaml:"rate_limits"`
	Headers      Headers       `yaml:"headers"`
}

// RateLimits are advisory hints surfaced through adapter capabilities.
type RateLimits struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	TokensPerMinute   int `yaml:"tokens_per_minute"`
}

// Headers contains additional HTTP headers to send with a provider request.
type Headers map[string]string

// Default returns a configuration that only talks to a local runtime.
func Default() Config {
	cfg := Config{
		Server:         ServerConfig{Port: defaultPort},
		LogLevel:       "info",
		ActiveProvider: models.ProviderOllama.String(),
		Providers: ProvidersConfig{
			OpenAI:    ProviderConfig{BaseURL: DefaultOpenAIBaseURL},
			Anthropic: ProviderConfig{BaseURL: DefaultAnthropicBaseURL},
			Ollama:    ProviderConfig{Enabled: true, BaseURL: DefaultOllamaBaseURL},
		},
	}
	cfg.applyDefaults()
	return cfg
}

// Load reads YAML configuration from disk, expands ${VAR} references from
// the environment and validates the result.
func Load(path string) (Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "resolve config path")
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config file %q", absPath)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, errors.Wrapf(err, "config file %q", absPath)
	}
	return cfg, nil
}

// Parse decodes and validates configuration bytes.
func Parse(data []byte) (Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, errors.Wrap(err, "parse yaml")
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Retry.InitialBackoff == 0 {
		c.Retry.InitialBackoff = defaultInitialBackoff
	}
	if c.Retry.MaxBackoff == 0 {
		c.Retry.MaxBackoff = defaultMaxBackoff
	}

	defaults := map[models.ProviderType]string{
		models.ProviderOpenAI:    DefaultOpenAIBaseURL,
		models.ProviderAnthropic: DefaultAnthropicBaseURL,
		models.ProviderOllama:    DefaultOllamaBaseURL,
	}
	for _, pt := range models.AllProviderTypes {
		pc := c.Providers.For(pt)
		if pc.BaseURL == "" {
			pc.BaseURL = defaults[pt]
		}
		if pc.DefaultModel == "" {
			pc.DefaultModel = pt.DefaultModel()
		}
		if pc.Timeout == 0 {
			pc.Timeout = defaultTimeout
		}
	}
}

// For returns the settings block of a provider type.
func (p *ProvidersConfig) For(pt models.ProviderType) *ProviderConfig {
	switch pt {
	case models.ProviderAnthropic:
		return &p.Anthropic
	case models.ProviderOllama:
		return &p.Ollama
	default:
		return &p.OpenAI
	}
}

// Provider returns a copy of the settings block of a provider type.
func (c Config) Provider(pt models.ProviderType) ProviderConfig {
	return *c.Providers.For(pt)
}

// Active resolves the active provider type. An empty setting picks the
// first enabled provider.
func (c Config) Active() (models.ProviderType, error) {
	if strings.TrimSpace(c.ActiveProvider) != "" {
		return models.ParseProviderType(c.ActiveProvider)
	}
	for _, pt := range models.AllProviderTypes {
		if c.Provider(pt).Enabled {
			return pt, nil
		}
	}
	return 0, errors.New("no provider is enabled")
}

// Validate performs strict sanity checks on the configuration.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port, got %d", c.Server.Port)
	}
	if c.Retry.MaxAttempts < 0 {
		return fmt.Errorf("retry.max_attempts must not be negative, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.MaxBackoff < c.Retry.InitialBackoff {
		return fmt.Errorf("retry.max_backoff %s is shorter than retry.initial_backoff %s", c.Retry.MaxBackoff, c.Retry.InitialBackoff)
	}

	for _, pt := range models.AllProviderTypes {
		if err := validateProvider(pt, c.Provider(pt)); err != nil {
			return err
		}
	}

	active, err := c.Active()
	if err != nil {
		return err
	}
	if !c.Provider(active).Enabled {
		return fmt.Errorf("active_provider %s is not enabled", active)
	}
	return nil
}

func validateProvider(pt models.ProviderType, provider ProviderConfig) error {
	name := pt.String()
	if !provider.Enabled {
		return nil
	}
	if pt != models.ProviderOllama && strings.TrimSpace(provider.APIKey) == "" {
		return fmt.Errorf("provider %s: api_key must be provided", name)
	}
	if err := validateBaseURL(provider.BaseURL); err != nil {
		return fmt.Errorf("provider %s: %w", name, err)
	}
	if provider.Timeout < 0 {
		return fmt.Errorf("provider %s: timeout must not be negative", name)
	}
	if provider.MaxRetries < 0 {
		return fmt.Errorf("provider %s: max_retries must not be negative", name)
	}
	if provider.RateLimits.RequestsPerMinute < 0 || provider.RateLimits.TokensPerMinute < 0 {
		return fmt.Errorf("provider %s: rate limits must not be negative", name)
	}

	for _, model := range provider.Models {
		if strings.TrimSpace(model) == "" {
			return fmt.Errorf("provider %s: model id must not be empty", name)
		}
	}

	for headerKey := range provider.Headers {
		if !isCanonicalHTTPHeader(headerKey) {
			return fmt.Errorf("provider %s: header %q is not a valid canonical HTTP header", name, headerKey)
		}
	}
	return nil
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("api_base_url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api_base_url %q must use http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("api_base_url %q has no host", raw)
	}
	return nil
}

func isCanonicalHTTPHeader(header string) bool {
	if header == "" {
		return false
	}

	for _, r := range header {
		if !(r == '-' || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')) {
			return false
		}
	}
	return true
}
