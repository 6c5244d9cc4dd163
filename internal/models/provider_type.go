package models

import (
	"fmt"
	"strings"
)

// ProviderType identifies a backend protocol family.
type ProviderType int

const (
	// ProviderOpenAI is the hosted OpenAI-style chat completions API.
	ProviderOpenAI ProviderType = iota
	// ProviderAnthropic is the hosted Anthropic-style messages API.
	ProviderAnthropic
	// ProviderOllama is a locally hosted line-delimited JSON chat API.
	ProviderOllama
)

// AllProviderTypes lists every supported provider in a stable order.
var AllProviderTypes = []ProviderType{ProviderOpenAI, ProviderAnthropic, ProviderOllama}

// String returns the canonical provider tag.
func (p ProviderType) String() string {
	switch p {
	case ProviderOpenAI:
		return "openai"
	case ProviderAnthropic:
		return "anthropic"
	case ProviderOllama:
		return "ollama"
	default:
		return "unknown"
	}
}

// DefaultModel returns the model used when configuration names none.
func (p ProviderType) DefaultModel() string {
	switch p {
	case ProviderOpenAI:
		return "gpt-4o-mini"
	case ProviderAnthropic:
		return "claude-3-5-sonnet"
	case ProviderOllama:
		return "llama3.1:8b"
	default:
		return ""
	}
}

// ParseProviderType parses a provider tag (case-insensitive, with aliases).
func ParseProviderType(s string) (ProviderType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "openai", "gpt":
		return ProviderOpenAI, nil
	case "anthropic", "claude":
		return ProviderAnthropic, nil
	case "ollama", "local":
		return ProviderOllama, nil
	default:
		return 0, fmt.Errorf("unknown provider: %q", s)
	}
}

func (p ProviderType) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *ProviderType) UnmarshalText(text []byte) error {
	parsed, err := ParseProviderType(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
