package openai

import (
	"strings"

	"genprovider/internal/models"
)

var chatFamilies = []string{"gpt-", "o1", "o3", "o4", "chatgpt-"}

// supportedFamily filters the discovery listing down to chat models;
// embeddings, audio, image and moderation models are dropped.
func supportedFamily(id string) bool {
	lower := strings.ToLower(id)
	for _, prefix := range chatFamilies {
		if strings.HasPrefix(lower, prefix) {
			return !strings.Contains(lower, "instruct") &&
				!strings.Contains(lower, "audio") &&
				!strings.Contains(lower, "realtime") &&
				!strings.Contains(lower, "transcribe") &&
				!strings.Contains(lower, "tts") &&
				!strings.Contains(lower, "image")
		}
	}
	return false
}

// describe annotates a discovered model that is not in the declared
// catalog from its naming pattern. Costs stay unknown.
func describe(id string) models.ModelDescriptor {
	lower := strings.ToLower(id)
	caps := models.ModelCapabilities{
		Streaming:       true,
		FunctionCalling: true,
		SystemPrompt:    true,
		MaxOutputTokens: 4096,
		ContentFormats:  []string{"text"},
	}
	contextLength := 16385

	switch {
	case strings.HasPrefix(lower, "o1"), strings.HasPrefix(lower, "o3"), strings.HasPrefix(lower, "o4"):
		contextLength = 128000
		caps.MaxOutputTokens = 65536
		caps.SystemPrompt = !strings.HasPrefix(lower, "o1-mini")
		caps.Vision = !strings.Contains(lower, "mini") || strings.HasPrefix(lower, "o4")
	case strings.HasPrefix(lower, "gpt-4o"), strings.HasPrefix(lower, "chatgpt-4o"):
		contextLength = 128000
		caps.MaxOutputTokens = 16384
		caps.Vision = true
	case strings.HasPrefix(lower, "gpt-4.1"):
		contextLength = 1047576
		caps.MaxOutputTokens = 32768
		caps.Vision = true
	case strings.HasPrefix(lower, "gpt-4-turbo"), strings.Contains(lower, "gpt-4-1106"), strings.Contains(lower, "gpt-4-0125"):
		contextLength = 128000
		caps.Vision = strings.HasPrefix(lower, "gpt-4-turbo")
	case strings.HasPrefix(lower, "gpt-4"):
		contextLength = 8192
	}
	if caps.Vision {
		caps.ContentFormats = append(caps.ContentFormats, "image")
	}

	return models.ModelDescriptor{
		ID:            id,
		DisplayName:   id,
		Provider:      models.ProviderOpenAI,
		ContextLength: contextLength,
		Capabilities:  caps,
		Available:     true,
	}
}
