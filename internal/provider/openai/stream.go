package openai

import (
	"bytes"
	"encoding/json"
	"fmt"

	"genprovider/internal/models"
	"genprovider/internal/provider"
	"genprovider/internal/stream"
)

var doneSentinel = []byte("[DONE]")

// sseFramer decodes chat completion chunks. The finish reason and the usage
// chunk arrive before the [DONE] sentinel and are held until it.
type sseFramer struct {
	reason string
	usage  *models.TokenUsage
}

func newFramer() *sseFramer {
	return &sseFramer{}
}

func (f *sseFramer) Line(line []byte) (models.StreamEvent, bool, error) {
	payload, ok := stream.SSEData(line)
	if !ok {
		return models.StreamEvent{}, false, nil
	}
	payload = bytes.TrimSpace(payload)
	if bytes.Equal(payload, doneSentinel) {
		return models.FinishedEvent(f.reason, f.usage), true, nil
	}

	var chunk streamChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		return models.StreamEvent{}, false, fmt.Errorf("decode chunk: %w", err)
	}
	if chunk.Error != nil {
		return models.StreamEvent{}, false, provider.NewError(provider.KindStreaming, providerName, chunk.Error.Message)
	}
	if chunk.Usage != nil {
		f.usage = chunk.Usage.toUsage()
	}
	if len(chunk.Choices) == 0 {
		return models.StreamEvent{}, false, nil
	}

	choice := chunk.Choices[0]
	if choice.FinishReason != nil && *choice.FinishReason != "" {
		f.reason = *choice.FinishReason
	}
	if choice.Delta.Content == "" {
		return models.StreamEvent{}, false, nil
	}
	return models.ChunkEvent(choice.Delta.Content), true, nil
}

// End reports a truncated stream: this backend always sends [DONE].
func (f *sseFramer) End() (models.StreamEvent, bool, error) {
	return models.StreamEvent{}, false, nil
}
