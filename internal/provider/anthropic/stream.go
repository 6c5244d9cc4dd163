package anthropic

import (
	"encoding/json"
	"fmt"

	"genprovider/internal/models"
	"genprovider/internal/provider"
	"genprovider/internal/stream"
)

// eventFramer decodes the typed messages event stream. Input tokens arrive
// in message_start and output tokens in message_delta.
type eventFramer struct {
	usage  usageBlock
	reason string
}

func newFramer() *eventFramer {
	return &eventFramer{}
}

func (f *eventFramer) Line(line []byte) (models.StreamEvent, bool, error) {
	payload, ok := stream.SSEData(line)
	if !ok {
		return models.StreamEvent{}, false, nil
	}

	var ev streamEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return models.StreamEvent{}, false, fmt.Errorf("decode event: %w", err)
	}

	switch ev.Type {
	case "message_start":
		if ev.Message != nil {
			f.usage.InputTokens = ev.Message.Usage.InputTokens
			f.usage.OutputTokens = ev.Message.Usage.OutputTokens
		}
	case "content_block_start":
		if ev.ContentBlock != nil && ev.ContentBlock.Type == "text" && ev.ContentBlock.Text != "" {
			return models.ChunkEvent(ev.ContentBlock.Text), true, nil
		}
	case "content_block_delta":
		if ev.Delta != nil && ev.Delta.Text != "" {
			return models.ChunkEvent(ev.Delta.Text), true, nil
		}
	case "message_delta":
		if ev.Usage != nil {
			f.usage.OutputTokens = ev.Usage.OutputTokens
		}
		if ev.Delta != nil && ev.Delta.StopReason != "" {
			f.reason = ev.Delta.StopReason
			return f.finished(), true, nil
		}
	case "message_stop":
		return f.finished(), true, nil
	case "error":
		msg := "stream error event"
		if ev.Error != nil && ev.Error.Message != "" {
			msg = ev.Error.Type + ": " + ev.Error.Message
		}
		return models.StreamEvent{}, false, provider.NewError(provider.KindStreaming, providerName, msg)
	}
	return models.StreamEvent{}, false, nil
}

func (f *eventFramer) finished() models.StreamEvent {
	return models.FinishedEvent(f.reason, f.usage.toUsage())
}

// End reports a truncated stream: completion is always signalled in-band.
func (f *eventFramer) End() (models.StreamEvent, bool, error) {
	return models.StreamEvent{}, false, nil
}
