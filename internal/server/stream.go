package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"genprovider/internal/models"
	"genprovider/internal/provider"
)

type chunkPayload struct {
	Delta string `json:"delta"`
}

type finishedPayload struct {
	FinishReason string             `json:"finish_reason,omitempty"`
	Usage        *models.TokenUsage `json:"usage,omitempty"`
}

type streamErrorPayload struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Retryable bool   `json:"retryable"`
}

// writeStream relays a provider stream as server-sent events: chunk events,
// then one finished event, or an error event if the stream fails.
func (s *Server) writeStream(c echo.Context, stream provider.Stream) error {
	defer stream.Close()

	writer := c.Response().Writer
	flusher, ok := writer.(http.Flusher)
	if !ok {
		s.log.Error("http writer does not support flushing")
		return requestError{
			Status:  http.StatusInternalServerError,
			Message: "server does not support streaming responses",
			Type:    "server_error",
		}
	}

	header := c.Response().Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")

	c.Response().WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		ev, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			kind := provider.KindOf(err)
			s.log.Warn("stream failed", "kind", kind.String(), "error", err)
			return writeSSEEvent(writer, flusher, "error", streamErrorPayload{
				Message:   provider.UserMessage(err),
				Type:      kind.String(),
				Retryable: provider.IsRetryable(err),
			})
		}

		if ev.IsFinished() {
			if err := writeSSEEvent(writer, flusher, "finished", finishedPayload{FinishReason: ev.FinishReason, Usage: ev.Usage}); err != nil {
				return err
			}
			continue
		}
		if err := writeSSEEvent(writer, flusher, "chunk", chunkPayload{Delta: ev.Delta}); err != nil {
			return err
		}
	}
}

func writeSSEEvent(w io.Writer, flusher http.Flusher, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal SSE payload: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
		return fmt.Errorf("write SSE event name: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write SSE data: %w", err)
	}
	flusher.Flush()
	return nil
}
