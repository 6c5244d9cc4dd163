package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"genprovider/internal/config"
	"genprovider/internal/models"
	"genprovider/internal/provider"
	"genprovider/internal/stream"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	descriptors := []models.ModelDescriptor{
		{ID: "gpt-4o-mini", Provider: models.ProviderOpenAI, Available: true,
			InputCostPer1K: models.Float(0.15), OutputCostPer1K: models.Float(0.6)},
		{ID: "gpt-disabled", Provider: models.ProviderOpenAI, Available: false},
	}
	p, err := New(config.ProviderConfig{APIKey: "sk-test", BaseURL: srv.URL}, srv.Client(), descriptors)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

func userRequest(model string) models.GenerationRequest {
	return models.GenerationRequest{
		Model:    model,
		Messages: []models.ChatMessage{models.SystemMessage("be brief"), models.UserMessage("hi")},
		Params: models.GenerationParams{
			Temperature: models.Float(0.2),
			MaxTokens:   models.Int(64),
			TopK:        models.Int(5),
			Seed:        models.Int64(7),
		},
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(config.ProviderConfig{BaseURL: "http://localhost"}, http.DefaultClient, nil)
	if !errors.Is(err, provider.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestGenerateMapsPayloadAndResponse(t *testing.T) {
	var got map[string]any
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("unexpected authorization header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"chatcmpl-1","model":"gpt-4o-mini","choices":[{"index":0,"message":{"role":"assistant","content":"Hello"},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":99}}`)
	})

	resp, err := p.Generate(context.Background(), userRequest("gpt-4o-mini"))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if resp.Content != "Hello" || resp.FinishReason != "stop" || resp.Model != "gpt-4o-mini" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens() != 15 {
		t.Fatalf("expected derived total of 15, got %+v", resp.Usage)
	}
	if resp.Metadata["request_id"] == "" || resp.Metadata["response_id"] != "chatcmpl-1" {
		t.Fatalf("unexpected metadata %v", resp.Metadata)
	}

	messages, _ := got["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages on the wire, got %v", got["messages"])
	}
	if got["temperature"] != 0.2 || got["max_tokens"] != float64(64) || got["seed"] != float64(7) {
		t.Fatalf("params not mapped 1:1: %v", got)
	}
	if _, ok := got["top_k"]; ok {
		t.Fatalf("top_k must not be sent: %v", got)
	}

	stats := p.Stats()
	if stats.SuccessfulRequests != 1 || stats.TotalTokens != 15 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.TotalCost == nil {
		t.Fatal("expected cost to be accumulated for a priced model")
	}
}

func TestGenerateErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		sentinel  error
		retryable bool
		message   string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key","type":"invalid_request_error"}}`, provider.ErrAuthentication, false, "bad key"},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down","type":"rate_limit"}}`, provider.ErrRateLimit, true, "slow down"},
		{"bad request", http.StatusBadRequest, `plain text failure`, provider.ErrInvalidRequest, false, "plain text failure"},
		{"server error", http.StatusBadGateway, `upstream`, provider.ErrProvider, false, "upstream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})

			_, err := p.Generate(context.Background(), userRequest("gpt-4o-mini"))
			if !errors.Is(err, tt.sentinel) {
				t.Fatalf("expected %v, got %v", tt.sentinel, err)
			}
			if provider.IsRetryable(err) != tt.retryable {
				t.Fatalf("IsRetryable() = %v, want %v", provider.IsRetryable(err), tt.retryable)
			}
			if !strings.Contains(err.Error(), tt.message) {
				t.Fatalf("expected %q in %q", tt.message, err.Error())
			}
			if p.Stats().FailedRequests != 1 {
				t.Fatalf("expected a failed request in stats, got %+v", p.Stats())
			}
		})
	}
}

func TestGenerateRejectsInvalidModel(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	if _, err := p.Generate(context.Background(), userRequest("")); !errors.Is(err, provider.ErrInvalidRequest) {
		t.Fatalf("expected invalid request for empty model, got %v", err)
	}
	if _, err := p.Generate(context.Background(), userRequest("gpt-disabled")); !errors.Is(err, provider.ErrModelNotFound) {
		t.Fatalf("expected model not found for disabled model, got %v", err)
	}
}

func TestGenerateMalformedBodyIsParsingError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices":[`)
	})
	if _, err := p.Generate(context.Background(), userRequest("gpt-4o-mini")); !errors.Is(err, provider.ErrParsing) {
		t.Fatalf("expected parsing error, got %v", err)
	}
}

func TestFramerBuffersAcrossSplitChunks(t *testing.T) {
	dec := stream.NewDecoder(providerName, newFramer())

	first, err := dec.Feed([]byte(`data: {"choices":[{"delta":{"content":"Hel`))
	if err != nil {
		t.Fatalf("first fragment must not fail: %v", err)
	}
	if len(first) != 0 {
		t.Fatalf("no events expected from a partial line, got %v", first)
	}

	second, err := dec.Feed([]byte("lo\"}}]}\n\ndata: [DONE]\n"))
	if err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	if len(second) != 2 {
		t.Fatalf("expected chunk and finished, got %v", second)
	}
	if second[0].Kind != models.EventChunk || second[0].Delta != "Hello" {
		t.Fatalf("expected Chunk(Hello), got %+v", second[0])
	}
	if !second[1].IsFinished() {
		t.Fatalf("expected Finished, got %+v", second[1])
	}
}

func TestGenerateStreamMatchesGenerate(t *testing.T) {
	const sse = "data: {\"choices\":[{\"delta\":{\"role\":\"assistant\"}}]}\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"lo\"},\"finish_reason\":\"stop\"}]}\n\n" +
		"data: {\"choices\":[],\"usage\":{\"prompt_tokens\":3,\"completion_tokens\":2}}\n\n" +
		"data: [DONE]\n\n"

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["stream"] == true {
			w.Header().Set("Content-Type", "text/event-stream")
			flusher := w.(http.Flusher)
			for _, part := range strings.SplitAfter(sse, "\n\n") {
				io.WriteString(w, part)
				flusher.Flush()
			}
			return
		}
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"Hello"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":2}}`)
	})

	full, err := p.Generate(context.Background(), userRequest("gpt-4o-mini"))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	s, err := p.GenerateStream(context.Background(), userRequest("gpt-4o-mini"))
	if err != nil {
		t.Fatalf("GenerateStream() error = %v", err)
	}
	defer s.Close()

	var text strings.Builder
	var finished models.StreamEvent
	for {
		ev, err := s.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Recv() error = %v", err)
		}
		if ev.IsFinished() {
			finished = ev
			continue
		}
		text.WriteString(ev.Delta)
	}

	if text.String() != full.Content {
		t.Fatalf("stream reconstructed %q, non-streaming returned %q", text.String(), full.Content)
	}
	if finished.FinishReason != "stop" || finished.Usage == nil || finished.Usage.TotalTokens() != 5 {
		t.Fatalf("unexpected finished event %+v", finished)
	}
	if got := p.Stats().SuccessfulRequests; got != 2 {
		t.Fatalf("expected 2 successful requests, got %d", got)
	}
}

func TestGenerateStreamTruncatedIsStreamingError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n\n")
	})

	s, err := p.GenerateStream(context.Background(), userRequest("gpt-4o-mini"))
	if err != nil {
		t.Fatalf("GenerateStream() error = %v", err)
	}
	defer s.Close()

	ev, err := s.Recv()
	if err != nil || ev.Delta != "partial" {
		t.Fatalf("expected the partial chunk first, got %+v %v", ev, err)
	}
	if _, err := s.Recv(); !errors.Is(err, provider.ErrStreaming) {
		t.Fatalf("expected streaming error, got %v", err)
	}
	if p.Stats().FailedRequests != 1 {
		t.Fatalf("expected the stream to be accounted as failed, got %+v", p.Stats())
	}
}

func TestModelsFiltersFamilies(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		io.WriteString(w, `{"data":[{"id":"text-embedding-3-small"},{"id":"gpt-4o-mini"},{"id":"o1-preview"},{"id":"whisper-1"},{"id":"gpt-4o-audio-preview"}]}`)
	})

	list, err := p.Models(context.Background())
	if err != nil {
		t.Fatalf("Models() error = %v", err)
	}
	ids := make([]string, 0, len(list))
	for _, d := range list {
		ids = append(ids, d.ID)
	}
	if strings.Join(ids, ",") != "gpt-4o-mini,o1-preview" {
		t.Fatalf("unexpected models %v", ids)
	}
	if list[0].InputCostPer1K == nil {
		t.Fatal("declared model should keep its catalog pricing")
	}
	if !p.HealthCheck(context.Background()) {
		t.Fatal("expected healthy provider")
	}
}

func TestHealthCheckReportsFalseOnFailure(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	if p.HealthCheck(context.Background()) {
		t.Fatal("expected unhealthy provider")
	}
}
