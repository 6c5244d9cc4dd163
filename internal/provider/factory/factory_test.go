package factory

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"genprovider/internal/config"
	"genprovider/internal/models"
	"genprovider/internal/provider"
	"genprovider/internal/registry"
)

func localRuntime(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			io.WriteString(w, `{"models":[{"name":"llama3.1:8b"},{"name":"my-finetune:latest"}]}`)
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewBuildsEachProviderType(t *testing.T) {
	srv := localRuntime(t)
	cfg := config.Default()
	cfg.Providers.OpenAI = config.ProviderConfig{Enabled: true, APIKey: "sk", BaseURL: srv.URL}
	cfg.Providers.Anthropic = config.ProviderConfig{Enabled: true, APIKey: "sk", BaseURL: srv.URL}
	cfg.Providers.Ollama = config.ProviderConfig{Enabled: true, BaseURL: srv.URL, Models: []string{"my-finetune"}}

	reg := registry.NewDefault()
	PrepareRegistry(cfg, reg)
	opts := Options{Registry: reg, HTTPClient: srv.Client()}

	for _, pt := range models.AllProviderTypes {
		p, err := New(context.Background(), pt, cfg, opts)
		if err != nil {
			t.Fatalf("New(%s) error = %v", pt, err)
		}
		if p.Type() != pt || p.Name() != pt.String() {
			t.Fatalf("New(%s) built %s", pt, p.Name())
		}
	}

	if d, _ := reg.Get("llama3.1:8b"); !d.Available {
		t.Fatal("probed local model should be available in the registry")
	}
	if d, _ := reg.Get("mistral:7b"); d.Available {
		t.Fatal("missing local model should stay unavailable")
	}
	if d, ok := reg.Get("my-finetune"); !ok || !d.Available {
		t.Fatalf("configured local model should be registered and available, got %+v", d)
	}
}

func TestNewRejectsDisabledProvider(t *testing.T) {
	cfg := config.Default()
	_, err := New(context.Background(), models.ProviderOpenAI, cfg, Options{Registry: registry.NewDefault()})
	if !errors.Is(err, provider.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestNewWrapsMissingCredentials(t *testing.T) {
	cfg := config.Default()
	cfg.Providers.Anthropic.Enabled = true

	_, err := New(context.Background(), models.ProviderAnthropic, cfg, Options{Registry: registry.NewDefault()})
	if !errors.Is(err, provider.ErrConfiguration) {
		t.Fatalf("expected wrapped configuration error, got %v", err)
	}
	if provider.IsRetryable(err) {
		t.Fatal("configuration errors are not retryable")
	}
}

func TestPrepareRegistryDisablesUnconfiguredProviders(t *testing.T) {
	cfg := config.Default()
	reg := registry.NewDefault()
	PrepareRegistry(cfg, reg)

	openai := models.ProviderOpenAI
	if got := reg.List(&openai); len(got) != 0 {
		t.Fatalf("disabled provider models should be unavailable, got %d", len(got))
	}
}

func TestBuilderBindsConfiguration(t *testing.T) {
	srv := localRuntime(t)
	cfg := config.Default()
	cfg.Providers.Ollama.BaseURL = srv.URL

	build := NewBuilder(cfg, Options{Registry: registry.NewDefault(), HTTPClient: srv.Client()})
	p, err := build(context.Background(), models.ProviderOllama)
	if err != nil {
		t.Fatalf("builder error = %v", err)
	}
	if p.DefaultModel() != "llama3.1:8b" {
		t.Fatalf("unexpected default model %s", p.DefaultModel())
	}
}

func slowRuntime(t *testing.T, headerDelay, chunkEvery time.Duration, chunks int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			io.WriteString(w, `{"models":[{"name":"llama3.1:8b"}]}`)
			return
		}
		time.Sleep(headerDelay)
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		flusher.Flush()
		for i := 0; i < chunks; i++ {
			time.Sleep(chunkEvery)
			io.WriteString(w, `{"message":{"role":"assistant","content":"x"},"done":false}`+"\n")
			flusher.Flush()
		}
		io.WriteString(w, `{"message":{"role":"assistant","content":""},"done":true,"done_reason":"stop"}`+"\n")
	}))
	t.Cleanup(srv.Close)
	return srv
}

func slowProvider(t *testing.T, srv *httptest.Server, timeout time.Duration) provider.Provider {
	t.Helper()
	cfg := config.Default()
	cfg.Providers.Ollama.BaseURL = srv.URL
	cfg.Providers.Ollama.Timeout = timeout

	p, err := New(context.Background(), models.ProviderOllama, cfg, Options{Registry: registry.NewDefault()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

func TestStreamOutlivesProviderTimeout(t *testing.T) {
	p := slowProvider(t, slowRuntime(t, 0, 100*time.Millisecond, 10), 300*time.Millisecond)

	s, err := p.GenerateStream(context.Background(), models.GenerationRequest{
		Model:    "llama3.1:8b",
		Messages: []models.ChatMessage{models.UserMessage("hi")},
	})
	if err != nil {
		t.Fatalf("GenerateStream() error = %v", err)
	}
	defer s.Close()

	var text strings.Builder
	for {
		ev, err := s.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("live stream failed after %d chunks: %v", text.Len(), err)
		}
		text.WriteString(ev.Delta)
	}
	if text.String() != strings.Repeat("x", 10) {
		t.Fatalf("unexpected stream text %q", text.String())
	}
}

func TestTimeoutBoundsResponseHeaders(t *testing.T) {
	p := slowProvider(t, slowRuntime(t, time.Second, 0, 0), 200*time.Millisecond)

	_, err := p.Generate(context.Background(), models.GenerationRequest{
		Model:    "llama3.1:8b",
		Messages: []models.ChatMessage{models.UserMessage("hi")},
	})
	if !errors.Is(err, provider.ErrTimeout) {
		t.Fatalf("expected timeout waiting for headers, got %v", err)
	}
}
