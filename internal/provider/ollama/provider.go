package ollama

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"genprovider/internal/config"
	"genprovider/internal/models"
	"genprovider/internal/provider"
	"genprovider/internal/stream"
)

const providerName = "ollama"

// Provider implements provider.Provider for a locally hosted runtime
// speaking newline-delimited JSON.
type Provider struct {
	provider.Base

	headers map[string]string
	client  *http.Client
	chatURL string
	tagsURL string
}

var _ provider.Provider = (*Provider)(nil)

// New constructs the adapter and fails unless the runtime answers a
// health check.
func New(ctx context.Context, cfg config.ProviderConfig, client *http.Client, descriptors []models.ModelDescriptor) (*Provider, error) {
	if client == nil {
		return nil, errors.New("http client must not be nil")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = config.DefaultOllamaBaseURL
	}

	p := &Provider{
		Base:    provider.NewBase(models.ProviderOllama, cfg.DefaultModel, descriptors),
		headers: cfg.Headers,
		client:  client,
		chatURL: baseURL + "/api/chat",
		tagsURL: baseURL + "/api/tags",
	}

	if _, err := p.ProbeModels(ctx); err != nil {
		return nil, provider.WrapError(provider.KindNetwork, providerName, "runtime is not reachable at "+baseURL, err)
	}
	return p, nil
}

func (p *Provider) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		ModelCapabilities: models.ModelCapabilities{
			Streaming:       true,
			SystemPrompt:    true,
			MaxOutputTokens: 4096,
			ContentFormats:  []string{"text"},
		},
		ModelDiscovery: true,
		RequiresAPIKey: false,
	}
}

func (p *Provider) Generate(ctx context.Context, req models.GenerationRequest) (*models.GenerationResponse, error) {
	if err := p.ValidateRequest(req); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := p.post(ctx, buildChatPayload(req, false))
	if err != nil {
		p.RecordFailure(start, req.Model, err)
		return nil, err
	}
	defer resp.Body.Close()

	var out chatResponse
	if err := provider.DecodeJSON(providerName, resp.Body, &out); err != nil {
		p.RecordFailure(start, req.Model, err)
		return nil, err
	}
	if out.Error != "" {
		err := provider.NewError(provider.KindProvider, providerName, out.Error)
		p.RecordFailure(start, req.Model, err)
		return nil, err
	}

	model := out.Model
	if model == "" {
		model = req.Model
	}
	usage := out.usage()
	elapsed := p.RecordSuccess(start, req.Model, usage)

	return &models.GenerationResponse{
		Content:      out.Message.Content,
		Model:        model,
		Usage:        usage,
		FinishReason: out.DoneReason,
		ResponseTime: elapsed,
		Metadata:     provider.ResponseMetadata(req.Metadata, providerName),
		CreatedAt:    time.Now(),
	}, nil
}

func (p *Provider) GenerateStream(ctx context.Context, req models.GenerationRequest) (provider.Stream, error) {
	if err := p.ValidateRequest(req); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := p.post(ctx, buildChatPayload(req, true))
	if err != nil {
		p.RecordFailure(start, req.Model, err)
		return nil, err
	}

	return stream.NewReader(providerName, resp.Body, newFramer(),
		stream.OnFinish(func(ev models.StreamEvent) { p.RecordSuccess(start, req.Model, ev.Usage) }),
		stream.OnError(func(err error) { p.RecordFailure(start, req.Model, err) }),
	), nil
}

// ProbeModels lists the installed model tags and flips the availability of
// declared models to match.
func (p *Provider) ProbeModels(ctx context.Context) ([]string, error) {
	httpReq, err := provider.NewJSONRequest(ctx, http.MethodGet, p.tagsURL, nil, p.headers)
	if err != nil {
		return nil, provider.WrapError(provider.KindInvalidRequest, providerName, "build tags request", err)
	}
	resp, err := provider.Do(p.client, providerName, httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !provider.IsSuccess(resp.StatusCode) {
		return nil, provider.StatusError(providerName, resp, errorMessage)
	}

	var tags tagList
	if err := provider.DecodeJSON(providerName, resp.Body, &tags); err != nil {
		return nil, err
	}

	installed := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		name := m.Name
		if name == "" {
			name = m.Model
		}
		if name != "" {
			installed = append(installed, name)
		}
	}

	present := make(map[string]bool, len(installed))
	for _, name := range installed {
		present[normalizeTag(name)] = true
	}
	for _, d := range p.Catalog().List() {
		p.Catalog().SetAvailable(d.ID, present[normalizeTag(d.ID)])
	}

	p.Logger().Debug("probed runtime models", "installed", len(installed))
	return installed, nil
}

// Models returns the probed models, using declared descriptors where known.
func (p *Provider) Models(ctx context.Context) ([]models.ModelDescriptor, error) {
	installed, err := p.ProbeModels(ctx)
	if err != nil {
		return nil, err
	}

	declared := make(map[string]models.ModelDescriptor)
	for _, d := range p.Catalog().List() {
		declared[normalizeTag(d.ID)] = d
	}

	out := make([]models.ModelDescriptor, 0, len(installed))
	for _, name := range installed {
		if d, ok := declared[normalizeTag(name)]; ok {
			out = append(out, d)
			continue
		}
		out = append(out, models.ModelDescriptor{
			ID:            name,
			DisplayName:   name,
			Provider:      models.ProviderOllama,
			ContextLength: 4096,
			Capabilities:  p.Capabilities().ModelCapabilities,
			Available:     true,
		})
	}
	slices.SortFunc(out, func(a, b models.ModelDescriptor) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

// HealthCheck reports whether the tags endpoint answers.
func (p *Provider) HealthCheck(ctx context.Context) bool {
	if _, err := p.ProbeModels(ctx); err != nil {
		p.Logger().Warn("health check failed", "error", err)
		return false
	}
	return true
}

func (p *Provider) post(ctx context.Context, payload chatPayload) (*http.Response, error) {
	httpReq, err := provider.NewJSONRequest(ctx, http.MethodPost, p.chatURL, payload, p.headers)
	if err != nil {
		return nil, provider.WrapError(provider.KindInvalidRequest, providerName, "build request", err)
	}
	if payload.Stream {
		httpReq.Header.Set("Accept", "application/x-ndjson")
	}

	p.Logger().Debug("sending request", "model", payload.Model, "stream", payload.Stream, "messages", len(payload.Messages))
	resp, err := provider.Do(p.client, providerName, httpReq)
	if err != nil {
		return nil, err
	}
	if !provider.IsSuccess(resp.StatusCode) {
		defer resp.Body.Close()
		apiErr := provider.StatusError(providerName, resp, errorMessage)
		if resp.StatusCode == http.StatusNotFound {
			apiErr.Kind = provider.KindModelNotFound
		}
		return nil, apiErr
	}
	return resp, nil
}
