package openai

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

const providerName = "openai"

// Provider implements provider.Provider for OpenAI-compatible chat APIs.
type Provider struct {
	provider.Base

	apiKey     string
	headers    map[string]string
	client     *http.Client
	chatURL    string
	modelsURL  string
	rateLimits config.RateLimits
}

var _ provider.Provider = (*Provider)(nil)

// New creates a new OpenAI adapter. descriptors is the declared model subset
// used for validation and pricing.
func New(cfg config.ProviderConfig, client *http.Client, descriptors []models.ModelDescriptor) (*Provider, error) {
	if client == nil {
		return nil, errors.New("http client must not be nil")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, provider.NewError(provider.KindConfiguration, providerName, "api key must be provided")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = strings.TrimRight(config.DefaultOpenAIBaseURL, "/")
	}

	return &Provider{
		Base:       provider.NewBase(models.ProviderOpenAI, cfg.DefaultModel, descriptors),
		apiKey:     cfg.APIKey,
		headers:    cfg.Headers,
		client:     client,
		chatURL:    baseURL + "/chat/completions",
		modelsURL:  baseURL + "/models",
		rateLimits: cfg.RateLimits,
	}, nil
}

func (p *Provider) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		ModelCapabilities: models.ModelCapabilities{
			Streaming:       true,
			FunctionCalling: true,
			Vision:          true,
			SystemPrompt:    true,
			MaxOutputTokens: 16384,
			ContentFormats:  []string{"text", "image"},
		},
		RequestsPerMinute: p.rateLimits.RequestsPerMinute,
		TokensPerMinute:   p.rateLimits.TokensPerMinute,
		ModelDiscovery:    true,
		RequiresAPIKey:    true,
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
	if len(out.Choices) == 0 {
		err := provider.NewError(provider.KindParsing, providerName, "response did not include choices")
		p.RecordFailure(start, req.Model, err)
		return nil, err
	}

	model := out.Model
	if model == "" {
		model = req.Model
	}
	usage := out.Usage.toUsage()
	elapsed := p.RecordSuccess(start, req.Model, usage)

	metadata := provider.ResponseMetadata(req.Metadata, providerName)
	if out.ID != "" {
		metadata["response_id"] = out.ID
	}

	choice := out.Choices[0]
	return &models.GenerationResponse{
		Content:      choice.Message.Content,
		Model:        model,
		Usage:        usage,
		FinishReason: choice.FinishReason,
		ResponseTime: elapsed,
		Metadata:     metadata,
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

// Models queries the discovery endpoint and keeps the chat model families.
func (p *Provider) Models(ctx context.Context) ([]models.ModelDescriptor, error) {
	httpReq, err := provider.NewJSONRequest(ctx, http.MethodGet, p.modelsURL, nil, p.requestHeaders())
	if err != nil {
		return nil, provider.WrapError(provider.KindInvalidRequest, providerName, "build models request", err)
	}
	resp, err := provider.Do(p.client, providerName, httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !provider.IsSuccess(resp.StatusCode) {
		return nil, provider.StatusError(providerName, resp, errorMessage)
	}

	var list modelList
	if err := provider.DecodeJSON(providerName, resp.Body, &list); err != nil {
		return nil, err
	}

	out := make([]models.ModelDescriptor, 0, len(list.Data))
	for _, entry := range list.Data {
		if !supportedFamily(entry.ID) {
			continue
		}
		if d, ok := p.Catalog().Lookup(entry.ID); ok {
			out = append(out, d)
			continue
		}
		out = append(out, describe(entry.ID))
	}
	slices.SortFunc(out, func(a, b models.ModelDescriptor) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

// HealthCheck lists models; any failure reports false.
func (p *Provider) HealthCheck(ctx context.Context) bool {
	if _, err := p.Models(ctx); err != nil {
		p.Logger().Warn("health check failed", "error", err)
		return false
	}
	return true
}

func (p *Provider) post(ctx context.Context, payload chatPayload) (*http.Response, error) {
	httpReq, err := provider.NewJSONRequest(ctx, http.MethodPost, p.chatURL, payload, p.requestHeaders())
	if err != nil {
		return nil, provider.WrapError(provider.KindInvalidRequest, providerName, "build request", err)
	}
	if payload.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	p.Logger().Debug("sending request", "model", payload.Model, "stream", payload.Stream, "messages", len(payload.Messages))
	resp, err := provider.Do(p.client, providerName, httpReq)
	if err != nil {
		return nil, err
	}
	if !provider.IsSuccess(resp.StatusCode) {
		defer resp.Body.Close()
		return nil, provider.StatusError(providerName, resp, errorMessage)
	}
	return resp, nil
}

func (p *Provider) requestHeaders() map[string]string {
	headers := make(map[string]string, len(p.headers)+1)
	for k, v := range p.headers {
		headers[k] = v
	}
	headers["Authorization"] = "Bearer " + p.apiKey
	return headers
}
