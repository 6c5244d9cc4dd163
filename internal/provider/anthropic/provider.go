package anthropic

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"genprovider/internal/config"
	"genprovider/internal/models"
	"genprovider/internal/provider"
	"genprovider/internal/stream"
)

const (
	providerName = "anthropic"
	apiVersion   = "2023-06-01"
)

// Provider implements provider.Provider for the Anthropic messages API.
type Provider struct {
	provider.Base

	apiKey     string
	headers    map[string]string
	client     *http.Client
	messages   string
	rateLimits config.RateLimits
}

var _ provider.Provider = (*Provider)(nil)

// New constructs an Anthropic adapter.
func New(cfg config.ProviderConfig, client *http.Client, descriptors []models.ModelDescriptor) (*Provider, error) {
	if client == nil {
		return nil, errors.New("http client must not be nil")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, provider.NewError(provider.KindConfiguration, providerName, "api key must be provided")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = config.DefaultAnthropicBaseURL
	}

	return &Provider{
		Base:       provider.NewBase(models.ProviderAnthropic, cfg.DefaultModel, descriptors),
		apiKey:     cfg.APIKey,
		headers:    cfg.Headers,
		client:     client,
		messages:   baseURL + "/v1/messages",
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
			MaxOutputTokens: 8192,
			ContentFormats:  []string{"text", "image"},
		},
		RequestsPerMinute: p.rateLimits.RequestsPerMinute,
		TokensPerMinute:   p.rateLimits.TokensPerMinute,
		ModelDiscovery:    false,
		RequiresAPIKey:    true,
	}
}

func (p *Provider) Generate(ctx context.Context, req models.GenerationRequest) (*models.GenerationResponse, error) {
	if err := p.ValidateRequest(req); err != nil {
		return nil, err
	}
	payload, err := buildMessagePayload(req, false)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	out, err := p.call(ctx, payload)
	if err != nil {
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

	return &models.GenerationResponse{
		Content:      out.text(),
		Model:        model,
		Usage:        usage,
		FinishReason: out.StopReason,
		ResponseTime: elapsed,
		Metadata:     metadata,
		CreatedAt:    time.Now(),
	}, nil
}

func (p *Provider) GenerateStream(ctx context.Context, req models.GenerationRequest) (provider.Stream, error) {
	if err := p.ValidateRequest(req); err != nil {
		return nil, err
	}
	payload, err := buildMessagePayload(req, true)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := p.post(ctx, payload)
	if err != nil {
		p.RecordFailure(start, req.Model, err)
		return nil, err
	}

	return stream.NewReader(providerName, resp.Body, newFramer(),
		stream.OnFinish(func(ev models.StreamEvent) { p.RecordSuccess(start, req.Model, ev.Usage) }),
		stream.OnError(func(err error) { p.RecordFailure(start, req.Model, err) }),
	), nil
}

// Models returns the declared catalog; the messages API has no discovery
// endpoint this adapter relies on.
func (p *Provider) Models(ctx context.Context) ([]models.ModelDescriptor, error) {
	return p.Catalog().List(), nil
}

// HealthCheck issues a one-token generation against the default model.
// It is not accounted in the running statistics.
func (p *Provider) HealthCheck(ctx context.Context) bool {
	payload := messagePayload{
		Model:     p.DefaultModel(),
		MaxTokens: 1,
		Messages:  []message{{Role: string(models.RoleUser), Content: []contentBlock{{Type: "text", Text: "ping"}}}},
	}
	if _, err := p.call(ctx, payload); err != nil {
		p.Logger().Warn("health check failed", "error", err)
		return false
	}
	return true
}

func (p *Provider) call(ctx context.Context, payload messagePayload) (messageResponse, error) {
	resp, err := p.post(ctx, payload)
	if err != nil {
		return messageResponse{}, err
	}
	defer resp.Body.Close()

	var out messageResponse
	if err := provider.DecodeJSON(providerName, resp.Body, &out); err != nil {
		return messageResponse{}, err
	}
	return out, nil
}

func (p *Provider) post(ctx context.Context, payload messagePayload) (*http.Response, error) {
	httpReq, err := provider.NewJSONRequest(ctx, http.MethodPost, p.messages, payload, p.requestHeaders())
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
	headers := make(map[string]string, len(p.headers)+2)
	for k, v := range p.headers {
		headers[k] = v
	}
	headers["x-api-key"] = p.apiKey
	headers["anthropic-version"] = apiVersion
	return headers
}
