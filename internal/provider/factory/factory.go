package factory

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"genprovider/internal/config"
	"genprovider/internal/logger"
	"genprovider/internal/models"
	"genprovider/internal/provider"
	anthropicProvider "genprovider/internal/provider/anthropic"
	ollamaProvider "genprovider/internal/provider/ollama"
	openaiProvider "genprovider/internal/provider/openai"
	"genprovider/internal/registry"
)

const (
	defaultHTTPTimeout     = 60 * time.Second
	defaultDialTimeout     = 10 * time.Second
	defaultKeepAlive       = 30 * time.Second
	defaultIdleConnTimeout = 90 * time.Second
)

// Options carries the collaborators adapters are built with.
type Options struct {
	// Registry supplies the declared descriptors and receives availability
	// updates from runtime probing. Required.
	Registry *registry.Registry
	// HTTPClient replaces the tuned per-provider client when set.
	HTTPClient *http.Client
}

// Builder constructs an adapter for a provider type.
type Builder func(ctx context.Context, pt models.ProviderType) (provider.Provider, error)

// NewBuilder binds configuration and options into a Builder.
func NewBuilder(cfg config.Config, opts Options) Builder {
	return func(ctx context.Context, pt models.ProviderType) (provider.Provider, error) {
		return New(ctx, pt, cfg, opts)
	}
}

// New constructs the adapter for pt. Construction fails when the provider is
// disabled, credentials are missing, or the local runtime is unreachable.
func New(ctx context.Context, pt models.ProviderType, cfg config.Config, opts Options) (provider.Provider, error) {
	if opts.Registry == nil {
		return nil, errors.New("registry must not be nil")
	}

	pc := cfg.Provider(pt)
	if !pc.Enabled {
		return nil, provider.NewError(provider.KindConfiguration, pt.String(), "provider is disabled")
	}

	client := opts.HTTPClient
	if client == nil {
		client = newHTTPClient(pc.Timeout)
	}
	descriptors := declaredModels(opts.Registry, pt, pc)

	var (
		p   provider.Provider
		err error
	)
	switch pt {
	case models.ProviderOpenAI:
		p, err = openaiProvider.New(pc, client, descriptors)
	case models.ProviderAnthropic:
		p, err = anthropicProvider.New(pc, client, descriptors)
	case models.ProviderOllama:
		var local *ollamaProvider.Provider
		local, err = ollamaProvider.New(ctx, pc, client, descriptors)
		if err == nil {
			syncLocalAvailability(opts.Registry, local)
			p = local
		}
	default:
		return nil, provider.NewError(provider.KindConfiguration, pt.String(), "unsupported provider type")
	}
	if err != nil {
		return nil, errors.Wrapf(err, "initialise %s provider", pt)
	}

	logger.NewComponentLogger("factory").Info("provider initialised",
		"provider", pt.String(), "default_model", p.DefaultModel(), "models", len(descriptors))
	return p, nil
}

// PrepareRegistry reconciles the registry with configuration: models named
// only in configuration are registered and every model of a disabled
// provider is marked unavailable.
func PrepareRegistry(cfg config.Config, reg *registry.Registry) {
	for _, pt := range models.AllProviderTypes {
		pc := cfg.Provider(pt)
		for _, id := range append([]string{pc.DefaultModel}, pc.Models...) {
			if id == "" {
				continue
			}
			if _, ok := reg.Get(id); !ok {
				_ = reg.Register(registry.BasicDescriptor(pt, id))
			}
		}
		if !pc.Enabled {
			reg.MarkProviderAvailability(pt, nil)
		}
	}
}

// ProbeLocal refreshes local model availability without keeping an adapter.
func ProbeLocal(ctx context.Context, cfg config.Config, opts Options) error {
	pc := cfg.Provider(models.ProviderOllama)
	if !pc.Enabled {
		return nil
	}
	client := opts.HTTPClient
	if client == nil {
		client = newHTTPClient(pc.Timeout)
	}
	local, err := ollamaProvider.New(ctx, pc, client, declaredModels(opts.Registry, models.ProviderOllama, pc))
	if err != nil {
		return errors.Wrap(err, "probe local runtime")
	}
	syncLocalAvailability(opts.Registry, local)
	return nil
}

func declaredModels(reg *registry.Registry, pt models.ProviderType, pc config.ProviderConfig) []models.ModelDescriptor {
	descriptors := reg.ForProvider(pt)
	known := make(map[string]bool, len(descriptors))
	for _, d := range descriptors {
		known[d.ID] = true
	}
	for _, id := range pc.Models {
		if !known[id] {
			descriptors = append(descriptors, registry.BasicDescriptor(pt, id))
			known[id] = true
		}
	}
	return descriptors
}

// syncLocalAvailability copies the availability probed by the adapter into
// the shared registry.
func syncLocalAvailability(reg *registry.Registry, local *ollamaProvider.Provider) {
	var present []string
	for _, d := range local.Catalog().List() {
		if d.Available {
			present = append(present, d.ID)
		}
	}
	reg.MarkProviderAvailability(models.ProviderOllama, present)
}

// newHTTPClient bounds the wait for response headers, not the whole body:
// streamed generations legitimately outlive timeout while chunks keep
// arriving, and non-streamed backends only answer once generation is done.
func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          50,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: timeout,
	}

	return &http.Client{Transport: transport}
}
