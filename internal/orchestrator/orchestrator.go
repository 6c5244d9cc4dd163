// Package orchestrator holds the active provider adapter behind a
// hot-swappable slot and ties the model registry to it.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"genprovider/internal/logger"
	"genprovider/internal/models"
	"genprovider/internal/provider"
	"genprovider/internal/registry"
)

// Factory builds an adapter for a provider type.
type Factory func(ctx context.Context, pt models.ProviderType) (provider.Provider, error)

// RetryPolicy bounds the optional retry of non-streaming calls. MaxAttempts
// of zero or one disables retries.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithFactory sets the builder used by SwitchProvider.
func WithFactory(f Factory) Option {
	return func(o *Orchestrator) { o.factory = f }
}

// WithRetry retries retryable failures of Generate with exponential backoff.
func WithRetry(policy RetryPolicy) Option {
	return func(o *Orchestrator) { o.retry = policy }
}

// WithProviderRetries overrides the attempt budget per provider type: a
// value of n allows n retries after the first attempt.
func WithProviderRetries(retries map[models.ProviderType]int) Option {
	return func(o *Orchestrator) { o.providerRetries = retries }
}

// Orchestrator dispatches generation calls to the active adapter. The slot
// is read-locked only to fetch the adapter, so a switch never waits for
// in-flight calls; those finish on the adapter they started with.
type Orchestrator struct {
	mu     sync.RWMutex
	active provider.Provider

	registry *registry.Registry
	factory  Factory
	retry    RetryPolicy
	sleep    func(ctx context.Context, d time.Duration) error
	log      *slog.Logger

	providerRetries map[models.ProviderType]int
}

// New constructs an orchestrator. active may be nil until the first switch.
func New(active provider.Provider, reg *registry.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		active:   active,
		registry: reg,
		sleep:    sleepContext,
		log:      logger.NewComponentLogger("orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Active returns the current adapter.
func (o *Orchestrator) Active() (provider.Provider, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.active == nil {
		return nil, provider.NewError(provider.KindProviderNotInitialized, "", "no active provider")
	}
	return o.active, nil
}

// Registry returns the model registry the orchestrator selects from.
func (o *Orchestrator) Registry() *registry.Registry {
	return o.registry
}

// SwitchProvider builds and health-checks an adapter for pt, then installs
// it. On failure the current adapter stays active. Switching to the type
// that is already active is a no-op.
func (o *Orchestrator) SwitchProvider(ctx context.Context, pt models.ProviderType) error {
	if current, err := o.Active(); err == nil && current.Type() == pt {
		return nil
	}
	if o.factory == nil {
		return provider.NewError(provider.KindConfiguration, pt.String(), "provider switching is not configured")
	}

	next, err := o.factory(ctx, pt)
	if err != nil {
		o.log.Warn("provider switch failed", "provider", pt.String(), "error", err)
		return err
	}
	if !next.HealthCheck(ctx) {
		o.log.Warn("provider switch failed health check", "provider", pt.String())
		return provider.NewError(provider.KindProvider, pt.String(), "health check failed")
	}

	o.mu.Lock()
	previous := o.active
	o.active = next
	o.mu.Unlock()

	from := "none"
	if previous != nil {
		from = previous.Name()
	}
	o.log.Info("provider switched", "from", from, "to", next.Name())
	return nil
}

// Generate validates parameters against the registry when it knows the
// model, then delegates to the active adapter. Unlike the adapters, which
// reject an empty model id, Generate resolves an empty model to the active
// adapter's default before validating.
func (o *Orchestrator) Generate(ctx context.Context, req models.GenerationRequest) (*models.GenerationResponse, error) {
	p, err := o.Active()
	if err != nil {
		return nil, err
	}
	if req.Model == "" {
		req.Model = p.DefaultModel()
	}
	if err := o.checkParameters(p, req); err != nil {
		return nil, err
	}
	return o.generateWithRetry(ctx, p, req)
}

// GenerateStream is Generate for streamed calls, with the same empty-model
// default. Streams are never retried.
func (o *Orchestrator) GenerateStream(ctx context.Context, req models.GenerationRequest) (provider.Stream, error) {
	p, err := o.Active()
	if err != nil {
		return nil, err
	}
	if req.Model == "" {
		req.Model = p.DefaultModel()
	}
	if err := o.checkParameters(p, req); err != nil {
		return nil, err
	}
	return p.GenerateStream(ctx, req)
}

// GenerateWithAutoModel selects a model for criteria, rewrites the request
// model, clamps its parameters, switches provider if needed and generates.
func (o *Orchestrator) GenerateWithAutoModel(ctx context.Context, req models.GenerationRequest, criteria models.SelectionCriteria) (*models.GenerationResponse, error) {
	selected, err := o.SelectModel(criteria)
	if err != nil {
		return nil, err
	}

	req.Model = selected.ID
	req.Params = registry.Adjust(selected, req.Params)

	if err := o.SwitchProvider(ctx, selected.Provider); err != nil {
		return nil, err
	}
	o.log.Info("model auto-selected", "model", selected.ID, "provider", selected.Provider.String(),
		"priority", criteria.Priority.String(), "use_case", criteria.UseCase.String())

	resp, err := o.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.Metadata == nil {
		resp.Metadata = make(map[string]any)
	}
	resp.Metadata["auto_selected"] = true
	return resp, nil
}

// SelectModel runs the selector. No match is reported as ModelNotFound.
func (o *Orchestrator) SelectModel(criteria models.SelectionCriteria) (models.ModelDescriptor, error) {
	if o.registry == nil {
		return models.ModelDescriptor{}, provider.NewError(provider.KindConfiguration, "", "no model registry")
	}
	selected, err := o.registry.SelectBest(criteria)
	if errors.Is(err, registry.ErrNoMatch) {
		return models.ModelDescriptor{}, provider.WrapError(provider.KindModelNotFound, "", "model selection", err)
	}
	return selected, err
}

// Stats returns the running statistics of the active adapter.
func (o *Orchestrator) Stats() (models.RunningStats, error) {
	p, err := o.Active()
	if err != nil {
		return models.RunningStats{}, err
	}
	return p.Stats(), nil
}

// Models lists the models served by the active adapter.
func (o *Orchestrator) Models(ctx context.Context) ([]models.ModelDescriptor, error) {
	p, err := o.Active()
	if err != nil {
		return nil, err
	}
	return p.Models(ctx)
}

// HealthCheck reports whether an active adapter exists and is reachable.
func (o *Orchestrator) HealthCheck(ctx context.Context) bool {
	p, err := o.Active()
	if err != nil {
		return false
	}
	return p.HealthCheck(ctx)
}

func (o *Orchestrator) checkParameters(p provider.Provider, req models.GenerationRequest) error {
	if o.registry == nil {
		return nil
	}
	d, ok := o.registry.Get(req.Model)
	if !ok {
		return nil
	}
	if err := registry.Validate(d, req.Params); err != nil {
		return provider.WrapError(provider.KindInvalidRequest, p.Name(), "parameters out of range", err)
	}
	return nil
}
