package provider

import (
	"fmt"
	"log/slog"
	"time"

	"genprovider/internal/logger"
	"genprovider/internal/models"
)

// Base carries the bookkeeping every adapter shares: identity, the declared
// model catalog and the running statistics. Adapters embed it.
type Base struct {
	kind         models.ProviderType
	defaultModel string
	catalog      *Catalog
	recorder     *StatsRecorder
	log          *slog.Logger
}

// NewBase builds the shared adapter state.
func NewBase(kind models.ProviderType, defaultModel string, descriptors []models.ModelDescriptor) Base {
	if defaultModel == "" {
		defaultModel = kind.DefaultModel()
	}
	return Base{
		kind:         kind,
		defaultModel: defaultModel,
		catalog:      NewCatalog(kind.String(), descriptors),
		recorder:     NewStatsRecorder(),
		log:          logger.NewComponentLogger("provider." + kind.String()),
	}
}

func (b *Base) Name() string              { return b.kind.String() }
func (b *Base) Type() models.ProviderType { return b.kind }
func (b *Base) DefaultModel() string      { return b.defaultModel }
func (b *Base) Stats() models.RunningStats {
	return b.recorder.Snapshot()
}

// Catalog exposes the declared descriptors.
func (b *Base) Catalog() *Catalog { return b.catalog }

// Logger returns the adapter's component logger.
func (b *Base) Logger() *slog.Logger { return b.log }

// ValidateModel rejects empty ids and declared models that are disabled.
func (b *Base) ValidateModel(model string) error {
	return b.catalog.CheckModel(model)
}

// EstimateCost prices a call against the declared catalog.
func (b *Base) EstimateCost(promptTokens, completionTokens int, model string) (float64, bool) {
	return b.catalog.EstimateCost(promptTokens, completionTokens, model)
}

// ValidateRequest runs the checks shared by Generate and GenerateStream.
func (b *Base) ValidateRequest(req models.GenerationRequest) error {
	if err := b.ValidateModel(req.Model); err != nil {
		return err
	}
	if len(req.Messages) == 0 {
		return NewError(KindInvalidRequest, b.Name(), "at least one message is required")
	}
	for i, msg := range req.Messages {
		if !msg.Role.Valid() {
			return NewError(KindInvalidRequest, b.Name(), fmt.Sprintf("message %d has unknown role %q", i, msg.Role))
		}
	}
	return nil
}

// RecordSuccess accounts a completed call started at start.
func (b *Base) RecordSuccess(start time.Time, model string, usage *models.TokenUsage) time.Duration {
	elapsed := time.Since(start)
	var (
		cost  float64
		known bool
	)
	if usage != nil {
		cost, known = b.EstimateCost(usage.PromptTokens(), usage.CompletionTokens(), model)
	}
	b.recorder.RecordSuccess(elapsed, usage, cost, known)
	b.log.Debug("generation completed", "model", model, "latency_ms", elapsed.Milliseconds())
	return elapsed
}

// RecordFailure accounts a failed call started at start.
func (b *Base) RecordFailure(start time.Time, model string, err error) {
	elapsed := time.Since(start)
	b.recorder.RecordFailure(elapsed)
	b.log.Debug("generation failed", "model", model, "kind", KindOf(err).String(), "latency_ms", elapsed.Milliseconds())
}
