// Package provider defines the contract every generation backend adapter
// satisfies, together with the error taxonomy, running statistics and HTTP
// plumbing the adapters share.
package provider

import (
	"context"

	"genprovider/internal/models"
)

// Provider is the single interface over heterogeneous generation backends.
type Provider interface {
	// Name returns the provider tag used in errors and logs.
	Name() string
	// Type returns the protocol family of the adapter.
	Type() models.ProviderType

	// Generate performs one non-streamed call. An empty req.Model is an
	// InvalidRequestError here; only the orchestrator substitutes a default.
	Generate(ctx context.Context, req models.GenerationRequest) (*models.GenerationResponse, error)

	// GenerateStream opens a streamed call. The caller must Close the stream.
	GenerateStream(ctx context.Context, req models.GenerationRequest) (Stream, error)

	// Models lists the models the backend serves, via discovery when the
	// backend has an endpoint for it, otherwise from the declared catalog.
	Models(ctx context.Context) ([]models.ModelDescriptor, error)

	// HealthCheck reports reachability and never returns an error.
	HealthCheck(ctx context.Context) bool

	Capabilities() Capabilities
	Stats() models.RunningStats
	ValidateModel(model string) error
	DefaultModel() string

	// EstimateCost returns false when the model's pricing is unknown.
	EstimateCost(promptTokens, completionTokens int, model string) (float64, bool)
}

// Stream is a finite sequence of events: chunks, then exactly one finished
// event, then io.EOF on every further Recv.
type Stream interface {
	Recv() (models.StreamEvent, error)
	Close() error
}

// Capabilities describes an adapter type, independent of any one model.
type Capabilities struct {
	models.ModelCapabilities
	RequestsPerMinute int  `json:"requests_per_minute,omitempty"`
	TokensPerMinute   int  `json:"tokens_per_minute,omitempty"`
	ModelDiscovery    bool `json:"model_discovery"`
	RequiresAPIKey    bool `json:"requires_api_key"`
}
