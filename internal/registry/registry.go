// Package registry is the model catalog: descriptors with capabilities,
// cost and parameter constraints, independent of live provider
// connectivity, plus the selector that ranks them against criteria.
package registry

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"genprovider/internal/models"
)

var (
	// ErrNoMatch is returned when no available model satisfies the criteria.
	ErrNoMatch = errors.New("no model matches the selection criteria")
	// ErrUnknownModel is returned for ids the registry does not hold.
	ErrUnknownModel = errors.New("unknown model")
)

// Registry holds model descriptors. It is read-mostly: only availability
// flags and late registrations mutate it, under its own lock.
type Registry struct {
	mu         sync.RWMutex
	byID       map[string]models.ModelDescriptor
	order      []string
	byProvider map[models.ProviderType][]string
	useCases   map[models.UseCase][]string
}

// New builds a registry from descriptors. Duplicate ids keep the first entry.
func New(descriptors []models.ModelDescriptor, useCases map[models.UseCase][]string) *Registry {
	r := &Registry{
		byID:       make(map[string]models.ModelDescriptor, len(descriptors)),
		byProvider: make(map[models.ProviderType][]string),
		useCases:   make(map[models.UseCase][]string, len(useCases)),
	}
	for _, d := range descriptors {
		r.add(d)
	}
	for uc, ids := range useCases {
		r.useCases[uc] = slices.Clone(ids)
	}
	return r
}

// NewDefault builds a registry from the built-in seed catalog.
func NewDefault() *Registry {
	return New(SeedCatalog(), SeedUseCases())
}

// add inserts d. Caller holds mu or has exclusive access.
func (r *Registry) add(d models.ModelDescriptor) bool {
	if d.ID == "" {
		return false
	}
	if _, exists := r.byID[d.ID]; exists {
		return false
	}
	r.byID[d.ID] = d
	r.order = append(r.order, d.ID)
	r.byProvider[d.Provider] = append(r.byProvider[d.Provider], d.ID)
	return true
}

// Register adds a descriptor unless its id is already present.
func (r *Registry) Register(d models.ModelDescriptor) error {
	if d.ID == "" {
		return errors.New("model id must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.add(d) {
		return fmt.Errorf("model %q is already registered", d.ID)
	}
	return nil
}

// Get returns the descriptor for id, available or not.
func (r *Registry) Get(id string) (models.ModelDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byID[id]
	return d, ok
}

// List returns the available models in catalog order, optionally limited
// to one provider.
func (r *Registry) List(provider *models.ProviderType) []models.ModelDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.order
	if provider != nil {
		ids = r.byProvider[*provider]
	}
	out := make([]models.ModelDescriptor, 0, len(ids))
	for _, id := range ids {
		if d := r.byID[id]; d.Available {
			out = append(out, d)
		}
	}
	return out
}

// All returns every descriptor, including unavailable ones.
func (r *Registry) All() []models.ModelDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.ModelDescriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// ForProvider returns every descriptor owned by provider, available or not.
func (r *Registry) ForProvider(provider models.ProviderType) []models.ModelDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.byProvider[provider]
	out := make([]models.ModelDescriptor, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.byID[id])
	}
	return out
}

// SetAvailability flips the availability flag of id. Descriptors are
// never removed.
func (r *Registry) SetAvailability(id string, available bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownModel, id)
	}
	d.Available = available
	r.byID[id] = d
	return nil
}

// MarkProviderAvailability marks the provider's models available exactly
// when their id is in present.
func (r *Registry) MarkProviderAvailability(provider models.ProviderType, present []string) {
	set := make(map[string]bool, len(present))
	for _, id := range present {
		set[id] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.byProvider[provider] {
		d := r.byID[id]
		d.Available = set[id]
		r.byID[id] = d
	}
}

// Recommended returns the preference list for a use case, filtered to
// available models.
func (r *Registry) Recommended(useCase models.UseCase) []models.ModelDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.useCases[useCase]
	out := make([]models.ModelDescriptor, 0, len(ids))
	for _, id := range ids {
		if d, ok := r.byID[id]; ok && d.Available {
			out = append(out, d)
		}
	}
	return out
}

// EstimateCost applies the linear per-1k pricing of d.
func EstimateCost(d models.ModelDescriptor, inputTokens, outputTokens int) (float64, bool) {
	return d.EstimateCost(inputTokens, outputTokens)
}

// EstimateCost prices a call against the registered model id.
func (r *Registry) EstimateCost(id string, inputTokens, outputTokens int) (float64, bool) {
	d, ok := r.Get(id)
	if !ok {
		return 0, false
	}
	return d.EstimateCost(inputTokens, outputTokens)
}
