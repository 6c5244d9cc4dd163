package provider

import (
	"fmt"
	"strings"
	"sync"

	"genprovider/internal/models"
)

// Catalog is the descriptor subset an adapter declares for its backend.
// It backs model validation, cost estimates and the Models fallback for
// backends without a discovery endpoint.
type Catalog struct {
	mu    sync.RWMutex
	name  string
	byID  map[string]models.ModelDescriptor
	order []string
}

// NewCatalog indexes descriptors, keeping the first entry for duplicate ids.
func NewCatalog(providerName string, descriptors []models.ModelDescriptor) *Catalog {
	c := &Catalog{name: providerName}
	c.Replace(descriptors)
	return c
}

// Replace swaps the whole descriptor list.
func (c *Catalog) Replace(descriptors []models.ModelDescriptor) {
	byID := make(map[string]models.ModelDescriptor, len(descriptors))
	order := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		if _, dup := byID[d.ID]; dup || d.ID == "" {
			continue
		}
		byID[d.ID] = d
		order = append(order, d.ID)
	}

	c.mu.Lock()
	c.byID = byID
	c.order = order
	c.mu.Unlock()
}

// Lookup returns the descriptor for id.
func (c *Catalog) Lookup(id string) (models.ModelDescriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.byID[id]
	return d, ok
}

// List returns every descriptor in declaration order.
func (c *Catalog) List() []models.ModelDescriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.ModelDescriptor, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// SetAvailable flips the availability flag of a declared model.
func (c *Catalog) SetAvailable(id string, available bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.byID[id]
	if !ok {
		return false
	}
	d.Available = available
	c.byID[id] = d
	return true
}

// CheckModel rejects an empty id and any declared model that is disabled.
// Undeclared ids pass: the backend may still know them.
func (c *Catalog) CheckModel(id string) error {
	if strings.TrimSpace(id) == "" {
		return NewError(KindInvalidRequest, c.name, "model must not be empty")
	}
	if d, ok := c.Lookup(id); ok && !d.Available {
		return NewError(KindModelNotFound, c.name, fmt.Sprintf("model %q is disabled", id))
	}
	return nil
}

// EstimateCost prices a call against the declared per-1k costs.
func (c *Catalog) EstimateCost(promptTokens, completionTokens int, model string) (float64, bool) {
	d, ok := c.Lookup(model)
	if !ok {
		return 0, false
	}
	return d.EstimateCost(promptTokens, completionTokens)
}
