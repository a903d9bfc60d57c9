package collector

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/domain/model"
)

// Registry holds one collector per platform.
type Registry struct {
	mu         sync.RWMutex
	collectors map[model.Platform]Collector
}

// NewRegistry creates a registry with the given collectors.
func NewRegistry(collectors ...Collector) (*Registry, error) {
	r := &Registry{collectors: make(map[model.Platform]Collector, len(collectors))}
	for _, c := range collectors {
		if err := r.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds c. A platform can be registered once.
func (r *Registry) Register(c Collector) error {
	if c == nil {
		return errors.New("collector registry: nil collector")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p := c.Platform()
	if _, ok := r.collectors[p]; ok {
		return fmt.Errorf("collector registry: platform %s already registered", p)
	}
	r.collectors[p] = c
	return nil
}

// Get returns the collector for p or ErrUnknownPlatform.
func (r *Registry) Get(p model.Platform) (Collector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.collectors[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlatform, p)
	}
	return c, nil
}

// Platforms lists the registered platforms in name order.
func (r *Registry) Platforms() []model.Platform {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Platform, 0, len(r.collectors))
	for p := range r.collectors {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Close closes every collector and joins their errors.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for p, c := range r.collectors {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s collector: %w", p, err))
		}
	}
	return errors.Join(errs...)
}
