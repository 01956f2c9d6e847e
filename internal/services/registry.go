package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// DefaultCheckTimeout bounds each provider health check
const DefaultCheckTimeout = 2 * time.Second

// Registry keeps the backing services whose health gates readiness
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	timeout   time.Duration
}

// NewRegistry creates a new service registry
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		timeout:   DefaultCheckTimeout,
	}
}

// Register adds a provider to the registry
func (r *Registry) Register(name string, provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = provider
}

// Get retrieves a provider by name
func (r *Registry) Get(name string) Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[name]
}

// List returns all registered provider names, sorted
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HealthCheckAll checks all registered providers concurrently
func (r *Registry) HealthCheckAll(ctx context.Context) map[string]error {
	r.mu.RLock()
	providers := make(map[string]Provider, len(r.providers))
	for name, p := range r.providers {
		providers[name] = p
	}
	timeout := r.timeout
	r.mu.RUnlock()

	var mu sync.Mutex
	var wg sync.WaitGroup
	results := make(map[string]error, len(providers))

	for name, provider := range providers {
		wg.Add(1)
		go func(name string, provider Provider) {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			err := provider.HealthCheck(checkCtx)
			mu.Lock()
			results[name] = err
			mu.Unlock()
		}(name, provider)
	}
	wg.Wait()

	return results
}

// Ready returns the first failing provider in name order, or nil
func (r *Registry) Ready(ctx context.Context) error {
	results := r.HealthCheckAll(ctx)
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := results[name]; err != nil {
			return fmt.Errorf("%s unavailable: %w", name, err)
		}
	}
	return nil
}

// Unregister removes a provider from the registry
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.providers, name)
}
