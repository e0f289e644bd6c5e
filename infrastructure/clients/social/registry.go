package social

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"crosspost/domain/repository"
)

// Registry selects the adapter for a platform name. Each protocol's quirks
// live in its own concrete type; the dispatcher only sees the contract.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]repository.IPlatformPublisher
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]repository.IPlatformPublisher)}
}

func (r *Registry) Register(adapter repository.IPlatformPublisher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[strings.ToLower(adapter.Platform())] = adapter
}

func (r *Registry) Get(platform string) (repository.IPlatformPublisher, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[strings.ToLower(platform)]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for platform %s", platform)
	}
	return adapter, nil
}

func (r *Registry) Platforms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.adapters))
	for p := range r.adapters {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
