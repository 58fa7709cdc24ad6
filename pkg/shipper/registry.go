package shipper

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry is the closed carrier-code → adapter table.
// Adapters are registered explicitly at startup; nothing is discovered at runtime.
type Registry struct {
	shippers map[string]Shipper
	mu       sync.RWMutex
}

// NewRegistry creates a new shipper registry.
func NewRegistry() *Registry {
	return &Registry{
		shippers: make(map[string]Shipper),
	}
}

// NormalizeCode canonicalizes a carrier code for lookups.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Register adds a shipper to the registry, replacing any adapter with the same code.
func (r *Registry) Register(s Shipper) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shippers[NormalizeCode(s.Name())] = s
}

// Get returns the adapter registered for a carrier code.
func (r *Registry) Get(code string) (Shipper, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.shippers[NormalizeCode(code)]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrCarrierNotFound, code)
}

// Has reports whether an adapter is registered for the carrier code.
func (r *Registry) Has(code string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.shippers[NormalizeCode(code)]
	return ok
}

// Names returns the registered carrier codes in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.shippers))
	for name := range r.shippers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered shippers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.shippers)
}
