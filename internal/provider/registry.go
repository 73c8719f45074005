// Package provider adapts loadforge's domain types to the wire format of a
// specific chat-completion API flavour, registered by name so the target
// flavour is a runtime choice rather than a compile-time one.
package provider

import (
	"fmt"
	"sort"

	"github.com/loadforge/loadforge/internal/core/ports"
)

// Registry looks up a ports.ProviderAdapter by the name it was registered
// under, mirroring the teacher's format-keyed converter factory.
type Registry struct {
	adapters map[string]ports.ProviderAdapter
}

// NewRegistry builds a Registry pre-populated with every built-in adapter.
func NewRegistry() *Registry {
	r := &Registry{adapters: make(map[string]ports.ProviderAdapter)}
	r.Register(NewOpenAIAdapter())
	r.Register(NewOllamaAdapter())
	return r
}

// Register adds or replaces the adapter under its own Name().
func (r *Registry) Register(a ports.ProviderAdapter) {
	r.adapters[a.Name()] = a
}

// Get returns the adapter registered under name, defaulting to "openai"
// when name is empty.
func (r *Registry) Get(name string) (ports.ProviderAdapter, error) {
	if name == "" {
		name = "openai"
	}
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("unsupported provider %q: supported providers are %s", name, r.supportedNames())
	}
	return a, nil
}

func (r *Registry) supportedNames() string {
	names := make([]string, 0, len(r.adapters))
	for n := range r.adapters {
		names = append(names, n)
	}
	sort.Strings(names)
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out
}
