package source

import (
	"fmt"

	"NewsletterDigest/internal/ports"
)

// Registry keeps message sources by name in registration order.
type Registry struct {
	order   []string
	sources map[string]ports.MessageSource
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: map[string]ports.MessageSource{}}
}

// Register adds or replaces a source.
func (r *Registry) Register(name string, src ports.MessageSource) {
	if r.sources == nil {
		r.sources = map[string]ports.MessageSource{}
	}
	if _, ok := r.sources[name]; !ok {
		r.order = append(r.order, name)
	}
	r.sources[name] = src
}

// Resolve returns a source by name or an error if it is absent.
func (r *Registry) Resolve(name string) (ports.MessageSource, error) {
	if src, ok := r.sources[name]; ok {
		return src, nil
	}
	return nil, fmt.Errorf("source %s is not registered", name)
}

// Names lists registered sources in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}
