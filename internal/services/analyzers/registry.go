package analyzers

import (
	"fmt"

	domsvc "github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/service"
)

// Registry holds the analyzer population. Plug-in is by registration only.
type Registry struct {
	order []string
	byDom map[string]domsvc.Analyzer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byDom: make(map[string]domsvc.Analyzer)}
}

// Register adds an analyzer; duplicate domains are an error.
func (r *Registry) Register(a domsvc.Analyzer) error {
	d := a.Domain()
	if _, dup := r.byDom[d]; dup {
		return fmt.Errorf("analyzer %q already registered", d)
	}
	r.byDom[d] = a
	r.order = append(r.order, d)
	return nil
}

// Get returns the analyzer for a domain.
func (r *Registry) Get(domain string) (domsvc.Analyzer, bool) {
	a, ok := r.byDom[domain]
	return a, ok
}

// All returns analyzers in registration order.
func (r *Registry) All() []domsvc.Analyzer {
	out := make([]domsvc.Analyzer, 0, len(r.order))
	for _, d := range r.order {
		out = append(out, r.byDom[d])
	}
	return out
}

// Domains returns registered domain names in registration order.
func (r *Registry) Domains() []string {
	return append([]string(nil), r.order...)
}
