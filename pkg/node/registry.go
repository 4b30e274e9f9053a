package node

import (
	"maps"
	"slices"
	"sync"

	fgerrors "github.com/matzehuels/framegraph/pkg/errors"
)

// Definition describes a node type that can be instantiated by name.
type Definition struct {
	Type        string
	Kind        Kind
	Description string
	Inputs      []PortSpec
	Outputs     []PortSpec

	// New returns a fresh evaluator for each created node. Evaluators that
	// hold no state may return a shared value.
	New func() Evaluator
}

// Registry is the extensible registration table of node types.
// It is safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Register adds a node type. Registering the same type twice fails.
func (r *Registry) Register(def Definition) error {
	if def.Type == "" {
		return fgerrors.New(fgerrors.ErrCodeInvalidInput, "node type name must not be empty")
	}
	if def.New == nil {
		return fgerrors.New(fgerrors.ErrCodeInvalidInput, "node type %q has no constructor", def.Type)
	}
	// Build once to validate the port declarations.
	if _, err := New(def.Type, def.Kind, def.Inputs, def.Outputs, def.New()); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[def.Type]; exists {
		return fgerrors.New(fgerrors.ErrCodeInvalidInput, "node type %q already registered", def.Type)
	}
	r.defs[def.Type] = def
	return nil
}

// MustRegister is like Register but panics on error. Intended for init-time
// registration of built-in types.
func (r *Registry) MustRegister(def Definition) {
	if err := r.Register(def); err != nil {
		panic(err)
	}
}

// Lookup returns the definition registered under typ.
func (r *Registry) Lookup(typ string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[typ]
	return def, ok
}

// Types returns all registered type names in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.defs))
}

// Create instantiates a node of the given type. Unknown types fail with
// a LOOKUP error.
func (r *Registry) Create(typ string) (*Node, error) {
	def, ok := r.Lookup(typ)
	if !ok {
		return nil, fgerrors.New(fgerrors.ErrCodeLookup, "unknown node type %q", typ)
	}
	return New(def.Type, def.Kind, def.Inputs, def.Outputs, def.New())
}
