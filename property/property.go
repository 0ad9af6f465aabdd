// Package property implements the custom-property repository (spec
// §4.C3): host-declared facts, literal or generated, consulted by the
// "property" operator during expression evaluation.
package property

import (
	"strings"
	"sync"

	"github.com/alextanhongpin/rox/dynamic"
	"github.com/alextanhongpin/rox/rcontext"
)

// ExternalType is the declared type of a custom property, used by
// language bindings to generate typed accessors; the engine itself does
// not coerce on this field.
type ExternalType int

const (
	String ExternalType = iota
	Number
	Boolean
	Semver
	DateTime
)

// Generator computes a property's value at evaluation time from the
// current context. It must be side-effect-free; panics are recovered by
// the evaluator boundary and treated as Undefined.
type Generator func(ctx *rcontext.Context) dynamic.Value

// Property is one entry in the repository: either a Literal value or a
// Generator-backed computed value.
type Property struct {
	Name         string
	ExternalType ExternalType
	Literal      dynamic.Value
	Generator    Generator
}

func (p Property) isGenerated() bool { return p.Generator != nil }

// Resolve returns the property's value for the given context.
func (p Property) Resolve(ctx *rcontext.Context) dynamic.Value {
	if p.isGenerated() {
		return p.Generator(ctx)
	}
	return p.Literal
}

// LiteralString builds a literal-valued string property.
func LiteralString(name, value string) Property {
	return Property{Name: name, ExternalType: String, Literal: dynamic.String(value)}
}

// Computed builds a generator-backed property of the given type.
func Computed(name string, t ExternalType, gen Generator) Property {
	return Property{Name: name, ExternalType: t, Generator: gen}
}

// AddedListener is invoked synchronously on every Add/AddIfAbsent that
// actually installs a property, so collaborators (e.g. the impression
// reporter, which reports which properties exist) can observe the set
// without polling.
type AddedListener func(p Property)

// ReservedPrefix marks engine-provided device properties (spec §4.C3).
const ReservedPrefix = "rox."

// IsReserved reports whether name is in the rox.* namespace.
func IsReserved(name string) bool {
	return strings.HasPrefix(name, ReservedPrefix)
}

// Repository stores one Property per name. Registration is infrequent
// relative to lookups, so writes take the write lock of an RWMutex
// while lookups share its read lock.
type Repository struct {
	mu        sync.RWMutex
	props     map[string]Property
	listeners []AddedListener
}

// NewRepository returns an empty property repository.
func NewRepository() *Repository {
	return &Repository{props: make(map[string]Property)}
}

// OnAdded registers a listener invoked on every successful Add/AddIfAbsent.
func (r *Repository) OnAdded(l AddedListener) {
	r.mu.Lock()
	r.listeners = append(r.listeners, l)
	r.mu.Unlock()
}

// Add installs p, replacing any earlier property with the same name.
func (r *Repository) Add(p Property) {
	r.mu.Lock()
	r.props[p.Name] = p
	listeners := append([]AddedListener(nil), r.listeners...)
	r.mu.Unlock()

	for _, l := range listeners {
		l(p)
	}
}

// AddIfAbsent installs p only if no property is registered under its
// name. Returns true if it was installed.
func (r *Repository) AddIfAbsent(p Property) bool {
	r.mu.Lock()
	if _, exists := r.props[p.Name]; exists {
		r.mu.Unlock()
		return false
	}
	r.props[p.Name] = p
	listeners := append([]AddedListener(nil), r.listeners...)
	r.mu.Unlock()

	for _, l := range listeners {
		l(p)
	}
	return true
}

// Get returns the property registered under name, if any.
func (r *Repository) Get(name string) (Property, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.props[name]
	return p, ok
}

// Names returns every registered property name, for diagnostics and for
// the impression subsystem learning which properties exist.
func (r *Repository) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.props))
	for name := range r.props {
		out = append(out, name)
	}
	return out
}
