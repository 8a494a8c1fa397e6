package registry

import (
	"fmt"
	"sort"
	"sync"
)

// Policy describes what happens when a required kind has no section in a
// configuration.
type Policy int

const (
	// Defaulted dependencies fall back to the kind's default component and
	// are missing only when the kind declares no default.
	Defaulted Policy = iota
	// Context dependencies are execution contexts. When absent they resolve
	// to nothing and the caller decides whether that is acceptable.
	Context
)

// Requirement declares that a component depends on one component of Kind.
type Requirement struct {
	Kind   Kind
	Policy Policy
}

// Deps carries already-constructed dependencies into a factory.
type Deps struct {
	components map[Kind]any
	payload    any
}

// NewDeps returns a Deps holding the given components and input payload.
func NewDeps(components map[Kind]any, payload any) Deps {
	return Deps{components: components, payload: payload}
}

// Get returns the constructed dependency of kind k, or nil.
func (d Deps) Get(k Kind) any {
	return d.components[k]
}

// Payload returns the caller-supplied input payload.
func (d Deps) Payload() any {
	return d.payload
}

// Factory builds a component from merged parameters and its dependencies.
type Factory func(params Params, deps Deps) (any, error)

// Entry describes one registered component.
type Entry struct {
	Kind     Kind
	Name     string
	Factory  Factory
	Defaults Params
	Requires []Requirement
	// Default marks the entry as the kind's fallback when a configuration
	// omits the section.
	Default bool
	// Description is a short human-readable summary.
	Description string
}

// EntryInfo is the serialisable view of an Entry.
type EntryInfo struct {
	Kind        Kind   `json:"kind"`
	Name        string `json:"name"`
	Default     bool   `json:"default"`
	Defaults    Params `json:"defaults"`
	Requires    []Kind `json:"requires,omitempty"`
	Description string `json:"description,omitempty"`
}

type key struct {
	kind Kind
	name string
}

// Registry maps (kind, name) pairs to component entries.
type Registry struct {
	mu       sync.RWMutex
	entries  map[key]*Entry
	defaults map[Kind]string
	frozen   bool
}

// New creates an empty, unfrozen registry.
func New() *Registry {
	return &Registry{
		entries:  make(map[key]*Entry),
		defaults: make(map[Kind]string),
	}
}

// Register adds an entry. It fails if the registry is frozen, if the pair is
// already present, or if a second default is declared for the same kind.
func (r *Registry) Register(e Entry) error {
	if e.Factory == nil {
		return fmt.Errorf("register %s %q: nil factory", e.Kind, e.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("register %s %q: %w", e.Kind, e.Name, ErrFrozen)
	}
	k := key{e.Kind, e.Name}
	if _, ok := r.entries[k]; ok {
		return &DuplicateRegistrationError{Kind: e.Kind, Name: e.Name}
	}
	if e.Default {
		if prev, ok := r.defaults[e.Kind]; ok {
			return fmt.Errorf("register %s %q: %q is already the default", e.Kind, e.Name, prev)
		}
		r.defaults[e.Kind] = e.Name
	}

	e.Defaults = e.Defaults.Clone()
	e.Requires = append([]Requirement(nil), e.Requires...)
	r.entries[k] = &e
	return nil
}

// Freeze makes the registry read-only.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// Lookup returns a copy of the entry registered under (kind, name).
func (r *Registry) Lookup(kind Kind, name string) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[key{kind, name}]
	if !ok {
		return Entry{}, &UnknownComponentError{Kind: kind, Name: name}
	}
	out := *e
	out.Defaults = e.Defaults.Clone()
	return out, nil
}

// DefaultName returns the default component name for kind, if one is declared.
func (r *Registry) DefaultName(kind Kind) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.defaults[kind]
	return name, ok
}

// List returns information about all registered entries, sorted by kind
// then name for a stable API response.
func (r *Registry) List() []EntryInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]EntryInfo, 0, len(r.entries))
	for _, e := range r.entries {
		info := EntryInfo{
			Kind:        e.Kind,
			Name:        e.Name,
			Default:     e.Default,
			Defaults:    e.Defaults.Clone(),
			Description: e.Description,
		}
		for _, req := range e.Requires {
			info.Requires = append(info.Requires, req.Kind)
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Kind != infos[j].Kind {
			return infos[i].Kind < infos[j].Kind
		}
		return infos[i].Name < infos[j].Name
	})
	return infos
}
