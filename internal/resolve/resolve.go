package resolve

import (
	"maps"
	"reflect"
	"slices"

	"github.com/seantiz/groundstate/internal/registry"
	"github.com/seantiz/groundstate/internal/runconfig"
)

// Spec is a fully resolved component: a registered name and its merged
// parameters.
type Spec struct {
	Kind     registry.Kind
	Name     string
	Params   registry.Params
	Defaults registry.Params
	// Requires lists the dependency kinds this spec was resolved with.
	// Context dependencies that resolved to nothing are omitted.
	Requires []registry.Kind
	// Configured is false when the spec was substituted from the registry
	// default because the configuration omitted the section.
	Configured bool
}

// Label returns "kind/name" for messages.
func (s Spec) Label() string {
	return string(s.Kind) + "/" + s.Name
}

// Equal reports whether two specs name the same component with equal
// parameters.
func (s Spec) Equal(o Spec) bool {
	return s.Kind == o.Kind && s.Name == o.Name && reflect.DeepEqual(s.Params, o.Params)
}

// Resolve validates every section of cfg against reg and returns the
// algorithm's dependency closure, dependencies first and the algorithm last.
func Resolve(reg *registry.Registry, cfg runconfig.Configuration) ([]Spec, error) {
	configured := make(map[registry.Kind][]Spec)
	for _, section := range cfg.Sections {
		spec, err := resolveSection(reg, section)
		if err != nil {
			return nil, err
		}
		configured[section.Kind] = append(configured[section.Kind], spec)
	}

	r := &resolver{
		reg:        reg,
		configured: configured,
		done:       make(map[registry.Kind]bool),
	}

	root, err := r.pick(registry.KindAlgorithm, registry.Defaulted, "")
	if err != nil {
		return nil, err
	}
	if err := r.visit(root); err != nil {
		return nil, err
	}
	return r.order, nil
}

type resolver struct {
	reg        *registry.Registry
	configured map[registry.Kind][]Spec
	done       map[registry.Kind]bool
	order      []Spec
}

// visit appends spec after its dependencies. Each kind appears at most once
// in the closure, so components sharing a dependency share the same spec.
func (r *resolver) visit(spec *Spec) error {
	if r.done[spec.Kind] {
		return nil
	}
	r.done[spec.Kind] = true

	entry, err := r.reg.Lookup(spec.Kind, spec.Name)
	if err != nil {
		return err
	}
	for _, req := range entry.Requires {
		dep, err := r.pick(req.Kind, req.Policy, spec.Label())
		if err != nil {
			return err
		}
		if dep == nil {
			continue
		}
		spec.Requires = append(spec.Requires, dep.Kind)
		if err := r.visit(dep); err != nil {
			return err
		}
	}
	r.order = append(r.order, *spec)
	return nil
}

// pick selects the spec that satisfies a dependency on kind. A nil spec
// with a nil error means an absent Context dependency.
func (r *resolver) pick(kind registry.Kind, policy registry.Policy, requiredBy string) (*Spec, error) {
	candidates := r.configured[kind]
	switch {
	case len(candidates) == 1:
		spec := candidates[0]
		return &spec, nil
	case len(candidates) > 1:
		names := make([]string, len(candidates))
		for i, c := range candidates {
			names[i] = c.Name
		}
		if requiredBy == "" {
			requiredBy = "configuration"
		}
		return nil, &AmbiguousDependencyError{Kind: kind, RequiredBy: requiredBy, Candidates: names}
	}

	if policy == registry.Context {
		return nil, nil
	}
	name, ok := r.reg.DefaultName(kind)
	if !ok {
		return nil, &MissingRequiredSectionError{Kind: kind, RequiredBy: requiredBy}
	}
	spec, err := resolveSection(r.reg, runconfig.Section{Kind: kind, Name: name})
	if err != nil {
		return nil, err
	}
	spec.Configured = false
	return &spec, nil
}

// resolveSection merges a section's parameters over its registry defaults.
func resolveSection(reg *registry.Registry, section runconfig.Section) (Spec, error) {
	name := section.Name
	if name == "" {
		def, ok := reg.DefaultName(section.Kind)
		if !ok {
			return Spec{}, &registry.UnknownComponentError{Kind: section.Kind}
		}
		name = def
	}

	entry, err := reg.Lookup(section.Kind, name)
	if err != nil {
		return Spec{}, err
	}

	merged := entry.Defaults.Clone()
	for _, k := range slices.Sorted(maps.Keys(section.Params)) {
		if _, ok := entry.Defaults[k]; !ok {
			return Spec{}, &registry.UnknownComponentError{Kind: section.Kind, Name: name, Param: k}
		}
		merged[k] = section.Params[k]
	}

	return Spec{
		Kind:       section.Kind,
		Name:       name,
		Params:     merged,
		Defaults:   entry.Defaults,
		Configured: true,
	}, nil
}

// Find returns the spec of the given kind, if present.
func Find(specs []Spec, kind registry.Kind) (Spec, bool) {
	for _, s := range specs {
		if s.Kind == kind {
			return s, true
		}
	}
	return Spec{}, false
}

// Describe renders specs as "kind/name" labels for logs.
func Describe(specs []Spec) []string {
	out := make([]string, len(specs))
	for i, s := range specs {
		out[i] = s.Label()
	}
	return out
}
