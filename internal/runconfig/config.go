package runconfig

import (
	"encoding/json"
	"fmt"

	"github.com/seantiz/groundstate/internal/registry"
)

// nameKey is the section key that selects the component name.
const nameKey = "name"

// Section configures one component. An empty Name selects the kind's default.
type Section struct {
	Kind   registry.Kind
	Name   string
	Params registry.Params
}

// Configuration is an ordered list of sections.
type Configuration struct {
	Sections []Section
}

// New builds a Configuration from sections, copying parameter maps so later
// changes by the caller do not leak in.
func New(sections ...Section) Configuration {
	cfg := Configuration{Sections: make([]Section, len(sections))}
	for i, s := range sections {
		s.Params = s.Params.Clone()
		cfg.Sections[i] = s
	}
	return cfg
}

// Of returns the sections of the given kind in configuration order.
func (c Configuration) Of(kind registry.Kind) []Section {
	var out []Section
	for _, s := range c.Sections {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

// FromMap builds a Configuration from decoded key-value data. Keys are
// visited in the order given by keys; each value is a section map or a list
// of section maps.
func FromMap(keys []string, m map[string]any) (Configuration, error) {
	var cfg Configuration
	for _, k := range keys {
		kind, err := registry.ParseKind(k)
		if err != nil {
			return Configuration{}, err
		}
		switch v := m[k].(type) {
		case map[string]any:
			s, err := sectionFromMap(kind, v)
			if err != nil {
				return Configuration{}, err
			}
			cfg.Sections = append(cfg.Sections, s)
		case []any:
			for i, item := range v {
				sm, ok := item.(map[string]any)
				if !ok {
					return Configuration{}, fmt.Errorf("%s[%d]: want object, got %T", kind, i, item)
				}
				s, err := sectionFromMap(kind, sm)
				if err != nil {
					return Configuration{}, fmt.Errorf("%s[%d]: %w", kind, i, err)
				}
				cfg.Sections = append(cfg.Sections, s)
			}
		default:
			return Configuration{}, fmt.Errorf("%s: want object or list of objects, got %T", kind, v)
		}
	}
	return cfg, nil
}

func sectionFromMap(kind registry.Kind, m map[string]any) (Section, error) {
	s := Section{Kind: kind, Params: make(registry.Params, len(m))}
	for k, v := range m {
		if k == nameKey {
			name, ok := v.(string)
			if !ok {
				return Section{}, fmt.Errorf("%s: name must be a string, got %T", kind, v)
			}
			s.Name = name
			continue
		}
		s.Params[k] = v
	}
	return s, nil
}

// MarshalJSON encodes the configuration in its JSON document form. Kinds with
// several sections are written as lists.
func (c Configuration) MarshalJSON() ([]byte, error) {
	grouped := make(map[string][]map[string]any)
	var order []string
	for _, s := range c.Sections {
		m := make(map[string]any, len(s.Params)+1)
		for k, v := range s.Params {
			m[k] = v
		}
		if s.Name != "" {
			m[nameKey] = s.Name
		}
		k := string(s.Kind)
		if _, seen := grouped[k]; !seen {
			order = append(order, k)
		}
		grouped[k] = append(grouped[k], m)
	}

	doc := make(map[string]any, len(grouped))
	for _, k := range order {
		if len(grouped[k]) == 1 {
			doc[k] = grouped[k][0]
		} else {
			doc[k] = grouped[k]
		}
	}
	return json.Marshal(doc)
}

// UnmarshalJSON decodes a JSON document, preserving top-level key order.
func (c *Configuration) UnmarshalJSON(data []byte) error {
	cfg, err := DecodeJSON(data)
	if err != nil {
		return err
	}
	*c = cfg
	return nil
}
