package resolve

import (
	"fmt"
	"strings"

	"github.com/seantiz/groundstate/internal/registry"
)

// AmbiguousDependencyError reports several candidate sections for a kind
// that a component needs exactly one of.
type AmbiguousDependencyError struct {
	Kind       registry.Kind
	RequiredBy string
	Candidates []string
}

func (e *AmbiguousDependencyError) Error() string {
	return fmt.Sprintf("%s needs one %s section, found %d (%s)",
		e.RequiredBy, e.Kind, len(e.Candidates), strings.Join(e.Candidates, ", "))
}

// MissingRequiredSectionError reports a dependency kind with neither a
// configured section nor a registered default.
type MissingRequiredSectionError struct {
	Kind       registry.Kind
	RequiredBy string
}

func (e *MissingRequiredSectionError) Error() string {
	if e.RequiredBy == "" {
		return fmt.Sprintf("missing required %s section", e.Kind)
	}
	return fmt.Sprintf("%s requires a %s section and no default is registered", e.RequiredBy, e.Kind)
}
