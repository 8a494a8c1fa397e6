// Package result defines the uniform result record returned by every
// algorithm and the per-problem-type set of fields that record must carry.
package result

import (
	"fmt"
	"maps"
	"slices"
)

// ProblemType names the kind of question an algorithm answers.
type ProblemType string

// Known problem types.
const (
	ProblemEnergy        ProblemType = "energy"
	ProblemExcitedStates ProblemType = "excited_states"
)

// Core field names.
const (
	FieldEnergy   = "energy"
	FieldEnergies = "energies"
)

// Record maps result field names to values.
type Record map[string]any

// Energy returns the energy field as a float64.
func (r Record) Energy() (float64, bool) {
	e, ok := r[FieldEnergy].(float64)
	return e, ok
}

// coreFields is fixed at build time and never written.
var coreFields = map[ProblemType][]string{
	ProblemEnergy:        {FieldEnergy},
	ProblemExcitedStates: {FieldEnergy, FieldEnergies},
}

// CoreFields returns the fields every result for p must contain. Unknown
// problem types have no core fields. The slice is a copy.
func CoreFields(p ProblemType) []string {
	return slices.Clone(coreFields[p])
}

// IncompleteResultError reports a core field missing from a raw result.
type IncompleteResultError struct {
	Problem ProblemType
	Field   string
}

func (e *IncompleteResultError) Error() string {
	return fmt.Sprintf("result for problem %q is missing core field %q", e.Problem, e.Field)
}

// Normalize checks that raw carries every core field of p and returns it as
// a Record. Values are copied unchanged and extra fields pass through.
func Normalize(p ProblemType, raw map[string]any) (Record, error) {
	for _, f := range CoreFields(p) {
		if _, ok := raw[f]; !ok {
			return nil, &IncompleteResultError{Problem: p, Field: f}
		}
	}
	out := make(Record, len(raw))
	maps.Copy(out, raw)
	return out, nil
}
