package result

import (
	"errors"
	"testing"
)

func TestNormalizeEnergy(t *testing.T) {
	raw := map[string]any{"energy": -1.857275, "eval_count": 42}

	rec, err := Normalize(ProblemEnergy, raw)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	e, ok := rec.Energy()
	if !ok || e != -1.857275 {
		t.Errorf("Energy() = %v, %v", e, ok)
	}
	if rec["eval_count"] != 42 {
		t.Errorf("extra field eval_count = %v, want 42", rec["eval_count"])
	}

	// The record is a copy.
	rec["energy"] = 0.0
	if raw["energy"] != -1.857275 {
		t.Error("Normalize must not alias the raw map")
	}
}

func TestNormalizeMissingCoreField(t *testing.T) {
	tests := []struct {
		problem ProblemType
		raw     map[string]any
		field   string
	}{
		{ProblemEnergy, map[string]any{"eigvals": []float64{-1}}, FieldEnergy},
		{ProblemExcitedStates, map[string]any{"energy": -1.0}, FieldEnergies},
	}
	for _, tt := range tests {
		_, err := Normalize(tt.problem, tt.raw)
		var inc *IncompleteResultError
		if !errors.As(err, &inc) {
			t.Fatalf("Normalize(%s) error = %v, want IncompleteResultError", tt.problem, err)
		}
		if inc.Field != tt.field || inc.Problem != tt.problem {
			t.Errorf("IncompleteResultError = %+v, want field %q", inc, tt.field)
		}
	}
}

func TestNormalizeUnknownProblemPassesThrough(t *testing.T) {
	rec, err := Normalize("dynamics", map[string]any{"x": 1})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if rec["x"] != 1 {
		t.Errorf("rec = %v", rec)
	}
}

func TestCoreFieldsReturnsCopy(t *testing.T) {
	fields := CoreFields(ProblemExcitedStates)
	fields[0] = "mutated"

	if got := CoreFields(ProblemExcitedStates); got[0] != FieldEnergy {
		t.Errorf("CoreFields(excited_states) = %v after caller mutation", got)
	}
	if _, err := Normalize(ProblemExcitedStates, map[string]any{"mutated": 1, FieldEnergies: []float64{}}); err == nil {
		t.Error("expected missing energy field error")
	}
}
