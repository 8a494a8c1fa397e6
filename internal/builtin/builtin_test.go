package builtin_test

import (
	"errors"
	"testing"

	"github.com/seantiz/groundstate/internal/algorithm"
	"github.com/seantiz/groundstate/internal/backend/qasm"
	"github.com/seantiz/groundstate/internal/builtin"
	"github.com/seantiz/groundstate/internal/operator"
	"github.com/seantiz/groundstate/internal/registry"
)

func TestRegistryIsFrozenSingleton(t *testing.T) {
	a, err := builtin.Registry()
	if err != nil {
		t.Fatalf("Registry: %v", err)
	}
	if a != builtin.MustRegistry() {
		t.Error("expected the same registry on every call")
	}
	if !a.Frozen() {
		t.Error("expected a frozen registry")
	}

	err = a.Register(registry.Entry{
		Kind: registry.KindAlgorithm, Name: "QPE",
		Factory: func(registry.Params, registry.Deps) (any, error) { return nil, nil },
	})
	if !errors.Is(err, registry.ErrFrozen) {
		t.Errorf("err = %v, want ErrFrozen", err)
	}
}

func TestDefaults(t *testing.T) {
	reg := builtin.MustRegistry()
	want := map[registry.Kind]string{
		registry.KindProblem:         "energy",
		registry.KindInput:           builtin.InputEnergy,
		registry.KindOptimizer:       "L_BFGS_B",
		registry.KindVariationalForm: "RYRZ",
	}
	for kind, name := range want {
		got, ok := reg.DefaultName(kind)
		if !ok || got != name {
			t.Errorf("DefaultName(%s) = %q, %v; want %q", kind, got, ok, name)
		}
	}
	for _, kind := range []registry.Kind{registry.KindAlgorithm, registry.KindBackend} {
		if name, ok := reg.DefaultName(kind); ok {
			t.Errorf("%s has default %q, want none", kind, name)
		}
	}
}

func TestEveryEntryBuildsFromDefaults(t *testing.T) {
	op, err := operator.New([]operator.Term{{Label: "ZZ", Coeff: 1}})
	if err != nil {
		t.Fatal(err)
	}
	input, err := algorithm.NewEnergyInput(op)
	if err != nil {
		t.Fatal(err)
	}

	reg := builtin.MustRegistry()
	built := map[registry.Kind]any{registry.KindInput: input}

	// Build in dependency order so each factory finds what it requires.
	order := []registry.Kind{
		registry.KindProblem, registry.KindBackend, registry.KindOptimizer,
		registry.KindVariationalForm, registry.KindAlgorithm,
	}
	infos := reg.List()
	for _, kind := range order {
		for _, info := range infos {
			if info.Kind != kind {
				continue
			}
			entry, err := reg.Lookup(info.Kind, info.Name)
			if err != nil {
				t.Fatal(err)
			}
			deps := registry.NewDeps(built, op)
			c, err := entry.Factory(entry.Defaults, deps)
			if err != nil {
				t.Errorf("%s/%s: %v", info.Kind, info.Name, err)
				continue
			}
			if c == nil {
				t.Errorf("%s/%s returned nil", info.Kind, info.Name)
			}
			if info.Default || built[kind] == nil {
				built[kind] = c
			}
		}
	}
}

func TestListCoversBundledComponents(t *testing.T) {
	counts := map[registry.Kind]int{}
	for _, info := range builtin.MustRegistry().List() {
		counts[info.Kind]++
	}
	want := map[registry.Kind]int{
		registry.KindProblem:         2,
		registry.KindInput:           1,
		registry.KindBackend:         2,
		registry.KindOptimizer:       4,
		registry.KindVariationalForm: 2,
		registry.KindAlgorithm:       2,
	}
	for kind, n := range want {
		if counts[kind] != n {
			t.Errorf("%s: %d entries, want %d", kind, counts[kind], n)
		}
	}
}

func TestVQESeedFallsBackToProblem(t *testing.T) {
	reg := builtin.MustRegistry()
	problemEntry, err := reg.Lookup(registry.KindProblem, "energy")
	if err != nil {
		t.Fatal(err)
	}
	p, err := problemEntry.Factory(registry.Params{"random_seed": 9}, registry.Deps{})
	if err != nil {
		t.Fatal(err)
	}
	problem := p.(*algorithm.Problem)
	if problem.RandomSeed == nil || *problem.RandomSeed != 9 {
		t.Errorf("RandomSeed = %v, want 9", problem.RandomSeed)
	}

	if _, err := problemEntry.Factory(registry.Params{"random_seed": -1}, registry.Deps{}); err == nil {
		t.Error("expected negative seed to be rejected")
	}
}

func TestNelderMeadToleranceIsOnFunctionValue(t *testing.T) {
	entry, err := builtin.MustRegistry().Lookup(registry.KindOptimizer, "NELDER_MEAD")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := entry.Defaults["fatol"]; !ok {
		t.Errorf("defaults = %v, want fatol", entry.Defaults)
	}
	if _, ok := entry.Defaults["xatol"]; ok {
		t.Error("xatol suggests a coordinate tolerance the optimizer does not apply")
	}
	if _, err := entry.Factory(registry.Params{"maxfev": 10, "fatol": -1.0}, registry.Deps{}); err == nil {
		t.Error("expected negative fatol to be rejected")
	}
}

func TestQASMShotsBounded(t *testing.T) {
	entry, err := builtin.MustRegistry().Lookup(registry.KindBackend, qasm.Name)
	if err != nil {
		t.Fatal(err)
	}
	for _, shots := range []any{0, qasm.MaxShots + 1, 1e10} {
		if _, err := entry.Factory(registry.Params{"shots": shots}, registry.Deps{}); err == nil {
			t.Errorf("shots %v: expected error", shots)
		}
	}
	if _, err := entry.Factory(registry.Params{"shots": qasm.MaxShots}, registry.Deps{}); err != nil {
		t.Errorf("shots %d: %v", qasm.MaxShots, err)
	}
}
