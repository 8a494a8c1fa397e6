// Package builtin registers the bundled components and exposes the
// process-wide frozen registry built from them.
package builtin

import (
	"fmt"
	"sync"

	"github.com/seantiz/groundstate/internal/algorithm"
	"github.com/seantiz/groundstate/internal/backend/qasm"
	"github.com/seantiz/groundstate/internal/backend/statevector"
	"github.com/seantiz/groundstate/internal/optimizer"
	"github.com/seantiz/groundstate/internal/registry"
	"github.com/seantiz/groundstate/internal/result"
	"github.com/seantiz/groundstate/internal/varform"
)

// InputEnergy is the registry name of the Hamiltonian input.
const InputEnergy = "EnergyInput"

var (
	once    sync.Once
	shared  *registry.Registry
	initErr error
)

// Registry returns the frozen registry holding every bundled component. It
// is built once per process.
func Registry() (*registry.Registry, error) {
	once.Do(func() {
		reg := registry.New()
		if err := Register(reg); err != nil {
			initErr = err
			return
		}
		reg.Freeze()
		shared = reg
	})
	return shared, initErr
}

// MustRegistry is Registry for callers that cannot proceed without it.
func MustRegistry() *registry.Registry {
	reg, err := Registry()
	if err != nil {
		panic(err)
	}
	return reg
}

// Register adds the bundled components to reg.
func Register(reg *registry.Registry) error {
	for _, e := range Entries() {
		if err := reg.Register(e); err != nil {
			return err
		}
	}
	return nil
}

// Entries returns the bundled component entries.
func Entries() []registry.Entry {
	return []registry.Entry{
		{
			Kind: registry.KindProblem, Name: string(result.ProblemEnergy), Default: true,
			Defaults:    registry.Params{"random_seed": nil},
			Factory:     problemFactory(result.ProblemEnergy),
			Description: "ground-state energy",
		},
		{
			Kind: registry.KindProblem, Name: string(result.ProblemExcitedStates),
			Defaults:    registry.Params{"random_seed": nil},
			Factory:     problemFactory(result.ProblemExcitedStates),
			Description: "lowest energies of the spectrum",
		},
		{
			Kind: registry.KindInput, Name: InputEnergy, Default: true,
			Defaults:    registry.Params{},
			Factory:     newEnergyInput,
			Description: "qubit Hamiltonian as a weighted sum of Pauli strings",
		},
		{
			Kind: registry.KindBackend, Name: statevector.Name,
			Defaults:    registry.Params{},
			Factory:     newStatevector,
			Description: "exact statevector simulator",
		},
		{
			Kind: registry.KindBackend, Name: qasm.Name,
			Defaults:    registry.Params{"shots": qasm.DefaultShots, "seed": nil},
			Factory:     newQASM,
			Description: "shot-sampling simulator",
		},
		{
			Kind: registry.KindOptimizer, Name: optimizer.NameLBFGSB, Default: true,
			Defaults:    registry.Params{"maxfun": 1000, "maxiter": 15000, "factr": 10, "pgtol": 1e-5},
			Factory:     newLBFGSB,
			Description: "limited-memory BFGS",
		},
		{
			Kind: registry.KindOptimizer, Name: optimizer.NameCG,
			Defaults:    registry.Params{"maxiter": 20, "gtol": 1e-5},
			Factory:     newCG,
			Description: "nonlinear conjugate gradient",
		},
		{
			Kind: registry.KindOptimizer, Name: optimizer.NameGradientDescent,
			Defaults:    registry.Params{"maxiter": 100, "tol": 1e-6},
			Factory:     newGradientDescent,
			Description: "steepest descent with line search",
		},
		{
			Kind: registry.KindOptimizer, Name: optimizer.NameNelderMead,
			Defaults:    registry.Params{"maxfev": 1000, "fatol": 1e-4},
			Factory:     newNelderMead,
			Description: "derivative-free simplex search",
		},
		{
			Kind: registry.KindVariationalForm, Name: "RYRZ", Default: true,
			Defaults:    registry.Params{"depth": 3, "entanglement": string(varform.EntangleFull)},
			Requires:    []registry.Requirement{{Kind: registry.KindInput}},
			Factory:     formFactory(func(n, d int, e varform.Entanglement) (varform.Form, error) { return varform.NewRYRZ(n, d, e) }),
			Description: "RY and RZ rotation layers with CZ entanglers",
		},
		{
			Kind: registry.KindVariationalForm, Name: "RY",
			Defaults:    registry.Params{"depth": 3, "entanglement": string(varform.EntangleFull)},
			Requires:    []registry.Requirement{{Kind: registry.KindInput}},
			Factory:     formFactory(func(n, d int, e varform.Entanglement) (varform.Form, error) { return varform.NewRY(n, d, e) }),
			Description: "RY rotation layers with CZ entanglers",
		},
		{
			Kind: registry.KindAlgorithm, Name: algorithm.ExactEigensolverName,
			Defaults: registry.Params{"k": 1},
			Requires: []registry.Requirement{
				{Kind: registry.KindProblem},
				{Kind: registry.KindInput},
			},
			Factory:     newExactEigensolver,
			Description: "classical dense diagonalisation",
		},
		{
			Kind: registry.KindAlgorithm, Name: algorithm.VQEName,
			Defaults: registry.Params{"initial_point": nil, "max_evals_grouped": 1, "seed": nil},
			Requires: []registry.Requirement{
				{Kind: registry.KindProblem},
				{Kind: registry.KindInput},
				{Kind: registry.KindBackend, Policy: registry.Context},
				{Kind: registry.KindOptimizer},
				{Kind: registry.KindVariationalForm},
			},
			Factory:     newVQE,
			Description: "variational quantum eigensolver",
		},
	}
}

func problemFactory(t result.ProblemType) registry.Factory {
	return func(p registry.Params, _ registry.Deps) (any, error) {
		seed, err := optionalSeed(p, "random_seed")
		if err != nil {
			return nil, err
		}
		return algorithm.NewProblem(t, seed), nil
	}
}

func newEnergyInput(_ registry.Params, deps registry.Deps) (any, error) {
	return algorithm.NewEnergyInput(deps.Payload())
}

func newStatevector(registry.Params, registry.Deps) (any, error) {
	return statevector.New(), nil
}

func newQASM(p registry.Params, _ registry.Deps) (any, error) {
	shots, err := p.Int("shots")
	if err != nil {
		return nil, err
	}
	if shots <= 0 || shots > qasm.MaxShots {
		return nil, fmt.Errorf("shots must be in [1, %d], got %d", qasm.MaxShots, shots)
	}
	seed, err := optionalSeed(p, "seed")
	if err != nil {
		return nil, err
	}
	return qasm.New(shots, seed), nil
}

func newLBFGSB(p registry.Params, _ registry.Deps) (any, error) {
	var c optimizer.LBFGSBConfig
	var err error
	if c.MaxFun, err = p.Int("maxfun"); err != nil {
		return nil, err
	}
	if c.MaxIter, err = p.Int("maxiter"); err != nil {
		return nil, err
	}
	if c.Factr, err = p.Float("factr"); err != nil {
		return nil, err
	}
	if c.PGTol, err = p.Float("pgtol"); err != nil {
		return nil, err
	}
	return optimizer.NewLBFGSB(c)
}

func newCG(p registry.Params, _ registry.Deps) (any, error) {
	var c optimizer.CGConfig
	var err error
	if c.MaxIter, err = p.Int("maxiter"); err != nil {
		return nil, err
	}
	if c.GTol, err = p.Float("gtol"); err != nil {
		return nil, err
	}
	return optimizer.NewCG(c)
}

func newGradientDescent(p registry.Params, _ registry.Deps) (any, error) {
	var c optimizer.GradientDescentConfig
	var err error
	if c.MaxIter, err = p.Int("maxiter"); err != nil {
		return nil, err
	}
	if c.Tol, err = p.Float("tol"); err != nil {
		return nil, err
	}
	return optimizer.NewGradientDescent(c)
}

func newNelderMead(p registry.Params, _ registry.Deps) (any, error) {
	var c optimizer.NelderMeadConfig
	var err error
	if c.MaxFev, err = p.Int("maxfev"); err != nil {
		return nil, err
	}
	if c.FATol, err = p.Float("fatol"); err != nil {
		return nil, err
	}
	return optimizer.NewNelderMead(c)
}

// formFactory sizes a variational form to the input operator.
func formFactory(build func(qubits, depth int, ent varform.Entanglement) (varform.Form, error)) registry.Factory {
	return func(p registry.Params, deps registry.Deps) (any, error) {
		in, ok := deps.Get(registry.KindInput).(*algorithm.EnergyInput)
		if !ok {
			return nil, fmt.Errorf("variational form needs an %s to size its circuit", InputEnergy)
		}
		depth, err := p.Int("depth")
		if err != nil {
			return nil, err
		}
		name, err := p.String("entanglement")
		if err != nil {
			return nil, err
		}
		ent, err := varform.ParseEntanglement(name)
		if err != nil {
			return nil, err
		}
		return build(in.NumQubits(), depth, ent)
	}
}

func newExactEigensolver(p registry.Params, _ registry.Deps) (any, error) {
	k, err := p.Int("k")
	if err != nil {
		return nil, err
	}
	return algorithm.NewExactEigensolver(k)
}

func newVQE(p registry.Params, deps registry.Deps) (any, error) {
	problem, _ := deps.Get(registry.KindProblem).(*algorithm.Problem)
	if t := problem.ProblemType(); t != result.ProblemEnergy {
		return nil, fmt.Errorf("VQE does not solve %q problems", t)
	}
	form, ok := deps.Get(registry.KindVariationalForm).(varform.Form)
	if !ok {
		return nil, fmt.Errorf("VQE needs a variational form")
	}
	opt, ok := deps.Get(registry.KindOptimizer).(optimizer.Optimizer)
	if !ok {
		return nil, fmt.Errorf("VQE needs an optimizer")
	}

	cfg := algorithm.VQEConfig{}
	var err error
	if cfg.InitialPoint, err = p.Floats("initial_point"); err != nil {
		return nil, err
	}
	if cfg.MaxEvalsGrouped, err = p.Int("max_evals_grouped"); err != nil {
		return nil, err
	}
	if cfg.Seed, err = optionalSeed(p, "seed"); err != nil {
		return nil, err
	}
	if cfg.Seed == nil && problem != nil {
		cfg.Seed = problem.RandomSeed
	}
	return algorithm.NewVQE(form, opt, cfg)
}

func optionalSeed(p registry.Params, name string) (*uint64, error) {
	n, ok, err := p.OptionalInt(name)
	if err != nil || !ok {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("parameter %q must not be negative, got %d", name, n)
	}
	seed := uint64(n)
	return &seed, nil
}
