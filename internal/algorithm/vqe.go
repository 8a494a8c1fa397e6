package algorithm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/seantiz/groundstate/internal/backend"
	"github.com/seantiz/groundstate/internal/ctxlog"
	"github.com/seantiz/groundstate/internal/operator"
	"github.com/seantiz/groundstate/internal/optimizer"
	"github.com/seantiz/groundstate/internal/result"
	"github.com/seantiz/groundstate/internal/varform"
)

// VQEName is the registry name of the variational eigensolver.
const VQEName = "VQE"

// progressEvery is the evaluation interval between progress lines.
const progressEvery = 50

// VQEConfig holds VQE settings.
type VQEConfig struct {
	// InitialPoint seeds the optimizer. When empty a point is drawn
	// uniformly from [-π, π] using Seed.
	InitialPoint []float64
	// MaxEvalsGrouped bounds how many gradient evaluations run concurrently.
	MaxEvalsGrouped int
	Seed            *uint64
}

// VQE minimises ⟨ψ(θ)|H|ψ(θ)⟩ over the parameters of a variational form.
type VQE struct {
	form varform.Form
	opt  optimizer.Optimizer
	cfg  VQEConfig
}

var _ Algorithm = (*VQE)(nil)

// NewVQE returns a VQE over form driven by opt.
func NewVQE(form varform.Form, opt optimizer.Optimizer, cfg VQEConfig) (*VQE, error) {
	if form == nil {
		return nil, errors.New("VQE: nil variational form")
	}
	if opt == nil {
		return nil, errors.New("VQE: nil optimizer")
	}
	if cfg.InitialPoint != nil && len(cfg.InitialPoint) != form.NumParameters() {
		return nil, fmt.Errorf("VQE: initial_point has %d values, %s needs %d",
			len(cfg.InitialPoint), form.Name(), form.NumParameters())
	}
	if cfg.MaxEvalsGrouped < 1 {
		cfg.MaxEvalsGrouped = 1
	}
	cfg.InitialPoint = append([]float64(nil), cfg.InitialPoint...)
	return &VQE{form: form, opt: opt, cfg: cfg}, nil
}

func (v *VQE) Name() string          { return VQEName }
func (v *VQE) RequiresBackend() bool { return true }

// Form returns the variational form.
func (v *VQE) Form() varform.Form { return v.form }

// Optimizer returns the optimizer.
func (v *VQE) Optimizer() optimizer.Optimizer { return v.opt }

// Run optimises the variational form on be. When the optimizer fails the
// best point seen so far is returned alongside the error.
func (v *VQE) Run(ctx context.Context, input any, be backend.Backend) (map[string]any, error) {
	op, err := OperatorFrom(input)
	if err != nil {
		return nil, err
	}
	if be == nil {
		return nil, errors.New("VQE: no backend")
	}
	if op.NumQubits() != v.form.NumQubits() {
		return nil, fmt.Errorf("VQE: operator acts on %d qubits, %s was built for %d",
			op.NumQubits(), v.form.Name(), v.form.NumQubits())
	}

	logger := ctxlog.FromContext(ctx)
	start := time.Now()

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	e := &evaluator{ctx: ctx, cancel: cancel, form: v.form, op: op, be: be, best: math.Inf(1)}
	obj := optimizer.Objective{Func: e.energy}
	if v.opt.UsesGradient() {
		obj.Grad = func(grad, x []float64) { e.gradient(grad, x, v.cfg.MaxEvalsGrouped) }
	}

	x0 := v.initialPoint()
	logger.Debug("vqe starting",
		"form", v.form.Name(),
		"optimizer", v.opt.Name(),
		"backend", be.Name(),
		"parameters", len(x0),
	)

	res, optErr := v.opt.Minimize(ctx, obj, x0)
	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		optErr = cause
	}
	if optErr != nil {
		return e.partial(), fmt.Errorf("VQE: %w", optErr)
	}

	final, err := be.Execute(ctx, backend.Request{Circuit: mustCircuit(v.form, res.X), Observable: op, ReturnState: true})
	if err != nil {
		return e.partial(), fmt.Errorf("VQE: final evaluation: %w", err)
	}
	evals := e.count.Load() + 1
	elapsed := time.Since(start)
	ctxlog.Progress(ctx, "vqe finished: energy %.10f after %d evaluations", res.F, evals)
	logger.Info("vqe finished",
		"energy", res.F,
		"evaluations", evals,
		"status", res.Status,
		"duration", elapsed,
	)

	out := map[string]any{
		result.FieldEnergy: res.F,
		"eigvals":          []float64{res.F},
		"opt_params":       append([]float64(nil), res.X...),
		"eval_count":       evals,
		"eval_time":        elapsed.Seconds(),
		"optimizer_status": res.Status,
	}
	if final.State != nil {
		out["min_vector"] = vector(final.State)
	}
	return out, nil
}

func (v *VQE) initialPoint() []float64 {
	if len(v.cfg.InitialPoint) > 0 {
		return append([]float64(nil), v.cfg.InitialPoint...)
	}
	var seed uint64
	if v.cfg.Seed != nil {
		seed = *v.cfg.Seed
	} else {
		seed = rand.Uint64()
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d))
	x := make([]float64, v.form.NumParameters())
	for i := range x {
		x[i] = (2*rng.Float64() - 1) * math.Pi
	}
	return x
}

// mustCircuit builds a circuit for parameters already known to fit the form.
func mustCircuit(form varform.Form, x []float64) backend.Circuit {
	c, err := form.Circuit(x)
	if err != nil {
		panic(err)
	}
	return c
}

// evaluator computes energies on the backend and remembers the best point.
// A backend failure cancels ctx with the failure as cause, which stops the
// optimizer at its next iteration.
type evaluator struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
	form   varform.Form
	op     *operator.WeightedPauliOperator
	be     backend.Backend

	count atomic.Int64

	mu    sync.Mutex
	best  float64
	bestX []float64
}

func (e *evaluator) eval(x []float64) (float64, error) {
	c, err := e.form.Circuit(x)
	if err != nil {
		return 0, err
	}
	resp, err := e.be.Execute(e.ctx, backend.Request{Circuit: c, Observable: e.op})
	if err != nil {
		return 0, err
	}
	n := e.count.Add(1)
	if n%progressEvery == 0 {
		ctxlog.Progress(e.ctx, "evaluation %d: energy %.10f", n, resp.Expectation)
	}
	return resp.Expectation, nil
}

// energy is the optimizer objective. Failures return +Inf after cancelling.
func (e *evaluator) energy(x []float64) float64 {
	v, err := e.eval(x)
	if err != nil {
		e.cancel(err)
		return math.Inf(1)
	}
	e.mu.Lock()
	if v < e.best {
		e.best = v
		e.bestX = append(e.bestX[:0], x...)
	}
	e.mu.Unlock()
	return v
}

// gradient fills grad by the parameter-shift rule
// ∂E/∂θᵢ = (E(θ + π/2·eᵢ) − E(θ − π/2·eᵢ)) / 2,
// running at most group evaluations at once.
func (e *evaluator) gradient(grad, x []float64, group int) {
	values := make([]float64, 2*len(x))
	var g errgroup.Group
	g.SetLimit(group)
	for i := range values {
		g.Go(func() error {
			shifted := append([]float64(nil), x...)
			if i%2 == 0 {
				shifted[i/2] += math.Pi / 2
			} else {
				shifted[i/2] -= math.Pi / 2
			}
			v, err := e.eval(shifted)
			values[i] = v
			return err
		})
	}
	if err := g.Wait(); err != nil {
		e.cancel(err)
		clear(grad)
		return
	}
	for i := range grad {
		grad[i] = (values[2*i] - values[2*i+1]) / 2
	}
}

func (e *evaluator) partial() map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.bestX == nil {
		return nil
	}
	return map[string]any{
		result.FieldEnergy: e.best,
		"opt_params":       append([]float64(nil), e.bestX...),
		"eval_count":       e.count.Load(),
	}
}
