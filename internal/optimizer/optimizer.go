// Package optimizer adapts gonum's optimize methods to the minimisation
// interface used by variational algorithms.
package optimizer

import (
	"context"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/optimize"
)

// Objective is a scalar function to minimise. Grad may be nil for
// derivative-free optimizers.
type Objective struct {
	Func func(x []float64) float64
	Grad func(grad, x []float64)
}

// Result is the outcome of one minimisation.
type Result struct {
	X          []float64
	F          float64
	FuncEvals  int
	GradEvals  int
	Iterations int
	Status     string
}

// Optimizer minimises an objective starting from x0.
type Optimizer interface {
	Name() string
	// UsesGradient reports whether Minimize calls Objective.Grad.
	UsesGradient() bool
	Minimize(ctx context.Context, obj Objective, x0 []float64) (Result, error)
}

// gonumOptimizer drives one gonum method with fixed settings. The method is
// rebuilt per call since gonum methods carry state between iterations.
type gonumOptimizer struct {
	name     string
	gradient bool
	method   func() optimize.Method
	settings func() *optimize.Settings
}

func (g *gonumOptimizer) Name() string       { return g.name }
func (g *gonumOptimizer) UsesGradient() bool { return g.gradient }

func (g *gonumOptimizer) Minimize(ctx context.Context, obj Objective, x0 []float64) (Result, error) {
	if obj.Func == nil {
		return Result{}, fmt.Errorf("%s: objective has no function", g.name)
	}
	if g.gradient && obj.Grad == nil {
		return Result{}, fmt.Errorf("%s: objective has no gradient", g.name)
	}
	if len(x0) == 0 {
		return Result{}, fmt.Errorf("%s: empty initial point", g.name)
	}

	p := optimize.Problem{Func: obj.Func}
	if g.gradient {
		p.Grad = obj.Grad
	}
	settings := g.settings()
	settings.Recorder = &ctxRecorder{ctx: ctx}

	res, err := optimize.Minimize(p, append([]float64(nil), x0...), settings, g.method())
	if res == nil {
		if err == nil {
			err = errors.New("no result")
		}
		return Result{}, fmt.Errorf("%s: %w", g.name, err)
	}
	out := Result{
		X:          res.X,
		F:          res.F,
		FuncEvals:  res.Stats.FuncEvaluations,
		GradEvals:  res.Stats.GradEvaluations,
		Iterations: res.Stats.MajorIterations,
		Status:     res.Status.String(),
	}
	if err != nil && !stalled(err) {
		return out, fmt.Errorf("%s: %w", g.name, err)
	}
	return out, nil
}

// stalled reports line-search failures that gonum raises once the iterate can
// no longer be improved in floating point. The best location is kept.
func stalled(err error) bool {
	return errors.Is(err, optimize.ErrLinesearcherFailure) || errors.Is(err, optimize.ErrNoProgress)
}

// ctxRecorder aborts the optimisation when the context is done.
type ctxRecorder struct {
	ctx context.Context
}

func (r *ctxRecorder) Init() error { return r.ctx.Err() }

func (r *ctxRecorder) Record(*optimize.Location, optimize.Operation, *optimize.Stats) error {
	return r.ctx.Err()
}
