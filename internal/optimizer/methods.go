package optimizer

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
)

// Registry names of the bundled optimizers.
const (
	NameLBFGSB          = "L_BFGS_B"
	NameCG              = "CG"
	NameGradientDescent = "GRADIENT_DESCENT"
	NameNelderMead      = "NELDER_MEAD"
)

// stallIterations is how many major iterations without improvement end a run.
const stallIterations = 20

// LBFGSBConfig holds the L_BFGS_B limits. Factr scales machine epsilon into
// the function tolerance; PGTol bounds the gradient norm.
type LBFGSBConfig struct {
	MaxFun  int
	MaxIter int
	Factr   float64
	PGTol   float64
}

// NewLBFGSB returns a limited-memory BFGS optimizer.
func NewLBFGSB(c LBFGSBConfig) (Optimizer, error) {
	if c.MaxFun <= 0 || c.MaxIter <= 0 {
		return nil, fmt.Errorf("%s: maxfun and maxiter must be positive", NameLBFGSB)
	}
	if c.Factr < 0 || c.PGTol < 0 {
		return nil, fmt.Errorf("%s: factr and pgtol must not be negative", NameLBFGSB)
	}
	return &gonumOptimizer{
		name:     NameLBFGSB,
		gradient: true,
		method:   func() optimize.Method { return &optimize.LBFGS{} },
		settings: func() *optimize.Settings {
			return &optimize.Settings{
				FuncEvaluations:   c.MaxFun,
				MajorIterations:   c.MaxIter,
				GradientThreshold: c.PGTol,
				Converger: &optimize.FunctionConverge{
					Relative:   c.Factr * epsilon,
					Iterations: stallIterations,
				},
			}
		},
	}, nil
}

// CGConfig holds the conjugate-gradient limits.
type CGConfig struct {
	MaxIter int
	GTol    float64
}

// NewCG returns a nonlinear conjugate-gradient optimizer.
func NewCG(c CGConfig) (Optimizer, error) {
	if c.MaxIter <= 0 {
		return nil, fmt.Errorf("%s: maxiter must be positive", NameCG)
	}
	if c.GTol < 0 {
		return nil, fmt.Errorf("%s: gtol must not be negative", NameCG)
	}
	return &gonumOptimizer{
		name:     NameCG,
		gradient: true,
		method:   func() optimize.Method { return &optimize.CG{} },
		settings: func() *optimize.Settings {
			return &optimize.Settings{
				MajorIterations:   c.MaxIter,
				GradientThreshold: c.GTol,
			}
		},
	}, nil
}

// GradientDescentConfig holds the steepest-descent limits.
type GradientDescentConfig struct {
	MaxIter int
	Tol     float64
}

// NewGradientDescent returns a steepest-descent optimizer with line search.
func NewGradientDescent(c GradientDescentConfig) (Optimizer, error) {
	if c.MaxIter <= 0 {
		return nil, fmt.Errorf("%s: maxiter must be positive", NameGradientDescent)
	}
	if c.Tol < 0 {
		return nil, fmt.Errorf("%s: tol must not be negative", NameGradientDescent)
	}
	return &gonumOptimizer{
		name:     NameGradientDescent,
		gradient: true,
		method:   func() optimize.Method { return &optimize.GradientDescent{} },
		settings: func() *optimize.Settings {
			return &optimize.Settings{
				MajorIterations:   c.MaxIter,
				GradientThreshold: c.Tol,
				Converger: &optimize.FunctionConverge{
					Absolute:   c.Tol,
					Iterations: stallIterations,
				},
			}
		},
	}, nil
}

// NelderMeadConfig holds the simplex limits. FATol is an absolute tolerance
// on the best function value, not on the simplex coordinates: gonum's
// simplex stops on a stalled objective.
type NelderMeadConfig struct {
	MaxFev int
	FATol  float64
}

// NewNelderMead returns a derivative-free simplex optimizer.
func NewNelderMead(c NelderMeadConfig) (Optimizer, error) {
	if c.MaxFev <= 0 {
		return nil, fmt.Errorf("%s: maxfev must be positive", NameNelderMead)
	}
	if c.FATol < 0 {
		return nil, fmt.Errorf("%s: fatol must not be negative", NameNelderMead)
	}
	return &gonumOptimizer{
		name:   NameNelderMead,
		method: func() optimize.Method { return &optimize.NelderMead{} },
		settings: func() *optimize.Settings {
			return &optimize.Settings{
				FuncEvaluations: c.MaxFev,
				Converger: &optimize.FunctionConverge{
					Absolute:   c.FATol,
					Iterations: stallIterations * 10,
				},
			}
		},
	}, nil
}

var epsilon = math.Nextafter(1, 2) - 1
