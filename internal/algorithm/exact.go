package algorithm

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/seantiz/groundstate/internal/backend"
	"github.com/seantiz/groundstate/internal/result"
)

// ExactEigensolverName is the registry name of the exact solver.
const ExactEigensolverName = "ExactEigensolver"

// ExactMaxQubits bounds the dense diagonalisation.
const ExactMaxQubits = 10

// ExactEigensolver diagonalises the Hamiltonian classically and reports the
// k lowest eigenvalues.
type ExactEigensolver struct {
	k int
}

var _ Algorithm = (*ExactEigensolver)(nil)

// NewExactEigensolver returns a solver for the k lowest eigenvalues.
func NewExactEigensolver(k int) (*ExactEigensolver, error) {
	if k < 1 {
		return nil, fmt.Errorf("%s: k must be at least 1, got %d", ExactEigensolverName, k)
	}
	return &ExactEigensolver{k: k}, nil
}

func (e *ExactEigensolver) Name() string          { return ExactEigensolverName }
func (e *ExactEigensolver) RequiresBackend() bool { return false }

// Run ignores the backend.
func (e *ExactEigensolver) Run(ctx context.Context, input any, _ backend.Backend) (map[string]any, error) {
	op, err := OperatorFrom(input)
	if err != nil {
		return nil, err
	}
	n := op.NumQubits()
	if n > ExactMaxQubits {
		return nil, fmt.Errorf("%s: %d qubits exceeds the limit of %d", ExactEigensolverName, n, ExactMaxQubits)
	}
	dim := 1 << n
	if e.k > dim {
		return nil, fmt.Errorf("%s: k=%d exceeds the dimension %d", ExactEigensolverName, e.k, dim)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// H = A + iB is Hermitian, so [[A, -B], [B, A]] is real symmetric and
	// carries every eigenvalue of H twice.
	h := op.Matrix()
	sym := mat.NewSymDense(2*dim, nil)
	for i := 0; i < dim; i++ {
		for j := i; j < dim; j++ {
			v := h.At(i, j)
			a, b := real(v), imag(v)
			sym.SetSym(i, j, a)
			sym.SetSym(dim+i, dim+j, a)
			sym.SetSym(i, dim+j, -b)
			sym.SetSym(j, dim+i, b)
		}
	}

	var es mat.EigenSym
	if ok := es.Factorize(sym, true); !ok {
		return nil, fmt.Errorf("%s: eigendecomposition did not converge", ExactEigensolverName)
	}
	values := es.Values(nil)
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	eigvals := make([]float64, e.k)
	for i := range eigvals {
		eigvals[i] = values[2*i]
	}

	ground := make([]complex128, dim)
	for i := range ground {
		ground[i] = complex(vecs.At(i, 0), vecs.At(dim+i, 0))
	}

	return map[string]any{
		result.FieldEnergy:   eigvals[0],
		result.FieldEnergies: eigvals,
		"eigvals":            append([]float64(nil), eigvals...),
		"min_vector":         vector(ground),
	}, nil
}
