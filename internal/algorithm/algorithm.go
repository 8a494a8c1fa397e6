// Package algorithm holds the bundled ground-state algorithms and the
// problem and input components they consume.
//
// Every algorithm satisfies the same Run contract: it receives the input
// payload and, for quantum algorithms, the execution backend, and returns
// a raw result map that the engine normalises for the problem type.
package algorithm

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/seantiz/groundstate/internal/backend"
	"github.com/seantiz/groundstate/internal/operator"
	"github.com/seantiz/groundstate/internal/result"
)

// Algorithm is the uniform run contract.
type Algorithm interface {
	Name() string
	// RequiresBackend reports whether Run needs a non-nil backend.
	RequiresBackend() bool
	// Run solves the problem for input. On failure the returned map, when
	// non-nil, holds whatever partial result was produced.
	Run(ctx context.Context, input any, be backend.Backend) (map[string]any, error)
}

// Problem names the question being asked and carries run-wide settings.
type Problem struct {
	Type       result.ProblemType
	RandomSeed *uint64
}

// NewProblem returns a problem of type t with an optional seed.
func NewProblem(t result.ProblemType, seed *uint64) *Problem {
	return &Problem{Type: t, RandomSeed: seed}
}

// ProblemType returns the problem's type, defaulting to an energy problem
// for a nil receiver.
func (p *Problem) ProblemType() result.ProblemType {
	if p == nil || p.Type == "" {
		return result.ProblemEnergy
	}
	return p.Type
}

// HermitianTol bounds the imaginary part a Hamiltonian coefficient may carry.
const HermitianTol = 1e-10

// ErrNotHermitian is returned for operators with complex coefficients, whose
// expectation values are not real energies.
var ErrNotHermitian = errors.New("operator is not Hermitian")

// EnergyInput is the input for energy problems: a qubit Hamiltonian.
type EnergyInput struct {
	Operator *operator.WeightedPauliOperator
}

// NewEnergyInput wraps a payload that must be a Pauli operator.
func NewEnergyInput(payload any) (*EnergyInput, error) {
	op, err := OperatorFrom(payload)
	if err != nil {
		return nil, err
	}
	return &EnergyInput{Operator: op}, nil
}

// NumQubits returns the operator's qubit count.
func (in *EnergyInput) NumQubits() int { return in.Operator.NumQubits() }

// OperatorFrom extracts the Hamiltonian from an input value, which may be an
// *EnergyInput or the operator itself. The operator must be Hermitian.
func OperatorFrom(input any) (*operator.WeightedPauliOperator, error) {
	op, err := operatorFrom(input)
	if err != nil {
		return nil, err
	}
	if !op.IsHermitian(HermitianTol) {
		for _, t := range op.Terms() {
			if math.Abs(imag(t.Coeff)) > HermitianTol {
				return nil, fmt.Errorf("%w: term %s has coefficient %v", ErrNotHermitian, t.Label, t.Coeff)
			}
		}
	}
	return op, nil
}

func operatorFrom(input any) (*operator.WeightedPauliOperator, error) {
	switch v := input.(type) {
	case *EnergyInput:
		if v != nil && v.Operator != nil {
			return v.Operator, nil
		}
	case *operator.WeightedPauliOperator:
		if v != nil {
			return v, nil
		}
	case nil:
		return nil, fmt.Errorf("no input operator supplied")
	default:
		return nil, fmt.Errorf("input must be a Pauli operator, got %T", input)
	}
	return nil, fmt.Errorf("no input operator supplied")
}

// vector converts a state to (real, imag) pairs for JSON-friendly results.
func vector(state []complex128) [][2]float64 {
	out := make([][2]float64, len(state))
	for i, a := range state {
		out[i] = [2]float64{real(a), imag(a)}
	}
	return out
}
