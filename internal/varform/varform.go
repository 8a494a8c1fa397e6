// Package varform builds the parameterised trial-state circuits used by
// variational algorithms.
package varform

import (
	"fmt"

	"github.com/seantiz/groundstate/internal/backend"
)

// Entanglement selects which qubit pairs receive a CZ entangler.
type Entanglement string

const (
	EntangleFull   Entanglement = "full"
	EntangleLinear Entanglement = "linear"
)

// ParseEntanglement validates an entanglement name.
func ParseEntanglement(s string) (Entanglement, error) {
	switch e := Entanglement(s); e {
	case EntangleFull, EntangleLinear:
		return e, nil
	default:
		return "", fmt.Errorf("unknown entanglement %q (want %q or %q)", s, EntangleFull, EntangleLinear)
	}
}

// Pairs lists the (control, target) pairs for n qubits.
func (e Entanglement) Pairs(n int) [][2]int {
	var out [][2]int
	switch e {
	case EntangleLinear:
		for i := 0; i+1 < n; i++ {
			out = append(out, [2]int{i, i + 1})
		}
	default:
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				out = append(out, [2]int{i, j})
			}
		}
	}
	return out
}

// Form produces a circuit from a parameter vector.
type Form interface {
	Name() string
	NumQubits() int
	NumParameters() int
	Circuit(params []float64) (backend.Circuit, error)
}

// layered is the shared shape of RY and RYRZ: depth+1 rotation layers with
// entanglers between consecutive layers.
type layered struct {
	name         string
	qubits       int
	depth        int
	entanglement Entanglement
	rotations    []string
}

func newLayered(name string, qubits, depth int, ent Entanglement, rotations ...string) (*layered, error) {
	if qubits <= 0 {
		return nil, fmt.Errorf("%s: num_qubits must be positive, got %d", name, qubits)
	}
	if depth < 0 {
		return nil, fmt.Errorf("%s: depth must not be negative, got %d", name, depth)
	}
	if _, err := ParseEntanglement(string(ent)); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &layered{name: name, qubits: qubits, depth: depth, entanglement: ent, rotations: rotations}, nil
}

func (l *layered) Name() string       { return l.name }
func (l *layered) NumQubits() int     { return l.qubits }
func (l *layered) Depth() int         { return l.depth }
func (l *layered) NumParameters() int { return len(l.rotations) * l.qubits * (l.depth + 1) }

func (l *layered) Entanglement() Entanglement { return l.entanglement }

func (l *layered) Circuit(params []float64) (backend.Circuit, error) {
	if len(params) != l.NumParameters() {
		return backend.Circuit{}, fmt.Errorf("%s: want %d parameters, got %d", l.name, l.NumParameters(), len(params))
	}
	c := backend.Circuit{NumQubits: l.qubits}
	pairs := l.entanglement.Pairs(l.qubits)
	k := 0
	for layer := 0; layer <= l.depth; layer++ {
		if layer > 0 {
			for _, p := range pairs {
				c.Add(backend.GateCZ, []int{p[0], p[1]})
			}
		}
		for q := 0; q < l.qubits; q++ {
			for _, r := range l.rotations {
				c.Add(r, []int{q}, params[k])
				k++
			}
		}
	}
	return c, nil
}

// RYRZ applies RY then RZ to every qubit in each rotation layer.
type RYRZ struct{ *layered }

// NewRYRZ returns an RYRZ form with 2·n·(depth+1) parameters.
func NewRYRZ(qubits, depth int, ent Entanglement) (*RYRZ, error) {
	l, err := newLayered("RYRZ", qubits, depth, ent, backend.GateRY, backend.GateRZ)
	if err != nil {
		return nil, err
	}
	return &RYRZ{l}, nil
}

// RY applies a single RY to every qubit in each rotation layer.
type RY struct{ *layered }

// NewRY returns an RY form with n·(depth+1) parameters.
func NewRY(qubits, depth int, ent Entanglement) (*RY, error) {
	l, err := newLayered("RY", qubits, depth, ent, backend.GateRY)
	if err != nil {
		return nil, err
	}
	return &RY{l}, nil
}
