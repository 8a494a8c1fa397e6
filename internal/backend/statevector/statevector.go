// Package statevector implements an exact state-vector simulator backend.
// Expectation values are computed directly from the final amplitudes, so
// results are deterministic.
package statevector

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/seantiz/groundstate/internal/backend"
)

// Name is the registry name of the simulator.
const Name = "statevector_simulator"

// MaxQubits bounds the dense state size to 2^24 amplitudes.
const MaxQubits = 24

// Simulator is the exact state-vector backend.
type Simulator struct{}

var _ backend.Backend = (*Simulator)(nil)

// New returns a state-vector simulator.
func New() *Simulator {
	return &Simulator{}
}

func (s *Simulator) Name() string     { return Name }
func (s *Simulator) Provider() string { return "local" }

// Capabilities reports the simulator's limits.
func (s *Simulator) Capabilities() backend.Capabilities {
	return backend.Capabilities{
		Name:      Name,
		Provider:  "local",
		MaxQubits: MaxQubits,
		Simulator: true,
	}
}

// Execute evolves |0…0⟩ through the circuit and evaluates the observable.
func (s *Simulator) Execute(ctx context.Context, req backend.Request) (backend.Response, error) {
	if err := ctx.Err(); err != nil {
		return backend.Response{}, err
	}
	if err := backend.CheckRequest(s.Capabilities(), req); err != nil {
		return backend.Response{}, err
	}

	state, err := Evolve(req.Circuit)
	if err != nil {
		return backend.Response{}, err
	}
	e, err := req.Observable.Expectation(state)
	if err != nil {
		return backend.Response{}, err
	}

	resp := backend.Response{Expectation: e}
	if req.ReturnState {
		resp.State = state
	}
	return resp, nil
}

// Evolve returns the state produced by applying the circuit to |0…0⟩.
func Evolve(c backend.Circuit) ([]complex128, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	state := make([]complex128, 1<<c.NumQubits)
	state[0] = 1
	for _, g := range c.Gates {
		if err := ApplyGate(state, g); err != nil {
			return nil, err
		}
	}
	return state, nil
}

// ApplyGate applies one gate to state in place.
func ApplyGate(state []complex128, g backend.GateOp) error {
	switch g.Name {
	case backend.GateCX:
		applyCX(state, g.Qubits[0], g.Qubits[1])
		return nil
	case backend.GateCZ:
		applyCZ(state, g.Qubits[0], g.Qubits[1])
		return nil
	}

	m, err := singleQubitMatrix(g)
	if err != nil {
		return err
	}
	apply1(state, g.Qubits[0], m)
	return nil
}

func singleQubitMatrix(g backend.GateOp) ([2][2]complex128, error) {
	const r = math.Sqrt2 / 2
	switch g.Name {
	case backend.GateH:
		return [2][2]complex128{{r, r}, {r, -r}}, nil
	case backend.GateX:
		return [2][2]complex128{{0, 1}, {1, 0}}, nil
	case backend.GateY:
		return [2][2]complex128{{0, -1i}, {1i, 0}}, nil
	case backend.GateZ:
		return [2][2]complex128{{1, 0}, {0, -1}}, nil
	case backend.GateS:
		return [2][2]complex128{{1, 0}, {0, 1i}}, nil
	case backend.GateSd:
		return [2][2]complex128{{1, 0}, {0, -1i}}, nil
	case backend.GateRX:
		c, s := math.Cos(g.Params[0]/2), math.Sin(g.Params[0]/2)
		return [2][2]complex128{{complex(c, 0), complex(0, -s)}, {complex(0, -s), complex(c, 0)}}, nil
	case backend.GateRY:
		c, s := math.Cos(g.Params[0]/2), math.Sin(g.Params[0]/2)
		return [2][2]complex128{{complex(c, 0), complex(-s, 0)}, {complex(s, 0), complex(c, 0)}}, nil
	case backend.GateRZ:
		half := g.Params[0] / 2
		return [2][2]complex128{{cmplx.Exp(complex(0, -half)), 0}, {0, cmplx.Exp(complex(0, half))}}, nil
	default:
		return [2][2]complex128{}, fmt.Errorf("unsupported gate %q", g.Name)
	}
}

// apply1 applies a 2×2 unitary to qubit q.
func apply1(state []complex128, q int, m [2][2]complex128) {
	bit := 1 << q
	for i := range state {
		if i&bit != 0 {
			continue
		}
		j := i | bit
		a, b := state[i], state[j]
		state[i] = m[0][0]*a + m[0][1]*b
		state[j] = m[1][0]*a + m[1][1]*b
	}
}

func applyCX(state []complex128, control, target int) {
	cbit, tbit := 1<<control, 1<<target
	for i := range state {
		if i&cbit != 0 && i&tbit == 0 {
			j := i | tbit
			state[i], state[j] = state[j], state[i]
		}
	}
}

func applyCZ(state []complex128, a, b int) {
	mask := 1<<a | 1<<b
	for i := range state {
		if i&mask == mask {
			state[i] = -state[i]
		}
	}
}
