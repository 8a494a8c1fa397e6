package backend

import (
	"context"
	"fmt"

	"github.com/seantiz/groundstate/internal/operator"
)

// Backend is the interface that all execution backends must implement.
// Each backend (statevector simulator, shot-based simulator, remote device)
// provides its own implementation of these methods.
type Backend interface {
	// Name is the registry name the backend was selected by.
	Name() string

	// Provider names who supplies the backend, e.g. "local".
	Provider() string

	// Execute runs the circuit and evaluates the observable on the final
	// state. The context carries cancellation for long evaluations.
	Execute(ctx context.Context, req Request) (Response, error)

	// Capabilities reports qubit limits and the measurement model.
	Capabilities() Capabilities
}

// Gate names understood by the bundled simulators.
const (
	GateH  = "h"
	GateX  = "x"
	GateY  = "y"
	GateZ  = "z"
	GateS  = "s"
	GateSd = "sdg"
	GateRX = "rx"
	GateRY = "ry"
	GateRZ = "rz"
	GateCX = "cx"
	GateCZ = "cz"
)

// GateOp is one gate application.
type GateOp struct {
	Name   string    `json:"name"`
	Qubits []int     `json:"qubits"`
	Params []float64 `json:"params,omitempty"`
}

// Circuit is an ordered gate list acting on NumQubits qubits initialised to |0…0⟩.
type Circuit struct {
	NumQubits int      `json:"num_qubits"`
	Gates     []GateOp `json:"gates"`
}

// Add appends a gate and returns the circuit for chaining.
func (c *Circuit) Add(name string, qubits []int, params ...float64) *Circuit {
	c.Gates = append(c.Gates, GateOp{Name: name, Qubits: qubits, Params: params})
	return c
}

// Validate checks qubit indices and gate arity.
func (c Circuit) Validate() error {
	if c.NumQubits <= 0 {
		return fmt.Errorf("circuit has %d qubits", c.NumQubits)
	}
	for i, g := range c.Gates {
		wantQubits, wantParams := 1, 0
		switch g.Name {
		case GateH, GateX, GateY, GateZ, GateS, GateSd:
		case GateRX, GateRY, GateRZ:
			wantParams = 1
		case GateCX, GateCZ:
			wantQubits = 2
		default:
			return fmt.Errorf("gate %d: unsupported gate %q", i, g.Name)
		}
		if len(g.Qubits) != wantQubits || len(g.Params) != wantParams {
			return fmt.Errorf("gate %d (%s): want %d qubits and %d params, got %d and %d",
				i, g.Name, wantQubits, wantParams, len(g.Qubits), len(g.Params))
		}
		for _, q := range g.Qubits {
			if q < 0 || q >= c.NumQubits {
				return fmt.Errorf("gate %d (%s): qubit %d out of range", i, g.Name, q)
			}
		}
		if wantQubits == 2 && g.Qubits[0] == g.Qubits[1] {
			return fmt.Errorf("gate %d (%s): control and target are both qubit %d", i, g.Name, g.Qubits[0])
		}
	}
	return nil
}

// Request asks a backend to prepare a state and measure an observable.
type Request struct {
	Circuit    Circuit
	Observable *operator.WeightedPauliOperator
	// ReturnState asks simulators to include the final state vector.
	ReturnState bool
}

// Response holds the outcome of one Request.
type Response struct {
	Expectation float64
	// State is the final state vector when requested and available.
	State []complex128
	// Shots is the number of samples taken, zero for exact evaluation.
	Shots int
}

// Capabilities describes what a backend supports.
type Capabilities struct {
	Name      string `json:"name"`
	Provider  string `json:"provider"`
	MaxQubits int    `json:"max_qubits"`
	Simulator bool   `json:"simulator"`
	Sampling  bool   `json:"sampling"`
}

// CheckRequest validates a request against a backend's capabilities.
func CheckRequest(caps Capabilities, req Request) error {
	if err := req.Circuit.Validate(); err != nil {
		return err
	}
	if req.Circuit.NumQubits > caps.MaxQubits {
		return fmt.Errorf("%s supports at most %d qubits, circuit has %d", caps.Name, caps.MaxQubits, req.Circuit.NumQubits)
	}
	if req.Observable == nil {
		return fmt.Errorf("%s: request has no observable", caps.Name)
	}
	if n := req.Observable.NumQubits(); n != req.Circuit.NumQubits {
		return fmt.Errorf("observable acts on %d qubits, circuit has %d", n, req.Circuit.NumQubits)
	}
	return nil
}
