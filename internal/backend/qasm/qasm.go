// Package qasm implements a shot-based simulator backend. The final state is
// computed exactly, then each Pauli term is estimated from a finite number of
// computational-basis samples taken after the appropriate basis change, the
// way a measurement-based device would.
package qasm

import (
	"context"
	"math/bits"
	"math/rand/v2"
	"sort"

	"github.com/seantiz/groundstate/internal/backend"
	"github.com/seantiz/groundstate/internal/backend/statevector"
)

// Name is the registry name of the simulator.
const Name = "qasm_simulator"

// DefaultShots is the per-term sample count when none is configured.
const DefaultShots = 1024

// MaxShots bounds the per-term sample count.
const MaxShots = 1 << 20

// shotsPerCheck is how many samples are drawn between context checks.
const shotsPerCheck = 4096

// Simulator samples expectation values. It is stateless across requests;
// every request draws from its own source.
type Simulator struct {
	shots int
	seed  *uint64
}

var _ backend.Backend = (*Simulator)(nil)

// New returns a shot-based simulator. A nil seed draws a fresh random seed
// for every request. Shots above MaxShots are clamped to it.
func New(shots int, seed *uint64) *Simulator {
	if shots <= 0 {
		shots = DefaultShots
	}
	shots = min(shots, MaxShots)
	return &Simulator{shots: shots, seed: seed}
}

func (s *Simulator) Name() string     { return Name }
func (s *Simulator) Provider() string { return "local" }

// Capabilities reports the simulator's limits.
func (s *Simulator) Capabilities() backend.Capabilities {
	return backend.Capabilities{
		Name:      Name,
		Provider:  "local",
		MaxQubits: statevector.MaxQubits,
		Simulator: true,
		Sampling:  true,
	}
}

// Execute prepares the state and estimates the observable from samples.
func (s *Simulator) Execute(ctx context.Context, req backend.Request) (backend.Response, error) {
	if err := ctx.Err(); err != nil {
		return backend.Response{}, err
	}
	if err := backend.CheckRequest(s.Capabilities(), req); err != nil {
		return backend.Response{}, err
	}

	state, err := statevector.Evolve(req.Circuit)
	if err != nil {
		return backend.Response{}, err
	}

	var seed uint64
	if s.seed != nil {
		seed = *s.seed
	} else {
		seed = rand.Uint64()
	}
	rng := rand.New(rand.NewPCG(seed, 0x9e3779b97f4a7c15))

	var total float64
	for _, term := range req.Observable.Terms() {
		if err := ctx.Err(); err != nil {
			return backend.Response{}, err
		}
		c := real(term.Coeff)
		support := measurementSupport(term.Label)
		if support == 0 {
			total += c
			continue
		}
		rotated, err := rotateToZ(state, term.Label)
		if err != nil {
			return backend.Response{}, err
		}
		mean, err := s.sampleParity(ctx, rng, rotated, support)
		if err != nil {
			return backend.Response{}, err
		}
		total += c * mean
	}

	resp := backend.Response{Expectation: total, Shots: s.shots}
	if req.ReturnState {
		resp.State = state
	}
	return resp, nil
}

// measurementSupport returns the mask of qubits a Pauli label acts on.
func measurementSupport(label string) uint64 {
	var mask uint64
	n := len(label)
	for i, c := range label {
		if c != 'I' {
			mask |= 1 << (n - 1 - i)
		}
	}
	return mask
}

// rotateToZ returns a copy of state rotated so that measuring Z on every
// qubit of the label measures the label's Pauli operators.
func rotateToZ(state []complex128, label string) ([]complex128, error) {
	out := append([]complex128(nil), state...)
	n := len(label)
	for i, c := range label {
		q := n - 1 - i
		var gates []string
		switch c {
		case 'X':
			gates = []string{backend.GateH}
		case 'Y':
			gates = []string{backend.GateSd, backend.GateH}
		}
		for _, g := range gates {
			if err := statevector.ApplyGate(out, backend.GateOp{Name: g, Qubits: []int{q}}); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// sampleParity draws shots basis states and averages (-1)^parity over support.
func (s *Simulator) sampleParity(ctx context.Context, rng *rand.Rand, state []complex128, support uint64) (float64, error) {
	cdf := make([]float64, len(state))
	var acc float64
	for i, a := range state {
		acc += real(a)*real(a) + imag(a)*imag(a)
		cdf[i] = acc
	}

	var sum int
	for i := range s.shots {
		if i%shotsPerCheck == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		u := rng.Float64() * acc
		idx := sort.SearchFloat64s(cdf, u)
		if idx >= len(cdf) {
			idx = len(cdf) - 1
		}
		if bits.OnesCount64(uint64(idx)&support)%2 == 0 {
			sum++
		} else {
			sum--
		}
	}
	return float64(sum) / float64(s.shots), nil
}
