// Package operator implements the weighted Pauli operator used as the
// Hamiltonian payload: a sum of coefficient-weighted Pauli strings over a
// fixed number of qubits.
//
// Labels follow the usual little-endian convention: the rightmost character
// acts on qubit 0, so "IZ" is Z on qubit 0.
package operator

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/bits"
	"os"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Term is one weighted Pauli string.
type Term struct {
	Label string
	Coeff complex128
}

// WeightedPauliOperator is a Hermitian operator expressed as a sum of Pauli
// strings. All labels have the same length.
type WeightedPauliOperator struct {
	terms     []Term
	numQubits int
}

// New builds an operator from terms, validating labels. Terms with the same
// label are merged.
func New(terms []Term) (*WeightedPauliOperator, error) {
	if len(terms) == 0 {
		return nil, errors.New("operator has no terms")
	}
	op := &WeightedPauliOperator{numQubits: len(terms[0].Label)}
	if op.numQubits == 0 {
		return nil, errors.New("operator has an empty Pauli label")
	}

	index := make(map[string]int, len(terms))
	for _, t := range terms {
		label := strings.ToUpper(t.Label)
		if len(label) != op.numQubits {
			return nil, fmt.Errorf("pauli label %q has %d qubits, want %d", t.Label, len(label), op.numQubits)
		}
		if strings.Trim(label, "IXYZ") != "" {
			return nil, fmt.Errorf("pauli label %q contains characters other than I, X, Y, Z", t.Label)
		}
		if i, ok := index[label]; ok {
			op.terms[i].Coeff += t.Coeff
			continue
		}
		index[label] = len(op.terms)
		op.terms = append(op.terms, Term{Label: label, Coeff: t.Coeff})
	}
	return op, nil
}

// NumQubits returns the number of qubits the operator acts on.
func (o *WeightedPauliOperator) NumQubits() int {
	return o.numQubits
}

// Terms returns a copy of the operator's terms.
func (o *WeightedPauliOperator) Terms() []Term {
	return append([]Term(nil), o.terms...)
}

// IsHermitian reports whether every coefficient is real within tol.
func (o *WeightedPauliOperator) IsHermitian(tol float64) bool {
	for _, t := range o.terms {
		if math.Abs(imag(t.Coeff)) > tol {
			return false
		}
	}
	return true
}

// masks splits a label into the bit masks of qubits carrying X-type (X or Y),
// Z-type (Z or Y) and Y operators.
func masks(label string) (x, z, y uint64) {
	n := len(label)
	for i, c := range label {
		bit := uint64(1) << (n - 1 - i)
		switch c {
		case 'X':
			x |= bit
		case 'Y':
			x |= bit
			z |= bit
			y |= bit
		case 'Z':
			z |= bit
		}
	}
	return x, z, y
}

// apply returns P|i⟩ = phase·|j⟩ for basis state i.
func apply(i, x, z uint64, ny int) (j uint64, phase complex128) {
	// Y = i·X·Z: a global factor i per Y, then Z contributes (-1) per set bit.
	phase = iPow(ny)
	if bits.OnesCount64(i&z)%2 == 1 {
		phase = -phase
	}
	return i ^ x, phase
}

func iPow(n int) complex128 {
	switch n % 4 {
	case 0:
		return 1
	case 1:
		return 1i
	case 2:
		return -1
	default:
		return -1i
	}
}

// Matrix returns the dense 2ⁿ×2ⁿ complex matrix of the operator.
func (o *WeightedPauliOperator) Matrix() *mat.CDense {
	dim := 1 << o.numQubits
	m := mat.NewCDense(dim, dim, nil)
	for _, t := range o.terms {
		x, z, y := masks(t.Label)
		ny := bits.OnesCount64(y)
		for i := 0; i < dim; i++ {
			j, phase := apply(uint64(i), x, z, ny)
			m.Set(int(j), i, m.At(int(j), i)+t.Coeff*phase)
		}
	}
	return m
}

// Expectation returns ⟨ψ|O|ψ⟩ for a normalised state vector.
func (o *WeightedPauliOperator) Expectation(state []complex128) (float64, error) {
	if len(state) != 1<<o.numQubits {
		return 0, fmt.Errorf("state has %d amplitudes, operator needs %d", len(state), 1<<o.numQubits)
	}
	var total complex128
	for _, t := range o.terms {
		total += t.Coeff * PauliExpectation(t.Label, state)
	}
	return real(total), nil
}

// PauliExpectation returns ⟨ψ|P|ψ⟩ for a single Pauli string P.
func PauliExpectation(label string, state []complex128) complex128 {
	x, z, y := masks(label)
	ny := bits.OnesCount64(y)
	var sum complex128
	for i, amp := range state {
		if amp == 0 {
			continue
		}
		j, phase := apply(uint64(i), x, z, ny)
		sum += conj(state[j]) * phase * amp
	}
	return sum
}

func conj(c complex128) complex128 {
	return complex(real(c), -imag(c))
}

// jsonCoeff and jsonOperator are the serialised form of an operator.
type jsonCoeff struct {
	Real float64 `json:"real"`
	Imag float64 `json:"imag"`
}

type jsonTerm struct {
	Label string    `json:"label"`
	Coeff jsonCoeff `json:"coeff"`
}

type jsonOperator struct {
	Paulis []jsonTerm `json:"paulis"`
}

// MarshalJSON encodes the operator as {"paulis": [{"label", "coeff"}...]}.
func (o *WeightedPauliOperator) MarshalJSON() ([]byte, error) {
	doc := jsonOperator{Paulis: make([]jsonTerm, len(o.terms))}
	for i, t := range o.terms {
		doc.Paulis[i] = jsonTerm{Label: t.Label, Coeff: jsonCoeff{Real: real(t.Coeff), Imag: imag(t.Coeff)}}
	}
	return json.Marshal(doc)
}

// UnmarshalJSON decodes the serialised operator form.
func (o *WeightedPauliOperator) UnmarshalJSON(data []byte) error {
	var doc jsonOperator
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode operator: %w", err)
	}
	terms := make([]Term, len(doc.Paulis))
	for i, p := range doc.Paulis {
		terms[i] = Term{Label: p.Label, Coeff: complex(p.Coeff.Real, p.Coeff.Imag)}
	}
	op, err := New(terms)
	if err != nil {
		return fmt.Errorf("decode operator: %w", err)
	}
	*o = *op
	return nil
}

// Read decodes an operator from r.
func Read(r io.Reader) (*WeightedPauliOperator, error) {
	var op WeightedPauliOperator
	if err := json.NewDecoder(r).Decode(&op); err != nil {
		return nil, err
	}
	return &op, nil
}

// LoadFile reads a serialised operator from path.
func LoadFile(path string) (*WeightedPauliOperator, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open operator: %w", err)
	}
	defer f.Close()
	return Read(f)
}
