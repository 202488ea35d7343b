// Package tensor defines named, fixed-shape parameter sets exchanged between
// the coordinator and the simulated clients.
package tensor

import (
	"fmt"
	"strconv"
	"strings"

	pkgerrors "github.com/absmach/fedprox/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Device identifies the compute target a model or dataset lives on.
type Device string

const CPU Device = "cpu"

type Shape []int

// Size is the number of scalars a tensor of this shape holds.
func (s Shape) Size() int {
	n := 1
	for _, d := range s {
		n *= d
	}

	return n
}

func (s Shape) Equal(o Shape) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}

	return true
}

func (s Shape) String() string {
	dims := make([]string, len(s))
	for i, d := range s {
		dims[i] = strconv.Itoa(d)
	}

	return "[" + strings.Join(dims, "x") + "]"
}

// Param names one entry of a Spec.
type Param struct {
	Name  string
	Shape Shape
}

// Spec is the ordered set of (name, shape) pairs fixed at model initialization.
type Spec []Param

func (s Spec) Equal(o Spec) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i].Name != o[i].Name || !s[i].Shape.Equal(o[i].Shape) {
			return false
		}
	}

	return true
}

// Diff describes the first difference between two specs, or "" if none.
func (s Spec) Diff(o Spec) string {
	if len(s) != len(o) {
		return fmt.Sprintf("expected %d parameters, got %d", len(s), len(o))
	}
	for i := range s {
		if s[i].Name != o[i].Name {
			return fmt.Sprintf("parameter %d: expected name %q, got %q", i, s[i].Name, o[i].Name)
		}
		if !s[i].Shape.Equal(o[i].Shape) {
			return fmt.Sprintf("parameter %q: expected shape %s, got %s", s[i].Name, s[i].Shape, o[i].Shape)
		}
	}

	return ""
}

func (s Spec) Index(name string) (int, bool) {
	for i := range s {
		if s[i].Name == name {
			return i, true
		}
	}

	return -1, false
}

// NumScalars is the total number of trainable scalars described by the spec.
func (s Spec) NumScalars() int {
	n := 0
	for _, p := range s {
		n += p.Shape.Size()
	}

	return n
}

func (s Spec) clone() Spec {
	out := make(Spec, len(s))
	for i, p := range s {
		out[i] = Param{Name: p.Name, Shape: append(Shape(nil), p.Shape...)}
	}

	return out
}

// Tensor is a dense row-major array of float64.
type Tensor struct {
	Shape Shape
	Data  []float64
}

func Zeros(shape Shape) Tensor {
	return Tensor{
		Shape: append(Shape(nil), shape...),
		Data:  make([]float64, shape.Size()),
	}
}

func (t Tensor) Clone() Tensor {
	return Tensor{
		Shape: append(Shape(nil), t.Shape...),
		Data:  append([]float64(nil), t.Data...),
	}
}

// ParameterSet maps parameter names to tensors in spec order.
type ParameterSet struct {
	spec    Spec
	tensors []Tensor
}

// New returns a zero-valued parameter set for spec.
func New(spec Spec) ParameterSet {
	ps := ParameterSet{
		spec:    spec.clone(),
		tensors: make([]Tensor, len(spec)),
	}
	for i, p := range spec {
		ps.tensors[i] = Zeros(p.Shape)
	}

	return ps
}

// FromTensors builds a parameter set taking ownership of tensors.
func FromTensors(spec Spec, tensors []Tensor) (ParameterSet, error) {
	if len(spec) != len(tensors) {
		return ParameterSet{}, fmt.Errorf("%w: %d names for %d tensors", pkgerrors.ErrShapeMismatch, len(spec), len(tensors))
	}
	for i, p := range spec {
		if !p.Shape.Equal(tensors[i].Shape) || len(tensors[i].Data) != p.Shape.Size() {
			return ParameterSet{}, fmt.Errorf("%w: parameter %q: expected shape %s, got %s with %d values",
				pkgerrors.ErrShapeMismatch, p.Name, p.Shape, tensors[i].Shape, len(tensors[i].Data))
		}
	}

	return ParameterSet{spec: spec.clone(), tensors: tensors}, nil
}

func (p ParameterSet) Spec() Spec {
	return p.spec
}

func (p ParameterSet) Len() int {
	return len(p.tensors)
}

// At returns the i-th tensor in spec order. The returned data is shared.
func (p ParameterSet) At(i int) Tensor {
	return p.tensors[i]
}

// Get returns the tensor named name. The returned data is shared.
func (p ParameterSet) Get(name string) (Tensor, bool) {
	i, ok := p.spec.Index(name)
	if !ok {
		return Tensor{}, false
	}

	return p.tensors[i], true
}

// Clone returns a deep copy that shares no memory with p.
func (p ParameterSet) Clone() ParameterSet {
	out := ParameterSet{
		spec:    p.spec.clone(),
		tensors: make([]Tensor, len(p.tensors)),
	}
	for i := range p.tensors {
		out.tensors[i] = p.tensors[i].Clone()
	}

	return out
}

// Conforms fails with ErrShapeMismatch unless p has exactly the given spec.
func (p ParameterSet) Conforms(spec Spec) error {
	if d := spec.Diff(p.spec); d != "" {
		return fmt.Errorf("%w: %s", pkgerrors.ErrShapeMismatch, d)
	}

	return nil
}

// SquaredDistance is the sum over all parameters of the squared Euclidean
// distance between p and o.
func (p ParameterSet) SquaredDistance(o ParameterSet) (float64, error) {
	if err := o.Conforms(p.spec); err != nil {
		return 0, err
	}

	var total float64
	for i := range p.tensors {
		d := floats.Distance(p.tensors[i].Data, o.tensors[i].Data, 2)
		total += d * d
	}

	return total, nil
}

// EqualApprox reports whether p and o share a spec and every scalar differs
// by at most tol.
func (p ParameterSet) EqualApprox(o ParameterSet, tol float64) bool {
	if !p.spec.Equal(o.spec) {
		return false
	}
	for i := range p.tensors {
		if !floats.EqualApprox(p.tensors[i].Data, o.tensors[i].Data, tol) {
			return false
		}
	}

	return true
}
