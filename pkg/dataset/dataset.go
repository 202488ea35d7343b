// Package dataset provides the labeled-example collections the simulator
// partitions across clients and evaluates against.
package dataset

import (
	"fmt"

	pkgerrors "github.com/absmach/fedprox/pkg/errors"
	"github.com/absmach/fedprox/pkg/tensor"
)

// Example is one (input, label) pair. Label is a class index.
type Example struct {
	Features []float64
	Label    int
}

// Dataset is a random-access collection with a stable count.
type Dataset interface {
	Len() int
	At(i int) Example
	Features() int
	Classes() int
	Device() tensor.Device
}

type InMemory struct {
	examples []Example
	features int
	classes  int
	device   tensor.Device
}

var _ Dataset = (*InMemory)(nil)

// NewInMemory validates examples and wraps them as a Dataset on the CPU.
func NewInMemory(examples []Example, features, classes int) (*InMemory, error) {
	if features <= 0 || classes <= 0 {
		return nil, fmt.Errorf("%w: features=%d classes=%d", pkgerrors.ErrInvalidData, features, classes)
	}
	for i, ex := range examples {
		if len(ex.Features) != features {
			return nil, fmt.Errorf("%w: example %d has %d features, expected %d", pkgerrors.ErrInvalidData, i, len(ex.Features), features)
		}
		if ex.Label < 0 || ex.Label >= classes {
			return nil, fmt.Errorf("%w: example %d has label %d outside [0,%d)", pkgerrors.ErrInvalidData, i, ex.Label, classes)
		}
	}

	return &InMemory{
		examples: examples,
		features: features,
		classes:  classes,
		device:   tensor.CPU,
	}, nil
}

func (d *InMemory) Len() int { return len(d.examples) }
func (d *InMemory) At(i int) Example { return d.examples[i] }
func (d *InMemory) Features() int { return d.features }
func (d *InMemory) Classes() int { return d.classes }
func (d *InMemory) Device() tensor.Device { return d.device }

// OnDevice returns a shallow copy of d tagged with another device.
func (d *InMemory) OnDevice(dev tensor.Device) *InMemory {
	cp := *d
	cp.device = dev

	return &cp
}

// Subset is a read-only view over a parent dataset restricted to indices.
type Subset struct {
	parent  Dataset
	indices []int
}

var _ Dataset = (*Subset)(nil)

func NewSubset(parent Dataset, indices []int) *Subset {
	return &Subset{
		parent:  parent,
		indices: append([]int(nil), indices...),
	}
}

func (s *Subset) Len() int { return len(s.indices) }
func (s *Subset) At(i int) Example { return s.parent.At(s.indices[i]) }
func (s *Subset) Features() int { return s.parent.Features() }
func (s *Subset) Classes() int { return s.parent.Classes() }
func (s *Subset) Device() tensor.Device { return s.parent.Device() }

// Indices returns the parent indices backing the view.
func (s *Subset) Indices() []int {
	return append([]int(nil), s.indices...)
}

// Transform maps one example to another. It must not mutate its input.
type Transform func(Example) Example

// Apply materializes ds with t applied to every example.
func Apply(ds Dataset, t Transform) (*InMemory, error) {
	out := make([]Example, ds.Len())
	for i := range out {
		out[i] = t(ds.At(i))
	}

	return NewInMemory(out, ds.Features(), ds.Classes())
}

// Normalize returns a transform computing (x*scale - mean) / std per feature.
func Normalize(scale, mean, std float64) Transform {
	return func(ex Example) Example {
		f := make([]float64, len(ex.Features))
		for i, x := range ex.Features {
			f[i] = (x*scale - mean) / std
		}

		return Example{Features: f, Label: ex.Label}
	}
}
