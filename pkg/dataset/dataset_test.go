package dataset

import (
	"math"
	"testing"

	pkgerrors "github.com/absmach/fedprox/pkg/errors"
	"github.com/absmach/fedprox/pkg/tensor"
)

func TestSyntheticDeterministic(t *testing.T) {
	cfg := SyntheticConfig{Features: 3, Classes: 4, TrainSize: 40, TestSize: 8, Separation: 3, Seed: 9}

	a, _, err := Synthetic(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _, err := Synthetic(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if a.Len() != 40 || a.Features() != 3 || a.Classes() != 4 {
		t.Fatalf("unexpected dataset dimensions: len=%d features=%d classes=%d", a.Len(), a.Features(), a.Classes())
	}
	for i := 0; i < a.Len(); i++ {
		ea, eb := a.At(i), b.At(i)
		if ea.Label != eb.Label {
			t.Fatalf("example %d: labels differ", i)
		}
		for j := range ea.Features {
			if ea.Features[j] != eb.Features[j] {
				t.Fatalf("example %d: features differ", i)
			}
		}
	}
}

func TestSyntheticInvalid(t *testing.T) {
	if _, _, err := Synthetic(SyntheticConfig{Features: 0, Classes: 2}); !pkgerrors.IsConfiguration(err) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestNewInMemoryValidates(t *testing.T) {
	tests := []struct {
		name     string
		examples []Example
	}{
		{name: "wrong width", examples: []Example{{Features: []float64{1}, Label: 0}}},
		{name: "bad label", examples: []Example{{Features: []float64{1, 2}, Label: 3}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewInMemory(tc.examples, 2, 3); !pkgerrors.IsData(err) {
				t.Errorf("expected data error, got %v", err)
			}
		})
	}
}

func TestSubset(t *testing.T) {
	ds, err := NewInMemory([]Example{
		{Features: []float64{0}, Label: 0},
		{Features: []float64{1}, Label: 1},
		{Features: []float64{2}, Label: 0},
	}, 1, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	indices := []int{2, 0}
	sub := NewSubset(ds, indices)
	indices[0] = 1

	if sub.Len() != 2 {
		t.Fatalf("expected 2 examples, got %d", sub.Len())
	}
	if got := sub.At(0).Features[0]; got != 2 {
		t.Errorf("subset aliases caller indices: got feature %f", got)
	}
	if sub.Device() != tensor.CPU {
		t.Errorf("expected cpu device, got %s", sub.Device())
	}
}

func TestNormalize(t *testing.T) {
	norm := Normalize(1.0/255.0, mnistMean, mnistStd)
	in := Example{Features: []float64{0, 255}, Label: 7}
	out := norm(in)

	if in.Features[1] != 255 {
		t.Errorf("transform mutated its input")
	}
	if want := -mnistMean / mnistStd; math.Abs(out.Features[0]-want) > 1e-12 {
		t.Errorf("expected %f, got %f", want, out.Features[0])
	}
	if want := (1 - mnistMean) / mnistStd; math.Abs(out.Features[1]-want) > 1e-12 {
		t.Errorf("expected %f, got %f", want, out.Features[1])
	}
	if out.Label != 7 {
		t.Errorf("expected label 7, got %d", out.Label)
	}
}
