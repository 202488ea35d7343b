package transport

import (
	"bytes"
	"errors"
	"testing"

	pkgerrors "github.com/absmach/fedprox/pkg/errors"
	"github.com/absmach/fedprox/pkg/tensor"
)

var spec = tensor.Spec{
	{Name: "w", Shape: tensor.Shape{2, 2}},
	{Name: "b", Shape: tensor.Shape{2}},
}

func sample() tensor.ParameterSet {
	ps := tensor.New(spec)
	copy(ps.At(0).Data, []float64{1, -2, 3.5, 1e-7})
	copy(ps.At(1).Data, []float64{0.25, -0.5})

	return ps
}

func TestDispatcherRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		key  []byte
	}{
		{name: "plain"},
		{name: "sealed", key: bytes.Repeat([]byte{7}, 32)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d, err := NewDispatcher(tc.key)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if d.Sealed() != (tc.key != nil) {
				t.Errorf("expected sealed=%v", tc.key != nil)
			}

			orig := sample()
			payload, err := d.Snapshot(orig)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			a, err := d.Receive(payload, spec)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			b, err := d.Receive(payload, spec)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if !a.EqualApprox(orig, 0) {
				t.Errorf("received parameters differ from the snapshot")
			}
			a.At(0).Data[0] = 100
			if b.At(0).Data[0] == 100 || orig.At(0).Data[0] == 100 {
				t.Errorf("received copies share memory")
			}
		})
	}
}

func TestDispatcherRejects(t *testing.T) {
	d, err := NewDispatcher(bytes.Repeat([]byte{1}, 32))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	payload, err := d.Snapshot(sample())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	other := tensor.Spec{{Name: "w", Shape: tensor.Shape{4}}}
	if _, err := d.Receive(payload, other); !errors.Is(err, pkgerrors.ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}

	wrongKey, err := NewDispatcher(bytes.Repeat([]byte{2}, 32))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := wrongKey.Receive(payload, spec); !errors.Is(err, pkgerrors.ErrInvalidData) {
		t.Errorf("expected ErrInvalidData, got %v", err)
	}

	if _, err := NewDispatcher([]byte("too short")); !pkgerrors.IsConfiguration(err) {
		t.Errorf("expected configuration error, got %v", err)
	}
}
