package fl

import (
	"errors"
	"math"
	"testing"

	pkgerrors "github.com/absmach/fedprox/pkg/errors"
	"github.com/absmach/fedprox/pkg/tensor"
	smqerrors "github.com/absmach/supermq/pkg/errors"
)

var aggSpec = tensor.Spec{
	{Name: "w", Shape: tensor.Shape{3}},
	{Name: "b", Shape: tensor.Shape{1}},
}

func vecUpdate(t *testing.T, client, samples int, w []float64, b float64) Update {
	t.Helper()

	ps, err := tensor.FromTensors(aggSpec, []tensor.Tensor{
		{Shape: tensor.Shape{3}, Data: w},
		{Shape: tensor.Shape{1}, Data: []float64{b}},
	})
	if err != nil {
		wrappedErr := smqerrors.Wrap(smqerrors.New("failed to build test update"), err)
		t.Fatalf("Failed to build update: %v", wrappedErr)
	}

	return Update{Client: client, NumSamples: samples, Params: ps}
}

func TestMeanAggregator(t *testing.T) {
	a := vecUpdate(t, 0, 10, []float64{1, 2, 3}, 1)
	b := vecUpdate(t, 1, 20, []float64{2, 3, 4}, 2)
	c := vecUpdate(t, 2, 30, []float64{6, 1, -1}, 6)

	tests := []struct {
		name    string
		updates []Update
		wantW   []float64
		wantB   float64
	}{
		{name: "single update", updates: []Update{a}, wantW: []float64{1, 2, 3}, wantB: 1},
		{name: "unweighted mean", updates: []Update{a, b}, wantW: []float64{1.5, 2.5, 3.5}, wantB: 1.5},
		{name: "ignores sample counts", updates: []Update{a, b, c}, wantW: []float64{3, 2, 2}, wantB: 3},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := MeanAggregator{}.Aggregate(tc.updates)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			w, _ := got.Get("w")
			for i := range tc.wantW {
				if math.Abs(w.Data[i]-tc.wantW[i]) > 1e-12 {
					t.Errorf("w[%d]: expected %f, got %f", i, tc.wantW[i], w.Data[i])
				}
			}
			bias, _ := got.Get("b")
			if math.Abs(bias.Data[0]-tc.wantB) > 1e-12 {
				t.Errorf("b: expected %f, got %f", tc.wantB, bias.Data[0])
			}
			if err := got.Conforms(aggSpec); err != nil {
				t.Errorf("aggregate lost its shape: %v", err)
			}
		})
	}
}

func TestMeanAggregatorSingleIsIdentity(t *testing.T) {
	u := vecUpdate(t, 0, 5, []float64{0.1, 0.7, -3.3}, 1e-9)

	got, err := MeanAggregator{}.Aggregate([]Update{u})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.EqualApprox(u.Params, 0) {
		t.Errorf("aggregate of one update is not that update")
	}

	got.At(0).Data[0] = 99
	if u.Params.At(0).Data[0] == 99 {
		t.Errorf("aggregate aliases its input")
	}
}

func TestMeanAggregatorOrderIndependent(t *testing.T) {
	a := vecUpdate(t, 0, 1, []float64{0.1, 0.2, 0.3}, 0.4)
	b := vecUpdate(t, 1, 1, []float64{1e3, -7.5, 3.25}, 2)
	c := vecUpdate(t, 2, 1, []float64{-0.333, 12, 1e-4}, -8)

	abc, err := MeanAggregator{}.Aggregate([]Update{a, b, c})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cab, err := MeanAggregator{}.Aggregate([]Update{c, a, b})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !abc.EqualApprox(cab, 1e-12) {
		t.Errorf("aggregation depends on input order")
	}
}

func TestWeightedAggregator(t *testing.T) {
	a := vecUpdate(t, 0, 10, []float64{1, 2, 3}, 0)
	b := vecUpdate(t, 1, 20, []float64{2, 3, 4}, 0)

	got, err := WeightedAggregator{}.Aggregate([]Update{a, b})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// (1*10 + 2*20)/30, (2*10 + 3*20)/30, (3*10 + 4*20)/30
	w, _ := got.Get("w")
	for i, want := range []float64{50.0 / 30, 80.0 / 30, 110.0 / 30} {
		if math.Abs(w.Data[i]-want) > 1e-9 {
			t.Errorf("w[%d]: expected %f, got %f", i, want, w.Data[i])
		}
	}

	zero := vecUpdate(t, 0, 0, []float64{1, 1, 1}, 1)
	_, err = WeightedAggregator{}.Aggregate([]Update{zero})
	if !errors.Is(err, ErrZeroSamples) {
		t.Errorf("expected ErrZeroSamples, got %v", err)
	}
	if !pkgerrors.IsData(err) {
		t.Errorf("expected a data error, got %v", err)
	}
}

func TestAggregateErrors(t *testing.T) {
	if _, err := (MeanAggregator{}).Aggregate(nil); !errors.Is(err, ErrNoUpdates) {
		t.Errorf("expected ErrNoUpdates, got %v", err)
	}
	if _, err := (WeightedAggregator{}).Aggregate(nil); !pkgerrors.IsData(err) {
		t.Errorf("expected a data error, got %v", err)
	}

	bad := Update{Client: 1, Params: tensor.New(tensor.Spec{{Name: "w", Shape: tensor.Shape{4}}})}
	good := vecUpdate(t, 0, 1, []float64{1, 2, 3}, 0)
	if _, err := (MeanAggregator{}).Aggregate([]Update{good, bad}); !errors.Is(err, pkgerrors.ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}
}

func TestNewAggregator(t *testing.T) {
	for name, want := range map[string]string{"": AlgorithmMean, "mean": AlgorithmMean, "fedavg": AlgorithmFedAvg} {
		agg, err := NewAggregator(name)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", name, err)
		}
		if agg.Name() != want {
			t.Errorf("%q: expected %s, got %s", name, want, agg.Name())
		}
	}

	if _, err := NewAggregator("median"); !pkgerrors.IsConfiguration(err) {
		t.Errorf("expected configuration error, got %v", err)
	}
}
