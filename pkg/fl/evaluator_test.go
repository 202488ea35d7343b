package fl

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/absmach/fedprox/pkg/dataset"
	pkgerrors "github.com/absmach/fedprox/pkg/errors"
	"github.com/absmach/fedprox/pkg/model"
	"github.com/absmach/fedprox/pkg/tensor"
)

func TestEvaluateUniformModel(t *testing.T) {
	ds, err := dataset.NewInMemory([]dataset.Example{
		{Features: []float64{1, 0}, Label: 0},
		{Features: []float64{0, 1}, Label: 1},
		{Features: []float64{1, 1}, Label: 2},
		{Features: []float64{2, 2}, Label: 0},
	}, 2, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m := model.NewSoftmax(2, 3, tensor.CPU)
	params := constParams(m.Spec(), 0)

	got, err := NewEvaluator(m, 3).Evaluate(context.Background(), params, ds)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(got.Loss-math.Log(3)) > 1e-12 {
		t.Errorf("expected loss ln(3), got %f", got.Loss)
	}
	// All classes tie, so the prediction is always class 0.
	if got.Accuracy != 0.5 {
		t.Errorf("expected accuracy 0.5, got %f", got.Accuracy)
	}
	if got.Samples != 4 {
		t.Errorf("expected 4 samples, got %d", got.Samples)
	}
}

func TestEvaluateAfterTraining(t *testing.T) {
	train, test := syntheticData(t, 300, 90)
	m := model.NewSoftmax(4, 3, tensor.CPU)
	start := m.Init(newRand(9))
	ev := NewEvaluator(m, 0)

	before, err := ev.Evaluate(context.Background(), start, test)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lt, err := NewLocalTrainer(m, Hyperparams{Epochs: 3, BatchSize: 16, LearningRate: 0.1}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	trained, _, err := lt.Train(context.Background(), start, start, train, newRand(9))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snapshot := trained.Clone()

	after, err := ev.Evaluate(context.Background(), trained, test)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if after.Loss >= before.Loss {
		t.Errorf("expected loss to drop, before %f after %f", before.Loss, after.Loss)
	}
	if after.Accuracy < 0.8 {
		t.Errorf("expected accuracy above 0.8 on separable data, got %f", after.Accuracy)
	}
	if !trained.EqualApprox(snapshot, 0) {
		t.Errorf("evaluation mutated the parameters")
	}
}

func TestEvaluateErrors(t *testing.T) {
	m := model.NewSoftmax(4, 3, tensor.CPU)
	params := m.Init(newRand(1))
	train, _ := syntheticData(t, 5, 0)
	ev := NewEvaluator(m, 0)

	if _, err := ev.Evaluate(context.Background(), params, dataset.NewSubset(train, nil)); !errors.Is(err, pkgerrors.ErrEmptyDataset) {
		t.Errorf("expected ErrEmptyDataset, got %v", err)
	}
	if _, err := ev.Evaluate(context.Background(), params, train.OnDevice("cuda:0")); !errors.Is(err, pkgerrors.ErrDeviceMismatch) {
		t.Errorf("expected ErrDeviceMismatch, got %v", err)
	}
	wrong := model.NewSoftmax(3, 3, tensor.CPU).Init(newRand(1))
	if _, err := ev.Evaluate(context.Background(), wrong, train); !errors.Is(err, pkgerrors.ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}
}
