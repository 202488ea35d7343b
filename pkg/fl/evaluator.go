package fl

import (
	"context"
	"fmt"

	"github.com/absmach/fedprox/pkg/dataset"
	pkgerrors "github.com/absmach/fedprox/pkg/errors"
	"github.com/absmach/fedprox/pkg/model"
	"github.com/absmach/fedprox/pkg/tensor"
	"gonum.org/v1/gonum/floats"
)

const defaultEvalBatch = 1000

// Evaluator scores parameters in inference mode.
type Evaluator struct {
	model     model.Model
	batchSize int
}

var _ Scorer = (*Evaluator)(nil)

func NewEvaluator(m model.Model, batchSize int) *Evaluator {
	if batchSize <= 0 {
		batchSize = defaultEvalBatch
	}

	return &Evaluator{model: m, batchSize: batchSize}
}

// Evaluate returns the mean NLL per example and the top-1 accuracy of params
// on ds. params is only read.
func (e *Evaluator) Evaluate(ctx context.Context, params tensor.ParameterSet, ds dataset.Dataset) (Metrics, error) {
	if err := params.Conforms(e.model.Spec()); err != nil {
		return Metrics{}, err
	}
	if ds.Device() != e.model.Device() {
		return Metrics{}, fmt.Errorf("%w: model on %s, dataset on %s", pkgerrors.ErrDeviceMismatch, e.model.Device(), ds.Device())
	}
	n := ds.Len()
	if n == 0 {
		return Metrics{}, pkgerrors.ErrEmptyDataset
	}

	classes := e.model.Classes()
	logp := make([]float64, classes)

	var loss float64
	var correct int
	for start := 0; start < n; start += e.batchSize {
		if err := ctx.Err(); err != nil {
			return Metrics{}, err
		}

		end := min(start+e.batchSize, n)
		for i := start; i < end; i++ {
			ex := ds.At(i)
			if ex.Label < 0 || ex.Label >= classes || len(ex.Features) != e.model.Features() {
				return Metrics{}, fmt.Errorf("%w: example %d", pkgerrors.ErrMalformedBatch, i)
			}
			e.model.LogProbs(params, ex.Features, logp)
			loss += model.NLL(logp, ex.Label)
			if floats.MaxIdx(logp) == ex.Label {
				correct++
			}
		}
	}

	return Metrics{
		Loss:     loss / float64(n),
		Accuracy: float64(correct) / float64(n),
		Samples:  n,
	}, nil
}
