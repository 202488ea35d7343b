package fl

import (
	"fmt"

	pkgerrors "github.com/absmach/fedprox/pkg/errors"
	"github.com/absmach/fedprox/pkg/tensor"
	"gonum.org/v1/gonum/floats"
)

const (
	AlgorithmMean   = "mean"
	AlgorithmFedAvg = "fedavg"
)

var (
	ErrNoUpdates         = fmt.Errorf("%w: no updates to aggregate", pkgerrors.ErrInvalidData)
	ErrZeroSamples       = fmt.Errorf("%w: cannot aggregate: total_samples is zero", pkgerrors.ErrInvalidData)
	ErrUnknownAggregator = fmt.Errorf("%w: unknown aggregation algorithm", pkgerrors.ErrConfiguration)
)

// NewAggregator returns the aggregator registered under name.
func NewAggregator(name string) (Aggregator, error) {
	switch name {
	case AlgorithmMean, "":
		return MeanAggregator{}, nil
	case AlgorithmFedAvg:
		return WeightedAggregator{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAggregator, name)
	}
}

// MeanAggregator averages every parameter across updates with equal weight,
// regardless of how many samples each client trained on.
type MeanAggregator struct{}

func (MeanAggregator) Name() string { return AlgorithmMean }

func (MeanAggregator) Aggregate(updates []Update) (tensor.ParameterSet, error) {
	weights := make([]float64, len(updates))
	for i := range weights {
		weights[i] = 1
	}

	return weightedMean(updates, weights)
}

// WeightedAggregator is FedAvg: each update is weighted by its sample count.
type WeightedAggregator struct{}

func (WeightedAggregator) Name() string { return AlgorithmFedAvg }

func (WeightedAggregator) Aggregate(updates []Update) (tensor.ParameterSet, error) {
	weights := make([]float64, len(updates))
	for i, u := range updates {
		if u.NumSamples < 0 {
			return tensor.ParameterSet{}, fmt.Errorf("%w: client %d reported %d samples", pkgerrors.ErrInvalidData, u.Client, u.NumSamples)
		}
		weights[i] = float64(u.NumSamples)
	}

	return weightedMean(updates, weights)
}

func weightedMean(updates []Update, weights []float64) (tensor.ParameterSet, error) {
	if len(updates) == 0 {
		return tensor.ParameterSet{}, ErrNoUpdates
	}

	spec := updates[0].Params.Spec()
	for _, u := range updates[1:] {
		if err := u.Params.Conforms(spec); err != nil {
			return tensor.ParameterSet{}, fmt.Errorf("client %d: %w", u.Client, err)
		}
	}

	total := floats.Sum(weights)
	if total == 0 {
		return tensor.ParameterSet{}, ErrZeroSamples
	}

	out := tensor.New(spec)
	for i := 0; i < out.Len(); i++ {
		dst := out.At(i).Data
		for k, u := range updates {
			floats.AddScaled(dst, weights[k], u.Params.At(i).Data)
		}
		floats.Scale(1/total, dst)
	}

	return out, nil
}
