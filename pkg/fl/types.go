package fl

import (
	"context"
	"math/rand/v2"

	"github.com/absmach/fedprox/pkg/dataset"
	"github.com/absmach/fedprox/pkg/tensor"
)

// Hyperparams configures one client's local optimization.
type Hyperparams struct {
	Epochs       int     `json:"epochs"`
	BatchSize    int     `json:"batch_size"`
	LearningRate float64 `json:"lr"`
	Mu           float64 `json:"mu"`
}

// Update is what a client returns to the coordinator at the end of a round.
type Update struct {
	Client     int                 `json:"client"`
	ClientName string              `json:"client_name"`
	NumSamples int                 `json:"num_samples"`
	Params     tensor.ParameterSet `json:"-"`
	Stats      TrainStats          `json:"stats"`
}

// TrainStats summarizes one local training call.
type TrainStats struct {
	Epochs        int     `json:"epochs"`
	Batches       int     `json:"batches"`
	Samples       int     `json:"samples"`
	MeanLoss      float64 `json:"mean_loss"`
	FinalLoss     float64 `json:"final_loss"`
	FinalProximal float64 `json:"final_proximal"`
}

// Metrics is the score of a parameter set on a held-out dataset.
type Metrics struct {
	Loss     float64 `json:"loss"`
	Accuracy float64 `json:"accuracy"`
	Samples  int     `json:"samples"`
}

// BatchInfo is reported to a BatchObserver before each optimization step.
type BatchInfo struct {
	Epoch    int
	Batch    int
	Loss     float64
	Proximal float64
	Total    float64
}

type BatchObserver func(BatchInfo)

type Aggregator interface {
	Name() string
	Aggregate(updates []Update) (tensor.ParameterSet, error)
}

// Trainer runs local optimization for one client.
type Trainer interface {
	Train(ctx context.Context, local, global tensor.ParameterSet, shard dataset.Dataset, rng *rand.Rand) (tensor.ParameterSet, TrainStats, error)
}

// Scorer evaluates parameters against a dataset.
type Scorer interface {
	Evaluate(ctx context.Context, params tensor.ParameterSet, ds dataset.Dataset) (Metrics, error)
}
