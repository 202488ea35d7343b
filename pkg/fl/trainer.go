// Package fl implements the per-client and server-side steps of FedProx:
// proximal local training, aggregation and evaluation.
package fl

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/absmach/fedprox/pkg/dataset"
	pkgerrors "github.com/absmach/fedprox/pkg/errors"
	"github.com/absmach/fedprox/pkg/model"
	"github.com/absmach/fedprox/pkg/tensor"
	"gonum.org/v1/gonum/floats"
)

// LocalTrainer runs FedProx local updates: mini-batch SGD on
// NLL + (mu/2)·‖w − w_global‖², with w_global frozen for the whole call.
type LocalTrainer struct {
	model    model.Model
	hp       Hyperparams
	proximal bool
	observer BatchObserver
	logger   *slog.Logger
}

var _ Trainer = (*LocalTrainer)(nil)

type TrainerOption func(*LocalTrainer)

// WithoutProximal drops the proximal term entirely, giving plain local SGD.
func WithoutProximal() TrainerOption {
	return func(lt *LocalTrainer) {
		lt.proximal = false
	}
}

// WithBatchObserver registers fn to be called before every step.
func WithBatchObserver(fn BatchObserver) TrainerOption {
	return func(lt *LocalTrainer) {
		lt.observer = fn
	}
}

func NewLocalTrainer(m model.Model, hp Hyperparams, logger *slog.Logger, opts ...TrainerOption) (*LocalTrainer, error) {
	if hp.Epochs <= 0 || hp.BatchSize <= 0 || hp.LearningRate <= 0 || hp.Mu < 0 {
		return nil, fmt.Errorf("%w: hyperparameters %+v", pkgerrors.ErrInvalidConfig, hp)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	lt := &LocalTrainer{
		model:    m,
		hp:       hp,
		proximal: true,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(lt)
	}

	return lt, nil
}

// Train returns the parameters obtained by starting from local and running
// the configured epochs over shard. Neither local nor global is modified.
func (lt *LocalTrainer) Train(ctx context.Context, local, global tensor.ParameterSet, shard dataset.Dataset, rng *rand.Rand) (tensor.ParameterSet, TrainStats, error) {
	spec := lt.model.Spec()
	if err := local.Conforms(spec); err != nil {
		return tensor.ParameterSet{}, TrainStats{}, fmt.Errorf("local parameters: %w", err)
	}
	if err := global.Conforms(spec); err != nil {
		return tensor.ParameterSet{}, TrainStats{}, fmt.Errorf("global parameters: %w", err)
	}
	if shard.Device() != lt.model.Device() {
		return tensor.ParameterSet{}, TrainStats{}, fmt.Errorf("%w: model on %s, shard on %s", pkgerrors.ErrDeviceMismatch, lt.model.Device(), shard.Device())
	}
	n := shard.Len()
	if n == 0 {
		return tensor.ParameterSet{}, TrainStats{}, pkgerrors.ErrEmptyShard
	}

	frozen := global.Clone()
	w := local.Clone()
	grad := tensor.New(spec)

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	batch := make([]dataset.Example, 0, lt.hp.BatchSize)

	var stats TrainStats
	var lossSum float64
	for epoch := 0; epoch < lt.hp.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return tensor.ParameterSet{}, TrainStats{}, err
		}

		rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })

		for b, start := 0, 0; start < n; b, start = b+1, start+lt.hp.BatchSize {
			end := min(start+lt.hp.BatchSize, n)
			batch = batch[:0]
			for _, idx := range order[start:end] {
				batch = append(batch, shard.At(idx))
			}

			for i := 0; i < grad.Len(); i++ {
				clear(grad.At(i).Data)
			}

			loss, err := lt.model.Gradient(w, batch, grad, rng)
			if err != nil {
				return tensor.ParameterSet{}, TrainStats{}, fmt.Errorf("epoch %d batch %d: %w", epoch, b, err)
			}

			total := loss
			var prox float64
			if lt.proximal {
				if prox, err = ProximalTerm(w, frozen); err != nil {
					return tensor.ParameterSet{}, TrainStats{}, err
				}
				total += lt.hp.Mu / 2 * prox
				addProximalGradient(grad, w, frozen, lt.hp.Mu)
			}

			if lt.observer != nil {
				lt.observer(BatchInfo{Epoch: epoch, Batch: b, Loss: loss, Proximal: prox, Total: total})
			}

			for i := 0; i < w.Len(); i++ {
				floats.AddScaled(w.At(i).Data, -lt.hp.LearningRate, grad.At(i).Data)
			}

			lossSum += total
			stats.Batches++
			stats.Samples += len(batch)
			stats.FinalLoss = total
			stats.FinalProximal = prox
		}
		stats.Epochs++
	}
	stats.MeanLoss = lossSum / float64(stats.Batches)

	lt.logger.DebugContext(ctx, "local training finished",
		slog.Int("samples", n),
		slog.Int("batches", stats.Batches),
		slog.Float64("mean_loss", stats.MeanLoss),
		slog.Float64("final_proximal", stats.FinalProximal))

	return w, stats, nil
}

// ProximalTerm is Σ‖w − w_global‖² over all parameters.
func ProximalTerm(w, global tensor.ParameterSet) (float64, error) {
	return w.SquaredDistance(global)
}

// addProximalGradient adds mu·(w − global) into grad.
func addProximalGradient(grad, w, global tensor.ParameterSet, mu float64) {
	for i := 0; i < grad.Len(); i++ {
		g := grad.At(i).Data
		floats.AddScaled(g, mu, w.At(i).Data)
		floats.AddScaled(g, -mu, global.At(i).Data)
	}
}
