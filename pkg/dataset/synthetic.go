package dataset

import (
	"fmt"
	"math/rand/v2"

	pkgerrors "github.com/absmach/fedprox/pkg/errors"
)

// SyntheticConfig describes a Gaussian-blob classification problem.
type SyntheticConfig struct {
	Features   int
	Classes    int
	TrainSize  int
	TestSize   int
	Separation float64
	Seed       uint64
}

// Synthetic draws a train and a test set from the same class centers. Each
// class center is sampled from N(0, Separation²) per feature and each example
// adds unit Gaussian noise to its class center.
func Synthetic(cfg SyntheticConfig) (train, test *InMemory, err error) {
	if cfg.Features <= 0 || cfg.Classes <= 0 || cfg.TrainSize < 0 || cfg.TestSize < 0 {
		return nil, nil, fmt.Errorf("%w: synthetic dataset %+v", pkgerrors.ErrInvalidConfig, cfg)
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))

	centers := make([][]float64, cfg.Classes)
	for c := range centers {
		centers[c] = make([]float64, cfg.Features)
		for j := range centers[c] {
			centers[c][j] = rng.NormFloat64() * cfg.Separation
		}
	}

	draw := func(n int) []Example {
		out := make([]Example, n)
		for i := range out {
			label := i % cfg.Classes
			f := make([]float64, cfg.Features)
			for j := range f {
				f[j] = centers[label][j] + rng.NormFloat64()
			}
			out[i] = Example{Features: f, Label: label}
		}

		return out
	}

	if train, err = NewInMemory(draw(cfg.TrainSize), cfg.Features, cfg.Classes); err != nil {
		return nil, nil, err
	}
	if test, err = NewInMemory(draw(cfg.TestSize), cfg.Features, cfg.Classes); err != nil {
		return nil, nil, err
	}

	return train, test, nil
}
