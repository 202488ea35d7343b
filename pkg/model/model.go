// Package model contains the classifiers trained by the simulator.
//
// Models are stateless: parameters live in a tensor.ParameterSet owned by the
// caller, so any number of clients can share one Model value and each train
// its own copy of the parameters.
package model

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/absmach/fedprox/pkg/dataset"
	pkgerrors "github.com/absmach/fedprox/pkg/errors"
	"github.com/absmach/fedprox/pkg/tensor"
)

const (
	KindSoftmax = "softmax"
	KindMLP     = "mlp"
)

type Model interface {
	Name() string
	Spec() tensor.Spec
	Device() tensor.Device
	Features() int
	Classes() int

	// Init returns freshly initialized parameters drawn from rng.
	Init(rng *rand.Rand) tensor.ParameterSet

	// LogProbs writes the log-probability of every class for x into out.
	// It runs in inference mode.
	LogProbs(params tensor.ParameterSet, x []float64, out []float64)

	// Gradient returns the mean negative log-likelihood of batch under params
	// and adds its gradient into grad. Stochastic regularization, if any, draws
	// from rng.
	Gradient(params tensor.ParameterSet, batch []dataset.Example, grad tensor.ParameterSet, rng *rand.Rand) (float64, error)
}

// Config selects and sizes a model.
type Config struct {
	Kind     string
	Features int
	Classes  int
	Hidden   int
	Dropout  float64
	Device   tensor.Device
}

func New(cfg Config) (Model, error) {
	if cfg.Features <= 0 || cfg.Classes <= 1 {
		return nil, fmt.Errorf("%w: model needs features>0 and classes>1, got %d and %d", pkgerrors.ErrInvalidConfig, cfg.Features, cfg.Classes)
	}
	if cfg.Device == "" {
		cfg.Device = tensor.CPU
	}
	if cfg.Device != tensor.CPU {
		return nil, fmt.Errorf("%w: unsupported device %q", pkgerrors.ErrInvalidConfig, cfg.Device)
	}

	switch cfg.Kind {
	case KindSoftmax, "":
		return NewSoftmax(cfg.Features, cfg.Classes, cfg.Device), nil
	case KindMLP:
		if cfg.Hidden <= 0 {
			return nil, fmt.Errorf("%w: mlp needs hidden>0, got %d", pkgerrors.ErrInvalidConfig, cfg.Hidden)
		}
		if cfg.Dropout < 0 || cfg.Dropout >= 1 {
			return nil, fmt.Errorf("%w: dropout must be in [0,1), got %g", pkgerrors.ErrInvalidConfig, cfg.Dropout)
		}

		return NewMLP(cfg.Features, cfg.Hidden, cfg.Classes, cfg.Dropout, cfg.Device), nil
	default:
		return nil, fmt.Errorf("%w: unknown model kind %q", pkgerrors.ErrInvalidConfig, cfg.Kind)
	}
}

// NLL returns -logProbs[label].
func NLL(logProbs []float64, label int) float64 {
	return -logProbs[label]
}

func checkBatch(batch []dataset.Example, features, classes int) error {
	if len(batch) == 0 {
		return fmt.Errorf("%w: empty batch", pkgerrors.ErrMalformedBatch)
	}
	for i, ex := range batch {
		if len(ex.Features) != features {
			return fmt.Errorf("%w: example %d has %d features, expected %d", pkgerrors.ErrMalformedBatch, i, len(ex.Features), features)
		}
		if ex.Label < 0 || ex.Label >= classes {
			return fmt.Errorf("%w: example %d has label %d outside [0,%d)", pkgerrors.ErrMalformedBatch, i, ex.Label, classes)
		}
	}

	return nil
}

// uniformInit fills t with U(-1/sqrt(fanIn), 1/sqrt(fanIn)).
func uniformInit(t tensor.Tensor, fanIn int, rng *rand.Rand) {
	bound := 1 / math.Sqrt(float64(fanIn))
	for i := range t.Data {
		t.Data[i] = (2*rng.Float64() - 1) * bound
	}
}
