package fl

import (
	"math/rand/v2"
	"testing"

	"github.com/absmach/fedprox/pkg/dataset"
	"github.com/absmach/fedprox/pkg/tensor"
)

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed+1))
}

func syntheticData(t *testing.T, train, test int) (*dataset.InMemory, *dataset.InMemory) {
	t.Helper()

	tr, te, err := dataset.Synthetic(dataset.SyntheticConfig{
		Features:   4,
		Classes:    3,
		TrainSize:  train,
		TestSize:   test,
		Separation: 3,
		Seed:       11,
	})
	if err != nil {
		t.Fatalf("failed to build synthetic data: %v", err)
	}

	return tr, te
}

func constParams(spec tensor.Spec, v float64) tensor.ParameterSet {
	ps := tensor.New(spec)
	for i := 0; i < ps.Len(); i++ {
		for j := range ps.At(i).Data {
			ps.At(i).Data[j] = v
		}
	}

	return ps
}
