package dataset

import (
	"fmt"

	"github.com/petar/GoMNIST"
)

const (
	mnistClasses = 10
	mnistMean    = 0.1307
	mnistStd     = 0.3081
)

// LoadMNIST reads the four IDX files under dir and returns normalized train
// and test sets.
func LoadMNIST(dir string) (train, test *InMemory, err error) {
	rawTrain, rawTest, err := GoMNIST.Load(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load MNIST from %s: %w", dir, err)
	}

	norm := Normalize(1.0/255.0, mnistMean, mnistStd)

	if train, err = fromMNIST(rawTrain, norm); err != nil {
		return nil, nil, err
	}
	if test, err = fromMNIST(rawTest, norm); err != nil {
		return nil, nil, err
	}

	return train, test, nil
}

func fromMNIST(set *GoMNIST.Set, t Transform) (*InMemory, error) {
	features := set.NRow * set.NCol
	out := make([]Example, set.Count())
	for i := range out {
		img, label := set.Get(i)
		f := make([]float64, len(img))
		for j, px := range img {
			f[j] = float64(px)
		}
		out[i] = t(Example{Features: f, Label: int(label)})
	}

	return NewInMemory(out, features, mnistClasses)
}
