package model

import (
	"math/rand/v2"

	"github.com/absmach/fedprox/pkg/dataset"
	"github.com/absmach/fedprox/pkg/tensor"
	"gonum.org/v1/gonum/floats"
)

const (
	fcWeight = "fc.weight"
	fcBias   = "fc.bias"
)

// Softmax is multinomial logistic regression: logits = W·x + b.
type Softmax struct {
	features int
	classes  int
	device   tensor.Device
	spec     tensor.Spec
}

var _ Model = (*Softmax)(nil)

func NewSoftmax(features, classes int, device tensor.Device) *Softmax {
	return &Softmax{
		features: features,
		classes:  classes,
		device:   device,
		spec: tensor.Spec{
			{Name: fcWeight, Shape: tensor.Shape{classes, features}},
			{Name: fcBias, Shape: tensor.Shape{classes}},
		},
	}
}

func (m *Softmax) Name() string { return KindSoftmax }
func (m *Softmax) Spec() tensor.Spec { return m.spec }
func (m *Softmax) Device() tensor.Device { return m.device }
func (m *Softmax) Features() int { return m.features }
func (m *Softmax) Classes() int { return m.classes }

func (m *Softmax) Init(rng *rand.Rand) tensor.ParameterSet {
	ps := tensor.New(m.spec)
	uniformInit(ps.At(0), m.features, rng)
	uniformInit(ps.At(1), m.features, rng)

	return ps
}

func (m *Softmax) LogProbs(params tensor.ParameterSet, x []float64, out []float64) {
	w, b := params.At(0).Data, params.At(1).Data
	for c := 0; c < m.classes; c++ {
		out[c] = floats.Dot(w[c*m.features:(c+1)*m.features], x) + b[c]
	}
	lse := floats.LogSumExp(out[:m.classes])
	floats.AddConst(-lse, out[:m.classes])
}

func (m *Softmax) Gradient(params tensor.ParameterSet, batch []dataset.Example, grad tensor.ParameterSet, _ *rand.Rand) (float64, error) {
	if err := checkBatch(batch, m.features, m.classes); err != nil {
		return 0, err
	}

	gw, gb := grad.At(0).Data, grad.At(1).Data
	scale := 1 / float64(len(batch))
	logp := make([]float64, m.classes)

	var loss float64
	for _, ex := range batch {
		m.LogProbs(params, ex.Features, logp)
		loss += NLL(logp, ex.Label)

		// d(-log p_y)/d logit_c = p_c - [c == y]
		for c := 0; c < m.classes; c++ {
			d := expClamp(logp[c])
			if c == ex.Label {
				d--
			}
			d *= scale
			floats.AddScaled(gw[c*m.features:(c+1)*m.features], d, ex.Features)
			gb[c] += d
		}
	}

	return loss * scale, nil
}
