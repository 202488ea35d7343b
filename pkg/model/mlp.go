package model

import (
	"math"
	"math/rand/v2"

	"github.com/absmach/fedprox/pkg/dataset"
	"github.com/absmach/fedprox/pkg/tensor"
	"gonum.org/v1/gonum/floats"
)

const (
	fc1Weight = "fc1.weight"
	fc1Bias   = "fc1.bias"
	fc2Weight = "fc2.weight"
	fc2Bias   = "fc2.bias"
)

// MLP is a two-layer perceptron with a ReLU hidden layer and inverted dropout
// on the hidden activations during training.
type MLP struct {
	features int
	hidden   int
	classes  int
	dropout  float64
	device   tensor.Device
	spec     tensor.Spec
}

var _ Model = (*MLP)(nil)

func NewMLP(features, hidden, classes int, dropout float64, device tensor.Device) *MLP {
	return &MLP{
		features: features,
		hidden:   hidden,
		classes:  classes,
		dropout:  dropout,
		device:   device,
		spec: tensor.Spec{
			{Name: fc1Weight, Shape: tensor.Shape{hidden, features}},
			{Name: fc1Bias, Shape: tensor.Shape{hidden}},
			{Name: fc2Weight, Shape: tensor.Shape{classes, hidden}},
			{Name: fc2Bias, Shape: tensor.Shape{classes}},
		},
	}
}

func (m *MLP) Name() string { return KindMLP }
func (m *MLP) Spec() tensor.Spec { return m.spec }
func (m *MLP) Device() tensor.Device { return m.device }
func (m *MLP) Features() int { return m.features }
func (m *MLP) Classes() int { return m.classes }

func (m *MLP) Init(rng *rand.Rand) tensor.ParameterSet {
	ps := tensor.New(m.spec)
	uniformInit(ps.At(0), m.features, rng)
	uniformInit(ps.At(1), m.features, rng)
	uniformInit(ps.At(2), m.hidden, rng)
	uniformInit(ps.At(3), m.hidden, rng)

	return ps
}

// hiddenLayer computes pre-activations into pre and ReLU outputs into h.
func (m *MLP) hiddenLayer(params tensor.ParameterSet, x, pre, h []float64) {
	w1, b1 := params.At(0).Data, params.At(1).Data
	for j := 0; j < m.hidden; j++ {
		pre[j] = floats.Dot(w1[j*m.features:(j+1)*m.features], x) + b1[j]
		h[j] = math.Max(pre[j], 0)
	}
}

func (m *MLP) outputLayer(params tensor.ParameterSet, h, out []float64) {
	w2, b2 := params.At(2).Data, params.At(3).Data
	for c := 0; c < m.classes; c++ {
		out[c] = floats.Dot(w2[c*m.hidden:(c+1)*m.hidden], h) + b2[c]
	}
	lse := floats.LogSumExp(out[:m.classes])
	floats.AddConst(-lse, out[:m.classes])
}

func (m *MLP) LogProbs(params tensor.ParameterSet, x []float64, out []float64) {
	pre := make([]float64, m.hidden)
	h := make([]float64, m.hidden)
	m.hiddenLayer(params, x, pre, h)
	m.outputLayer(params, h, out)
}

func (m *MLP) Gradient(params tensor.ParameterSet, batch []dataset.Example, grad tensor.ParameterSet, rng *rand.Rand) (float64, error) {
	if err := checkBatch(batch, m.features, m.classes); err != nil {
		return 0, err
	}

	w2 := params.At(2).Data
	gw1, gb1 := grad.At(0).Data, grad.At(1).Data
	gw2, gb2 := grad.At(2).Data, grad.At(3).Data

	scale := 1 / float64(len(batch))
	keep := 1 - m.dropout

	pre := make([]float64, m.hidden)
	h := make([]float64, m.hidden)
	mask := make([]float64, m.hidden)
	dh := make([]float64, m.hidden)
	logp := make([]float64, m.classes)

	var loss float64
	for _, ex := range batch {
		m.hiddenLayer(params, ex.Features, pre, h)
		for j := range mask {
			mask[j] = 1
			if m.dropout > 0 {
				mask[j] = 0
				if rng.Float64() < keep {
					mask[j] = 1 / keep
				}
			}
			h[j] *= mask[j]
		}
		m.outputLayer(params, h, logp)
		loss += NLL(logp, ex.Label)

		for j := range dh {
			dh[j] = 0
		}
		for c := 0; c < m.classes; c++ {
			d := expClamp(logp[c])
			if c == ex.Label {
				d--
			}
			d *= scale
			floats.AddScaled(gw2[c*m.hidden:(c+1)*m.hidden], d, h)
			gb2[c] += d
			floats.AddScaled(dh, d, w2[c*m.hidden:(c+1)*m.hidden])
		}

		for j := 0; j < m.hidden; j++ {
			if pre[j] <= 0 {
				continue
			}
			g := dh[j] * mask[j]
			if g == 0 {
				continue
			}
			floats.AddScaled(gw1[j*m.features:(j+1)*m.features], g, ex.Features)
			gb1[j] += g
		}
	}

	return loss * scale, nil
}

func expClamp(logp float64) float64 {
	if logp < -745 {
		return 0
	}

	return math.Exp(logp)
}
