package model

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/born-train/internal/data"
	"github.com/born-ml/born-train/internal/device"
	"github.com/born-ml/born-train/internal/grad"
	"github.com/born-ml/born-train/internal/optim"
	"github.com/born-ml/born-train/internal/param"
	"github.com/born-ml/born-train/internal/train"
)

// Parameter identities of the regression model.
const (
	RegressionWeight param.ID = "linear.weight"
	RegressionBias   param.ID = "linear.bias"
)

// Sample is one regression example.
type Sample struct {
	Features []float32
	Target   float32
}

// Regression is a linear model y = w·x + b trained with mean squared error.
type Regression struct {
	params   *param.Store
	features int
}

// NewRegression creates a zero-initialized model on d.
func NewRegression(features int, d device.Device) *Regression {
	return &Regression{
		params: newStore(d, map[param.ID][]float32{
			RegressionWeight: make([]float32, features),
			RegressionBias:   make([]float32, 1),
		}, []param.ID{RegressionWeight, RegressionBias}),
		features: features,
	}
}

// Params returns the model parameters.
func (m *Regression) Params() *param.Store {
	return m.params
}

// TrainStep computes the batch loss and its gradients.
func (m *Regression) TrainStep(batch data.Batch[Sample]) (train.TrainOutput[RegressionOutput], error) {
	out, residuals, err := m.forward(batch)
	if err != nil {
		return train.TrainOutput[RegressionOutput]{}, err
	}

	n := float32(batch.Len())
	gw := make([]float32, m.features)
	gb := float32(0)
	for i, s := range batch.Items {
		r := 2 * residuals[i] / n
		for j, x := range s.Features {
			gw[j] += r * x
		}
		gb += r
	}

	grads := grad.New(m.params.Device())
	grads.Set(RegressionWeight, gw)
	grads.Set(RegressionBias, []float32{gb})
	return train.TrainOutput[RegressionOutput]{Item: out, Grads: grads}, nil
}

// ValidStep computes the batch loss.
func (m *Regression) ValidStep(batch data.Batch[Sample]) (RegressionOutput, error) {
	out, _, err := m.forward(batch)
	return out, err
}

func (m *Regression) forward(batch data.Batch[Sample]) (RegressionOutput, []float32, error) {
	if batch.Len() == 0 {
		return RegressionOutput{}, nil, fmt.Errorf("model: empty batch")
	}
	w, _ := m.params.Get(RegressionWeight)
	b, _ := m.params.Get(RegressionBias)

	residuals := make([]float32, batch.Len())
	sum := 0.0
	for i, s := range batch.Items {
		if len(s.Features) != m.features {
			return RegressionOutput{}, nil, fmt.Errorf("model: sample %d has %d features, want %d", i, len(s.Features), m.features)
		}
		pred := b[0]
		for j, x := range s.Features {
			pred += w[j] * x
		}
		residuals[i] = pred - s.Target
		sum += float64(residuals[i] * residuals[i])
	}
	return RegressionOutput{MSE: sum / float64(batch.Len()), Size: batch.Len()}, residuals, nil
}

// Optimize applies grads through opt and returns the updated model.
func (m *Regression) Optimize(opt optim.Optimizer, lr float64, grads *grad.Gradients) (train.Model[data.Batch[Sample], RegressionOutput], error) {
	if err := optimize(opt, lr, m.params, grads); err != nil {
		return m, err
	}
	return m, nil
}

// Fork returns a copy of the model placed on d.
func (m *Regression) Fork(d device.Device) train.Model[data.Batch[Sample], RegressionOutput] {
	return &Regression{params: m.params.ToDevice(d), features: m.features}
}

// SyntheticRegression draws n samples from y = w·x + b + noise with random
// true weights, and returns them with those weights and bias.
func SyntheticRegression(n, features int, noise float32, seed int64) ([]Sample, []float32, float32) {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // reproducible data, not security.
	weights := make([]float32, features)
	for i := range weights {
		weights[i] = rng.Float32()*4 - 2
	}
	bias := rng.Float32()*2 - 1

	samples := make([]Sample, n)
	for i := range samples {
		x := make([]float32, features)
		y := bias
		for j := range x {
			x[j] = rng.Float32()*2 - 1
			y += weights[j] * x[j]
		}
		samples[i] = Sample{Features: x, Target: y + noise*float32(rng.NormFloat64())}
	}
	return samples, weights, bias
}
