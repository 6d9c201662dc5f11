package optim

import (
	"github.com/born-ml/born-train/internal/grad"
	"github.com/born-ml/born-train/internal/param"
)

// SGD implements Stochastic Gradient Descent with optional momentum.
//
// Update rule without momentum:
//
//	param = param - lr * (gradient + weight_decay * param)
//
// Update rule with momentum:
//
//	velocity = momentum * velocity + gradient
//	param = param - lr * velocity
type SGD struct {
	momentum    float32
	weightDecay float32
	velocities  map[param.ID][]float32
}

// SGDConfig holds configuration for SGD.
type SGDConfig struct {
	Momentum    float32 // Momentum factor (default: 0.0, range: [0, 1))
	WeightDecay float32 // L2 penalty (default: 0.0)
}

// NewSGD creates a new SGD optimizer.
func NewSGD(config SGDConfig) *SGD {
	return &SGD{
		momentum:    config.Momentum,
		weightDecay: config.WeightDecay,
		velocities:  make(map[param.ID][]float32),
	}
}

// Step performs a single optimization step.
func (s *SGD) Step(lr float64, params *param.Store, grads *grad.Gradients) error {
	updates, err := collect(params, grads)
	if err != nil {
		return err
	}
	rate := float32(lr)

	for _, u := range updates {
		p, g := u.value, u.grad
		if s.momentum == 0 {
			elementwise(len(p), func(i int) {
				p[i] -= rate * (g[i] + s.weightDecay*p[i])
			})
			continue
		}

		v := buffer(s.velocities, u.id, len(p))
		elementwise(len(p), func(i int) {
			v[i] = s.momentum*v[i] + g[i] + s.weightDecay*p[i]
			p[i] -= rate * v[i]
		})
	}
	return nil
}

// StateDict exports velocity buffers as "velocity.<param>".
// Without momentum the state is empty.
func (s *SGD) StateDict() map[string][]float32 {
	state := make(map[string][]float32)
	if s.momentum == 0 {
		return state
	}
	exportBuffers(state, "velocity", s.velocities)
	return state
}

// LoadStateDict restores velocity buffers. Without momentum it is a no-op.
func (s *SGD) LoadStateDict(state map[string][]float32) error {
	if s.momentum == 0 {
		return nil
	}
	s.velocities = importBuffers(state, "velocity")
	return nil
}
