// Package optim implements optimization algorithms applied by training
// epochs.
//
// This package provides:
//   - Optimizer interface: the contract a model's Optimize method drives
//   - SGD: Stochastic Gradient Descent with momentum and weight decay
//   - Adam: Adaptive Moment Estimation with bias correction
//
// Optimizers carry their own state (velocities, moments, timestep). The
// learning rate is not part of that state: the epoch draws it from the
// scheduler once per iteration and passes it to every Step of that
// iteration.
//
// Example usage:
//
//	optimizer := optim.NewAdam(optim.AdamConfig{})
//
//	lr := scheduler.Step()
//	out, _ := model.TrainStep(item)
//	if err := optimizer.Step(lr, params, out.Grads); err != nil {
//	    return err
//	}
package optim

import (
	"errors"
	"fmt"

	"github.com/born-ml/born-train/internal/grad"
	"github.com/born-ml/born-train/internal/param"
	"github.com/born-ml/born-train/internal/parallel"
)

// ErrDeviceMismatch is returned when gradients and parameters live on different devices.
var ErrDeviceMismatch = errors.New("optim: gradients and parameters are on different devices")

// Optimizer updates parameters from gradients.
type Optimizer interface {
	// Step applies one update with learning rate lr.
	//
	// Parameters without a gradient are left untouched; gradients for
	// parameters not in the store are ignored.
	Step(lr float64, params *param.Store, grads *grad.Gradients) error

	// StateDict exports the optimizer state.
	StateDict() map[string][]float32

	// LoadStateDict restores state exported by StateDict.
	LoadStateDict(state map[string][]float32) error
}

// Config is the base configuration shared by all optimizers.
type Config struct {
	Name        string     `mapstructure:"name" yaml:"name"` // sgd or adam
	Momentum    float32    `mapstructure:"momentum" yaml:"momentum"`
	Betas       [2]float32 `mapstructure:"betas" yaml:"betas"`
	Eps         float32    `mapstructure:"eps" yaml:"eps"`
	WeightDecay float32    `mapstructure:"weight_decay" yaml:"weight_decay"`
}

// FromConfig builds the optimizer described by cfg.
func FromConfig(cfg Config) (Optimizer, error) {
	switch cfg.Name {
	case "", "sgd":
		return NewSGD(SGDConfig{Momentum: cfg.Momentum, WeightDecay: cfg.WeightDecay}), nil
	case "adam":
		return NewAdam(AdamConfig{Betas: cfg.Betas, Eps: cfg.Eps, WeightDecay: cfg.WeightDecay}), nil
	default:
		return nil, fmt.Errorf("optim: unknown optimizer %q", cfg.Name)
	}
}

// update is one parameter paired with its gradient.
type update struct {
	id    param.ID
	value []float32
	grad  []float32
}

// collect pairs every parameter with its gradient, in store order.
func collect(params *param.Store, grads *grad.Gradients) ([]update, error) {
	if grads.Len() == 0 {
		return nil, nil
	}
	if grads.Device() != params.Device() {
		return nil, fmt.Errorf("%w: params on %s, gradients on %s", ErrDeviceMismatch, params.Device(), grads.Device())
	}

	var out []update
	for _, id := range params.IDs() {
		g, ok := grads.Get(id)
		if !ok {
			// Parameter didn't take part in the step.
			continue
		}
		p, _ := params.Get(id)
		if len(g) != len(p) {
			return nil, fmt.Errorf("optim: gradient for %q has %d elements, parameter has %d", id, len(g), len(p))
		}
		out = append(out, update{id: id, value: p, grad: g})
	}
	return out, nil
}

// buffer returns the state vector for id, creating a zeroed one on first use.
func buffer(state map[param.ID][]float32, id param.ID, n int) []float32 {
	b, ok := state[id]
	if !ok {
		b = make([]float32, n)
		state[id] = b
	}
	return b
}

// elementwise runs f over [0, n) using the package parallel config.
func elementwise(n int, f func(i int)) {
	parallel.For(n, f, parallelConfig)
}

var parallelConfig = parallel.DefaultConfig()

// exportBuffers writes state buffers under prefix.<id>.
func exportBuffers(dst map[string][]float32, prefix string, state map[param.ID][]float32) {
	for id, b := range state {
		c := make([]float32, len(b))
		copy(c, b)
		dst[prefix+"."+string(id)] = c
	}
}

// importBuffers reads state buffers written by exportBuffers.
func importBuffers(src map[string][]float32, prefix string) map[param.ID][]float32 {
	out := make(map[param.ID][]float32)
	for key, b := range src {
		if len(key) <= len(prefix)+1 || key[:len(prefix)+1] != prefix+"." {
			continue
		}
		c := make([]float32, len(b))
		copy(c, b)
		out[param.ID(key[len(prefix)+1:])] = c
	}
	return out
}
