package optim

import (
	"fmt"
	"math"

	"github.com/born-ml/born-train/internal/grad"
	"github.com/born-ml/born-train/internal/param"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient       // First moment
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient²      // Second moment
//	m_hat = m_t / (1 - beta1^t)                        // Bias correction
//	v_hat = v_t / (1 - beta2^t)                        // Bias correction
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)  // Parameter update
//
// The timestep t counts optimizer steps, not iterations: with gradient
// accumulation it advances once per flushed window.
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
type Adam struct {
	beta1       float32
	beta2       float32
	eps         float32
	weightDecay float32
	t           int                    // Timestep for bias correction
	m           map[param.ID][]float32 // First moment estimates
	v           map[param.ID][]float32 // Second moment estimates
}

// AdamConfig holds configuration for Adam.
type AdamConfig struct {
	Betas       [2]float32 // Coefficients for computing running averages (default: [0.9, 0.999])
	Eps         float32    // Term for numerical stability (default: 1e-8)
	WeightDecay float32    // L2 penalty added to the gradient (default: 0.0)
}

// NewAdam creates a new Adam optimizer with default hyperparameters where
// the config leaves them zero.
func NewAdam(config AdamConfig) *Adam {
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}

	return &Adam{
		beta1:       config.Betas[0],
		beta2:       config.Betas[1],
		eps:         config.Eps,
		weightDecay: config.WeightDecay,
		m:           make(map[param.ID][]float32),
		v:           make(map[param.ID][]float32),
	}
}

// Step performs a single optimization step.
func (a *Adam) Step(lr float64, params *param.Store, grads *grad.Gradients) error {
	updates, err := collect(params, grads)
	if err != nil {
		return err
	}
	if len(updates) == 0 {
		return nil
	}

	a.t++
	biasCorrection1 := float32(1.0 - math.Pow(float64(a.beta1), float64(a.t)))
	biasCorrection2 := float32(1.0 - math.Pow(float64(a.beta2), float64(a.t)))
	rate := float32(lr)

	for _, u := range updates {
		p, g := u.value, u.grad
		m := buffer(a.m, u.id, len(p))
		v := buffer(a.v, u.id, len(p))

		elementwise(len(p), func(i int) {
			gi := g[i] + a.weightDecay*p[i]
			m[i] = a.beta1*m[i] + (1.0-a.beta1)*gi
			v[i] = a.beta2*v[i] + (1.0-a.beta2)*gi*gi
			mHat := m[i] / biasCorrection1
			vHat := v[i] / biasCorrection2
			p[i] -= rate * mHat / (float32(math.Sqrt(float64(vHat))) + a.eps)
		})
	}
	return nil
}

// Timestep returns the number of steps taken.
func (a *Adam) Timestep() int {
	return a.t
}

// timestepSplit keeps both halves of an exported timestep exact in float32.
const timestepSplit = 1 << 24

// StateDict exports "m.<param>", "v.<param>" and the timestep under "t" as
// {t / 2^24, t mod 2^24}.
func (a *Adam) StateDict() map[string][]float32 {
	state := map[string][]float32{"t": {float32(a.t / timestepSplit), float32(a.t % timestepSplit)}}
	exportBuffers(state, "m", a.m)
	exportBuffers(state, "v", a.v)
	return state
}

// LoadStateDict restores state exported by StateDict.
func (a *Adam) LoadStateDict(state map[string][]float32) error {
	t, ok := state["t"]
	switch {
	case !ok || len(t) == 0 || len(t) > 2:
		return fmt.Errorf("optim: adam state has no timestep")
	case len(t) == 1:
		a.t = int(t[0])
	default:
		a.t = int(t[0])*timestepSplit + int(t[1])
	}
	a.m = importBuffers(state, "m")
	a.v = importBuffers(state, "v")
	return nil
}
