package optim_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/born-train/internal/device"
	"github.com/born-ml/born-train/internal/grad"
	"github.com/born-ml/born-train/internal/optim"
	"github.com/born-ml/born-train/internal/param"
)

// Helper to check float equality with tolerance.
func floatEqual(a, b, eps float32) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < eps
}

func store(t *testing.T, kv map[param.ID][]float32) *param.Store {
	t.Helper()
	s := param.NewStore(device.NewCPU(0))
	for _, id := range []param.ID{"x", "y"} {
		if v, ok := kv[id]; ok {
			require.NoError(t, s.Add(id, v))
		}
	}
	return s
}

func gradients(kv map[param.ID][]float32) *grad.Gradients {
	g := grad.New(device.NewCPU(0))
	for id, v := range kv {
		g.Set(id, v)
	}
	return g
}

// TestSGD_SimpleUpdate tests SGD without momentum.
func TestSGD_SimpleUpdate(t *testing.T) {
	params := store(t, map[param.ID][]float32{"x": {2.0}})
	optimizer := optim.NewSGD(optim.SGDConfig{})

	require.NoError(t, optimizer.Step(0.1, params, gradients(map[param.ID][]float32{"x": {1.0}})))

	// Expected: x_new = x_old - lr * grad = 2.0 - 0.1 * 1.0 = 1.9
	x, _ := params.Get("x")
	if !floatEqual(x[0], 1.9, 1e-6) {
		t.Errorf("SGD update: got %f, want %f", x[0], 1.9)
	}
}

// TestSGD_WithMomentum tests SGD with momentum.
func TestSGD_WithMomentum(t *testing.T) {
	params := store(t, map[param.ID][]float32{"x": {1.0}})
	optimizer := optim.NewSGD(optim.SGDConfig{Momentum: 0.9})
	g := gradients(map[param.ID][]float32{"x": {1.0}})

	// v1 = 1, x = 1 - 0.1 = 0.9; v2 = 0.9 + 1 = 1.9, x = 0.9 - 0.19 = 0.71
	require.NoError(t, optimizer.Step(0.1, params, g))
	require.NoError(t, optimizer.Step(0.1, params, g))

	x, _ := params.Get("x")
	assert.InDelta(t, 0.71, x[0], 1e-6)

	state := optimizer.StateDict()
	assert.InDeltaSlice(t, []float32{1.9}, state["velocity.x"], 1e-6)
}

func TestSGD_UsesGivenLearningRate(t *testing.T) {
	params := store(t, map[param.ID][]float32{"x": {0}})
	optimizer := optim.NewSGD(optim.SGDConfig{})
	g := gradients(map[param.ID][]float32{"x": {1}})

	require.NoError(t, optimizer.Step(0.5, params, g))
	require.NoError(t, optimizer.Step(0.25, params, g))

	x, _ := params.Get("x")
	assert.InDelta(t, -0.75, x[0], 1e-6)
}

func TestSGD_WeightDecay(t *testing.T) {
	params := store(t, map[param.ID][]float32{"x": {1}})
	optimizer := optim.NewSGD(optim.SGDConfig{WeightDecay: 0.5})

	require.NoError(t, optimizer.Step(0.1, params, gradients(map[param.ID][]float32{"x": {0}})))

	x, _ := params.Get("x")
	assert.InDelta(t, 0.95, x[0], 1e-6)
}

func TestSGD_SkipsParamsWithoutGradient(t *testing.T) {
	params := store(t, map[param.ID][]float32{"x": {1}, "y": {1}})
	optimizer := optim.NewSGD(optim.SGDConfig{})

	require.NoError(t, optimizer.Step(1, params, gradients(map[param.ID][]float32{"x": {1}, "ghost": {1}})))

	x, _ := params.Get("x")
	y, _ := params.Get("y")
	assert.Equal(t, float32(0), x[0])
	assert.Equal(t, float32(1), y[0])
}

func TestStep_Errors(t *testing.T) {
	params := store(t, map[param.ID][]float32{"x": {1, 2}})

	for _, optimizer := range []optim.Optimizer{optim.NewSGD(optim.SGDConfig{}), optim.NewAdam(optim.AdamConfig{})} {
		err := optimizer.Step(0.1, params, gradients(map[param.ID][]float32{"x": {1}}))
		require.Error(t, err, "length mismatch")

		other := grad.New(device.NewCPU(1))
		other.Set("x", []float32{1, 1})
		err = optimizer.Step(0.1, params, other)
		require.ErrorIs(t, err, optim.ErrDeviceMismatch)

		require.NoError(t, optimizer.Step(0.1, params, grad.New(device.NewCPU(3))), "empty gradients are a no-op")
	}
}

// TestAdam_SimpleUpdate tests Adam's first step, which moves each
// parameter by lr against the gradient sign.
func TestAdam_SimpleUpdate(t *testing.T) {
	params := store(t, map[param.ID][]float32{"x": {1.0, -1.0}})
	optimizer := optim.NewAdam(optim.AdamConfig{})

	require.NoError(t, optimizer.Step(0.01, params, gradients(map[param.ID][]float32{"x": {0.5, -2.0}})))

	x, _ := params.Get("x")
	assert.InDelta(t, 0.99, x[0], 1e-5)
	assert.InDelta(t, -0.99, x[1], 1e-5)
	assert.Equal(t, 1, optimizer.Timestep())
}

func TestAdam_Convergence(t *testing.T) {
	// Minimize f(x) = (x - 3)^2.
	params := store(t, map[param.ID][]float32{"x": {0}})
	optimizer := optim.NewAdam(optim.AdamConfig{})

	for i := 0; i < 2000; i++ {
		x, _ := params.Get("x")
		g := gradients(map[param.ID][]float32{"x": {2 * (x[0] - 3)}})
		require.NoError(t, optimizer.Step(0.05, params, g))
	}

	x, _ := params.Get("x")
	if math.Abs(float64(x[0]-3)) > 0.1 {
		t.Errorf("Adam did not converge: x = %f", x[0])
	}
}

func TestAdam_StateDictRoundTrip(t *testing.T) {
	params := store(t, map[param.ID][]float32{"x": {1}})
	a := optim.NewAdam(optim.AdamConfig{})
	require.NoError(t, a.Step(0.1, params, gradients(map[param.ID][]float32{"x": {1}})))

	b := optim.NewAdam(optim.AdamConfig{})
	require.NoError(t, b.LoadStateDict(a.StateDict()))
	assert.Equal(t, a.StateDict(), b.StateDict())
	assert.Equal(t, 1, b.Timestep())

	require.Error(t, b.LoadStateDict(map[string][]float32{}))
}

func TestAdam_LargeTimestepSurvivesExport(t *testing.T) {
	const steps = 1<<24 + 3
	a := optim.NewAdam(optim.AdamConfig{})
	require.NoError(t, a.LoadStateDict(map[string][]float32{"t": {1, 3}}))
	assert.Equal(t, steps, a.Timestep())
	assert.Equal(t, []float32{1, 3}, a.StateDict()["t"])

	require.NoError(t, a.LoadStateDict(map[string][]float32{"t": {7}}))
	assert.Equal(t, 7, a.Timestep())
}

func TestSGD_LoadStateDict(t *testing.T) {
	s := optim.NewSGD(optim.SGDConfig{Momentum: 0.5})
	require.NoError(t, s.LoadStateDict(map[string][]float32{"velocity.x": {2}, "other": {1}}))
	assert.Equal(t, map[string][]float32{"velocity.x": {2}}, s.StateDict())

	plain := optim.NewSGD(optim.SGDConfig{})
	require.NoError(t, plain.LoadStateDict(map[string][]float32{"velocity.x": {2}}))
	assert.Empty(t, plain.StateDict())
}

func TestFromConfig(t *testing.T) {
	o, err := optim.FromConfig(optim.Config{Name: "adam"})
	require.NoError(t, err)
	assert.IsType(t, &optim.Adam{}, o)

	o, err = optim.FromConfig(optim.Config{})
	require.NoError(t, err)
	assert.IsType(t, &optim.SGD{}, o)

	_, err = optim.FromConfig(optim.Config{Name: "lbfgs"})
	assert.Error(t, err)
}
