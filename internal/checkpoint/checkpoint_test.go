package checkpoint

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/born-train/internal/device"
	"github.com/born-ml/born-train/internal/grad"
	"github.com/born-ml/born-train/internal/optim"
	"github.com/born-ml/born-train/internal/param"
	"github.com/born-ml/born-train/internal/train"
)

func testStore(t *testing.T) *param.Store {
	t.Helper()
	s := param.NewStore(device.NewCPU(0))
	require.NoError(t, s.Add("layer.weight", []float32{1, 2, 3, 4}))
	require.NoError(t, s.Add("layer.bias", []float32{0.5}))
	return s
}

// trainedAdam returns an Adam optimizer that has taken one step on s.
func trainedAdam(t *testing.T, s *param.Store) *optim.Adam {
	t.Helper()
	opt := optim.NewAdam(optim.AdamConfig{})
	g := grad.New(s.Device())
	g.Set("layer.weight", []float32{1, 1, 1, 1})
	g.Set("layer.bias", []float32{-1})
	require.NoError(t, opt.Step(0.01, s, g))
	return opt
}

func TestRoundTrip(t *testing.T) {
	s := testStore(t)
	opt := trainedAdam(t, s)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, &Checkpoint{
		Model:          "regression",
		Optimizer:      "adam",
		Epoch:          3,
		Params:         s,
		OptimizerState: opt.StateDict(),
		Metadata:       map[string]string{"run": "a"},
	}))
	assert.Equal(t, "BORN", buf.String()[:4])

	got, err := Read(&buf, device.NewCPU(1))
	require.NoError(t, err)

	assert.Equal(t, "regression", got.Model)
	assert.Equal(t, "adam", got.Optimizer)
	assert.Equal(t, 3, got.Epoch)
	assert.Equal(t, map[string]string{"run": "a"}, got.Metadata)
	assert.Equal(t, device.NewCPU(1), got.Params.Device())
	assert.Equal(t, s.IDs(), got.Params.IDs())
	for _, id := range s.IDs() {
		want, _ := s.Get(id)
		have, _ := got.Params.Get(id)
		assert.Equal(t, want, have, id)
	}
	assert.Equal(t, opt.StateDict(), got.OptimizerState)
}

func TestDataIsAligned(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, &Checkpoint{Model: "m", Params: testStore(t)}))
	// 5 float32 values after an aligned prefix.
	assert.Equal(t, 0, (buf.Len()-5*4)%HeaderAlignment)
}

func TestReadRejectsCorruption(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, &Checkpoint{Model: "m", Params: testStore(t)}))
	raw := buf.Bytes()

	t.Run("checksum", func(t *testing.T) {
		b := bytes.Clone(raw)
		b[len(b)-1] ^= 0xff
		_, err := Read(bytes.NewReader(b), device.NewCPU(0))
		require.ErrorIs(t, err, ErrChecksumMismatch)
	})
	t.Run("magic", func(t *testing.T) {
		b := bytes.Clone(raw)
		copy(b, "NOPE")
		_, err := Read(bytes.NewReader(b), device.NewCPU(0))
		require.ErrorIs(t, err, ErrInvalidMagic)
	})
	t.Run("version", func(t *testing.T) {
		b := bytes.Clone(raw)
		b[4] = 9
		_, err := Read(bytes.NewReader(b), device.NewCPU(0))
		require.ErrorIs(t, err, ErrUnsupportedVersion)
	})
	t.Run("truncated", func(t *testing.T) {
		_, err := Read(bytes.NewReader(raw[:len(raw)-3]), device.NewCPU(0))
		require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})
}

func TestValidateEntries(t *testing.T) {
	tests := []struct {
		name    string
		entries []EntryMeta
		kind    string
	}{
		{"overlap", []EntryMeta{{Name: "a", Group: GroupParam, Offset: 0, Size: 8}, {Name: "b", Group: GroupParam, Offset: 4, Size: 4}}, "offset_overlap"},
		{"out of bounds", []EntryMeta{{Name: "a", Group: GroupParam, Offset: 8, Size: 16}}, "out_of_bounds"},
		{"negative", []EntryMeta{{Name: "a", Group: GroupParam, Offset: -4, Size: 4}}, "negative_offset"},
		{"group", []EntryMeta{{Name: "a", Group: "misc", Size: 4}}, "invalid_group"},
		{"duplicate", []EntryMeta{{Name: "a", Group: GroupParam, Size: 4}, {Name: "a", Group: GroupParam, Offset: 4, Size: 4}}, "duplicate_entry"},
		{"size", []EntryMeta{{Name: "a", Group: GroupParam, Size: 3}}, "misaligned_size"},
		{"empty name", []EntryMeta{{Group: GroupParam, Size: 4}}, "invalid_name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEntries(tt.entries, 16)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.kind, verr.Type)
		})
	}

	ok := []EntryMeta{{Name: "a", Group: GroupParam, Size: 8}, {Name: "a", Group: GroupOptimizer, Offset: 8, Size: 8}}
	assert.NoError(t, ValidateEntries(ok, 16))
}

func TestRestore(t *testing.T) {
	saved := testStore(t)
	opt := trainedAdam(t, saved)
	ckpt := &Checkpoint{Params: saved, OptimizerState: opt.StateDict()}

	fresh := param.NewStore(device.NewCPU(0))
	require.NoError(t, fresh.Add("layer.weight", make([]float32, 4)))
	require.NoError(t, fresh.Add("layer.bias", make([]float32, 1)))
	freshOpt := optim.NewAdam(optim.AdamConfig{})

	require.NoError(t, ckpt.Restore(fresh, freshOpt))
	w, _ := fresh.Get("layer.weight")
	want, _ := saved.Get("layer.weight")
	assert.Equal(t, want, w)
	assert.Equal(t, 1, freshOpt.Timestep())

	mismatched := param.NewStore(device.NewCPU(0))
	require.NoError(t, mismatched.Add("layer.weight", make([]float32, 3)))
	require.NoError(t, mismatched.Add("layer.bias", make([]float32, 1)))
	require.Error(t, ckpt.Restore(mismatched, nil))

	missing := param.NewStore(device.NewCPU(0))
	require.NoError(t, missing.Add("layer.weight", make([]float32, 4)))
	require.Error(t, ckpt.Restore(missing, nil))
}

func TestRestore_OptimizerMismatch(t *testing.T) {
	saved := testStore(t)
	opt := trainedAdam(t, saved)
	ckpt := &Checkpoint{Optimizer: "adam", Params: saved, OptimizerState: opt.StateDict()}

	fresh := param.NewStore(device.NewCPU(0))
	require.NoError(t, fresh.Add("layer.weight", make([]float32, 4)))
	require.NoError(t, fresh.Add("layer.bias", make([]float32, 1)))

	err := ckpt.Restore(fresh, optim.NewSGD(optim.SGDConfig{}))
	require.ErrorIs(t, err, ErrOptimizerMismatch)
	w, _ := fresh.Get("layer.weight")
	assert.Equal(t, make([]float32, 4), w)

	require.NoError(t, ckpt.Restore(fresh, optim.NewAdam(optim.AdamConfig{})))
}

// bareModel implements train.Model without exposing parameters.
type bareModel struct{}

func (bareModel) TrainStep(item int) (train.TrainOutput[int], error) {
	return train.TrainOutput[int]{Item: item}, nil
}

func (m bareModel) Optimize(optim.Optimizer, float64, *grad.Gradients) (train.Model[int, int], error) {
	return m, nil
}

func (m bareModel) Fork(device.Device) train.Model[int, int] { return m }

type ownedModel struct {
	bareModel
	params *param.Store
}

func (m ownedModel) Params() *param.Store { return m.params }

func TestSaveAndEpochHook(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "runs")
	s := testStore(t)
	opt := trainedAdam(t, s)

	hook := EpochHook[int, int](dir, "toy", logr.Discard())
	require.NoError(t, hook(2, ownedModel{params: s}, opt))

	path := Path(dir, 2)
	assert.Equal(t, filepath.Join(dir, "epoch-0002.born"), path)
	got, err := Load(path, device.NewCPU(0))
	require.NoError(t, err)
	assert.Equal(t, "toy", got.Model)
	assert.Equal(t, "adam", got.Optimizer)
	assert.Equal(t, 2, got.Epoch)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files are cleaned up")

	require.ErrorIs(t, hook(3, bareModel{}, opt), ErrNotParamsOwner)
}
