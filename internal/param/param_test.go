package param

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/born-train/internal/device"
)

func TestStore_AddGet(t *testing.T) {
	s := NewStore(device.NewCPU(0))
	require.NoError(t, s.Add("w", []float32{1, 2}))
	require.NoError(t, s.Add("b", []float32{3}))
	require.Error(t, s.Add("w", []float32{0}))

	w, ok := s.Get("w")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2}, w)

	_, ok = s.Get("missing")
	assert.False(t, ok)

	assert.Equal(t, []ID{"w", "b"}, s.IDs())
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 3, s.NumElements())
}

func TestStore_ToDeviceIsDeepCopy(t *testing.T) {
	s := NewStore(device.NewCPU(0))
	require.NoError(t, s.Add("w", []float32{1, 2}))

	replica := s.ToDevice(device.NewCPU(1))
	assert.Equal(t, device.NewCPU(1), replica.Device())

	w, _ := replica.Get("w")
	w[0] = 42

	orig, _ := s.Get("w")
	assert.Equal(t, float32(1), orig[0], "replica must not alias the source")
	assert.Equal(t, device.NewCPU(0), s.Clone().Device())
}

func TestSortIDs(t *testing.T) {
	ids := []ID{"c", "a", "b"}
	SortIDs(ids)
	assert.Equal(t, []ID{"a", "b", "c"}, ids)
}
