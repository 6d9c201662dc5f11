package data

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain[T any](it Iterator[T]) []T {
	var out []T
	for {
		item, ok := it.Next()
		if !ok {
			return out
		}
		out = append(out, item)
	}
}

func TestSliceLoader_Restartable(t *testing.T) {
	loader := NewSliceLoader([]int{1, 2, 3})
	assert.Equal(t, 3, loader.NumItems())

	it := loader.Iter()
	assert.Equal(t, Progress{ItemsProcessed: 0, ItemsTotal: 3}, it.Progress())
	first, _ := it.Next()
	assert.Equal(t, 1, first)
	assert.Equal(t, Progress{ItemsProcessed: 1, ItemsTotal: 3}, it.Progress())
	assert.Equal(t, []int{2, 3}, drain(it))

	_, ok := it.Next()
	assert.False(t, ok, "an exhausted iterator stays exhausted")

	assert.Equal(t, []int{1, 2, 3}, drain(loader.Iter()), "a new iterator starts over")
}

func TestShuffledLoader(t *testing.T) {
	items := make([]int, 50)
	for i := range items {
		items[i] = i
	}

	a := drain(NewShuffledLoader(items, 7).Iter())
	b := drain(NewShuffledLoader(items, 7).Iter())
	assert.Equal(t, a, b, "same seed, same order")
	assert.ElementsMatch(t, items, a)

	loader := NewShuffledLoader(items, 7)
	assert.NotEqual(t, drain(loader.Iter()), drain(loader.Iter()), "epochs reshuffle")
}

func TestProgress(t *testing.T) {
	assert.Equal(t, 0.0, Progress{}.Fraction())
	assert.InDelta(t, 0.25, Progress{ItemsProcessed: 1, ItemsTotal: 4}.Fraction(), 1e-12)
	assert.Equal(t,
		Progress{ItemsProcessed: 3, ItemsTotal: 10},
		Progress{ItemsProcessed: 1, ItemsTotal: 4}.Add(Progress{ItemsProcessed: 2, ItemsTotal: 6}))
}

func TestBatchLoader(t *testing.T) {
	loader := NewBatchLoader[int](NewSliceLoader([]int{1, 2, 3, 4, 5}), 2)
	assert.Equal(t, 3, loader.NumItems())

	it := loader.Iter()
	batches := drain(it)
	require.Len(t, batches, 3)
	assert.Equal(t, []int{1, 2}, batches[0].Items)
	assert.Equal(t, []int{5}, batches[2].Items)
	assert.Equal(t, 1, batches[2].Len())
	assert.Equal(t, Progress{ItemsProcessed: 3, ItemsTotal: 3}, it.Progress())
}

func TestSplit(t *testing.T) {
	shards, err := Split[int](NewSliceLoader([]int{1, 2, 3, 4, 5, 6, 7}), 3)
	require.NoError(t, err)
	require.Len(t, shards, 3)

	assert.Equal(t, []int{1, 2, 3}, drain(shards[0].Iter()))
	assert.Equal(t, []int{4, 5}, drain(shards[1].Iter()))
	assert.Equal(t, []int{6, 7}, drain(shards[2].Iter()))

	_, err = Split[int](NewSliceLoader([]int{1}), 0)
	assert.Error(t, err)
}

func TestSplit_ReshufflesEachEpoch(t *testing.T) {
	items := make([]int, 20)
	for i := range items {
		items[i] = i
	}
	shards, err := Split[int](NewShuffledLoader(items, 7), 2)
	require.NoError(t, err)
	assert.Equal(t, 10, shards[0].NumItems())
	assert.Equal(t, 10, shards[1].NumItems())

	epoch := func() []int {
		first, second := shards[0].Iter(), shards[1].Iter()
		return append(drain(first), drain(second)...)
	}
	first, second := epoch(), epoch()

	assert.ElementsMatch(t, items, first)
	assert.ElementsMatch(t, items, second)
	assert.NotEqual(t, first, second)
}

type fakeEncoder struct {
	tokens []int32
	err    error
}

func (f fakeEncoder) Encode(string) ([]int32, error) {
	out := make([]int32, len(f.tokens))
	copy(out, f.tokens)
	return out, f.err
}

func TestTokenWindows(t *testing.T) {
	enc := fakeEncoder{tokens: []int32{10, 11, 12, 13, 14, 15, 16}}

	windows, err := TokenWindows(enc, "ignored", TextConfig{WindowSize: 3, VocabSize: 5})
	require.NoError(t, err)
	require.Len(t, windows, 2)
	assert.Equal(t, []int32{0, 1, 2}, windows[0].Inputs)
	assert.Equal(t, []int32{1, 2, 3}, windows[0].Targets)
	assert.Equal(t, []int32{3, 4, 0}, windows[1].Inputs)
	assert.Equal(t, []int32{4, 0, 1}, windows[1].Targets)
	assert.Equal(t, 3, windows[1].Len())
}

func TestTokenWindows_Errors(t *testing.T) {
	_, err := TokenWindows(fakeEncoder{err: errors.New("bad")}, "x", TextConfig{})
	require.Error(t, err)

	_, err = TokenWindows(fakeEncoder{}, "x", TextConfig{VocabSize: -1})
	require.Error(t, err)

	loader, err := NewTextLoader(fakeEncoder{tokens: []int32{1, 2}}, "x", TextConfig{WindowSize: 4})
	require.NoError(t, err)
	assert.Equal(t, 0, loader.NumItems())
}
