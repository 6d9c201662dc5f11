package grad

import (
	"fmt"

	"github.com/born-ml/born-train/internal/param"
)

// Accumulator sums gradient sets until they are taken.
//
// Parameters missing from a contribution count as zero for that
// contribution. The accumulator does not count contributions; the training
// epoch owns the accumulation window.
type Accumulator struct {
	sum *Gradients
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Accumulate adds grads into the running sum. The first contribution after
// a take fixes the device of the sum.
//
// It panics if a parameter's gradient length differs from the one already
// accumulated for it.
func (a *Accumulator) Accumulate(grads *Gradients) {
	if grads == nil {
		return
	}
	if a.sum == nil {
		a.sum = grads.Clone()
		return
	}
	for id, g := range grads.values {
		acc, ok := a.sum.values[id]
		if !ok {
			c := make([]float32, len(g))
			copy(c, g)
			a.sum.values[id] = c
			continue
		}
		if len(acc) != len(g) {
			panic(fmt.Sprintf("grad: length mismatch for %q: accumulated %d, got %d", id, len(acc), len(g)))
		}
		for i, v := range g {
			acc[i] += v
		}
	}
}

// Grads returns the accumulated sum and clears the accumulator.
// An accumulator that received nothing returns an empty set on the zero device.
func (a *Accumulator) Grads() *Gradients {
	sum := a.sum
	a.sum = nil
	if sum == nil {
		return &Gradients{values: make(map[param.ID][]float32)}
	}
	return sum
}

// Empty reports whether nothing has been accumulated since the last take.
func (a *Accumulator) Empty() bool {
	return a.sum == nil
}
