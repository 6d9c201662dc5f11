// Package schedule implements learning-rate schedulers.
//
// A scheduler is stepped exactly once per training iteration, before the
// model step runs; the value returned by Step labels that iteration and is
// the rate used by any optimizer update made during it.
package schedule

import (
	"fmt"
	"math"
)

// LRScheduler produces the learning rate of each iteration.
type LRScheduler interface {
	// Step advances the schedule and returns the rate for the current iteration.
	Step() float64
}

// Constant always returns the same rate.
type Constant struct {
	LR float64
}

// Step returns the constant rate.
func (c Constant) Step() float64 {
	return c.LR
}

// Linear interpolates from Initial to Final over NumIters steps, then holds Final.
type Linear struct {
	initial, final float64
	numIters       int
	step           int
}

// NewLinear creates a linear scheduler.
func NewLinear(initial, final float64, numIters int) (*Linear, error) {
	if numIters <= 0 {
		return nil, fmt.Errorf("schedule: linear requires num_iters > 0, got %d", numIters)
	}
	return &Linear{initial: initial, final: final, numIters: numIters}, nil
}

// Step returns the interpolated rate.
func (l *Linear) Step() float64 {
	l.step++
	if l.step >= l.numIters {
		return l.final
	}
	frac := float64(l.step-1) / float64(l.numIters-1)
	return l.initial + (l.final-l.initial)*frac
}

// Exponential multiplies the rate by Gamma after every step.
type Exponential struct {
	lr    float64
	gamma float64
	first bool
}

// NewExponential creates an exponential decay scheduler.
func NewExponential(initial, gamma float64) (*Exponential, error) {
	if gamma <= 0 || gamma > 1 {
		return nil, fmt.Errorf("schedule: exponential gamma must be in (0, 1], got %g", gamma)
	}
	return &Exponential{lr: initial, gamma: gamma, first: true}, nil
}

// Step returns initial * gamma^(n-1) for the n-th call.
func (e *Exponential) Step() float64 {
	if e.first {
		e.first = false
		return e.lr
	}
	e.lr *= e.gamma
	return e.lr
}

// Cosine anneals from Max to Min over NumIters steps after an optional
// linear warmup from 0 to Max.
type Cosine struct {
	max, min float64
	warmup   int
	numIters int
	step     int
}

// NewCosine creates a cosine annealing scheduler.
func NewCosine(maxLR, minLR float64, warmup, numIters int) (*Cosine, error) {
	if numIters <= 0 {
		return nil, fmt.Errorf("schedule: cosine requires num_iters > 0, got %d", numIters)
	}
	if warmup < 0 || warmup >= numIters {
		return nil, fmt.Errorf("schedule: cosine warmup %d must be in [0, %d)", warmup, numIters)
	}
	return &Cosine{max: maxLR, min: minLR, warmup: warmup, numIters: numIters}, nil
}

// Step returns the warmup or annealed rate.
func (c *Cosine) Step() float64 {
	c.step++
	if c.step <= c.warmup {
		return c.max * float64(c.step) / float64(c.warmup)
	}
	if c.step >= c.numIters {
		return c.min
	}
	progress := float64(c.step-c.warmup-1) / float64(c.numIters-c.warmup-1)
	cosine := 0.5 * (1 + math.Cos(math.Pi*progress))
	return c.min + (c.max-c.min)*cosine
}

// Noam is the transformer schedule: linear warmup then inverse square root
// decay, scaled by ModelSize^-0.5.
type Noam struct {
	factor    float64
	modelSize int
	warmup    int
	step      int
}

// NewNoam creates a Noam scheduler.
func NewNoam(factor float64, modelSize, warmup int) (*Noam, error) {
	if modelSize <= 0 || warmup <= 0 {
		return nil, fmt.Errorf("schedule: noam requires positive model size and warmup, got %d and %d", modelSize, warmup)
	}
	return &Noam{factor: factor, modelSize: modelSize, warmup: warmup}, nil
}

// Step returns factor * d^-0.5 * min(n^-0.5, n * warmup^-1.5).
func (n *Noam) Step() float64 {
	n.step++
	s := float64(n.step)
	return n.factor * math.Pow(float64(n.modelSize), -0.5) *
		math.Min(math.Pow(s, -0.5), s*math.Pow(float64(n.warmup), -1.5))
}
