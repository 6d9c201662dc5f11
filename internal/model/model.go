// Package model contains small reference models that implement the
// training contracts of package train.
//
// The models compute their own gradients analytically; they exist so the
// epoch engine, the optimizers and the CLI can be exercised end to end.
package model

import (
	"fmt"

	"github.com/born-ml/born-train/internal/device"
	"github.com/born-ml/born-train/internal/grad"
	"github.com/born-ml/born-train/internal/optim"
	"github.com/born-ml/born-train/internal/param"
)

// RegressionOutput is the result of one regression step.
type RegressionOutput struct {
	MSE  float64
	Size int
}

// Loss returns the mean squared error of the batch.
func (o RegressionOutput) Loss() float64 {
	return o.MSE
}

// ClassificationOutput is the result of one classification step.
type ClassificationOutput struct {
	CrossEntropy float64
	Correct      int
	Total        int
}

// Loss returns the mean cross-entropy of the item.
func (o ClassificationOutput) Loss() float64 {
	return o.CrossEntropy
}

// Accuracy returns the number of correct predictions out of Total.
func (o ClassificationOutput) Accuracy() (correct, total int) {
	return o.Correct, o.Total
}

// optimize applies grads to params through opt.
func optimize(opt optim.Optimizer, lr float64, params *param.Store, grads *grad.Gradients) error {
	if err := opt.Step(lr, params, grads); err != nil {
		return fmt.Errorf("model: optimizer step: %w", err)
	}
	return nil
}

// newStore is a helper for constructors that register parameters they own.
func newStore(d device.Device, params map[param.ID][]float32, order []param.ID) *param.Store {
	s := param.NewStore(d)
	for _, id := range order {
		if err := s.Add(id, params[id]); err != nil {
			panic(err)
		}
	}
	return s
}
