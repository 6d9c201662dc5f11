// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides the optimizers applied by the training engine.
//
// # Overview
//
// This package contains:
//   - SGD: Stochastic Gradient Descent with momentum and weight decay
//   - Adam: Adaptive Moment Estimation with bias correction
//   - Optimizer interface for custom optimizers
//
// Optimizers update a parameter store in place from a set of gradients.
// Their state can be exported with StateDict and restored with
// LoadStateDict to resume training.
//
// # Basic Usage
//
//	opt := optim.NewAdam(optim.AdamConfig{Betas: [2]float32{0.9, 0.999}})
//
//	// Inside a model's Optimize method:
//	if err := opt.Step(lr, params, grads); err != nil {
//	    return m, err
//	}
//
// The learning rate is supplied on every step by the epoch runner, which
// reads it from an LR scheduler.
//
// # From configuration
//
//	opt, err := optim.FromConfig(optim.Config{Name: "sgd", Momentum: 0.9})
package optim
