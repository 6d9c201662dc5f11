// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim

import (
	"github.com/born-ml/born-train/internal/optim"
)

// Optimizer updates parameters from gradients.
type Optimizer = optim.Optimizer

// Config selects and parameterizes an optimizer.
type Config = optim.Config

// ErrDeviceMismatch is returned when gradients live on another device than
// the parameters.
var ErrDeviceMismatch = optim.ErrDeviceMismatch

// FromConfig builds the optimizer described by cfg.
func FromConfig(cfg Config) (Optimizer, error) {
	return optim.FromConfig(cfg)
}

// SGD represents the SGD optimizer with optional momentum.
type SGD = optim.SGD

// SGDConfig contains configuration for SGD optimizer.
type SGDConfig = optim.SGDConfig

// NewSGD creates a new SGD optimizer.
//
// Example:
//
//	opt := optim.NewSGD(optim.SGDConfig{Momentum: 0.9})
func NewSGD(config SGDConfig) *SGD {
	return optim.NewSGD(config)
}

// Adam represents the Adam optimizer.
type Adam = optim.Adam

// AdamConfig contains configuration for Adam optimizer.
type AdamConfig = optim.AdamConfig

// NewAdam creates a new Adam optimizer. Zero fields take the defaults
// betas (0.9, 0.999) and eps 1e-8.
func NewAdam(config AdamConfig) *Adam {
	return optim.NewAdam(config)
}
