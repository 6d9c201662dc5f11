// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package train runs training and validation epochs over pluggable models,
// data loaders, optimizers and LR schedulers.
//
// # Overview
//
// A training epoch pulls items from a data loader, runs the model's
// TrainStep on each, optionally sums gradients over an accumulation window,
// asks the model to apply them through an optimizer and reports every item
// to an event processor. The multi-device runner does the same with one
// loader and one model replica per device, running the replicas
// concurrently and merging their gradients on the first device.
//
// A validation epoch runs ValidStep over every item without updating the
// model.
//
// Every run emits exactly one EndEpoch event, also when it is interrupted.
// A failed step aborts the run with a *StepError and emits no EndEpoch.
//
// # Basic Usage
//
//	learner := train.NewLearner[Batch, Output, Batch, Output](
//	    train.LearnerConfig{EpochTotal: 10, GradAccumulation: 4},
//	    []train.DataLoader[Batch]{trainLoader},
//	    validLoader,
//	    processor,
//	    train.NewInterrupter(),
//	)
//	model, opt, err := learner.Fit(model, optim.NewSGD(optim.SGDConfig{}), scheduler)
//
// # Cancellation
//
// An Interrupter is polled after every processed item. Stop may be called
// from any goroutine; StopOnDone ties it to a context:
//
//	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
//	defer stop()
//	defer interrupter.StopOnDone(ctx)()
package train
