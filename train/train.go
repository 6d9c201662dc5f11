// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package train

import (
	"github.com/go-logr/logr"

	"github.com/born-ml/born-train/internal/data"
	"github.com/born-ml/born-train/internal/device"
	"github.com/born-ml/born-train/internal/grad"
	"github.com/born-ml/born-train/internal/schedule"
	"github.com/born-ml/born-train/internal/train"
)

// Data

// Progress counts processed and total items of a pass.
type Progress = data.Progress

// Iterator yields the items of one pass.
type Iterator[T any] = data.Iterator[T]

// DataLoader produces a fresh Iterator for every pass.
type DataLoader[T any] = data.DataLoader[T]

// Device identifies where a model replica and its gradients live.
type Device = device.Device

// CPU returns the CPU device with the given index.
func CPU(index int) Device {
	return device.NewCPU(index)
}

// Gradients maps parameter identities to gradient values.
type Gradients = grad.Gradients

// NewGradients creates an empty gradient set on d.
func NewGradients(d Device) *Gradients {
	return grad.New(d)
}

// LRScheduler yields the learning rate for each iteration.
type LRScheduler = schedule.LRScheduler

// Model contracts

// Model is a trainable model.
type Model[TI, TO any] = train.Model[TI, TO]

// ValidStep is implemented by models that can be validated.
type ValidStep[VI, VO any] = train.ValidStep[VI, VO]

// TrainOutput is the result of one training step.
type TrainOutput[TO any] = train.TrainOutput[TO]

// Events

// LearnerItem is the record of one processed item.
type LearnerItem[T any] = train.LearnerItem[T]

// Event is delivered to processors.
type Event[T any] = train.Event[T]

// EventKind tags an Event.
type EventKind = train.EventKind

// Event kinds.
const (
	EventProcessedItem = train.EventProcessedItem
	EventEndEpoch      = train.EventEndEpoch
)

// TrainProcessor receives training events.
type TrainProcessor[T any] = train.TrainProcessor[T]

// ValidProcessor receives validation events.
type ValidProcessor[T any] = train.ValidProcessor[T]

// EventProcessor receives both training and validation events.
type EventProcessor[TO, VO any] = train.EventProcessor[TO, VO]

// Runners

// Interrupter is a cooperative stop flag.
type Interrupter = train.Interrupter

// NewInterrupter creates a lowered interrupter.
func NewInterrupter() *Interrupter {
	return train.NewInterrupter()
}

// TrainEpochConfig configures a TrainEpoch.
type TrainEpochConfig = train.TrainEpochConfig

// TracerName is the instrumentation name of the training spans.
const TracerName = train.TracerName

// TrainEpoch runs training passes.
type TrainEpoch[TI, TO any] = train.TrainEpoch[TI, TO]

// NewTrainEpoch creates a training epoch.
func NewTrainEpoch[TI, TO any](loaders []DataLoader[TI], cfg TrainEpochConfig) *TrainEpoch[TI, TO] {
	return train.NewTrainEpoch[TI, TO](loaders, cfg)
}

// ValidEpoch runs one validation pass.
type ValidEpoch[VI, VO any] = train.ValidEpoch[VI, VO]

// NewValidEpoch creates a validation epoch. The zero logr.Logger discards
// all output.
func NewValidEpoch[VI, VO any](loader DataLoader[VI], epoch, epochTotal int, log logr.Logger) *ValidEpoch[VI, VO] {
	return train.NewValidEpoch[VI, VO](loader, epoch, epochTotal, log)
}

// MultiDeviceTrainStep runs one training step per device concurrently.
type MultiDeviceTrainStep[TI, TO any] = train.MultiDeviceTrainStep[TI, TO]

// NewMultiDeviceTrainStep creates a dispatcher over devices.
func NewMultiDeviceTrainStep[TI, TO any](devices []Device) *MultiDeviceTrainStep[TI, TO] {
	return train.NewMultiDeviceTrainStep[TI, TO](devices)
}

// LearnerConfig configures a Learner.
type LearnerConfig = train.LearnerConfig

// Learner drives training and validation epochs in turn.
type Learner[TI, TO, VI, VO any] = train.Learner[TI, TO, VI, VO]

// EpochHook is called after each finished epoch.
type EpochHook[TI, TO any] = train.EpochHook[TI, TO]

// NewLearner creates a learner. valid may be nil to skip validation.
func NewLearner[TI, TO, VI, VO any](
	cfg LearnerConfig,
	trainLoaders []DataLoader[TI],
	valid DataLoader[VI],
	processor EventProcessor[TO, VO],
	interrupter *Interrupter,
) *Learner[TI, TO, VI, VO] {
	return train.NewLearner[TI, TO, VI, VO](cfg, trainLoaders, valid, processor, interrupter)
}

// Errors

// Configuration errors.
var (
	ErrNoDevices           = train.ErrNoDevices
	ErrNoDataLoader        = train.ErrNoDataLoader
	ErrLoaderMismatch      = train.ErrLoaderMismatch
	ErrInvalidAccumulation = train.ErrInvalidAccumulation
	ErrNoValidStep         = train.ErrNoValidStep
)

// StepError reports a failed step.
type StepError = train.StepError

// DeviceError reports a failure on one device of a multi-device step.
type DeviceError = train.DeviceError
