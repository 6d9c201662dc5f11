package train

import (
	"errors"
	"fmt"

	"github.com/born-ml/born-train/internal/device"
)

// Configuration errors, reported before any item is processed.
var (
	ErrNoDevices           = errors.New("train: at least one device is required")
	ErrNoDataLoader        = errors.New("train: no data loader")
	ErrLoaderMismatch      = errors.New("train: data loader count does not match device count")
	ErrInvalidAccumulation = errors.New("train: gradient accumulation must not be negative")
	ErrNoValidStep         = errors.New("train: model does not implement ValidStep")
)

// StepError reports a failure while processing an item. The epoch that
// produced it was aborted and emitted no end-of-epoch event.
type StepError struct {
	Op        string // "train step", "valid step" or "optimize"
	Epoch     int
	Iteration int // Iteration of the failed item, or of the first item of a multi-device batch.
	Err       error
}

// Error implements the error interface.
func (e *StepError) Error() string {
	return fmt.Sprintf("train: %s failed at epoch %d iteration %d: %v", e.Op, e.Epoch, e.Iteration, e.Err)
}

// Unwrap returns the underlying error.
func (e *StepError) Unwrap() error {
	return e.Err
}

// DeviceError attributes a multi-device step failure to its device.
type DeviceError struct {
	Device device.Device
	Err    error
}

// Error implements the error interface.
func (e *DeviceError) Error() string {
	return fmt.Sprintf("device %s: %v", e.Device, e.Err)
}

// Unwrap returns the underlying error.
func (e *DeviceError) Unwrap() error {
	return e.Err
}
