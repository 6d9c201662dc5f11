package train

import (
	"github.com/born-ml/born-train/internal/data"
	"github.com/born-ml/born-train/internal/device"
	"github.com/born-ml/born-train/internal/parallel"
)

// MultiDeviceTrainStep runs one training step per device concurrently.
type MultiDeviceTrainStep[TI, TO any] struct {
	devices []device.Device
}

// NewMultiDeviceTrainStep creates a dispatcher over devices. Iterators
// passed to Step are matched to devices by position.
func NewMultiDeviceTrainStep[TI, TO any](devices []device.Device) *MultiDeviceTrainStep[TI, TO] {
	return &MultiDeviceTrainStep[TI, TO]{devices: devices}
}

// Step pulls one item from every iterator, runs the model on a replica per
// device and waits for all of them. Outputs are returned in device order
// together with the summed progress of all iterators.
//
// If any iterator is exhausted, no step runs and Step returns no outputs:
// an iteration either has one item for every device or is dropped. Items
// already pulled from the other iterators for that iteration are discarded.
func (s *MultiDeviceTrainStep[TI, TO]) Step(iterators []data.Iterator[TI], model Model[TI, TO]) ([]TrainOutput[TO], data.Progress, error) {
	items := make([]TI, len(iterators))
	exhausted := false
	for i, it := range iterators {
		item, ok := it.Next()
		if !ok {
			exhausted = true
			continue
		}
		items[i] = item
	}

	var progress data.Progress
	for _, it := range iterators {
		progress = progress.Add(it.Progress())
	}
	if exhausted {
		return nil, progress, nil
	}

	// Replicas are taken on the control goroutine so the workers never
	// touch the shared model.
	replicas := make([]Model[TI, TO], len(iterators))
	for i := range replicas {
		replicas[i] = model.Fork(s.devices[i])
	}

	outputs := make([]TrainOutput[TO], len(iterators))
	err := parallel.Fork(len(iterators), func(i int) error {
		out, err := replicas[i].TrainStep(items[i])
		if err != nil {
			return &DeviceError{Device: s.devices[i], Err: err}
		}
		outputs[i] = out
		return nil
	})
	if err != nil {
		return nil, progress, err
	}
	return outputs, progress, nil
}
