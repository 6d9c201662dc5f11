package train

import (
	"github.com/born-ml/born-train/internal/device"
	"github.com/born-ml/born-train/internal/grad"
	"github.com/born-ml/born-train/internal/optim"
)

// TrainOutput is the result of one training step.
type TrainOutput[TO any] struct {
	Item  TO
	Grads *grad.Gradients
}

// ValidStep runs one validation step.
type ValidStep[VI, VO any] interface {
	ValidStep(item VI) (VO, error)
}

// Model is a trainable model as seen by a training epoch.
//
// Models are values handed from epoch to epoch: Optimize returns the
// updated model and the caller must use it in place of the receiver.
type Model[TI, TO any] interface {
	// TrainStep runs forward and backward on one item.
	TrainStep(item TI) (TrainOutput[TO], error)

	// Optimize applies grads with learning rate lr through opt.
	Optimize(opt optim.Optimizer, lr float64, grads *grad.Gradients) (Model[TI, TO], error)

	// Fork returns a replica placed on d. Replicas are read-only snapshots
	// used for one multi-device step; they are never optimized.
	Fork(d device.Device) Model[TI, TO]
}
