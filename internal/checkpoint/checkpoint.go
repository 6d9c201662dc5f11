package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-logr/logr"

	"github.com/born-ml/born-train/internal/optim"
	"github.com/born-ml/born-train/internal/param"
	"github.com/born-ml/born-train/internal/train"
)

// Checkpoint is the training state after a finished epoch.
type Checkpoint struct {
	Model          string
	Optimizer      string
	Epoch          int
	Params         *param.Store
	OptimizerState map[string][]float32
	Metadata       map[string]string
}

// ParamsOwner is implemented by models that expose their parameter store.
type ParamsOwner interface {
	Params() *param.Store
}

// Restore copies the saved parameters into params and loads the optimizer
// state into opt. params must hold exactly the saved identities with the
// same sizes. opt may be nil; otherwise it must be of the optimizer type
// the checkpoint was saved with.
func (c *Checkpoint) Restore(params *param.Store, opt optim.Optimizer) error {
	if opt != nil && c.Optimizer != "" {
		if name := optimizerName(opt); name != c.Optimizer {
			return fmt.Errorf("checkpoint: %w: saved with %q, restoring into %q", ErrOptimizerMismatch, c.Optimizer, name)
		}
	}
	if params.Len() != c.Params.Len() {
		return fmt.Errorf("checkpoint: has %d parameters, model has %d", c.Params.Len(), params.Len())
	}
	for _, id := range c.Params.IDs() {
		src, _ := c.Params.Get(id)
		dst, ok := params.Get(id)
		if !ok {
			return fmt.Errorf("checkpoint: model has no parameter %q", id)
		}
		if len(dst) != len(src) {
			return fmt.Errorf("checkpoint: parameter %q has %d values, model expects %d", id, len(src), len(dst))
		}
		copy(dst, src)
	}
	if opt != nil && len(c.OptimizerState) > 0 {
		if err := opt.LoadStateDict(c.OptimizerState); err != nil {
			return fmt.Errorf("checkpoint: restore optimizer: %w", err)
		}
	}
	return nil
}

// Path returns the file name used for epoch inside dir.
func Path(dir string, epoch int) string {
	return filepath.Join(dir, fmt.Sprintf("epoch-%04d.born", epoch))
}

// EpochHook returns a learner hook that saves a checkpoint into dir after
// every finished epoch. The model must implement ParamsOwner.
func EpochHook[TI, TO any](dir, model string, log logr.Logger) train.EpochHook[TI, TO] {
	return func(epoch int, m train.Model[TI, TO], opt optim.Optimizer) error {
		owner, ok := m.(ParamsOwner)
		if !ok {
			return ErrNotParamsOwner
		}
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("checkpoint: %w", err)
		}

		path := Path(dir, epoch)
		err := Save(path, &Checkpoint{
			Model:          model,
			Optimizer:      optimizerName(opt),
			Epoch:          epoch,
			Params:         owner.Params(),
			OptimizerState: opt.StateDict(),
		})
		if err != nil {
			return err
		}
		log.Info("Saved checkpoint", "epoch", epoch, "path", path)
		return nil
	}
}

func optimizerName(opt optim.Optimizer) string {
	switch opt.(type) {
	case *optim.SGD:
		return "sgd"
	case *optim.Adam:
		return "adam"
	default:
		return fmt.Sprintf("%T", opt)
	}
}
