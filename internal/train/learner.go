package train

import (
	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/trace"

	"github.com/born-ml/born-train/internal/data"
	"github.com/born-ml/born-train/internal/device"
	"github.com/born-ml/born-train/internal/optim"
	"github.com/born-ml/born-train/internal/schedule"
)

// LearnerConfig configures a Learner.
type LearnerConfig struct {
	EpochTotal       int
	GradAccumulation int
	// StartEpoch is the first epoch to run, e.g. one past a restored
	// checkpoint. Zero starts at 1.
	StartEpoch int
	// Devices used for training. More than one device selects the
	// multi-device runner and requires one training loader per device.
	Devices []device.Device
	Logger  logr.Logger
	Tracer  trace.Tracer // Nil disables tracing.
}

// EpochHook is called after each epoch that completed training and
// validation, typically to write a checkpoint. Returning an error stops Fit.
type EpochHook[TI, TO any] func(epoch int, model Model[TI, TO], opt optim.Optimizer) error

// Learner drives training and validation epochs in turn.
type Learner[TI, TO, VI, VO any] struct {
	cfg         LearnerConfig
	train       []data.DataLoader[TI]
	valid       data.DataLoader[VI]
	processor   EventProcessor[TO, VO]
	interrupter *Interrupter
	onEpochEnd  EpochHook[TI, TO]
}

// NewLearner creates a learner. valid may be nil to skip validation; when
// set, the model must implement ValidStep[VI, VO].
func NewLearner[TI, TO, VI, VO any](
	cfg LearnerConfig,
	train []data.DataLoader[TI],
	valid data.DataLoader[VI],
	processor EventProcessor[TO, VO],
	interrupter *Interrupter,
) *Learner[TI, TO, VI, VO] {
	return &Learner[TI, TO, VI, VO]{
		cfg:         cfg,
		train:       train,
		valid:       valid,
		processor:   processor,
		interrupter: interrupter,
	}
}

// OnEpochEnd registers a hook run after every finished epoch.
func (l *Learner[TI, TO, VI, VO]) OnEpochEnd(hook EpochHook[TI, TO]) {
	l.onEpochEnd = hook
}

// Fit runs epochs StartEpoch..EpochTotal and returns the trained model and optimizer.
// Training stops early, without validating, after an interrupted training
// epoch.
func (l *Learner[TI, TO, VI, VO]) Fit(
	model Model[TI, TO],
	opt optim.Optimizer,
	scheduler schedule.LRScheduler,
) (Model[TI, TO], optim.Optimizer, error) {
	multiDevice := len(l.cfg.Devices) > 1
	if multiDevice && len(l.train) != len(l.cfg.Devices) {
		return model, opt, ErrLoaderMismatch
	}

	epochs := NewTrainEpoch[TI, TO](l.train, TrainEpochConfig{
		Epoch:            l.cfg.StartEpoch,
		EpochTotal:       l.cfg.EpochTotal,
		GradAccumulation: l.cfg.GradAccumulation,
		Logger:           l.cfg.Logger,
		Tracer:           l.cfg.Tracer,
	})

	for epochs.Epoch() <= l.cfg.EpochTotal {
		epoch := epochs.Epoch()

		var err error
		if multiDevice {
			model, opt, err = epochs.RunMultiDevice(model, opt, scheduler, l.processor, l.cfg.Devices, l.interrupter)
		} else {
			model, opt, err = epochs.Run(model, opt, scheduler, l.processor, l.interrupter)
		}
		if err != nil {
			return model, opt, err
		}
		if l.interrupter.ShouldStop() {
			break
		}

		if l.valid != nil {
			step, ok := model.(ValidStep[VI, VO])
			if !ok {
				return model, opt, ErrNoValidStep
			}
			err = NewValidEpoch[VI, VO](l.valid, epoch, l.cfg.EpochTotal, l.cfg.Logger).Run(step, l.processor, l.interrupter)
			if err != nil {
				return model, opt, err
			}
		}

		if l.onEpochEnd != nil {
			if err := l.onEpochEnd(epoch, model, opt); err != nil {
				return model, opt, err
			}
		}
		if l.interrupter.ShouldStop() {
			break
		}
	}

	return model, opt, nil
}
