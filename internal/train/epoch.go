package train

import (
	"context"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/trace"

	"github.com/born-ml/born-train/internal/data"
	"github.com/born-ml/born-train/internal/device"
	"github.com/born-ml/born-train/internal/grad"
	"github.com/born-ml/born-train/internal/optim"
	"github.com/born-ml/born-train/internal/schedule"
)

// ValidEpoch is one validation pass.
type ValidEpoch[VI, VO any] struct {
	loader     data.DataLoader[VI]
	epoch      int
	epochTotal int
	log        logr.Logger
}

// NewValidEpoch creates a validation epoch over loader.
func NewValidEpoch[VI, VO any](loader data.DataLoader[VI], epoch, epochTotal int, log logr.Logger) *ValidEpoch[VI, VO] {
	return &ValidEpoch[VI, VO]{
		loader:     loader,
		epoch:      epoch,
		epochTotal: epochTotal,
		log:        log,
	}
}

// Run validates model over one pass of the loader.
//
// Every item is reported as a ProcessedItem event; an EndEpoch event follows
// the last one, whether the loader was exhausted or the interrupter was
// raised. A step failure aborts the pass without an EndEpoch event.
func (e *ValidEpoch[VI, VO]) Run(model ValidStep[VI, VO], processor ValidProcessor[VO], interrupter *Interrupter) error {
	if e.loader == nil {
		return ErrNoDataLoader
	}
	e.log.Info("Executing validation epoch", "epoch", e.epoch)

	iterator := e.loader.Iter()
	iteration := 0

	for {
		item, ok := iterator.Next()
		if !ok {
			break
		}
		progress := iterator.Progress()
		iteration++

		out, err := model.ValidStep(item)
		if err != nil {
			return &StepError{Op: "valid step", Epoch: e.epoch, Iteration: iteration, Err: err}
		}

		processor.ProcessValid(ProcessedItem(NewLearnerItem(out, progress, e.epoch, e.epochTotal, iteration, nil)))

		if interrupter.ShouldStop() {
			e.log.Info("Validation interrupted", "epoch", e.epoch, "iteration", iteration)
			break
		}
	}

	processor.ProcessValid(EndEpoch[VO](e.epoch))
	return nil
}

// TrainEpochConfig configures a TrainEpoch.
type TrainEpochConfig struct {
	Epoch      int // Index of the next epoch to run, starting at 1.
	EpochTotal int
	// GradAccumulation is the number of items whose gradients are summed
	// into one optimizer update. Zero disables accumulation.
	GradAccumulation int
	Logger           logr.Logger
	// Tracer receives one span per run and per item phase. Nil disables
	// tracing.
	Tracer trace.Tracer
}

// TrainEpoch runs training passes. The epoch index advances by one after
// every completed or interrupted run.
type TrainEpoch[TI, TO any] struct {
	loaders          []data.DataLoader[TI]
	epoch            int
	epochTotal       int
	gradAccumulation int
	log              logr.Logger
	tracer           trace.Tracer
}

// NewTrainEpoch creates a training epoch. Run uses the first loader;
// RunMultiDevice uses one loader per device.
func NewTrainEpoch[TI, TO any](loaders []data.DataLoader[TI], cfg TrainEpochConfig) *TrainEpoch[TI, TO] {
	return &TrainEpoch[TI, TO]{
		loaders:          loaders,
		epoch:            max(cfg.Epoch, 1),
		epochTotal:       cfg.EpochTotal,
		gradAccumulation: cfg.GradAccumulation,
		log:              cfg.Logger,
		tracer:           tracerOrNoop(cfg.Tracer),
	}
}

// Epoch returns the index of the next epoch to run.
func (e *TrainEpoch[TI, TO]) Epoch() int {
	return e.epoch
}

// Run trains model over one pass of the first loader and returns the
// updated model and optimizer.
//
// On a step or optimizer failure the partially trained model and the
// optimizer are returned with the error; no EndEpoch event is emitted and
// the epoch index does not advance.
func (e *TrainEpoch[TI, TO]) Run(
	model Model[TI, TO],
	opt optim.Optimizer,
	scheduler schedule.LRScheduler,
	processor TrainProcessor[TO],
	interrupter *Interrupter,
) (Model[TI, TO], optim.Optimizer, error) {
	ctx, span := e.startEpochSpan(1)
	model, opt, err := e.run(ctx, model, opt, scheduler, processor, interrupter)
	endSpan(span, err)
	return model, opt, err
}

func (e *TrainEpoch[TI, TO]) run(
	ctx context.Context,
	model Model[TI, TO],
	opt optim.Optimizer,
	scheduler schedule.LRScheduler,
	processor TrainProcessor[TO],
	interrupter *Interrupter,
) (Model[TI, TO], optim.Optimizer, error) {
	if len(e.loaders) == 0 {
		return model, opt, ErrNoDataLoader
	}
	if e.gradAccumulation < 0 {
		return model, opt, ErrInvalidAccumulation
	}
	e.log.Info("Executing training epoch", "epoch", e.epoch)

	iterator := e.loaders[0].Iter()
	iteration := 0
	accumulator := grad.NewAccumulator()
	accumulationCurrent := 0

	for {
		item, ok := iterator.Next()
		if !ok {
			break
		}
		iteration++
		lr := scheduler.Step()
		e.log.V(2).Info("Iteration", "epoch", e.epoch, "iteration", iteration, "lr", lr)

		progress := iterator.Progress()
		span := e.span(ctx, SpanTrainStep, iteration)
		out, err := model.TrainStep(item)
		endSpan(span, err)
		if err != nil {
			return model, opt, &StepError{Op: "train step", Epoch: e.epoch, Iteration: iteration, Err: err}
		}

		grads := out.Grads
		flush := true
		if e.gradAccumulation > 0 {
			span := e.span(ctx, SpanAccumulate, iteration)
			accumulator.Accumulate(out.Grads)
			accumulationCurrent++
			flush = accumulationCurrent >= e.gradAccumulation
			if flush {
				grads = accumulator.Grads()
				accumulationCurrent = 0
			}
			span.End()
		}
		if flush {
			span := e.span(ctx, SpanOptimize, iteration)
			model, err = model.Optimize(opt, lr, grads)
			endSpan(span, err)
			if err != nil {
				return model, opt, &StepError{Op: "optimize", Epoch: e.epoch, Iteration: iteration, Err: err}
			}
		}

		span = e.span(ctx, SpanProcess, iteration)
		processor.ProcessTrain(ProcessedItem(NewLearnerItem(out.Item, progress, e.epoch, e.epochTotal, iteration, &lr)))
		span.End()

		if interrupter.ShouldStop() {
			e.log.Info("Training interrupted", "epoch", e.epoch, "iteration", iteration)
			break
		}
	}
	if accumulationCurrent > 0 {
		e.log.V(1).Info("Dropping partial accumulation window", "epoch", e.epoch, "items", accumulationCurrent)
	}

	processor.ProcessTrain(EndEpoch[TO](e.epoch))
	e.epoch++

	return model, opt, nil
}

// RunMultiDevice trains model over one pass of every loader, one loader per
// device, and returns the updated model and optimizer.
//
// Each iteration pulls one item per device and runs the steps concurrently
// on replicas. The results are then processed one by one in device order
// exactly as Run processes single items: each gets its own iteration
// number, learning rate and event, and the interrupter is polled after
// each. Gradients are moved to the first device before accumulation, and
// the optimizer runs every GradAccumulation×len(devices) items (every
// len(devices) items without accumulation).
//
// The pass ends as soon as any loader is exhausted; the items pulled for
// that incomplete iteration are not processed.
func (e *TrainEpoch[TI, TO]) RunMultiDevice(
	model Model[TI, TO],
	opt optim.Optimizer,
	scheduler schedule.LRScheduler,
	processor TrainProcessor[TO],
	devices []device.Device,
	interrupter *Interrupter,
) (Model[TI, TO], optim.Optimizer, error) {
	ctx, span := e.startEpochSpan(len(devices))
	model, opt, err := e.runMultiDevice(ctx, model, opt, scheduler, processor, devices, interrupter)
	endSpan(span, err)
	return model, opt, err
}

func (e *TrainEpoch[TI, TO]) runMultiDevice(
	ctx context.Context,
	model Model[TI, TO],
	opt optim.Optimizer,
	scheduler schedule.LRScheduler,
	processor TrainProcessor[TO],
	devices []device.Device,
	interrupter *Interrupter,
) (Model[TI, TO], optim.Optimizer, error) {
	if len(devices) == 0 {
		return model, opt, ErrNoDevices
	}
	if len(e.loaders) != len(devices) {
		return model, opt, ErrLoaderMismatch
	}
	if e.gradAccumulation < 0 {
		return model, opt, ErrInvalidAccumulation
	}
	e.log.Info("Executing training epoch", "epoch", e.epoch, "devices", devices)

	iterators := make([]data.Iterator[TI], len(e.loaders))
	for i, loader := range e.loaders {
		iterators[i] = loader.Iter()
	}
	iteration := 0
	accumulator := grad.NewAccumulator()
	accumulationCurrent := 0

	accumulation := max(e.gradAccumulation, 1) * len(devices)
	step := NewMultiDeviceTrainStep[TI, TO](devices)
	primary := device.Primary(devices)
	interrupted := false

	for !interrupted {
		span := e.span(ctx, SpanTrainStep, iteration+1)
		outputs, progress, err := step.Step(iterators, model)
		endSpan(span, err)
		if err != nil {
			return model, opt, &StepError{Op: "train step", Epoch: e.epoch, Iteration: iteration + 1, Err: err}
		}
		if len(outputs) == 0 {
			break
		}

		for _, out := range outputs {
			iteration++
			lr := scheduler.Step()
			e.log.V(2).Info("Iteration", "epoch", e.epoch, "iteration", iteration, "lr", lr)

			span := e.span(ctx, SpanAccumulate, iteration)
			if out.Grads != nil {
				accumulator.Accumulate(out.Grads.ToDevice(primary))
			}
			accumulationCurrent++
			span.End()

			if accumulationCurrent >= accumulation {
				span := e.span(ctx, SpanOptimize, iteration)
				model, err = model.Optimize(opt, lr, accumulator.Grads())
				endSpan(span, err)
				if err != nil {
					return model, opt, &StepError{Op: "optimize", Epoch: e.epoch, Iteration: iteration, Err: err}
				}
				accumulationCurrent = 0
			}

			span = e.span(ctx, SpanProcess, iteration)
			processor.ProcessTrain(ProcessedItem(NewLearnerItem(out.Item, progress, e.epoch, e.epochTotal, iteration, &lr)))
			span.End()

			if interrupter.ShouldStop() {
				e.log.Info("Training interrupted", "epoch", e.epoch, "iteration", iteration)
				interrupted = true
				break
			}
		}
	}
	if accumulationCurrent > 0 {
		e.log.V(1).Info("Dropping partial accumulation window", "epoch", e.epoch, "items", accumulationCurrent)
	}

	processor.ProcessTrain(EndEpoch[TO](e.epoch))
	e.epoch++

	return model, opt, nil
}
