// Package metric provides event processors that turn epoch events into
// aggregated numbers, log lines and Prometheus metrics.
package metric

import (
	"time"

	"github.com/born-ml/born-train/internal/train"
)

// Split names the event channel an item came from.
type Split string

const (
	SplitTrain Split = "train"
	SplitValid Split = "valid"
)

// LossAdaptor is implemented by step outputs that carry a loss.
type LossAdaptor interface {
	Loss() float64
}

// AccuracyAdaptor is implemented by step outputs that count correct predictions.
type AccuracyAdaptor interface {
	Accuracy() (correct, total int)
}

// Window accumulates per-item statistics across one epoch.
type Window struct {
	items   int
	lossSum float64
	losses  int
	correct int
	total   int
	lastLR  float64
	started time.Time
	now     func() time.Time
}

// Record adds one processed item.
func (w *Window) Record(output any, lr *float64) {
	if w.now == nil {
		w.now = time.Now
	}
	if w.items == 0 {
		w.started = w.now()
	}
	w.items++
	if l, ok := output.(LossAdaptor); ok {
		w.lossSum += l.Loss()
		w.losses++
	}
	if a, ok := output.(AccuracyAdaptor); ok {
		c, t := a.Accuracy()
		w.correct += c
		w.total += t
	}
	if lr != nil {
		w.lastLR = *lr
	}
}

// Snapshot returns the aggregated values and resets the window.
func (w *Window) Snapshot() Snapshot {
	snap := Snapshot{Items: w.items, LastLR: w.lastLR}
	if w.losses > 0 {
		snap.MeanLoss = w.lossSum / float64(w.losses)
	}
	if w.total > 0 {
		snap.Accuracy = float64(w.correct) / float64(w.total)
	}
	if w.items > 0 {
		snap.Elapsed = w.now().Sub(w.started)
	}

	now := w.now
	*w = Window{now: now}
	return snap
}

// Snapshot is the summary of one window.
type Snapshot struct {
	Items    int
	MeanLoss float64
	Accuracy float64
	LastLR   float64
	Elapsed  time.Duration
}

// EpochSummary is the Snapshot of one finished epoch.
type EpochSummary struct {
	Split Split
	Epoch int
	Snapshot
}

// Recorder keeps a summary of every epoch it sees.
type Recorder[TO, VO any] struct {
	train   Window
	valid   Window
	history []EpochSummary
}

// NewRecorder creates an empty recorder.
func NewRecorder[TO, VO any]() *Recorder[TO, VO] {
	return &Recorder[TO, VO]{}
}

// ProcessTrain implements train.TrainProcessor.
func (r *Recorder[TO, VO]) ProcessTrain(e train.Event[TO]) {
	r.process(SplitTrain, &r.train, e.Kind, e.Epoch, e.Item.Item, e.Item.LR)
}

// ProcessValid implements train.ValidProcessor.
func (r *Recorder[TO, VO]) ProcessValid(e train.Event[VO]) {
	r.process(SplitValid, &r.valid, e.Kind, e.Epoch, e.Item.Item, e.Item.LR)
}

func (r *Recorder[TO, VO]) process(split Split, w *Window, kind train.EventKind, epoch int, output any, lr *float64) {
	switch kind {
	case train.EventProcessedItem:
		w.Record(output, lr)
	case train.EventEndEpoch:
		r.history = append(r.history, EpochSummary{Split: split, Epoch: epoch, Snapshot: w.Snapshot()})
	}
}

// History returns the summaries recorded so far, in order.
func (r *Recorder[TO, VO]) History() []EpochSummary {
	out := make([]EpochSummary, len(r.history))
	copy(out, r.history)
	return out
}

// Last returns the most recent summary of split.
func (r *Recorder[TO, VO]) Last(split Split) (EpochSummary, bool) {
	for i := len(r.history) - 1; i >= 0; i-- {
		if r.history[i].Split == split {
			return r.history[i], true
		}
	}
	return EpochSummary{}, false
}

// Multi forwards every event to each processor in order.
type Multi[TO, VO any] []train.EventProcessor[TO, VO]

// ProcessTrain implements train.TrainProcessor.
func (m Multi[TO, VO]) ProcessTrain(e train.Event[TO]) {
	for _, p := range m {
		p.ProcessTrain(e)
	}
}

// ProcessValid implements train.ValidProcessor.
func (m Multi[TO, VO]) ProcessValid(e train.Event[VO]) {
	for _, p := range m {
		p.ProcessValid(e)
	}
}
