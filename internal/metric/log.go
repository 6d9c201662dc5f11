package metric

import (
	"github.com/go-logr/logr"

	"github.com/born-ml/born-train/internal/train"
)

// LogProcessor writes progress lines through a logr.Logger: one line per
// Every items at V(1), and one summary line per epoch.
type LogProcessor[TO, VO any] struct {
	log   logr.Logger
	every int
	train Window
	valid Window
}

// NewLogProcessor creates a log processor. every <= 0 disables per-item lines.
func NewLogProcessor[TO, VO any](log logr.Logger, every int) *LogProcessor[TO, VO] {
	return &LogProcessor[TO, VO]{log: log, every: every}
}

// ProcessTrain implements train.TrainProcessor.
func (p *LogProcessor[TO, VO]) ProcessTrain(e train.Event[TO]) {
	if e.Kind == train.EventProcessedItem {
		p.item(SplitTrain, &p.train, e.Item.Item, e.Item.Iteration, e.Item.Epoch, e.Item.EpochTotal, e.Item.Progress.Fraction(), e.Item.LR)
		return
	}
	p.end(SplitTrain, &p.train, e.Epoch)
}

// ProcessValid implements train.ValidProcessor.
func (p *LogProcessor[TO, VO]) ProcessValid(e train.Event[VO]) {
	if e.Kind == train.EventProcessedItem {
		p.item(SplitValid, &p.valid, e.Item.Item, e.Item.Iteration, e.Item.Epoch, e.Item.EpochTotal, e.Item.Progress.Fraction(), e.Item.LR)
		return
	}
	p.end(SplitValid, &p.valid, e.Epoch)
}

func (p *LogProcessor[TO, VO]) item(split Split, w *Window, output any, iteration, epoch, epochTotal int, progress float64, lr *float64) {
	w.Record(output, lr)
	if p.every <= 0 || iteration%p.every != 0 {
		return
	}
	kv := []any{"split", split, "epoch", epoch, "epochs", epochTotal, "iteration", iteration, "progress", progress}
	if l, ok := output.(LossAdaptor); ok {
		kv = append(kv, "loss", l.Loss())
	}
	if lr != nil {
		kv = append(kv, "lr", *lr)
	}
	p.log.V(1).Info("Processed item", kv...)
}

func (p *LogProcessor[TO, VO]) end(split Split, w *Window, epoch int) {
	snap := w.Snapshot()
	kv := []any{"split", split, "epoch", epoch, "items", snap.Items, "loss", snap.MeanLoss, "elapsed", snap.Elapsed}
	if snap.Accuracy > 0 {
		kv = append(kv, "accuracy", snap.Accuracy)
	}
	p.log.Info("Epoch ended", kv...)
}
