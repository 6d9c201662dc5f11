package metric

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/born-ml/born-train/internal/train"
)

const namespace = "born_train"

// PromProcessor exports epoch events as Prometheus metrics.
type PromProcessor[TO, VO any] struct {
	items     *prometheus.CounterVec
	epochs    *prometheus.CounterVec
	loss      *prometheus.GaugeVec
	epochLoss *prometheus.GaugeVec
	accuracy  *prometheus.GaugeVec
	progress  *prometheus.GaugeVec
	epoch     *prometheus.GaugeVec
	lr        prometheus.Gauge

	train Window
	valid Window
}

// NewPromProcessor creates the collectors and registers them on reg.
func NewPromProcessor[TO, VO any](reg prometheus.Registerer) (*PromProcessor[TO, VO], error) {
	p := &PromProcessor[TO, VO]{
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "items_total", Help: "Items processed.",
		}, []string{"split"}),
		epochs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "epochs_total", Help: "Epochs ended, completed or interrupted.",
		}, []string{"split"}),
		loss: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "loss", Help: "Loss of the last processed item.",
		}, []string{"split"}),
		epochLoss: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "epoch_loss", Help: "Mean loss of the last ended epoch.",
		}, []string{"split", "epoch"}),
		accuracy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "epoch_accuracy", Help: "Accuracy of the last ended epoch.",
		}, []string{"split"}),
		progress: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "progress_ratio", Help: "Fraction of the current epoch processed.",
		}, []string{"split"}),
		epoch: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "epoch", Help: "Current epoch index.",
		}, []string{"split"}),
		lr: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "learning_rate", Help: "Learning rate of the last training item.",
		}),
	}

	for _, c := range []prometheus.Collector{p.items, p.epochs, p.loss, p.epochLoss, p.accuracy, p.progress, p.epoch, p.lr} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("metric: register collector: %w", err)
		}
	}
	return p, nil
}

// ProcessTrain implements train.TrainProcessor.
func (p *PromProcessor[TO, VO]) ProcessTrain(e train.Event[TO]) {
	if e.Kind == train.EventProcessedItem {
		p.item(SplitTrain, &p.train, e.Item.Item, e.Item.Epoch, e.Item.Progress.Fraction(), e.Item.LR)
		return
	}
	p.end(SplitTrain, &p.train, e.Epoch)
}

// ProcessValid implements train.ValidProcessor.
func (p *PromProcessor[TO, VO]) ProcessValid(e train.Event[VO]) {
	if e.Kind == train.EventProcessedItem {
		p.item(SplitValid, &p.valid, e.Item.Item, e.Item.Epoch, e.Item.Progress.Fraction(), e.Item.LR)
		return
	}
	p.end(SplitValid, &p.valid, e.Epoch)
}

func (p *PromProcessor[TO, VO]) item(split Split, w *Window, output any, epoch int, progress float64, lr *float64) {
	label := string(split)
	w.Record(output, lr)
	p.items.WithLabelValues(label).Inc()
	p.progress.WithLabelValues(label).Set(progress)
	p.epoch.WithLabelValues(label).Set(float64(epoch))
	if l, ok := output.(LossAdaptor); ok {
		p.loss.WithLabelValues(label).Set(l.Loss())
	}
	if lr != nil {
		p.lr.Set(*lr)
	}
}

func (p *PromProcessor[TO, VO]) end(split Split, w *Window, epoch int) {
	label := string(split)
	snap := w.Snapshot()
	p.epochs.WithLabelValues(label).Inc()
	p.epochLoss.WithLabelValues(label, strconv.Itoa(epoch)).Set(snap.MeanLoss)
	p.accuracy.WithLabelValues(label).Set(snap.Accuracy)
}
