package metric

import (
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr/funcr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/born-train/internal/data"
	"github.com/born-ml/born-train/internal/train"
)

type output struct {
	loss    float64
	correct int
	total   int
}

func (o output) Loss() float64                  { return o.loss }
func (o output) Accuracy() (correct, total int) { return o.correct, o.total }

func trainItem(o output, epoch, iteration int, lr float64) train.Event[output] {
	return train.ProcessedItem(train.NewLearnerItem(o, data.Progress{ItemsProcessed: iteration, ItemsTotal: 4}, epoch, 2, iteration, &lr))
}

func validItem(o output, epoch, iteration int) train.Event[output] {
	return train.ProcessedItem(train.NewLearnerItem(o, data.Progress{ItemsProcessed: iteration, ItemsTotal: 2}, epoch, 2, iteration, nil))
}

func TestWindow(t *testing.T) {
	clock := time.Unix(0, 0)
	w := Window{now: func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}}
	lr := 0.5

	w.Record(output{loss: 1, correct: 1, total: 2}, &lr)
	w.Record(output{loss: 3, correct: 2, total: 2}, nil)
	w.Record("no adaptors", nil)

	snap := w.Snapshot()
	assert.Equal(t, 3, snap.Items)
	assert.InDelta(t, 2.0, snap.MeanLoss, 1e-12)
	assert.InDelta(t, 0.75, snap.Accuracy, 1e-12)
	assert.InDelta(t, 0.5, snap.LastLR, 1e-12)
	assert.Equal(t, time.Second, snap.Elapsed)

	assert.Equal(t, Snapshot{}, w.Snapshot(), "snapshot resets the window")
}

func TestRecorder(t *testing.T) {
	r := NewRecorder[output, output]()

	r.ProcessTrain(trainItem(output{loss: 2}, 1, 1, 0.1))
	r.ProcessTrain(trainItem(output{loss: 4}, 1, 2, 0.2))
	r.ProcessTrain(train.EndEpoch[output](1))
	r.ProcessValid(validItem(output{loss: 1, correct: 1, total: 1}, 1, 1))
	r.ProcessValid(train.EndEpoch[output](1))

	history := r.History()
	require.Len(t, history, 2)
	assert.Equal(t, SplitTrain, history[0].Split)
	assert.Equal(t, 1, history[0].Epoch)
	assert.Equal(t, 2, history[0].Items)
	assert.InDelta(t, 3.0, history[0].MeanLoss, 1e-12)
	assert.InDelta(t, 0.2, history[0].LastLR, 1e-12)

	valid, ok := r.Last(SplitValid)
	require.True(t, ok)
	assert.InDelta(t, 1.0, valid.Accuracy, 1e-12)

	_, ok = NewRecorder[output, output]().Last(SplitTrain)
	assert.False(t, ok)
}

func TestMulti(t *testing.T) {
	a, b := NewRecorder[output, output](), NewRecorder[output, output]()
	m := Multi[output, output]{a, b}

	m.ProcessTrain(train.EndEpoch[output](1))
	m.ProcessValid(train.EndEpoch[output](1))

	assert.Len(t, a.History(), 2)
	assert.Equal(t, a.History(), b.History())
}

func TestLogProcessor(t *testing.T) {
	var lines []string
	log := funcr.New(func(prefix, args string) {
		lines = append(lines, args)
	}, funcr.Options{Verbosity: 1})

	p := NewLogProcessor[output, output](log, 2)
	p.ProcessTrain(trainItem(output{loss: 1}, 1, 1, 0.1))
	p.ProcessTrain(trainItem(output{loss: 3}, 1, 2, 0.1))
	p.ProcessTrain(train.EndEpoch[output](1))
	p.ProcessValid(validItem(output{loss: 1, correct: 1, total: 2}, 1, 1))
	p.ProcessValid(train.EndEpoch[output](1))

	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"msg"="Processed item"`)
	assert.Contains(t, lines[0], `"iteration"=2`)
	assert.Contains(t, lines[1], `"msg"="Epoch ended"`)
	assert.Contains(t, lines[1], `"loss"=2`)
	assert.True(t, strings.Contains(lines[2], `"split"="valid"`))
	assert.Contains(t, lines[2], `"accuracy"=0.5`)
}

func TestPromProcessor(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := NewPromProcessor[output, output](reg)
	require.NoError(t, err)

	p.ProcessTrain(trainItem(output{loss: 2}, 1, 1, 0.1))
	p.ProcessTrain(trainItem(output{loss: 4}, 1, 2, 0.05))
	p.ProcessTrain(train.EndEpoch[output](1))
	p.ProcessValid(validItem(output{loss: 1, correct: 3, total: 4}, 1, 1))
	p.ProcessValid(train.EndEpoch[output](1))

	assert.InDelta(t, 2, testutil.ToFloat64(p.items.WithLabelValues("train")), 1e-12)
	assert.InDelta(t, 1, testutil.ToFloat64(p.items.WithLabelValues("valid")), 1e-12)
	assert.InDelta(t, 4, testutil.ToFloat64(p.loss.WithLabelValues("train")), 1e-12)
	assert.InDelta(t, 3, testutil.ToFloat64(p.epochLoss.WithLabelValues("train", "1")), 1e-12)
	assert.InDelta(t, 0.75, testutil.ToFloat64(p.accuracy.WithLabelValues("valid")), 1e-12)
	assert.InDelta(t, 0.05, testutil.ToFloat64(p.lr), 1e-12)
	assert.InDelta(t, 0.5, testutil.ToFloat64(p.progress.WithLabelValues("train")), 1e-12)
	assert.InDelta(t, 1, testutil.ToFloat64(p.epochs.WithLabelValues("valid")), 1e-12)

	_, err = NewPromProcessor[output, output](reg)
	assert.Error(t, err, "collectors cannot be registered twice")
}
