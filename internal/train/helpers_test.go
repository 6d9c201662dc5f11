package train

import (
	"errors"

	"github.com/born-ml/born-train/internal/device"
	"github.com/born-ml/born-train/internal/grad"
	"github.com/born-ml/born-train/internal/optim"
	"github.com/born-ml/born-train/internal/param"
)

var errBoom = errors.New("boom")

// update is one recorded Optimize call.
type update struct {
	LR     float64
	Device device.Device
	Grads  map[param.ID][]float32
}

type history struct {
	updates []update
}

// fakeModel emits a gradient "w" equal to the item value.
type fakeModel struct {
	dev     device.Device
	hist    *history
	failOn  int
	version int
}

func newFakeModel() *fakeModel {
	return &fakeModel{dev: device.NewCPU(0), hist: &history{}}
}

func (m *fakeModel) TrainStep(item int) (TrainOutput[int], error) {
	if m.failOn != 0 && item == m.failOn {
		return TrainOutput[int]{}, errBoom
	}
	g := grad.New(m.dev)
	g.Set("w", []float32{float32(item)})
	return TrainOutput[int]{Item: item, Grads: g}, nil
}

func (m *fakeModel) Optimize(_ optim.Optimizer, lr float64, grads *grad.Gradients) (Model[int, int], error) {
	u := update{LR: lr, Device: grads.Device(), Grads: map[param.ID][]float32{}}
	for _, id := range grads.IDs() {
		v, _ := grads.Get(id)
		u.Grads[id] = append([]float32(nil), v...)
	}
	m.hist.updates = append(m.hist.updates, u)

	next := *m
	next.version++
	return &next, nil
}

func (m *fakeModel) Fork(d device.Device) Model[int, int] {
	replica := *m
	replica.dev = d
	return &replica
}

func (m *fakeModel) ValidStep(item int) (int, error) {
	if m.failOn != 0 && item == m.failOn {
		return 0, errBoom
	}
	return item * 10, nil
}

// countingScheduler returns 0.1, 0.2, 0.3, ...
type countingScheduler struct {
	n int
}

func (s *countingScheduler) Step() float64 {
	s.n++
	return float64(s.n) / 10
}

// recorder stores every event it receives and optionally reacts to train events.
type recorder struct {
	train   []Event[int]
	valid   []Event[int]
	onTrain func(Event[int])
	onValid func(Event[int])
}

func (r *recorder) ProcessTrain(e Event[int]) {
	r.train = append(r.train, e)
	if r.onTrain != nil {
		r.onTrain(e)
	}
}

func (r *recorder) ProcessValid(e Event[int]) {
	r.valid = append(r.valid, e)
	if r.onValid != nil {
		r.onValid(e)
	}
}

// seen is the part of an event most tests compare.
type seen struct {
	Kind      EventKind
	Epoch     int
	Item      int
	Iteration int
	LR        float64
}

func summarize(events []Event[int]) []seen {
	out := make([]seen, len(events))
	for i, e := range events {
		s := seen{Kind: e.Kind, Epoch: e.Epoch}
		if e.Kind == EventProcessedItem {
			s.Item = e.Item.Item
			s.Iteration = e.Item.Iteration
			if e.Item.LR != nil {
				s.LR = *e.Item.LR
			}
		}
		out[i] = s
	}
	return out
}

func item(epoch, value, iteration int, lr float64) seen {
	return seen{Kind: EventProcessedItem, Epoch: epoch, Item: value, Iteration: iteration, LR: lr}
}

func end(epoch int) seen {
	return seen{Kind: EventEndEpoch, Epoch: epoch}
}

func wGrads(values ...float32) []update {
	out := make([]update, len(values))
	for i, v := range values {
		out[i] = update{Device: device.NewCPU(0), Grads: map[param.ID][]float32{"w": {v}}}
	}
	return out
}

// withoutLR clears learning rates so updates can be compared on gradients alone.
func withoutLR(updates []update) []update {
	out := make([]update, len(updates))
	for i, u := range updates {
		u.LR = 0
		out[i] = u
	}
	return out
}
