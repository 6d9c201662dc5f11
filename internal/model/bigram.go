package model

import (
	"fmt"
	"math"

	"github.com/born-ml/born-train/internal/data"
	"github.com/born-ml/born-train/internal/device"
	"github.com/born-ml/born-train/internal/grad"
	"github.com/born-ml/born-train/internal/optim"
	"github.com/born-ml/born-train/internal/param"
	"github.com/born-ml/born-train/internal/train"
)

// Bigram is a next-token model whose logits for token t are row t of a
// vocab×vocab table. Each row is its own parameter, so a step only produces
// gradients for the rows of the tokens it saw.
type Bigram struct {
	params *param.Store
	vocab  int
}

// NewBigram creates a zero-initialized bigram model on d.
func NewBigram(vocab int, d device.Device) *Bigram {
	s := param.NewStore(d)
	for i := 0; i < vocab; i++ {
		if err := s.Add(BigramRow(int32(i)), make([]float32, vocab)); err != nil { //nolint:gosec // vocab fits in int32.
			panic(err)
		}
	}
	return &Bigram{params: s, vocab: vocab}
}

// BigramRow returns the parameter identity of the logits row for token.
func BigramRow(token int32) param.ID {
	return param.ID(fmt.Sprintf("bigram.%d", token))
}

// Params returns the model parameters.
func (m *Bigram) Params() *param.Store {
	return m.params
}

// TrainStep computes the mean cross-entropy over the window and its gradients.
func (m *Bigram) TrainStep(w data.TokenWindow) (train.TrainOutput[ClassificationOutput], error) {
	grads := grad.New(m.params.Device())
	out, err := m.forward(w, grads)
	if err != nil {
		return train.TrainOutput[ClassificationOutput]{}, err
	}
	return train.TrainOutput[ClassificationOutput]{Item: out, Grads: grads}, nil
}

// ValidStep computes the mean cross-entropy and accuracy over the window.
func (m *Bigram) ValidStep(w data.TokenWindow) (ClassificationOutput, error) {
	return m.forward(w, nil)
}

// forward evaluates the window; when grads is non-nil the gradients of the
// mean loss are written into it.
func (m *Bigram) forward(w data.TokenWindow, grads *grad.Gradients) (ClassificationOutput, error) {
	if w.Len() == 0 || len(w.Targets) != w.Len() {
		return ClassificationOutput{}, fmt.Errorf("model: malformed window of %d inputs and %d targets", len(w.Inputs), len(w.Targets))
	}

	n := float32(w.Len())
	probs := make([]float32, m.vocab)
	out := ClassificationOutput{Total: w.Len()}
	for i, tok := range w.Inputs {
		target := w.Targets[i]
		if tok < 0 || int(tok) >= m.vocab || target < 0 || int(target) >= m.vocab {
			return ClassificationOutput{}, fmt.Errorf("model: token out of vocabulary at position %d", i)
		}
		logits, _ := m.params.Get(BigramRow(tok))
		best := softmax(logits, probs)
		if best == int(target) {
			out.Correct++
		}
		out.CrossEntropy -= math.Log(math.Max(float64(probs[target]), 1e-12))

		if grads == nil {
			continue
		}
		row, ok := grads.Get(BigramRow(tok))
		if !ok {
			row = make([]float32, m.vocab)
			grads.Set(BigramRow(tok), row)
		}
		for j, p := range probs {
			row[j] += p / n
		}
		row[target] -= 1 / n
	}
	out.CrossEntropy /= float64(w.Len())
	return out, nil
}

// softmax writes the normalized probabilities of logits into dst and
// returns the index of the largest logit.
func softmax(logits, dst []float32) int {
	best := 0
	for i, v := range logits {
		if v > logits[best] {
			best = i
		}
	}
	maxLogit := float64(logits[best])
	sum := 0.0
	for i, v := range logits {
		e := math.Exp(float64(v) - maxLogit)
		dst[i] = float32(e)
		sum += e
	}
	for i := range dst {
		dst[i] = float32(float64(dst[i]) / sum)
	}
	return best
}

// Optimize applies grads through opt and returns the updated model.
func (m *Bigram) Optimize(opt optim.Optimizer, lr float64, grads *grad.Gradients) (train.Model[data.TokenWindow, ClassificationOutput], error) {
	if err := optimize(opt, lr, m.params, grads); err != nil {
		return m, err
	}
	return m, nil
}

// Fork returns a copy of the model placed on d.
func (m *Bigram) Fork(d device.Device) train.Model[data.TokenWindow, ClassificationOutput] {
	return &Bigram{params: m.params.ToDevice(d), vocab: m.vocab}
}
