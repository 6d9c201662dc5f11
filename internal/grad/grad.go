// Package grad implements gradient sets and the gradient accumulator used
// by training epochs.
package grad

import (
	"fmt"

	"github.com/born-ml/born-train/internal/device"
	"github.com/born-ml/born-train/internal/param"
)

// Gradients maps parameter identity to a gradient vector.
//
// A Gradients value belongs to exactly one model snapshot and lives on one
// device. Parameters that did not take part in a step are simply absent.
type Gradients struct {
	device device.Device
	values map[param.ID][]float32
}

// New creates an empty gradient set on d.
func New(d device.Device) *Gradients {
	return &Gradients{
		device: d,
		values: make(map[param.ID][]float32),
	}
}

// Device returns the device the gradients live on.
func (g *Gradients) Device() device.Device {
	return g.device
}

// Set stores the gradient for id, replacing any previous value.
func (g *Gradients) Set(id param.ID, value []float32) {
	g.values[id] = value
}

// Get returns the gradient for id.
func (g *Gradients) Get(id param.ID) ([]float32, bool) {
	v, ok := g.values[id]
	return v, ok
}

// Len returns the number of parameters with a gradient.
func (g *Gradients) Len() int {
	if g == nil {
		return 0
	}
	return len(g.values)
}

// IDs returns the parameter identities in sorted order.
func (g *Gradients) IDs() []param.ID {
	ids := make([]param.ID, 0, len(g.values))
	for id := range g.values {
		ids = append(ids, id)
	}
	param.SortIDs(ids)
	return ids
}

// Clone returns a deep copy on the same device.
func (g *Gradients) Clone() *Gradients {
	return g.ToDevice(g.device)
}

// ToDevice returns a deep copy of the gradients moved onto d.
func (g *Gradients) ToDevice(d device.Device) *Gradients {
	out := &Gradients{
		device: d,
		values: make(map[param.ID][]float32, len(g.values)),
	}
	for id, v := range g.values {
		c := make([]float32, len(v))
		copy(c, v)
		out.values[id] = c
	}
	return out
}

// String implements fmt.Stringer.
func (g *Gradients) String() string {
	return fmt.Sprintf("Gradients(device=%s, params=%d)", g.device, len(g.values))
}
