// Package param holds named model parameters.
//
// A Store is the unit a model hands to its optimizer: an ordered set of
// float32 vectors keyed by ID and tagged with the device they live on.
package param

import (
	"fmt"
	"sort"

	"github.com/born-ml/born-train/internal/device"
)

// ID identifies a parameter across replicas and gradient sets.
type ID string

// Store is an ordered collection of parameters on one device.
//
// Store is not safe for concurrent mutation. Replicas handed to concurrent
// workers are obtained with Clone or ToDevice and are only read.
type Store struct {
	device device.Device
	order  []ID
	values map[ID][]float32
}

// NewStore creates an empty parameter store on d.
func NewStore(d device.Device) *Store {
	return &Store{
		device: d,
		values: make(map[ID][]float32),
	}
}

// Device returns the device the parameters live on.
func (s *Store) Device() device.Device {
	return s.device
}

// Add registers a new parameter. It returns an error if id is already present.
func (s *Store) Add(id ID, value []float32) error {
	if _, ok := s.values[id]; ok {
		return fmt.Errorf("param: duplicate parameter %q", id)
	}
	s.order = append(s.order, id)
	s.values[id] = value
	return nil
}

// Get returns the parameter data. The returned slice aliases the store.
func (s *Store) Get(id ID) ([]float32, bool) {
	v, ok := s.values[id]
	return v, ok
}

// IDs returns parameter identities in registration order.
func (s *Store) IDs() []ID {
	out := make([]ID, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of parameters.
func (s *Store) Len() int {
	return len(s.order)
}

// NumElements returns the total number of scalars across all parameters.
func (s *Store) NumElements() int {
	n := 0
	for _, v := range s.values {
		n += len(v)
	}
	return n
}

// Clone returns a deep copy on the same device.
func (s *Store) Clone() *Store {
	return s.ToDevice(s.device)
}

// ToDevice returns a deep copy of the store tagged with d.
func (s *Store) ToDevice(d device.Device) *Store {
	out := &Store{
		device: d,
		order:  make([]ID, len(s.order)),
		values: make(map[ID][]float32, len(s.values)),
	}
	copy(out.order, s.order)
	for id, v := range s.values {
		c := make([]float32, len(v))
		copy(c, v)
		out.values[id] = c
	}
	return out
}

// SortIDs sorts ids in place lexically.
func SortIDs(ids []ID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
