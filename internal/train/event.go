package train

import "github.com/born-ml/born-train/internal/data"

// LearnerItem is the per-item record handed to event processors.
type LearnerItem[T any] struct {
	Item       T
	Progress   data.Progress
	Epoch      int
	EpochTotal int
	Iteration  int
	LR         *float64 // Learning rate of the iteration; nil for validation.
}

// NewLearnerItem builds an item record. A nil lr marks a validation item.
func NewLearnerItem[T any](item T, progress data.Progress, epoch, epochTotal, iteration int, lr *float64) LearnerItem[T] {
	return LearnerItem[T]{
		Item:       item,
		Progress:   progress,
		Epoch:      epoch,
		EpochTotal: epochTotal,
		Iteration:  iteration,
		LR:         lr,
	}
}

// EventKind tags an Event.
type EventKind int

const (
	// EventProcessedItem carries one LearnerItem.
	EventProcessedItem EventKind = iota
	// EventEndEpoch signals that an epoch finished or was interrupted.
	EventEndEpoch
)

// String implements fmt.Stringer.
func (k EventKind) String() string {
	switch k {
	case EventProcessedItem:
		return "ProcessedItem"
	case EventEndEpoch:
		return "EndEpoch"
	default:
		return "Unknown"
	}
}

// Event is what an epoch reports to the outside world.
// Item is set for EventProcessedItem, Epoch for EventEndEpoch.
type Event[T any] struct {
	Kind  EventKind
	Item  LearnerItem[T]
	Epoch int
}

// ProcessedItem returns an EventProcessedItem event.
func ProcessedItem[T any](item LearnerItem[T]) Event[T] {
	return Event[T]{Kind: EventProcessedItem, Item: item, Epoch: item.Epoch}
}

// EndEpoch returns an EventEndEpoch event.
func EndEpoch[T any](epoch int) Event[T] {
	return Event[T]{Kind: EventEndEpoch, Epoch: epoch}
}

// TrainProcessor receives training events.
type TrainProcessor[T any] interface {
	ProcessTrain(event Event[T])
}

// ValidProcessor receives validation events.
type ValidProcessor[T any] interface {
	ProcessValid(event Event[T])
}

// EventProcessor receives both event channels.
type EventProcessor[TO, VO any] interface {
	TrainProcessor[TO]
	ValidProcessor[VO]
}
