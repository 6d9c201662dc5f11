// Package train runs training and validation epochs.
//
// An epoch pulls items from a data loader, runs the model step on each,
// accumulates gradients over a configurable window, applies optimizer
// updates and reports every item to an event processor. Three runners are
// provided:
//
//   - ValidEpoch.Run: one validation pass over a single loader.
//   - TrainEpoch.Run: one training pass on a single device.
//   - TrainEpoch.RunMultiDevice: one training pass fanned out over several
//     devices, one loader per device, with gradients merged onto the
//     primary (first) device before accumulation.
//
// # Numbering
//
// The iteration counter restarts at 1 every epoch and advances once per
// processed item, never per device batch, so event streams are numbered
// identically for any device count. The learning-rate scheduler is stepped
// once per item, before that item's step runs.
//
// # Accumulation
//
// With no window configured every item triggers one optimizer update. With
// a window of W the optimizer runs after every W items (W×D items with D
// devices). Gradients left in a partial window when the epoch ends are
// dropped.
//
// # Cancellation
//
// An Interrupter is polled after every emitted item. Raising it never
// aborts a running step; it only stops further items from starting. An
// interrupted epoch still emits its end-of-epoch event.
package train
