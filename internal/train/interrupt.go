package train

import (
	"context"
	"sync/atomic"
)

// Interrupter is a cooperative stop flag shared between a controller and a
// running epoch. The zero value is ready to use; a nil *Interrupter never
// requests a stop.
type Interrupter struct {
	stop atomic.Bool
}

// NewInterrupter creates a lowered interrupter.
func NewInterrupter() *Interrupter {
	return &Interrupter{}
}

// Stop requests that training stop after the item in progress.
// It is safe to call from any goroutine.
func (i *Interrupter) Stop() {
	i.stop.Store(true)
}

// ShouldStop reports whether a stop was requested.
func (i *Interrupter) ShouldStop() bool {
	if i == nil {
		return false
	}
	return i.stop.Load()
}

// Reset lowers the flag so the interrupter can be reused for a new run.
func (i *Interrupter) Reset() {
	i.stop.Store(false)
}

// StopOnDone raises the interrupter when ctx is done. The returned function
// releases the watcher; call it once the run has finished. A context that
// is already done raises the flag before StopOnDone returns.
func (i *Interrupter) StopOnDone(ctx context.Context) (release func() bool) {
	if ctx.Err() != nil {
		i.Stop()
	}
	return context.AfterFunc(ctx, i.Stop)
}
