// Package parallel provides the fork-join helpers used by training epochs
// and optimizers.
package parallel

import (
	"runtime"
	"sync"

	"github.com/sourcegraph/conc/pool"
)

// Config controls data-parallel loops.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig returns sensible defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 4096,
	}
}

// Sequential returns a config that never spawns goroutines.
func Sequential() Config {
	return Config{}
}

// For executes f(i) for i in [0, n) with optional parallelism.
// Falls back to sequential execution if parallelism is disabled or n is too small.
func For(n int, f func(i int), cfg Config) {
	if !cfg.Enabled || cfg.NumWorkers < 2 || n < cfg.MinChunkSize {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	var wg sync.WaitGroup
	chunkSize := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize)

	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				f(i)
			}
		}(start, end)
	}
	wg.Wait()
}

// Fork runs f(i) for i in [0, n) on exactly n goroutines and waits for all
// of them, even when some fail. The returned error joins every task error.
// A panic in a task is re-raised on the calling goroutine after the join.
func Fork(n int, f func(i int) error) error {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return f(0)
	}

	p := pool.New().WithErrors().WithMaxGoroutines(n)
	for i := 0; i < n; i++ {
		p.Go(func() error {
			return f(i)
		})
	}
	return p.Wait()
}
