// Package cpusample measures the CPU usage of processes matched by name.
package cpusample

import (
	"context"
	"strings"
	"sync"

	"github.com/shirou/gopsutil/v4/process"
)

// Sampler reports the combined CPU percentage of all processes whose
// name contains a pattern. Per-process handles are cached between calls
// so gopsutil can report usage over the interval since the last sample
// rather than since process creation.
type Sampler struct {
	mu    sync.Mutex
	procs map[int32]*process.Process

	// hooks for tests
	listProcs func(ctx context.Context) ([]*process.Process, error)
	fallback  func(ctx context.Context, namePattern string) (float64, error)
}

// NewSampler creates a process CPU sampler.
func NewSampler() *Sampler {
	return &Sampler{
		procs:     make(map[int32]*process.Process),
		listProcs: process.ProcessesWithContext,
		fallback:  psFallback,
	}
}

// CPUPercent returns the summed CPU percentage of every process whose
// name contains namePattern, case-insensitively. When process
// enumeration fails it falls back to parsing ps output.
func (s *Sampler) CPUPercent(ctx context.Context, namePattern string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	procs, err := s.listProcs(ctx)
	if err != nil {
		return s.fallback(ctx, namePattern)
	}

	pattern := strings.ToLower(namePattern)
	seen := make(map[int32]bool, len(procs))
	total := 0.0

	for _, p := range procs {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		name, err := p.NameWithContext(ctx)
		if err != nil || !strings.Contains(strings.ToLower(name), pattern) {
			continue
		}

		pid := p.Pid
		seen[pid] = true

		// Reuse the cached handle so CPUPercent measures usage since
		// the previous sample instead of since process start.
		handle, ok := s.procs[pid]
		if !ok {
			handle = p
			s.procs[pid] = handle
		}

		pct, err := handle.CPUPercentWithContext(ctx)
		if err != nil {
			continue
		}
		total += pct
	}

	// Drop handles for processes that no longer match or exited.
	for pid := range s.procs {
		if !seen[pid] {
			delete(s.procs, pid)
		}
	}

	return total, nil
}
