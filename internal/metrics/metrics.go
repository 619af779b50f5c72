// Package metrics holds the small set of in-process counters the harness
// prints at the end of a run. There is no network exporter: the fuzzer's
// Non-goals put orchestration/observability surfaces out of scope, but the
// counters themselves are an always-present ambient concern.
package metrics

import "go.uber.org/atomic"

// Target accumulates counts for a single target's run.
type Target struct {
	Execs          atomic.Uint64
	Crashes        atomic.Uint64
	UniqueCrashes  atomic.Uint64
	Hangs          atomic.Uint64
	QueueDepth     atomic.Uint64
	CoverageBits   atomic.Uint64
}

// NewTarget returns a zeroed counter set for one target run.
func NewTarget() *Target {
	return &Target{}
}

// Snapshot is an immutable read of a Target's counters at one instant, used
// for progress lines and the final per-target summary.
type Snapshot struct {
	Execs         uint64
	Crashes       uint64
	UniqueCrashes uint64
	Hangs         uint64
	QueueDepth    uint64
	CoverageBits  uint64
}

// Snapshot reads all counters without requiring external synchronization.
func (t *Target) Snapshot() Snapshot {
	return Snapshot{
		Execs:         t.Execs.Load(),
		Crashes:       t.Crashes.Load(),
		UniqueCrashes: t.UniqueCrashes.Load(),
		Hangs:         t.Hangs.Load(),
		QueueDepth:    t.QueueDepth.Load(),
		CoverageBits:  t.CoverageBits.Load(),
	}
}
