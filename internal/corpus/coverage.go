package corpus

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// CoverageTracker accumulates the union of every coverage-bitmap index
// ever touched by a target, and decides whether a just-executed,
// non-crashing, non-hung input's coverage is novel enough to admit into
// the corpus queue.
//
// When the runner exposes no coverage channel, the caller uses
// ConsiderSignature instead, a behavioral-signature proxy: a one-bit-per-tuple coverage stand-in keyed
// on (exit code, truncated stdout/stderr length), admitted only the first
// time a given signature is observed.
type CoverageTracker struct {
	mu         sync.Mutex
	hasCoverage bool
	seenBits   map[int]struct{}
	seenSigs   map[uint64]struct{}
}

// NewCoverageTracker returns an empty tracker; seen_cov_bits starts empty.
func NewCoverageTracker() *CoverageTracker {
	return &CoverageTracker{
		seenBits: make(map[int]struct{}),
		seenSigs: make(map[uint64]struct{}),
	}
}

// Count returns the number of distinct coverage bits (or signatures, when
// running without real coverage) observed so far.
func (c *CoverageTracker) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hasCoverage {
		return len(c.seenBits)
	}
	return len(c.seenSigs)
}

// ConsiderCoverage reports whether cov contains any index not already
// seen, and unconditionally folds cov into the seen set afterward (the
// seen set is monotonically non-decreasing).
func (c *CoverageTracker) ConsiderCoverage(cov map[int]struct{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hasCoverage = true

	novel := false
	for idx := range cov {
		if _, ok := c.seenBits[idx]; !ok {
			novel = true
			break
		}
	}
	for idx := range cov {
		c.seenBits[idx] = struct{}{}
	}
	return novel
}

// BehavioralSignature is (exit code, stdout length, stderr length), each
// output truncated to 4096 bytes before measuring.
type BehavioralSignature struct {
	ExitCode   int
	StdoutLen  int
	StderrLen  int
}

func truncatedLen(b []byte) int {
	if len(b) > 4096 {
		return 4096
	}
	return len(b)
}

// NewBehavioralSignature builds the fallback signature for one exec.
func NewBehavioralSignature(exitCode int, stdout, stderr []byte) BehavioralSignature {
	return BehavioralSignature{
		ExitCode:  exitCode,
		StdoutLen: truncatedLen(stdout),
		StderrLen: truncatedLen(stderr),
	}
}

// ConsiderSignature reports whether sig has not been observed before, and
// records it either way.
func (c *CoverageTracker) ConsiderSignature(sig BehavioralSignature) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := xxhash.New()
	h.Write([]byte{byte(sig.ExitCode), byte(sig.ExitCode >> 8), byte(sig.ExitCode >> 16), byte(sig.ExitCode >> 24)})
	h.Write([]byte{byte(sig.StdoutLen), byte(sig.StdoutLen >> 8)})
	h.Write([]byte{byte(sig.StderrLen), byte(sig.StderrLen >> 8)})
	key := h.Sum64()

	_, seen := c.seenSigs[key]
	c.seenSigs[key] = struct{}{}
	return !seen
}
