// Package corpus implements the bounded corpus queue and the coverage
// (or behavioral-signature) admission policy that decides which mutated
// inputs are worth keeping around for the random phase to sample from.
package corpus

import (
	"math/rand/v2"
	"sync"

	"github.com/covefuzz/covefuzz/internal/invariant"
)

// DefaultCap is the queue length ceiling.
const DefaultCap = 1024

// Queue is the bounded, ordered sequence of retained inputs a target's
// random phase samples from. Invariants: element 0 is always the seed,
// length never exceeds cap, and every admitted entry already ran to a
// non-crashing, non-hung completion and increased observed coverage at
// admission time.
type Queue struct {
	mu    sync.Mutex
	cap   int
	items [][]byte
}

// NewQueue seeds the queue with its mandatory element 0.
func NewQueue(cap int, seed []byte) *Queue {
	invariant.Precondition(cap > 0, "corpus queue cap must be positive")
	s := make([]byte, len(seed))
	copy(s, seed)
	return &Queue{cap: cap, items: [][]byte{s}}
}

// Len returns the current queue length.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// TryAdmit appends input if the queue has room. Returns false if the
// queue is already at capacity; the caller is expected to have already
// established novelty before calling.
func (q *Queue) TryAdmit(input []byte) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.cap {
		return false
	}
	cp := make([]byte, len(input))
	copy(cp, input)
	q.items = append(q.items, cp)
	invariant.Postcondition(len(q.items) <= q.cap, "corpus queue length must not exceed cap after admit")
	return true
}

// Sample returns a uniformly random element, used by the random phase.
func (q *Queue) Sample(rng *rand.Rand) []byte {
	q.mu.Lock()
	defer q.mu.Unlock()
	invariant.Invariant(len(q.items) > 0, "corpus queue must never be empty")
	idx := rng.IntN(len(q.items))
	invariant.InRange(idx, 0, len(q.items)-1, "corpus queue sample index")
	return q.items[idx]
}

// Seed returns element 0, the original seed the queue was constructed with.
func (q *Queue) Seed() []byte {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items[0]
}
