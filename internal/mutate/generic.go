package mutate

import "math/rand/v2"

// genericMutator is the fallback variant: pure byte-level mutation, used
// directly for text seeds and as the degraded mode for every format
// mutator whose seed fails to parse.
type genericMutator struct {
	seed []byte
	rng  *rand.Rand
}

func newGenericMutator(seed []byte) *genericMutator {
	return &genericMutator{seed: cloneBytes(seed), rng: newRand()}
}

func (m *genericMutator) Mutate(base []byte) []byte {
	if base == nil {
		base = m.seed
	}
	return m.MutateBytes(base)
}

func (m *genericMutator) MutateBytes(b []byte) []byte {
	return mutateBytesWith(m.rng, b)
}

func (m *genericMutator) DeterministicInputs() [][]byte {
	out := [][]byte{{}}
	out = append(out, overflowVariants(m.seed)...)
	return out
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
