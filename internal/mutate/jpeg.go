package mutate

import "math/rand/v2"

var jpegMagic = []byte{0xFF, 0xD8, 0xFF}

type jpegMutator struct {
	seed    []byte
	valid   bool
	rng     *rand.Rand
	generic *genericMutator
}

func newJPEGMutator(seed []byte) *jpegMutator {
	valid := len(seed) >= 3 && seed[0] == jpegMagic[0] && seed[1] == jpegMagic[1] && seed[2] == jpegMagic[2]
	return &jpegMutator{seed: cloneBytes(seed), valid: valid, rng: newRand(), generic: newGenericMutator(seed)}
}

func (m *jpegMutator) MutateBytes(b []byte) []byte {
	return mutateBytesWith(m.rng, b)
}

// Mutate performs 1-4 iterations of marker-byte corruption, skipping the
// SOI/EOI/fill markers, then optionally truncates or appends trailing
// bytes. Falls back to generic mutation if the seed doesn't start with the
// JPEG magic.
func (m *jpegMutator) Mutate(base []byte) []byte {
	if !m.valid {
		return m.generic.MutateBytes(orSeed(base, m.seed))
	}

	out := cloneBytes(orSeed(base, m.seed))
	iterations := 1 + m.rng.IntN(4)
	for i := 0; i < iterations; i++ {
		out = m.corruptOneMarker(out)
	}

	if m.rng.Float64() < 0.2 && len(out) > 1 {
		cut := 1 + m.rng.IntN(min(1024, len(out)-1))
		out = out[:len(out)-cut]
	}
	if m.rng.Float64() < 0.2 {
		n := 1 + m.rng.IntN(512)
		tail := make([]byte, n)
		for i := range tail {
			tail[i] = byte(m.rng.IntN(256))
		}
		out = append(out, tail...)
	}
	return out
}

func (m *jpegMutator) corruptOneMarker(b []byte) []byte {
	if len(b) < 5 {
		return b
	}
	pos := 2 + m.rng.IntN(len(b)-2)
	if b[pos] != 0xFF {
		return b
	}
	if pos+1 >= len(b) {
		return b
	}
	marker := b[pos+1]
	if marker == 0xD8 || marker == 0xD9 || marker == 0x00 || marker == 0xFF {
		return b
	}
	if pos+3 > len(b) {
		return b
	}
	b[pos+1] = byte(m.rng.IntN(256))
	if pos+2 < len(b) {
		b[pos+2] = byte(m.rng.IntN(256))
	}
	return b
}

func (m *jpegMutator) DeterministicInputs() [][]byte {
	return [][]byte{
		{},
		cloneBytes(m.seed),
	}
}
