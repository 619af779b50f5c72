package mutate

import (
	"math/rand/v2"

	"github.com/covefuzz/covefuzz/internal/invariant"
)

const maxGenericLen = 65535

var arithmeticDeltas = []int{1, -1, 16, -16, 128, -128, 127, -127}

// mutateBytesWith applies one format-agnostic byte-level mutation to b
// using rng, picking uniformly from: bit-flip, random-byte set, arithmetic
// delta, insert 1-8 random bytes (capped at maxGenericLen total), delete
// one byte, duplicate a 1-16 byte chunk. An empty buffer always yields a
// single random byte.
func mutateBytesWith(rng *rand.Rand, b []byte) []byte {
	if len(b) == 0 {
		return []byte{byte(rng.IntN(256))}
	}

	out := make([]byte, len(b))
	copy(out, b)

	switch rng.IntN(6) {
	case 0: // bit-flip
		i := rng.IntN(len(out))
		out[i] ^= 1 << rng.IntN(8)
	case 1: // random-byte set
		i := rng.IntN(len(out))
		out[i] = byte(rng.IntN(256))
	case 2: // arithmetic delta
		i := rng.IntN(len(out))
		delta := arithmeticDeltas[rng.IntN(len(arithmeticDeltas))]
		out[i] = byte(int(out[i]) + delta)
	case 3: // insert 1-8 random bytes
		n := 1 + rng.IntN(8)
		ins := make([]byte, n)
		for i := range ins {
			ins[i] = byte(rng.IntN(256))
		}
		pos := rng.IntN(len(out) + 1)
		out = spliceInsert(out, pos, ins)
		if len(out) > maxGenericLen {
			out = out[:maxGenericLen]
		}
	case 4: // delete one byte
		if len(out) > 1 {
			i := rng.IntN(len(out))
			out = append(out[:i], out[i+1:]...)
		}
	case 5: // duplicate a 1-16 byte chunk at a random position
		chunkLen := 1 + rng.IntN(16)
		if chunkLen > len(out) {
			chunkLen = len(out)
		}
		start := rng.IntN(len(out) - chunkLen + 1)
		chunk := make([]byte, chunkLen)
		copy(chunk, out[start:start+chunkLen])
		pos := rng.IntN(len(out) + 1)
		out = spliceInsert(out, pos, chunk)
	}

	invariant.Postcondition(len(out) > 0, "mutateBytesWith must never produce empty output")
	return out
}

func spliceInsert(b []byte, pos int, ins []byte) []byte {
	out := make([]byte, 0, len(b)+len(ins))
	out = append(out, b[:pos]...)
	out = append(out, ins...)
	out = append(out, b[pos:]...)
	return out
}

// overflowVariants returns the standard "amplify the seed" suffixes reused
// by several deterministic generator sets: A*1000, A*10000, an embedded
// NUL, a whitespace trio, and a bidi-override codepoint.
func overflowVariants(seed []byte) [][]byte {
	mk := func(suffix []byte) []byte {
		out := make([]byte, 0, len(seed)+len(suffix))
		out = append(out, seed...)
		out = append(out, suffix...)
		return out
	}
	return [][]byte{
		mk(repeatByte('A', 1000)),
		mk(repeatByte('A', 10000)),
		mk([]byte{0x00}),
		mk([]byte(" \t\n")),
		mk([]byte("‮")),
	}
}

func repeatByte(b byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}
