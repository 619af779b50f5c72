// Package mutate implements the polymorphic, format-aware mutator family:
// one variant per detected format, each producing a finite deterministic
// sequence of edge-case inputs and an unbounded stream of randomized
// mutations derived from the seed or a corpus-queue entry.
package mutate

import (
	"math/rand/v2"

	"github.com/covefuzz/covefuzz/internal/detect"
)

// Mutator is the capability set every format variant implements. Instances
// are immutable after construction: Mutate and MutateBytes always return a
// freshly owned byte slice, never a view into the receiver's state or the
// caller's argument.
type Mutator interface {
	// Mutate derives a new input from base (typically a corpus-queue
	// entry). Implementations may ignore base and mutate from their own
	// richer parsed form of the seed instead; the only contract is that
	// the result is a well-formed byte slice.
	Mutate(base []byte) []byte

	// MutateBytes applies a format-agnostic byte-level mutation to b and
	// is used both as a post-processing amplifier and as the sole
	// strategy for the Generic variant.
	MutateBytes(b []byte) []byte

	// DeterministicInputs returns the finite, fixed-order sequence of
	// edge-case inputs for this variant, generated exactly once at the
	// start of fuzzing a target.
	DeterministicInputs() [][]byte
}

// New constructs the Mutator variant matching format, seeding it from seed.
// Dispatch happens once per target; the returned value owns whatever
// parsed form of seed it needs (a JSON tree, CSV rows, parse-failure flag,
// ...) for the lifetime of the fuzzing run.
func New(format detect.Format, seed []byte) Mutator {
	switch format {
	case detect.FormatJSON:
		return newJSONMutator(seed)
	case detect.FormatCSV:
		return newCSVMutator(seed)
	case detect.FormatXML:
		return newXMLMutator(seed)
	case detect.FormatJPEG:
		return newJPEGMutator(seed)
	case detect.FormatELF:
		return newELFMutator(seed)
	case detect.FormatPDF:
		return newPDFMutator(seed)
	default:
		return newGenericMutator(seed)
	}
}

// newRand returns a *rand.Rand seeded from the runtime entropy source. Each
// mutator instance owns one; there is no shared/global RNG.
func newRand() *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}
