package mutate

import (
	"bytes"
	"fmt"
	"math/rand/v2"
)

var pdfMagic = []byte("%PDF-")

type pdfMutator struct {
	seed    []byte
	valid   bool
	rng     *rand.Rand
	generic *genericMutator
}

func newPDFMutator(seed []byte) *pdfMutator {
	return &pdfMutator{
		seed: cloneBytes(seed), valid: bytes.HasPrefix(seed, pdfMagic),
		rng: newRand(), generic: newGenericMutator(seed),
	}
}

func (m *pdfMutator) MutateBytes(b []byte) []byte {
	return mutateBytesWith(m.rng, b)
}

// Mutate inserts a synthesized indirect object at a random position, with
// probability 0.3 overwrites the first "xref" with a minimal valid xref,
// with probability 0.2 corrupts 7 bytes starting at "trailer", then applies
// 1-3 generic byte mutations.
func (m *pdfMutator) Mutate(base []byte) []byte {
	if !m.valid {
		return m.generic.MutateBytes(orSeed(base, m.seed))
	}

	out := cloneBytes(orSeed(base, m.seed))

	n := 8 + m.rng.IntN(57)
	stream := make([]byte, n)
	for i := range stream {
		stream[i] = byte(m.rng.IntN(256))
	}
	obj := []byte(fmt.Sprintf("\n%d 0 obj\n<< >>\nstream\n", 1+m.rng.IntN(1000)))
	obj = append(obj, stream...)
	obj = append(obj, []byte("\nendstream\nendobj\n")...)
	pos := m.rng.IntN(len(out) + 1)
	out = spliceInsert(out, pos, obj)

	if m.rng.Float64() < 0.3 {
		out = overwriteFirst(out, []byte("xref"), []byte("xref\n0 1\n0000000000 65535 f \n"))
	}
	if m.rng.Float64() < 0.2 {
		out = corruptAfter(out, []byte("trailer"), m.rng, 7)
	}

	ops := 1 + m.rng.IntN(3)
	for i := 0; i < ops; i++ {
		out = mutateBytesWith(m.rng, out)
	}
	return out
}

func overwriteFirst(b, find, replace []byte) []byte {
	idx := bytes.Index(b, find)
	if idx < 0 {
		return b
	}
	end := idx + len(find)
	out := make([]byte, 0, len(b)-len(find)+len(replace))
	out = append(out, b[:idx]...)
	out = append(out, replace...)
	out = append(out, b[end:]...)
	return out
}

func corruptAfter(b, find []byte, rng *rand.Rand, n int) []byte {
	idx := bytes.Index(b, find)
	if idx < 0 {
		return b
	}
	out := cloneBytes(b)
	for i := 0; i < n && idx+i < len(out); i++ {
		out[idx+i] = byte(rng.IntN(256))
	}
	return out
}

// DeterministicInputs covers version rewrites, missing %%EOF, truncation
// to 90/50/10%, a prepended bad-type object, a collapsed xref, a removed
// trailer, a duplicated trailer, and a fixed junk tail.
func (m *pdfMutator) DeterministicInputs() [][]byte {
	out := make([][]byte, 0, 16)

	for _, v := range []string{"1.0", "1.1", "1.2", "1.3", "1.4", "1.5", "1.6", "1.7"} {
		vb := append([]byte("%PDF-"+v), trimAfterFirstLine(m.seed)...)
		out = append(out, vb)
	}

	out = append(out, bytes.ReplaceAll(cloneBytes(m.seed), []byte("%%EOF"), nil))

	for _, pct := range []float64{0.9, 0.5, 0.1} {
		cut := int(float64(len(m.seed)) * pct)
		out = append(out, cloneBytes(m.seed[:cut]))
	}

	badObj := append([]byte("0 0 obj\n<< /Type /BadType >>\nendobj\n"), m.seed...)
	out = append(out, badObj)

	out = append(out, overwriteFirst(cloneBytes(m.seed), []byte("xref"), []byte("xref\n0 1\n")))
	out = append(out, bytes.ReplaceAll(cloneBytes(m.seed), []byte("trailer"), nil))
	out = append(out, append(cloneBytes(m.seed), []byte("\ntrailer\n<< >>\nstartxref\n0\n%%EOF\n")...))
	out = append(out, append(cloneBytes(m.seed), []byte("\n% junk tail covefuzz\n")...))

	return out
}

func trimAfterFirstLine(seed []byte) []byte {
	idx := bytes.IndexByte(seed, '\n')
	if idx < 0 {
		return nil
	}
	return seed[idx:]
}
