package mutate

import (
	"math/rand/v2"
	"strings"
)

// xmlMutator does no full parse; it works purely at the text level.
type xmlMutator struct {
	seed []byte
	rng  *rand.Rand
}

func newXMLMutator(seed []byte) *xmlMutator {
	return &xmlMutator{seed: cloneBytes(seed), rng: newRand()}
}

func (m *xmlMutator) MutateBytes(b []byte) []byte {
	return mutateBytesWith(m.rng, b)
}

// Mutate picks one of five text-level transforms: escape the first closing
// tag, inject a stray quote, wrap as a comment, wrap in <root>, or append a
// self-closing tag with a long name.
func (m *xmlMutator) Mutate(base []byte) []byte {
	s := string(orSeed(base, m.seed))

	switch m.rng.IntN(5) {
	case 0:
		return []byte(strings.Replace(s, "</", `<\/`, 1))
	case 1:
		idx := strings.Index(s, `="`)
		if idx < 0 {
			return []byte(s + `="`)
		}
		return []byte(s[:idx+2] + `"` + s[idx+2:])
	case 2:
		body := s
		if len(body) > 1000 {
			body = body[:1000]
		}
		return []byte("<!--" + body + "-->")
	case 3:
		return []byte("<root>" + s + "</root>")
	default:
		n := 10 + m.rng.IntN(191)
		tagName := strings.Repeat("x", n)
		return append([]byte(s), []byte("<"+tagName+"/>")...)
	}
}

func (m *xmlMutator) DeterministicInputs() [][]byte {
	s := string(m.seed)
	out := [][]byte{
		{},
		[]byte(strings.Replace(s, "</", `<\/`, 1)),
		[]byte("<!--" + s + "-->"),
		[]byte("<root>" + s + "</root>"),
		append(cloneBytes(m.seed), []byte("<"+strings.Repeat("x", 50)+"/>")...),
	}
	out = append(out, overflowVariants(m.seed)...)
	return out
}
