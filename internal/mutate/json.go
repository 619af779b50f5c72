package mutate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strings"
)

const (
	jsonMaxListLen  = 10000
	jsonMaxDepth    = 5
	jsonMalformedP  = 0.2
	jsonDescendProb = 0.5
)

// jsonMutator owns the seed's parsed tree. If the seed fails to parse, it
// degrades to generic byte mutation for Mutate instead of erroring out.
type jsonMutator struct {
	seed      []byte
	parsed    interface{}
	parseOK   bool
	generic   *genericMutator
	rng       *rand.Rand
}

func newJSONMutator(seed []byte) *jsonMutator {
	m := &jsonMutator{seed: cloneBytes(seed), rng: newRand(), generic: newGenericMutator(seed)}
	dec := json.NewDecoder(bytes.NewReader(seed))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err == nil {
		m.parsed = v
		m.parseOK = true
	}
	return m
}

func (m *jsonMutator) MutateBytes(b []byte) []byte {
	return mutateBytesWith(m.rng, b)
}

func (m *jsonMutator) Mutate(base []byte) []byte {
	if !m.parseOK {
		return m.generic.MutateBytes(orSeed(base, m.seed))
	}

	if m.rng.Float64() < jsonMalformedP {
		return m.malformedVariant()
	}

	tree := deepCopyJSON(m.parsed)
	ops := 1 + m.rng.IntN(3)
	for i := 0; i < ops; i++ {
		tree = m.mutateValue(tree, 0)
	}

	out, err := json.Marshal(tree)
	if err != nil {
		return m.canned("{\"__covefuzz_serialize_fallback\":true}")
	}
	return out
}

// DeterministicInputs produces six canonical edge-case generators, in
// order. If the seed did not parse as an object the object-shaped
// generators degrade to wrapping the raw bytes instead.
func (m *jsonMutator) DeterministicInputs() [][]byte {
	obj, isObj := m.parsed.(map[string]interface{})
	if !m.parseOK || !isObj {
		obj = map[string]interface{}{"seed": string(m.seed)}
	}

	gen1 := cloneMap(obj)
	for i := 0; i < 100; i++ {
		gen1[fmt.Sprintf("k%d", i)] = i
	}

	var gen2 interface{} = obj
	for i := 19; i >= 0; i-- {
		gen2 = map[string]interface{}{fmt.Sprintf("n%d", i): gen2}
	}

	gen3 := cloneMap(obj)
	gen3["big"] = json.Number(strings.Repeat("9", 200))

	gen4 := jsonHeterogeneousList()

	gen5 := m.malformedVariant()

	gen6 := cloneMap(obj)
	removed := 0
	for k := range gen6 {
		if removed >= 3 {
			break
		}
		delete(gen6, k)
		removed++
	}
	gen6["\U0001F600‮"] = "edge"

	out := make([][]byte, 0, 6)
	out = append(out, m.mustMarshal(gen1))
	out = append(out, m.mustMarshal(gen2))
	out = append(out, m.mustMarshal(gen3))
	out = append(out, m.mustMarshal(gen4))
	out = append(out, gen5)
	out = append(out, m.mustMarshal(gen6))
	return out
}

func (m *jsonMutator) mustMarshal(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return m.canned("null")
	}
	return b
}

func (m *jsonMutator) canned(s string) []byte {
	return []byte(s)
}

// malformedVariant produces one of several broken serializations: a
// truncated tail, a mismatched closing bracket, a removed '{', stripped
// quotes, or trailing control/bidi-override bytes.
func (m *jsonMutator) malformedVariant() []byte {
	base := m.seed
	if m.parseOK {
		if b, err := json.Marshal(m.parsed); err == nil {
			base = b
		}
	}
	if len(base) == 0 {
		base = []byte("{}")
	}

	switch m.rng.IntN(5) {
	case 0: // truncate tail
		cut := len(base) / 2
		if cut == 0 {
			cut = 1
		}
		return base[:cut]
	case 1: // mismatched closing bracket
		return append(cloneBytes(base), ']', '}')
	case 2: // remove a random '{'
		idx := bytes.IndexByte(base, '{')
		if idx < 0 {
			return append(cloneBytes(base), 0x00)
		}
		out := make([]byte, 0, len(base)-1)
		out = append(out, base[:idx]...)
		out = append(out, base[idx+1:]...)
		return out
	case 3: // strip quotes
		return bytes.ReplaceAll(base, []byte(`"`), []byte(``))
	default: // append control + bidi-override
		return append(cloneBytes(base), 0x00, 0xE2, 0x80, 0xAE)
	}
}

func orSeed(base, seed []byte) []byte {
	if base != nil {
		return base
	}
	return seed
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = deepCopyJSON(v)
	}
	return out
}

func deepCopyJSON(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return cloneMap(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = deepCopyJSON(e)
		}
		return out
	default:
		return v
	}
}

var jsonEdgeStrings = []string{
	"", "‮evil", "\U0001F600", "\xED\xB0\x80", strings.Repeat("a", 10000),
	"null", "true", "\"quoted\"", "\x00embedded", "../../etc/passwd",
}

func jsonHeterogeneousList() []interface{} {
	out := make([]interface{}, 0, 200)
	for i := 0; i < 50; i++ {
		out = append(out, jsonEdgeStrings[i%len(jsonEdgeStrings)])
	}
	for i := 0; i < 50; i++ {
		out = append(out, json.Number(strings.Repeat("9", 1+i%40)))
	}
	for i := 0; i < 50; i++ {
		out = append(out, map[string]interface{}{"i": i, "nested": map[string]interface{}{"v": i}})
	}
	for i := 0; i < 50; i++ {
		switch i % 4 {
		case 0:
			out = append(out, nil)
		case 1:
			out = append(out, true)
		case 2:
			out = append(out, json.Number("1e400"))
		default:
			out = append(out, []interface{}{i, i + 1})
		}
	}
	return out
}

// mutateValue recursively applies 1 of {add key, modify key, delete key,
// swap two keys, flip a value's type} to objects (list mutations mirror
// dict ones: modify, delete, swap), descending into children with
// probability jsonDescendProb up to jsonMaxDepth.
func (m *jsonMutator) mutateValue(v interface{}, depth int) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return m.mutateObject(t, depth)
	case []interface{}:
		return m.mutateList(t, depth)
	default:
		return m.randomEdgeValue()
	}
}

func (m *jsonMutator) mutateObject(obj map[string]interface{}, depth int) map[string]interface{} {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}

	switch m.rng.IntN(5) {
	case 0: // add key
		obj[fmt.Sprintf("new_%d", m.rng.IntN(1<<30))] = m.randomEdgeValue()
	case 1: // modify key
		if len(keys) > 0 {
			obj[keys[m.rng.IntN(len(keys))]] = m.randomEdgeValue()
		}
	case 2: // delete key
		if len(keys) > 0 {
			delete(obj, keys[m.rng.IntN(len(keys))])
		}
	case 3: // swap two keys
		if len(keys) >= 2 {
			a, b := keys[m.rng.IntN(len(keys))], keys[m.rng.IntN(len(keys))]
			obj[a], obj[b] = obj[b], obj[a]
		}
	case 4: // flip a value's type
		if len(keys) > 0 {
			obj[keys[m.rng.IntN(len(keys))]] = m.randomEdgeValue()
		}
	}

	if depth < jsonMaxDepth {
		for _, k := range keys {
			if m.rng.Float64() < jsonDescendProb {
				if _, exists := obj[k]; exists {
					obj[k] = m.mutateValue(obj[k], depth+1)
				}
			}
		}
	}
	return obj
}

func (m *jsonMutator) mutateList(list []interface{}, depth int) []interface{} {
	switch m.rng.IntN(3) {
	case 0: // modify
		if len(list) > 0 {
			list[m.rng.IntN(len(list))] = m.randomEdgeValue()
		}
	case 1: // delete
		if len(list) > 0 {
			i := m.rng.IntN(len(list))
			list = append(list[:i], list[i+1:]...)
		}
	case 2: // swap
		if len(list) >= 2 {
			i, j := m.rng.IntN(len(list)), m.rng.IntN(len(list))
			list[i], list[j] = list[j], list[i]
		}
	}
	if len(list) < jsonMaxListLen && m.rng.Float64() < 0.1 {
		list = append(list, m.randomEdgeValue())
	}

	if depth < jsonMaxDepth {
		for i := range list {
			if m.rng.Float64() < jsonDescendProb {
				list[i] = m.mutateValue(list[i], depth+1)
			}
		}
	}
	return list
}

func (m *jsonMutator) randomEdgeValue() interface{} {
	switch m.rng.IntN(8) {
	case 0:
		return nil
	case 1:
		return m.rng.IntN(2) == 0
	case 2:
		return jsonEdgeStrings[m.rng.IntN(len(jsonEdgeStrings))]
	case 3:
		return json.Number(strings.Repeat("9", 1+m.rng.IntN(100)))
	case 4:
		return map[string]interface{}{"n": m.rng.IntN(100)}
	case 5:
		return []interface{}{1, 2, 3}
	case 6:
		return m.rng.Float64() * 1e10
	default:
		return json.Number("NaN")
	}
}
