package mutate

import (
	"encoding/json"
	"testing"
)

func TestJSONMutatorParsesValidSeed(t *testing.T) {
	m := newJSONMutator([]byte(`{"a":1,"b":[1,2,3]}`))
	if !m.parseOK {
		t.Fatal("expected valid JSON seed to parse")
	}
}

func TestJSONMutatorDegradesOnParseFailure(t *testing.T) {
	m := newJSONMutator([]byte(`not json at all {{{`))
	if m.parseOK {
		t.Fatal("expected malformed seed to fail parse")
	}
	out := m.Mutate(nil)
	if out == nil {
		t.Fatal("degraded Mutate returned nil")
	}
}

func TestJSONMutatorMutateProducesValue(t *testing.T) {
	m := newJSONMutator([]byte(`{"a":1,"b":{"c":2},"d":[1,2,3]}`))
	for i := 0; i < 25; i++ {
		out := m.Mutate(nil)
		if out == nil {
			t.Fatalf("iteration %d: Mutate returned nil", i)
		}
	}
}

func TestJSONMutatorDeterministicInputsCount(t *testing.T) {
	m := newJSONMutator([]byte(`{"a":1}`))
	inputs := m.DeterministicInputs()
	if len(inputs) != 6 {
		t.Fatalf("expected 6 deterministic generators, got %d", len(inputs))
	}
	for i, in := range inputs {
		if len(in) == 0 {
			t.Errorf("generator %d produced empty output", i)
		}
	}
}

func TestJSONMutatorDeterministicInputsKeyAugmentation(t *testing.T) {
	m := newJSONMutator([]byte(`{"a":1}`))
	inputs := m.DeterministicInputs()
	var decoded map[string]interface{}
	if err := json.Unmarshal(inputs[0], &decoded); err != nil {
		t.Fatalf("gen1 not valid JSON: %v", err)
	}
	if _, ok := decoded["k99"]; !ok {
		t.Fatal("expected gen1 to include the k0..k99 key augmentation")
	}
}

func TestJSONMutatorDeterministicInputsOnNonObjectSeed(t *testing.T) {
	m := newJSONMutator([]byte(`[1,2,3]`))
	inputs := m.DeterministicInputs()
	if len(inputs) != 6 {
		t.Fatalf("expected 6 deterministic generators even for a non-object seed, got %d", len(inputs))
	}
}

func TestJSONMalformedVariantIsNonEmpty(t *testing.T) {
	m := newJSONMutator([]byte(`{"a":1}`))
	for i := 0; i < 10; i++ {
		out := m.malformedVariant()
		if len(out) == 0 {
			t.Fatalf("iteration %d: malformedVariant produced empty output", i)
		}
	}
}

func TestJSONHeterogeneousListLength(t *testing.T) {
	list := jsonHeterogeneousList()
	if len(list) != 200 {
		t.Fatalf("expected 200 elements, got %d", len(list))
	}
}

func TestDeepCopyJSONDoesNotAlias(t *testing.T) {
	original := map[string]interface{}{"a": []interface{}{1, 2, 3}}
	copied := deepCopyJSON(original).(map[string]interface{})
	copied["a"].([]interface{})[0] = 99
	if original["a"].([]interface{})[0] == 99 {
		t.Fatal("deepCopyJSON must not alias nested slices")
	}
}
