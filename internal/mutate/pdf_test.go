package mutate

import "testing"

const pdfSeed = "%PDF-1.4\n1 0 obj\n<< >>\nendobj\nxref\n0 1\n0000000000 65535 f \ntrailer\n<< /Root 1 0 R >>\nstartxref\n0\n%%EOF\n"

func TestPDFMutatorValidMagic(t *testing.T) {
	m := newPDFMutator([]byte(pdfSeed))
	if !m.valid {
		t.Fatal("expected seed with %PDF- magic to be recognized as valid")
	}
}

func TestPDFMutatorInvalidMagicDegradesToGeneric(t *testing.T) {
	m := newPDFMutator([]byte("not a pdf"))
	if m.valid {
		t.Fatal("expected non-PDF seed to be marked invalid")
	}
	if out := m.Mutate(nil); out == nil {
		t.Fatal("degraded Mutate returned nil")
	}
}

func TestPDFMutatorMutateInsertsObject(t *testing.T) {
	m := newPDFMutator([]byte(pdfSeed))
	for i := 0; i < 20; i++ {
		out := m.Mutate(nil)
		if len(out) <= len(pdfSeed) {
			t.Fatalf("iteration %d: expected mutation to grow the input via object insertion", i)
		}
	}
}

func TestPDFMutatorDeterministicInputsCount(t *testing.T) {
	m := newPDFMutator([]byte(pdfSeed))
	inputs := m.DeterministicInputs()
	if len(inputs) != 17 {
		t.Fatalf("expected 17 deterministic generators, got %d", len(inputs))
	}
}

func TestOverwriteFirst(t *testing.T) {
	out := overwriteFirst([]byte("abc xref def"), []byte("xref"), []byte("XREF!"))
	if string(out) != "abc XREF! def" {
		t.Fatalf("unexpected overwrite result: %q", out)
	}
}

func TestOverwriteFirstNoMatch(t *testing.T) {
	in := []byte("no match here")
	out := overwriteFirst(in, []byte("xref"), []byte("X"))
	if string(out) != string(in) {
		t.Fatal("expected no-op when find string is absent")
	}
}
