package mutate

import (
	"testing"

	"github.com/covefuzz/covefuzz/internal/detect"
)

func TestNewDispatchesByFormat(t *testing.T) {
	cases := []struct {
		format detect.Format
		seed   []byte
	}{
		{detect.FormatJSON, []byte(`{"a":1}`)},
		{detect.FormatCSV, []byte("a,b\n1,2\n")},
		{detect.FormatXML, []byte("<a>b</a>")},
		{detect.FormatJPEG, append([]byte{0xFF, 0xD8, 0xFF}, 0, 0, 0)},
		{detect.FormatELF, append([]byte{0x7F, 'E', 'L', 'F'}, make([]byte, 60)...)},
		{detect.FormatPDF, []byte("%PDF-1.4\n%%EOF")},
		{detect.FormatText, []byte("plain text")},
	}
	for _, c := range cases {
		m := New(c.format, c.seed)
		if m == nil {
			t.Fatalf("New(%s) returned nil", c.format)
		}
		if out := m.Mutate(nil); out == nil {
			t.Errorf("%s: Mutate(nil) returned nil", c.format)
		}
		if out := m.MutateBytes(c.seed); out == nil {
			t.Errorf("%s: MutateBytes returned nil", c.format)
		}
		if di := m.DeterministicInputs(); len(di) == 0 {
			t.Errorf("%s: DeterministicInputs returned empty slice", c.format)
		}
	}
}

func TestMutateBytesNeverEmptyOnEmptyInput(t *testing.T) {
	rng := newRand()
	out := mutateBytesWith(rng, nil)
	if len(out) == 0 {
		t.Fatal("mutateBytesWith(nil) must return at least one byte")
	}
}

func TestMutateBytesDoesNotAliasInput(t *testing.T) {
	rng := newRand()
	original := []byte("hello world")
	snapshot := append([]byte(nil), original...)
	for i := 0; i < 50; i++ {
		mutateBytesWith(rng, original)
	}
	if string(original) != string(snapshot) {
		t.Fatalf("mutateBytesWith mutated the caller's slice in place")
	}
}

func TestOverflowVariantsIncludeSeed(t *testing.T) {
	seed := []byte("abc")
	variants := overflowVariants(seed)
	if len(variants) != 5 {
		t.Fatalf("expected 5 overflow variants, got %d", len(variants))
	}
	for _, v := range variants {
		if len(v) < len(seed) {
			t.Errorf("variant shorter than seed: %q", v)
		}
	}
}
