package detect

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBytesJSON(t *testing.T) {
	if got := Bytes([]byte(`{"a": 1, "b": [1,2,3]}`)); got != FormatJSON {
		t.Fatalf("got %s, want json", got)
	}
}

func TestBytesXML(t *testing.T) {
	if got := Bytes([]byte(`<root><child attr="x">text</child></root>`)); got != FormatXML {
		t.Fatalf("got %s, want xml", got)
	}
}

func TestBytesCSV(t *testing.T) {
	if got := Bytes([]byte("a,b,c\n1,2,3\n4,5,6\n")); got != FormatCSV {
		t.Fatalf("got %s, want csv", got)
	}
}

func TestBytesCSVSemicolon(t *testing.T) {
	if got := Bytes([]byte("a;b;c\n1;2;3\n")); got != FormatCSV {
		t.Fatalf("got %s, want csv", got)
	}
}

func TestBytesJPEG(t *testing.T) {
	data := append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, make([]byte, 20)...)
	if got := Bytes(data); got != FormatJPEG {
		t.Fatalf("got %s, want jpeg", got)
	}
}

func TestBytesELF(t *testing.T) {
	data := append([]byte{0x7F, 'E', 'L', 'F'}, make([]byte, 60)...)
	if got := Bytes(data); got != FormatELF {
		t.Fatalf("got %s, want elf", got)
	}
}

func TestBytesPDF(t *testing.T) {
	data := []byte("%PDF-1.4\n%%EOF")
	if got := Bytes(data); got != FormatPDF {
		t.Fatalf("got %s, want pdf", got)
	}
}

func TestBytesPlainText(t *testing.T) {
	if got := Bytes([]byte("just some plain text with no structure")); got != FormatText {
		t.Fatalf("got %s, want text", got)
	}
}

func TestBytesEmpty(t *testing.T) {
	if got := Bytes(nil); got != FormatText {
		t.Fatalf("got %s, want text for empty input", got)
	}
}

func TestBytesSingleColumnNotCSV(t *testing.T) {
	if got := Bytes([]byte("one\ntwo\nthree\n")); got == FormatCSV {
		t.Fatalf("single-column input should not classify as csv")
	}
}

func TestFileReadsAndClassifies(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seed.json")
	if err := os.WriteFile(path, []byte(`{"ok": true}`), 0644); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	got, err := File(path)
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if got != FormatJSON {
		t.Fatalf("got %s, want json", got)
	}
}

func TestFileMissing(t *testing.T) {
	if _, err := File("/nonexistent/seed/path"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
