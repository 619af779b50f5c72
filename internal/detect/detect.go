// Package detect classifies a seed file into the format tag that selects
// which mutator variant a target gets fuzzed with.
package detect

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"io"
	"os"
	"strings"
)

// Format is one of the seven tags the fuzzer dispatches mutators on.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXML  Format = "xml"
	FormatJPEG Format = "jpeg"
	FormatELF  Format = "elf"
	FormatPDF  Format = "pdf"
	FormatText Format = "text"
)

const (
	magicProbeLen = 8192
	textProbeLen  = 4096
)

var (
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
	elfMagic  = []byte{0x7F, 0x45, 0x4C, 0x46}
	pdfMagic  = []byte("%PDF-")
)

// File reads up to the magic-byte probe window from path and classifies it.
// A file that cannot be opened returns FormatText together with the open
// error. Once the file is open, a short or failed read is not an error: the
// bytes read so far (possibly none) are classified as they are.
func File(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return FormatText, err
	}
	defer f.Close()

	probe := make([]byte, magicProbeLen)
	n, _ := io.ReadFull(f, probe)
	probe = probe[:n]

	return Bytes(probe), nil
}

// Bytes classifies an in-memory probe. Only the leading bytes (up to the
// detector's probe windows) are consulted; callers may pass a full seed or
// just its prefix.
func Bytes(probe []byte) Format {
	if bytes.HasPrefix(probe, jpegMagic) {
		return FormatJPEG
	}
	if bytes.HasPrefix(probe, elfMagic) {
		return FormatELF
	}
	if bytes.HasPrefix(probe, pdfMagic) {
		return FormatPDF
	}

	textWindow := probe
	if len(textWindow) > textProbeLen {
		textWindow = textWindow[:textProbeLen]
	}
	text := string(bytes.ToValidUTF8(textWindow, []byte{0xEF, 0xBF, 0xBD}))

	if looksLikeJSON(text) {
		return FormatJSON
	}
	if looksLikeXML(strings.TrimSpace(text)) {
		return FormatXML
	}
	if looksLikeCSV(text) {
		return FormatCSV
	}
	return FormatText
}

func looksLikeJSON(s string) bool {
	if strings.TrimSpace(s) == "" {
		return false
	}
	var v interface{}
	return json.Unmarshal([]byte(s), &v) == nil
}

// looksLikeXML requires a root element, rejecting any non-whitespace
// character data before it — the same thing a strict single-root parse
// (e.g. ET.fromstring) enforces and xml.Decoder.Token alone does not: a
// bare CharData stream with no markup still reaches io.EOF without error.
func looksLikeXML(s string) bool {
	if s == "" {
		return false
	}
	dec := xml.NewDecoder(strings.NewReader(s))
	sawRoot := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return sawRoot
		}
		if err != nil {
			return false
		}
		switch t := tok.(type) {
		case xml.StartElement:
			sawRoot = true
		case xml.CharData:
			if !sawRoot && len(bytes.TrimSpace(t)) > 0 {
				return false
			}
		}
	}
}

// looksLikeCSV sniffs a dialect by attempting a strict parse with comma,
// then semicolon, then tab delimiters; success on any is a CSV match. A
// single-column, single-row file (no delimiter at all) is not considered a
// CSV match — it falls through to text.
func looksLikeCSV(s string) bool {
	if strings.TrimSpace(s) == "" {
		return false
	}
	for _, delim := range []rune{',', ';', '\t'} {
		r := csv.NewReader(strings.NewReader(s))
		r.Comma = delim
		r.FieldsPerRecord = -1
		r.LazyQuotes = true
		records, err := r.ReadAll()
		if err != nil {
			continue
		}
		if len(records) >= 2 && len(records[0]) >= 2 {
			return true
		}
	}
	return false
}
