package mutate

import (
	"bytes"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const (
	csvMaxFieldLen = 10000
	csvMaxFields   = 1000
)

// csvMutator holds the parsed header, data rows, and the original text, so
// random mutation can work on structured rows while deterministic
// generators can still manipulate the raw text directly.
type csvMutator struct {
	raw     []byte
	delim   byte
	header  []string
	rows    [][]string
	rng     *rand.Rand
	generic *genericMutator
}

func newCSVMutator(seed []byte) *csvMutator {
	delim := sniffDelimiter(seed)
	header, rows := splitCSV(seed, delim)
	return &csvMutator{
		raw: cloneBytes(seed), delim: delim, header: header, rows: rows,
		rng: newRand(), generic: newGenericMutator(seed),
	}
}

func sniffDelimiter(seed []byte) byte {
	probe := seed
	if len(probe) > 4096 {
		probe = probe[:4096]
	}
	best := byte(',')
	bestCount := -1
	for _, d := range []byte{',', ';', '\t', '|'} {
		count := bytes.Count(probe, []byte{d})
		if count > bestCount {
			bestCount = count
			best = d
		}
	}
	return best
}

func splitCSV(seed []byte, delim byte) ([]string, [][]string) {
	lines := strings.Split(strings.ReplaceAll(string(seed), "\r\n", "\n"), "\n")
	var header []string
	var rows [][]string
	for i, line := range lines {
		if line == "" && i == len(lines)-1 {
			continue
		}
		fields := strings.Split(line, string(delim))
		if len(fields) > csvMaxFields {
			fields = fields[:csvMaxFields]
		}
		for j, f := range fields {
			if len(f) > csvMaxFieldLen {
				fields[j] = f[:csvMaxFieldLen]
			}
		}
		if i == 0 {
			header = fields
		} else {
			rows = append(rows, fields)
		}
	}
	return header, rows
}

func (m *csvMutator) join(header []string, rows [][]string) []byte {
	var buf bytes.Buffer
	d := string(m.delim)
	buf.WriteString(strings.Join(header, d))
	for _, r := range rows {
		buf.WriteByte('\n')
		buf.WriteString(strings.Join(r, d))
	}
	return buf.Bytes()
}

func (m *csvMutator) MutateBytes(b []byte) []byte {
	return mutateBytesWith(m.rng, b)
}

// Mutate picks a random data row, mutates each field with probability 0.7,
// then with probability 0.3 drops or inserts an EXTRA_FIELD column, and
// with probability 0.2 appends 1-3 synthetic extra rows.
func (m *csvMutator) Mutate(base []byte) []byte {
	if len(m.rows) == 0 {
		return m.generic.MutateBytes(orSeed(base, m.raw))
	}

	row := cloneRow(m.rows[m.rng.IntN(len(m.rows))])
	for i, field := range row {
		if m.rng.Float64() < 0.7 {
			row[i] = m.mutateField(field)
		}
	}

	if m.rng.Float64() < 0.3 {
		if m.rng.IntN(2) == 0 {
			row = append(row, "EXTRA_FIELD")
		} else if len(row) > 0 {
			row = row[:len(row)-1]
		}
	}

	rows := [][]string{row}
	if m.rng.Float64() < 0.2 {
		n := 1 + m.rng.IntN(3)
		width := len(m.header) * 2
		if width <= 0 {
			width = 2
		}
		for i := 0; i < n; i++ {
			extra := make([]string, width)
			for j := range extra {
				extra[j] = fmt.Sprintf("x%d", j)
			}
			rows = append(rows, extra)
		}
	}

	return m.join(m.header, rows)
}

func (m *csvMutator) mutateField(field string) string {
	if n, err := strconv.ParseFloat(field, 64); err == nil {
		return m.numericEdge(n)
	}
	return m.stringEdge(field)
}

func (m *csvMutator) numericEdge(n float64) string {
	edges := []string{
		"0", "-0", "1", "-1",
		strconv.FormatInt(int64(1)<<31-1, 10), strconv.FormatInt(-(int64(1)<<31 - 1), 10),
		strconv.FormatInt(int64(1)<<62, 10), strconv.FormatInt(-(int64(1) << 62), 10),
		"1000000000", "1000000000000000000",
		"inf", "-inf", "nan",
		"1e308", "-1e308",
		strconv.FormatFloat(n+1, 'g', -1, 64),
		strconv.FormatFloat(n-1, 'g', -1, 64),
		strconv.FormatFloat(n*10, 'g', -1, 64),
		strconv.FormatFloat(n/10, 'g', -1, 64),
	}
	return edges[m.rng.IntN(len(edges))]
}

var csvStringEdges = []string{
	"", "'", "\"", strings.Repeat("A", 1000), strings.Repeat("A", 10000),
	"\x00", " \t\n", "\U0001F600", "‮",
}

func (m *csvMutator) stringEdge(field string) string {
	switch m.rng.IntN(10) {
	case 0, 1, 2, 3, 4, 5, 6, 7, 8:
		return csvStringEdges[m.rng.IntN(len(csvStringEdges))]
	default:
		switch m.rng.IntN(6) {
		case 0:
			return field + field
		case 1:
			return reverseString(field) + field
		case 2:
			return strings.ToUpper(field)
		case 3:
			return strings.ToLower(field)
		case 4:
			return strings.TrimSpace(field)
		default:
			return field + string(m.delim) + "\n\\"
		}
	}
}

func reverseString(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

// DeterministicInputs produces the canonical CSV edge-case corpus:
// empty-file, header-only, doubled/removed/trailing delimiters, mixed
// line endings, blank lines, truncation, unmatched quote, embedded
// newline, collapsed single line, duplicated/extended header, oversized
// cells, replicated extra-value rows, formula injection, BOM prefix,
// invalid bytes, and a content-hash-seeded row shuffle.
func (m *csvMutator) DeterministicInputs() [][]byte {
	d := string(m.delim)
	headerLine := strings.Join(m.header, d)
	var rowLines []string
	for _, r := range m.rows {
		rowLines = append(rowLines, strings.Join(r, d))
	}
	fullText := headerLine
	for _, l := range rowLines {
		fullText += "\n" + l
	}

	out := [][]byte{
		{},                                  // empty file
		[]byte(headerLine),                  // header only
		[]byte(strings.ReplaceAll(fullText, d, d+d)),          // doubled delimiters
		[]byte(strings.Replace(fullText, d, "", 1)),           // first delimiter removed
		[]byte(appendTrailingDelim(fullText, d)),              // trailing delimiter per line
		[]byte(strings.ReplaceAll(fullText, "\n", "\r")),      // \r line endings
		[]byte(strings.ReplaceAll(fullText, "\n", "\r\n")),    // \r\n line endings
		[]byte("\n\n" + fullText + "\n\n"),                    // leading/trailing blank lines
		[]byte(truncateMid(fullText)),                         // mid-file truncation
		[]byte(headerLine + "\n\"unterminated"),                // unmatched quote
		[]byte(headerLine + "\n\"embedded\nnewline\""),         // newline in quoted field
		[]byte(strings.ReplaceAll(fullText, "\n", d)),          // single-line collapse
		[]byte(headerLine + "\n" + headerLine),                 // duplicated header
		[]byte(headerLine + d + "extra"),                       // extra header column
		[]byte(headerLine + strings.Repeat(d+"x", 10000)),      // header extended by 10000 cols
		[]byte(headerLine + "\n\"" + strings.Repeat("A", 524288) + "\""), // very-long quoted first cell
		[]byte(headerLine + "\n" + strings.Join(repeatString(headerLine+strings.Repeat(d+"extra", 100), 100), "\n")), // 100 extra trailing values, replicated 100 times
		[]byte(headerLine + "\n" + "=cmd|'/bin/sh'!A1" + d + "x"),  // formula injection
		append([]byte{0xEF, 0xBB, 0xBF}, []byte(fullText)...),      // UTF-8 BOM prefix
		append([]byte(fullText), 0xFF, 0xFE),                       // invalid-byte appendix
		m.shuffledRows(),                                           // deterministic row shuffle
	}
	return out
}

func appendTrailingDelim(text, d string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = l + d
	}
	return strings.Join(lines, "\n")
}

func truncateMid(text string) string {
	if len(text) < 2 {
		return text
	}
	return text[:len(text)/2]
}

// shuffledRows shuffles data rows under a Fisher-Yates permutation driven
// by an RNG seeded from an xxhash64 of the seed bytes, so this one
// generator's output is reproducible across runs (unlike the rest of the
// random phase, which is nondeterministic by design).
func (m *csvMutator) shuffledRows() []byte {
	seedHash := xxhash.Sum64(m.raw)
	r := rand.New(rand.NewPCG(seedHash, seedHash>>1|1))

	rows := make([][]string, len(m.rows))
	for i, row := range m.rows {
		rows[i] = cloneRow(row)
	}
	r.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })

	return m.join(m.header, rows)
}

func cloneRow(row []string) []string {
	out := make([]string, len(row))
	copy(out, row)
	return out
}

func repeatString(s string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = s
	}
	return out
}
