// Package triage computes crash fingerprints, deduplicates crash keys per
// target, and formats report entries.
package triage

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"

	"github.com/covefuzz/covefuzz/internal/runner"
)

// fingerprintSalt seeds the second xxhash64 pass so the two 64-bit halves
// of the 128-bit fingerprint are independent rather than the same value
// twice.
const fingerprintSalt = 0x636f_7665_6675_7a7a // "covefuzz" in hex-ish

// Fingerprint is the 128-bit crash fingerprint, formed from two xxhash64
// passes over the same material (one plain, one salted) concatenated
// into 16 bytes, rather than reaching for a wider or cryptographic hash.
type Fingerprint [16]byte

// Hex renders the fingerprint as the 32 hex characters used in report
// headers.
func (fp Fingerprint) Hex() string {
	return hex.EncodeToString(fp[:])
}

// FromCoverage fingerprints the post-exec coverage bitmap: the set of
// touched indices, in ascending order, concatenated as 4-byte
// little-endian integers.
func FromCoverage(cov map[int]struct{}) Fingerprint {
	indices := make([]int, 0, len(cov))
	for idx := range cov {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	buf := make([]byte, 0, len(indices)*4)
	for _, idx := range indices {
		buf = append(buf, byte(idx), byte(idx>>8), byte(idx>>16), byte(idx>>24))
	}
	return hashToFingerprint(buf)
}

// FromBehavior fingerprints (truncated_stdout || "|" || truncated_stderr)
// when no coverage channel is available.
func FromBehavior(stdout, stderr []byte) Fingerprint {
	buf := append(append(truncate4096(stdout), '|'), truncate4096(stderr)...)
	return hashToFingerprint(buf)
}

func truncate4096(b []byte) []byte {
	if len(b) > 4096 {
		b = b[:4096]
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func hashToFingerprint(buf []byte) Fingerprint {
	var fp Fingerprint
	h1 := xxhash.Sum64(buf)

	h2 := xxhash.New()
	var salt [8]byte
	for i := range salt {
		salt[i] = byte(fingerprintSalt >> (8 * i))
	}
	h2.Write(salt[:])
	h2.Write(buf)
	h2v := h2.Sum64()

	for i := 0; i < 8; i++ {
		fp[i] = byte(h1 >> (8 * i))
		fp[8+i] = byte(h2v >> (8 * i))
	}
	return fp
}

// Key is (signal, fingerprint) — uniqueness of this pair gates whether a
// crash gets reported.
type Key struct {
	Signal      int
	Fingerprint Fingerprint
}

// Dedup tracks the set of crash keys already reported for one target.
type Dedup struct {
	mu   sync.Mutex
	seen map[Key]struct{}
}

// NewDedup returns an empty per-target dedup set.
func NewDedup() *Dedup {
	return &Dedup{seen: make(map[Key]struct{})}
}

// Admit reports whether key has not been seen before, recording it either
// way.
func (d *Dedup) Admit(key Key) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[key]; ok {
		return false
	}
	d.seen[key] = struct{}{}
	return true
}

// Entry is one novel-crash report record, ready to be appended via
// internal/report.Store.
type Entry struct {
	Signal      int
	Fingerprint Fingerprint
	Input       []byte
}

// Format renders a report entry as a header line, the input bytes
// (best-effort UTF-8, Latin-1 fallback), and a trailing blank line.
func (e Entry) Format() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "---- crash signal=%d (%s) triage=%s ----\n", e.Signal, runner.SignalName(e.Signal), e.Fingerprint.Hex())
	buf.Write(decodeBestEffort(e.Input))
	buf.WriteString("\n\n")
	return buf.Bytes()
}

// decodeBestEffort returns input as-is if it's valid UTF-8; otherwise it
// re-encodes it byte-for-byte as Latin-1 code points (every byte maps to
// the Unicode code point of the same value), so the report file always
// contains well-formed UTF-8 text.
func decodeBestEffort(input []byte) []byte {
	if utf8.Valid(input) {
		return input
	}
	out := make([]rune, len(input))
	for i, b := range input {
		out[i] = rune(b)
	}
	return []byte(string(out))
}
