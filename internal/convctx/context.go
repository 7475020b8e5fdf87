// Package convctx holds the per-conversion mutable state that the
// extraction pipeline threads through instead of relying on package-level
// globals: marker allocation, image/table de-duplication, placeholder
// restoration, and the audit counters that become the diagnostics report.
//
// Every Convert call gets its own *Conversion. Nothing here is shared
// across documents.
package convctx

import (
	"encoding/base32"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Options mirrors the spec's ConvertOptions: tunables the caller can
// override per call.
type Options struct {
	// StrictSourceOrder enables depth-first top-level traversal instead of
	// section-based collection when walking the DOM.
	StrictSourceOrder bool

	// PreserveUIControlsAsParagraphs keeps UI-chrome elements that would
	// otherwise be deny-listed, rendering them as plain paragraphs.
	PreserveUIControlsAsParagraphs bool

	// OrphanListRepair opts into the experimental heuristic that attaches
	// a trailing numbered list to a prior colon-terminated bullet.
	OrphanListRepair bool

	// ImageMinDimension filters <img> elements smaller than this (in
	// either dimension) as decorative icons.
	ImageMinDimension int

	// MaxRichTextRuns is the per-block rich-text run cap.
	MaxRichTextRuns int

	// MaxContentChars is the per-run content length cap.
	MaxContentChars int
}

// DefaultOptions returns the spec's documented defaults.
func DefaultOptions() Options {
	return Options{
		StrictSourceOrder:              false,
		PreserveUIControlsAsParagraphs: false,
		OrphanListRepair:               false,
		ImageMinDimension:              64,
		MaxRichTextRuns:                100,
		MaxContentChars:                2000,
	}
}

// AuditCounters accumulates the facts that become the diagnostics report.
// All fields are plain counters mutated only from the single-threaded DOM
// walk; they are not safe for concurrent use (nothing in WalkDOM is
// concurrent, so this is intentional).
type AuditCounters struct {
	BlocksByKind       map[string]int
	RepairsApplied     map[string]int
	MarkersAllocated   int
	MarkersResolved    int
	DeferredChildren   int
	ImageUploadFallbacks int
	SourceTextChars    int
	EmittedTextChars   int
}

// NewAuditCounters returns a zeroed counters set with its maps initialized.
func NewAuditCounters() *AuditCounters {
	return &AuditCounters{
		BlocksByKind:   make(map[string]int),
		RepairsApplied: make(map[string]int),
	}
}

func (a *AuditCounters) recordBlock(kind string) {
	a.BlocksByKind[kind]++
}

// RecordBlock records that one block of the given kind was emitted.
func (a *AuditCounters) RecordBlock(kind string) { a.recordBlock(kind) }

// RecordRepair records that a NormalizeHTML repair fired once.
func (a *AuditCounters) RecordRepair(name string) {
	a.RepairsApplied[name]++
}

// markerAlphabet avoids HTML-significant characters and Unicode format
// characters, per the marker-token invariant.
const markerAlphabet = "abcdefghijklmnopqrstuvwxyz234567"

var markerEncoding = base32.NewEncoding(markerAlphabet).WithPadding(base32.NoPadding)

// MarkerAllocator hands out globally-unique marker tokens within one
// conversion. Safe for concurrent use, though extraction itself is
// single-threaded.
//
// Tokens are the monotonic counter alone, with no randomness mixed in:
// per-conversion uniqueness only ever needs the counter (§3 invariant 4 /
// §4.6), and §8 invariant 4 requires the same input, run twice with the
// same configuration, to produce byte-identical output — which a
// crypto/rand-seeded token would break.
type MarkerAllocator struct {
	mu sync.Mutex
	n  uint64
}

// Next allocates a fresh marker token.
func (m *MarkerAllocator) Next() string {
	m.mu.Lock()
	m.n++
	seq := m.n
	m.mu.Unlock()

	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(seq >> (8 * i))
	}
	return markerEncoding.EncodeToString(buf[:])
}

// Conversion is the explicit replacement for module-level mutable state:
// everything that WalkDOM, the tokenizer, and the nesting enforcer need to
// share lives here, scoped to one Convert call.
type Conversion struct {
	Options Options
	Logger  *slog.Logger

	Markers *MarkerAllocator
	Audit   *AuditCounters

	// seenImageURLs de-duplicates Image blocks with source = External(U):
	// at most one Image per distinct source URL per conversion.
	seenImageURLs map[string]bool

	// seenTableFingerprints de-duplicates tables by an (id + first-100-chars)
	// fingerprint to suppress accidental re-emission from malformed HTML.
	seenTableFingerprints map[string]bool

	// placeholders maps a sentinel token (substituted for an
	// angle-bracket placeholder like <plugin-name> before parsing) back to
	// its original literal text, restored at the end of tokenization.
	placeholders map[string]string
	placeholderSeq int
}

// New creates a fresh Conversion for one Convert call.
func New(opts Options, logger *slog.Logger) *Conversion {
	if logger == nil {
		logger = slog.Default()
	}
	return &Conversion{
		Options:               opts,
		Logger:                logger,
		Markers:               &MarkerAllocator{},
		Audit:                 NewAuditCounters(),
		seenImageURLs:         make(map[string]bool),
		seenTableFingerprints: make(map[string]bool),
		placeholders:          make(map[string]string),
	}
}

// SeenImageURL reports whether source URL u has already produced an Image
// block in this conversion, and marks it seen.
func (c *Conversion) SeenImageURL(u string) bool {
	if c.seenImageURLs[u] {
		return true
	}
	c.seenImageURLs[u] = true
	return false
}

// SeenTableFingerprint reports whether fingerprint fp has already been
// emitted as a Table block in this conversion, and marks it seen.
func (c *Conversion) SeenTableFingerprint(fp string) bool {
	if c.seenTableFingerprints[fp] {
		return true
	}
	c.seenTableFingerprints[fp] = true
	return false
}

// ProtectPlaceholder registers original as the text to restore for a
// sentinel substituted during normalization, returning the sentinel.
func (c *Conversion) ProtectPlaceholder(original string) string {
	c.placeholderSeq++
	sentinel := fmt.Sprintf("PH%04d", c.placeholderSeq)
	c.placeholders[sentinel] = original
	return sentinel
}

// RestorePlaceholders replaces every registered sentinel in s with its
// original literal text.
func (c *Conversion) RestorePlaceholders(s string) string {
	if len(c.placeholders) == 0 {
		return s
	}
	for sentinel, original := range c.placeholders {
		if !strings.Contains(s, sentinel) {
			continue
		}
		s = strings.ReplaceAll(s, sentinel, original)
	}
	return s
}
