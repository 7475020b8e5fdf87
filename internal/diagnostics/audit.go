// Package diagnostics turns a conversion's audit counters into the
// AuditReport the public entry point returns, computes the
// content-complexity-adapted coverage band those counters must clear, and
// persists both the report and the orchestration-resume state needed by a
// separate retry pass.
package diagnostics

import "github.com/sn2notion/sn2notion/internal/convctx"

// AuditReport is the user-visible diagnostics ConvertResult carries: block
// counts by kind, marker allocation/resolution, deferred-child and
// image-fallback counts, repairs applied, and a coverage verdict.
type AuditReport struct {
	BlocksByKind     map[string]int
	RepairsApplied   map[string]int
	MarkersAllocated int
	MarkersResolved  int
	DeferredChildren int
	ImageFallbacks   int

	SourceTextChars  int
	EmittedTextChars int
	CoverageRatio    float64
	CoverageBand     Band
	CoveragePassed   bool

	Errors []string
}

// Band is the expected [low, high] coverage ratio window for a document
// of a given complexity; computed per §13's "configurable coverage-audit
// bands" decision rather than a single hard-coded threshold.
type Band struct {
	Low  float64
	High float64
}

// AuditConfig supplies the base band and per-feature deltas that widen or
// shift it for complex documents. Config.Audit (see internal/config)
// carries the same fields and converts to this type, but convert.Convert
// always uses DefaultAuditConfig and does not read it. diagnostics never
// imports internal/config to keep this package free of YAML/env concerns.
type AuditConfig struct {
	BaseLow  float64
	BaseHigh float64

	// TablesInCalloutsDelta widens the band's low bound downward per table
	// nested in a callout, since such tables are hoisted to sidecars and
	// replaced with placeholder text, reducing apparent in-block coverage.
	TablesInCalloutsDelta float64
	// MultiRowTableDelta does the same per table with more than 4 rows.
	MultiRowTableDelta float64
	// DeepNestingDelta widens the band per marker allocated, since every
	// deferred subtree's text leaves the host block's own coverage count
	// until orchestration reattaches it.
	DeepNestingDelta float64
	// BlockCountDelta narrows the band back up slightly per 50 blocks,
	// since large documents average out local coverage noise.
	BlockCountDelta float64
}

// DefaultAuditConfig matches the distilled spec's description of the
// coverage audit: most documents should land comfortably inside roughly
// 70-100% of source text surviving into emitted runs, widened downward
// for known lossy constructs (table hoisting, deep-nesting deferral).
func DefaultAuditConfig() AuditConfig {
	return AuditConfig{
		BaseLow:               0.70,
		BaseHigh:              1.05,
		TablesInCalloutsDelta: 0.03,
		MultiRowTableDelta:    0.01,
		DeepNestingDelta:      0.01,
		BlockCountDelta:       0.01,
	}
}

// Build computes the AuditReport from a finished conversion's audit
// counters plus the feature counts needed to adapt the coverage band.
func Build(audit *convctx.AuditCounters, cfg AuditConfig, tablesInCallouts, multiRowTables int, errs []string) AuditReport {
	band := adaptBand(cfg, audit, tablesInCallouts, multiRowTables)

	ratio := 1.0
	if audit.SourceTextChars > 0 {
		ratio = float64(audit.EmittedTextChars) / float64(audit.SourceTextChars)
	}

	return AuditReport{
		BlocksByKind:     audit.BlocksByKind,
		RepairsApplied:   audit.RepairsApplied,
		MarkersAllocated: audit.MarkersAllocated,
		MarkersResolved:  audit.MarkersResolved,
		DeferredChildren: audit.DeferredChildren,
		ImageFallbacks:   audit.ImageUploadFallbacks,
		SourceTextChars:  audit.SourceTextChars,
		EmittedTextChars: audit.EmittedTextChars,
		CoverageRatio:    ratio,
		CoverageBand:     band,
		CoveragePassed:   ratio >= band.Low && ratio <= band.High,
		Errors:           errs,
	}
}

func adaptBand(cfg AuditConfig, audit *convctx.AuditCounters, tablesInCallouts, multiRowTables int) Band {
	low := cfg.BaseLow - float64(tablesInCallouts)*cfg.TablesInCalloutsDelta
	low -= float64(multiRowTables) * cfg.MultiRowTableDelta
	low -= float64(audit.MarkersAllocated) * cfg.DeepNestingDelta

	totalBlocks := 0
	for _, n := range audit.BlocksByKind {
		totalBlocks += n
	}
	low += float64(totalBlocks/50) * cfg.BlockCountDelta

	if low < 0 {
		low = 0
	}
	high := cfg.BaseHigh
	if high < low {
		high = low
	}
	return Band{Low: low, High: high}
}
