package convert

import (
	"log/slog"
	"regexp"

	"github.com/sn2notion/sn2notion/internal/blocks"
	"github.com/sn2notion/sn2notion/internal/convctx"
	"github.com/sn2notion/sn2notion/internal/diagnostics"
	"github.com/sn2notion/sn2notion/internal/htmldom"
	"github.com/sn2notion/sn2notion/internal/nesting"
)

// ConvertResult is Convert's return value: the flattened block payload,
// the marker map Orchestrate later drains, and the diagnostics report.
type ConvertResult struct {
	Payload     []*blocks.Block
	MarkerMap   map[string][]*blocks.Block
	Diagnostics diagnostics.AuditReport
}

var tagStripper = regexp.MustCompile(`<[^>]*>`)

// Convert runs the full extraction pipeline over raw HTML:
// NormalizeHTML → WalkDOM → EnforceNesting → Collect & Emit, and builds
// the diagnostics report from the conversion's audit counters. It is a
// pure, single-threaded transformation with no external I/O: per §10.2,
// it never returns an error for malformed or even empty input, only for
// the (very rare, given a permissive parser) case the HTML cannot be
// tokenized at all.
func Convert(html string, opts convctx.Options, logger *slog.Logger) (ConvertResult, error) {
	conv := convctx.New(opts, logger)
	conv.Audit.SourceTextChars = len([]rune(tagStripper.ReplaceAllString(html, " ")))

	nodes, err := htmldom.NormalizeHTML(conv, html)
	if err != nil {
		return ConvertResult{Diagnostics: diagnostics.Build(conv.Audit, diagnostics.DefaultAuditConfig(), 0, 0, []string{err.Error()})},
			&InputParseError{Cause: err}
	}

	roots := blocks.WalkTopLevel(conv, nodes, 0)
	roots = blocks.RepairOrphanLists(conv, roots)
	flattened := nesting.EnforceNesting(conv, roots)
	payload, markerMap := nesting.CollectAndEmit(flattened)

	conv.Audit.EmittedTextChars = countEmittedChars(payload, markerMap)
	conv.Audit.MarkersResolved = 0 // resolved only once Orchestrate runs

	tablesInCallouts, multiRowTables := complexityFeatures(payload, markerMap)
	report := diagnostics.Build(conv.Audit, diagnostics.DefaultAuditConfig(), tablesInCallouts, multiRowTables, nil)

	if conv.Logger != nil {
		conv.Logger.Debug("convert finished",
			slog.Int("blocks", len(payload)),
			slog.Int("markers", len(markerMap)),
			slog.Float64("coverage_ratio", report.CoverageRatio),
			slog.Bool("coverage_passed", report.CoveragePassed),
		)
	}

	return ConvertResult{Payload: payload, MarkerMap: markerMap, Diagnostics: report}, nil
}

func countEmittedChars(payload []*blocks.Block, markerMap map[string][]*blocks.Block) int {
	total := 0
	var walk func([]*blocks.Block)
	walk = func(list []*blocks.Block) {
		for _, b := range list {
			for _, r := range b.Runs {
				total += len([]rune(r.Content))
			}
			for _, r := range b.Caption {
				total += len([]rune(r.Content))
			}
			for _, row := range b.Rows {
				for _, cell := range row.Cells {
					for _, r := range cell {
						total += len([]rune(r.Content))
					}
				}
			}
			walk(b.Children)
		}
	}
	walk(payload)
	for _, deferred := range markerMap {
		walk(deferred)
	}
	return total
}

// complexityFeatures counts tables nested inside callouts and tables with
// more than four rows, the two feature counts the coverage band adapts
// against beyond marker count and total block count.
func complexityFeatures(payload []*blocks.Block, markerMap map[string][]*blocks.Block) (tablesInCallouts, multiRowTables int) {
	var walk func(b *blocks.Block, insideCallout bool)
	walk = func(b *blocks.Block, insideCallout bool) {
		if b.Kind == blocks.KindTable {
			if insideCallout {
				tablesInCallouts++
			}
			if len(b.Rows) > 4 {
				multiRowTables++
			}
		}
		childInsideCallout := insideCallout || b.Kind == blocks.KindCallout
		for _, c := range b.Children {
			walk(c, childInsideCallout)
		}
	}
	for _, b := range payload {
		walk(b, false)
	}
	for _, deferred := range markerMap {
		for _, b := range deferred {
			walk(b, false)
		}
	}
	return tablesInCallouts, multiRowTables
}
