package convert

import (
	"context"
	"log/slog"

	"github.com/jomei/notionapi"

	"github.com/sn2notion/sn2notion/internal/blocks"
	"github.com/sn2notion/sn2notion/internal/workerpool"
)

// ImageUploader is the out-of-scope collaborator §6 names: given a source
// URL and alt text, it returns an opaque upload id, or an error the core
// recovers from locally by falling back to an External(url) image source.
type ImageUploader interface {
	Upload(ctx context.Context, url, altText string) (uploadID string, err error)
}

// BlockStore is the out-of-scope block-submission collaborator §6 names.
// Implementations are expected to be rate-limited internally; callers
// retry on the transient ConvertError categories via Do.
type BlockStore interface {
	CreatePage(ctx context.Context, payload []notionapi.Block) (pageID string, persisted []notionapi.Block, err error)
	AppendChildren(ctx context.Context, parentID string, children []notionapi.Block) (persisted []notionapi.Block, err error)
	UpdateRichText(ctx context.Context, blockID string, host notionapi.Block, runs []notionapi.RichText) error
}

// ContentValidator is the independent coverage collaborator §6 names; it
// is never required for Convert or Orchestrate to function.
type ContentValidator interface {
	Compare(ctx context.Context, sourceHTML, persistedTreeRef string) (CoverageReport, error)
}

// CoverageReport is ContentValidator's result shape.
type CoverageReport struct {
	MatchedChars int
	TotalChars   int
	Notes        []string
}

// MarkerResolution records what happened appending one marker's deferred
// subtree, for the caller to persist via internal/diagnostics and for an
// orchestrate-retry pass to act on.
type MarkerResolution struct {
	Marker   string
	HostID   string
	Resolved bool
	Err      error
}

// Orchestrate appends every marker map entry to its host block after the
// initial payload has been persisted. Each marker is one task: its
// deferred blocks are appended to its host in their marker-map order, and
// that marker's rich-text-strip update is only issued once its append
// succeeds. Tasks run up to concurrency at a time and are taken in map
// iteration order, which is unspecified; markers that share a host are
// not serialized against one another, so their appends to that host land
// in no defined order.
// hosts maps a marker token to the HostInfo of the block that carries it
// in the persisted tree — the caller builds this with ResolveHostIDs from
// its own CreatePage response, since the core's in-memory Block values
// carry no store-assigned ids.
func Orchestrate(ctx context.Context, store BlockStore, policy RetryPolicy, concurrency int, markerMap map[string][]*blocks.Block, hosts map[string]HostInfo, logger *slog.Logger) []MarkerResolution {
	if logger == nil {
		logger = slog.Default()
	}

	markers := make([]string, 0, len(markerMap))
	for m := range markerMap {
		markers = append(markers, m)
	}

	pool := workerpool.New(concurrency)
	tasks := workerpool.Process(ctx, pool, markers, func(ctx context.Context, marker string) (MarkerResolution, error) {
		host, ok := hosts[marker]
		if !ok {
			return MarkerResolution{Marker: marker, Resolved: false}, nil
		}
		return appendMarker(ctx, store, policy, marker, host, markerMap[marker], logger), nil
	})

	out := make([]MarkerResolution, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Result)
	}
	return out
}

// PendingMarker is one unresolved marker's durable resume state, as loaded
// from internal/diagnostics by an orchestrate-retry pass: the host id and
// the deferred subtree, but not the in-memory notionapi.Block the initial
// CreatePage response carried (that value is never persisted), which is
// why resuming needs a BlockFetcher to re-fetch the host.
type PendingMarker struct {
	Marker   string
	HostID   string
	Children []*blocks.Block
}

// BlockFetcher is the collaborator a resumed orchestration pass needs that
// a fresh one does not: ResolveHostIDs normally supplies the host block's
// current value straight from the CreatePage/AppendChildren echo, but a
// process resuming from internal/diagnostics only has a host id on disk.
type BlockFetcher interface {
	GetBlock(ctx context.Context, blockID string) (notionapi.Block, error)
}

// ResumeOrchestrate re-appends every PendingMarker's deferred subtree to
// its host, fetching each host's current block value via fetcher since the
// resuming process has no in-memory echo of it. Otherwise identical to
// Orchestrate: appends to distinct hosts run concurrently, the rich-text
// strip only follows a successful append, and failures leave the marker
// token in place rather than aborting the whole pass.
func ResumeOrchestrate(ctx context.Context, store BlockStore, fetcher BlockFetcher, policy RetryPolicy, concurrency int, pending []PendingMarker, logger *slog.Logger) []MarkerResolution {
	if logger == nil {
		logger = slog.Default()
	}

	pool := workerpool.New(concurrency)
	tasks := workerpool.Process(ctx, pool, pending, func(ctx context.Context, p PendingMarker) (MarkerResolution, error) {
		block, err := fetcher.GetBlock(ctx, p.HostID)
		if err != nil {
			logger.Warn("resume: failed to fetch host block",
				slog.String("marker", p.Marker), slog.String("host_id", p.HostID), slog.Any("error", err))
			return MarkerResolution{Marker: p.Marker, HostID: p.HostID, Resolved: false,
				Err: &OrchestrationAppendFailed{HostID: p.HostID, Marker: p.Marker, Cause: err}}, nil
		}
		host := HostInfo{ID: p.HostID, Block: block}
		return appendMarker(ctx, store, policy, p.Marker, host, p.Children, logger), nil
	})

	out := make([]MarkerResolution, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Result)
	}
	return out
}

// appendMarker runs the append-then-strip sequence §4.8 describes for one
// marker against its already-resolved host, shared by a fresh Orchestrate
// pass and a resumed one.
func appendMarker(ctx context.Context, store BlockStore, policy RetryPolicy, marker string, host HostInfo, deferred []*blocks.Block, logger *slog.Logger) MarkerResolution {
	children := WireBlocks(deferred)
	var appendErr error
	err := Do(ctx, policy, func(attempt int) error {
		_, err := store.AppendChildren(ctx, host.ID, children)
		if err != nil {
			appendErr = err
			logger.Warn("orchestration append attempt failed",
				slog.String("marker", marker), slog.String("host_id", host.ID),
				slog.Int("attempt", attempt), slog.Any("error", err))
		}
		return err
	})
	if err != nil {
		return MarkerResolution{Marker: marker, HostID: host.ID, Resolved: false,
			Err: &OrchestrationAppendFailed{HostID: host.ID, Marker: marker, Cause: appendErr}}
	}

	if updateErr := store.UpdateRichText(ctx, host.ID, host.Block, StripMarker(host.Block, marker)); updateErr != nil {
		logger.Warn("marker strip update failed",
			slog.String("marker", marker), slog.String("host_id", host.ID), slog.Any("error", updateErr))
	}
	return MarkerResolution{Marker: marker, HostID: host.ID, Resolved: true}
}

// UploadImages runs uploader.Upload over every image-sourced block in
// payload with bounded concurrency (default 4, per §5), rewriting each
// block's Source to Upload(id) on success and leaving External(url) in
// place on failure — the documented fallback. It mutates payload in
// place and returns the count of fallbacks for diagnostics.
func UploadImages(ctx context.Context, uploader ImageUploader, concurrency int, payload []*blocks.Block) int {
	var imgBlocks []*blocks.Block
	var collect func([]*blocks.Block)
	collect = func(list []*blocks.Block) {
		for _, b := range list {
			if b.Kind == blocks.KindImage && b.Source.External != "" {
				imgBlocks = append(imgBlocks, b)
			}
			collect(b.Children)
		}
	}
	collect(payload)

	if len(imgBlocks) == 0 || uploader == nil {
		return 0
	}

	pool := workerpool.New(concurrency)
	altOf := func(b *blocks.Block) string {
		if len(b.Caption) > 0 {
			return b.Caption[0].Content
		}
		return ""
	}

	tasks := workerpool.Process(ctx, pool, imgBlocks, func(ctx context.Context, b *blocks.Block) (string, error) {
		return uploader.Upload(ctx, b.Source.External, altOf(b))
	})

	fallbacks := 0
	for i, t := range tasks {
		if t.Err != nil {
			fallbacks++
			continue
		}
		imgBlocks[i].Source.UploadID = t.Result
		imgBlocks[i].Source.External = ""
	}
	return fallbacks
}
