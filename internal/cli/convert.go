package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sn2notion/sn2notion/internal/config"
	"github.com/sn2notion/sn2notion/internal/convert"
	"github.com/sn2notion/sn2notion/internal/corpus"
	"github.com/sn2notion/sn2notion/internal/diagnostics"
	"github.com/sn2notion/sn2notion/internal/notionstore"
)

var convertOut string

var convertCmd = &cobra.Command{
	Use:   "convert [path]",
	Short: "Convert one HTML document or a corpus directory to Notion pages",
	Long: `convert runs the extraction pipeline over a single .html file, or
every .html file beneath a directory, submitting each result to Notion and
persisting its diagnostics report and any unresolved markers.`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringVar(&convertOut, "db", "", "diagnostics database path (default: config diagnostics_db)")
}

func runConvert(cmd *cobra.Command, args []string) error {
	c, err := getConfig()
	if err != nil {
		return err
	}

	dbPath := convertOut
	if dbPath == "" {
		dbPath = c.DiagnosticsDB
	}
	db, err := diagnostics.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open diagnostics db: %w", err)
	}
	defer db.Close()

	store := notionstore.New(c.Notion.Token,
		notionstore.WithRateLimit(c.Notion.RequestsPerSecond),
		notionstore.WithBatchSize(c.Notion.BatchSize),
		notionstore.WithParentPage(c.Notion.ParentPage),
	)

	info, err := os.Stat(args[0])
	if err != nil {
		return fmt.Errorf("stat %s: %w", args[0], err)
	}

	ctx := cmd.Context()
	if info.IsDir() {
		scanner := corpus.NewScanner(args[0], nil)
		docs, err := scanner.Scan(ctx)
		if err != nil {
			return fmt.Errorf("scan corpus: %w", err)
		}
		fmt.Printf("found %d document(s)\n", len(docs))
		for _, doc := range docs {
			if err := convertFile(ctx, c, store, db, doc.AbsPath); err != nil {
				fmt.Fprintf(os.Stderr, "  error converting %s: %v\n", doc.Path, err)
				continue
			}
			fmt.Printf("  converted: %s\n", doc.Path)
		}
		return nil
	}

	return convertFile(ctx, c, store, db, args[0])
}

func convertFile(ctx context.Context, c *config.Config, store *notionstore.Client, db *diagnostics.DB, path string) error {
	html, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	logger := slog.Default()
	result, err := convert.Convert(string(html), c.Convert.ToOptions(), logger)
	if err != nil {
		return fmt.Errorf("convert: %w", err)
	}

	// imageUploader is nil until a concrete upload destination is
	// configured: the uploader is an out-of-scope external collaborator
	// (§6), so UploadImages runs here as a documented no-op, leaving every
	// image Source as External(url). Supplying an ImageUploader wires this
	// same call path into real uploads without any other change.
	var imageUploader convert.ImageUploader
	fallbacks := convert.UploadImages(ctx, imageUploader, c.Orchestration.ImageUploadConcurrency, result.Payload)
	result.Diagnostics.ImageFallbacks = fallbacks

	wired := convert.WireBlocks(result.Payload)
	pageID, persisted, err := store.CreatePage(ctx, wired)
	if err != nil {
		return fmt.Errorf("create page: %w", err)
	}

	hostIDs := convert.ResolveHostIDs(persisted)

	// Persist every marker's resume state before orchestration runs, so a
	// crash mid-pass still leaves enough on disk for orchestrate-retry to
	// pick up: the host id and the deferred subtree, not just the eventual
	// outcome.
	for marker, children := range result.MarkerMap {
		payload, err := convert.MarshalDeferredBlocks(children)
		if err != nil {
			return fmt.Errorf("marshal marker %s: %w", marker, err)
		}
		hostID := ""
		if h, ok := hostIDs[marker]; ok {
			hostID = h.ID
		}
		if err := db.SaveMarkerState(diagnostics.MarkerState{
			PageID: pageID, Marker: marker, HostID: hostID, PayloadJSON: payload,
		}); err != nil {
			return fmt.Errorf("save marker state %s: %w", marker, err)
		}
	}

	policy := convert.RetryPolicy{
		MaxAttempts: c.Orchestration.MaxAttempts,
		BaseBackoff: c.Orchestration.BaseBackoff,
		MaxBackoff:  c.Orchestration.MaxBackoff,
	}
	resolutions := convert.Orchestrate(ctx, store, policy, c.Orchestration.AppendConcurrency, result.MarkerMap, hostIDs, logger)

	now := time.Now()
	for _, r := range resolutions {
		lastErr := ""
		if r.Err != nil {
			lastErr = r.Err.Error()
		}
		payload, _ := convert.MarshalDeferredBlocks(result.MarkerMap[r.Marker])
		_ = db.SaveMarkerState(diagnostics.MarkerState{
			PageID: pageID, Marker: r.Marker, HostID: r.HostID, PayloadJSON: payload,
			Resolved: r.Resolved, LastError: lastErr,
		})
	}

	return db.SaveReport(path, pageID, result.Diagnostics, now)
}
