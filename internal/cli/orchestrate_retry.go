package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sn2notion/sn2notion/internal/convert"
	"github.com/sn2notion/sn2notion/internal/diagnostics"
	"github.com/sn2notion/sn2notion/internal/notionstore"
)

var orchestrateRetryOut string

var orchestrateRetryCmd = &cobra.Command{
	Use:   "orchestrate-retry <page-id>",
	Short: "Resume a partially failed marker-append pass for one page",
	Long: `orchestrate-retry reloads every unresolved marker recorded for
page-id in the diagnostics database and re-runs the append-and-strip
sequence against it, picking up wherever a prior 'sn2notion convert' run
was interrupted before every deferred child had been appended.`,
	Args: cobra.ExactArgs(1),
	RunE: runOrchestrateRetry,
}

func init() {
	orchestrateRetryCmd.Flags().StringVar(&orchestrateRetryOut, "db", "", "diagnostics database path (default: config diagnostics_db)")
}

func runOrchestrateRetry(cmd *cobra.Command, args []string) error {
	c, err := getConfig()
	if err != nil {
		return err
	}
	pageID := args[0]

	dbPath := orchestrateRetryOut
	if dbPath == "" {
		dbPath = c.DiagnosticsDB
	}
	db, err := diagnostics.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open diagnostics db: %w", err)
	}
	defer db.Close()

	states, err := db.UnresolvedMarkers(pageID)
	if err != nil {
		return fmt.Errorf("load unresolved markers: %w", err)
	}
	if len(states) == 0 {
		fmt.Printf("no unresolved markers for page %s\n", pageID)
		return nil
	}

	store := notionstore.New(c.Notion.Token,
		notionstore.WithRateLimit(c.Notion.RequestsPerSecond),
		notionstore.WithBatchSize(c.Notion.BatchSize),
		notionstore.WithParentPage(c.Notion.ParentPage),
	)

	pending := make([]convert.PendingMarker, 0, len(states))
	byMarker := make(map[string]diagnostics.MarkerState, len(states))
	for _, s := range states {
		if s.HostID == "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "  skipping marker %s: no host id recorded\n", s.Marker)
			continue
		}
		children, err := convert.UnmarshalDeferredBlocks(s.PayloadJSON)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "  skipping marker %s: %v\n", s.Marker, err)
			continue
		}
		pending = append(pending, convert.PendingMarker{Marker: s.Marker, HostID: s.HostID, Children: children})
		byMarker[s.Marker] = s
	}

	policy := convert.RetryPolicy{
		MaxAttempts: c.Orchestration.MaxAttempts,
		BaseBackoff: c.Orchestration.BaseBackoff,
		MaxBackoff:  c.Orchestration.MaxBackoff,
	}
	logger := slog.Default()
	resolutions := convert.ResumeOrchestrate(cmd.Context(), store, store, policy, c.Orchestration.AppendConcurrency, pending, logger)

	resolved := 0
	for _, r := range resolutions {
		lastErr := ""
		if r.Err != nil {
			lastErr = r.Err.Error()
		}
		prior := byMarker[r.Marker]
		if err := db.SaveMarkerState(diagnostics.MarkerState{
			PageID: pageID, Marker: r.Marker, HostID: r.HostID, PayloadJSON: prior.PayloadJSON,
			Resolved: r.Resolved, LastError: lastErr,
		}); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "  failed to save marker state %s: %v\n", r.Marker, err)
			continue
		}
		if r.Resolved {
			resolved++
		}
	}

	fmt.Printf("resolved %d/%d marker(s) for page %s\n", resolved, len(resolutions), pageID)
	return nil
}
