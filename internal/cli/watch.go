package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/sn2notion/sn2notion/internal/config"
	"github.com/sn2notion/sn2notion/internal/diagnostics"
	"github.com/sn2notion/sn2notion/internal/notionstore"
)

var watchDebounce string

var watchCmd = &cobra.Command{
	Use:   "watch <corpus-dir>",
	Short: "Watch a corpus directory and re-convert changed documents",
	Long: `watch monitors a directory of .html documents for changes and
re-runs convert on each one as it changes on disk, useful when iterating
on normalization rules against a local mirror of the corpus.

Press Ctrl+C to stop watching.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchDebounce, "debounce", "", "wait duration after file change (default: config watch.debounce_interval)")
}

// watcher coordinates fsnotify events into debounced re-conversions.
type watcher struct {
	cfg   *config.Config
	store *notionstore.Client
	db    *diagnostics.DB
	root  string

	debounce time.Duration

	pendingMu      sync.Mutex
	pendingChanges map[string]time.Time
}

func runWatch(cmd *cobra.Command, args []string) error {
	c, err := getConfig()
	if err != nil {
		return err
	}

	debounce := c.Watch.DebounceInterval
	if watchDebounce != "" {
		d, err := time.ParseDuration(watchDebounce)
		if err != nil {
			return fmt.Errorf("invalid debounce duration: %w", err)
		}
		debounce = d
	}
	if debounce <= 0 {
		debounce = 2 * time.Second
	}

	db, err := diagnostics.Open(c.DiagnosticsDB)
	if err != nil {
		return fmt.Errorf("open diagnostics db: %w", err)
	}
	defer db.Close()

	store := notionstore.New(c.Notion.Token,
		notionstore.WithRateLimit(c.Notion.RequestsPerSecond),
		notionstore.WithBatchSize(c.Notion.BatchSize),
		notionstore.WithParentPage(c.Notion.ParentPage),
	)

	w := &watcher{
		cfg:            c,
		store:          store,
		db:             db,
		root:           args[0],
		debounce:       debounce,
		pendingChanges: make(map[string]time.Time),
	}
	return w.run()
}

func (w *watcher) run() error {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsWatcher.Close()

	if err := w.addWatchRecursive(fsWatcher, w.root); err != nil {
		return fmt.Errorf("add watch directories: %w", err)
	}

	fmt.Printf("watching corpus: %s\n", w.root)
	fmt.Printf("debounce: %s\n\nPress Ctrl+C to stop...\n\n", w.debounce)

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-fsWatcher.Events:
			if !ok {
				return fmt.Errorf("watcher closed unexpectedly")
			}
			w.handleEvent(fsWatcher, event)

		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return fmt.Errorf("watcher error channel closed")
			}
			fmt.Printf("watch error: %v\n", err)

		case <-ticker.C:
			w.processDebounced()
		}
	}
}

func (w *watcher) addWatchRecursive(fsWatcher *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if strings.HasPrefix(info.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return fsWatcher.Add(path)
		}
		return nil
	})
}

func (w *watcher) handleEvent(fsWatcher *fsnotify.Watcher, event fsnotify.Event) {
	path := event.Name
	if !strings.HasSuffix(strings.ToLower(path), ".html") {
		if event.Has(fsnotify.Create) {
			if info, err := os.Stat(path); err == nil && info.IsDir() {
				_ = fsWatcher.Add(path)
			}
		}
		return
	}

	w.pendingMu.Lock()
	w.pendingChanges[path] = time.Now()
	w.pendingMu.Unlock()

	if verbose {
		fmt.Printf("[%s] changed: %s\n", time.Now().Format("15:04:05"), path)
	}
}

func (w *watcher) processDebounced() {
	w.pendingMu.Lock()
	now := time.Now()
	var toProcess []string
	for path, changedAt := range w.pendingChanges {
		if now.Sub(changedAt) >= w.debounce {
			toProcess = append(toProcess, path)
			delete(w.pendingChanges, path)
		}
	}
	w.pendingMu.Unlock()

	if len(toProcess) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	for _, path := range toProcess {
		if err := convertFile(ctx, w.cfg, w.store, w.db, path); err != nil {
			fmt.Printf("  error converting %s: %v\n", path, err)
			continue
		}
		fmt.Printf("[%s] converted: %s\n", time.Now().Format("15:04:05"), path)
	}
}
