// Package cli implements the Cobra-based command-line interface for
// sn2notion: converting ServiceNow documentation HTML into Notion pages.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sn2notion/sn2notion/internal/config"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"

	cfgFile string
	verbose bool

	cfg *config.Config
)

// SetVersion sets the version information reported by `sn2notion version`.
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

var rootCmd = &cobra.Command{
	Use:   "sn2notion",
	Short: "Convert ServiceNow documentation HTML into Notion pages",
	Long: `sn2notion ingests ServiceNow documentation HTML pages and emits a
tree of Notion blocks, submitting it through the Notion API.

It handles the target model's structural constraints directly: nesting
depth, rich-text run counts, and content-length caps are enforced during
conversion, with anything that would violate them deferred to a
marker-and-orchestration pass run after the page is created.

Use 'sn2notion convert' to convert a single file or a whole corpus
directory, 'sn2notion watch' to re-convert on change, and
'sn2notion orchestrate-retry' to resume a partially failed append pass.`,
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			if verbose {
				fmt.Fprintf(os.Stderr, "warning: %v\n", err)
			}
			cfg = config.DefaultConfig()
		}
		return nil
	},
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./.sn2notion.yaml, else $HOME/.config/sn2notion/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.SetVersionTemplate(fmt.Sprintf("sn2notion %s (commit: %s, built: %s)\n", version, commit, date))

	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(orchestrateRetryCmd)
}

// ErrNoConfig is returned when a command needing Notion credentials runs
// without a loaded config.
var ErrNoConfig = fmt.Errorf("no configuration found - pass --config or create .sn2notion.yaml")

func getConfig() (*config.Config, error) {
	if cfg == nil {
		return nil, ErrNoConfig
	}
	return cfg, nil
}
