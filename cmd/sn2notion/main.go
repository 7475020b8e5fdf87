// Package main provides the entry point for the sn2notion CLI tool.
//
// sn2notion converts ServiceNow documentation HTML into Notion pages,
// handling the target model's nesting depth, rich-text run count, and
// content-length caps directly, deferring anything that would violate
// them to a marker-and-orchestration pass run after page creation.
package main

import (
	"os"

	"github.com/sn2notion/sn2notion/internal/cli"
)

// Version information set by build flags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.SetVersion(version, commit, date)
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
