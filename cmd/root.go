// Package cmd provides the command-line interface for tracksync.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tracksync",
	Short: "Tracksync reconciles GitHub issues into a Jira project",
	Long: `Tracksync is a CLI tool that mirrors the issues of a GitHub repository
into a Jira project. Each pass fetches both sides, creates Jira issues for
unlinked GitHub issues, refreshes the ones already linked, keeps sub-tasks in
step with cross-referenced GitHub issues, and reports Jira issues whose
GitHub counterpart has disappeared.

All connection settings come from environment variables; see 'tracksync sync --help'.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
