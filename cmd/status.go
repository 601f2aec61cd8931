package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avutkin/tracksync/internal/config"
	"github.com/avutkin/tracksync/internal/jira"
	"github.com/avutkin/tracksync/internal/mapping"
)

// statusCmd reports how much of the Jira scope was produced by tracksync.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check synchronization status of the Jira project",
	Long: `This command displays statistics about the configured Jira scope:
how many issues it contains and how many of them were created from GitHub.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}

		jiraClient, err := jira.NewClient(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize jira client: %v", err)
		}

		tables := mapping.Defaults().WithComponents(cfg.Sync.Components)
		component := tables.JiraComponent(cfg.GitHub.Repo)

		scope := cfg.Jira.ProjectKey
		if component != "" {
			scope = fmt.Sprintf("%s / %s", cfg.Jira.ProjectKey, component)
		}
		fmt.Printf("Checking synchronization status of Jira scope '%s'\n", scope)

		total, linked, err := jiraClient.ProjectStats(cmd.Context(), component)
		if err != nil {
			return fmt.Errorf("failed to fetch jira statistics: %v", err)
		}

		fmt.Println("\nJira Statistics:")
		fmt.Printf("- Total issues in scope: %d\n", total)
		fmt.Printf("- Issues created from GitHub: %d\n", linked)
		fmt.Printf("- Issues created manually: %d\n", total-linked)

		fmt.Println("\nSynchronization status:", statusMessage(total, linked))

		return nil
	},
}

func statusMessage(total, linked int) string {
	if total == 0 {
		return "No issues in scope yet"
	}

	percentage := float64(linked) / float64(total) * 100
	return fmt.Sprintf("%.1f%% of issues originate from GitHub (%d/%d)", percentage, linked, total)
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
