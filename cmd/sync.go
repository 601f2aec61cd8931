package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avutkin/tracksync/internal/config"
	"github.com/avutkin/tracksync/internal/github"
	"github.com/avutkin/tracksync/internal/jira"
	"github.com/avutkin/tracksync/internal/logging"
	"github.com/avutkin/tracksync/internal/mapping"
	syncer "github.com/avutkin/tracksync/internal/sync"
)

// syncCmd runs one reconciliation pass from GitHub into Jira.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one GitHub to Jira reconciliation pass",
	Long: `Run one reconciliation pass from the configured GitHub repository into
the configured Jira project.

The pass fetches the open GitHub issues and the in-scope Jira issues, then
for each GitHub issue either creates a linked Jira issue or refreshes the
existing one, reconciles its sub-tasks against the cross-referenced GitHub
issues, and reopens Jira issues whose GitHub counterpart is still open.
Jira issues that no GitHub issue claimed are reported as orphans; set
SYNC_ORPHAN_ACTION=close to transition them to Done instead.

Required environment variables:
  GITHUB_TOKEN, GITHUB_OWNER, GITHUB_REPO
  JIRA_URL, JIRA_USERNAME, JIRA_TOKEN, JIRA_PROJECT_KEY

Optional:
  GITHUB_DOMAIN, JIRA_EPIC_NAME_FIELD, SYNC_WORKERS, SYNC_FETCH_DELAY,
  SYNC_ORPHAN_ACTION, SYNC_SINCE, SYNC_USER_MAPPINGS, SYNC_COMPONENTS

The command exits non-zero when any record fails to reconcile, even if the
rest of the pass succeeded.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}

		githubClient, err := github.NewClient(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize github client: %v", err)
		}

		jiraClient, err := jira.NewClient(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize jira client: %v", err)
		}

		tables := mapping.Defaults().
			WithUsers(cfg.Sync.UserMappings).
			WithComponents(cfg.Sync.Components)

		component := tables.JiraComponent(cfg.GitHub.Repo)

		logging.Info("starting synchronization",
			"repository", githubClient.Repository(),
			"project", cfg.Jira.ProjectKey,
			"component", component,
			"orphan_action", cfg.Sync.OrphanAction)

		engine := syncer.NewEngine(githubClient, jiraClient, syncer.Options{
			ProjectKey:    cfg.Jira.ProjectKey,
			Component:     component,
			EpicNameField: cfg.Jira.EpicNameField,
			Tables:        tables,
			Workers:       cfg.Sync.Workers,
			FetchDelay:    cfg.Sync.FetchDelay,
			OrphanPolicy:  syncer.PolicyFor(cfg.Sync.OrphanAction, jiraClient),
		})

		summary, err := engine.Run(cmd.Context())
		if err != nil {
			return err
		}

		logging.Info("synchronization complete",
			"created", summary.Created,
			"updated", summary.Updated,
			"skipped", summary.Skipped,
			"errored", summary.Errored,
			"orphans", summary.Orphans)

		return summary.Err()
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
