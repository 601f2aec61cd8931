// Package config provides centralized configuration management for the application.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration parameters for the application.
type Config struct {
	GitHub GitHubConfig
	Jira   JiraConfig
	Sync   SyncConfig
}

// GitHubConfig holds GitHub specific configuration.
type GitHubConfig struct {
	Token  string
	Domain string
	Owner  string
	Repo   string
}

// JiraConfig holds Jira specific configuration.
type JiraConfig struct {
	BaseURL    string
	Username   string
	Token      string
	ProjectKey string

	// EpicNameField is the custom field ID that carries the mandatory
	// epic name when creating Epic issues.
	EpicNameField string
}

// SyncConfig holds reconciliation pass tuning.
type SyncConfig struct {
	// Workers bounds the per-record worker pool.
	Workers int

	// FetchDelay is the pause between the bulk Jira fetch and the
	// per-record loop, to respect rate-limit windows.
	FetchDelay time.Duration

	// OrphanAction selects the orphan disposition policy: "log" or "close".
	OrphanAction string

	// Since limits the source fetch window; zero means no limit.
	Since time.Time

	// UserMappings are operator overrides for the GitHub login to Jira
	// account table, parsed from "login=account" pairs.
	UserMappings map[string]string

	// Components overrides the component allow-list.
	Components []string
}

// LoadConfig initializes and loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	// Initialize Viper for environment variables
	v := viper.New()
	v.SetEnvPrefix("")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Map specific environment variables
	v.BindEnv("github.token", "GITHUB_TOKEN")
	v.BindEnv("github.domain", "GITHUB_DOMAIN")
	v.BindEnv("github.owner", "GITHUB_OWNER")
	v.BindEnv("github.repo", "GITHUB_REPO")
	v.BindEnv("jira.url", "JIRA_URL")
	v.BindEnv("jira.username", "JIRA_USERNAME")
	v.BindEnv("jira.token", "JIRA_TOKEN")
	v.BindEnv("jira.project", "JIRA_PROJECT_KEY")
	v.BindEnv("jira.epicfield", "JIRA_EPIC_NAME_FIELD")
	v.BindEnv("sync.workers", "SYNC_WORKERS")
	v.BindEnv("sync.fetchdelay", "SYNC_FETCH_DELAY")
	v.BindEnv("sync.orphanaction", "SYNC_ORPHAN_ACTION")
	v.BindEnv("sync.since", "SYNC_SINCE")
	v.BindEnv("sync.usermappings", "SYNC_USER_MAPPINGS")
	v.BindEnv("sync.components", "SYNC_COMPONENTS")

	v.SetDefault("github.domain", "github.com")
	v.SetDefault("jira.epicfield", "customfield_12311141")
	v.SetDefault("sync.workers", 4)
	v.SetDefault("sync.fetchdelay", "1s")
	v.SetDefault("sync.orphanaction", "log")

	since, err := parseSince(v.GetString("sync.since"))
	if err != nil {
		return nil, err
	}

	// Create config structure
	config := &Config{
		GitHub: GitHubConfig{
			Token:  v.GetString("github.token"),
			Domain: v.GetString("github.domain"),
			Owner:  v.GetString("github.owner"),
			Repo:   v.GetString("github.repo"),
		},
		Jira: JiraConfig{
			BaseURL:       v.GetString("jira.url"),
			Username:      v.GetString("jira.username"),
			Token:         v.GetString("jira.token"),
			ProjectKey:    v.GetString("jira.project"),
			EpicNameField: v.GetString("jira.epicfield"),
		},
		Sync: SyncConfig{
			Workers:      v.GetInt("sync.workers"),
			FetchDelay:   v.GetDuration("sync.fetchdelay"),
			OrphanAction: v.GetString("sync.orphanaction"),
			Since:        since,
			UserMappings: parseUserMappings(v.GetString("sync.usermappings")),
			Components:   splitList(v.GetString("sync.components")),
		},
	}

	if config.Sync.Workers < 1 {
		config.Sync.Workers = 1
	}

	// Validate configuration
	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// validateConfig ensures that all required GitHub configuration values are provided.
func validateConfig(config *Config) error {
	var missingVars []string

	// GitHub validation
	if config.GitHub.Token == "" {
		missingVars = append(missingVars, "GITHUB_TOKEN")
	}
	if config.GitHub.Owner == "" {
		missingVars = append(missingVars, "GITHUB_OWNER")
	}
	if config.GitHub.Repo == "" {
		missingVars = append(missingVars, "GITHUB_REPO")
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	return nil
}

// ValidateJiraConfig validates Jira-specific configuration.
func ValidateJiraConfig(config *Config) error {
	var missingVars []string

	// Jira validation
	if config.Jira.BaseURL == "" {
		missingVars = append(missingVars, "JIRA_URL")
	}
	if config.Jira.Username == "" {
		missingVars = append(missingVars, "JIRA_USERNAME")
	}
	if config.Jira.Token == "" {
		missingVars = append(missingVars, "JIRA_TOKEN")
	}
	if config.Jira.ProjectKey == "" {
		missingVars = append(missingVars, "JIRA_PROJECT_KEY")
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	return nil
}

// parseSince parses the optional RFC3339 fetch window lower bound.
func parseSince(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	since, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid SYNC_SINCE value %q: %v", value, err)
	}
	return since, nil
}

// parseUserMappings parses "login=account,login2=account2" pairs. Malformed
// pairs are skipped rather than failing the whole configuration.
func parseUserMappings(value string) map[string]string {
	if value == "" {
		return nil
	}

	mappings := make(map[string]string)
	for _, pair := range strings.Split(value, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			continue
		}
		mappings[parts[0]] = parts[1]
	}

	if len(mappings) == 0 {
		return nil
	}
	return mappings
}

// splitList splits a comma-separated list, trimming whitespace and
// dropping empty entries.
func splitList(value string) []string {
	if value == "" {
		return nil
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}
