// Package models defines data structures shared across the application.
package models

import (
	"time"
)

// GitHubIssue represents a GitHub issue with its essential fields
type GitHubIssue struct {
	// Number is the issue number in GitHub (e.g., 42)
	Number int

	// ID is the GitHub global node ID, immutable across renames
	ID string

	// Title is the issue's title or summary
	Title string

	// Body is the full body text of the issue
	Body string

	// URL is the html URL of the issue, embedded into Jira descriptions
	// and used to re-derive linkage on later passes
	URL string

	// State is either "open" or "closed"
	State string

	// IssueType is GitHub's optional issue type classifier (e.g., "Bug")
	IssueType string

	// Labels is a slice of label names attached to the issue
	Labels []string

	// Assignees holds the GitHub logins in assignment order; the first
	// entry is the primary assignee
	Assignees []string

	// Repository is the repository name (without owner) the issue lives in
	Repository string

	// IsPullRequest marks records the issues API returns that are really
	// pull requests; those are never synchronized
	IsPullRequest bool

	// Comments are carried for logging only and are not synchronized
	Comments []GitHubComment

	// UpdatedAt is the timestamp when the issue was last updated
	UpdatedAt time.Time
}

// GitHubComment is a single comment on a GitHub issue.
type GitHubComment struct {
	Author    string
	Body      string
	CreatedAt time.Time
}

// GitHubSubIssue represents a child issue discovered through a
// cross-reference timeline event on its parent. It is identified by its
// number together with the repository it lives in.
type GitHubSubIssue struct {
	Number     int
	Title      string
	Body       string
	URL        string
	State      string
	Repository string
	Assignees  []string
	Labels     []string
}

// JiraIssue represents a Jira issue with its key properties.
type JiraIssue struct {
	// ID is the internal numeric Jira ID (e.g., "10123")
	ID string

	// Key is the full Jira issue identifier (e.g., "ABC-123")
	Key string

	// Summary is the issue's summary field
	Summary string

	// Description is the full body text of the issue; for synchronized
	// issues it embeds the upstream GitHub URL
	Description string

	// Status is the current workflow status name (e.g., "New", "Closed")
	Status string

	// Labels attached to the issue
	Labels []string

	// Component is the single component the issue belongs to, if any
	Component string
}

// JiraSubtask represents a Jira sub-task under a synchronized issue.
type JiraSubtask struct {
	Key         string
	ParentKey   string
	Summary     string
	Description string
	Status      string
}
