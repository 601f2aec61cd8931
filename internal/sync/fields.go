// Package sync implements the reconciliation engine that mirrors GitHub
// issues into a Jira project: field mapping, linkage matching, sub-task
// reconciliation and orphan handling.
package sync

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	jira "github.com/andygrunwald/go-jira"
	"github.com/trivago/tgo/tcontainer"

	"github.com/avutkin/tracksync/internal/mapping"
	"github.com/avutkin/tracksync/pkg/models"
)

// Mode selects which field set BuildFields produces. Jira forbids changing
// project and issue type after creation, so updates carry fewer fields.
type Mode int

const (
	// ModeCreate produces the full field set for issue creation.
	ModeCreate Mode = iota
	// ModeUpdate produces the mutable field set for an existing issue.
	ModeUpdate
)

// subIssueNumberPattern recovers the source issue number embedded in a
// sub-task description. The "GH Issue <n>" line is a wire contract shared
// with the description templates below.
var subIssueNumberPattern = regexp.MustCompile(`(?m)^GH Issue (\d+)$`)

// FieldMapper builds Jira field sets from GitHub issues. It is pure: the
// same issue and mode always produce the same field set.
type FieldMapper struct {
	// ProjectKey is the Jira project new issues are created in.
	ProjectKey string

	// EpicNameField is the custom field that must carry the epic name
	// when creating Epic issues.
	EpicNameField string

	// Tables are the identity translation tables.
	Tables *mapping.Tables
}

// BuildFields maps a GitHub issue to a Jira field set.
func (m *FieldMapper) BuildFields(issue models.GitHubIssue, mode Mode) *jira.IssueFields {
	fields := &jira.IssueFields{
		Summary:     issue.Title,
		Description: BuildDescription(issue),
		Labels:      mapping.JiraLabels(issue.Labels),
		// An unmapped assignee stays an explicit empty name: the issue is
		// unassigned, not left unchanged.
		Assignee: &jira.User{Name: m.Tables.JiraAssignee(issue.Assignees)},
	}

	if component := m.Tables.JiraComponent(issue.Repository); component != "" {
		fields.Components = []*jira.Component{{Name: component}}
	}

	if mode == ModeCreate {
		issueType := m.Tables.JiraIssueType(issue.IssueType)
		fields.Project = jira.Project{Key: m.ProjectKey}
		fields.Type = jira.IssueType{Name: issueType}

		if issueType == mapping.EpicIssueType {
			fields.Unknowns = tcontainer.MarshalMap{
				m.EpicNameField: issue.Title,
			}
		}
	}

	return fields
}

// BuildSubtaskFields maps a cross-referenced child issue to the mutable
// field set of its Jira sub-task. Project, type and parent are attached by
// the target client on creation.
func (m *FieldMapper) BuildSubtaskFields(child models.GitHubSubIssue) *jira.IssueFields {
	return &jira.IssueFields{
		Summary:     child.Title,
		Description: BuildSubtaskDescription(child),
	}
}

// BuildDescription renders the description template for a synchronized
// issue. The "Upstream URL:" line is the token the matcher searches for on
// later passes; the format is a wire contract, not cosmetic.
func BuildDescription(issue models.GitHubIssue) string {
	return fmt.Sprintf("GH Issue %d\nGH ID %s\nUpstream URL: %s\nAssignees: %s\n\n----\n\n*Description:*\n%s",
		issue.Number,
		issue.ID,
		issue.URL,
		strings.Join(issue.Assignees, ", "),
		issue.Body)
}

// BuildSubtaskDescription renders the description template for a sub-task.
// The "GH Issue <n>" line is the back-reference the sub-task reconciler
// keys on.
func BuildSubtaskDescription(child models.GitHubSubIssue) string {
	return fmt.Sprintf("GH Issue %d\nUpstream URL: %s\nRepo: %s\n\n----\n\n*Description:*\n%s",
		child.Number,
		child.URL,
		child.Repository,
		child.Body)
}

// ParseSubIssueNumber recovers the source issue number from a sub-task
// description. It reports false when the description carries no
// back-reference, which happens for sub-tasks created outside this tool.
func ParseSubIssueNumber(description string) (int, bool) {
	match := subIssueNumberPattern.FindStringSubmatch(description)
	if match == nil {
		return 0, false
	}
	number, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}
	return number, true
}
