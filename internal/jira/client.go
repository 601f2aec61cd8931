// Package jira provides functionality for interacting with the Jira API.
package jira

import (
	"context"
	"fmt"
	"strings"
	"time"

	jira "github.com/andygrunwald/go-jira"
	"github.com/cenkalti/backoff/v4"

	"github.com/avutkin/tracksync/internal/config"
	"github.com/avutkin/tracksync/internal/logging"
	"github.com/avutkin/tracksync/internal/mapping"
	"github.com/avutkin/tracksync/pkg/models"
)

// retryMaxElapsed bounds how long a single API call is retried on
// rate-limit responses before giving up.
const retryMaxElapsed = 30 * time.Second

// searchPageSize is the maximum number of issues requested per search.
const searchPageSize = 1000

// Client handles interactions with the Jira API.
type Client struct {
	client     *jira.Client
	projectKey string
}

// NewClient creates a new Jira client from the given configuration.
func NewClient(cfg *config.Config) (*Client, error) {
	if err := config.ValidateJiraConfig(cfg); err != nil {
		return nil, err
	}

	// Create Jira authentication transport
	tp := jira.BasicAuthTransport{
		Username: cfg.Jira.Username,
		Password: cfg.Jira.Token,
	}

	// Create Jira client
	client, err := jira.NewClient(tp.Client(), cfg.Jira.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("error creating jira client: %w", err)
	}

	logging.Info("jira configuration",
		"base_url", cfg.Jira.BaseURL,
		"project", cfg.Jira.ProjectKey,
		"token", logging.MaskSensitive(cfg.Jira.Token))

	return &Client{
		client:     client,
		projectKey: cfg.Jira.ProjectKey,
	}, nil
}

// ProjectKey returns the Jira project the client is scoped to.
func (c *Client) ProjectKey() string {
	return c.projectKey
}

// SearchIssues runs a JQL query and returns the matching issues.
func (c *Client) SearchIssues(ctx context.Context, jql string) ([]models.JiraIssue, error) {
	if c.client == nil {
		return nil, fmt.Errorf("jira client not initialized")
	}

	opts := &jira.SearchOptions{
		MaxResults: searchPageSize,
		Fields:     []string{"key", "id", "summary", "description", "status", "labels", "components"},
	}

	var issues []jira.Issue
	err := c.withRetry(ctx, func() (*jira.Response, error) {
		var resp *jira.Response
		var err error
		issues, resp, err = c.client.Issue.SearchWithContext(ctx, jql, opts)
		return resp, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search jira issues: %v", err)
	}

	result := make([]models.JiraIssue, 0, len(issues))
	for _, issue := range issues {
		result = append(result, convertIssue(issue))
	}
	return result, nil
}

// CreateIssue creates a Jira issue and returns its key.
func (c *Client) CreateIssue(ctx context.Context, fields *jira.IssueFields) (string, error) {
	if c.client == nil {
		return "", fmt.Errorf("jira client not initialized")
	}

	var created *jira.Issue
	err := c.withRetry(ctx, func() (*jira.Response, error) {
		var resp *jira.Response
		var err error
		created, resp, err = c.client.Issue.CreateWithContext(ctx, &jira.Issue{Fields: fields})
		return resp, err
	})
	if err != nil {
		return "", fmt.Errorf("failed to create jira issue: %v", err)
	}

	return created.Key, nil
}

// UpdateIssue replaces the mutable fields of an existing issue.
func (c *Client) UpdateIssue(ctx context.Context, key string, fields *jira.IssueFields) error {
	if c.client == nil {
		return fmt.Errorf("jira client not initialized")
	}

	err := c.withRetry(ctx, func() (*jira.Response, error) {
		_, resp, err := c.client.Issue.UpdateWithContext(ctx, &jira.Issue{
			Key:    key,
			Fields: fields,
		})
		return resp, err
	})
	if err != nil {
		return fmt.Errorf("failed to update jira issue %s: %v", key, err)
	}
	return nil
}

// AddRemoteLink upserts a remote link on an issue. Jira treats the global
// ID as the upsert key, so repeating the call is harmless.
func (c *Client) AddRemoteLink(ctx context.Context, key, globalID, title, linkURL string) error {
	if c.client == nil {
		return fmt.Errorf("jira client not initialized")
	}

	link := &jira.RemoteLink{
		GlobalID: globalID,
		Application: &jira.RemoteLinkApplication{
			Type: "com.github",
			Name: "GitHub",
		},
		Relationship: "relates to",
		Object: &jira.RemoteLinkObject{
			URL:   linkURL,
			Title: title,
		},
	}

	err := c.withRetry(ctx, func() (*jira.Response, error) {
		_, resp, err := c.client.Issue.AddRemoteLinkWithContext(ctx, key, link)
		return resp, err
	})
	if err != nil {
		return fmt.Errorf("failed to add remote link to %s: %v", key, err)
	}
	return nil
}

// TransitionIssue moves an issue to the workflow status with the given
// name. It resolves the transition ID from the issue's currently available
// transitions.
func (c *Client) TransitionIssue(ctx context.Context, key, statusName string) error {
	if c.client == nil {
		return fmt.Errorf("jira client not initialized")
	}

	var transitions []jira.Transition
	err := c.withRetry(ctx, func() (*jira.Response, error) {
		var resp *jira.Response
		var err error
		transitions, resp, err = c.client.Issue.GetTransitionsWithContext(ctx, key)
		return resp, err
	})
	if err != nil {
		return fmt.Errorf("failed to get transitions for %s: %v", key, err)
	}

	transitionID := ""
	for _, t := range transitions {
		if strings.EqualFold(t.To.Name, statusName) || strings.EqualFold(t.Name, statusName) {
			transitionID = t.ID
			break
		}
	}
	if transitionID == "" {
		return fmt.Errorf("no transition to status %q available on %s", statusName, key)
	}

	err = c.withRetry(ctx, func() (*jira.Response, error) {
		resp, err := c.client.Issue.DoTransitionWithContext(ctx, key, transitionID)
		return resp, err
	})
	if err != nil {
		return fmt.Errorf("failed to transition %s to %q: %v", key, statusName, err)
	}

	logging.Debug("transitioned jira issue",
		"key", key,
		"status", statusName)

	return nil
}

// SearchSubtasks returns the sub-tasks whose parent is the given issue.
func (c *Client) SearchSubtasks(ctx context.Context, parentKey string) ([]models.JiraSubtask, error) {
	if c.client == nil {
		return nil, fmt.Errorf("jira client not initialized")
	}

	jql := fmt.Sprintf("parent = %s", parentKey)
	opts := &jira.SearchOptions{
		MaxResults: searchPageSize,
		Fields:     []string{"key", "summary", "description", "status"},
	}

	var issues []jira.Issue
	err := c.withRetry(ctx, func() (*jira.Response, error) {
		var resp *jira.Response
		var err error
		issues, resp, err = c.client.Issue.SearchWithContext(ctx, jql, opts)
		return resp, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search sub-tasks of %s: %v", parentKey, err)
	}

	result := make([]models.JiraSubtask, 0, len(issues))
	for _, issue := range issues {
		subtask := models.JiraSubtask{
			Key:       issue.Key,
			ParentKey: parentKey,
		}
		if issue.Fields != nil {
			subtask.Summary = issue.Fields.Summary
			subtask.Description = issue.Fields.Description
			if issue.Fields.Status != nil {
				subtask.Status = issue.Fields.Status.Name
			}
		}
		result = append(result, subtask)
	}
	return result, nil
}

// CreateSubtask creates a sub-task under the given parent and returns its key.
func (c *Client) CreateSubtask(ctx context.Context, parentKey string, fields *jira.IssueFields) (string, error) {
	if c.client == nil {
		return "", fmt.Errorf("jira client not initialized")
	}

	fields.Project = jira.Project{Key: c.projectKey}
	fields.Type = jira.IssueType{Name: "Sub-task"}
	fields.Parent = &jira.Parent{Key: parentKey}

	var created *jira.Issue
	err := c.withRetry(ctx, func() (*jira.Response, error) {
		var resp *jira.Response
		var err error
		created, resp, err = c.client.Issue.CreateWithContext(ctx, &jira.Issue{Fields: fields})
		return resp, err
	})
	if err != nil {
		return "", fmt.Errorf("failed to create sub-task under %s: %v", parentKey, err)
	}

	return created.Key, nil
}

// ProjectStats returns the total number of issues in a component of the
// configured project and how many of them carry the GitHub provenance label.
func (c *Client) ProjectStats(ctx context.Context, component string) (int, int, error) {
	if c.client == nil {
		return 0, 0, fmt.Errorf("jira client not initialized")
	}

	jql := fmt.Sprintf("project = %q", c.projectKey)
	if component != "" {
		jql += fmt.Sprintf(" AND component = %q", component)
	}
	issues, err := c.SearchIssues(ctx, jql)
	if err != nil {
		return 0, 0, err
	}

	linked := 0
	for _, issue := range issues {
		for _, label := range issue.Labels {
			if label == mapping.ProvenanceLabel {
				linked++
				break
			}
		}
	}

	return len(issues), linked, nil
}

// convertIssue converts a go-jira issue to the internal model.
func convertIssue(issue jira.Issue) models.JiraIssue {
	converted := models.JiraIssue{
		ID:  issue.ID,
		Key: issue.Key,
	}
	if issue.Fields == nil {
		return converted
	}

	converted.Summary = issue.Fields.Summary
	converted.Description = issue.Fields.Description
	converted.Labels = issue.Fields.Labels
	if issue.Fields.Status != nil {
		converted.Status = issue.Fields.Status.Name
	}
	if len(issue.Fields.Components) > 0 {
		converted.Component = issue.Fields.Components[0].Name
	}
	return converted
}

// withRetry executes an API call with exponential backoff while the server
// responds with a rate-limit status. Other failures are permanent.
func (c *Client) withRetry(ctx context.Context, op func() (*jira.Response, error)) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = retryMaxElapsed

	return backoff.Retry(func() error {
		resp, err := op()
		if err != nil && isRateLimited(resp) {
			logging.Warn("jira rate limit hit, backing off")
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, backoff.WithContext(bo, ctx))
}

// isRateLimited reports whether a response carries a rate-limit status.
func isRateLimited(resp *jira.Response) bool {
	return resp != nil && resp.StatusCode == 429
}
