// Package github provides functionality for interacting with the GitHub API.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/go-github/v41/github"
	"golang.org/x/oauth2"

	"github.com/avutkin/tracksync/internal/config"
	"github.com/avutkin/tracksync/internal/logging"
	"github.com/avutkin/tracksync/pkg/models"
)

// retryMaxElapsed bounds how long a single API call is retried on
// rate-limit errors before giving up.
const retryMaxElapsed = 30 * time.Second

// Client encapsulates the GitHub API client, scoped to one repository.
type Client struct {
	client *github.Client
	owner  string
	repo   string
	since  time.Time
}

// NewClient creates a new GitHub API client from the given configuration.
// It initializes the client with the appropriate base URL, authenticates
// with the GitHub API, and tests the connection. It returns the configured
// client or an error if initialization fails.
func NewClient(cfg *config.Config) (*Client, error) {
	token := cfg.GitHub.Token
	if token == "" {
		return nil, fmt.Errorf("github token not found in configuration")
	}

	// Get domain from config, default to github.com
	domain := cfg.GitHub.Domain
	if domain == "" {
		domain = "github.com"
	}

	// Construct API URL based on domain
	var apiURL string
	if domain == "github.com" {
		apiURL = "https://api.github.com/"
	} else {
		apiURL = fmt.Sprintf("https://%s/api/v3/", domain)
	}

	logging.Info("github configuration",
		"domain", domain,
		"api_url", apiURL,
		"repository", cfg.GitHub.Owner+"/"+cfg.GitHub.Repo,
		"token", logging.MaskSensitive(token))

	// Create the oauth2 client
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(context.Background(), ts)

	// Create GitHub client with custom base URL
	client := github.NewClient(tc)

	// If not using default GitHub.com, set custom API endpoint
	if domain != "github.com" {
		parsedURL, err := url.Parse(apiURL)
		if err != nil {
			return nil, fmt.Errorf("invalid github api url: %w", err)
		}

		client.BaseURL = parsedURL

		// For GitHub Enterprise, set the upload URL to the same endpoint
		client.UploadURL = parsedURL
	}

	// Test the token
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	user, resp, err := client.Users.Get(ctx, "")
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		logging.Error("failed to test github token",
			"error", err,
			"status_code", status)
		return nil, fmt.Errorf("error testing github token: %w", err)
	}

	logging.Info("github authentication successful",
		"username", user.GetLogin())

	return &Client{
		client: client,
		owner:  cfg.GitHub.Owner,
		repo:   cfg.GitHub.Repo,
		since:  cfg.Sync.Since,
	}, nil
}

// Repository returns the repository name (without owner) the client is scoped to.
func (c *Client) Repository() string {
	return c.repo
}

// ListIssues retrieves all open issues from the configured repository,
// honoring the optional since filter. Pull requests are kept in the result
// but flagged, so the caller can account for them as skipped records.
func (c *Client) ListIssues(ctx context.Context) ([]models.GitHubIssue, error) {
	if c.client == nil {
		return nil, fmt.Errorf("github client not initialized")
	}

	opts := &github.IssueListByRepoOptions{
		State: "open",
		ListOptions: github.ListOptions{
			PerPage: 100,
		},
	}
	if !c.since.IsZero() {
		opts.Since = c.since
	}

	var allIssues []*github.Issue
	for {
		var issues []*github.Issue
		var resp *github.Response
		err := c.withRetry(ctx, func() error {
			var err error
			issues, resp, err = c.client.Issues.ListByRepo(ctx, c.owner, c.repo, opts)
			return err
		})
		if err != nil {
			logging.Error("failed to fetch github issues", "error", err)
			return nil, fmt.Errorf("failed to fetch GitHub issues: %v", err)
		}

		allIssues = append(allIssues, issues...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	result := make([]models.GitHubIssue, 0, len(allIssues))
	for _, issue := range allIssues {
		result = append(result, c.convertIssue(issue))
	}

	logging.Debug("fetched github issues",
		"repository", c.owner+"/"+c.repo,
		"count", len(result))

	return result, nil
}

// GetIssue retrieves a single issue with its comments.
func (c *Client) GetIssue(ctx context.Context, number int) (models.GitHubIssue, error) {
	if c.client == nil {
		return models.GitHubIssue{}, fmt.Errorf("github client not initialized")
	}

	var issue *github.Issue
	err := c.withRetry(ctx, func() error {
		var err error
		issue, _, err = c.client.Issues.Get(ctx, c.owner, c.repo, number)
		return err
	})
	if err != nil {
		return models.GitHubIssue{}, fmt.Errorf("failed to get GitHub issue #%d: %v", number, err)
	}

	converted := c.convertIssue(issue)

	comments, err := c.listComments(ctx, number)
	if err != nil {
		// Comments are informational only; a fetch failure does not fail
		// the detail lookup.
		logging.Warn("failed to fetch issue comments",
			"issue_number", number,
			"error", err)
	} else {
		converted.Comments = comments
	}

	return converted, nil
}

// ListCrossReferences retrieves the cross-reference timeline events of an
// issue and returns the referencing issues from other repositories. Those
// are the sub-issue candidates; same-repository self-references are not
// sub-issue links and are excluded.
func (c *Client) ListCrossReferences(ctx context.Context, number int) ([]models.GitHubSubIssue, error) {
	if c.client == nil {
		return nil, fmt.Errorf("github client not initialized")
	}

	ownRepoURL := fmt.Sprintf("repos/%s/%s", c.owner, c.repo)

	opts := &github.ListOptions{PerPage: 100}
	var children []models.GitHubSubIssue
	for {
		var timeline []*github.Timeline
		var resp *github.Response
		err := c.withRetry(ctx, func() error {
			var err error
			timeline, resp, err = c.client.Issues.ListIssueTimeline(ctx, c.owner, c.repo, number, opts)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch timeline for issue #%d: %v", number, err)
		}

		for _, event := range timeline {
			if event.GetEvent() != "cross-referenced" {
				continue
			}
			source := event.GetSource()
			if source == nil || source.Issue == nil {
				continue
			}
			if strings.HasSuffix(source.Issue.GetRepositoryURL(), ownRepoURL) {
				continue
			}
			children = append(children, convertSubIssue(source.Issue))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	logging.Debug("fetched cross-references",
		"issue_number", number,
		"count", len(children))

	return children, nil
}

// listComments fetches all comments of an issue.
func (c *Client) listComments(ctx context.Context, number int) ([]models.GitHubComment, error) {
	opts := &github.IssueListCommentsOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}

	var result []models.GitHubComment
	for {
		var comments []*github.IssueComment
		var resp *github.Response
		err := c.withRetry(ctx, func() error {
			var err error
			comments, resp, err = c.client.Issues.ListComments(ctx, c.owner, c.repo, number, opts)
			return err
		})
		if err != nil {
			return nil, err
		}

		for _, comment := range comments {
			result = append(result, models.GitHubComment{
				Author:    comment.GetUser().GetLogin(),
				Body:      comment.GetBody(),
				CreatedAt: comment.GetCreatedAt(),
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return result, nil
}

// convertIssue converts a GitHub API issue to the internal model.
func (c *Client) convertIssue(issue *github.Issue) models.GitHubIssue {
	labelNames := make([]string, 0, len(issue.Labels))
	for _, label := range issue.Labels {
		labelNames = append(labelNames, label.GetName())
	}

	assignees := make([]string, 0, len(issue.Assignees))
	for _, assignee := range issue.Assignees {
		assignees = append(assignees, assignee.GetLogin())
	}

	return models.GitHubIssue{
		Number:        issue.GetNumber(),
		ID:            issue.GetNodeID(),
		Title:         issue.GetTitle(),
		Body:          issue.GetBody(),
		URL:           issue.GetHTMLURL(),
		State:         issue.GetState(),
		IssueType:     issueTypeFromLabels(labelNames),
		Labels:        labelNames,
		Assignees:     assignees,
		Repository:    c.repo,
		IsPullRequest: issue.PullRequestLinks != nil,
		UpdatedAt:     issue.GetUpdatedAt(),
	}
}

// convertSubIssue converts a timeline source issue to the internal model.
func convertSubIssue(issue *github.Issue) models.GitHubSubIssue {
	labelNames := make([]string, 0, len(issue.Labels))
	for _, label := range issue.Labels {
		labelNames = append(labelNames, label.GetName())
	}

	assignees := make([]string, 0, len(issue.Assignees))
	for _, assignee := range issue.Assignees {
		assignees = append(assignees, assignee.GetLogin())
	}

	repoURL := issue.GetRepositoryURL()
	repository := repoURL[strings.LastIndex(repoURL, "/")+1:]

	return models.GitHubSubIssue{
		Number:     issue.GetNumber(),
		Title:      issue.GetTitle(),
		Body:       issue.GetBody(),
		URL:        issue.GetHTMLURL(),
		State:      issue.GetState(),
		Repository: repository,
		Assignees:  assignees,
		Labels:     labelNames,
	}
}

// issueTypeFromLabels derives the issue type classifier from a "type: X"
// label, the repository convention for typing issues.
func issueTypeFromLabels(labels []string) string {
	for _, label := range labels {
		if rest, ok := strings.CutPrefix(label, "type:"); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}

// withRetry executes an API call with exponential backoff on
// rate-limit-class errors. Other errors fail immediately.
func (c *Client) withRetry(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = retryMaxElapsed

	return backoff.Retry(func() error {
		err := op()
		if err != nil && isRateLimited(err) {
			logging.Warn("github rate limit hit, backing off", "error", err)
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, backoff.WithContext(bo, ctx))
}

// isRateLimited reports whether the error is a rate-limit-class error.
func isRateLimited(err error) bool {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return true
	}
	var abuseErr *github.AbuseRateLimitError
	return errors.As(err, &abuseErr)
}
