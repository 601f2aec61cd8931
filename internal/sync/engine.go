package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	jira "github.com/andygrunwald/go-jira"
	"golang.org/x/sync/errgroup"

	"github.com/avutkin/tracksync/internal/logging"
	"github.com/avutkin/tracksync/internal/mapping"
	"github.com/avutkin/tracksync/pkg/models"
)

// Jira workflow status names the engine cares about.
const (
	// StatusNew is the initial workflow status, used when reopening.
	StatusNew = "New"
	// StatusClosed is the closed-equivalent status of regular issues.
	StatusClosed = "Closed"
	// StatusDone is the terminal status of sub-tasks and closed orphans.
	StatusDone = "Done"
)

// SourceService is the slice of the GitHub client the engine consumes.
type SourceService interface {
	ListIssues(ctx context.Context) ([]models.GitHubIssue, error)
	GetIssue(ctx context.Context, number int) (models.GitHubIssue, error)
	ListCrossReferences(ctx context.Context, number int) ([]models.GitHubSubIssue, error)
}

// TargetService is the slice of the Jira client the engine consumes.
type TargetService interface {
	SearchIssues(ctx context.Context, jql string) ([]models.JiraIssue, error)
	CreateIssue(ctx context.Context, fields *jira.IssueFields) (string, error)
	UpdateIssue(ctx context.Context, key string, fields *jira.IssueFields) error
	AddRemoteLink(ctx context.Context, key, globalID, title, linkURL string) error
	TransitionIssue(ctx context.Context, key, statusName string) error
	SearchSubtasks(ctx context.Context, parentKey string) ([]models.JiraSubtask, error)
	CreateSubtask(ctx context.Context, parentKey string, fields *jira.IssueFields) (string, error)
}

// Action classifies what a reconciliation pass did with one source record.
type Action string

const (
	// ActionCreated means a new Jira issue was created for the record.
	ActionCreated Action = "created"
	// ActionUpdated means an existing Jira issue was refreshed.
	ActionUpdated Action = "updated"
	// ActionSkipped means the record required no target interaction.
	ActionSkipped Action = "skipped"
	// ActionErrored means the record's reconciliation failed partway.
	ActionErrored Action = "errored"
)

// Result is the typed per-record outcome of a pass.
type Result struct {
	IssueNumber int
	Action      Action
	Key         string

	// Subtasks lists the keys of the sub-tasks under this record's target
	// issue. They count as claimed for orphan detection: a project-wide
	// bulk fetch returns sub-tasks too, and one reconciled moments earlier
	// must not be reported as an orphan.
	Subtasks []string

	Err error
}

// Summary aggregates the results of one reconciliation pass.
type Summary struct {
	Created int
	Updated int
	Skipped int
	Errored int
	Orphans int
	Results []Result
}

// Err returns a non-nil error when any record failed, so the caller can
// fail the process instead of silently exiting zero after partial failures.
func (s *Summary) Err() error {
	if s.Errored == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d records failed to reconcile", s.Errored, len(s.Results))
}

// Options configures an Engine.
type Options struct {
	ProjectKey    string
	Component     string
	EpicNameField string
	Tables        *mapping.Tables

	// Workers bounds the per-record worker pool. Values below 1 run
	// sequentially.
	Workers int

	// FetchDelay is the pause between the bulk target fetch and the
	// per-record loop.
	FetchDelay time.Duration

	// OrphanPolicy handles unmatched target issues; nil means LogOrphans.
	OrphanPolicy OrphanPolicy
}

// Engine drives one reconciliation pass. All collaborators are injected so
// tests can run the full pass against doubles.
type Engine struct {
	source   SourceService
	target   TargetService
	fields   *FieldMapper
	matcher  *Matcher
	subtasks *SubIssueReconciler
	orphans  OrphanPolicy

	workers    int
	fetchDelay time.Duration
}

// NewEngine wires an engine from its two tracker services and options.
func NewEngine(source SourceService, target TargetService, opts Options) *Engine {
	tables := opts.Tables
	if tables == nil {
		tables = mapping.Defaults()
	}

	fields := &FieldMapper{
		ProjectKey:    opts.ProjectKey,
		EpicNameField: opts.EpicNameField,
		Tables:        tables,
	}

	orphans := opts.OrphanPolicy
	if orphans == nil {
		orphans = LogOrphans{}
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	return &Engine{
		source:     source,
		target:     target,
		fields:     fields,
		matcher:    NewMatcher(target, opts.ProjectKey, opts.Component),
		subtasks:   NewSubIssueReconciler(source, target, fields),
		orphans:    orphans,
		workers:    workers,
		fetchDelay: opts.FetchDelay,
	}
}

// Run executes one reconciliation pass. A failure of either bulk fetch is
// fatal; per-record failures are captured in the summary and never abort
// the pass.
func (e *Engine) Run(ctx context.Context) (*Summary, error) {
	targetIssues, err := e.target.SearchIssues(ctx, e.matcher.ScopeJQL())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch jira issues: %v", err)
	}

	sourceIssues, err := e.source.ListIssues(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch github issues: %v", err)
	}

	logging.Info("starting reconciliation pass",
		"github_issues", len(sourceIssues),
		"jira_issues", len(targetIssues),
		"workers", e.workers)

	// One pause between the bulk fetch and the record loop keeps the
	// pass inside the rate-limit window.
	if e.fetchDelay > 0 {
		select {
		case <-time.After(e.fetchDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	var mu sync.Mutex
	processed := make(map[string]bool, len(sourceIssues))

	results := make([]Result, len(sourceIssues))

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, issue := range sourceIssues {
		g.Go(func() error {
			result := e.processRecord(ctx, issue)
			results[i] = result

			if result.Action == ActionCreated || result.Action == ActionUpdated {
				e.logCommentActivity(ctx, issue, result.Key)
			}

			mu.Lock()
			if result.Key != "" {
				processed[result.Key] = true
			}
			for _, key := range result.Subtasks {
				processed[key] = true
			}
			mu.Unlock()
			return nil
		})
	}

	// Record failures live in results, never in the group error, so the
	// pool always drains fully before orphan handling.
	_ = g.Wait()

	summary := &Summary{Results: results}
	for _, result := range results {
		switch result.Action {
		case ActionCreated:
			summary.Created++
		case ActionUpdated:
			summary.Updated++
		case ActionSkipped:
			summary.Skipped++
		case ActionErrored:
			summary.Errored++
		}
	}

	var orphans []models.JiraIssue
	for _, issue := range targetIssues {
		if !processed[issue.Key] {
			orphans = append(orphans, issue)
		}
	}
	summary.Orphans = len(orphans)

	if err := e.orphans.Handle(ctx, orphans); err != nil {
		logging.Error("orphan handling failed", "error", err)
	}

	logging.Info("reconciliation pass complete",
		"created", summary.Created,
		"updated", summary.Updated,
		"skipped", summary.Skipped,
		"errored", summary.Errored,
		"orphans", summary.Orphans)

	return summary, nil
}

// processRecord runs the per-record state machine. Every failure is
// converted to an errored result at this boundary.
func (e *Engine) processRecord(ctx context.Context, issue models.GitHubIssue) Result {
	if issue.IsPullRequest {
		logging.Debug("skipping pull request", "number", issue.Number)
		return Result{IssueNumber: issue.Number, Action: ActionSkipped}
	}

	existing, err := e.matcher.Find(ctx, issue)
	if err != nil {
		return e.errored(issue, "", err)
	}

	if existing == nil {
		return e.createRecord(ctx, issue)
	}
	return e.updateRecord(ctx, issue, existing)
}

// createRecord handles a source issue with no linked target issue yet.
func (e *Engine) createRecord(ctx context.Context, issue models.GitHubIssue) Result {
	fields := e.fields.BuildFields(issue, ModeCreate)

	key, err := e.target.CreateIssue(ctx, fields)
	if err != nil {
		return e.errored(issue, "", err)
	}

	logging.Info("created jira issue",
		"key", key,
		"issue_number", issue.Number)

	subtaskKeys, err := e.subtasks.Reconcile(ctx, key, issue)
	if err != nil {
		result := e.errored(issue, key, err)
		result.Subtasks = subtaskKeys
		return result
	}

	return Result{IssueNumber: issue.Number, Action: ActionCreated, Key: key, Subtasks: subtaskKeys}
}

// updateRecord refreshes an already linked target issue: full replace of
// the mutable fields, remote-link upsert, then a reopen transition if the
// source is open while the target is closed. The field replace always
// happens before the transition.
func (e *Engine) updateRecord(ctx context.Context, issue models.GitHubIssue, existing *models.JiraIssue) Result {
	fields := e.fields.BuildFields(issue, ModeUpdate)

	if err := e.target.UpdateIssue(ctx, existing.Key, fields); err != nil {
		return e.errored(issue, existing.Key, err)
	}

	globalID := fmt.Sprintf("github-%s", issue.ID)
	if err := e.target.AddRemoteLink(ctx, existing.Key, globalID, issue.URL, issue.URL); err != nil {
		return e.errored(issue, existing.Key, err)
	}

	if issue.State == "open" && existing.Status == StatusClosed {
		logging.Info("github issue is open but jira issue is closed, reopening",
			"key", existing.Key,
			"issue_number", issue.Number)
		if err := e.target.TransitionIssue(ctx, existing.Key, StatusNew); err != nil {
			return e.errored(issue, existing.Key, err)
		}
	}

	subtaskKeys, err := e.subtasks.Reconcile(ctx, existing.Key, issue)
	if err != nil {
		result := e.errored(issue, existing.Key, err)
		result.Subtasks = subtaskKeys
		return result
	}

	logging.Info("updated jira issue",
		"key", existing.Key,
		"issue_number", issue.Number)

	return Result{IssueNumber: issue.Number, Action: ActionUpdated, Key: existing.Key, Subtasks: subtaskKeys}
}

// logCommentActivity fetches the issue detail and logs its comment count.
// Comments are informational only, so the extra lookup is skipped unless
// debug logging is enabled, and a failure never affects the record.
func (e *Engine) logCommentActivity(ctx context.Context, issue models.GitHubIssue, key string) {
	if !logging.GetLogger().Enabled(ctx, slog.LevelDebug) {
		return
	}

	detail, err := e.source.GetIssue(ctx, issue.Number)
	if err != nil {
		logging.Debug("failed to fetch issue detail",
			"issue_number", issue.Number,
			"error", err)
		return
	}

	logging.Debug("issue comment activity",
		"issue_number", issue.Number,
		"key", key,
		"comments", len(detail.Comments))
}

// errored logs a record failure and produces its result. The key, when
// already resolved, still marks the target issue as touched so it is not
// misreported as an orphan.
func (e *Engine) errored(issue models.GitHubIssue, key string, err error) Result {
	logging.Error("failed to reconcile issue",
		"issue_number", issue.Number,
		"key", key,
		"error", err)
	return Result{IssueNumber: issue.Number, Action: ActionErrored, Key: key, Err: err}
}
