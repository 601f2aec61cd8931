package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	jira "github.com/andygrunwald/go-jira"

	"github.com/avutkin/tracksync/pkg/models"
)

// mockSource implements SourceService for testing
type mockSource struct {
	ListIssuesFunc          func(context.Context) ([]models.GitHubIssue, error)
	GetIssueFunc            func(context.Context, int) (models.GitHubIssue, error)
	ListCrossReferencesFunc func(context.Context, int) ([]models.GitHubSubIssue, error)
}

func (m *mockSource) ListIssues(ctx context.Context) ([]models.GitHubIssue, error) {
	if m.ListIssuesFunc != nil {
		return m.ListIssuesFunc(ctx)
	}
	return nil, errors.New("ListIssues not implemented")
}

func (m *mockSource) GetIssue(ctx context.Context, number int) (models.GitHubIssue, error) {
	if m.GetIssueFunc != nil {
		return m.GetIssueFunc(ctx, number)
	}
	return models.GitHubIssue{}, nil
}

func (m *mockSource) ListCrossReferences(ctx context.Context, number int) ([]models.GitHubSubIssue, error) {
	if m.ListCrossReferencesFunc != nil {
		return m.ListCrossReferencesFunc(ctx, number)
	}
	return nil, nil
}

// mockTarget implements TargetService for testing
type mockTarget struct {
	SearchIssuesFunc    func(context.Context, string) ([]models.JiraIssue, error)
	CreateIssueFunc     func(context.Context, *jira.IssueFields) (string, error)
	UpdateIssueFunc     func(context.Context, string, *jira.IssueFields) error
	AddRemoteLinkFunc   func(context.Context, string, string, string, string) error
	TransitionIssueFunc func(context.Context, string, string) error
	SearchSubtasksFunc  func(context.Context, string) ([]models.JiraSubtask, error)
	CreateSubtaskFunc   func(context.Context, string, *jira.IssueFields) (string, error)
}

func (m *mockTarget) SearchIssues(ctx context.Context, jql string) ([]models.JiraIssue, error) {
	if m.SearchIssuesFunc != nil {
		return m.SearchIssuesFunc(ctx, jql)
	}
	return nil, nil
}

func (m *mockTarget) CreateIssue(ctx context.Context, fields *jira.IssueFields) (string, error) {
	if m.CreateIssueFunc != nil {
		return m.CreateIssueFunc(ctx, fields)
	}
	return "", errors.New("CreateIssue not implemented")
}

func (m *mockTarget) UpdateIssue(ctx context.Context, key string, fields *jira.IssueFields) error {
	if m.UpdateIssueFunc != nil {
		return m.UpdateIssueFunc(ctx, key, fields)
	}
	return nil
}

func (m *mockTarget) AddRemoteLink(ctx context.Context, key, globalID, title, linkURL string) error {
	if m.AddRemoteLinkFunc != nil {
		return m.AddRemoteLinkFunc(ctx, key, globalID, title, linkURL)
	}
	return nil
}

func (m *mockTarget) TransitionIssue(ctx context.Context, key, statusName string) error {
	if m.TransitionIssueFunc != nil {
		return m.TransitionIssueFunc(ctx, key, statusName)
	}
	return nil
}

func (m *mockTarget) SearchSubtasks(ctx context.Context, parentKey string) ([]models.JiraSubtask, error) {
	if m.SearchSubtasksFunc != nil {
		return m.SearchSubtasksFunc(ctx, parentKey)
	}
	return nil, nil
}

func (m *mockTarget) CreateSubtask(ctx context.Context, parentKey string, fields *jira.IssueFields) (string, error) {
	if m.CreateSubtaskFunc != nil {
		return m.CreateSubtaskFunc(ctx, parentKey, fields)
	}
	return "", errors.New("CreateSubtask not implemented")
}

// fakeJira is an in-memory TargetService with write counters, used for
// whole-pass tests such as idempotence.
type fakeJira struct {
	mu sync.Mutex

	issues   map[string]models.JiraIssue
	subtasks map[string][]models.JiraSubtask

	nextID      int
	creates     int
	updates     int
	transitions int
	remoteLinks int
}

func newFakeJira() *fakeJira {
	return &fakeJira{
		issues:   make(map[string]models.JiraIssue),
		subtasks: make(map[string][]models.JiraSubtask),
	}
}

func (f *fakeJira) SearchIssues(_ context.Context, jql string) ([]models.JiraIssue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	token := descriptionToken(jql)
	var result []models.JiraIssue
	for _, issue := range f.issues {
		if token == "" || strings.Contains(issue.Description, token) {
			result = append(result, issue)
		}
	}
	return result, nil
}

func (f *fakeJira) CreateIssue(_ context.Context, fields *jira.IssueFields) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	f.creates++
	key := fmt.Sprintf("PROJ-%d", f.nextID)
	f.issues[key] = models.JiraIssue{
		Key:         key,
		ID:          fmt.Sprintf("%d", 10000+f.nextID),
		Summary:     fields.Summary,
		Description: fields.Description,
		Labels:      fields.Labels,
		Status:      StatusNew,
	}
	return key, nil
}

func (f *fakeJira) UpdateIssue(_ context.Context, key string, fields *jira.IssueFields) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.updates++
	if issue, ok := f.issues[key]; ok {
		issue.Summary = fields.Summary
		issue.Description = fields.Description
		issue.Labels = fields.Labels
		f.issues[key] = issue
		return nil
	}

	for parent, subtasks := range f.subtasks {
		for i, subtask := range subtasks {
			if subtask.Key == key {
				subtasks[i].Summary = fields.Summary
				subtasks[i].Description = fields.Description
				f.subtasks[parent] = subtasks
				return nil
			}
		}
	}
	return fmt.Errorf("no such issue: %s", key)
}

func (f *fakeJira) AddRemoteLink(_ context.Context, key, _, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.issues[key]; !ok {
		return fmt.Errorf("no such issue: %s", key)
	}
	f.remoteLinks++
	return nil
}

func (f *fakeJira) TransitionIssue(_ context.Context, key, statusName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.transitions++
	if issue, ok := f.issues[key]; ok {
		issue.Status = statusName
		f.issues[key] = issue
		return nil
	}

	for parent, subtasks := range f.subtasks {
		for i, subtask := range subtasks {
			if subtask.Key == key {
				subtasks[i].Status = statusName
				f.subtasks[parent] = subtasks
				return nil
			}
		}
	}
	return fmt.Errorf("no such issue: %s", key)
}

func (f *fakeJira) SearchSubtasks(_ context.Context, parentKey string) ([]models.JiraSubtask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	result := make([]models.JiraSubtask, len(f.subtasks[parentKey]))
	copy(result, f.subtasks[parentKey])
	return result, nil
}

func (f *fakeJira) CreateSubtask(_ context.Context, parentKey string, fields *jira.IssueFields) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	f.creates++
	key := fmt.Sprintf("PROJ-%d", f.nextID)
	f.subtasks[parentKey] = append(f.subtasks[parentKey], models.JiraSubtask{
		Key:         key,
		ParentKey:   parentKey,
		Summary:     fields.Summary,
		Description: fields.Description,
		Status:      StatusNew,
	})
	return key, nil
}

// descriptionToken extracts the quoted operand of a "description ~" clause
// from a JQL query, or "" when the query has none.
func descriptionToken(jql string) string {
	_, after, found := strings.Cut(jql, `description ~ "`)
	if !found {
		return ""
	}
	token, _, found := strings.Cut(after, `"`)
	if !found {
		return ""
	}
	return token
}
