package sync

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/avutkin/tracksync/internal/logging"
	"github.com/avutkin/tracksync/pkg/models"
)

// ErrAmbiguousLinkage marks the consistency violation of finding more than
// one Jira issue linked to the same GitHub issue. It is logged, never
// returned: the matcher deterministically picks the first candidate.
var ErrAmbiguousLinkage = errors.New("multiple jira issues linked to one github issue")

// Matcher looks up the Jira issue linked to a GitHub issue through the
// upstream URL token embedded in issue descriptions.
type Matcher struct {
	target     TargetService
	projectKey string
	component  string
}

// NewMatcher returns a matcher scoped to one project and component. An
// empty component widens the scope to the whole project.
func NewMatcher(target TargetService, projectKey, component string) *Matcher {
	return &Matcher{
		target:     target,
		projectKey: projectKey,
		component:  component,
	}
}

// ScopeJQL returns the JQL clause selecting all issues this matcher
// considers. The engine uses the same scope for its bulk target fetch so
// that matching and orphan detection see the same issue set.
func (m *Matcher) ScopeJQL() string {
	if m.component == "" {
		return fmt.Sprintf("project = %q", m.projectKey)
	}
	return fmt.Sprintf("project = %q AND component = %q", m.projectKey, m.component)
}

// Find returns the Jira issue whose description embeds the GitHub issue's
// URL, or nil when none exists. With more than one candidate the match is
// ambiguous; the lexicographically first key wins so reruns stay
// deterministic.
func (m *Matcher) Find(ctx context.Context, issue models.GitHubIssue) (*models.JiraIssue, error) {
	jql := fmt.Sprintf("%s AND description ~ %q", m.ScopeJQL(), issue.URL)

	candidates, err := m.target.SearchIssues(ctx, jql)
	if err != nil {
		return nil, fmt.Errorf("linkage lookup for issue #%d failed: %v", issue.Number, err)
	}

	if len(candidates) == 0 {
		return nil, nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Key < candidates[j].Key
	})

	if len(candidates) > 1 {
		keys := make([]string, len(candidates))
		for i, candidate := range candidates {
			keys[i] = candidate.Key
		}
		logging.Warn(ErrAmbiguousLinkage.Error(),
			"issue_number", issue.Number,
			"candidates", keys,
			"picked", keys[0])
	}

	return &candidates[0], nil
}
