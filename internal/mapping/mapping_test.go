package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTranslateLabel(t *testing.T) {
	testCases := []struct {
		name     string
		label    string
		expected string
	}{
		{
			name:     "Single internal space",
			label:    "needs triage",
			expected: "needs-triage",
		},
		{
			name:     "Already translated label is unchanged",
			label:    "needs-triage",
			expected: "needs-triage",
		},
		{
			name:     "Multiple words",
			label:    "good first issue",
			expected: "good-first-issue",
		},
		{
			name:     "Run of whitespace collapses to one dash",
			label:    "P1   urgent",
			expected: "P1-urgent",
		},
		{
			name:     "Leading and trailing whitespace is dropped",
			label:    "  bug  ",
			expected: "bug",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, TranslateLabel(tc.label))

			// Translating twice must be a no-op.
			assert.Equal(t, tc.expected, TranslateLabel(TranslateLabel(tc.label)))
		})
	}
}

func TestJiraLabels(t *testing.T) {
	labels := JiraLabels([]string{"P1 urgent", "bug"})
	assert.Equal(t, []string{"GitHub", "P1-urgent", "bug"}, labels)

	// Even with no source labels the sentinel is present.
	assert.Equal(t, []string{"GitHub"}, JiraLabels(nil))
}

func TestJiraIssueType(t *testing.T) {
	tables := Defaults()

	testCases := []struct {
		name      string
		issueType string
		expected  string
	}{
		{name: "Bug maps to Bug", issueType: "Bug", expected: "Bug"},
		{name: "Feature maps to Story", issueType: "Feature", expected: "Story"},
		{name: "Tech debt maps to Task", issueType: "Tech debt", expected: "Task"},
		{name: "Unmapped type falls back to Story", issueType: "Wishlist", expected: "Story"},
		{name: "Empty type falls back to Story", issueType: "", expected: "Story"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tables.JiraIssueType(tc.issueType))
		})
	}
}

func TestJiraComponent(t *testing.T) {
	tables := Defaults()

	assert.Equal(t, "patternfly-react", tables.JiraComponent("patternfly-react"))
	assert.Equal(t, "", tables.JiraComponent("some-random-repo"))

	custom := Defaults().WithComponents([]string{"widgets"})
	assert.Equal(t, "widgets", custom.JiraComponent("widgets"))
	assert.Equal(t, "", custom.JiraComponent("patternfly-react"))
}

func TestJiraAssignee(t *testing.T) {
	tables := Defaults().WithUsers(map[string]string{
		"alice": "alice@example.com",
	})

	testCases := []struct {
		name      string
		assignees []string
		expected  string
	}{
		{
			name:      "Mapped primary assignee",
			assignees: []string{"alice", "bob"},
			expected:  "alice@example.com",
		},
		{
			name:      "Unmapped primary assignee resolves to unassigned",
			assignees: []string{"bob", "alice"},
			expected:  "",
		},
		{
			name:      "No assignees",
			assignees: nil,
			expected:  "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tables.JiraAssignee(tc.assignees))
		})
	}
}
