// Package mapping holds the translation tables between GitHub and Jira
// identities: user handles, issue types, components and labels.
package mapping

import (
	"strings"
)

// ProvenanceLabel is prepended to every synchronized issue's labels to mark
// it as sourced from GitHub.
const ProvenanceLabel = "GitHub"

// DefaultIssueType is used when a GitHub issue type has no mapping.
const DefaultIssueType = "Story"

// EpicIssueType is the Jira type that requires the epic-name field on creation.
const EpicIssueType = "Epic"

// defaultIssueTypes maps GitHub issue type classifiers to Jira issue types.
var defaultIssueTypes = map[string]string{
	"Bug":           "Bug",
	"Epic":          "Epic",
	"Task":          "Task",
	"Feature":       "Story",
	"DevX":          "Task",
	"Documentation": "Story",
	"Demo":          "Story",
	"Support":       "Story",
	"Tech debt":     "Task",
	"Initiative":    "Feature",
}

// defaultComponents is the allow-list of repository names that exist as
// components in the Jira project. Repositories outside the list map to
// "no component".
var defaultComponents = []string{
	"AI-infra-ui-components",
	"chatbot",
	"design-tokens",
	"icons",
	"mission-control-dashboard",
	"patternfly",
	"patternfly-a11y",
	"patternfly-design",
	"patternfly-design-kit",
	"patternfly-extension-seed",
	"patternfly-infra-issues",
	"patternfly-org",
	"patternfly-quickstarts",
	"patternfly-react",
	"patternfly-react-seed",
	"pf-codemods",
	"pf-roadmap",
	"react-catalog-view",
	"react-component-groups",
	"react-console",
	"react-data-view",
	"react-log-viewer",
	"react-topology",
	"react-user-feedback",
	"react-virtualized-extension",
	"virtual-assistant",
}

// Tables bundles the lookup tables used by the field mapper. A zero value
// is usable; Defaults() returns the tables of the reference deployment.
type Tables struct {
	// Users maps GitHub logins to Jira account identifiers. The mapping
	// is partial: an unmapped login resolves to the empty (unassigned)
	// Jira assignee.
	Users map[string]string

	// IssueTypes maps GitHub issue type names to Jira issue types.
	IssueTypes map[string]string

	// Components is the allow-list of valid Jira component names.
	Components map[string]bool
}

// Defaults returns the built-in translation tables.
func Defaults() *Tables {
	components := make(map[string]bool, len(defaultComponents))
	for _, c := range defaultComponents {
		components[c] = true
	}

	return &Tables{
		Users: map[string]string{
			"evwilkin": "ewilkins@redhat.com",
		},
		IssueTypes: defaultIssueTypes,
		Components: components,
	}
}

// WithUsers replaces the user table, keeping the rest. Used to apply
// operator-provided overrides from configuration.
func (t *Tables) WithUsers(users map[string]string) *Tables {
	if len(users) > 0 {
		t.Users = users
	}
	return t
}

// WithComponents replaces the component allow-list, keeping the rest.
func (t *Tables) WithComponents(components []string) *Tables {
	if len(components) == 0 {
		return t
	}
	allowed := make(map[string]bool, len(components))
	for _, c := range components {
		allowed[c] = true
	}
	t.Components = allowed
	return t
}

// JiraAssignee resolves the primary (first) GitHub assignee to a Jira
// account identifier. A missing or unmapped assignee resolves to the empty
// string, which means explicit unassignment rather than "leave unchanged".
func (t *Tables) JiraAssignee(assignees []string) string {
	if len(assignees) == 0 {
		return ""
	}
	return t.Users[assignees[0]]
}

// JiraIssueType resolves a GitHub issue type name to a Jira issue type,
// falling back to DefaultIssueType when unmapped or empty.
func (t *Tables) JiraIssueType(name string) string {
	if mapped, ok := t.IssueTypes[name]; ok {
		return mapped
	}
	return DefaultIssueType
}

// JiraComponent passes a repository name through the component allow-list.
// Repositories outside the list yield the empty string ("no component").
func (t *Tables) JiraComponent(repository string) string {
	if t.Components[repository] {
		return repository
	}
	return ""
}

// TranslateLabel rewrites a GitHub label into Jira's label alphabet by
// joining internal whitespace runs with a single '-'. The translation is
// idempotent: an already-translated label passes through unchanged.
func TranslateLabel(label string) string {
	return strings.Join(strings.Fields(label), "-")
}

// JiraLabels translates every GitHub label and prepends the provenance
// sentinel label.
func JiraLabels(labels []string) []string {
	result := make([]string, 0, len(labels)+1)
	result = append(result, ProvenanceLabel)
	for _, label := range labels {
		result = append(result, TranslateLabel(label))
	}
	return result
}
