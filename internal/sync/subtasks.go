package sync

import (
	"context"
	"fmt"

	"github.com/avutkin/tracksync/internal/logging"
	"github.com/avutkin/tracksync/pkg/models"
)

// SubIssueReconciler mirrors the cross-referenced child issues of a GitHub
// issue as Jira sub-tasks under the linked parent. The procedure is
// idempotent: with no upstream change a rerun updates in place and creates
// nothing.
type SubIssueReconciler struct {
	source SourceService
	target TargetService
	fields *FieldMapper
}

// NewSubIssueReconciler wires a reconciler to its collaborators.
func NewSubIssueReconciler(source SourceService, target TargetService, fields *FieldMapper) *SubIssueReconciler {
	return &SubIssueReconciler{
		source: source,
		target: target,
		fields: fields,
	}
}

// Reconcile diffs the current cross-reference set of a GitHub issue
// against the existing sub-tasks of its Jira parent. Present children are
// updated, new children created, and sub-tasks whose child disappeared are
// transitioned to Done. Sub-tasks are never deleted.
//
// It returns the keys of every sub-task under the parent, created ones
// included. Sub-tasks belong to the pass through their parent, so the
// caller must count them as claimed; a project-wide bulk fetch returns
// them alongside regular issues and they must never reach the orphan
// policy. On error the keys collected so far are still returned.
func (r *SubIssueReconciler) Reconcile(ctx context.Context, parentKey string, issue models.GitHubIssue) ([]string, error) {
	existing, err := r.target.SearchSubtasks(ctx, parentKey)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sub-tasks of %s: %v", parentKey, err)
	}

	keys := make([]string, 0, len(existing))
	for _, subtask := range existing {
		keys = append(keys, subtask.Key)
	}

	// Index existing sub-tasks by the source issue number embedded in
	// their descriptions. Sub-tasks without a back-reference were created
	// by hand and are left alone.
	byNumber := make(map[int]models.JiraSubtask, len(existing))
	for _, subtask := range existing {
		number, ok := ParseSubIssueNumber(subtask.Description)
		if !ok {
			logging.Debug("ignoring sub-task without back-reference",
				"key", subtask.Key,
				"parent", parentKey)
			continue
		}
		byNumber[number] = subtask
	}

	children, err := r.source.ListCrossReferences(ctx, issue.Number)
	if err != nil {
		return keys, fmt.Errorf("failed to fetch cross-references of issue #%d: %v", issue.Number, err)
	}

	for _, child := range children {
		fields := r.fields.BuildSubtaskFields(child)

		if subtask, ok := byNumber[child.Number]; ok {
			if err := r.target.UpdateIssue(ctx, subtask.Key, fields); err != nil {
				return keys, fmt.Errorf("failed to update sub-task %s: %v", subtask.Key, err)
			}
			logging.Debug("updated sub-task",
				"key", subtask.Key,
				"child_number", child.Number)
			delete(byNumber, child.Number)
			continue
		}

		key, err := r.target.CreateSubtask(ctx, parentKey, fields)
		if err != nil {
			return keys, fmt.Errorf("failed to create sub-task for child #%d: %v", child.Number, err)
		}
		keys = append(keys, key)
		logging.Info("created sub-task",
			"key", key,
			"parent", parentKey,
			"child_number", child.Number)
	}

	// Whatever remains in the index has no matching child anymore; close
	// it but keep the record.
	for number, subtask := range byNumber {
		if subtask.Status == StatusDone {
			continue
		}
		if err := r.target.TransitionIssue(ctx, subtask.Key, StatusDone); err != nil {
			return keys, fmt.Errorf("failed to close sub-task %s: %v", subtask.Key, err)
		}
		logging.Info("closed sub-task, child no longer referenced",
			"key", subtask.Key,
			"child_number", number)
	}

	return keys, nil
}
