package sync

import (
	"context"

	"github.com/avutkin/tracksync/internal/logging"
	"github.com/avutkin/tracksync/pkg/models"
)

// OrphanPolicy decides what happens to Jira issues in scope that no source
// record claimed during the pass. An orphan is not necessarily stale: its
// source issue may simply have fallen outside the fetch window, so nothing
// is closed without explicit configuration.
type OrphanPolicy interface {
	Handle(ctx context.Context, orphans []models.JiraIssue) error
}

// LogOrphans surfaces orphans for operator review and takes no action.
// This is the default policy.
type LogOrphans struct{}

// Handle logs the orphan count and keys.
func (LogOrphans) Handle(_ context.Context, orphans []models.JiraIssue) error {
	if len(orphans) == 0 {
		return nil
	}

	keys := make([]string, len(orphans))
	for i, orphan := range orphans {
		keys[i] = orphan.Key
	}

	logging.Warn("jira issues with no linked github issue in this pass",
		"count", len(orphans),
		"keys", keys)
	return nil
}

// CloseOrphans transitions every orphan to Done. Only selected through
// explicit configuration.
type CloseOrphans struct {
	Target TargetService
}

// Handle closes each orphan that is not already in a terminal status. A
// failing transition is logged and does not stop the remaining orphans.
func (p CloseOrphans) Handle(ctx context.Context, orphans []models.JiraIssue) error {
	for _, orphan := range orphans {
		if orphan.Status == StatusDone || orphan.Status == StatusClosed {
			continue
		}
		if err := p.Target.TransitionIssue(ctx, orphan.Key, StatusDone); err != nil {
			logging.Error("failed to close orphaned jira issue",
				"key", orphan.Key,
				"error", err)
			continue
		}
		logging.Info("closed orphaned jira issue", "key", orphan.Key)
	}
	return nil
}

// PolicyFor selects the orphan policy for a configured action. Unknown
// actions fall back to logging, the safe default.
func PolicyFor(action string, target TargetService) OrphanPolicy {
	switch action {
	case "close":
		return CloseOrphans{Target: target}
	case "log":
		return LogOrphans{}
	default:
		logging.Warn("unknown orphan action, falling back to log", "action", action)
		return LogOrphans{}
	}
}
