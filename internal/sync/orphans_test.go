package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avutkin/tracksync/pkg/models"
)

func TestLogOrphansNeverTouchesTarget(t *testing.T) {
	orphans := []models.JiraIssue{
		{Key: "PROJ-1", Status: "New"},
		{Key: "PROJ-2", Status: "In Progress"},
	}

	err := LogOrphans{}.Handle(context.Background(), orphans)
	require.NoError(t, err)

	assert.NoError(t, LogOrphans{}.Handle(context.Background(), nil))
}

func TestCloseOrphansSkipsTerminalStatuses(t *testing.T) {
	var closed []string
	target := &mockTarget{
		TransitionIssueFunc: func(ctx context.Context, key, statusName string) error {
			assert.Equal(t, StatusDone, statusName)
			closed = append(closed, key)
			return nil
		},
	}

	orphans := []models.JiraIssue{
		{Key: "PROJ-1", Status: "New"},
		{Key: "PROJ-2", Status: StatusDone},
		{Key: "PROJ-3", Status: StatusClosed},
		{Key: "PROJ-4", Status: "In Progress"},
	}

	err := CloseOrphans{Target: target}.Handle(context.Background(), orphans)
	require.NoError(t, err)

	assert.Equal(t, []string{"PROJ-1", "PROJ-4"}, closed)
}

// TestCloseOrphansContinuesPastFailures checks that one failing transition
// does not abandon the remaining orphans.
func TestCloseOrphansContinuesPastFailures(t *testing.T) {
	var attempted []string
	target := &mockTarget{
		TransitionIssueFunc: func(ctx context.Context, key, statusName string) error {
			attempted = append(attempted, key)
			if key == "PROJ-1" {
				return errors.New("transition not available")
			}
			return nil
		},
	}

	orphans := []models.JiraIssue{
		{Key: "PROJ-1", Status: "New"},
		{Key: "PROJ-2", Status: "New"},
	}

	err := CloseOrphans{Target: target}.Handle(context.Background(), orphans)
	require.NoError(t, err)

	assert.Equal(t, []string{"PROJ-1", "PROJ-2"}, attempted)
}

func TestPolicyFor(t *testing.T) {
	target := &mockTarget{}

	assert.IsType(t, LogOrphans{}, PolicyFor("log", target))
	assert.IsType(t, CloseOrphans{}, PolicyFor("close", target))

	// Unknown actions fall back to the safe default.
	assert.IsType(t, LogOrphans{}, PolicyFor("delete", target))
	assert.IsType(t, LogOrphans{}, PolicyFor("", target))
}
