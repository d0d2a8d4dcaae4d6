package monitor

import (
	"fmt"

	"github.com/concordlabs/concord/pkg/models"
)

// ActionType names a corrective action the monitor can propose.
type ActionType string

const (
	// ActionReassignDependency proposes rerouting work around a failed
	// prerequisite.
	ActionReassignDependency ActionType = "reassign_dependency"
	// ActionAllocateResources proposes giving a delayed task more capacity.
	ActionAllocateResources ActionType = "allocate_resources"
	// ActionResolveConflict proposes running the conflict resolver.
	ActionResolveConflict ActionType = "resolve_conflict"
	// ActionReviewStrategy proposes a strategic-level review of the plan.
	ActionReviewStrategy ActionType = "review_strategy"
)

// CorrectiveAction is one proposed remedy, referencing its source issue
// for traceability.
type CorrectiveAction struct {
	Type       ActionType `json:"type"`
	IssueType  IssueType  `json:"issue_type"`
	TaskID     string     `json:"task_id,omitempty"`
	ConflictID string     `json:"conflict_id,omitempty"`
	Suggestion string     `json:"suggestion"`
	// Escalate marks actions that must be forwarded to the strategic
	// level rather than handled tactically.
	Escalate bool `json:"escalate,omitempty"`
}

// SuggestCorrectiveActions proposes one action per issue, dispatched by
// issue type.
func (m *Monitor) SuggestCorrectiveActions(issues []Issue) []CorrectiveAction {
	var actions []CorrectiveAction
	for _, issue := range issues {
		switch issue.Type {
		case IssueBlockedTask:
			actions = append(actions, CorrectiveAction{
				Type:       ActionReassignDependency,
				IssueType:  issue.Type,
				TaskID:     issue.TaskID,
				Suggestion: fmt.Sprintf("reassign or replan the failed dependencies %v of task %s", issue.BlockedBy, issue.TaskID),
			})
		case IssueDelayedTask:
			actions = append(actions, CorrectiveAction{
				Type:       ActionAllocateResources,
				IssueType:  issue.Type,
				TaskID:     issue.TaskID,
				Suggestion: fmt.Sprintf("allocate additional capacity to task %s or split it", issue.TaskID),
			})
		case IssueConflict:
			actions = append(actions, CorrectiveAction{
				Type:       ActionResolveConflict,
				IssueType:  issue.Type,
				ConflictID: issue.ConflictID,
				Suggestion: fmt.Sprintf("run conflict resolution for %s", issue.ConflictID),
			})
		case IssueHighFailureRate:
			actions = append(actions, CorrectiveAction{
				Type:       ActionReviewStrategy,
				IssueType:  issue.Type,
				Suggestion: fmt.Sprintf("failure rate too high (%d/%d): review task decomposition at the strategic level", issue.FailedTasks, issue.TotalTasks),
				Escalate:   true,
			})
		}
	}
	return actions
}

// PublishReport sends a progress report up the hierarchy as an
// information message. No-op without middleware.
func (m *Monitor) PublishReport(recipient string, report Report) error {
	if m.middleware == nil {
		return nil
	}

	msg := models.NewMessage(models.MessageInformation, "progress-monitor", models.LevelTactical, recipient, map[string]any{
		"report_type":      "progress",
		"overall_progress": report.OverallProgress,
		"issue_count":      len(report.Issues),
		"report":           report,
	})
	return m.middleware.Route(msg)
}

// PublishCriticalIssues sends detected critical issues and their
// proposed actions upward as a critical-priority event.
// No-op without middleware or issues.
func (m *Monitor) PublishCriticalIssues(recipient string, issues []Issue) error {
	if m.middleware == nil || len(issues) == 0 {
		return nil
	}

	actions := m.SuggestCorrectiveActions(issues)
	msg := models.NewMessage(models.MessageEvent, "progress-monitor", models.LevelTactical, recipient, map[string]any{
		"event_type": "critical_issues",
		"issues":     issues,
		"actions":    actions,
	}).WithPriority(models.PriorityCritical)
	return m.middleware.Route(msg)
}
