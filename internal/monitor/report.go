package monitor

import (
	"fmt"
	"time"

	"github.com/concordlabs/concord/internal/state"
	"github.com/concordlabs/concord/pkg/models"
)

// IssueType classifies a detected execution problem.
type IssueType string

const (
	// IssueBlockedTask means a task's dependency set intersects the failed bucket.
	IssueBlockedTask IssueType = "blocked_task"
	// IssueDelayedTask means an in-progress task is behind its estimate,
	// or shows the weak no-metadata delay signal.
	IssueDelayedTask IssueType = "delayed_task"
	// IssueHighFailureRate means too large a share of all tasks failed.
	IssueHighFailureRate IssueType = "high_failure_rate"
	// IssueConflict carries an unresolved result conflict into a report.
	IssueConflict IssueType = "conflict"
	// IssueFailedTask carries a failed task into a report.
	IssueFailedTask IssueType = "failed_task"
)

// Issue is one detected execution problem.
type Issue struct {
	Type        IssueType       `json:"type"`
	Severity    models.Severity `json:"severity"`
	Description string          `json:"description"`
	TaskID      string          `json:"task_id,omitempty"`
	ConflictID  string          `json:"conflict_id,omitempty"`
	// BlockedBy lists the failed prerequisites of a blocked task.
	BlockedBy []string `json:"blocked_by,omitempty"`
	// Elapsed and Progress qualify delayed-task issues.
	Elapsed  time.Duration `json:"elapsed,omitempty"`
	Progress float64       `json:"progress,omitempty"`
	// FailedTasks and TotalTasks qualify failure-rate issues.
	FailedTasks int `json:"failed_tasks,omitempty"`
	TotalTasks  int `json:"total_tasks,omitempty"`
}

// ObjectiveProgress is the aggregate progress of one objective's tasks.
type ObjectiveProgress struct {
	ObjectiveID string  `json:"objective_id"`
	Description string  `json:"description"`
	Progress    float64 `json:"progress"`
	TaskCount   int     `json:"task_count"`
}

// Report is a point-in-time progress summary of the whole run.
type Report struct {
	GeneratedAt     time.Time           `json:"generated_at"`
	OverallProgress float64             `json:"overall_progress"`
	Objectives      []ObjectiveProgress `json:"objectives,omitempty"`
	Issues          []Issue             `json:"issues,omitempty"`
	Metrics         state.Metrics       `json:"metrics"`
	Snapshot        state.Snapshot      `json:"snapshot"`
}

// taskWeight is a task's contribution to aggregate progress: completed
// counts as 1.0, in-progress as its tracked value, pending and failed
// as 0.0.
func (m *Monitor) taskWeight(t *models.Task) float64 {
	switch t.Status {
	case models.TaskStatusCompleted:
		return 1.0
	case models.TaskStatusInProgress:
		p, _ := m.state.Progress(t.ID)
		return p
	default:
		return 0.0
	}
}

// GenerateProgressReport computes aggregate and per-objective progress
// and collects open issues: unresolved conflicts, failed tasks, and
// pending tasks blocked by a failed dependency.
func (m *Monitor) GenerateProgressReport() Report {
	tasks := m.state.AllTasks()

	overall := 0.0
	if len(tasks) > 0 {
		for _, t := range tasks {
			overall += m.taskWeight(t)
		}
		overall /= float64(len(tasks))
	}

	var objectives []ObjectiveProgress
	for _, obj := range m.state.Objectives() {
		sum, count := 0.0, 0
		for _, t := range tasks {
			if t.ObjectiveID != obj.ID {
				continue
			}
			sum += m.taskWeight(t)
			count++
		}
		progress := 0.0
		if count > 0 {
			progress = sum / float64(count)
		}
		objectives = append(objectives, ObjectiveProgress{
			ObjectiveID: obj.ID,
			Description: obj.Description,
			Progress:    progress,
			TaskCount:   count,
		})
	}

	var issues []Issue
	for _, c := range m.state.Conflicts() {
		if c.Resolved {
			continue
		}
		issues = append(issues, Issue{
			Type:        IssueConflict,
			Severity:    c.Severity,
			Description: c.Description,
			ConflictID:  c.ID,
		})
	}
	for _, t := range m.state.Tasks(models.TaskStatusFailed) {
		issues = append(issues, Issue{
			Type:        IssueFailedTask,
			Severity:    models.SeverityHigh,
			Description: fmt.Sprintf("task %s failed: %s", t.ID, t.Error),
			TaskID:      t.ID,
		})
	}
	for _, t := range m.state.Tasks(models.TaskStatusPending) {
		if blocked := m.failedDependencies(t.ID); len(blocked) > 0 {
			issues = append(issues, Issue{
				Type:        IssueBlockedTask,
				Severity:    models.SeverityHigh,
				Description: fmt.Sprintf("task %s is blocked by failed dependencies", t.ID),
				TaskID:      t.ID,
				BlockedBy:   blocked,
			})
		}
	}

	report := Report{
		GeneratedAt:     time.Now().UTC(),
		OverallProgress: overall,
		Objectives:      objectives,
		Issues:          issues,
		Metrics:         m.state.Metrics(),
		Snapshot:        m.state.Snapshot(),
	}

	m.state.LogAction("progress_report",
		fmt.Sprintf("overall %.2f, %d issues", overall, len(issues)),
		"progress-monitor")
	return report
}

// failedDependencies returns the prerequisites of a task that sit in
// the failed bucket.
func (m *Monitor) failedDependencies(taskID string) []string {
	var out []string
	for _, depID := range m.state.Dependencies(taskID) {
		dep := m.state.Task(depID)
		if dep != nil && dep.Status == models.TaskStatusFailed {
			out = append(out, depID)
		}
	}
	return out
}

// DetectCriticalIssues scans the ledger for blocked tasks, delayed
// tasks, and a systemic failure rate.
func (m *Monitor) DetectCriticalIssues() []Issue {
	var issues []Issue

	// Blocked tasks: any unfinished task with a failed prerequisite.
	for _, status := range []models.TaskStatus{models.TaskStatusPending, models.TaskStatusInProgress} {
		for _, t := range m.state.Tasks(status) {
			blocked := m.failedDependencies(t.ID)
			if len(blocked) == 0 {
				continue
			}
			issues = append(issues, Issue{
				Type:        IssueBlockedTask,
				Severity:    models.SeverityCritical,
				Description: fmt.Sprintf("task %s cannot proceed: dependencies %v failed", t.ID, blocked),
				TaskID:      t.ID,
				BlockedBy:   blocked,
			})
		}
	}

	// Delayed tasks. Tasks with timing metadata are compared against
	// their estimate; tasks without it fall back to a weaker signal.
	// The fallback reports the same issue type at a lower severity, and
	// stays a separate branch on purpose.
	now := time.Now().UTC()
	for _, t := range m.state.Tasks(models.TaskStatusInProgress) {
		progress, _ := m.state.Progress(t.ID)

		if t.StartedAt != nil && t.EstimatedDuration > 0 {
			elapsed := now.Sub(*t.StartedAt)
			if elapsed >= t.EstimatedDuration && progress < m.thresholds.ProgressCeiling {
				issues = append(issues, Issue{
					Type:        IssueDelayedTask,
					Severity:    models.SeverityHigh,
					Description: fmt.Sprintf("task %s running %s past its %s estimate at %.0f%%", t.ID, (elapsed - t.EstimatedDuration).Round(time.Second), t.EstimatedDuration, progress*100),
					TaskID:      t.ID,
					Elapsed:     elapsed,
					Progress:    progress,
				})
			}
			continue
		}

		if progress < m.thresholds.FallbackFloor {
			issues = append(issues, Issue{
				Type:        IssueDelayedTask,
				Severity:    models.SeverityMedium,
				Description: fmt.Sprintf("task %s is in progress with no timing metadata and only %.0f%% progress", t.ID, progress*100),
				TaskID:      t.ID,
				Progress:    progress,
			})
		}
	}

	// Systemic failure rate.
	total := m.state.TaskCount()
	failed := len(m.state.Tasks(models.TaskStatusFailed))
	if total > 0 && float64(failed)/float64(total) > m.thresholds.MaxFailureRate {
		issues = append(issues, Issue{
			Type:        IssueHighFailureRate,
			Severity:    models.SeverityCritical,
			Description: fmt.Sprintf("%d of %d tasks failed", failed, total),
			FailedTasks: failed,
			TotalTasks:  total,
		})
	}

	if len(issues) > 0 {
		m.logger.Log("MONITOR", "detected %d critical issues", len(issues))
	}
	return issues
}
