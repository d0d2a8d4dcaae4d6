// Package monitor supervises execution health: it classifies progress
// updates, detects delays, stagnation and failure cascades in the
// tactical ledger, and proposes corrective actions.
package monitor

import (
	"fmt"

	"github.com/concordlabs/concord/internal/comms"
	"github.com/concordlabs/concord/internal/logging"
	"github.com/concordlabs/concord/internal/state"
	"github.com/concordlabs/concord/pkg/models"
)

// Thresholds tune anomaly and issue detection. Zero values fall back to
// the defaults below.
type Thresholds struct {
	// Stagnation is the minimum progress delta expected per update.
	Stagnation float64
	// ProgressCeiling disables stagnation/delay checks once progress
	// passes it; a task that is nearly done is allowed to slow down.
	ProgressCeiling float64
	// FallbackFloor is the progress floor for the weak delay signal
	// used when a task carries no timing metadata.
	FallbackFloor float64
	// MaxFailureRate is the failed/total ratio above which the run is
	// flagged as failing systemically.
	MaxFailureRate float64
}

// DefaultThresholds returns the standard detection thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Stagnation:      0.1,
		ProgressCeiling: 0.9,
		FallbackFloor:   0.1,
		MaxFailureRate:  0.2,
	}
}

func (t Thresholds) withDefaults() Thresholds {
	d := DefaultThresholds()
	if t.Stagnation == 0 {
		t.Stagnation = d.Stagnation
	}
	if t.ProgressCeiling == 0 {
		t.ProgressCeiling = d.ProgressCeiling
	}
	if t.FallbackFloor == 0 {
		t.FallbackFloor = d.FallbackFloor
	}
	if t.MaxFailureRate == 0 {
		t.MaxFailureRate = d.MaxFailureRate
	}
	return t
}

// AnomalyType classifies a single suspicious progress update.
type AnomalyType string

const (
	// AnomalyStagnation means progress barely moved on an unfinished task.
	AnomalyStagnation AnomalyType = "stagnation"
	// AnomalyRegression means progress went backwards.
	AnomalyRegression AnomalyType = "regression"
	// AnomalyBlockedDependency means a prerequisite of the task failed.
	AnomalyBlockedDependency AnomalyType = "blocked_dependency"
)

// Anomaly is one finding attached to a progress update.
type Anomaly struct {
	Type        AnomalyType     `json:"type"`
	Severity    models.Severity `json:"severity"`
	Description string          `json:"description"`
	// DependencyID names the failed prerequisite for blocked_dependency.
	DependencyID string `json:"dependency_id,omitempty"`
}

// UpdateStatus reports the outcome of a monitored progress write.
type UpdateStatus string

const (
	UpdateSuccess UpdateStatus = "success"
	UpdateError   UpdateStatus = "error"
)

// ProgressUpdate is the result of one monitored progress write.
type ProgressUpdate struct {
	Status    UpdateStatus `json:"status"`
	Message   string       `json:"message,omitempty"`
	TaskID    string       `json:"task_id"`
	Previous  float64      `json:"previous_progress"`
	Current   float64      `json:"current_progress"`
	Anomalies []Anomaly    `json:"anomalies,omitempty"`
}

// Monitor reads the tactical ledger and classifies execution health.
// It does not drive task transitions itself; detected anomalies feed
// back into resolver and strategic-level actions.
type Monitor struct {
	state      *state.TacticalState
	middleware *comms.Middleware
	logger     *logging.Logger
	thresholds Thresholds
}

// New creates a monitor over the given ledger. The middleware may be
// nil when reports are consumed locally instead of published upward.
func New(st *state.TacticalState, mw *comms.Middleware, logger *logging.Logger, thresholds Thresholds) *Monitor {
	return &Monitor{
		state:      st,
		middleware: mw,
		logger:     logger,
		thresholds: thresholds.withDefaults(),
	}
}

// UpdateTaskProgress delegates the write to the ledger and classifies
// the update. An unknown task ID yields an error result without
// mutating anything; it never aborts monitoring of other tasks.
func (m *Monitor) UpdateTaskProgress(taskID string, progress float64) ProgressUpdate {
	previous, _ := m.state.Progress(taskID)

	if !m.state.UpdateTaskProgress(taskID, progress) {
		return ProgressUpdate{
			Status:  UpdateError,
			Message: fmt.Sprintf("task %s not found", taskID),
			TaskID:  taskID,
		}
	}

	current, _ := m.state.Progress(taskID)
	anomalies := m.checkTaskAnomalies(taskID, previous, current)

	m.state.LogAction("progress_update",
		fmt.Sprintf("task %s progress %.2f -> %.2f (%d anomalies)", taskID, previous, current, len(anomalies)),
		"progress-monitor")
	if len(anomalies) > 0 {
		m.logger.Log("MONITOR", "task %s: %d anomalies on update %.2f -> %.2f", taskID, len(anomalies), previous, current)
	}

	return ProgressUpdate{
		Status:    UpdateSuccess,
		TaskID:    taskID,
		Previous:  previous,
		Current:   current,
		Anomalies: anomalies,
	}
}

// checkTaskAnomalies classifies one progress transition. All applicable
// anomalies are returned together; the checks are not exclusive.
func (m *Monitor) checkTaskAnomalies(taskID string, previous, current float64) []Anomaly {
	var anomalies []Anomaly

	if current-previous < m.thresholds.Stagnation && current < m.thresholds.ProgressCeiling {
		anomalies = append(anomalies, Anomaly{
			Type:        AnomalyStagnation,
			Severity:    models.SeverityMedium,
			Description: fmt.Sprintf("progress moved only %.2f since last update", current-previous),
		})
	}

	if current < previous {
		anomalies = append(anomalies, Anomaly{
			Type:        AnomalyRegression,
			Severity:    models.SeverityHigh,
			Description: fmt.Sprintf("progress regressed from %.2f to %.2f", previous, current),
		})
	}

	for _, depID := range m.state.Dependencies(taskID) {
		dep := m.state.Task(depID)
		if dep != nil && dep.Status == models.TaskStatusFailed {
			anomalies = append(anomalies, Anomaly{
				Type:         AnomalyBlockedDependency,
				Severity:     models.SeverityHigh,
				Description:  fmt.Sprintf("prerequisite %s has failed", depID),
				DependencyID: depID,
			})
		}
	}

	return anomalies
}
