package state

import (
	"encoding/json"
	"fmt"

	"github.com/concordlabs/concord/pkg/models"
)

// Snapshot is a read-only summary of the ledger for reporting surfaces.
type Snapshot struct {
	Objectives     int     `json:"objectives"`
	Pending        int     `json:"pending"`
	InProgress     int     `json:"in_progress"`
	Completed      int     `json:"completed"`
	Failed         int     `json:"failed"`
	Conflicts      int     `json:"conflicts"`
	OpenConflicts  int     `json:"open_conflicts"`
	CompletionRate float64 `json:"task_completion_rate"`
	ResolutionRate float64 `json:"conflict_resolution_rate"`
	ActionsLogged  int     `json:"actions_logged"`
}

// Snapshot returns a summary of the current ledger contents.
func (s *TacticalState) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	open := 0
	for _, c := range s.conflicts {
		if !c.Resolved {
			open++
		}
	}
	return Snapshot{
		Objectives:     len(s.objectives),
		Pending:        len(s.buckets[models.TaskStatusPending]),
		InProgress:     len(s.buckets[models.TaskStatusInProgress]),
		Completed:      len(s.buckets[models.TaskStatusCompleted]),
		Failed:         len(s.buckets[models.TaskStatusFailed]),
		Conflicts:      len(s.conflicts),
		OpenConflicts:  open,
		CompletionRate: s.metrics.TaskCompletionRate,
		ResolutionRate: s.metrics.ConflictResolutionRate,
		ActionsLogged:  len(s.actions),
	}
}

// checkpoint is the wire form of the ledger. Task buckets are kept as
// ordered slices so a dump/restore cycle preserves ordering exactly.
type checkpoint struct {
	Objectives   []models.Objective  `json:"assigned_objectives"`
	Pending      []*models.Task      `json:"pending_tasks"`
	InProgress   []*models.Task      `json:"in_progress_tasks"`
	Completed    []*models.Task      `json:"completed_tasks"`
	Failed       []*models.Task      `json:"failed_tasks"`
	Assignments  map[string]string   `json:"task_assignments"`
	Dependencies map[string][]string `json:"task_dependencies"`
	Progress     map[string]float64  `json:"task_progress"`

	IntermediateResults map[string]map[models.ResultCategory][]models.AnalysisResult `json:"intermediate_results"`
	RhetoricalResults   map[string]map[models.ResultCategory][]models.AnalysisResult `json:"rhetorical_analysis_results"`

	Conflicts []*models.Conflict `json:"identified_conflicts"`
	Metrics   Metrics            `json:"tactical_metrics"`
	Actions   []ActionEntry      `json:"tactical_actions_log"`
}

// MarshalJSON produces a full structural dump of every ledger field.
func (s *TacticalState) MarshalJSON() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp := checkpoint{
		Objectives:          s.objectives,
		Pending:             s.buckets[models.TaskStatusPending],
		InProgress:          s.buckets[models.TaskStatusInProgress],
		Completed:           s.buckets[models.TaskStatusCompleted],
		Failed:              s.buckets[models.TaskStatusFailed],
		Assignments:         s.assignments,
		Dependencies:        s.dependencies,
		Progress:            s.progress,
		IntermediateResults: s.intermediateResults,
		RhetoricalResults:   s.rhetoricalResults,
		Conflicts:           s.conflicts,
		Metrics:             s.metrics,
		Actions:             s.actions,
	}
	return json.Marshal(cp)
}

// UnmarshalJSON restores a ledger from a checkpoint dump. The restored
// state is structurally identical to the one that was dumped.
func (s *TacticalState) UnmarshalJSON(data []byte) error {
	var cp checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return fmt.Errorf("decode checkpoint: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.objectives = cp.Objectives
	s.buckets = map[models.TaskStatus][]*models.Task{
		models.TaskStatusPending:    cp.Pending,
		models.TaskStatusInProgress: cp.InProgress,
		models.TaskStatusCompleted:  cp.Completed,
		models.TaskStatusFailed:     cp.Failed,
	}
	s.assignments = orEmptyStrings(cp.Assignments)
	s.dependencies = cp.Dependencies
	if s.dependencies == nil {
		s.dependencies = make(map[string][]string)
	}
	s.progress = cp.Progress
	if s.progress == nil {
		s.progress = make(map[string]float64)
	}
	s.intermediateResults = orEmptyResults(cp.IntermediateResults)
	s.rhetoricalResults = orEmptyResults(cp.RhetoricalResults)
	s.conflicts = cp.Conflicts
	s.actions = cp.Actions
	s.recomputeMetricsLocked()
	return nil
}

// Restore builds a TacticalState from a checkpoint dump.
func Restore(data []byte) (*TacticalState, error) {
	s := New()
	if err := s.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return s, nil
}

func orEmptyStrings(m map[string]string) map[string]string {
	if m == nil {
		return make(map[string]string)
	}
	return m
}

func orEmptyResults(m map[string]map[models.ResultCategory][]models.AnalysisResult) map[string]map[models.ResultCategory][]models.AnalysisResult {
	if m == nil {
		return make(map[string]map[models.ResultCategory][]models.AnalysisResult)
	}
	return m
}
