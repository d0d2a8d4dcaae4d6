// Package state holds the tactical ledger: objectives, tasks,
// assignments, dependencies, progress, analysis results, and conflicts.
// TacticalState is the only component multiple actors mutate
// concurrently; every public method is a single atomic mutation.
package state

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/concordlabs/concord/pkg/models"
)

// taskBuckets is the fixed order of the four status buckets, used for
// deterministic iteration and serialization.
var taskBuckets = []models.TaskStatus{
	models.TaskStatusPending,
	models.TaskStatusInProgress,
	models.TaskStatusCompleted,
	models.TaskStatusFailed,
}

// ActionEntry is one row of the append-only tactical actions log.
type ActionEntry struct {
	Timestamp   time.Time `json:"timestamp"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	AgentID     string    `json:"agent_id,omitempty"`
}

// Metrics are derived values recomputed after every mutation.
type Metrics struct {
	// TaskCompletionRate is completed/total, 0.0 when there are no tasks.
	TaskCompletionRate float64 `json:"task_completion_rate"`
	// AgentUtilization maps agent ID to its count of unfinished assigned tasks.
	AgentUtilization map[string]int `json:"agent_utilization"`
	// ConflictResolutionRate is resolved/total, 1.0 when there are no conflicts.
	ConflictResolutionRate float64 `json:"conflict_resolution_rate"`
}

// TacticalState is the shared mutable ledger of one analysis run.
// A task with a given ID appears in exactly one status bucket at any
// time; moving a task between buckets is the only way its status changes.
type TacticalState struct {
	mu sync.RWMutex

	objectives   []models.Objective
	buckets      map[models.TaskStatus][]*models.Task
	assignments  map[string]string
	dependencies map[string][]string
	progress     map[string]float64

	intermediateResults map[string]map[models.ResultCategory][]models.AnalysisResult
	rhetoricalResults   map[string]map[models.ResultCategory][]models.AnalysisResult

	conflicts []*models.Conflict
	metrics   Metrics
	actions   []ActionEntry
}

// New creates an empty tactical state for a fresh analysis run.
func New() *TacticalState {
	s := &TacticalState{
		buckets:             make(map[models.TaskStatus][]*models.Task),
		assignments:         make(map[string]string),
		dependencies:        make(map[string][]string),
		progress:            make(map[string]float64),
		intermediateResults: make(map[string]map[models.ResultCategory][]models.AnalysisResult),
		rhetoricalResults:   make(map[string]map[models.ResultCategory][]models.AnalysisResult),
	}
	s.recomputeMetricsLocked()
	return s
}

// AddObjective appends an objective assigned by the strategic level.
func (s *TacticalState) AddObjective(obj models.Objective) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if obj.CreatedAt.IsZero() {
		obj.CreatedAt = time.Now().UTC()
	}
	s.objectives = append(s.objectives, obj)
}

// Objectives returns the assigned objectives in submission order.
func (s *TacticalState) Objectives() []models.Objective {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Objective, len(s.objectives))
	copy(out, s.objectives)
	return out
}

// AddTask inserts a task into the named bucket. An invalid status
// defaults to pending.
func (s *TacticalState) AddTask(task *models.Task, status models.TaskStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !status.Valid() {
		status = models.TaskStatusPending
	}
	// The ledger owns its records: store a copy so the caller's pointer
	// cannot alias a bucket entry.
	t := cloneTask(task)
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	t.Status = status
	s.buckets[status] = append(s.buckets[status], t)
	for _, dep := range t.DependsOn {
		s.addDependencyLocked(t.ID, dep)
	}
	s.recomputeMetricsLocked()
}

// findTaskLocked locates a task across all buckets. Caller holds the lock.
func (s *TacticalState) findTaskLocked(taskID string) (models.TaskStatus, int, *models.Task) {
	for _, status := range taskBuckets {
		for i, t := range s.buckets[status] {
			if t.ID == taskID {
				return status, i, t
			}
		}
	}
	return "", -1, nil
}

// cloneTask returns a detached copy of a ledger task. Accessors hand
// out copies only, so callers can read them after the lock is released
// while mutators keep writing the originals.
func cloneTask(t *models.Task) *models.Task {
	c := *t
	c.DependsOn = append([]string(nil), t.DependsOn...)
	return &c
}

// Task returns a copy of the task with the given ID, or nil.
func (s *TacticalState) Task(taskID string) *models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, _, t := s.findTaskLocked(taskID)
	if t == nil {
		return nil
	}
	return cloneTask(t)
}

// Tasks returns copies of one bucket's tasks in order.
func (s *TacticalState) Tasks(status models.TaskStatus) []*models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Task, len(s.buckets[status]))
	for i, t := range s.buckets[status] {
		out[i] = cloneTask(t)
	}
	return out
}

// AllTasks returns copies of every task, bucket by bucket in the fixed
// order.
func (s *TacticalState) AllTasks() []*models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Task
	for _, status := range taskBuckets {
		for _, t := range s.buckets[status] {
			out = append(out, cloneTask(t))
		}
	}
	return out
}

// TaskCount returns the total number of tasks across all buckets.
func (s *TacticalState) TaskCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, status := range taskBuckets {
		n += len(s.buckets[status])
	}
	return n
}

// UpdateTaskStatus atomically moves a task from its current bucket to
// the new one. Returns false if the task is unknown or the status is
// not one of the four valid buckets; the state is left unchanged.
func (s *TacticalState) UpdateTaskStatus(taskID string, newStatus models.TaskStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.updateStatusLocked(taskID, newStatus)
}

// updateStatusLocked performs the bucket move. Caller holds the lock.
func (s *TacticalState) updateStatusLocked(taskID string, newStatus models.TaskStatus) bool {
	if !newStatus.Valid() {
		return false
	}
	oldStatus, idx, task := s.findTaskLocked(taskID)
	if task == nil {
		return false
	}
	if oldStatus == newStatus {
		return true
	}

	s.buckets[oldStatus] = append(s.buckets[oldStatus][:idx], s.buckets[oldStatus][idx+1:]...)
	task.Status = newStatus
	now := time.Now().UTC()
	switch newStatus {
	case models.TaskStatusInProgress:
		if task.StartedAt == nil {
			task.StartedAt = &now
		}
	case models.TaskStatusCompleted, models.TaskStatusFailed:
		if task.CompletedAt == nil {
			task.CompletedAt = &now
		}
	}
	s.buckets[newStatus] = append(s.buckets[newStatus], task)
	s.recomputeMetricsLocked()
	return true
}

// FailTask moves a task to the failed bucket and records the reason.
// Returns false if the task is unknown.
func (s *TacticalState) FailTask(taskID, reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, _, task := s.findTaskLocked(taskID)
	if task == nil {
		return false
	}
	task.Error = reason
	return s.updateStatusLocked(taskID, models.TaskStatusFailed)
}

// AssignTask records the single active assignee for a task.
// Returns false if the task is unknown.
func (s *TacticalState) AssignTask(taskID, agentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, _, task := s.findTaskLocked(taskID)
	if task == nil {
		return false
	}
	task.AssignedTo = agentID
	s.assignments[taskID] = agentID
	s.recomputeMetricsLocked()
	return true
}

// Assignee returns the agent assigned to a task, if any.
func (s *TacticalState) Assignee(taskID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agentID, ok := s.assignments[taskID]
	return agentID, ok
}

// AddTaskDependency records that taskID is blocked until depID
// completes. Idempotent; returns false if either ID is unknown.
func (s *TacticalState) AddTaskDependency(taskID, depID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, _, t := s.findTaskLocked(taskID); t == nil {
		return false
	}
	if _, _, t := s.findTaskLocked(depID); t == nil {
		return false
	}
	s.addDependencyLocked(taskID, depID)
	return true
}

// addDependencyLocked appends a dependency, preserving order and
// skipping duplicates. Caller holds the lock.
func (s *TacticalState) addDependencyLocked(taskID, depID string) {
	for _, existing := range s.dependencies[taskID] {
		if existing == depID {
			return
		}
	}
	s.dependencies[taskID] = append(s.dependencies[taskID], depID)
}

// Dependencies returns the prerequisite task IDs of a task in order.
func (s *TacticalState) Dependencies(taskID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	deps := s.dependencies[taskID]
	out := make([]string, len(deps))
	copy(out, deps)
	return out
}

// UpdateTaskProgress stores the task's progress clamped to [0,1].
// Reaching 1.0 auto-transitions an assigned task to completed. Metrics
// are recomputed regardless. Returns false if the task is unknown.
func (s *TacticalState) UpdateTaskProgress(taskID string, progress float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, _, task := s.findTaskLocked(taskID)
	if task == nil {
		return false
	}

	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	s.progress[taskID] = progress

	if progress == 1.0 {
		if _, assigned := s.assignments[taskID]; assigned {
			s.updateStatusLocked(taskID, models.TaskStatusCompleted)
		}
	}
	s.recomputeMetricsLocked()
	return true
}

// Progress returns the tracked progress of a task.
func (s *TacticalState) Progress(taskID string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.progress[taskID]
	return p, ok
}

// AddIntermediateResult stores a worker-produced result under its
// category. Returns false if the task is unknown or the category is not
// recognized; the state is left unchanged.
func (s *TacticalState) AddIntermediateResult(taskID string, result models.AnalysisResult) bool {
	return s.addResult(s.intermediateResults, taskID, result)
}

// AddRhetoricalAnalysisResult stores a rhetorical-analysis result under
// its category, with the same failure semantics as AddIntermediateResult.
func (s *TacticalState) AddRhetoricalAnalysisResult(taskID string, result models.AnalysisResult) bool {
	return s.addResult(s.rhetoricalResults, taskID, result)
}

func (s *TacticalState) addResult(store map[string]map[models.ResultCategory][]models.AnalysisResult, taskID string, result models.AnalysisResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !result.Category.Valid() {
		return false
	}
	if _, _, t := s.findTaskLocked(taskID); t == nil {
		return false
	}

	result.TaskID = taskID
	byCat := store[taskID]
	if byCat == nil {
		byCat = make(map[models.ResultCategory][]models.AnalysisResult)
		store[taskID] = byCat
	}
	byCat[result.Category] = append(byCat[result.Category], result)
	return true
}

// ResultsForTask returns every stored result for a task, intermediate
// and rhetorical, in category order within each store.
func (s *TacticalState) ResultsForTask(taskID string) []models.AnalysisResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.AnalysisResult
	for _, store := range []map[string]map[models.ResultCategory][]models.AnalysisResult{s.intermediateResults, s.rhetoricalResults} {
		byCat := store[taskID]
		for _, cat := range []models.ResultCategory{
			models.CategoryArgumentStructures,
			models.CategoryFallacyFindings,
			models.CategoryFormalValidity,
			models.CategoryCoherenceScores,
		} {
			out = append(out, byCat[cat]...)
		}
	}
	return out
}

// ObjectiveResults returns every stored result produced by tasks of the
// given objective, in bucket-then-task order.
func (s *TacticalState) ObjectiveResults(objectiveID string) []models.AnalysisResult {
	s.mu.RLock()
	taskIDs := make([]string, 0)
	for _, status := range taskBuckets {
		for _, t := range s.buckets[status] {
			if t.ObjectiveID == objectiveID {
				taskIDs = append(taskIDs, t.ID)
			}
		}
	}
	s.mu.RUnlock()

	var out []models.AnalysisResult
	for _, id := range taskIDs {
		out = append(out, s.ResultsForTask(id)...)
	}
	return out
}

// AddConflict records a detected conflict, assigning an ID if missing.
// Returns the conflict ID.
func (s *TacticalState) AddConflict(c *models.Conflict) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = "conflict-" + uuid.NewString()
	}
	if c.DetectedAt.IsZero() {
		c.DetectedAt = time.Now().UTC()
	}
	s.conflicts = append(s.conflicts, c)
	s.recomputeMetricsLocked()
	return c.ID
}

// Conflict returns the conflict with the given ID, or nil.
func (s *TacticalState) Conflict(conflictID string) *models.Conflict {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.conflicts {
		if c.ID == conflictID {
			return c
		}
	}
	return nil
}

// Conflicts returns all identified conflicts in detection order.
func (s *TacticalState) Conflicts() []*models.Conflict {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Conflict, len(s.conflicts))
	copy(out, s.conflicts)
	return out
}

// ResolveConflict marks a conflict resolved and stores the resolution.
// Returns false if the conflict is unknown.
func (s *TacticalState) ResolveConflict(conflictID string, resolution *models.Resolution) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.conflicts {
		if c.ID == conflictID {
			c.Resolved = true
			c.Resolution = resolution
			s.recomputeMetricsLocked()
			return true
		}
	}
	return false
}

// LogAction appends an entry to the tactical actions log. Mutating
// callers record their own actions; the state never logs on their behalf.
func (s *TacticalState) LogAction(actionType, description, agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.actions = append(s.actions, ActionEntry{
		Timestamp:   time.Now().UTC(),
		Type:        actionType,
		Description: description,
		AgentID:     agentID,
	})
}

// Actions returns the audit trail in append order.
func (s *TacticalState) Actions() []ActionEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ActionEntry, len(s.actions))
	copy(out, s.actions)
	return out
}

// Metrics returns the derived metrics as of the last mutation.
func (s *TacticalState) Metrics() Metrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m := s.metrics
	util := make(map[string]int, len(m.AgentUtilization))
	for k, v := range m.AgentUtilization {
		util[k] = v
	}
	m.AgentUtilization = util
	return m
}

// recomputeMetricsLocked rebuilds the derived metrics from the buckets
// and conflicts. Caller holds the lock.
func (s *TacticalState) recomputeMetricsLocked() {
	total := 0
	for _, status := range taskBuckets {
		total += len(s.buckets[status])
	}

	completionRate := 0.0
	if total > 0 {
		completionRate = float64(len(s.buckets[models.TaskStatusCompleted])) / float64(total)
	}

	utilization := make(map[string]int)
	for _, status := range []models.TaskStatus{models.TaskStatusPending, models.TaskStatusInProgress} {
		for _, t := range s.buckets[status] {
			if agentID, ok := s.assignments[t.ID]; ok {
				utilization[agentID]++
			}
		}
	}

	resolutionRate := 1.0
	if len(s.conflicts) > 0 {
		resolved := 0
		for _, c := range s.conflicts {
			if c.Resolved {
				resolved++
			}
		}
		resolutionRate = float64(resolved) / float64(len(s.conflicts))
	}

	s.metrics = Metrics{
		TaskCompletionRate:     completionRate,
		AgentUtilization:       utilization,
		ConflictResolutionRate: resolutionRate,
	}
}
