package graph

import (
	"errors"
	"sort"
	"testing"

	"github.com/concordlabs/concord/pkg/models"
)

func TestNewGraph(t *testing.T) {
	g := New()
	if g == nil {
		t.Fatal("expected non-nil graph")
	}
	if g.Size() != 0 {
		t.Errorf("expected empty graph, got size %d", g.Size())
	}
}

func TestGraphBuildSimple(t *testing.T) {
	g := New()
	tasks := []*models.Task{
		{ID: "task-1", Title: "Task 1", Status: models.TaskStatusPending},
		{ID: "task-2", Title: "Task 2", Status: models.TaskStatusPending},
		{ID: "task-3", Title: "Task 3", Status: models.TaskStatusPending},
	}

	err := g.Build(tasks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if g.Size() != 3 {
		t.Errorf("expected size 3, got %d", g.Size())
	}
}

func TestGraphBuildWithDependencies(t *testing.T) {
	g := New()
	tasks := []*models.Task{
		{ID: "task-1", Title: "Task 1", Status: models.TaskStatusPending},
		{ID: "task-2", Title: "Task 2", Status: models.TaskStatusPending, DependsOn: []string{"task-1"}},
		{ID: "task-3", Title: "Task 3", Status: models.TaskStatusPending, DependsOn: []string{"task-1", "task-2"}},
	}

	err := g.Build(tasks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deps := g.GetDependencies("task-3")
	if len(deps) != 2 {
		t.Errorf("expected 2 dependencies for task-3, got %d", len(deps))
	}

	dependents := g.GetDependents("task-1")
	if len(dependents) != 2 {
		t.Errorf("expected 2 dependents of task-1, got %d", len(dependents))
	}
}

func TestGraphBuildUnknownDependency(t *testing.T) {
	g := New()
	tasks := []*models.Task{
		{ID: "task-1", Title: "Task 1", Status: models.TaskStatusPending, DependsOn: []string{"unknown-task"}},
	}

	err := g.Build(tasks)
	if err == nil {
		t.Fatal("expected error for unknown dependency")
	}
}

func TestGraphCycleDetectionSimple(t *testing.T) {
	// A -> B -> A (direct cycle)
	g := New()
	tasks := []*models.Task{
		{ID: "A", Title: "Task A", Status: models.TaskStatusPending, DependsOn: []string{"B"}},
		{ID: "B", Title: "Task B", Status: models.TaskStatusPending, DependsOn: []string{"A"}},
	}

	err := g.Build(tasks)
	if !errors.Is(err, ErrCycleDetected) {
		t.Errorf("expected ErrCycleDetected, got %v", err)
	}
}

func TestGraphCycleDetectionSelfLoop(t *testing.T) {
	g := New()
	tasks := []*models.Task{
		{ID: "A", Title: "Task A", Status: models.TaskStatusPending, DependsOn: []string{"A"}},
	}

	err := g.Build(tasks)
	if !errors.Is(err, ErrCycleDetected) {
		t.Errorf("expected ErrCycleDetected for self-loop, got %v", err)
	}
}

func TestGraphTopologicalSort(t *testing.T) {
	g := New()
	tasks := []*models.Task{
		{ID: "A", Status: models.TaskStatusPending},
		{ID: "B", Status: models.TaskStatusPending, DependsOn: []string{"A"}},
		{ID: "C", Status: models.TaskStatusPending, DependsOn: []string{"B"}},
	}
	if err := g.Build(tasks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 3 {
		t.Fatalf("expected 3 tasks in order, got %d", len(order))
	}

	pos := make(map[string]int)
	for i, id := range order {
		pos[id] = i
	}
	if pos["A"] > pos["B"] || pos["B"] > pos["C"] {
		t.Errorf("dependencies must come first, got order %v", order)
	}
}

func TestGraphMarkCompleteUnblocksDependents(t *testing.T) {
	g := New()
	tasks := []*models.Task{
		{ID: "A", Status: models.TaskStatusPending},
		{ID: "B", Status: models.TaskStatusPending, DependsOn: []string{"A"}},
	}
	if err := g.Build(tasks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ready := g.GetReady(); len(ready) != 1 || ready[0] != "A" {
		t.Fatalf("expected only A ready, got %v", ready)
	}
	if !g.MarkComplete("A") {
		t.Fatal("expected MarkComplete to find A")
	}
	if ready := g.GetReady(); len(ready) != 1 || ready[0] != "B" {
		t.Errorf("expected B ready after A completed, got %v", ready)
	}
	if g.MarkComplete("missing") {
		t.Error("expected MarkComplete to reject an unknown task")
	}
}

func TestGraphMarkFailedKeepsDependentsBlocked(t *testing.T) {
	g := New()
	tasks := []*models.Task{
		{ID: "A", Status: models.TaskStatusPending},
		{ID: "B", Status: models.TaskStatusPending, DependsOn: []string{"A"}},
	}
	if err := g.Build(tasks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !g.MarkFailed("A") {
		t.Fatal("expected MarkFailed to find A")
	}
	if ready := g.GetReady(); len(ready) != 0 {
		t.Errorf("dependents of a failed task must stay blocked, got %v", ready)
	}
	if g.MarkFailed("missing") {
		t.Error("expected MarkFailed to reject an unknown task")
	}
}

func TestGraphGetReady(t *testing.T) {
	g := New()
	tasks := []*models.Task{
		{ID: "A", Status: models.TaskStatusCompleted},
		{ID: "B", Status: models.TaskStatusPending, DependsOn: []string{"A"}},
		{ID: "C", Status: models.TaskStatusPending, DependsOn: []string{"B"}},
		{ID: "D", Status: models.TaskStatusPending},
	}
	if err := g.Build(tasks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ready := g.GetReady()
	sort.Strings(ready)
	want := []string{"B", "D"}
	if len(ready) != len(want) {
		t.Fatalf("expected ready %v, got %v", want, ready)
	}
	for i := range want {
		if ready[i] != want[i] {
			t.Errorf("expected ready %v, got %v", want, ready)
			break
		}
	}
}
