// Package plan loads coordination plans from YAML files. A plan
// declares the objectives and the task breakdown a run starts from.
package plan

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/concordlabs/concord/internal/graph"
	"github.com/concordlabs/concord/internal/state"
	"github.com/concordlabs/concord/pkg/models"
)

// Duration decodes YAML duration strings like "30m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Objective declares one top-level goal of a plan.
type Objective struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description"`
	Priority    int    `yaml:"priority"`
}

// Task declares one unit of work under an objective.
type Task struct {
	ID          string   `yaml:"id"`
	Objective   string   `yaml:"objective"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Priority    int      `yaml:"priority"`
	DependsOn   []string `yaml:"depends_on"`
	AssignTo    string   `yaml:"assign_to"`
	// Estimate is the expected duration, e.g. "30m". Optional; tasks
	// without it fall back to the weaker delay heuristic.
	Estimate Duration `yaml:"estimate"`
}

// Plan is a parsed coordination plan.
type Plan struct {
	Name       string      `yaml:"name"`
	Objectives []Objective `yaml:"objectives"`
	Tasks      []Task      `yaml:"tasks"`
}

// Load reads and validates a plan file.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates plan YAML.
func Parse(data []byte) (*Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing plan: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks referential integrity and rejects dependency cycles.
func (p *Plan) Validate() error {
	if len(p.Objectives) == 0 {
		return fmt.Errorf("plan declares no objectives")
	}

	objectives := make(map[string]bool, len(p.Objectives))
	for _, obj := range p.Objectives {
		if obj.ID == "" {
			return fmt.Errorf("objective with empty id")
		}
		if objectives[obj.ID] {
			return fmt.Errorf("duplicate objective id %q", obj.ID)
		}
		objectives[obj.ID] = true
	}

	seen := make(map[string]bool, len(p.Tasks))
	for _, t := range p.Tasks {
		if t.ID == "" {
			return fmt.Errorf("task with empty id")
		}
		if seen[t.ID] {
			return fmt.Errorf("duplicate task id %q", t.ID)
		}
		seen[t.ID] = true
		if !objectives[t.Objective] {
			return fmt.Errorf("task %s references unknown objective %q", t.ID, t.Objective)
		}
	}

	// Unknown dependency references and cycles are caught by the graph.
	if _, err := p.Graph(); err != nil {
		return fmt.Errorf("invalid dependency graph: %w", err)
	}
	return nil
}

// Graph builds the dependency graph of the plan's tasks. The graph
// tracks its own copy of the task records, so callers mark completions
// on it as the run advances.
func (p *Plan) Graph() (*graph.DependencyGraph, error) {
	g := graph.New()
	if err := g.Build(p.modelTasks()); err != nil {
		return nil, err
	}
	return g, nil
}

// modelTasks converts the declared tasks into ledger task records.
func (p *Plan) modelTasks() []*models.Task {
	tasks := make([]*models.Task, 0, len(p.Tasks))
	for _, t := range p.Tasks {
		tasks = append(tasks, &models.Task{
			ID:                t.ID,
			ObjectiveID:       t.Objective,
			Title:             t.Title,
			Description:       t.Description,
			Status:            models.TaskStatusPending,
			Priority:          models.Priority(t.Priority),
			DependsOn:         append([]string(nil), t.DependsOn...),
			AssignedTo:        t.AssignTo,
			EstimatedDuration: time.Duration(t.Estimate),
		})
	}
	return tasks
}

// Apply submits the plan to a tactical ledger: objectives first, then
// tasks with their dependencies and any declared assignments.
func (p *Plan) Apply(st *state.TacticalState) error {
	for _, obj := range p.Objectives {
		st.AddObjective(models.Objective{
			ID:          obj.ID,
			Description: obj.Description,
			Priority:    models.Priority(obj.Priority),
		})
	}
	for _, t := range p.modelTasks() {
		assignee := t.AssignedTo
		t.AssignedTo = ""
		st.AddTask(t, models.TaskStatusPending)
		if assignee != "" {
			if !st.AssignTask(t.ID, assignee) {
				return fmt.Errorf("assigning task %s to %s", t.ID, assignee)
			}
		}
	}
	st.LogAction("plan_applied",
		fmt.Sprintf("plan %q: %d objectives, %d tasks", p.Name, len(p.Objectives), len(p.Tasks)),
		"coordinator")
	return nil
}
