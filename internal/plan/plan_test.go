package plan

import (
	"strings"
	"testing"
	"time"

	"github.com/concordlabs/concord/internal/state"
	"github.com/concordlabs/concord/pkg/models"
)

const validPlan = `
name: speech-analysis
objectives:
  - id: o1
    description: analyze the opening statement
    priority: 3
tasks:
  - id: mine-args
    objective: o1
    title: Mine argument structures
    priority: 3
    assign_to: worker-1
    estimate: 30m
  - id: check-validity
    objective: o1
    title: Check formal validity
    depends_on: [mine-args]
`

func TestParseValidPlan(t *testing.T) {
	p, err := Parse([]byte(validPlan))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Name != "speech-analysis" {
		t.Errorf("unexpected name %q", p.Name)
	}
	if len(p.Objectives) != 1 || len(p.Tasks) != 2 {
		t.Errorf("expected 1 objective and 2 tasks, got %d/%d", len(p.Objectives), len(p.Tasks))
	}
	if time.Duration(p.Tasks[0].Estimate) != 30*time.Minute {
		t.Errorf("estimate not parsed: %v", time.Duration(p.Tasks[0].Estimate))
	}
	if p.Tasks[1].DependsOn[0] != "mine-args" {
		t.Errorf("dependency not parsed: %v", p.Tasks[1].DependsOn)
	}
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	if _, err := Parse([]byte("tasks: [}")); err == nil {
		t.Error("expected parse error")
	}
}

func mustFail(t *testing.T, yaml, wantSubstr string) {
	t.Helper()
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatalf("expected validation error containing %q", wantSubstr)
	}
	if !strings.Contains(err.Error(), wantSubstr) {
		t.Errorf("expected error containing %q, got %q", wantSubstr, err)
	}
}

func TestValidateNoObjectives(t *testing.T) {
	mustFail(t, `name: empty`, "no objectives")
}

func TestValidateDuplicateObjective(t *testing.T) {
	mustFail(t, `
objectives:
  - id: o1
  - id: o1
`, "duplicate objective")
}

func TestValidateDuplicateTask(t *testing.T) {
	mustFail(t, `
objectives:
  - id: o1
tasks:
  - id: t1
    objective: o1
  - id: t1
    objective: o1
`, "duplicate task")
}

func TestValidateUnknownObjective(t *testing.T) {
	mustFail(t, `
objectives:
  - id: o1
tasks:
  - id: t1
    objective: nope
`, "unknown objective")
}

func TestValidateUnknownDependency(t *testing.T) {
	mustFail(t, `
objectives:
  - id: o1
tasks:
  - id: t1
    objective: o1
    depends_on: [ghost]
`, "dependency graph")
}

func TestValidateCycle(t *testing.T) {
	mustFail(t, `
objectives:
  - id: o1
tasks:
  - id: t1
    objective: o1
    depends_on: [t2]
  - id: t2
    objective: o1
    depends_on: [t1]
`, "dependency graph")
}

func TestPlanGraphDrivesReadiness(t *testing.T) {
	p, err := Parse([]byte(validPlan))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	g, err := p.Graph()
	if err != nil {
		t.Fatalf("graph: %v", err)
	}
	if g.Size() != len(p.Tasks) {
		t.Errorf("expected %d graph nodes, got %d", len(p.Tasks), g.Size())
	}
	if ready := g.GetReady(); len(ready) != 1 || ready[0] != "mine-args" {
		t.Fatalf("expected only the dependency-free task ready, got %v", ready)
	}
	g.MarkComplete("mine-args")
	if ready := g.GetReady(); len(ready) != 1 || ready[0] != "check-validity" {
		t.Errorf("expected the dependent task ready after completion, got %v", ready)
	}
}

func TestApplyPopulatesLedger(t *testing.T) {
	p, err := Parse([]byte(validPlan))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	st := state.New()
	if err := p.Apply(st); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if len(st.Objectives()) != 1 {
		t.Error("objective not added")
	}
	if len(st.Tasks(models.TaskStatusPending)) != 2 {
		t.Errorf("expected 2 pending tasks, got %d", len(st.Tasks(models.TaskStatusPending)))
	}
	if agent, ok := st.Assignee("mine-args"); !ok || agent != "worker-1" {
		t.Errorf("declared assignment not applied: (%q, %v)", agent, ok)
	}
	if deps := st.Dependencies("check-validity"); len(deps) != 1 || deps[0] != "mine-args" {
		t.Errorf("dependency not applied: %v", deps)
	}
	if st.Task("mine-args").EstimatedDuration != 30*time.Minute {
		t.Error("estimate not carried into the ledger")
	}

	actions := st.Actions()
	if len(actions) != 1 || actions[0].Type != "plan_applied" {
		t.Errorf("expected a plan_applied action, got %+v", actions)
	}
}
