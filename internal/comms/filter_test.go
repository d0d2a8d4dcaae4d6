package comms

import (
	"testing"

	"github.com/concordlabs/concord/pkg/models"
)

func filterTestMessage() *models.Message {
	return models.NewMessage(models.MessageEvent, "worker-1", models.LevelOperational, "", map[string]any{
		"event_type": "finding",
		"report": map[string]any{
			"kind":  "progress",
			"score": 0.8,
		},
	}).WithPriority(models.PriorityHigh)
}

func TestFilterNilMatchesEverything(t *testing.T) {
	var f *Filter
	if !f.Matches(filterTestMessage()) {
		t.Error("nil filter must match everything")
	}
	if !(&Filter{}).Matches(filterTestMessage()) {
		t.Error("empty filter must match everything")
	}
}

func TestFilterByType(t *testing.T) {
	f := &Filter{Types: []models.MessageType{models.MessageEvent, models.MessageInformation}}
	if !f.Matches(filterTestMessage()) {
		t.Error("expected type match")
	}

	f = &Filter{Types: []models.MessageType{models.MessageCommand}}
	if f.Matches(filterTestMessage()) {
		t.Error("expected type mismatch")
	}
}

func TestFilterBySender(t *testing.T) {
	f := &Filter{Senders: []string{"worker-1"}}
	if !f.Matches(filterTestMessage()) {
		t.Error("expected sender match")
	}

	f = &Filter{Senders: []string{"worker-2"}}
	if f.Matches(filterTestMessage()) {
		t.Error("expected sender mismatch")
	}
}

func TestFilterBySenderLevel(t *testing.T) {
	f := &Filter{SenderLevels: []models.AgentLevel{models.LevelOperational}}
	if !f.Matches(filterTestMessage()) {
		t.Error("expected level match")
	}

	f = &Filter{SenderLevels: []models.AgentLevel{models.LevelStrategic}}
	if f.Matches(filterTestMessage()) {
		t.Error("expected level mismatch")
	}
}

func TestFilterByPriority(t *testing.T) {
	// A priority filter admits exactly the listed classes.
	f := &Filter{Priorities: []models.Priority{models.PriorityHigh, models.PriorityCritical}}
	if !f.Matches(filterTestMessage()) {
		t.Error("expected priority match")
	}

	low := filterTestMessage().WithPriority(models.PriorityLow)
	if f.Matches(low) {
		t.Error("priority outside the listed classes must not match")
	}

	for _, p := range []models.Priority{models.PriorityLow, models.PriorityNormal, models.PriorityHigh, models.PriorityCritical} {
		single := &Filter{Priorities: []models.Priority{p}}
		msg := filterTestMessage().WithPriority(p)
		if !single.Matches(msg) {
			t.Errorf("priority %s must match its own class", p)
		}
	}
}

func TestFilterByContent(t *testing.T) {
	f := &Filter{Content: map[string]any{"event_type": "finding"}}
	if !f.Matches(filterTestMessage()) {
		t.Error("expected content match")
	}

	f = &Filter{Content: map[string]any{"event_type": "other"}}
	if f.Matches(filterTestMessage()) {
		t.Error("expected content mismatch")
	}

	f = &Filter{Content: map[string]any{"missing_key": "x"}}
	if f.Matches(filterTestMessage()) {
		t.Error("missing content key must not match")
	}
}

func TestFilterByDottedContentPath(t *testing.T) {
	f := &Filter{Content: map[string]any{"report.kind": "progress"}}
	if !f.Matches(filterTestMessage()) {
		t.Error("expected dotted path match")
	}

	f = &Filter{Content: map[string]any{"report.kind.too.deep": "x"}}
	if f.Matches(filterTestMessage()) {
		t.Error("path through a non-map must not match")
	}
}

func TestFilterContentMembership(t *testing.T) {
	f := &Filter{Content: map[string]any{"event_type": []string{"finding", "alert"}}}
	if !f.Matches(filterTestMessage()) {
		t.Error("expected membership match")
	}

	f = &Filter{Content: map[string]any{"event_type": []any{"alert"}}}
	if f.Matches(filterTestMessage()) {
		t.Error("expected membership mismatch")
	}
}

func TestFilterConjunction(t *testing.T) {
	f := &Filter{
		Types:   []models.MessageType{models.MessageEvent},
		Senders: []string{"worker-1"},
		Content: map[string]any{"event_type": "finding"},
	}
	if !f.Matches(filterTestMessage()) {
		t.Error("expected all clauses to match")
	}

	f.Senders = []string{"worker-2"}
	if f.Matches(filterTestMessage()) {
		t.Error("one failing clause must reject the message")
	}
}
