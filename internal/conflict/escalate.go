package conflict

import (
	"github.com/concordlabs/concord/pkg/models"
)

// Escalation is one conflict that tactical-level resolution could not
// settle and that must be decided at the strategic level.
type Escalation struct {
	ConflictID    string              `json:"conflict_id"`
	ConflictType  models.ConflictType `json:"conflict_type"`
	Severity      models.Severity     `json:"severity"`
	Description   string              `json:"description"`
	InvolvedTasks []string            `json:"involved_tasks,omitempty"`
	// Resolution is the attempted resolution, if any. Present for
	// default-resolved conflicts, nil for never-resolved ones.
	Resolution *models.Resolution `json:"resolution,omitempty"`
}

// EscalateUnresolved collects the conflicts that need strategic
// attention: still unresolved, or settled only by the degenerate
// default method.
func (r *Resolver) EscalateUnresolved() []Escalation {
	var escalations []Escalation
	for _, c := range r.state.Conflicts() {
		if c.Resolved && (c.Resolution == nil || c.Resolution.Method != models.ResolutionDefault) {
			continue
		}
		escalations = append(escalations, Escalation{
			ConflictID:    c.ID,
			ConflictType:  c.Type,
			Severity:      c.Severity,
			Description:   c.Description,
			InvolvedTasks: c.InvolvedTasks,
			Resolution:    c.Resolution,
		})
	}
	return escalations
}

// PublishEscalations forwards the current escalations upward as a
// high-priority event. Returns the number of escalations sent.
// No-op without middleware or escalations.
func (r *Resolver) PublishEscalations(recipient string) (int, error) {
	escalations := r.EscalateUnresolved()
	if r.middleware == nil || len(escalations) == 0 {
		return 0, nil
	}

	msg := models.NewMessage(models.MessageEvent, "conflict-resolver", models.LevelTactical, recipient, map[string]any{
		"event_type":  "conflict_escalation",
		"escalations": escalations,
	}).WithPriority(models.PriorityHigh)
	if err := r.middleware.Route(msg); err != nil {
		return 0, err
	}

	r.state.LogAction("conflict_escalated",
		"escalated unresolved conflicts to strategic level",
		"conflict-resolver")
	r.logger.Log("CONFLICT", "escalated %d conflicts to %s", len(escalations), recipient)
	return len(escalations), nil
}
