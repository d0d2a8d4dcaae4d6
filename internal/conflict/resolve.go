package conflict

import (
	"fmt"
	"time"

	"github.com/concordlabs/concord/pkg/models"
)

// ResolveStatus reports the outcome of one resolution attempt.
type ResolveStatus string

const (
	ResolveSuccess         ResolveStatus = "success"
	ResolveError           ResolveStatus = "error"
	ResolveAlreadyResolved ResolveStatus = "already_resolved"
)

// ResolveResult is the outcome of resolving a single conflict.
type ResolveResult struct {
	Status     ResolveStatus      `json:"status"`
	Message    string             `json:"message,omitempty"`
	ConflictID string             `json:"conflict_id"`
	Resolution *models.Resolution `json:"resolution,omitempty"`
}

// Resolve settles one conflict by the strategy matching its type and
// writes the resolution back to the ledger. Resolving an already
// resolved conflict reports already_resolved and leaves the stored
// resolution untouched.
func (r *Resolver) Resolve(conflictID string) ResolveResult {
	c := r.state.Conflict(conflictID)
	if c == nil {
		return ResolveResult{
			Status:     ResolveError,
			Message:    fmt.Sprintf("conflict %s not found", conflictID),
			ConflictID: conflictID,
		}
	}
	if c.Resolved {
		return ResolveResult{
			Status:     ResolveAlreadyResolved,
			ConflictID: conflictID,
			Resolution: c.Resolution,
		}
	}

	resolution := r.resolve(c)
	r.state.ResolveConflict(conflictID, resolution)
	r.state.LogAction("conflict_resolved",
		fmt.Sprintf("conflict %s resolved via %s", conflictID, resolution.Method),
		"conflict-resolver")
	r.logger.Log("CONFLICT", "resolved %s (%s) via %s", conflictID, c.Type, resolution.Method)

	return ResolveResult{
		Status:     ResolveSuccess,
		ConflictID: conflictID,
		Resolution: resolution,
	}
}

// ResolveAll resolves every open conflict in the ledger and returns the
// per-conflict outcomes in detection order.
func (r *Resolver) ResolveAll() []ResolveResult {
	var results []ResolveResult
	for _, c := range r.state.Conflicts() {
		if c.Resolved {
			continue
		}
		results = append(results, r.Resolve(c.ID))
	}
	return results
}

// resolve dispatches to the strategy for the conflict type. Unknown
// types get the degenerate default resolution, which EscalateUnresolved
// still surfaces.
func (r *Resolver) resolve(c *models.Conflict) *models.Resolution {
	var res *models.Resolution
	switch c.Type {
	case models.ConflictContradiction:
		res = resolveByConfidence(c)
	case models.ConflictOverlap:
		res = resolveByMerge(c)
	case models.ConflictInconsistency:
		res = resolveByRecency(c)
	case models.ConflictAmbiguity:
		res = resolvePreserveBoth(c)
	default:
		res = &models.Resolution{
			Method: models.ResolutionDefault,
			Detail: fmt.Sprintf("no strategy for conflict type %q", c.Type),
		}
	}
	res.ResolvedAt = time.Now().UTC()
	return res
}

// resolveByConfidence keeps the higher-confidence result. Ties keep the
// earlier-listed result.
func resolveByConfidence(c *models.Conflict) *models.Resolution {
	a, b, ok := resultPair(c)
	if !ok {
		return degenerate(c)
	}

	kept, rejected := a, b
	if b.Confidence() > a.Confidence() {
		kept, rejected = b, a
	}
	return &models.Resolution{
		Method:   models.ResolutionConfidenceBased,
		Detail:   fmt.Sprintf("kept result from task %s (confidence %.2f over %.2f)", kept.TaskID, kept.Confidence(), rejected.Confidence()),
		Kept:     &kept,
		Rejected: &rejected,
	}
}

// resolveByMerge unions two overlapping arguments into one: combined
// premises, the more elaborate conclusion, the higher confidence.
func resolveByMerge(c *models.Conflict) *models.Resolution {
	a, b, ok := resultPair(c)
	if !ok || a.Argument == nil || b.Argument == nil {
		return degenerate(c)
	}

	merged := &models.ArgumentStructure{
		ID:         a.Argument.ID + "+" + b.Argument.ID,
		Premises:   unionPremises(a.Argument.Premises, b.Argument.Premises),
		Conclusion: a.Argument.Conclusion,
		Subject:    a.Argument.Subject,
		Confidence: a.Argument.Confidence,
		ProducedAt: time.Now().UTC(),
	}
	if len(b.Argument.Conclusion) > len(a.Argument.Conclusion) {
		merged.Conclusion = b.Argument.Conclusion
	}
	if b.Argument.Confidence > merged.Confidence {
		merged.Confidence = b.Argument.Confidence
	}

	return &models.Resolution{
		Method: models.ResolutionMerge,
		Detail: fmt.Sprintf("merged arguments %s and %s on subject %q", a.Argument.ID, b.Argument.ID, merged.Subject),
		Merged: &models.AnalysisResult{
			TaskID:   a.TaskID,
			Category: models.CategoryArgumentStructures,
			Argument: merged,
		},
	}
}

// resolveByRecency keeps the later-produced result.
func resolveByRecency(c *models.Conflict) *models.Resolution {
	a, b, ok := resultPair(c)
	if !ok {
		return degenerate(c)
	}

	kept, rejected := a, b
	if b.ProducedAt().After(a.ProducedAt()) {
		kept, rejected = b, a
	}
	return &models.Resolution{
		Method:   models.ResolutionRecency,
		Detail:   fmt.Sprintf("kept more recent result from task %s (%s)", kept.TaskID, kept.ProducedAt().Format(time.RFC3339)),
		Kept:     &kept,
		Rejected: &rejected,
	}
}

// resolvePreserveBoth keeps both results, flagged for downstream review.
func resolvePreserveBoth(c *models.Conflict) *models.Resolution {
	return &models.Resolution{
		Method: models.ResolutionPreserveBoth,
		Detail: fmt.Sprintf("both results kept for review: %s", c.Description),
	}
}

// degenerate is the fallback when a conflict record lacks the two
// results a real strategy needs.
func degenerate(c *models.Conflict) *models.Resolution {
	return &models.Resolution{
		Method: models.ResolutionDefault,
		Detail: fmt.Sprintf("conflict %s carries %d results, need 2", c.ID, len(c.InvolvedResults)),
	}
}

// resultPair extracts the two disagreeing results from a conflict.
func resultPair(c *models.Conflict) (a, b models.AnalysisResult, ok bool) {
	if len(c.InvolvedResults) < 2 {
		return a, b, false
	}
	return c.InvolvedResults[0], c.InvolvedResults[1], true
}

// unionPremises concatenates two premise lists, dropping duplicates
// while preserving first-seen order.
func unionPremises(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, p := range append(append([]string{}, a...), b...) {
		key := normalize(p)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}
