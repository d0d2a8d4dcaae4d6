// Package conflict detects disagreements between concurrently produced
// analysis results and resolves or escalates them.
package conflict

import (
	"fmt"
	"strings"

	"github.com/concordlabs/concord/internal/comms"
	"github.com/concordlabs/concord/internal/logging"
	"github.com/concordlabs/concord/internal/state"
	"github.com/concordlabs/concord/pkg/models"
)

// highConfidence is the floor above which an overlap between two
// confident arguments is ranked medium instead of low.
const highConfidence = 0.8

// Resolver detects and settles conflicts recorded in the tactical ledger.
type Resolver struct {
	state      *state.TacticalState
	middleware *comms.Middleware
	logger     *logging.Logger
}

// New creates a resolver over the given ledger. The middleware may be
// nil when escalations are consumed locally.
func New(st *state.TacticalState, mw *comms.Middleware, logger *logging.Logger) *Resolver {
	return &Resolver{state: st, middleware: mw, logger: logger}
}

// DetectConflicts compares a batch of newly produced results against
// the already-known results of the same objective and returns the
// detected conflicts. Nothing is recorded; see ScanTask for the
// record-keeping variant.
func (r *Resolver) DetectConflicts(newResults, existing []models.AnalysisResult) []*models.Conflict {
	var conflicts []*models.Conflict

	for i, res := range newResults {
		// Compare against everything already known, then against the
		// earlier entries of the same batch, so each pair is checked once.
		for _, other := range existing {
			if c := comparePair(res, other); c != nil {
				conflicts = append(conflicts, c)
			}
		}
		for _, other := range newResults[:i] {
			if c := comparePair(res, other); c != nil {
				conflicts = append(conflicts, c)
			}
		}
	}

	if len(conflicts) > 0 {
		r.logger.Log("CONFLICT", "detected %d conflicts in batch of %d results", len(conflicts), len(newResults))
	}
	return conflicts
}

// ScanTask detects conflicts between a task's results and the rest of
// its objective's results, records them in the ledger, and returns the
// recorded conflicts.
func (r *Resolver) ScanTask(taskID string) []*models.Conflict {
	task := r.state.Task(taskID)
	if task == nil {
		return nil
	}

	newResults := r.state.ResultsForTask(taskID)
	var existing []models.AnalysisResult
	for _, res := range r.state.ObjectiveResults(task.ObjectiveID) {
		if res.TaskID != taskID {
			existing = append(existing, res)
		}
	}

	conflicts := r.DetectConflicts(newResults, existing)
	for _, c := range conflicts {
		id := r.state.AddConflict(c)
		r.state.LogAction("conflict_detected",
			fmt.Sprintf("%s conflict %s between tasks %v", c.Type, id, c.InvolvedTasks),
			"conflict-resolver")
	}
	return conflicts
}

// comparePair checks two results for a conflict. Returns nil when they
// are compatible or incomparable.
func comparePair(a, b models.AnalysisResult) *models.Conflict {
	if a.Category != b.Category {
		return nil
	}

	switch a.Category {
	case models.CategoryArgumentStructures:
		return compareArguments(a, b)
	case models.CategoryFallacyFindings:
		return compareFallacies(a, b)
	case models.CategoryFormalValidity:
		return compareVerdicts(a, b)
	default:
		return nil
	}
}

// compareArguments flags contradicting conclusions, or an overlap when
// two arguments address the same subject with different wording.
func compareArguments(a, b models.AnalysisResult) *models.Conflict {
	if a.Argument == nil || b.Argument == nil {
		return nil
	}

	if conclusionsContradict(a.Argument.Conclusion, b.Argument.Conclusion) {
		return newConflict(models.ConflictContradiction, models.SeverityMedium, a, b,
			fmt.Sprintf("arguments %s and %s reach contradictory conclusions", a.Argument.ID, b.Argument.ID))
	}

	if sameSubject(a.Argument, b.Argument) && normalize(a.Argument.Conclusion) != normalize(b.Argument.Conclusion) {
		severity := models.SeverityLow
		if a.Argument.Confidence >= highConfidence && b.Argument.Confidence >= highConfidence {
			severity = models.SeverityMedium
		}
		return newConflict(models.ConflictOverlap, severity, a, b,
			fmt.Sprintf("arguments %s and %s address %q with different wording", a.Argument.ID, b.Argument.ID, a.Argument.Subject))
	}
	return nil
}

// compareFallacies flags two findings that anchor to the identical text
// segment but name different fallacy types.
func compareFallacies(a, b models.AnalysisResult) *models.Conflict {
	if a.Fallacy == nil || b.Fallacy == nil {
		return nil
	}
	if !a.Fallacy.SameSegment(*b.Fallacy) || a.Fallacy.FallacyType == b.Fallacy.FallacyType {
		return nil
	}
	return newConflict(models.ConflictContradiction, models.SeverityMedium, a, b,
		fmt.Sprintf("segment tagged as both %q and %q", a.Fallacy.FallacyType, b.Fallacy.FallacyType))
}

// compareVerdicts flags two validity verdicts that disagree about the
// same argument. This is the strongest conflict class: it concerns a
// verifiable logical property, not a heuristic judgement.
func compareVerdicts(a, b models.AnalysisResult) *models.Conflict {
	if a.Validity == nil || b.Validity == nil {
		return nil
	}
	if a.Validity.ArgumentID != b.Validity.ArgumentID || a.Validity.IsValid == b.Validity.IsValid {
		return nil
	}
	return newConflict(models.ConflictContradiction, models.SeverityHigh, a, b,
		fmt.Sprintf("validity verdicts for argument %s disagree", a.Validity.ArgumentID))
}

// newConflict assembles a conflict record for a result pair.
func newConflict(typ models.ConflictType, severity models.Severity, a, b models.AnalysisResult, description string) *models.Conflict {
	tasks := []string{a.TaskID}
	if b.TaskID != a.TaskID {
		tasks = append(tasks, b.TaskID)
	}
	return &models.Conflict{
		Type:            typ,
		Description:     description,
		InvolvedTasks:   tasks,
		InvolvedResults: []models.AnalysisResult{a, b},
		Severity:        severity,
	}
}

// normalize lowercases a clause and strips punctuation and surrounding
// whitespace, so lexical comparisons ignore surface differences.
func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '.', ',', ';', ':', '!', '?', '"', '\'':
		default:
			sb.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

// negationMarkers are the tokens the lexical negation heuristic removes.
var negationMarkers = map[string]bool{"not": true, "never": true}

// conclusionsContradict applies the lexical negation heuristic: two
// conclusions contradict when one equals the other with a single
// negation marker removed.
func conclusionsContradict(a, b string) bool {
	ta := strings.Fields(normalize(a))
	tb := strings.Fields(normalize(b))
	if len(ta) == len(tb) {
		return false
	}
	if len(ta) < len(tb) {
		ta, tb = tb, ta
	}
	if len(ta) != len(tb)+1 {
		return false
	}

	// Try removing each negation marker from the longer conclusion.
	for i, tok := range ta {
		if !negationMarkers[tok] {
			continue
		}
		stripped := make([]string, 0, len(ta)-1)
		stripped = append(stripped, ta[:i]...)
		stripped = append(stripped, ta[i+1:]...)
		if strings.Join(stripped, " ") == strings.Join(tb, " ") {
			return true
		}
	}
	return false
}

// sameSubject reports whether two arguments address the same subject.
func sameSubject(a, b *models.ArgumentStructure) bool {
	return a.Subject != "" && normalize(a.Subject) == normalize(b.Subject)
}
