package conflict

import (
	"strings"
	"testing"
	"time"

	"github.com/concordlabs/concord/internal/state"
	"github.com/concordlabs/concord/pkg/models"
)

func recordConflict(t *testing.T, st *state.TacticalState, typ models.ConflictType, results ...models.AnalysisResult) string {
	t.Helper()
	return st.AddConflict(&models.Conflict{
		Type:            typ,
		Description:     "test conflict",
		InvolvedResults: results,
		Severity:        models.SeverityMedium,
	})
}

func TestResolveUnknownConflict(t *testing.T) {
	r, _ := newTestResolver(t)

	result := r.Resolve("ghost")
	if result.Status != ResolveError {
		t.Errorf("expected error status, got %s", result.Status)
	}
	if result.ConflictID != "ghost" {
		t.Errorf("error result must carry the conflict ID, got %q", result.ConflictID)
	}
}

func TestResolveContradictionByConfidence(t *testing.T) {
	r, st := newTestResolver(t)
	a := verdictResult("t1", "arg-1", true, 0.9)
	b := verdictResult("t2", "arg-1", false, 0.6)
	id := recordConflict(t, st, models.ConflictContradiction, a, b)

	result := r.Resolve(id)
	if result.Status != ResolveSuccess {
		t.Fatalf("resolve failed: %s", result.Message)
	}
	res := result.Resolution
	if res.Method != models.ResolutionConfidenceBased {
		t.Errorf("expected confidence_based, got %s", res.Method)
	}
	if res.Kept == nil || res.Kept.TaskID != "t1" {
		t.Errorf("higher confidence must win, kept %+v", res.Kept)
	}
	if res.Rejected == nil || res.Rejected.TaskID != "t2" {
		t.Errorf("lower confidence must be rejected, got %+v", res.Rejected)
	}
	if res.ResolvedAt.IsZero() {
		t.Error("resolution timestamp not set")
	}

	if !st.Conflict(id).Resolved {
		t.Error("resolution not written back to the ledger")
	}
}

func TestResolveConfidenceTieKeepsFirst(t *testing.T) {
	r, st := newTestResolver(t)
	a := verdictResult("t1", "arg-1", true, 0.7)
	b := verdictResult("t2", "arg-1", false, 0.7)
	id := recordConflict(t, st, models.ConflictContradiction, a, b)

	res := r.Resolve(id).Resolution
	if res.Kept.TaskID != "t1" {
		t.Errorf("tie must keep the first-listed result, kept %s", res.Kept.TaskID)
	}
}

func TestResolveOverlapByMerge(t *testing.T) {
	r, st := newTestResolver(t)
	a := argResult("t1", "a1", "short claim", "economy", 0.6)
	a.Argument.Premises = []string{"Premise one.", "premise two"}
	b := argResult("t2", "a2", "a considerably longer conclusion", "economy", 0.9)
	b.Argument.Premises = []string{"premise one", "premise three"}
	id := recordConflict(t, st, models.ConflictOverlap, a, b)

	res := r.Resolve(id).Resolution
	if res.Method != models.ResolutionMerge {
		t.Fatalf("expected merge, got %s", res.Method)
	}
	merged := res.Merged.Argument
	if merged.ID != "a1+a2" {
		t.Errorf("merged ID must join both, got %q", merged.ID)
	}
	// "premise one" appears in both; normalization dedups it.
	if len(merged.Premises) != 3 {
		t.Errorf("expected 3 deduplicated premises, got %v", merged.Premises)
	}
	if !strings.Contains(merged.Conclusion, "longer") {
		t.Errorf("merge must keep the more elaborate conclusion, got %q", merged.Conclusion)
	}
	if merged.Confidence != 0.9 {
		t.Errorf("merge must keep the higher confidence, got %f", merged.Confidence)
	}
}

func TestResolveInconsistencyByRecency(t *testing.T) {
	r, st := newTestResolver(t)
	a := argResult("t1", "a1", "early reading", "", 0.9)
	a.Argument.ProducedAt = time.Now().UTC().Add(-time.Hour)
	b := argResult("t2", "a2", "later reading", "", 0.5)
	id := recordConflict(t, st, models.ConflictInconsistency, a, b)

	res := r.Resolve(id).Resolution
	if res.Method != models.ResolutionRecency {
		t.Fatalf("expected recency, got %s", res.Method)
	}
	if res.Kept.TaskID != "t2" {
		t.Errorf("later result must win regardless of confidence, kept %s", res.Kept.TaskID)
	}
}

func TestResolveAmbiguityPreservesBoth(t *testing.T) {
	r, st := newTestResolver(t)
	a := argResult("t1", "a1", "reading one", "", 0.6)
	b := argResult("t2", "a2", "reading two", "", 0.6)
	id := recordConflict(t, st, models.ConflictAmbiguity, a, b)

	res := r.Resolve(id).Resolution
	if res.Method != models.ResolutionPreserveBoth {
		t.Fatalf("expected preserve_both, got %s", res.Method)
	}
	if res.Kept != nil || res.Rejected != nil {
		t.Error("preserve_both must not pick a winner")
	}
}

func TestResolveDegenerateConflict(t *testing.T) {
	r, st := newTestResolver(t)
	// One result only: no strategy can apply.
	id := recordConflict(t, st, models.ConflictContradiction, verdictResult("t1", "arg-1", true, 0.9))

	res := r.Resolve(id).Resolution
	if res.Method != models.ResolutionDefault {
		t.Errorf("short conflict must fall back to default, got %s", res.Method)
	}
}

func TestResolveAlreadyResolved(t *testing.T) {
	r, st := newTestResolver(t)
	a := verdictResult("t1", "arg-1", true, 0.9)
	b := verdictResult("t2", "arg-1", false, 0.6)
	id := recordConflict(t, st, models.ConflictContradiction, a, b)

	first := r.Resolve(id)
	second := r.Resolve(id)
	if second.Status != ResolveAlreadyResolved {
		t.Fatalf("expected already_resolved, got %s", second.Status)
	}
	if second.Resolution.ResolvedAt != first.Resolution.ResolvedAt {
		t.Error("re-resolving must leave the stored resolution untouched")
	}
}

func TestResolveAll(t *testing.T) {
	r, st := newTestResolver(t)
	id1 := recordConflict(t, st, models.ConflictContradiction,
		verdictResult("t1", "arg-1", true, 0.9), verdictResult("t2", "arg-1", false, 0.6))
	id2 := recordConflict(t, st, models.ConflictAmbiguity,
		argResult("t3", "a3", "x", "", 0.5), argResult("t4", "a4", "y", "", 0.5))
	resolved := recordConflict(t, st, models.ConflictOverlap,
		argResult("t5", "a5", "z", "s", 0.5), argResult("t6", "a6", "w", "s", 0.5))
	st.ResolveConflict(resolved, &models.Resolution{Method: models.ResolutionMerge})

	results := r.ResolveAll()
	if len(results) != 2 {
		t.Fatalf("expected 2 resolutions (already-resolved skipped), got %d", len(results))
	}
	if results[0].ConflictID != id1 || results[1].ConflictID != id2 {
		t.Error("resolutions must come back in detection order")
	}
	for _, res := range results {
		if res.Status != ResolveSuccess {
			t.Errorf("conflict %s: %s", res.ConflictID, res.Message)
		}
	}
}

func TestEscalateUnresolved(t *testing.T) {
	r, st := newTestResolver(t)

	open := recordConflict(t, st, models.ConflictContradiction,
		verdictResult("t1", "arg-1", true, 0.9), verdictResult("t2", "arg-1", false, 0.6))
	defaulted := recordConflict(t, st, models.ConflictType("unknown_kind"),
		argResult("t3", "a3", "x", "", 0.5), argResult("t4", "a4", "y", "", 0.5))
	settled := recordConflict(t, st, models.ConflictAmbiguity,
		argResult("t5", "a5", "z", "", 0.5), argResult("t6", "a6", "w", "", 0.5))

	r.Resolve(defaulted)
	r.Resolve(settled)

	escalations := r.EscalateUnresolved()
	if len(escalations) != 2 {
		t.Fatalf("expected open + default-resolved, got %d", len(escalations))
	}

	byID := map[string]Escalation{}
	for _, e := range escalations {
		byID[e.ConflictID] = e
	}
	if _, ok := byID[open]; !ok {
		t.Error("never-resolved conflict must escalate")
	}
	if e, ok := byID[defaulted]; !ok {
		t.Error("default-resolved conflict must escalate")
	} else if e.Resolution == nil || e.Resolution.Method != models.ResolutionDefault {
		t.Error("escalation must carry the attempted resolution")
	}
	if _, ok := byID[settled]; ok {
		t.Error("properly resolved conflict must not escalate")
	}
}

func TestPublishEscalationsWithoutMiddleware(t *testing.T) {
	r, st := newTestResolver(t)
	recordConflict(t, st, models.ConflictContradiction,
		verdictResult("t1", "arg-1", true, 0.9), verdictResult("t2", "arg-1", false, 0.6))

	n, err := r.PublishEscalations("strategic-coordinator")
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if n != 0 {
		t.Errorf("no middleware means nothing sent, got %d", n)
	}
}
