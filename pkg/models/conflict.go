package models

import "time"

// ConflictType classifies a disagreement between task-produced results.
type ConflictType string

const (
	// ConflictContradiction means two results assert incompatible things.
	ConflictContradiction ConflictType = "contradiction"
	// ConflictOverlap means two results address the same subject with
	// different wording.
	ConflictOverlap ConflictType = "overlap"
	// ConflictInconsistency means two results drifted apart over time.
	ConflictInconsistency ConflictType = "inconsistency"
	// ConflictAmbiguity means neither result can be preferred.
	ConflictAmbiguity ConflictType = "ambiguity"
)

// Severity ranks conflicts and detected issues.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Resolution method names, one per strategy.
const (
	// ResolutionConfidenceBased keeps the higher-confidence option.
	ResolutionConfidenceBased = "confidence_based"
	// ResolutionMerge unions overlapping results into one.
	ResolutionMerge = "merge"
	// ResolutionRecency keeps the most recently produced result.
	ResolutionRecency = "recency"
	// ResolutionPreserveBoth keeps both options flagged for review.
	ResolutionPreserveBoth = "preserve_both"
	// ResolutionDefault marks a degenerate resolution where no real
	// strategy applied; such conflicts are still escalated.
	ResolutionDefault = "default"
)

// Resolution records how a conflict was settled.
type Resolution struct {
	// Method is the strategy name that produced this resolution.
	Method string `json:"method"`
	// Detail is a human-readable account of the outcome.
	Detail string `json:"detail,omitempty"`
	// Kept identifies the result that won arbitration, if any.
	Kept *AnalysisResult `json:"kept,omitempty"`
	// Rejected identifies the result that lost arbitration, if any.
	Rejected *AnalysisResult `json:"rejected,omitempty"`
	// Merged is the combined result for merge resolutions.
	Merged *AnalysisResult `json:"merged,omitempty"`
	// ResolvedAt is when the resolution was applied.
	ResolvedAt time.Time `json:"resolved_at"`
}

// Conflict is a detected disagreement between two or more task results.
type Conflict struct {
	// ID is the unique identifier for this conflict.
	ID string `json:"id"`
	// Type classifies the disagreement.
	Type ConflictType `json:"type"`
	// Description summarizes what disagrees with what.
	Description string `json:"description"`
	// InvolvedTasks lists the tasks whose results disagree.
	InvolvedTasks []string `json:"involved_tasks,omitempty"`
	// InvolvedResults carries the disagreeing results themselves.
	InvolvedResults []AnalysisResult `json:"involved_results,omitempty"`
	// Severity ranks the conflict.
	Severity Severity `json:"severity"`
	// Resolved is true once a resolution has been stored.
	Resolved bool `json:"resolved"`
	// Resolution holds the stored resolution, if any.
	Resolution *Resolution `json:"resolution,omitempty"`
	// DetectedAt is when the conflict was identified.
	DetectedAt time.Time `json:"detected_at"`
}
