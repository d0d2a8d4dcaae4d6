package models

import "time"

// ResultCategory partitions analysis results produced by workers.
type ResultCategory string

const (
	// CategoryArgumentStructures holds mined argument structures.
	CategoryArgumentStructures ResultCategory = "argument_structures"
	// CategoryFallacyFindings holds detected fallacies anchored to text segments.
	CategoryFallacyFindings ResultCategory = "fallacy_findings"
	// CategoryFormalValidity holds formal-logic validity verdicts.
	CategoryFormalValidity ResultCategory = "formal_validity"
	// CategoryCoherenceScores holds coherence scores for text spans.
	CategoryCoherenceScores ResultCategory = "coherence_scores"
)

// Valid returns true if the category is a known value.
func (c ResultCategory) Valid() bool {
	switch c {
	case CategoryArgumentStructures, CategoryFallacyFindings,
		CategoryFormalValidity, CategoryCoherenceScores:
		return true
	default:
		return false
	}
}

// ArgumentStructure is a mined argument: premises supporting a conclusion.
type ArgumentStructure struct {
	ID         string    `json:"id"`
	Premises   []string  `json:"premises"`
	Conclusion string    `json:"conclusion"`
	// Subject is the normalized topic the argument addresses, used for
	// overlap detection between arguments from different workers.
	Subject    string    `json:"subject,omitempty"`
	Confidence float64   `json:"confidence"`
	ProducedAt time.Time `json:"produced_at"`
}

// FallacyFinding anchors a named fallacy to a text segment.
type FallacyFinding struct {
	ID           string    `json:"id"`
	Segment      string    `json:"segment"`
	SegmentStart int       `json:"segment_start"`
	SegmentEnd   int       `json:"segment_end"`
	FallacyType  string    `json:"fallacy_type"`
	Confidence   float64   `json:"confidence"`
	ProducedAt   time.Time `json:"produced_at"`
}

// SameSegment reports whether two findings anchor to the identical segment.
func (f FallacyFinding) SameSegment(other FallacyFinding) bool {
	if f.SegmentStart != 0 || f.SegmentEnd != 0 || other.SegmentStart != 0 || other.SegmentEnd != 0 {
		return f.SegmentStart == other.SegmentStart && f.SegmentEnd == other.SegmentEnd
	}
	return f.Segment != "" && f.Segment == other.Segment
}

// ValidityVerdict is a formal-logic judgement on a single argument.
type ValidityVerdict struct {
	ArgumentID string    `json:"argument_id"`
	IsValid    bool      `json:"is_valid"`
	Confidence float64   `json:"confidence"`
	ProducedAt time.Time `json:"produced_at"`
}

// CoherenceScore rates the coherence of a text span.
type CoherenceScore struct {
	Span       string    `json:"span"`
	Score      float64   `json:"score"`
	ProducedAt time.Time `json:"produced_at"`
}

// AnalysisResult is the tagged union a worker submits: exactly one of the
// payload fields is set, matching Category.
type AnalysisResult struct {
	// TaskID is the task that produced this result.
	TaskID string `json:"task_id"`
	// Category discriminates which payload field is populated.
	Category ResultCategory `json:"category"`

	Argument  *ArgumentStructure `json:"argument,omitempty"`
	Fallacy   *FallacyFinding    `json:"fallacy,omitempty"`
	Validity  *ValidityVerdict   `json:"validity,omitempty"`
	Coherence *CoherenceScore    `json:"coherence,omitempty"`
}

// ProducedAt returns the production instant of the populated payload.
func (r AnalysisResult) ProducedAt() time.Time {
	switch r.Category {
	case CategoryArgumentStructures:
		if r.Argument != nil {
			return r.Argument.ProducedAt
		}
	case CategoryFallacyFindings:
		if r.Fallacy != nil {
			return r.Fallacy.ProducedAt
		}
	case CategoryFormalValidity:
		if r.Validity != nil {
			return r.Validity.ProducedAt
		}
	case CategoryCoherenceScores:
		if r.Coherence != nil {
			return r.Coherence.ProducedAt
		}
	}
	return time.Time{}
}

// Confidence returns the confidence of the populated payload, or zero for
// payloads that carry none.
func (r AnalysisResult) Confidence() float64 {
	switch r.Category {
	case CategoryArgumentStructures:
		if r.Argument != nil {
			return r.Argument.Confidence
		}
	case CategoryFallacyFindings:
		if r.Fallacy != nil {
			return r.Fallacy.Confidence
		}
	case CategoryFormalValidity:
		if r.Validity != nil {
			return r.Validity.Confidence
		}
	}
	return 0
}
