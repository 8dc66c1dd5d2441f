package common

import "errors"

// ErrAmbiguityResolved is returned when resolving an ambiguity twice.
var ErrAmbiguityResolved = errors.New("ambiguity already resolved")

type AmbiguityStatus string

const (
	AmbiguityOpen     AmbiguityStatus = "open"
	AmbiguityResolved AmbiguityStatus = "resolved"
)

// AmbiguityReason tells a reviewer, and the resolver, what kind of decision
// is being asked for.
type AmbiguityReason string

const (
	// ReasonMissingRole asks which role performs a task.
	ReasonMissingRole AmbiguityReason = "missing_role"
	// ReasonSimilarEntity asks whether a parked candidate is the same
	// entity as an existing one.
	ReasonSimilarEntity AmbiguityReason = "similar_entity"
)

// Ambiguity is a deferred decision surfaced to a human reviewer.
//
// For ReasonSimilarEntity questions EntityID is the parked candidate,
// MatchID/MatchName the existing entity it scored against and Candidate
// holds the attributes needed to create the candidate if the reviewer says
// it is distinct.
type Ambiguity struct {
	ID         string          `json:"id"`
	DocumentID string          `json:"document_id"`
	Reason     AmbiguityReason `json:"reason"`
	EntityType EntityKind      `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Question   string          `json:"question"`
	Options    []string        `json:"options"`
	Status     AmbiguityStatus `json:"status"`
	Answer     string          `json:"answer,omitempty"`

	MatchID   string         `json:"match_id,omitempty"`
	MatchName string         `json:"match_name,omitempty"`
	Score     float64        `json:"score,omitempty"`
	Candidate map[string]any `json:"candidate,omitempty"`
}

// Resolve records answer and moves the ambiguity from open to resolved.
// Any answer is accepted; validating it against Options is left to callers.
func (a *Ambiguity) Resolve(answer string) error {
	if a.Status == AmbiguityResolved {
		return ErrAmbiguityResolved
	}
	a.Status = AmbiguityResolved
	a.Answer = answer
	return nil
}

// IsOpen reports whether the ambiguity still awaits an answer.
func (a *Ambiguity) IsOpen() bool {
	return a.Status != AmbiguityResolved
}
