package appearance

import "strings"

// Decision records the reviewer's call on a candidate.
type Decision string

const (
	DecisionAccepted Decision = "accepted"
	DecisionRejected Decision = "rejected"
	DecisionDeferred Decision = "deferred"
)

var decisionSet = map[Decision]struct{}{
	DecisionAccepted: {},
	DecisionRejected: {},
	DecisionDeferred: {},
}

// ParseDecision converts a string into a known Decision.
func ParseDecision(value string) (Decision, bool) {
	normalized := Decision(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := decisionSet[normalized]
	return normalized, ok
}

// Fields holds the editable officer attributes. Empty strings mean absent;
// the commit coordinator turns them into nulls on the wire.
type Fields struct {
	Badge string
	Name  string
	Force string
	Rank  string
	Role  string
	Notes string
}

// IsZero reports whether every field is absent.
func (f Fields) IsZero() bool {
	return f == Fields{}
}

// Merge overlays non-empty values from edit onto f and returns the result.
func (f Fields) Merge(edit Fields) Fields {
	if edit.Badge != "" {
		f.Badge = edit.Badge
	}
	if edit.Name != "" {
		f.Name = edit.Name
	}
	if edit.Force != "" {
		f.Force = edit.Force
	}
	if edit.Rank != "" {
		f.Rank = edit.Rank
	}
	if edit.Role != "" {
		f.Role = edit.Role
	}
	if edit.Notes != "" {
		f.Notes = edit.Notes
	}
	return f
}

// Normalize trims whitespace so "  " and "" both read as absent.
func (f Fields) Normalize() Fields {
	return Fields{
		Badge: strings.TrimSpace(f.Badge),
		Name:  strings.TrimSpace(f.Name),
		Force: strings.TrimSpace(f.Force),
		Rank:  strings.TrimSpace(f.Rank),
		Role:  strings.TrimSpace(f.Role),
		Notes: strings.TrimSpace(f.Notes),
	}
}

// CropSet holds up to three CDN paths for the candidate's crops, from most
// to least specific.
type CropSet struct {
	Face    string
	Body    string
	Generic string
}

// Best returns the most specific crop path available.
func (c CropSet) Best() string {
	switch {
	case c.Face != "":
		return c.Face
	case c.Body != "":
		return c.Body
	default:
		return c.Generic
	}
}

// Candidate is one tentative officer appearance emitted during analysis or
// fetched from the server after it.
type Candidate struct {
	ID         ID
	OfficerID  *int64
	Timestamp  string
	Confidence float64
	Crops      CropSet
	// Raw holds the values the detector extracted; Overrides holds reviewer
	// edits. Raw is never shown as editable and never mutated by review.
	Raw       Fields
	Overrides Fields
	Decision  Decision
	Reviewed  bool
	// Provenance lists the IDs of candidates merged into this one.
	Provenance []ID
}

// Resolved returns the effective fields: reviewer override where present,
// detector value otherwise.
func (c Candidate) Resolved() Fields {
	return c.Raw.Merge(c.Overrides)
}

// clone returns a deep copy so snapshots never alias buffer state.
func (c Candidate) clone() Candidate {
	out := c
	if c.OfficerID != nil {
		v := *c.OfficerID
		out.OfficerID = &v
	}
	if len(c.Provenance) > 0 {
		out.Provenance = append([]ID(nil), c.Provenance...)
	}
	return out
}
