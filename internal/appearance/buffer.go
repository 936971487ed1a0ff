package appearance

import (
	"errors"
	"fmt"
)

// ErrInvalidMerge tags merge requests the buffer cannot honour: fewer than
// two members, unknown IDs, overlapping groups, or a primary outside the set.
var ErrInvalidMerge = errors.New("invalid merge")

// ErrNotFound tags operations that reference an appearance the buffer does
// not hold.
var ErrNotFound = errors.New("appearance not found")

// MergeGroup asserts that a set of candidates depicts the same officer. The
// primary carries the merged identity after commit.
type MergeGroup struct {
	Primary ID
	Members []ID
}

// Buffer is the insertion-ordered collection of candidates keyed by
// appearance ID. It owns candidate mutation: decisions, override edits, and
// merge relations all go through it.
type Buffer struct {
	order    []string
	items    map[string]*Candidate
	groups   map[string]*MergeGroup
	memberOf map[string]string
}

// NewBuffer returns an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{
		items:    make(map[string]*Candidate),
		groups:   make(map[string]*MergeGroup),
		memberOf: make(map[string]string),
	}
}

// Len reports the number of candidates held.
func (b *Buffer) Len() int {
	return len(b.order)
}

// Get returns a copy of the candidate with the given ID.
func (b *Buffer) Get(id ID) (Candidate, bool) {
	item, ok := b.items[id.String()]
	if !ok {
		return Candidate{}, false
	}
	return item.clone(), true
}

// Upsert inserts a new candidate or merges an update into the existing one.
// Detection fields from the update overwrite what is stored; override fields
// already edited by the reviewer are preserved, as are decision and reviewed
// state. Upsert is idempotent per ID for identical input.
func (b *Buffer) Upsert(c Candidate) {
	if c.ID.IsZero() {
		return
	}
	if c.Decision == "" {
		c.Decision = DecisionDeferred
	}
	key := c.ID.String()
	existing, ok := b.items[key]
	if !ok {
		stored := c.clone()
		b.items[key] = &stored
		b.order = append(b.order, key)
		return
	}

	merged := c.clone()
	merged.Overrides = merged.Overrides.Merge(existing.Overrides)
	merged.Decision = existing.Decision
	merged.Reviewed = existing.Reviewed
	if len(merged.Provenance) == 0 {
		merged.Provenance = append([]ID(nil), existing.Provenance...)
	}
	if merged.OfficerID == nil {
		merged.OfficerID = existing.OfficerID
	}
	if merged.Timestamp == "" {
		merged.Timestamp = existing.Timestamp
	}
	if merged.Crops.Face == "" {
		merged.Crops.Face = existing.Crops.Face
	}
	if merged.Crops.Body == "" {
		merged.Crops.Body = existing.Crops.Body
	}
	if merged.Crops.Generic == "" {
		merged.Crops.Generic = existing.Crops.Generic
	}
	*existing = merged
}

// SetDecision records a review call and marks the candidate reviewed.
func (b *Buffer) SetDecision(id ID, decision Decision) error {
	if _, ok := decisionSet[decision]; !ok {
		return fmt.Errorf("unknown decision %q", decision)
	}
	item, ok := b.items[id.String()]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	item.Decision = decision
	item.Reviewed = true
	return nil
}

// SetOverrides merges reviewer field edits into the candidate.
func (b *Buffer) SetOverrides(id ID, edit Fields) error {
	item, ok := b.items[id.String()]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	item.Overrides = item.Overrides.Merge(edit.Normalize())
	return nil
}

// CreateMerge forms a merge group from the given IDs with the designated
// primary. A candidate belongs to at most one group.
func (b *Buffer) CreateMerge(ids []ID, primary ID) error {
	if len(ids) < 2 {
		return fmt.Errorf("%w: need at least two appearances, got %d", ErrInvalidMerge, len(ids))
	}
	primaryKey := primary.String()
	foundPrimary := false
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		key := id.String()
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: duplicate appearance %s", ErrInvalidMerge, id)
		}
		seen[key] = struct{}{}
		if _, ok := b.items[key]; !ok {
			return fmt.Errorf("%w: unknown appearance %s", ErrInvalidMerge, id)
		}
		if _, grouped := b.memberOf[key]; grouped {
			return fmt.Errorf("%w: appearance %s already merged", ErrInvalidMerge, id)
		}
		if key == primaryKey {
			foundPrimary = true
		}
	}
	if !foundPrimary {
		return fmt.Errorf("%w: primary %s not among members", ErrInvalidMerge, primary)
	}

	group := &MergeGroup{Primary: primary, Members: append([]ID(nil), ids...)}
	b.groups[primaryKey] = group
	for _, id := range ids {
		b.memberOf[id.String()] = primaryKey
	}
	return nil
}

// DissolveMerge removes the group keyed by the given primary.
func (b *Buffer) DissolveMerge(primary ID) error {
	key := primary.String()
	group, ok := b.groups[key]
	if !ok {
		return fmt.Errorf("%w: no merge group with primary %s", ErrNotFound, primary)
	}
	for _, id := range group.Members {
		delete(b.memberOf, id.String())
	}
	delete(b.groups, key)
	return nil
}

// GroupFor returns the merge group containing the given appearance.
func (b *Buffer) GroupFor(id ID) (MergeGroup, bool) {
	primaryKey, ok := b.memberOf[id.String()]
	if !ok {
		return MergeGroup{}, false
	}
	group := b.groups[primaryKey]
	return MergeGroup{Primary: group.Primary, Members: append([]ID(nil), group.Members...)}, true
}

// Groups returns copies of all merge groups in primary insertion order.
func (b *Buffer) Groups() []MergeGroup {
	out := make([]MergeGroup, 0, len(b.groups))
	for _, key := range b.order {
		group, ok := b.groups[key]
		if !ok {
			continue
		}
		out = append(out, MergeGroup{Primary: group.Primary, Members: append([]ID(nil), group.Members...)})
	}
	return out
}

// Snapshot returns copies of all candidates in insertion order.
func (b *Buffer) Snapshot() []Candidate {
	out := make([]Candidate, 0, len(b.order))
	for _, key := range b.order {
		out = append(out, b.items[key].clone())
	}
	return out
}
