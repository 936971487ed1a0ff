package appearance

// ReviewResult is one entry of the verified set passed forward to commit:
// an accepted singleton, or an accepted merge group represented by its
// primary with merged provenance.
type ReviewResult struct {
	ID         ID
	Confidence float64
	Raw        Fields
	Overrides  Fields
	MergedFrom []ID
}

// Finalize derives the verified set. Accepted singletons produce one entry
// each; an accepted merge group produces one entry keyed by its primary,
// with every other member recorded as provenance. Rejected and deferred
// candidates are excluded, as are non-primary members of accepted groups.
// Finalize never mutates the buffer; callers may invoke it at any time.
func (b *Buffer) Finalize() []ReviewResult {
	results := make([]ReviewResult, 0, len(b.order))
	for _, key := range b.order {
		item := b.items[key]

		if primaryKey, grouped := b.memberOf[key]; grouped {
			if primaryKey != key {
				continue
			}
			group := b.groups[key]
			primary := b.items[key]
			if primary.Decision != DecisionAccepted {
				continue
			}
			merged := make([]ID, 0, len(group.Members)-1+len(primary.Provenance))
			merged = append(merged, primary.Provenance...)
			for _, member := range group.Members {
				memberKey := member.String()
				if memberKey == key {
					continue
				}
				merged = append(merged, member)
				if source, ok := b.items[memberKey]; ok {
					merged = append(merged, source.Provenance...)
				}
			}
			results = append(results, ReviewResult{
				ID:         primary.ID,
				Confidence: primary.Confidence,
				Raw:        primary.Raw,
				Overrides:  primary.Overrides.Normalize(),
				MergedFrom: merged,
			})
			continue
		}

		if item.Decision != DecisionAccepted {
			continue
		}
		results = append(results, ReviewResult{
			ID:         item.ID,
			Confidence: item.Confidence,
			Raw:        item.Raw,
			Overrides:  item.Overrides.Normalize(),
			MergedFrom: append([]ID(nil), item.Provenance...),
		})
	}
	return results
}
