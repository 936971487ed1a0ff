package review

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"vigil/internal/appearance"
)

// Entry is one row of the review list. Group primaries carry their members;
// singletons carry none.
type Entry struct {
	Candidate appearance.Candidate
	IsPrimary bool
	Members   []appearance.Candidate
}

// Counts summarizes review progress.
type Counts struct {
	Accepted int
	Rejected int
	Deferred int
	// Merged counts candidates that belong to a merge group.
	Merged int
}

// View is the projection the UI renders.
type View struct {
	Entries []Entry
	Counts  Counts
}

// Project derives the review view from a buffer snapshot. Merge groups come
// first, each represented by its primary with members attached; ungrouped
// candidates follow in buffer order.
func Project(candidates []appearance.Candidate, groups []appearance.MergeGroup) View {
	byKey := make(map[string]appearance.Candidate, len(candidates))
	for _, candidate := range candidates {
		byKey[candidate.ID.String()] = candidate
	}
	grouped := make(map[string]struct{})

	view := View{}
	for _, group := range groups {
		primary, ok := byKey[group.Primary.String()]
		if !ok {
			continue
		}
		entry := Entry{Candidate: primary, IsPrimary: true}
		for _, member := range group.Members {
			key := member.String()
			grouped[key] = struct{}{}
			if key == group.Primary.String() {
				continue
			}
			if candidate, ok := byKey[key]; ok {
				entry.Members = append(entry.Members, candidate)
			}
		}
		view.Entries = append(view.Entries, entry)
	}

	for _, candidate := range candidates {
		if _, ok := grouped[candidate.ID.String()]; ok {
			continue
		}
		view.Entries = append(view.Entries, Entry{Candidate: candidate})
	}

	for _, candidate := range candidates {
		switch candidate.Decision {
		case appearance.DecisionAccepted:
			view.Counts.Accepted++
		case appearance.DecisionRejected:
			view.Counts.Rejected++
		default:
			view.Counts.Deferred++
		}
		if _, ok := grouped[candidate.ID.String()]; ok {
			view.Counts.Merged++
		}
	}
	return view
}

var nameCaser = cases.Title(language.BritishEnglish)

// DisplayName returns the label the UI shows for a candidate: the effective
// name title-cased, falling back to the badge number, then to a placeholder.
func DisplayName(candidate appearance.Candidate) string {
	fields := candidate.Resolved().Normalize()
	if fields.Name != "" {
		return nameCaser.String(strings.ToLower(fields.Name))
	}
	if fields.Badge != "" {
		return fmt.Sprintf("Officer %s", strings.ToUpper(fields.Badge))
	}
	return "Unidentified officer"
}
