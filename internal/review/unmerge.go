package review

import (
	"fmt"

	"vigil/internal/appearance"
)

// UnmergeProposal describes a valid split of a merge group: the appearances
// to pull out and whether the remainder is too small to stay a group.
type UnmergeProposal struct {
	Remove []appearance.ID
	// DissolveRemainder is set when fewer than two appearances would stay;
	// the group cannot survive the split and should be dissolved instead.
	DissolveRemainder bool
}

// ValidateUnmerge checks a proposed split against the group: the subset must
// be non-empty, every entry must belong to the group, and at least one
// appearance has to stay behind.
func ValidateUnmerge(group appearance.MergeGroup, subset []appearance.ID) (UnmergeProposal, error) {
	if len(subset) == 0 {
		return UnmergeProposal{}, fmt.Errorf("select at least one appearance to split out")
	}

	members := make(map[string]struct{}, len(group.Members))
	for _, member := range group.Members {
		members[member.String()] = struct{}{}
	}

	seen := make(map[string]struct{}, len(subset))
	for _, id := range subset {
		key := id.String()
		if _, dup := seen[key]; dup {
			return UnmergeProposal{}, fmt.Errorf("appearance %s selected twice", id)
		}
		seen[key] = struct{}{}
		if _, ok := members[key]; !ok {
			return UnmergeProposal{}, fmt.Errorf("appearance %s is not part of this group", id)
		}
	}

	remaining := len(group.Members) - len(subset)
	if remaining < 1 {
		return UnmergeProposal{}, fmt.Errorf("at least one appearance must stay with the group")
	}

	return UnmergeProposal{
		Remove:            append([]appearance.ID(nil), subset...),
		DissolveRemainder: remaining < 2,
	}, nil
}
