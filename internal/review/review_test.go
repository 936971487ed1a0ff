package review

import (
	"testing"

	"vigil/internal/appearance"
)

func candidate(id int64, decision appearance.Decision) appearance.Candidate {
	return appearance.Candidate{
		ID:       appearance.AuthoritativeID(id),
		Decision: decision,
	}
}

func TestProjectGroupsFirstThenSingletons(t *testing.T) {
	candidates := []appearance.Candidate{
		candidate(1, appearance.DecisionDeferred),
		candidate(2, appearance.DecisionAccepted),
		candidate(3, appearance.DecisionAccepted),
		candidate(4, appearance.DecisionRejected),
	}
	groups := []appearance.MergeGroup{
		{
			Primary: appearance.AuthoritativeID(2),
			Members: []appearance.ID{appearance.AuthoritativeID(2), appearance.AuthoritativeID(3)},
		},
	}

	view := Project(candidates, groups)

	if len(view.Entries) != 3 {
		t.Fatalf("entries = %d, want 3 (one group + two singletons)", len(view.Entries))
	}
	first := view.Entries[0]
	if !first.IsPrimary {
		t.Error("group entry should come first")
	}
	if got, _ := first.Candidate.ID.Authoritative(); got != 2 {
		t.Errorf("group primary = %s, want 2", first.Candidate.ID)
	}
	if len(first.Members) != 1 {
		t.Fatalf("members = %d, want 1 (primary excluded)", len(first.Members))
	}
	if got, _ := view.Entries[1].Candidate.ID.Authoritative(); got != 1 {
		t.Errorf("second entry = %s, want singleton 1 in buffer order", view.Entries[1].Candidate.ID)
	}

	want := Counts{Accepted: 2, Rejected: 1, Deferred: 1, Merged: 2}
	if view.Counts != want {
		t.Errorf("counts = %+v, want %+v", view.Counts, want)
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name      string
		candidate appearance.Candidate
		want      string
	}{
		{
			name: "override name title cased",
			candidate: appearance.Candidate{
				Raw:       appearance.Fields{Name: "detected name"},
				Overrides: appearance.Fields{Name: "JANE DOE"},
			},
			want: "Jane Doe",
		},
		{
			name: "raw name when no override",
			candidate: appearance.Candidate{
				Raw: appearance.Fields{Name: "john smith"},
			},
			want: "John Smith",
		},
		{
			name: "badge fallback",
			candidate: appearance.Candidate{
				Raw: appearance.Fields{Badge: "ab123"},
			},
			want: "Officer AB123",
		},
		{
			name:      "placeholder",
			candidate: appearance.Candidate{},
			want:      "Unidentified officer",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DisplayName(tt.candidate); got != tt.want {
				t.Errorf("DisplayName = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidateUnmerge(t *testing.T) {
	group := appearance.MergeGroup{
		Primary: appearance.AuthoritativeID(1),
		Members: []appearance.ID{
			appearance.AuthoritativeID(1),
			appearance.AuthoritativeID(2),
			appearance.AuthoritativeID(3),
		},
	}

	t.Run("valid subset", func(t *testing.T) {
		proposal, err := ValidateUnmerge(group, []appearance.ID{appearance.AuthoritativeID(3)})
		if err != nil {
			t.Fatal(err)
		}
		if len(proposal.Remove) != 1 || proposal.DissolveRemainder {
			t.Errorf("proposal = %+v, want one removal with the group surviving", proposal)
		}
	})

	t.Run("remainder too small to stay a group", func(t *testing.T) {
		proposal, err := ValidateUnmerge(group, []appearance.ID{
			appearance.AuthoritativeID(2),
			appearance.AuthoritativeID(3),
		})
		if err != nil {
			t.Fatal(err)
		}
		if !proposal.DissolveRemainder {
			t.Error("one appearance left should dissolve the remainder")
		}
	})

	t.Run("empty subset", func(t *testing.T) {
		if _, err := ValidateUnmerge(group, nil); err == nil {
			t.Error("empty subset should be rejected")
		}
	})

	t.Run("whole group", func(t *testing.T) {
		if _, err := ValidateUnmerge(group, group.Members); err == nil {
			t.Error("removing every member should be rejected")
		}
	})

	t.Run("outsider", func(t *testing.T) {
		if _, err := ValidateUnmerge(group, []appearance.ID{appearance.AuthoritativeID(99)}); err == nil {
			t.Error("ids outside the group should be rejected")
		}
	})
}
