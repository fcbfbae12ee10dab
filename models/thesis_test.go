package models

import (
	"testing"
	"time"
)

func TestResolveStatus(t *testing.T) {
	cases := map[string]string{
		"approved":   ThesisStatusApproved,
		"rejected":   ThesisStatusRejected,
		"pending":    ThesisStatusPending,
		" APPROVED ": ThesisStatusPending,
		"Rejected":   ThesisStatusPending,
		"approved\t": ThesisStatusPending,
		"in-review":  ThesisStatusPending,
		"":           ThesisStatusPending,
	}
	for input, want := range cases {
		got := ResolveStatus(input)
		if got != want {
			t.Fatalf("ResolveStatus(%q) = %q, want %q", input, got, want)
		}
		if again := ResolveStatus(got); again != got {
			t.Fatalf("ResolveStatus is not idempotent for %q: %q then %q", input, got, again)
		}
	}
}

func TestNeedsAttention(t *testing.T) {
	for status, want := range map[string]bool{"pending": true, "rejected": true, "approved": false, "Approved": true, "weird": true} {
		thesis := Thesis{Status: status}
		if got := thesis.NeedsAttention(); got != want {
			t.Fatalf("NeedsAttention(%q) = %v, want %v", status, got, want)
		}
	}
}

func TestActivityAtFallsBackToCreation(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	thesis := Thesis{CreatedAt: created}
	if !thesis.ActivityAt().Equal(created) {
		t.Fatalf("expected creation time, got %v", thesis.ActivityAt())
	}
	thesis.UpdatedAt = created.Add(time.Hour)
	if !thesis.ActivityAt().Equal(created.Add(time.Hour)) {
		t.Fatalf("expected update time, got %v", thesis.ActivityAt())
	}
}

func TestDefenseMilestonesAndPanel(t *testing.T) {
	final := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	title := ThesisTitle{FinalDefenseAt: &final}
	milestones := title.DefenseMilestones()
	if len(milestones) != 1 || milestones[0].Kind != MilestoneFinalDefense {
		t.Fatalf("unexpected milestones %+v", milestones)
	}

	seat := uint(7)
	panel := &ThesisTitlePanel{MemberTwoID: &seat}
	if !panel.Includes(7) || panel.Includes(8) {
		t.Fatalf("panel membership mismatch")
	}
	var empty *ThesisTitlePanel
	if empty.Includes(7) {
		t.Fatalf("nil panel should include nobody")
	}
}
