package fsrs

import (
	"errors"
	"testing"
)

func TestCanTransition(t *testing.T) {
	testCases := []struct {
		from   State
		rating Rating
		to     State
		legal  bool
	}{
		{New, Again, Learning, true},
		{New, Easy, Review, true},
		{New, Good, Relearning, false},
		{New, Good, New, false},
		{Learning, Again, Learning, true},
		{Learning, Hard, Relearning, false},
		{Learning, Again, Relearning, false},
		{Learning, Good, Review, true},
		{Learning, Easy, Learning, false},
		{Review, Again, Relearning, true},
		{Review, Good, Review, true},
		{Review, Hard, Relearning, false},
		{Review, Good, Learning, false},
		{Relearning, Again, Relearning, true},
		{Relearning, Good, Review, true},
		{Relearning, Easy, Relearning, false},
		{Relearning, Good, Learning, false},
		{State(8), Good, Review, false},
		{Review, Rating(0), Review, false},
	}

	for _, tc := range testCases {
		t.Run(tc.from.String()+"/"+tc.rating.String()+"/"+tc.to.String(), func(t *testing.T) {
			if got := CanTransition(tc.from, tc.rating, tc.to); got != tc.legal {
				t.Errorf("Expected %v, but got %v", tc.legal, got)
			}
		})
	}
}

func TestCheckTransition(t *testing.T) {
	prev := Snapshot{State: Review, Reps: 4, Lapses: 1}

	testCases := []struct {
		name   string
		next   Snapshot
		rating Rating
		ok     bool
	}{
		{name: "lapse", next: Snapshot{State: Relearning, Reps: 5, Lapses: 2}, rating: Again, ok: true},
		{name: "recall", next: Snapshot{State: Review, Reps: 5, Lapses: 1}, rating: Good, ok: true},
		{name: "reps not advanced", next: Snapshot{State: Review, Reps: 4, Lapses: 1}, rating: Good},
		{name: "missing lapse", next: Snapshot{State: Relearning, Reps: 5, Lapses: 1}, rating: Again},
		{name: "spurious lapse", next: Snapshot{State: Review, Reps: 5, Lapses: 2}, rating: Hard},
		{name: "review with learning steps", next: Snapshot{State: Review, Reps: 5, Lapses: 1, LearningSteps: 1}, rating: Easy},
		{name: "illegal state", next: Snapshot{State: Learning, Reps: 5, Lapses: 1}, rating: Good},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckTransition(prev, tc.next, tc.rating)
			if tc.ok && err != nil {
				t.Errorf("Expected a legal transition, but got %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrIllegalTransition) {
				t.Errorf("Expected ErrIllegalTransition, but got %v", err)
			}
		})
	}

	t.Run("learning card never lapses", func(t *testing.T) {
		learning := Snapshot{State: Learning, Reps: 1}
		next := Snapshot{State: Learning, Reps: 2, Lapses: 1, LearningSteps: 2}
		if err := CheckTransition(learning, next, Again); !errors.Is(err, ErrIllegalTransition) {
			t.Errorf("Expected ErrIllegalTransition, but got %v", err)
		}
	})
}
