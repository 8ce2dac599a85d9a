package fsrs

import "fmt"

// transitions lists, per state and rating, the states a review may move a card to.
// Review is always reachable from the learning states because an empty step
// schedule graduates a card straight away. Learning never leads to Relearning.
var transitions = [...][len(Ratings)][]State{
	New: {
		{Learning, Review},
		{Learning, Review},
		{Learning, Review},
		{Learning, Review},
	},
	Learning: {
		{Learning, Review},
		{Learning, Review},
		{Learning, Review},
		{Review},
	},
	Review: {
		{Relearning, Review},
		{Review},
		{Review},
		{Review},
	},
	Relearning: {
		{Relearning, Review},
		{Relearning, Review},
		{Relearning, Review},
		{Review},
	},
}

// CanTransition reports whether rating a card in from may leave it in to.
func CanTransition(from State, r Rating, to State) bool {
	if !from.IsValid() || !r.IsValid() {
		return false
	}
	for _, s := range transitions[from][r-1] {
		if s == to {
			return true
		}
	}
	return false
}

// isLapse reports whether rating a card in s with r counts as a lapse.
func isLapse(s State, r Rating) bool {
	return r == Again && (s == Review || s == Relearning)
}

// CheckTransition verifies that next is a legal successor of prev under r:
// the state change is in the table, reps advanced by one, lapses moved only
// on a lapse and a graduating card starts with no learning steps.
func CheckTransition(prev, next Snapshot, r Rating) error {
	if !CanTransition(prev.State, r, next.State) {
		return fmt.Errorf("%w: %s -(%s)-> %s", ErrIllegalTransition, prev.State, r, next.State)
	}
	if next.Reps != prev.Reps+1 {
		return fmt.Errorf("%w: reps %d -> %d", ErrIllegalTransition, prev.Reps, next.Reps)
	}
	wantLapses := prev.Lapses
	if isLapse(prev.State, r) {
		wantLapses++
	}
	if next.Lapses != wantLapses {
		return fmt.Errorf("%w: lapses %d -> %d on %s from %s", ErrIllegalTransition, prev.Lapses, next.Lapses, r, prev.State)
	}
	if next.State == Review && next.LearningSteps != 0 {
		return fmt.Errorf("%w: review card with %d learning steps", ErrIllegalTransition, next.LearningSteps)
	}
	return nil
}
