package fsrs

import (
	"fmt"
	"math"
	"time"
)

const day = 24 * time.Hour

// Evaluate computes the outcome of reviewing s at now for each of the four
// ratings. It is pure: the same snapshot and time always give the same result.
func (p *Params) Evaluate(s Snapshot, now time.Time) (Outcomes, error) {
	if !s.State.IsValid() {
		return Outcomes{}, fmt.Errorf("%w: %d", ErrInvalidState, int(s.State))
	}

	elapsed := elapsedDays(s.LastReview, now)

	var out Outcomes
	for _, r := range Ratings {
		out.set(r, p.next(s, r, elapsed, now))
	}
	if s.State == Review {
		p.orderReviewIntervals(&out, now)
	}

	for _, r := range Ratings {
		if err := checkOutcome(out.For(r), now); err != nil {
			return Outcomes{}, fmt.Errorf("%s from %s: %w", r, s.State, err)
		}
	}
	return out, nil
}

// Retrievability returns the probability of recalling the card at now.
// It is 0 for a card that has never been reviewed.
func (p *Params) Retrievability(s Snapshot, now time.Time) float64 {
	if s.State == New || s.LastReview == nil || s.Stability <= 0 {
		return 0
	}
	elapsed := math.Max(now.Sub(*s.LastReview).Hours()/24, 0)
	return p.retrievability(elapsed, s.Stability)
}

func elapsedDays(last *time.Time, now time.Time) int {
	if last == nil {
		return 0
	}
	d := now.Sub(*last)
	if d <= 0 {
		return 0
	}
	return int(d / day)
}

// next applies one rating to s.
func (p *Params) next(s Snapshot, r Rating, elapsed int, now time.Time) Outcome {
	n := s
	reviewed := now
	n.LastReview = &reviewed
	n.ElapsedDays = elapsed
	n.Reps = s.Reps + 1
	if isLapse(s.State, r) {
		n.Lapses++
	}
	p.updateMemory(&n, s, r, elapsed)

	switch s.State {
	case New, Learning:
		return p.step(n, s, r, p.LearningSteps, Learning, now)
	case Relearning:
		return p.step(n, s, r, p.RelearningSteps, Relearning, now)
	default:
		if r == Again && len(p.RelearningSteps) > 0 {
			n.State = Relearning
			n.LearningSteps = 0
			return schedule(n, now, p.RelearningSteps[0])
		}
		return p.graduate(n, now)
	}
}

func (p *Params) updateMemory(n *Snapshot, s Snapshot, r Rating, elapsed int) {
	if s.State == New {
		n.Stability = p.initStability(r)
		n.Difficulty = clampDifficulty(p.initDifficulty(r))
		return
	}

	switch {
	case elapsed < 1:
		n.Stability = p.shortTermStability(s.Stability, r)
	case r == Again:
		n.Stability = p.forgetStability(s.Difficulty, s.Stability, p.retrievability(float64(elapsed), s.Stability))
	default:
		n.Stability = p.recallStability(s.Difficulty, s.Stability, p.retrievability(float64(elapsed), s.Stability), r)
	}
	n.Difficulty = p.nextDifficulty(s.Difficulty, r)
}

// step moves a card through its sub-day schedule. LearningSteps counts the
// steps already taken and never exceeds len(steps).
func (p *Params) step(n, s Snapshot, r Rating, steps []time.Duration, stay State, now time.Time) Outcome {
	if len(steps) == 0 {
		return p.graduate(n, now)
	}

	done := s.LearningSteps
	switch r {
	case Again:
		// The counter records attempts, not position: Again restarts at the
		// first step but still counts towards the step budget.
		n.State = stay
		n.LearningSteps = min(done+1, len(steps))
		return schedule(n, now, steps[0])
	case Hard:
		n.State = stay
		n.LearningSteps = min(done+1, len(steps))
		return schedule(n, now, hardStep(steps, done))
	case Good:
		if done+1 >= len(steps) {
			return p.graduate(n, now)
		}
		n.State = stay
		n.LearningSteps = done + 1
		return schedule(n, now, steps[done+1])
	default:
		return p.graduate(n, now)
	}
}

// hardStep repeats the current step; on the first step it sits halfway to the next.
func hardStep(steps []time.Duration, done int) time.Duration {
	if done == 0 {
		if len(steps) == 1 {
			return steps[0] * 3 / 2
		}
		return (steps[0] + steps[1]) / 2
	}
	return steps[min(done, len(steps)-1)]
}

func (p *Params) graduate(n Snapshot, now time.Time) Outcome {
	n.State = Review
	n.LearningSteps = 0
	return schedule(n, now, time.Duration(p.nextInterval(n.Stability))*day)
}

// orderReviewIntervals keeps Hard <= Good < Easy for cards already in review.
func (p *Params) orderReviewIntervals(out *Outcomes, now time.Time) {
	hard := out.For(Hard).IntervalDays
	good := out.For(Good).IntervalDays
	easy := out.For(Easy).IntervalDays

	hard = min(hard, good)
	good = min(max(good, hard+1), p.MaximumInterval)
	easy = min(max(easy, good+1), p.MaximumInterval)

	out.set(Hard, schedule(out.For(Hard).Snapshot, now, time.Duration(hard)*day))
	out.set(Good, schedule(out.For(Good).Snapshot, now, time.Duration(good)*day))
	out.set(Easy, schedule(out.For(Easy).Snapshot, now, time.Duration(easy)*day))
}

func schedule(n Snapshot, now time.Time, interval time.Duration) Outcome {
	n.ScheduledDays = int(interval / day)
	n.Due = now.Add(interval)
	return Outcome{Snapshot: n, IntervalDays: n.ScheduledDays, Interval: interval}
}

func checkOutcome(o Outcome, now time.Time) error {
	s := o.Snapshot
	switch {
	case math.IsNaN(s.Stability) || math.IsInf(s.Stability, 0) || s.Stability <= 0:
		return fmt.Errorf("%w: stability %v", ErrInvariant, s.Stability)
	case math.IsNaN(s.Difficulty) || s.Difficulty < minDifficulty || s.Difficulty > maxDifficulty:
		return fmt.Errorf("%w: difficulty %v", ErrInvariant, s.Difficulty)
	case !s.Due.After(now):
		return fmt.Errorf("%w: due %s not after review at %s", ErrInvariant, s.Due, now)
	}
	return nil
}
