package fsrs

import (
	"fmt"
	"math"
	"time"
)

// Rating is the user's response to a card review.
type Rating int

const (
	Again Rating = iota + 1
	Hard
	Good
	Easy
)

// Ratings lists every rating in ascending order.
var Ratings = [...]Rating{Again, Hard, Good, Easy}

var ratingNames = [...]string{Again: "Again", Hard: "Hard", Good: "Good", Easy: "Easy"}

// IsValid reports whether r is one of the four ratings.
func (r Rating) IsValid() bool {
	return r >= Again && r <= Easy
}

func (r Rating) String() string {
	if r.IsValid() {
		return ratingNames[r]
	}
	return fmt.Sprintf("Rating(%d)", int(r))
}

// ParseRating converts the textual form ("Again", "Hard", "Good", "Easy").
func ParseRating(s string) (Rating, error) {
	for _, r := range Ratings {
		if ratingNames[r] == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidRating, s)
}

// MarshalText implements encoding.TextMarshaler.
func (r Rating) MarshalText() ([]byte, error) {
	if !r.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRating, int(r))
	}
	return []byte(ratingNames[r]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Rating) UnmarshalText(text []byte) error {
	v, err := ParseRating(string(text))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// State is the learning stage of a card.
type State int

const (
	New State = iota
	Learning
	Review
	Relearning
)

var stateNames = [...]string{New: "New", Learning: "Learning", Review: "Review", Relearning: "Relearning"}

// IsValid reports whether s is a known state.
func (s State) IsValid() bool {
	return s >= New && s <= Relearning
}

func (s State) String() string {
	if s.IsValid() {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ParseState converts the textual form of a state.
func ParseState(s string) (State, error) {
	for i, name := range stateNames {
		if name == s {
			return State(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidState, s)
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidState, int(s))
	}
	return []byte(stateNames[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	v, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// DefaultWeights are the FSRS-6 default model weights.
var DefaultWeights = [21]float64{
	0.212, 1.2931, 2.3065, 8.2956, // initial stability per rating
	6.4133, 0.8334, 3.0194, 0.001, // difficulty
	1.8722, 0.1666, 0.796, 1.4835, // recall stability
	0.0614, 0.2629, 1.6483, 0.6014, // forget stability, hard penalty
	1.8729, 0.5425, 0.0912, 0.0658, // easy bonus, short-term
	0.1542, // decay
}

// Params holds the parameters for the FSRS algorithm.
type Params struct {
	W                [21]float64     // model weights
	DesiredRetention float64         // desired retention rate (e.g., 0.9 for 90%)
	LearningSteps    []time.Duration // sub-day steps for New/Learning cards
	RelearningSteps  []time.Duration // sub-day steps after a lapse
	MaximumInterval  int             // upper bound of a scheduled interval, in days
}

// DefaultParams provides a set of sensible default parameters to start with.
func DefaultParams() *Params {
	return &Params{
		W:                DefaultWeights,
		DesiredRetention: 0.9,
		LearningSteps:    []time.Duration{time.Minute, 10 * time.Minute},
		RelearningSteps:  []time.Duration{10 * time.Minute},
		MaximumInterval:  36500,
	}
}

// Validate checks that the parameters can produce finite, positive schedules.
func (p *Params) Validate() error {
	for i, w := range p.W {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return fmt.Errorf("%w: w[%d] = %f", ErrInvalidParams, i, w)
		}
	}
	if p.W[4] < 1 || p.W[4] > 10 {
		return fmt.Errorf("%w: w[4] = %f, must be within [1, 10]", ErrInvalidParams, p.W[4])
	}
	if p.W[20] < 0.1 || p.W[20] > 0.8 {
		return fmt.Errorf("%w: decay w[20] = %f, must be within [0.1, 0.8]", ErrInvalidParams, p.W[20])
	}
	if p.DesiredRetention <= 0 || p.DesiredRetention >= 1 {
		return fmt.Errorf("%w: desired retention %f out of range (0, 1)", ErrInvalidParams, p.DesiredRetention)
	}
	if p.MaximumInterval < 1 {
		return fmt.Errorf("%w: maximum interval %d must be at least 1 day", ErrInvalidParams, p.MaximumInterval)
	}
	for _, steps := range [][]time.Duration{p.LearningSteps, p.RelearningSteps} {
		for _, d := range steps {
			if d <= 0 {
				return fmt.Errorf("%w: step %s must be positive", ErrInvalidParams, d)
			}
		}
	}
	return nil
}
