package fsrs

import "time"

// Snapshot is the scheduling state of a card at a point in time.
type Snapshot struct {
	Due           time.Time  `json:"due"`
	Stability     float64    `json:"stability"`
	Difficulty    float64    `json:"difficulty"`
	ElapsedDays   int        `json:"elapsedDays"`
	ScheduledDays int        `json:"scheduledDays"`
	LearningSteps int        `json:"learningSteps"`
	Reps          int        `json:"reps"`
	Lapses        int        `json:"lapses"`
	State         State      `json:"state"`
	LastReview    *time.Time `json:"lastReview,omitempty"` // nil until the first review
}

// NewSnapshot returns the state of a card that has never been reviewed.
// It is due immediately.
func NewSnapshot(now time.Time) Snapshot {
	return Snapshot{
		Due:   now,
		State: New,
	}
}

// Outcome is the candidate result of reviewing a snapshot with one rating.
type Outcome struct {
	Snapshot     Snapshot      `json:"snapshot"`
	IntervalDays int           `json:"intervalDays"`
	Interval     time.Duration `json:"-"`
}

// Outcomes holds one candidate per rating.
type Outcomes [len(Ratings)]Outcome

// For returns the candidate for r. r must be valid.
func (o Outcomes) For(r Rating) Outcome {
	return o[r-1]
}

func (o *Outcomes) set(r Rating, out Outcome) {
	o[r-1] = out
}
