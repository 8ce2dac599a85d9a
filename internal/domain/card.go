package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/recall/internal/fsrs"
)

// Deck groups cards owned by one user.
type Deck struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Card is a flashcard: caller supplied data plus its scheduling snapshot.
// Data is opaque to the scheduler.
type Card struct {
	ID        string         `json:"id"`
	DeckID    string         `json:"deckId"`
	UserID    string         `json:"userId"`
	Data      map[string]any `json:"data"`
	FSRS      fsrs.Snapshot  `json:"fsrs"`
	Hash      string         `json:"-"` // content hash of cards imported from a source
	SourceID  *int64         `json:"-"`
	Version   int64          `json:"-"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// NewCard creates a card that has never been reviewed.
func NewCard(userID, deckID string, data map[string]any, now time.Time) Card {
	if data == nil {
		data = map[string]any{}
	}
	return Card{
		ID:        uuid.NewString(),
		DeckID:    deckID,
		UserID:    userID,
		Data:      data,
		FSRS:      fsrs.NewSnapshot(now),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ReviewLog records a single review event for a card. The scheduling fields
// are the card's values before the review; ScheduledDays is the interval the
// review produced.
type ReviewLog struct {
	ID              string      `json:"id"`
	CardID          string      `json:"cardId"`
	UserID          string      `json:"userId"`
	Rating          fsrs.Rating `json:"rating"`
	State           fsrs.State  `json:"state"`
	Due             time.Time   `json:"due"`
	Stability       float64     `json:"stability"`
	Difficulty      float64     `json:"difficulty"`
	ElapsedDays     int         `json:"elapsedDays"`     // since the previous review
	LastElapsedDays int         `json:"lastElapsedDays"` // between the two reviews before this one
	ScheduledDays   int         `json:"scheduledDays"`
	LearningSteps   int         `json:"learningSteps"`
	Review          time.Time   `json:"review"`
}

// NewReviewLog builds the log entry for reviewing card with rating at the given
// time, given the outcome that will be persisted.
func NewReviewLog(card Card, rating fsrs.Rating, at time.Time, outcome fsrs.Outcome) ReviewLog {
	before := card.FSRS
	return ReviewLog{
		ID:              uuid.NewString(),
		CardID:          card.ID,
		UserID:          card.UserID,
		Rating:          rating,
		State:           before.State,
		Due:             before.Due,
		Stability:       before.Stability,
		Difficulty:      before.Difficulty,
		ElapsedDays:     outcome.Snapshot.ElapsedDays,
		LastElapsedDays: before.ElapsedDays,
		ScheduledDays:   outcome.IntervalDays,
		LearningSteps:   before.LearningSteps,
		Review:          at,
	}
}

// Note is a question and answer pair parsed from a markdown source.
type Note struct {
	Question string
	Answer   string
	Context  string
}

// Data converts the note into card data.
func (n Note) Data() map[string]any {
	data := map[string]any{
		"question": n.Question,
		"answer":   n.Answer,
	}
	if n.Context != "" {
		data["context"] = n.Context
	}
	return data
}

// CardKey addresses a card within its owner's deck.
type CardKey struct {
	UserID string
	DeckID string
	CardID string
}
