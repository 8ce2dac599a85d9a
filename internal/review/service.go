// Package review applies ratings to cards. A review reads the card's current
// snapshot, runs the memory model and persists the chosen outcome and its log
// entry atomically.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/conorfennell/recall/internal/domain"
	"github.com/conorfennell/recall/internal/fsrs"
	"github.com/conorfennell/recall/internal/storage"
)

// ErrInvalidReviewDate is returned for a review timestamp earlier than the
// card's last review.
var ErrInvalidReviewDate = fmt.Errorf("%w: review date precedes the last review", domain.ErrInvalidInput)

// Store is the persistence the service needs.
type Store interface {
	FindCard(ctx context.Context, key domain.CardKey) (domain.Card, error)
	ReviewCard(ctx context.Context, key domain.CardKey, fn storage.ReviewFunc) (domain.Card, domain.ReviewLog, error)
}

// Request asks for one review of a card.
type Request struct {
	Key        domain.CardKey
	Rating     fsrs.Rating
	ReviewedAt *time.Time // defaults to the service clock
}

// Result is the committed review.
type Result struct {
	Card domain.Card      `json:"card"`
	Log  domain.ReviewLog `json:"log"`
}

// Preview is the four possible outcomes of reviewing a card at a given time.
type Preview struct {
	Card           domain.Card   `json:"card"`
	At             time.Time     `json:"at"`
	Retrievability float64       `json:"retrievability"`
	Outcomes       fsrs.Outcomes `json:"-"`
}

// Service applies reviews.
type Service struct {
	store       Store
	params      *fsrs.Params
	logger      *slog.Logger
	now         func() time.Time
	maxAttempts int
	backoff     time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock sets the source of the default review time.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMaxAttempts bounds how often a review is attempted when it conflicts
// with a concurrent review of the same card.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithBackoff sets the wait before the first retry. It doubles on every
// further retry.
func WithBackoff(d time.Duration) Option {
	return func(s *Service) { s.backoff = d }
}

// NewService creates a review service.
func NewService(store Store, params *fsrs.Params, opts ...Option) *Service {
	s := &Service{
		store:       store,
		params:      params,
		logger:      slog.Default(),
		now:         time.Now,
		maxAttempts: 5,
		backoff:     10 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Apply reviews a card with the given rating.
//
// Concurrent reviews of the same card are serialized: each one sees the
// snapshot committed by the previous one. When a review loses a race it is
// retried from a fresh read, up to the configured number of attempts, after
// which domain.ErrConflict is returned.
func (s *Service) Apply(ctx context.Context, req Request) (Result, error) {
	if !req.Rating.IsValid() {
		return Result{}, fmt.Errorf("%w: %w", domain.ErrInvalidInput, fsrs.ErrInvalidRating)
	}
	var explicit *time.Time
	if req.ReviewedAt != nil {
		at := req.ReviewedAt.UTC()
		explicit = &at
	}

	start := time.Now()
	fn := s.reviewFunc(req.Rating, explicit)
	for attempt := 1; ; attempt++ {
		card, log, err := s.store.ReviewCard(ctx, req.Key, fn)
		if err == nil {
			recordReview(req.Rating, log.State, card.FSRS.State, time.Since(start))
			s.logger.Debug("card reviewed",
				"card_id", card.ID,
				"rating", req.Rating,
				"from", log.State,
				"to", card.FSRS.State,
				"due", card.FSRS.Due,
			)
			return Result{Card: card, Log: log}, nil
		}

		if !errors.Is(err, domain.ErrConflict) {
			if errors.Is(err, fsrs.ErrInvariant) || errors.Is(err, fsrs.ErrIllegalTransition) {
				s.logger.Error("review produced an invalid snapshot", "card_id", req.Key.CardID, "error", err)
			}
			return Result{}, err
		}

		recordConflict()
		if attempt >= s.maxAttempts {
			s.logger.Warn("giving up on conflicting review", "card_id", req.Key.CardID, "attempts", attempt)
			return Result{}, err
		}
		wait := s.backoff << (attempt - 1)
		s.logger.Debug("review conflicted, retrying", "card_id", req.Key.CardID, "attempt", attempt, "wait", wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Result{}, ctx.Err()
		case <-timer.C:
		}
	}
}

// reviewFunc runs with the card row locked. Without an explicit time the
// clock is read there, on every attempt, so the review that commits later
// never carries an earlier timestamp.
func (s *Service) reviewFunc(rating fsrs.Rating, explicit *time.Time) storage.ReviewFunc {
	return func(card domain.Card) (fsrs.Snapshot, domain.ReviewLog, error) {
		last := card.FSRS.LastReview
		var at time.Time
		switch {
		case explicit != nil:
			at = *explicit
			if last != nil && at.Before(*last) {
				return fsrs.Snapshot{}, domain.ReviewLog{}, fmt.Errorf("card %s reviewed at %s, requested %s: %w",
					card.ID, last.Format(time.RFC3339), at.Format(time.RFC3339), ErrInvalidReviewDate)
			}
		default:
			at = s.now().UTC()
			if last != nil && at.Before(*last) {
				// Wall clock stepped back since the last commit.
				at = *last
			}
		}

		outcomes, err := s.params.Evaluate(card.FSRS, at)
		if err != nil {
			return fsrs.Snapshot{}, domain.ReviewLog{}, fmt.Errorf("failed to evaluate card %s: %w", card.ID, err)
		}
		outcome := outcomes.For(rating)
		if err := fsrs.CheckTransition(card.FSRS, outcome.Snapshot, rating); err != nil {
			return fsrs.Snapshot{}, domain.ReviewLog{}, fmt.Errorf("card %s: %w", card.ID, err)
		}
		return outcome.Snapshot, domain.NewReviewLog(card, rating, at, outcome), nil
	}
}

// Preview computes what each rating would do to a card at the given time
// (the service clock when nil) without changing it.
func (s *Service) Preview(ctx context.Context, key domain.CardKey, at *time.Time) (Preview, error) {
	when := s.now()
	if at != nil {
		when = *at
	}
	when = when.UTC()

	card, err := s.store.FindCard(ctx, key)
	if err != nil {
		return Preview{}, err
	}
	if last := card.FSRS.LastReview; last != nil && when.Before(*last) {
		return Preview{}, fmt.Errorf("card %s: %w", card.ID, ErrInvalidReviewDate)
	}
	outcomes, err := s.params.Evaluate(card.FSRS, when)
	if err != nil {
		return Preview{}, fmt.Errorf("failed to evaluate card %s: %w", card.ID, err)
	}
	return Preview{
		Card:           card,
		At:             when,
		Retrievability: s.params.Retrievability(card.FSRS, when),
		Outcomes:       outcomes,
	}, nil
}
