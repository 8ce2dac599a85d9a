package storage

import (
	"context"
	"fmt"

	"github.com/conorfennell/recall/internal/domain"
	"github.com/conorfennell/recall/internal/fsrs"
)

// ReviewFunc computes the next snapshot of a card and the log entry that
// records the transition. It runs inside the review transaction and must not
// touch the database.
type ReviewFunc func(card domain.Card) (fsrs.Snapshot, domain.ReviewLog, error)

// ReviewCard loads a card, applies fn and persists the new snapshot together
// with the review log in a single transaction. Either both rows are written or
// neither is.
//
// The card row is only updated if its version is unchanged since it was read;
// a concurrent writer, or a lock that could not be taken in time, surfaces as
// domain.ErrConflict.
func (db *DB) ReviewCard(ctx context.Context, key domain.CardKey, fn ReviewFunc) (domain.Card, domain.ReviewLog, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return domain.Card{}, domain.ReviewLog{}, fmt.Errorf("failed to begin review of card %s: %w", key.CardID, classify(err))
	}
	defer tx.Rollback()

	card, err := findCard(ctx, tx, key)
	if err != nil {
		return domain.Card{}, domain.ReviewLog{}, classify(err)
	}

	next, log, err := fn(card)
	if err != nil {
		return domain.Card{}, domain.ReviewLog{}, err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE cards
		SET due = ?, stability = ?, difficulty = ?, elapsed_days = ?, scheduled_days = ?,
		    learning_steps = ?, reps = ?, lapses = ?, state = ?, last_review = ?,
		    version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`,
		next.Due.UTC(),
		next.Stability,
		next.Difficulty,
		next.ElapsedDays,
		next.ScheduledDays,
		next.LearningSteps,
		next.Reps,
		next.Lapses,
		next.State.String(),
		nullTime(next.LastReview),
		log.Review.UTC(),
		card.ID,
		card.Version,
	)
	if err != nil {
		return domain.Card{}, domain.ReviewLog{}, fmt.Errorf("failed to update card %s: %w", card.ID, classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.Card{}, domain.ReviewLog{}, fmt.Errorf("failed to update card %s: %w", card.ID, err)
	}
	if n != 1 {
		return domain.Card{}, domain.ReviewLog{}, fmt.Errorf("card %s changed during review: %w", card.ID, domain.ErrConflict)
	}

	if err := insertReviewLog(ctx, tx, log); err != nil {
		return domain.Card{}, domain.ReviewLog{}, err
	}

	if err := tx.Commit(); err != nil {
		return domain.Card{}, domain.ReviewLog{}, fmt.Errorf("failed to commit review of card %s: %w", card.ID, classify(err))
	}

	card.FSRS = next
	card.Version++
	card.UpdatedAt = log.Review.UTC()
	return card, log, nil
}

func insertReviewLog(ctx context.Context, q querier, l domain.ReviewLog) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO review_logs (
			id, card_id, user_id, rating, state, due, stability, difficulty,
			elapsed_days, last_elapsed_days, scheduled_days, learning_steps, review
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		l.ID,
		l.CardID,
		l.UserID,
		l.Rating.String(),
		l.State.String(),
		l.Due.UTC(),
		l.Stability,
		l.Difficulty,
		l.ElapsedDays,
		l.LastElapsedDays,
		l.ScheduledDays,
		l.LearningSteps,
		l.Review.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert review log for card %s: %w", l.CardID, classify(err))
	}
	return nil
}

// ListReviewLogs returns the review history of a card, oldest first.
func (db *DB) ListReviewLogs(ctx context.Context, key domain.CardKey) ([]domain.ReviewLog, error) {
	if _, err := db.FindCard(ctx, key); err != nil {
		return nil, err
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, card_id, user_id, rating, state, due, stability, difficulty,
		       elapsed_days, last_elapsed_days, scheduled_days, learning_steps, review
		FROM review_logs WHERE card_id = ?
		ORDER BY review, rowid
	`, key.CardID)
	if err != nil {
		return nil, fmt.Errorf("failed to list review logs of card %s: %w", key.CardID, err)
	}
	defer rows.Close()

	logs := []domain.ReviewLog{}
	for rows.Next() {
		var (
			l             domain.ReviewLog
			rating, state string
		)
		err := rows.Scan(
			&l.ID,
			&l.CardID,
			&l.UserID,
			&rating,
			&state,
			&l.Due,
			&l.Stability,
			&l.Difficulty,
			&l.ElapsedDays,
			&l.LastElapsedDays,
			&l.ScheduledDays,
			&l.LearningSteps,
			&l.Review,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review log row: %w", err)
		}
		if l.Rating, err = fsrs.ParseRating(rating); err != nil {
			return nil, fmt.Errorf("review log %s: %w", l.ID, err)
		}
		if l.State, err = fsrs.ParseState(state); err != nil {
			return nil, fmt.Errorf("review log %s: %w", l.ID, err)
		}
		l.Due = l.Due.UTC()
		l.Review = l.Review.UTC()
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
