package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/conorfennell/recall/internal/domain"
	"github.com/conorfennell/recall/internal/fsrs"
)

const cardColumns = `id, deck_id, user_id, data, hash, source_id,
	due, stability, difficulty, elapsed_days, scheduled_days, learning_steps, reps, lapses, state, last_review,
	version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (domain.Card, error) {
	var (
		c          domain.Card
		data       string
		hash       sql.NullString
		sourceID   sql.NullInt64
		state      string
		lastReview sql.NullTime
	)
	err := row.Scan(
		&c.ID,
		&c.DeckID,
		&c.UserID,
		&data,
		&hash,
		&sourceID,
		&c.FSRS.Due,
		&c.FSRS.Stability,
		&c.FSRS.Difficulty,
		&c.FSRS.ElapsedDays,
		&c.FSRS.ScheduledDays,
		&c.FSRS.LearningSteps,
		&c.FSRS.Reps,
		&c.FSRS.Lapses,
		&state,
		&lastReview,
		&c.Version,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return domain.Card{}, err
	}

	if err := json.Unmarshal([]byte(data), &c.Data); err != nil {
		return domain.Card{}, fmt.Errorf("failed to decode data of card %s: %w", c.ID, err)
	}
	if c.FSRS.State, err = fsrs.ParseState(state); err != nil {
		return domain.Card{}, fmt.Errorf("card %s: %w", c.ID, err)
	}
	c.Hash = hash.String
	if sourceID.Valid {
		c.SourceID = &sourceID.Int64
	}
	c.FSRS.LastReview = timePtr(lastReview)
	c.FSRS.Due = c.FSRS.Due.UTC()
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, nil
}

// InsertCard inserts a new card with its initial scheduling snapshot.
func (db *DB) InsertCard(ctx context.Context, card *domain.Card) error {
	data, err := json.Marshal(card.Data)
	if err != nil {
		return fmt.Errorf("failed to encode data of card %s: %w", card.ID, err)
	}
	var hash sql.NullString
	if card.Hash != "" {
		hash = sql.NullString{String: card.Hash, Valid: true}
	}
	var sourceID sql.NullInt64
	if card.SourceID != nil {
		sourceID = sql.NullInt64{Int64: *card.SourceID, Valid: true}
	}

	s := card.FSRS
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO cards (`+cardColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		card.ID,
		card.DeckID,
		card.UserID,
		string(data),
		hash,
		sourceID,
		s.Due.UTC(),
		s.Stability,
		s.Difficulty,
		s.ElapsedDays,
		s.ScheduledDays,
		s.LearningSteps,
		s.Reps,
		s.Lapses,
		s.State.String(),
		nullTime(s.LastReview),
		card.Version,
		card.CreatedAt.UTC(),
		card.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert card %s: %w", card.ID, classify(err))
	}
	return nil
}

func findCard(ctx context.Context, q querier, key domain.CardKey) (domain.Card, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+cardColumns+`
		FROM cards WHERE id = ? AND deck_id = ? AND user_id = ?
	`, key.CardID, key.DeckID, key.UserID)

	card, err := scanCard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Card{}, fmt.Errorf("%w: %s", domain.ErrCardNotFound, key.CardID)
	}
	if err != nil {
		return domain.Card{}, fmt.Errorf("failed to find card %s: %w", key.CardID, err)
	}
	return card, nil
}

// FindCard retrieves a card. It returns domain.ErrNotFound if the card does
// not exist in the given user's deck.
func (db *DB) FindCard(ctx context.Context, key domain.CardKey) (domain.Card, error) {
	return findCard(ctx, db.conn, key)
}

func (db *DB) queryCards(ctx context.Context, query string, args ...any) ([]domain.Card, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cards := []domain.Card{}
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}

// ListCards returns the cards of a deck in creation order.
func (db *DB) ListCards(ctx context.Context, userID, deckID string) ([]domain.Card, error) {
	cards, err := db.queryCards(ctx, `
		SELECT `+cardColumns+`
		FROM cards WHERE deck_id = ? AND user_id = ?
		ORDER BY created_at, id
	`, deckID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards of deck %s: %w", deckID, err)
	}
	return cards, nil
}

// GetDueCards returns a user's cards due at or before now, earliest first.
func (db *DB) GetDueCards(ctx context.Context, userID string, now time.Time, limit int) ([]domain.Card, error) {
	cards, err := db.queryCards(ctx, `
		SELECT `+cardColumns+`
		FROM cards WHERE user_id = ? AND due <= ?
		ORDER BY due, id
		LIMIT ?
	`, userID, now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get due cards for user %s: %w", userID, err)
	}
	return cards, nil
}

// UpdateCardData replaces the caller-supplied data of a card. The scheduling
// snapshot is left alone.
func (db *DB) UpdateCardData(ctx context.Context, key domain.CardKey, data map[string]any, now time.Time) (domain.Card, error) {
	encoded, err := json.Marshal(data)
	if err != nil {
		return domain.Card{}, fmt.Errorf("failed to encode data of card %s: %w", key.CardID, err)
	}
	res, err := db.conn.ExecContext(ctx, `
		UPDATE cards
		SET data = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND deck_id = ? AND user_id = ?
	`, string(encoded), now.UTC(), key.CardID, key.DeckID, key.UserID)
	if err != nil {
		return domain.Card{}, fmt.Errorf("failed to update card %s: %w", key.CardID, classify(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.Card{}, fmt.Errorf("%w: %s", domain.ErrCardNotFound, key.CardID)
	}
	return db.FindCard(ctx, key)
}

// DeleteCard removes a card and, by cascade, its review logs.
func (db *DB) DeleteCard(ctx context.Context, key domain.CardKey) error {
	res, err := db.conn.ExecContext(ctx, `
		DELETE FROM cards
		WHERE id = ? AND deck_id = ? AND user_id = ?
	`, key.CardID, key.DeckID, key.UserID)
	if err != nil {
		return fmt.Errorf("failed to delete card %s: %w", key.CardID, classify(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrCardNotFound, key.CardID)
	}
	return nil
}

// FindCardByHash retrieves a deck's card by its content hash.
func (db *DB) FindCardByHash(ctx context.Context, deckID, hash string) (*domain.Card, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT `+cardColumns+`
		FROM cards WHERE deck_id = ? AND hash = ?
	`, deckID, hash)

	card, err := scanCard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Card not found
		}
		return nil, fmt.Errorf("failed to find card by hash %s: %w", hash, err)
	}
	return &card, nil
}

// GetCardsBySourceID retrieves all cards imported from a specific source.
func (db *DB) GetCardsBySourceID(ctx context.Context, sourceID int64) ([]domain.Card, error) {
	cards, err := db.queryCards(ctx, `
		SELECT `+cardColumns+`
		FROM cards WHERE source_id = ?
	`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards for source ID %d: %w", sourceID, err)
	}
	return cards, nil
}

// DeleteCardByID removes a card by id regardless of owner.
func (db *DB) DeleteCardByID(ctx context.Context, id string) error {
	_, err := db.conn.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete card %s: %w", id, classify(err))
	}
	return nil
}
