package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/conorfennell/recall/internal/domain"
)

// EnsureUser records a user id if it is not known yet.
func (db *DB) EnsureUser(ctx context.Context, userID string, now time.Time) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO users (id, created_at) VALUES (?, ?)
		ON CONFLICT(id) DO NOTHING
	`, userID, now.UTC())
	if err != nil {
		return fmt.Errorf("failed to ensure user %s: %w", userID, classify(err))
	}
	return nil
}

// InsertDeck inserts a new deck. The owner must exist.
func (db *DB) InsertDeck(ctx context.Context, deck *domain.Deck) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO decks (id, user_id, name, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		deck.ID,
		deck.UserID,
		deck.Name,
		nullString(deck.Description),
		deck.CreatedAt.UTC(),
		deck.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert deck %s: %w", deck.ID, classify(err))
	}
	return nil
}

func scanDeck(row rowScanner) (domain.Deck, error) {
	var (
		d           domain.Deck
		description sql.NullString
	)
	if err := row.Scan(&d.ID, &d.UserID, &d.Name, &description, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return domain.Deck{}, err
	}
	d.Description = description.String
	d.CreatedAt = d.CreatedAt.UTC()
	d.UpdatedAt = d.UpdatedAt.UTC()
	return d, nil
}

// FindDeck retrieves one of a user's decks, or domain.ErrNotFound.
func (db *DB) FindDeck(ctx context.Context, userID, deckID string) (domain.Deck, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, user_id, name, description, created_at, updated_at
		FROM decks WHERE id = ? AND user_id = ?
	`, deckID, userID)

	deck, err := scanDeck(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Deck{}, fmt.Errorf("%w: %s", domain.ErrDeckNotFound, deckID)
	}
	if err != nil {
		return domain.Deck{}, fmt.Errorf("failed to find deck %s: %w", deckID, err)
	}
	return deck, nil
}

// ListDecks returns all decks of a user.
func (db *DB) ListDecks(ctx context.Context, userID string) ([]domain.Deck, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, user_id, name, description, created_at, updated_at
		FROM decks WHERE user_id = ?
		ORDER BY name, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list decks for user %s: %w", userID, err)
	}
	defer rows.Close()

	decks := []domain.Deck{}
	for rows.Next() {
		deck, err := scanDeck(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deck row: %w", err)
		}
		decks = append(decks, deck)
	}
	return decks, rows.Err()
}

// UpdateDeck changes the name and/or description of a deck. Nil fields keep
// their current value.
func (db *DB) UpdateDeck(ctx context.Context, userID, deckID string, name, description *string, now time.Time) (domain.Deck, error) {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE decks
		SET name = COALESCE(?, name),
		    description = COALESCE(?, description),
		    updated_at = ?
		WHERE id = ? AND user_id = ?
	`, optional(name), optional(description), now.UTC(), deckID, userID)
	if err != nil {
		return domain.Deck{}, fmt.Errorf("failed to update deck %s: %w", deckID, classify(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.Deck{}, fmt.Errorf("%w: %s", domain.ErrDeckNotFound, deckID)
	}
	return db.FindDeck(ctx, userID, deckID)
}

// DeleteDeck removes a deck together with its cards, sources and logs.
func (db *DB) DeleteDeck(ctx context.Context, userID, deckID string) error {
	res, err := db.conn.ExecContext(ctx, `
		DELETE FROM decks WHERE id = ? AND user_id = ?
	`, deckID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete deck %s: %w", deckID, classify(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrDeckNotFound, deckID)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func optional(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
