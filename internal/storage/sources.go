package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/conorfennell/recall/internal/domain"
)

// Source types.
const (
	SourceLocal = "local"
	SourceGit   = "git"
)

// Source is a directory or git repository of markdown notes imported into a deck.
type Source struct {
	ID          int64      `json:"id"`
	Path        string     `json:"path"`
	Type        string     `json:"type"`
	DeckID      string     `json:"deckId"`
	UserID      string     `json:"userId"` // owner of the deck
	LastScanned *time.Time `json:"lastScanned,omitempty"`
}

// InsertSource adds a new source bound to a deck and returns its ID.
func (db *DB) InsertSource(ctx context.Context, path, sourceType, deckID string) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO sources (path, type, deck_id) VALUES (?, ?, ?)
	`, path, sourceType, deckID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert source %s: %w", path, classify(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for source: %w", err)
	}
	return id, nil
}

const sourceFrom = `s.id, s.path, s.type, s.deck_id, d.user_id, s.last_scanned
	FROM sources s JOIN decks d ON d.id = s.deck_id`

func scanSource(row rowScanner) (Source, error) {
	var (
		s           Source
		lastScanned sql.NullTime
	)
	if err := row.Scan(&s.ID, &s.Path, &s.Type, &s.DeckID, &s.UserID, &lastScanned); err != nil {
		return Source{}, err
	}
	s.LastScanned = timePtr(lastScanned)
	return s, nil
}

// FindSourceByPath retrieves a source by its path. It returns nil, nil if
// no source is registered for path.
func (db *DB) FindSourceByPath(ctx context.Context, path string) (*Source, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT `+sourceFrom+` WHERE s.path = ?
	`, path)
	s, err := scanSource(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find source by path %s: %w", path, err)
	}
	return &s, nil
}

// GetAllSources retrieves all sources from the database.
func (db *DB) GetAllSources(ctx context.Context) ([]Source, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+sourceFrom+` ORDER BY s.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()

	sources := []Source{}
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

// UpdateSourceLastScanned stamps the time a source was last reconciled.
func (db *DB) UpdateSourceLastScanned(ctx context.Context, id int64, at time.Time) error {
	_, err := db.conn.ExecContext(ctx, `
		UPDATE sources SET last_scanned = ? WHERE id = ?
	`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update last_scanned for source %d: %w", id, classify(err))
	}
	return nil
}

// DeleteSource removes a source and the cards imported from it.
func (db *DB) DeleteSource(ctx context.Context, id int64) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM sources WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete source %d: %w", id, classify(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %d", domain.ErrSourceNotFound, id)
	}
	return nil
}
