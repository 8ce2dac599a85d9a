package storage

const schema = `
-- Users are external identities; only the id is kept.
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS decks (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    description TEXT,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_decks_user_name ON decks(user_id, name);

-- The 'sources' table tracks markdown card sources, either a local directory or a git repository.
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE,
    type TEXT NOT NULL DEFAULT 'local',
    deck_id TEXT NOT NULL REFERENCES decks(id) ON DELETE CASCADE,
    last_scanned DATETIME
);

-- The 'cards' table stores each card with its current scheduling snapshot.
-- version is bumped on every write and guards the review read-modify-write.
CREATE TABLE IF NOT EXISTS cards (
    id TEXT PRIMARY KEY,
    deck_id TEXT NOT NULL REFERENCES decks(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    data TEXT NOT NULL,
    hash TEXT,
    source_id INTEGER REFERENCES sources(id) ON DELETE CASCADE,

    due DATETIME NOT NULL,
    stability REAL NOT NULL,
    difficulty REAL NOT NULL,
    elapsed_days INTEGER NOT NULL,
    scheduled_days INTEGER NOT NULL,
    learning_steps INTEGER NOT NULL,
    reps INTEGER NOT NULL,
    lapses INTEGER NOT NULL,
    state TEXT NOT NULL CHECK (state IN ('New', 'Learning', 'Review', 'Relearning')),
    last_review DATETIME,

    version INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cards_due ON cards(user_id, due);
CREATE INDEX IF NOT EXISTS idx_cards_deck_state ON cards(deck_id, state);
CREATE UNIQUE INDEX IF NOT EXISTS idx_cards_deck_hash ON cards(deck_id, hash) WHERE hash IS NOT NULL;

-- Review logs are append-only. The scheduling columns hold the card's values
-- before the review; scheduled_days is the interval the review produced.
CREATE TABLE IF NOT EXISTS review_logs (
    id TEXT PRIMARY KEY,
    card_id TEXT NOT NULL REFERENCES cards(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    rating TEXT NOT NULL CHECK (rating IN ('Again', 'Hard', 'Good', 'Easy')),
    state TEXT NOT NULL CHECK (state IN ('New', 'Learning', 'Review', 'Relearning')),
    due DATETIME NOT NULL,
    stability REAL NOT NULL,
    difficulty REAL NOT NULL,
    elapsed_days INTEGER NOT NULL,
    last_elapsed_days INTEGER NOT NULL,
    scheduled_days INTEGER NOT NULL,
    learning_steps INTEGER NOT NULL,
    review DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_review_card_date ON review_logs(card_id, review);
CREATE INDEX IF NOT EXISTS idx_review_user_date ON review_logs(user_id, review);

CREATE TRIGGER IF NOT EXISTS review_logs_append_only
BEFORE UPDATE ON review_logs
BEGIN
    SELECT RAISE(ABORT, 'review_logs are append-only');
END;
`
