package web

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/recall/internal/fsrs"
	"github.com/conorfennell/recall/internal/review"
	"github.com/conorfennell/recall/internal/storage"
	"github.com/conorfennell/recall/internal/sync"
)

const testKey = "secret"

var t0 = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "recall.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := func() time.Time { return t0 }
	reviews := review.NewService(db, fsrs.DefaultParams(), review.WithLogger(logger), review.WithClock(clock))
	srv := NewServer(db, reviews, sync.New(db, t.TempDir(), logger), testKey, logger)
	srv.now = clock
	return srv
}

func do(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-API-Key", testKey)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	assert.Equal(t, status, rec.Code, rec.Body.String())
	assert.Equal(t, code, decodeBody(t, rec)["error"])
}

func createDeck(t *testing.T, srv *Server, userID, name string) string {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/users/"+userID+"/decks", map[string]any{"name": name, "description": "basics"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody(t, rec)["id"].(string)
}

func createCard(t *testing.T, srv *Server, userID, deckID string) string {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/users/"+userID+"/decks/"+deckID+"/cards",
		map[string]any{"data": map[string]any{"question": "What is a slice?", "answer": "A view into an array."}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody(t, rec)["id"].(string)
}

func TestHealthzAndAuth(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/u1/decks", nil))
	assertError(t, rec, http.StatusUnauthorized, "Unauthorized")
	assert.Equal(t, "Missing API key", decodeBody(t, rec)["message"])

	req := httptest.NewRequest(http.MethodGet, "/users/u1/decks", nil)
	req.Header.Set("X-API-Key", "wrong")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assertError(t, rec, http.StatusUnauthorized, "Unauthorized")
	assert.Equal(t, "Invalid API key", decodeBody(t, rec)["message"])
}

func TestDecks(t *testing.T) {
	srv := newTestServer(t)
	deckID := createDeck(t, srv, "u1", "Go")

	t.Run("validation", func(t *testing.T) {
		rec := do(t, srv, http.MethodPost, "/users/u1/decks", map[string]any{"name": ""})
		assertError(t, rec, http.StatusBadRequest, "ValidationFailed")

		req := httptest.NewRequest(http.MethodPost, "/users/u1/decks", bytes.NewBufferString("{not json"))
		req.Header.Set("X-API-Key", testKey)
		rec = httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		assertError(t, rec, http.StatusBadRequest, "ValidationFailed")
	})

	t.Run("list is scoped to the user", func(t *testing.T) {
		createDeck(t, srv, "u2", "Rust")

		rec := do(t, srv, http.MethodGet, "/users/u1/decks", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		items := decodeBody(t, rec)["items"].([]any)
		require.Len(t, items, 1)
		assert.Equal(t, deckID, items[0].(map[string]any)["id"])

		rec = do(t, srv, http.MethodGet, "/users/u2/decks/"+deckID, nil)
		assertError(t, rec, http.StatusNotFound, "DeckNotFound")
	})

	t.Run("update keeps omitted fields", func(t *testing.T) {
		rec := do(t, srv, http.MethodPut, "/users/u1/decks/"+deckID, map[string]any{"name": "Golang"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		body := decodeBody(t, rec)
		assert.Equal(t, "Golang", body["name"])
		assert.Equal(t, "basics", body["description"])
	})

	t.Run("delete", func(t *testing.T) {
		rec := do(t, srv, http.MethodDelete, "/users/u1/decks/"+deckID, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = do(t, srv, http.MethodGet, "/users/u1/decks/"+deckID, nil)
		assertError(t, rec, http.StatusNotFound, "DeckNotFound")

		rec = do(t, srv, http.MethodDelete, "/users/u1/decks/"+deckID, nil)
		assertError(t, rec, http.StatusNotFound, "DeckNotFound")
	})
}

func TestCards(t *testing.T) {
	srv := newTestServer(t)
	deckID := createDeck(t, srv, "u1", "Go")
	cardID := createCard(t, srv, "u1", deckID)
	cardPath := "/users/u1/decks/" + deckID + "/cards/" + cardID

	t.Run("new card", func(t *testing.T) {
		rec := do(t, srv, http.MethodGet, cardPath, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		snapshot := decodeBody(t, rec)["fsrs"].(map[string]any)
		assert.Equal(t, "New", snapshot["state"])
		assert.EqualValues(t, 0, snapshot["reps"])
		assert.NotContains(t, snapshot, "lastReview")
	})

	t.Run("missing deck", func(t *testing.T) {
		rec := do(t, srv, http.MethodPost, "/users/u1/decks/nope/cards", map[string]any{"data": map[string]any{"q": 1}})
		assertError(t, rec, http.StatusNotFound, "DeckNotFound")

		rec = do(t, srv, http.MethodGet, "/users/u1/decks/nope/cards", nil)
		assertError(t, rec, http.StatusNotFound, "DeckNotFound")
	})

	t.Run("data is required", func(t *testing.T) {
		rec := do(t, srv, http.MethodPost, "/users/u1/decks/"+deckID+"/cards", map[string]any{})
		assertError(t, rec, http.StatusBadRequest, "ValidationFailed")
	})

	t.Run("patch merges and put replaces", func(t *testing.T) {
		rec := do(t, srv, http.MethodPatch, cardPath, map[string]any{"data": map[string]any{"hint": "len and cap"}})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		data := decodeBody(t, rec)["data"].(map[string]any)
		assert.Equal(t, "What is a slice?", data["question"])
		assert.Equal(t, "len and cap", data["hint"])

		rec = do(t, srv, http.MethodPut, cardPath, map[string]any{"data": map[string]any{"front": "slice"}})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, map[string]any{"front": "slice"}, decodeBody(t, rec)["data"])
	})

	t.Run("list", func(t *testing.T) {
		rec := do(t, srv, http.MethodGet, "/users/u1/decks/"+deckID+"/cards", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decodeBody(t, rec)["items"], 1)
	})

	t.Run("delete", func(t *testing.T) {
		otherID := createCard(t, srv, "u1", deckID)
		otherPath := "/users/u1/decks/" + deckID + "/cards/" + otherID

		rec := do(t, srv, http.MethodDelete, otherPath, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = do(t, srv, http.MethodGet, otherPath, nil)
		assertError(t, rec, http.StatusNotFound, "CardNotFound")
	})
}

func TestDue(t *testing.T) {
	srv := newTestServer(t)
	deckID := createDeck(t, srv, "u1", "Go")
	first := createCard(t, srv, "u1", deckID)
	createCard(t, srv, "u1", deckID)

	rec := do(t, srv, http.MethodGet, "/users/u1/due", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["items"], 2)

	rec = do(t, srv, http.MethodGet, "/users/u1/due?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["items"], 1)

	// A reviewed card moves into the future.
	rec = do(t, srv, http.MethodPost, "/users/u1/decks/"+deckID+"/cards/"+first+"/review", map[string]any{"rating": "Easy"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = do(t, srv, http.MethodGet, "/users/u1/due", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["items"], 1)

	for _, limit := range []string{"0", "501", "ten"} {
		rec = do(t, srv, http.MethodGet, "/users/u1/due?limit="+limit, nil)
		assertError(t, rec, http.StatusBadRequest, "ValidationFailed")
	}

	rec = do(t, srv, http.MethodGet, "/users/u2/due", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody(t, rec)["items"])
}

func TestReview(t *testing.T) {
	srv := newTestServer(t)
	deckID := createDeck(t, srv, "u1", "Go")
	cardID := createCard(t, srv, "u1", deckID)
	cardPath := "/users/u1/decks/" + deckID + "/cards/" + cardID

	rec := do(t, srv, http.MethodPost, cardPath+"/review", map[string]any{"rating": "Good"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	card := body["card"].(map[string]any)
	snapshot := card["fsrs"].(map[string]any)
	assert.Equal(t, "Learning", snapshot["state"])
	assert.EqualValues(t, 1, snapshot["reps"])
	assert.Equal(t, t0.Format(time.RFC3339), snapshot["lastReview"])
	log := body["log"].(map[string]any)
	assert.Equal(t, "Good", log["rating"])
	assert.Equal(t, "New", log["state"])

	t.Run("invalid rating", func(t *testing.T) {
		for _, rating := range []any{"Perfect", "good", ""} {
			rec := do(t, srv, http.MethodPost, cardPath+"/review", map[string]any{"rating": rating})
			assertError(t, rec, http.StatusBadRequest, "InvalidRating")
		}
	})

	t.Run("invalid review date", func(t *testing.T) {
		rec := do(t, srv, http.MethodPost, cardPath+"/review", map[string]any{"rating": "Good", "reviewDate": "yesterday"})
		assertError(t, rec, http.StatusBadRequest, "InvalidReviewDate")

		rec = do(t, srv, http.MethodPost, cardPath+"/review", map[string]any{"rating": "Good", "reviewDate": "2020-01-01T00:00:00Z"})
		assertError(t, rec, http.StatusBadRequest, "InvalidReviewDate")
	})

	t.Run("explicit review date", func(t *testing.T) {
		at := t0.Add(10 * time.Minute)
		rec := do(t, srv, http.MethodPost, cardPath+"/review", map[string]any{"rating": "Good", "reviewDate": at.Format(time.RFC3339)})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		snapshot := decodeBody(t, rec)["card"].(map[string]any)["fsrs"].(map[string]any)
		assert.Equal(t, "Review", snapshot["state"])
		assert.Equal(t, at.Format(time.RFC3339), snapshot["lastReview"])
	})

	t.Run("logs", func(t *testing.T) {
		rec := do(t, srv, http.MethodGet, cardPath+"/logs", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		items := decodeBody(t, rec)["items"].([]any)
		require.Len(t, items, 2)
		assert.Equal(t, "New", items[0].(map[string]any)["state"])
		assert.Equal(t, "Learning", items[1].(map[string]any)["state"])
	})

	t.Run("missing card", func(t *testing.T) {
		rec := do(t, srv, http.MethodPost, "/users/u1/decks/"+deckID+"/cards/nope/review", map[string]any{"rating": "Good"})
		assertError(t, rec, http.StatusNotFound, "CardNotFound")

		rec = do(t, srv, http.MethodGet, "/users/u2/decks/"+deckID+"/cards/"+cardID+"/logs", nil)
		assertError(t, rec, http.StatusNotFound, "CardNotFound")
	})
}

func TestPreview(t *testing.T) {
	srv := newTestServer(t)
	deckID := createDeck(t, srv, "u1", "Go")
	cardID := createCard(t, srv, "u1", deckID)
	cardPath := "/users/u1/decks/" + deckID + "/cards/" + cardID

	rec := do(t, srv, http.MethodGet, cardPath+"/preview", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	outcomes := body["outcomes"].(map[string]any)
	for _, rating := range []string{"Again", "Hard", "Good", "Easy"} {
		require.Contains(t, outcomes, rating)
	}
	easy := outcomes["Easy"].(map[string]any)["snapshot"].(map[string]any)
	assert.Equal(t, "Review", easy["state"])

	rec = do(t, srv, http.MethodGet, cardPath+"/preview?at=soon", nil)
	assertError(t, rec, http.StatusBadRequest, "InvalidReviewDate")

	// Previewing leaves the card untouched.
	rec = do(t, srv, http.MethodGet, cardPath, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "New", decodeBody(t, rec)["fsrs"].(map[string]any)["state"])
}

func TestSourcesAndSync(t *testing.T) {
	srv := newTestServer(t)
	deckID := createDeck(t, srv, "u1", "Go")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.md"), []byte("Q: What is a map?\nA: A hash table.\n"), 0o644))

	rec := do(t, srv, http.MethodPost, "/sources", map[string]any{"path": dir, "userId": "u1", "deckId": deckID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	source := decodeBody(t, rec)
	assert.Equal(t, storage.SourceLocal, source["type"])
	sourceID := int64(source["id"].(float64))

	rec = do(t, srv, http.MethodPost, "/sources", map[string]any{"path": dir, "userId": "u2", "deckId": deckID})
	assertError(t, rec, http.StatusNotFound, "DeckNotFound")

	rec = do(t, srv, http.MethodPost, "/sources", map[string]any{"path": dir})
	assertError(t, rec, http.StatusBadRequest, "ValidationFailed")

	rec = do(t, srv, http.MethodPost, "/sync", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decodeBody(t, rec)
	assert.EqualValues(t, 1, report["sources"])
	assert.EqualValues(t, 1, report["added"])

	rec = do(t, srv, http.MethodGet, "/users/u1/decks/"+deckID+"/cards", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	items := decodeBody(t, rec)["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "What is a map?", items[0].(map[string]any)["data"].(map[string]any)["question"])

	rec = do(t, srv, http.MethodGet, "/sources", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["items"], 1)

	rec = do(t, srv, http.MethodDelete, "/sources/abc", nil)
	assertError(t, rec, http.StatusBadRequest, "ValidationFailed")

	path := "/sources/" + strconv.FormatInt(sourceID, 10)
	rec = do(t, srv, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, srv, http.MethodDelete, path, nil)
	assertError(t, rec, http.StatusNotFound, "SourceNotFound")
}
