package web

import (
	"maps"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/conorfennell/recall/internal/domain"
)

const (
	defaultDueLimit = 50
	maxDueLimit     = 500
)

type cardDataRequest struct {
	Data map[string]any `json:"data" validate:"required"`
}

func cardKey(r *http.Request) domain.CardKey {
	return domain.CardKey{
		UserID: chi.URLParam(r, "userID"),
		DeckID: chi.URLParam(r, "deckID"),
		CardID: chi.URLParam(r, "cardID"),
	}
}

func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, deckID := chi.URLParam(r, "userID"), chi.URLParam(r, "deckID")
	if _, err := s.db.FindDeck(ctx, userID, deckID); err != nil {
		respondError(w, r, s.logger, err)
		return
	}
	cards, err := s.db.ListCards(ctx, userID, deckID)
	if err != nil {
		respondError(w, r, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, listResponse[domain.Card]{Items: cards})
}

func (s *Server) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	var req cardDataRequest
	if err := s.decode(w, r, &req); err != nil {
		respondError(w, r, s.logger, err)
		return
	}

	ctx := r.Context()
	userID, deckID := chi.URLParam(r, "userID"), chi.URLParam(r, "deckID")
	if _, err := s.db.FindDeck(ctx, userID, deckID); err != nil {
		respondError(w, r, s.logger, err)
		return
	}

	card := domain.NewCard(userID, deckID, req.Data, s.now().UTC())
	if err := s.db.InsertCard(ctx, &card); err != nil {
		respondError(w, r, s.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, card)
}

func (s *Server) handleGetCard(w http.ResponseWriter, r *http.Request) {
	card, err := s.db.FindCard(r.Context(), cardKey(r))
	if err != nil {
		respondError(w, r, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, card)
}

// handleReplaceCard swaps the card's data for the request's.
func (s *Server) handleReplaceCard(w http.ResponseWriter, r *http.Request) {
	var req cardDataRequest
	if err := s.decode(w, r, &req); err != nil {
		respondError(w, r, s.logger, err)
		return
	}
	card, err := s.db.UpdateCardData(r.Context(), cardKey(r), req.Data, s.now())
	if err != nil {
		respondError(w, r, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, card)
}

// handlePatchCard merges the request's top-level data keys into the card's.
func (s *Server) handlePatchCard(w http.ResponseWriter, r *http.Request) {
	var req cardDataRequest
	if err := s.decode(w, r, &req); err != nil {
		respondError(w, r, s.logger, err)
		return
	}

	ctx := r.Context()
	key := cardKey(r)
	card, err := s.db.FindCard(ctx, key)
	if err != nil {
		respondError(w, r, s.logger, err)
		return
	}
	data := maps.Clone(card.Data)
	if data == nil {
		data = map[string]any{}
	}
	maps.Copy(data, req.Data)

	card, err = s.db.UpdateCardData(ctx, key, data, s.now())
	if err != nil {
		respondError(w, r, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, card)
}

func (s *Server) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	if err := s.db.DeleteCard(r.Context(), cardKey(r)); err != nil {
		respondError(w, r, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListDue lists a user's cards that are due now, earliest first.
func (s *Server) handleListDue(w http.ResponseWriter, r *http.Request) {
	limit := defaultDueLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxDueLimit {
			respondError(w, r, s.logger, &apiError{http.StatusBadRequest, "ValidationFailed", "limit must be between 1 and 500"})
			return
		}
		limit = n
	}

	cards, err := s.db.GetDueCards(r.Context(), chi.URLParam(r, "userID"), s.now(), limit)
	if err != nil {
		respondError(w, r, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, listResponse[domain.Card]{Items: cards})
}
