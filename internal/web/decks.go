package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/conorfennell/recall/internal/domain"
)

type createDeckRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

type updateDeckRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

func (s *Server) handleListDecks(w http.ResponseWriter, r *http.Request) {
	decks, err := s.db.ListDecks(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		respondError(w, r, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, listResponse[domain.Deck]{Items: decks})
}

func (s *Server) handleCreateDeck(w http.ResponseWriter, r *http.Request) {
	var req createDeckRequest
	if err := s.decode(w, r, &req); err != nil {
		respondError(w, r, s.logger, err)
		return
	}

	ctx := r.Context()
	userID := chi.URLParam(r, "userID")
	now := s.now().UTC()
	if err := s.db.EnsureUser(ctx, userID, now); err != nil {
		respondError(w, r, s.logger, err)
		return
	}

	deck := domain.Deck{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        req.Name,
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.InsertDeck(ctx, &deck); err != nil {
		respondError(w, r, s.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, deck)
}

func (s *Server) handleGetDeck(w http.ResponseWriter, r *http.Request) {
	deck, err := s.db.FindDeck(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "deckID"))
	if err != nil {
		respondError(w, r, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, deck)
}

func (s *Server) handleUpdateDeck(w http.ResponseWriter, r *http.Request) {
	var req updateDeckRequest
	if err := s.decode(w, r, &req); err != nil {
		respondError(w, r, s.logger, err)
		return
	}
	deck, err := s.db.UpdateDeck(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "deckID"), req.Name, req.Description, s.now())
	if err != nil {
		respondError(w, r, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, deck)
}

func (s *Server) handleDeleteDeck(w http.ResponseWriter, r *http.Request) {
	if err := s.db.DeleteDeck(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "deckID")); err != nil {
		respondError(w, r, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
