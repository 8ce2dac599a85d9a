package web

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/conorfennell/recall/internal/gitsource"
	"github.com/conorfennell/recall/internal/storage"
)

type createSourceRequest struct {
	Path   string `json:"path" validate:"required"`
	UserID string `json:"userId" validate:"required"`
	DeckID string `json:"deckId" validate:"required"`
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.db.GetAllSources(r.Context())
	if err != nil {
		respondError(w, r, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, listResponse[storage.Source]{Items: sources})
}

// handleCreateSource registers a markdown source for a deck. The next sync
// imports it.
func (s *Server) handleCreateSource(w http.ResponseWriter, r *http.Request) {
	var req createSourceRequest
	if err := s.decode(w, r, &req); err != nil {
		respondError(w, r, s.logger, err)
		return
	}

	ctx := r.Context()
	if _, err := s.db.FindDeck(ctx, req.UserID, req.DeckID); err != nil {
		respondError(w, r, s.logger, err)
		return
	}

	sourceType := storage.SourceLocal
	if gitsource.IsRepoURL(req.Path) {
		sourceType = storage.SourceGit
	}
	if _, err := s.db.InsertSource(ctx, req.Path, sourceType, req.DeckID); err != nil {
		respondError(w, r, s.logger, err)
		return
	}

	source, err := s.db.FindSourceByPath(ctx, req.Path)
	if err != nil {
		respondError(w, r, s.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, source)
}

func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "sourceID"), 10, 64)
	if err != nil {
		respondError(w, r, s.logger, &apiError{http.StatusBadRequest, "ValidationFailed", "Invalid source ID"})
		return
	}
	if err := s.db.DeleteSource(r.Context(), id); err != nil {
		respondError(w, r, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePostSync triggers a sync of all sources and waits for it.
func (s *Server) handlePostSync(w http.ResponseWriter, r *http.Request) {
	report, err := s.syncer.Run(r.Context())
	if err != nil {
		respondError(w, r, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}
