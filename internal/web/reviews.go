package web

import (
	"net/http"
	"time"

	"github.com/conorfennell/recall/internal/domain"
	"github.com/conorfennell/recall/internal/fsrs"
	"github.com/conorfennell/recall/internal/review"
)

type reviewRequest struct {
	Rating     string `json:"rating" validate:"required,oneof=Again Hard Good Easy"`
	ReviewDate string `json:"reviewDate" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

type previewResponse struct {
	Card           domain.Card                  `json:"card"`
	At             time.Time                    `json:"at"`
	Retrievability float64                      `json:"retrievability"`
	Outcomes       map[fsrs.Rating]fsrs.Outcome `json:"outcomes"`
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := s.decode(w, r, &req); err != nil {
		respondError(w, r, s.logger, err)
		return
	}
	rating, err := fsrs.ParseRating(req.Rating)
	if err != nil {
		respondError(w, r, s.logger, err)
		return
	}
	reviewReq := review.Request{Key: cardKey(r), Rating: rating}
	if req.ReviewDate != "" {
		at, err := time.Parse(time.RFC3339, req.ReviewDate)
		if err != nil {
			respondError(w, r, s.logger, &apiError{http.StatusBadRequest, "InvalidReviewDate", err.Error()})
			return
		}
		reviewReq.ReviewedAt = &at
	}

	res, err := s.reviews.Apply(r.Context(), reviewReq)
	if err != nil {
		respondError(w, r, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// handlePreview shows what each rating would do to the card, without
// changing it. The optional "at" query parameter sets the review time.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var at *time.Time
	if raw := r.URL.Query().Get("at"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, r, s.logger, &apiError{http.StatusBadRequest, "InvalidReviewDate", err.Error()})
			return
		}
		at = &t
	}

	p, err := s.reviews.Preview(r.Context(), cardKey(r), at)
	if err != nil {
		respondError(w, r, s.logger, err)
		return
	}
	outcomes := make(map[fsrs.Rating]fsrs.Outcome, len(fsrs.Ratings))
	for _, rating := range fsrs.Ratings {
		outcomes[rating] = p.Outcomes.For(rating)
	}
	respondJSON(w, http.StatusOK, previewResponse{
		Card:           p.Card,
		At:             p.At,
		Retrievability: p.Retrievability,
		Outcomes:       outcomes,
	})
}

func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := s.db.ListReviewLogs(r.Context(), cardKey(r))
	if err != nil {
		respondError(w, r, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, listResponse[domain.ReviewLog]{Items: logs})
}
