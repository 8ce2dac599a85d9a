package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/conorfennell/recall/internal/domain"
	"github.com/conorfennell/recall/internal/fsrs"
	"github.com/conorfennell/recall/internal/review"
	"github.com/conorfennell/recall/internal/sync"
)

const maxBodyBytes = 1 << 20

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// apiError is an error with a fixed status and code.
type apiError struct {
	status  int
	code    string
	message string
}

func (e *apiError) Error() string { return e.message }

type listResponse[T any] struct {
	Items []T `json:"items"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// respondError maps err onto a status and error code. Errors the client
// cannot act on are logged and reported without detail.
func respondError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, code := classify(err)
	message := err.Error()

	var apiErr *apiError
	if errors.As(err, &apiErr) {
		status, code, message = apiErr.status, apiErr.code, apiErr.message
	}
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		code, message = "Internal Server Error", "An unexpected error occurred."
	}
	respondJSON(w, status, errorResponse{Error: code, Message: message})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrCardNotFound):
		return http.StatusNotFound, "CardNotFound"
	case errors.Is(err, domain.ErrDeckNotFound):
		return http.StatusNotFound, "DeckNotFound"
	case errors.Is(err, domain.ErrSourceNotFound):
		return http.StatusNotFound, "SourceNotFound"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NotFound"
	case errors.Is(err, fsrs.ErrInvalidRating):
		return http.StatusBadRequest, "InvalidRating"
	case errors.Is(err, review.ErrInvalidReviewDate):
		return http.StatusBadRequest, "InvalidReviewDate"
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "ValidationFailed"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "Conflict"
	case errors.Is(err, sync.ErrInProgress):
		return http.StatusConflict, "SyncInProgress"
	default:
		return http.StatusInternalServerError, ""
	}
}

// decode reads a JSON body into dst and validates it.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		return &apiError{http.StatusBadRequest, "ValidationFailed", fmt.Sprintf("malformed request body: %v", err)}
	}
	return s.check(dst)
}

// check runs the struct validation tags of dst. A failing field with a
// dedicated error code reports that code.
func (s *Server) check(dst any) error {
	err := s.validate.Struct(dst)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	for _, fe := range verrs {
		switch fe.Field() {
		case "Rating":
			return &apiError{http.StatusBadRequest, "InvalidRating", fmt.Sprintf("rating must be one of Again, Hard, Good, Easy, got %q", fe.Value())}
		case "ReviewDate":
			return &apiError{http.StatusBadRequest, "InvalidReviewDate", fmt.Sprintf("reviewDate must be an RFC 3339 timestamp, got %q", fe.Value())}
		}
	}
	return &apiError{http.StatusBadRequest, "ValidationFailed", verrs.Error()}
}
