package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/onnwee/highlights/internal/auth"
	"github.com/onnwee/highlights/internal/interest"
)

// InterestAggregator recomputes a user's interest vector.
type InterestAggregator interface {
	Aggregate(ctx context.Context, caller auth.Caller, userID string) (interest.Result, error)
}

// InterestHandlers holds dependencies for the interest endpoint.
type InterestHandlers struct {
	aggregator InterestAggregator
	logger     *slog.Logger
}

// NewInterestHandlers creates a new InterestHandlers instance.
func NewInterestHandlers(a InterestAggregator, logger *slog.Logger) *InterestHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &InterestHandlers{aggregator: a, logger: logger}
}

// AggregateInterestRequest is the body of POST /v1/users/interest.
type AggregateInterestRequest struct {
	UserID string `json:"user_id"`
}

// AggregateInterestResponse reports how many post embeddings were averaged,
// or Skipped when the user had too few.
type AggregateInterestResponse struct {
	OK      bool `json:"ok"`
	Count   int  `json:"count,omitempty"`
	Skipped bool `json:"skipped,omitempty"`
}

// AggregateInterest handles POST /v1/users/interest. Privileged callers only.
func (h *InterestHandlers) AggregateInterest(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	req := decodeBody[AggregateInterestRequest](r)
	res, err := h.aggregator.Aggregate(r.Context(), auth.CallerFrom(r.Context()), strings.TrimSpace(req.UserID))
	if err != nil {
		WriteAppError(w, r, h.logger, err)
		return
	}

	if res.Skipped {
		writeJSON(w, r, http.StatusOK, AggregateInterestResponse{OK: true, Skipped: true})
		return
	}
	writeJSON(w, r, http.StatusOK, AggregateInterestResponse{OK: true, Count: res.Count})
}
