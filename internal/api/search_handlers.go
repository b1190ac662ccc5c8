package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/onnwee/highlights/internal/auth"
)

// PostSearcher runs semantic search over post embeddings.
type PostSearcher interface {
	Search(ctx context.Context, caller auth.Caller, query string, limit int) ([]string, error)
}

// SearchHandlers holds dependencies for the search endpoint.
type SearchHandlers struct {
	searcher PostSearcher
	logger   *slog.Logger
}

// NewSearchHandlers creates a new SearchHandlers instance.
func NewSearchHandlers(searcher PostSearcher, logger *slog.Logger) *SearchHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchHandlers{searcher: searcher, logger: logger}
}

// SearchRequest is the body of POST /v1/search.
type SearchRequest struct {
	Query string  `json:"q"`
	Limit flexInt `json:"limit"`
}

// Search handles POST /v1/search.
func (h *SearchHandlers) Search(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	body := decodeBody[SearchRequest](r)
	ids, err := h.searcher.Search(r.Context(), auth.CallerFrom(r.Context()), body.Query, body.Limit.Value)
	if err != nil {
		WriteAppError(w, r, h.logger, err)
		return
	}

	writePosts(w, r, ids)
}
