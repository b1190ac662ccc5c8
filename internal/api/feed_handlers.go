package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/onnwee/highlights/internal/auth"
	"github.com/onnwee/highlights/internal/ranking"
)

// FeedRanker ranks a personalized feed.
type FeedRanker interface {
	RankFeed(ctx context.Context, caller auth.Caller, req ranking.FeedRequest) ([]string, error)
}

// FeedHandlers holds dependencies for the feed endpoint.
type FeedHandlers struct {
	ranker FeedRanker
	logger *slog.Logger
}

// NewFeedHandlers creates a new FeedHandlers instance.
func NewFeedHandlers(ranker FeedRanker, logger *slog.Logger) *FeedHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedHandlers{ranker: ranker, logger: logger}
}

// FeedRequest is the body of POST /v1/feed.
type FeedRequest struct {
	Limit   flexInt `json:"limit"`
	Sport   string  `json:"sport"`
	Hashtag string  `json:"hashtag"`
}

// PostsResponse is the list of post ids returned by feed and search.
type PostsResponse struct {
	Posts []string `json:"posts"`
}

// Feed handles POST /v1/feed.
func (h *FeedHandlers) Feed(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	body := decodeBody[FeedRequest](r)
	ids, err := h.ranker.RankFeed(r.Context(), auth.CallerFrom(r.Context()), ranking.FeedRequest{
		Limit:   body.Limit.Value,
		Sport:   strings.TrimSpace(body.Sport),
		Hashtag: body.Hashtag,
	})
	if err != nil {
		WriteAppError(w, r, h.logger, err)
		return
	}

	writePosts(w, r, ids)
}

func writePosts(w http.ResponseWriter, r *http.Request, ids []string) {
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, r, http.StatusOK, PostsResponse{Posts: ids})
}
