package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/onnwee/highlights/internal/auth"
	"github.com/onnwee/highlights/internal/embedder"
)

// PostEmbedder embeds a post's canonical text.
type PostEmbedder interface {
	EmbedPost(ctx context.Context, caller auth.Caller, postID string) (embedder.Result, error)
}

// EmbedHandlers holds dependencies for the embed endpoint.
type EmbedHandlers struct {
	embedder PostEmbedder
	logger   *slog.Logger
}

// NewEmbedHandlers creates a new EmbedHandlers instance.
func NewEmbedHandlers(e PostEmbedder, logger *slog.Logger) *EmbedHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmbedHandlers{embedder: e, logger: logger}
}

// EmbedPostRequest is the body of POST /v1/posts/embed.
type EmbedPostRequest struct {
	PostID string `json:"post_id"`
}

// EmbedPostResponse is returned on success. Skipped is set when the stored
// embedding already matches the post's content.
type EmbedPostResponse struct {
	OK      bool `json:"ok"`
	Skipped bool `json:"skipped,omitempty"`
}

// EmbedPost handles POST /v1/posts/embed.
func (h *EmbedHandlers) EmbedPost(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	req := decodeBody[EmbedPostRequest](r)
	res, err := h.embedder.EmbedPost(r.Context(), auth.CallerFrom(r.Context()), strings.TrimSpace(req.PostID))
	if err != nil {
		WriteAppError(w, r, h.logger, err)
		return
	}

	writeJSON(w, r, http.StatusOK, EmbedPostResponse{OK: true, Skipped: res.Skipped})
}
