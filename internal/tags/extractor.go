package tags

import (
	"context"
	"fmt"
	"log/slog"
)

// Request carries the text-bearing fields of a post to tag.
type Request struct {
	PostID  string
	Caption string
	Sport   string
	Team    string
}

// Extractor turns post text into stored tags.
type Extractor struct {
	store  Store
	logger *slog.Logger
}

// NewExtractor creates an Extractor backed by store.
func NewExtractor(store Store, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{store: store, logger: logger}
}

// Tags returns the caption hashtags followed by the normalized sport and
// team, without duplicates.
func (r Request) Tags() []string {
	out := Extract(r.Caption)
	for _, extra := range []string{r.Sport, r.Team} {
		tag := Normalize(extra)
		if tag == "" || contains(out, tag) {
			continue
		}
		out = append(out, tag)
	}
	return out
}

// Dispatch derives the tags of a post and stores them.
func (e *Extractor) Dispatch(ctx context.Context, req Request) error {
	tags := req.Tags()
	if err := e.store.UpsertPostTags(ctx, req.PostID, tags); err != nil {
		return fmt.Errorf("failed to store tags for post %s: %w", req.PostID, err)
	}
	e.logger.DebugContext(ctx, "post tags updated",
		slog.String("post_id", req.PostID),
		slog.Int("tag_count", len(tags)))
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
