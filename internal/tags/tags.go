// Package tags derives hashtag-style tags from post text and maintains the
// post to tag association used by hashtag feed filters.
package tags

import (
	"context"
	"regexp"
	"strings"
)

// MaxCaptionTags caps the hashtags taken from a single caption.
const MaxCaptionTags = 20

var hashtagPattern = regexp.MustCompile(`#([\p{L}\p{N}_]+)`)

// Normalize trims whitespace, strips leading '#' characters and lowercases.
func Normalize(tag string) string {
	return strings.ToLower(strings.TrimLeft(strings.TrimSpace(tag), "#"))
}

// Extract returns the distinct hashtags in caption, normalized, in order of
// first appearance.
func Extract(caption string) []string {
	matches := hashtagPattern.FindAllStringSubmatch(caption, -1)
	out := make([]string, 0, min(len(matches), MaxCaptionTags))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		tag := strings.ToLower(m[1])
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
		if len(out) == MaxCaptionTags {
			break
		}
	}
	return out
}

// Store persists tags and their association with posts.
type Store interface {
	// UpsertPostTags replaces the set of tags attached to a post, creating
	// tags that do not exist yet.
	UpsertPostTags(ctx context.Context, postID string, tags []string) error

	// Resolve looks up a normalized tag name.
	Resolve(ctx context.Context, name string) (id int64, found bool, err error)

	// PostIDs returns up to limit posts carrying the tag.
	PostIDs(ctx context.Context, tagID int64, limit int) ([]string, error)
}
