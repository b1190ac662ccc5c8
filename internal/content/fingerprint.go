// Package content builds the canonical text representation of a post and the
// content hash used to decide whether its stored embedding is still valid.
package content

import (
	"strconv"
	"strings"
)

// Fields holds the text-bearing fields of a post that feed its embedding.
type Fields struct {
	Description string
	Sport       string
	Team        string
}

// Labels used in the canonical blob, in blob order.
const (
	labelCaption = "caption: "
	labelSport   = "sport: "
	labelTeam    = "team: "
)

// Blob renders fields as the canonical text that is sent to the embedding
// provider. Every label is always present so the blob shape never changes;
// missing values render as empty strings.
func Blob(f Fields) string {
	var b strings.Builder
	b.Grow(len(labelCaption) + len(labelSport) + len(labelTeam) + len(f.Description) + len(f.Sport) + len(f.Team) + 2)
	b.WriteString(labelCaption)
	b.WriteString(f.Description)
	b.WriteByte('\n')
	b.WriteString(labelSport)
	b.WriteString(f.Sport)
	b.WriteByte('\n')
	b.WriteString(labelTeam)
	b.WriteString(f.Team)
	return b.String()
}

// Hash returns a 32-bit order-sensitive rolling hash of blob (h = h*31 + c
// over UTF-16 code units, wrapping), formatted in base 10.
//
// It only gates the embedding cache. Collisions are tolerated.
func Hash(blob string) string {
	var h int32
	for _, r := range blob {
		if r >= 0x10000 {
			// Surrogate pair, matching the UTF-16 view of the string.
			r -= 0x10000
			h = h*31 + int32(0xD800+(r>>10))
			h = h*31 + int32(0xDC00+(r&0x3FF))
			continue
		}
		h = h*31 + int32(r)
	}
	return strconv.FormatInt(int64(h), 10)
}

// Fingerprint is the canonical blob of a post together with its hash.
type Fingerprint struct {
	Blob string
	Hash string
}

// Of computes the fingerprint of fields.
func Of(f Fields) Fingerprint {
	blob := Blob(f)
	return Fingerprint{Blob: blob, Hash: Hash(blob)}
}

// NeedsEmbedding reports whether a post must be (re-)embedded. storedHash is
// the hash recorded with the existing embedding; hasStored is false when the
// post has never been embedded.
func NeedsEmbedding(hasStored bool, storedHash, freshHash string) bool {
	return !hasStored || storedHash != freshHash
}
