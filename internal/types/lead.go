package types

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// dedupeTextPrefixLen is how many characters of post text contribute to the
// fallback lead identity. Using a prefix tolerates minor truncation
// differences between extraction passes of the same post.
const dedupeTextPrefixLen = 80

// RawPost is unvalidated extraction output from the automation driver.
// Engagement counters may be absent and default to zero.
type RawPost struct {
	Text         string `json:"text"`
	AuthorHandle string `json:"author_handle"`
	DisplayName  string `json:"display_name,omitempty"`
	Likes        int    `json:"likes,omitempty"`
	Replies      int    `json:"replies,omitempty"`
	Reposts      int    `json:"reposts,omitempty"`
	Views        int    `json:"views,omitempty"`
	ThreadURL    string `json:"thread_url,omitempty"`
}

// Metrics holds a lead's engagement counters.
type Metrics struct {
	Likes   int `json:"likes"`
	Replies int `json:"replies"`
	Reposts int `json:"reposts"`
	Views   int `json:"views"`
}

// Category is the coarse triage bucket derived from a lead's score.
type Category string

const (
	CategoryHot  Category = "hot"
	CategoryWarm Category = "warm"
	CategoryCold Category = "cold"
)

// Rank orders categories for comparison: cold < warm < hot.
func (c Category) Rank() int {
	switch c {
	case CategoryHot:
		return 2
	case CategoryWarm:
		return 1
	default:
		return 0
	}
}

// Lead is a validated, scored candidate post indicating commercial intent.
// The thread URL is the canonical link back to the original post and must
// survive every serialization step.
type Lead struct {
	ID           string    `json:"id"`
	AuthorHandle string    `json:"author_handle"`
	DisplayName  string    `json:"display_name,omitempty"`
	Text         string    `json:"text"`
	Metrics      Metrics   `json:"metrics"`
	Score        float64   `json:"score"`
	Category     Category  `json:"category"`
	ThreadURL    string    `json:"thread_url"`
	CapturedAt   time.Time `json:"captured_at"`
	MediaRef     string    `json:"media_ref,omitempty"`
}

// DeriveLeadID derives a deterministic lead identity. The thread URL is
// preferred as the identity key; without one the identity is a stable hash
// of the author handle plus a prefix of the post text.
func DeriveLeadID(threadURL, authorHandle, text string) string {
	if threadURL != "" {
		sum := sha256.Sum256([]byte(threadURL))
		return hex.EncodeToString(sum[:16])
	}

	prefix := text
	if len(prefix) > dedupeTextPrefixLen {
		prefix = prefix[:dedupeTextPrefixLen]
	}
	sum := sha256.Sum256([]byte(authorHandle + "\x00" + prefix))
	return hex.EncodeToString(sum[:16])
}
