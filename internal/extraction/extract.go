// Package extraction normalizes raw automation-driver output into validated
// lead candidates and deduplicates them by thread identity.
package extraction

import (
	"strings"
	"time"

	"github.com/jonathan/leadscout/internal/types"
)

// Extract validates raw posts and converts them into pre-scoring lead
// candidates. Invalid posts are dropped rather than propagated as errors,
// since extraction is best-effort against noisy page content. Candidates
// keep the extraction order of the input; when the same identity appears
// twice the first-seen candidate wins and later duplicates are discarded.
func Extract(rawPosts []types.RawPost) []types.Lead {
	seen := make(map[string]bool, len(rawPosts))
	leads := make([]types.Lead, 0, len(rawPosts))
	now := time.Now().UTC()

	for _, post := range rawPosts {
		if !valid(post) {
			continue
		}

		id := types.DeriveLeadID(post.ThreadURL, post.AuthorHandle, post.Text)
		if seen[id] {
			continue
		}
		seen[id] = true

		leads = append(leads, types.Lead{
			ID:           id,
			AuthorHandle: post.AuthorHandle,
			DisplayName:  post.DisplayName,
			Text:         post.Text,
			Metrics: types.Metrics{
				Likes:   post.Likes,
				Replies: post.Replies,
				Reposts: post.Reposts,
				Views:   post.Views,
			},
			ThreadURL:  post.ThreadURL,
			CapturedAt: now,
		})
	}

	return leads
}

// valid reports whether a raw post carries the minimum fields a lead needs.
func valid(post types.RawPost) bool {
	return strings.TrimSpace(post.Text) != "" && strings.TrimSpace(post.AuthorHandle) != ""
}
