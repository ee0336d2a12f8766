package driver

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/leadscout/internal/types"
)

// maxCondensedLen caps how much page text is handed to the LLM per call.
const maxCondensedLen = 12000

// ParsePosts extracts candidate posts from rendered timeline HTML using DOM
// selector heuristics. It targets the markup X/Twitter-style feeds use
// (article nodes with data-testid attributes) and tolerates missing fields;
// validation happens downstream in the extractor.
func ParsePosts(htmlContent string) []types.RawPost {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil
	}

	var posts []types.RawPost
	doc.Find("article").Each(func(_ int, article *goquery.Selection) {
		post := types.RawPost{
			Text:         strings.TrimSpace(article.Find(`[data-testid="tweetText"]`).First().Text()),
			AuthorHandle: findHandle(article),
			DisplayName:  strings.TrimSpace(article.Find(`[data-testid="User-Name"] span`).First().Text()),
			Likes:        findCount(article, "like"),
			Replies:      findCount(article, "reply"),
			Reposts:      findCount(article, "retweet"),
			ThreadURL:    findThreadURL(article),
		}

		if post.Text == "" {
			post.Text = strings.TrimSpace(article.Text())
		}
		posts = append(posts, post)
	})

	return posts
}

// findHandle locates the @handle within a post's author block.
func findHandle(article *goquery.Selection) string {
	handle := ""
	article.Find(`[data-testid="User-Name"] span`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if strings.HasPrefix(text, "@") {
			handle = text
			return false
		}
		return true
	})
	return handle
}

// findThreadURL resolves the post permalink from its status link.
func findThreadURL(article *goquery.Selection) string {
	href, exists := article.Find(`a[href*="/status/"]`).First().Attr("href")
	if !exists {
		return ""
	}
	if strings.HasPrefix(href, "/") {
		return "https://x.com" + href
	}
	return href
}

// findCount reads an engagement counter button, e.g. data-testid="like".
func findCount(article *goquery.Selection, kind string) int {
	text := strings.TrimSpace(article.Find(fmt.Sprintf(`[data-testid=%q] span`, kind)).Last().Text())
	return ParseCount(text)
}

// ParseCount converts display counters like "1.2K" or "3M" to integers.
// Unparseable values count as zero.
func ParseCount(text string) int {
	text = strings.TrimSpace(strings.ReplaceAll(text, ",", ""))
	if text == "" {
		return 0
	}

	multiplier := 1.0
	switch {
	case strings.HasSuffix(text, "K"), strings.HasSuffix(text, "k"):
		multiplier = 1000
		text = text[:len(text)-1]
	case strings.HasSuffix(text, "M"), strings.HasSuffix(text, "m"):
		multiplier = 1000000
		text = text[:len(text)-1]
	}

	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0
	}
	return int(value * multiplier)
}

// CondenseText flattens rendered HTML to whitespace-collapsed visible text,
// capped so prompts stay within a predictable size.
func CondenseText(htmlContent string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return ""
	}

	doc.Find("script, style, noscript").Remove()
	text := strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	if len(text) > maxCondensedLen {
		text = text[:maxCondensedLen]
	}
	return text
}

// summarizeDOM produces a cheap observation when no LLM is configured.
func summarizeDOM(htmlContent string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return "page could not be parsed"
	}

	articles := doc.Find("article").Length()
	title := strings.TrimSpace(doc.Find("title").First().Text())
	return fmt.Sprintf("page %q with %d visible posts", title, articles)
}
