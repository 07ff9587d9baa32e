// Package feed turns an RSS or Atom feed into an article+comments batch:
// the feed itself is the article and its latest entries are the comments.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/TobiSchelling/sentimcp/internal/analysis"
)

const defaultMaxItems = 20

// Reader fetches and converts feeds.
type Reader struct {
	parser   *gofeed.Parser
	maxItems int
	logger   *slog.Logger
}

// NewReader creates a Reader keeping at most maxItems entries per feed.
func NewReader(maxItems int, logger *slog.Logger) *Reader {
	if maxItems <= 0 {
		maxItems = defaultMaxItems
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{parser: gofeed.NewParser(), maxItems: maxItems, logger: logger}
}

// Read fetches feedURL and builds the batch input for it.
func (r *Reader) Read(ctx context.Context, feedURL string) (analysis.ArticleInput, error) {
	feed, err := r.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return analysis.ArticleInput{}, fmt.Errorf("parsing feed %s: %w", feedURL, err)
	}
	in := r.toInput(feed, extractSourceName(feedURL))
	r.logger.Info("parsed feed",
		slog.String("url", feedURL),
		slog.Int("entries", len(in.Comments)))
	return in, nil
}

// Parse builds the batch input from a feed document.
func (r *Reader) Parse(data string, source string) (analysis.ArticleInput, error) {
	feed, err := r.parser.ParseString(data)
	if err != nil {
		return analysis.ArticleInput{}, fmt.Errorf("parsing feed: %w", err)
	}
	return r.toInput(feed, source), nil
}

func (r *Reader) toInput(feed *gofeed.Feed, source string) analysis.ArticleInput {
	in := analysis.ArticleInput{
		Text:   joinText(feed.Title, stripHTML(feed.Description)),
		Author: source,
	}
	if len(feed.Authors) > 0 && feed.Authors[0].Name != "" {
		in.Author = feed.Authors[0].Name
	}

	for _, item := range feed.Items {
		if len(in.Comments) >= r.maxItems {
			break
		}
		c, ok := parseItem(item)
		if !ok {
			continue
		}
		in.Comments = append(in.Comments, c)
	}
	return in
}

func parseItem(item *gofeed.Item) (analysis.Comment, bool) {
	title := strings.TrimSpace(item.Title)

	var content string
	if item.Content != "" {
		content = stripHTML(item.Content)
	} else if item.Description != "" {
		content = stripHTML(item.Description)
	}

	text := joinText(title, content)
	if text == "" {
		return analysis.Comment{}, false
	}

	var author string
	if len(item.Authors) > 0 {
		author = item.Authors[0].Name
	}
	return analysis.Comment{Author: author, Content: text}, true
}

func joinText(title, body string) string {
	title = strings.TrimSpace(title)
	body = strings.TrimSpace(body)
	switch {
	case title == "":
		return body
	case body == "":
		return title
	default:
		return title + ". " + body
	}
}

func stripHTML(text string) string {
	var result strings.Builder
	inTag := false
	for _, r := range text {
		if r == '<' {
			inTag = true
			result.WriteRune(' ')
			continue
		}
		if r == '>' {
			inTag = false
			continue
		}
		if !inTag {
			result.WriteRune(r)
		}
	}

	s := result.String()
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	s = strings.ReplaceAll(s, "&#39;", "'")

	return strings.Join(strings.Fields(s), " ")
}

func extractSourceName(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Hostname() == "" {
		return analysis.DefaultAuthor
	}
	host := strings.ToLower(u.Hostname())

	for _, prefix := range []string{"www.", "blog.", "blogs.", "rss.", "feeds."} {
		host = strings.TrimPrefix(host, prefix)
	}

	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		name := parts[len(parts)-2]
		return strings.ToUpper(name[:1]) + name[1:]
	}
	return strings.ToUpper(host[:1]) + host[1:]
}
