package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

// minTextLength is the shortest extraction accepted as an article.
const minTextLength = 100

// maxBodyBytes caps how much of a page is read.
const maxBodyBytes = 5 << 20

// Article is the readable part of a web page.
type Article struct {
	URL    string
	Title  string
	Byline string
	Text   string
}

// Fetcher downloads pages and extracts their main text via readability.
type Fetcher struct {
	client    *http.Client
	userAgent string
}

// NewFetcher creates a new fetcher.
func NewFetcher(timeout time.Duration, userAgent string) *Fetcher {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if userAgent == "" {
		userAgent = "sentimcp/1.0"
	}
	return &Fetcher{
		userAgent: userAgent,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// Fetch downloads articleURL and returns its readable text.
func (f *Fetcher) Fetch(ctx context.Context, articleURL string) (*Article, error) {
	parsedURL, err := url.Parse(articleURL)
	if err != nil || (parsedURL.Scheme != "http" && parsedURL.Scheme != "https") || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid article url %q", articleURL)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", articleURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", articleURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, &HTTPError{Code: resp.StatusCode}
	}

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", articleURL, err)
	}

	article, err := readability.FromReader(strings.NewReader(string(bodyBytes)), parsedURL)
	if err != nil {
		return nil, fmt.Errorf("extracting article: %w", err)
	}

	text := strings.TrimSpace(article.TextContent)
	if len(text) <= minTextLength {
		return nil, fmt.Errorf("no extractable content from %s", articleURL)
	}
	return &Article{
		URL:    articleURL,
		Title:  strings.TrimSpace(article.Title),
		Byline: strings.TrimSpace(article.Byline),
		Text:   text,
	}, nil
}

// HTTPError is returned when the page answers with a 4xx or 5xx status.
type HTTPError struct {
	Code int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("upstream returned %d %s", e.Code, http.StatusText(e.Code))
}
