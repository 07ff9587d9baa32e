package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/TobiSchelling/sentimcp/internal/analysis"
	"github.com/TobiSchelling/sentimcp/internal/fetch"
	"github.com/TobiSchelling/sentimcp/internal/sentiment"
)

// wordClassifier labels texts by keyword.
type wordClassifier struct{}

func (wordClassifier) Classify(_ context.Context, text string) (sentiment.Result, error) {
	switch {
	case strings.TrimSpace(text) == "" || text == "<<<>>>":
		return sentiment.Result{}, sentiment.ValidationError("text cleaning failed: empty or invalid result")
	case strings.Contains(text, "crash"):
		return sentiment.Result{}, sentiment.BackendError("running model", errors.New("oom"))
	case strings.Contains(text, "bien"):
		return sentiment.Result{Sentiment: "positive", Confidence: 0.9}, nil
	case strings.Contains(text, "nul"):
		return sentiment.Result{Sentiment: "negative", Confidence: 0.8}, nil
	default:
		return sentiment.Result{Sentiment: "neutral", Confidence: 0.6}, nil
	}
}

type stubFetcher struct {
	article *fetch.Article
	err     error
}

func (f stubFetcher) Fetch(_ context.Context, url string) (*fetch.Article, error) {
	return f.article, f.err
}

func newTestServer(t *testing.T, fetcher ArticleFetcher) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := analysis.NewService(wordClassifier{}, logger)
	srv, err := New(svc, fetcher, Info{Backend: "lexicon", MaxTokens: 512}, logger)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return srv
}

func do(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("invalid JSON response %q: %v", rec.Body.String(), err)
	}
}

func TestRootRoute(t *testing.T) {
	rec := do(t, newTestServer(t, nil), "GET", "/", "")

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	decode(t, rec, &body)
	if !strings.Contains(body["message"], "/analyze") {
		t.Errorf("unexpected message %q", body["message"])
	}
}

func TestUnknownRoute(t *testing.T) {
	rec := do(t, newTestServer(t, nil), "GET", "/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestAnalyzeRoute(t *testing.T) {
	rec := do(t, newTestServer(t, nil), "POST", "/analyze", `{"text": "C'est très bien"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON content type, got %q", ct)
	}
	var res sentiment.Result
	decode(t, rec, &res)
	if res.Sentiment != "positive" || res.Confidence != 0.9 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestAnalyzeErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		kind string
	}{
		{"empty after cleaning", `{"text": "<<<>>>"}`, "validation"},
		{"missing text", `{}`, "validation"},
		{"no body", "", "validation"},
		{"invalid json", `{"text":`, "validation"},
		{"backend failure", `{"text": "crash"}`, "backend"},
	}

	srv := newTestServer(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, "POST", "/analyze", tt.body)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			var body errorBody
			decode(t, rec, &body)
			if body.Kind != tt.kind {
				t.Errorf("expected kind %q, got %q", tt.kind, body.Kind)
			}
			if body.Detail == "" {
				t.Error("expected error detail")
			}
		})
	}
}

func TestAnalyzeLargeBody(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := do(t, srv, "POST", "/analyze", `{"text":"`+strings.Repeat("a", 2<<20)+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for a 2 MiB body, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, srv, "POST", "/analyze", `{"text":"`+strings.Repeat("a", maxBodyBytes)+`"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body map[string]string
	decode(t, rec, &body)
	if !strings.Contains(body["detail"], "request body too large") {
		t.Errorf("detail = %q, want request body too large", body["detail"])
	}
	if body["kind"] != "validation" {
		t.Errorf("kind = %q, want validation", body["kind"])
	}
}

func TestAnalyzeArticleRoute(t *testing.T) {
	body := `{
		"article_text": "Un article neutre",
		"article_author": "Marie",
		"commentaires": [
			{"auteur": "Paul", "content": "très bien"},
			{"content": "nul"},
			{"auteur": "Léa", "content": "bien joué"}
		]
	}`
	rec := do(t, newTestServer(t, nil), "POST", "/analyze_article", body)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res analysis.BatchResult
	decode(t, rec, &res)

	if res.Post.Type != "article" || res.Post.Author != "Marie" || res.Post.Sentiment != "neutral" {
		t.Errorf("unexpected post %+v", res.Post)
	}
	if len(res.Comments) != 3 {
		t.Fatalf("expected 3 comments, got %d", len(res.Comments))
	}
	if res.Comments[1].Author != "unknown" || res.Comments[1].Type != "commentaire" {
		t.Errorf("unexpected second comment %+v", res.Comments[1])
	}
	if res.Distribution["positive"] != 0.667 || res.Distribution["negative"] != 0.333 {
		t.Errorf("unexpected distribution %v", res.Distribution)
	}
	if _, ok := res.Distribution["neutral"]; ok {
		t.Error("expected unobserved labels to be absent")
	}
}

func TestAnalyzeArticleNoComments(t *testing.T) {
	rec := do(t, newTestServer(t, nil), "POST", "/analyze_article", `{"article_text": "bien"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"distribution":{}`) {
		t.Errorf("expected empty distribution, got %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"commentaires":[]`) {
		t.Errorf("expected empty comment list, got %s", rec.Body.String())
	}
}

func TestAnalyzeArticleQueryParams(t *testing.T) {
	rec := do(t, newTestServer(t, nil), "POST", "/analyze_article?article_text=tr%C3%A8s+bien&article_author=Zo%C3%A9", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res analysis.BatchResult
	decode(t, rec, &res)
	if res.Post.Content != "très bien" || res.Post.Author != "Zoé" {
		t.Errorf("unexpected post %+v", res.Post)
	}
}

func TestAnalyzeArticleFailureAborts(t *testing.T) {
	body := `{"article_text": "bien", "commentaires": [{"content": "bien"}, {"content": "crash"}]}`
	rec := do(t, newTestServer(t, nil), "POST", "/analyze_article", body)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var eb errorBody
	decode(t, rec, &eb)
	if eb.Kind != "backend" {
		t.Errorf("expected backend kind, got %q", eb.Kind)
	}

	rec = do(t, newTestServer(t, nil), "POST", "/analyze_article", `{"commentaires": []}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing article_text, got %d", rec.Code)
	}
}

func TestAnalyzeURLRoute(t *testing.T) {
	fetcher := stubFetcher{article: &fetch.Article{Text: "Un très bien article", Byline: "Jeanne"}}
	rec := do(t, newTestServer(t, fetcher), "POST", "/analyze_url", `{"url": "https://example.com/a"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res analysis.BatchResult
	decode(t, rec, &res)
	if res.Post.Author != "Jeanne" || res.Post.Sentiment != "positive" {
		t.Errorf("unexpected post %+v", res.Post)
	}
}

func TestAnalyzeURLErrors(t *testing.T) {
	failing := stubFetcher{err: &fetch.HTTPError{Code: 404}}

	rec := do(t, newTestServer(t, failing), "POST", "/analyze_url", `{"url": "https://example.com/a"}`)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", rec.Code)
	}

	rec = do(t, newTestServer(t, failing), "POST", "/analyze_url", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing url, got %d", rec.Code)
	}

	rec = do(t, newTestServer(t, nil), "POST", "/analyze_url", `{"url": "https://example.com/a"}`)
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("expected 501 without fetcher, got %d", rec.Code)
	}
}

func TestHealthRoute(t *testing.T) {
	rec := do(t, newTestServer(t, nil), "GET", "/health", "")

	var body map[string]any
	decode(t, rec, &body)
	if body["status"] != "ok" || body["backend"] != "lexicon" || body["max_tokens"] != float64(512) {
		t.Errorf("unexpected health %v", body)
	}
}

func TestDocsRoute(t *testing.T) {
	rec := do(t, newTestServer(t, nil), "GET", "/docs", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<h1>sentimcp API</h1>") {
		t.Error("expected rendered markdown heading")
	}
	if !strings.Contains(body, "<h2>POST /analyze</h2>") {
		t.Error("expected endpoint section")
	}
}

func TestRequestIDHeader(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := do(t, srv, "GET", "/health", "")
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("expected generated request id")
	}

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set(RequestIDHeader, "custom-request-id-123")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); got != "custom-request-id-123" {
		t.Errorf("expected echoed request id, got %q", got)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	rec := do(t, newTestServer(t, nil), "GET", "/analyze", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestMetricsRoute(t *testing.T) {
	srv := newTestServer(t, nil)
	do(t, srv, "GET", "/health", "")

	rec := do(t, srv, "GET", "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "sentimcp_http_requests_total") {
		t.Error("expected request counter in metrics output")
	}
}
