package server

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yuin/goldmark"

	"github.com/TobiSchelling/sentimcp/internal/analysis"
	"github.com/TobiSchelling/sentimcp/internal/fetch"
	"github.com/TobiSchelling/sentimcp/internal/sentiment"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed docs.md
var apiDocs []byte

var md = goldmark.New()

const welcome = "Bienvenue sur l'API MCP Sentiment. POST /analyze ou /analyze_article"

// maxBodyBytes caps request bodies.
const maxBodyBytes = 10 << 20

// Analyzer is the dispatch layer used by the handlers.
type Analyzer interface {
	AnalyzeText(ctx context.Context, text string) (sentiment.Result, error)
	AnalyzeArticle(ctx context.Context, in analysis.ArticleInput) (*analysis.BatchResult, error)
}

// ArticleFetcher downloads the readable text of a web page.
type ArticleFetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Article, error)
}

// Info describes the running model for /health.
type Info struct {
	Backend   string
	MaxTokens int
}

// Server is the HTTP front-end of the sentiment service.
type Server struct {
	analyzer Analyzer
	fetcher  ArticleFetcher
	info     Info
	logger   *slog.Logger
	docs     []byte
	mux      *http.ServeMux
}

// New creates a new Server. fetcher may be nil, which disables
// /analyze_url.
func New(analyzer Analyzer, fetcher ArticleFetcher, info Info, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	page, err := template.ParseFS(templateFS, "templates/docs.html")
	if err != nil {
		return nil, fmt.Errorf("parsing docs template: %w", err)
	}
	var buf bytes.Buffer
	if err := page.Execute(&buf, map[string]any{"Body": renderMarkdown(apiDocs)}); err != nil {
		return nil, fmt.Errorf("rendering docs: %w", err)
	}

	s := &Server{
		analyzer: analyzer,
		fetcher:  fetcher,
		info:     info,
		logger:   logger,
		docs:     buf.Bytes(),
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return requestID(s.logRequests(s.mux))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleRoot)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /docs", s.handleDocs)
	s.mux.Handle("GET /metrics", promhttp.Handler())
	s.mux.HandleFunc("POST /analyze", s.handleAnalyze)
	s.mux.HandleFunc("POST /analyze_article", s.handleAnalyzeArticle)
	s.mux.HandleFunc("POST /analyze_url", s.handleAnalyzeURL)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": welcome})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"backend":    s.info.Backend,
		"max_tokens": s.info.MaxTokens,
	})
}

func (s *Server) handleDocs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(s.docs)
}

type analyzeRequest struct {
	Text *string `json:"text"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Text == nil {
		s.writeError(w, r, sentiment.ValidationError("missing required field: text"))
		return
	}

	res, err := s.analyzer.AnalyzeText(r.Context(), *req.Text)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleAnalyzeArticle reads article_text and article_author from the JSON
// body, falling back to query parameters of the same name.
func (s *Server) handleAnalyzeArticle(w http.ResponseWriter, r *http.Request) {
	var in analysis.ArticleInput
	if err := decodeBody(w, r, &in, true); err != nil {
		s.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	if in.Text == "" {
		in.Text = q.Get("article_text")
	}
	if in.Author == "" {
		in.Author = q.Get("article_author")
	}
	if in.Text == "" {
		s.writeError(w, r, sentiment.ValidationError("missing required field: article_text"))
		return
	}

	res, err := s.analyzer.AnalyzeArticle(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type analyzeURLRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleAnalyzeURL(w http.ResponseWriter, r *http.Request) {
	if s.fetcher == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody{Detail: "url analysis is disabled", Kind: "fetch"})
		return
	}

	var req analyzeURLRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.URL == "" {
		s.writeError(w, r, sentiment.ValidationError("missing required field: url"))
		return
	}

	article, err := s.fetcher.Fetch(r.Context(), req.URL)
	if err != nil {
		s.logger.Warn("fetch failed",
			slog.String("request_id", RequestIDFrom(r.Context())),
			slog.String("url", req.URL),
			slog.Any("error", err))
		writeJSON(w, http.StatusBadGateway, errorBody{Detail: err.Error(), Kind: "fetch"})
		return
	}

	res, err := s.analyzer.AnalyzeArticle(r.Context(), analysis.ArticleInput{
		Text:   article.Text,
		Author: article.Byline,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type errorBody struct {
	Detail string `json:"detail"`
	Kind   string `json:"kind"`
}

// writeError answers 400 for validation and backend failures alike; the
// kind field tells them apart.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := sentiment.KindOf(err).String()
	s.logger.Warn("request failed",
		slog.String("request_id", RequestIDFrom(r.Context())),
		slog.String("path", r.URL.Path),
		slog.String("kind", kind),
		slog.Any("error", err))
	writeJSON(w, http.StatusBadRequest, errorBody{Detail: err.Error(), Kind: kind})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(data)
}

// decodeBody decodes a JSON request body into v. An empty body is accepted
// only when optional is set.
func decodeBody(w http.ResponseWriter, r *http.Request, v any, optional bool) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	var tooLarge *http.MaxBytesError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &tooLarge):
		return sentiment.ValidationError("request body too large: limit is %d bytes", tooLarge.Limit)
	case errors.Is(err, io.EOF):
		if optional {
			return nil
		}
		return sentiment.ValidationError("request body is required")
	default:
		return sentiment.ValidationError("invalid request body: %v", err)
	}
}

func renderMarkdown(text []byte) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert(text, &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(string(text)))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// Serve listens on host:port until ctx is cancelled, then shuts down
// gracefully.
func Serve(ctx context.Context, s *Server, host string, port int) error {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", slog.String("url", "http://"+addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down server")
		return srv.Shutdown(shutdownCtx)
	}
}
