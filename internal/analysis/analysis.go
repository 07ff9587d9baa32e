// Package analysis routes single-text and article+comments requests to the
// sentiment classifier and shapes their results.
package analysis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/TobiSchelling/sentimcp/internal/sentiment"
)

// DefaultAuthor labels inputs that arrive without an author.
const DefaultAuthor = "unknown"

// Item types echoed in BatchResult.
const (
	TypeArticle = "article"
	TypeComment = "commentaire"
)

// Classifier is the part of sentiment.Classifier the service needs.
type Classifier interface {
	Classify(ctx context.Context, text string) (sentiment.Result, error)
}

// Comment is one comment of an ArticleInput.
type Comment struct {
	Author  string `json:"auteur,omitempty"`
	Content string `json:"content"`
}

// ArticleInput is an article with its ordered comments.
type ArticleInput struct {
	Text     string    `json:"article_text"`
	Author   string    `json:"article_author,omitempty"`
	Comments []Comment `json:"commentaires,omitempty"`
}

// Item is one classified article or comment.
type Item struct {
	Type       string  `json:"type"`
	Author     string  `json:"author"`
	Content    string  `json:"content"`
	Sentiment  string  `json:"sentiment"`
	Confidence float64 `json:"confidence"`
}

// BatchResult is the outcome of AnalyzeArticle.
type BatchResult struct {
	Post         Item               `json:"post"`
	Comments     []Item             `json:"commentaires"`
	Distribution map[string]float64 `json:"distribution"`
}

// Service is the transport-independent dispatch layer.
type Service struct {
	classifier Classifier
	logger     *slog.Logger
}

// NewService creates a Service. A nil logger uses slog.Default.
func NewService(c Classifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{classifier: c, logger: logger}
}

// AnalyzeText classifies one text. Errors are returned unchanged.
func (s *Service) AnalyzeText(ctx context.Context, text string) (sentiment.Result, error) {
	return s.classifier.Classify(ctx, text)
}

// AnalyzeArticle classifies the article and then every comment in order.
// Any failure aborts the whole batch.
func (s *Service) AnalyzeArticle(ctx context.Context, in ArticleInput) (*BatchResult, error) {
	post, err := s.classify(ctx, TypeArticle, in.Author, in.Text)
	if err != nil {
		return nil, fmt.Errorf("article: %w", err)
	}

	comments := make([]Item, 0, len(in.Comments))
	for i, c := range in.Comments {
		item, err := s.classify(ctx, TypeComment, c.Author, c.Content)
		if err != nil {
			return nil, fmt.Errorf("comment %d: %w", i, err)
		}
		comments = append(comments, item)
	}

	s.logger.Debug("article analyzed",
		slog.String("sentiment", post.Sentiment),
		slog.Int("comments", len(comments)))

	return &BatchResult{
		Post:         post,
		Comments:     comments,
		Distribution: Distribution(comments),
	}, nil
}

func (s *Service) classify(ctx context.Context, typ, author, content string) (Item, error) {
	res, err := s.classifier.Classify(ctx, content)
	if err != nil {
		return Item{}, err
	}
	if author == "" {
		author = DefaultAuthor
	}
	return Item{
		Type:       typ,
		Author:     author,
		Content:    content,
		Sentiment:  res.Sentiment,
		Confidence: res.Confidence,
	}, nil
}

// Distribution returns, for each label present in items, the fraction of
// items carrying it, rounded to 3 decimals. Labels that do not occur are
// absent, so no items yields an empty map.
func Distribution(items []Item) map[string]float64 {
	dist := make(map[string]float64)
	if len(items) == 0 {
		return dist
	}
	counts := make(map[string]int)
	for _, it := range items {
		counts[it.Sentiment]++
	}
	n := float64(len(items))
	for label, c := range counts {
		dist[label] = sentiment.Round3(float64(c) / n)
	}
	return dist
}
