// Package sentiment implements the classification pipeline: text
// normalization, segmentation of inputs longer than the model context,
// per-segment inference and score aggregation.
package sentiment

import (
	"context"
	"fmt"
	"log/slog"
	"math"
)

// DefaultMaxTokens is the context size of the XLM-RoBERTa sentiment models
// the service is built around.
const DefaultMaxTokens = 512

// NumClasses is the length of every score vector.
const NumClasses = 3

// Labels maps score vector indices to sentiment labels.
var Labels = [NumClasses]string{"negative", "neutral", "positive"}

// Scores is a probability distribution over Labels.
type Scores [NumClasses]float64

// Backend tokenizes text and runs the model on one bounded-length input.
// It is loaded once per process and must be treated as read-only.
type Backend interface {
	Tokenize(ctx context.Context, text string) ([]uint32, error)
	Decode(ctx context.Context, ids []uint32) (string, error)
	Infer(ctx context.Context, text string) (Scores, error)
}

// Result is the outcome of classifying one text.
type Result struct {
	Sentiment  string  `json:"sentiment"`
	Confidence float64 `json:"confidence"`
}

// Detail extends Result with what the pipeline did to produce it.
type Detail struct {
	Result
	Tokens   int
	Segments int
	Scores   Scores
}

// Classifier classifies texts of any length with a bounded-context Backend.
type Classifier struct {
	backend   Backend
	maxTokens int
	logger    *slog.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithMaxTokens sets the segmentation threshold.
func WithMaxTokens(n int) Option {
	return func(c *Classifier) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithLogger sets the logger used for per-call debug output.
func WithLogger(l *slog.Logger) Option {
	return func(c *Classifier) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClassifier creates a Classifier around backend.
func NewClassifier(backend Backend, opts ...Option) *Classifier {
	c := &Classifier{
		backend:   backend,
		maxTokens: DefaultMaxTokens,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MaxTokens returns the segmentation threshold in use.
func (c *Classifier) MaxTokens() int {
	return c.maxTokens
}

// Classify returns the sentiment label and confidence for text.
func (c *Classifier) Classify(ctx context.Context, text string) (Result, error) {
	d, err := c.ClassifyDetailed(ctx, text)
	if err != nil {
		return Result{}, err
	}
	return d.Result, nil
}

// ClassifyDetailed is Classify plus token and segment bookkeeping.
func (c *Classifier) ClassifyDetailed(ctx context.Context, text string) (Detail, error) {
	c.logger.Debug("analyzing text", slog.String("preview", preview(text, 50)))

	normalized := Normalize(text)
	if normalized == "" {
		return Detail{}, ValidationError("text cleaning failed: empty or invalid result")
	}

	ids, err := c.backend.Tokenize(ctx, normalized)
	if err != nil {
		return Detail{}, BackendError("tokenizing text", err)
	}

	var (
		scores   Scores
		segments int
	)
	if len(ids) <= c.maxTokens {
		scores, err = c.infer(ctx, normalized)
		if err != nil {
			return Detail{}, err
		}
		segments = 1
	} else {
		scores, segments, err = c.inferSegments(ctx, ids)
		if err != nil {
			return Detail{}, err
		}
	}

	d := Detail{
		Result:   Decide(scores),
		Tokens:   len(ids),
		Segments: segments,
		Scores:   scores,
	}
	c.logger.Debug("analysis result",
		slog.String("sentiment", d.Sentiment),
		slog.Float64("confidence", d.Confidence),
		slog.Int("tokens", d.Tokens),
		slog.Int("segments", d.Segments))
	return d, nil
}

// inferSegments classifies consecutive, non-overlapping windows of
// maxTokens ids and averages their scores. Context at window boundaries is
// lost; each segment score maps to one disjoint span of the input.
func (c *Classifier) inferSegments(ctx context.Context, ids []uint32) (Scores, int, error) {
	var all []Scores
	for start := 0; start < len(ids); start += c.maxTokens {
		end := min(start+c.maxTokens, len(ids))

		chunk, err := c.backend.Decode(ctx, ids[start:end])
		if err != nil {
			return Scores{}, 0, BackendError("decoding segment", err)
		}

		s, err := c.infer(ctx, chunk)
		if err != nil {
			return Scores{}, 0, err
		}
		all = append(all, s)
	}
	return Mean(all), len(all), nil
}

func (c *Classifier) infer(ctx context.Context, text string) (Scores, error) {
	s, err := c.backend.Infer(ctx, text)
	if err != nil {
		return Scores{}, BackendError("running model", err)
	}
	for _, v := range s {
		if math.IsNaN(v) || v < 0 || v > 1+1e-6 {
			return Scores{}, BackendError("running model", fmt.Errorf("invalid score vector %v", s))
		}
	}
	return s, nil
}

// Mean returns the elementwise arithmetic mean of vectors.
func Mean(vectors []Scores) Scores {
	var out Scores
	if len(vectors) == 0 {
		return out
	}
	for _, v := range vectors {
		for i := range out {
			out[i] += v[i]
		}
	}
	n := float64(len(vectors))
	for i := range out {
		out[i] /= n
	}
	return out
}

// Decide picks the highest-scoring label. Ties go to the lowest index.
func Decide(s Scores) Result {
	idx := 0
	for i := 1; i < len(s); i++ {
		if s[i] > s[idx] {
			idx = i
		}
	}
	return Result{
		Sentiment:  Labels[idx],
		Confidence: Round3(s[idx]),
	}
}

// Round3 rounds v to 3 decimal places.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
