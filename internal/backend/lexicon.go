package backend

import (
	"context"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/jonreiter/govader"

	"github.com/TobiSchelling/sentimcp/internal/sentiment"
)

// LexiconBackend scores text with the VADER lexicon and needs no model
// files. Tokens are Unicode code points, so ids decode without a vocabulary
// and the backend keeps no per-request state.
type LexiconBackend struct {
	mu       sync.Mutex
	analyzer *govader.SentimentIntensityAnalyzer
}

// NewLexiconBackend creates a lexicon backend.
func NewLexiconBackend() *LexiconBackend {
	return &LexiconBackend{analyzer: govader.NewSentimentIntensityAnalyzer()}
}

// Tokenize returns the code points of text.
func (l *LexiconBackend) Tokenize(_ context.Context, text string) ([]uint32, error) {
	ids := make([]uint32, 0, len(text))
	for _, r := range text {
		ids = append(ids, uint32(r))
	}
	return ids, nil
}

// Decode rebuilds text from code points. Invalid ids are skipped.
func (l *LexiconBackend) Decode(_ context.Context, ids []uint32) (string, error) {
	var b strings.Builder
	b.Grow(len(ids))
	for _, id := range ids {
		if r := rune(id); utf8.ValidRune(r) {
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

// Infer maps VADER's neg/neu/pos proportions onto the score vector.
func (l *LexiconBackend) Infer(_ context.Context, text string) (sentiment.Scores, error) {
	l.mu.Lock()
	p := l.analyzer.PolarityScores(text)
	l.mu.Unlock()

	return lexiconScores(p.Negative, p.Neutral, p.Positive), nil
}

func lexiconScores(neg, neu, pos float64) sentiment.Scores {
	sum := neg + neu + pos
	if sum <= 0 {
		return sentiment.Scores{0, 1, 0}
	}
	return sentiment.Scores{neg / sum, neu / sum, pos / sum}
}
