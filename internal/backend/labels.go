package backend

import (
	"fmt"
	"strings"

	"github.com/TobiSchelling/sentimcp/internal/sentiment"
)

// ONNXOptions locates the model files for the onnx backend.
type ONNXOptions struct {
	ModelPath       string
	OnnxFilename    string
	TokenizerPath   string
	OnnxLibraryPath string
	// MaxTokens is the longest input, special tokens included, passed to
	// the model. Longer inputs are cut.
	MaxTokens int
}

// capTokens returns the prefix of ids, encoded with special tokens, whose
// content re-encodes to at most limit ids: the leading special token plus
// limit-2 content tokens, leaving room for the closing one. ok is false
// when ids already fit.
func capTokens(ids []uint32, limit int) (capped []uint32, ok bool) {
	if limit < 3 || len(ids) <= limit {
		return ids, false
	}
	return ids[:limit-1], true
}

// scoresFromLabels orders model outputs as negative, neutral, positive.
// Models exported without id2label report LABEL_0..LABEL_2 in that order.
func scoresFromLabels(labeled map[string]float64) (sentiment.Scores, error) {
	var s sentiment.Scores
	seen := 0
	for label, score := range labeled {
		idx := labelIndex(label)
		if idx < 0 {
			return sentiment.Scores{}, fmt.Errorf("unexpected model label %q", label)
		}
		s[idx] = score
		seen++
	}
	if seen != sentiment.NumClasses {
		return sentiment.Scores{}, fmt.Errorf("model returned %d labels, want %d", seen, sentiment.NumClasses)
	}
	return s, nil
}

func labelIndex(label string) int {
	l := strings.ToLower(label)
	for i, name := range sentiment.Labels {
		if l == name || l == fmt.Sprintf("label_%d", i) {
			return i
		}
	}
	return -1
}
