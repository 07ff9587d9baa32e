// Package backend provides the model backends behind sentiment.Classifier.
package backend

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/TobiSchelling/sentimcp/internal/config"
	"github.com/TobiSchelling/sentimcp/internal/sentiment"
)

// Backend names accepted in model.backend.
const (
	ONNX    = "onnx"
	Remote  = "remote"
	Lexicon = "lexicon"
)

// Closer is implemented by backends that hold native resources.
type Closer interface {
	Close() error
}

// New creates the backend selected by cfg. Any error here is fatal: the
// service must not start serving without a model.
func New(cfg config.Model, logger *slog.Logger) (sentiment.Backend, error) {
	switch strings.ToLower(cfg.Backend) {
	case ONNX, "":
		tokenizerPath := cfg.TokenizerPath
		if tokenizerPath == "" {
			tokenizerPath = filepath.Join(cfg.Path, "tokenizer.json")
		}
		logger.Info("loading onnx model",
			slog.String("path", cfg.Path),
			slog.String("tokenizer", tokenizerPath))
		b, err := NewONNXBackend(ONNXOptions{
			ModelPath:       cfg.Path,
			OnnxFilename:    cfg.OnnxFilename,
			TokenizerPath:   tokenizerPath,
			OnnxLibraryPath: cfg.OnnxLibraryPath,
			MaxTokens:       maxTokens(cfg.MaxTokens),
		})
		if err != nil {
			return nil, fmt.Errorf("loading onnx backend: %w", err)
		}
		return b, nil
	case Remote:
		if cfg.URL == "" {
			return nil, fmt.Errorf("model.url is required for the remote backend")
		}
		logger.Info("using remote inference server", slog.String("url", cfg.URL))
		return NewRemoteBackend(cfg.URL, time.Duration(cfg.TimeoutSeconds)*time.Second), nil
	case Lexicon:
		logger.Info("using lexicon backend")
		return NewLexiconBackend(), nil
	default:
		return nil, fmt.Errorf("unknown model backend %q", cfg.Backend)
	}
}

func maxTokens(n int) int {
	if n > 0 {
		return n
	}
	return sentiment.DefaultMaxTokens
}

// Close releases b if it holds resources.
func Close(b sentiment.Backend) error {
	if c, ok := b.(Closer); ok {
		return c.Close()
	}
	return nil
}
