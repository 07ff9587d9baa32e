//go:build ORT

package backend

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/daulet/tokenizers"
	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/options"
	"github.com/knights-analytics/hugot/pipelines"

	"github.com/TobiSchelling/sentimcp/internal/sentiment"
)

// ONNXBackend runs an exported sequence classification model through
// onnxruntime. The session and tokenizer are not safe for concurrent use.
type ONNXBackend struct {
	mu        sync.Mutex
	session   *hugot.Session
	pipeline  *pipelines.TextClassificationPipeline
	tokenizer *tokenizers.Tokenizer
	maxTokens int
}

// NewONNXBackend loads the model and tokenizer described by opts.
func NewONNXBackend(opts ONNXOptions) (*ONNXBackend, error) {
	tk, err := tokenizers.FromFile(opts.TokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("loading tokenizer %s: %w", opts.TokenizerPath, err)
	}

	var sessionOpts []options.WithOption
	if opts.OnnxLibraryPath != "" {
		sessionOpts = append(sessionOpts, options.WithOnnxLibraryPath(opts.OnnxLibraryPath))
	}
	session, err := hugot.NewORTSession(sessionOpts...)
	if err != nil {
		tk.Close()
		return nil, fmt.Errorf("creating onnxruntime session: %w", err)
	}

	config := hugot.TextClassificationConfig{
		ModelPath:    opts.ModelPath,
		Name:         "sentiment-" + filepath.Base(opts.ModelPath),
		OnnxFilename: opts.OnnxFilename,
		Options: []hugot.TextClassificationOption{
			pipelines.WithSoftmax(),
			pipelines.WithMultiLabel(),
		},
	}
	pipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		session.Destroy()
		tk.Close()
		return nil, fmt.Errorf("creating classification pipeline: %w", err)
	}

	return &ONNXBackend{
		session:   session,
		pipeline:  pipeline,
		tokenizer: tk,
		maxTokens: opts.MaxTokens,
	}, nil
}

// Tokenize encodes text with special tokens, as the model sees it.
func (o *ONNXBackend) Tokenize(_ context.Context, text string) ([]uint32, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	ids, _ := o.tokenizer.Encode(text, true)
	return ids, nil
}

// Decode turns ids back into text, dropping special tokens.
func (o *ONNXBackend) Decode(_ context.Context, ids []uint32) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.tokenizer.Decode(ids, true), nil
}

// Infer runs the model on text. The pipeline does not truncate, so text
// longer than maxTokens is cut here.
func (o *ONNXBackend) Infer(_ context.Context, text string) (sentiment.Scores, error) {
	o.mu.Lock()
	ids, _ := o.tokenizer.Encode(text, true)
	if capped, ok := capTokens(ids, o.maxTokens); ok {
		text = o.tokenizer.Decode(capped, true)
	}
	out, err := o.pipeline.RunPipeline([]string{text})
	o.mu.Unlock()
	if err != nil {
		return sentiment.Scores{}, err
	}
	if len(out.ClassificationOutputs) != 1 {
		return sentiment.Scores{}, fmt.Errorf("pipeline returned %d outputs for 1 input", len(out.ClassificationOutputs))
	}

	labeled := make(map[string]float64, sentiment.NumClasses)
	for _, c := range out.ClassificationOutputs[0] {
		labeled[c.Label] = float64(c.Score)
	}
	return scoresFromLabels(labeled)
}

// Close releases the onnxruntime session and the tokenizer.
func (o *ONNXBackend) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	err := o.session.Destroy()
	if cerr := o.tokenizer.Close(); err == nil {
		err = cerr
	}
	return err
}
