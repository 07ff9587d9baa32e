package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/TobiSchelling/sentimcp/internal/sentiment"
)

// RemoteBackend delegates tokenization and inference to an HTTP model
// server exposing POST /tokenize, /decode and /predict.
type RemoteBackend struct {
	BaseURL string
	client  *http.Client
}

// NewRemoteBackend creates a remote backend. A zero timeout uses 60s.
func NewRemoteBackend(baseURL string, timeout time.Duration) *RemoteBackend {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &RemoteBackend{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Tokenize returns the model token ids for text.
func (r *RemoteBackend) Tokenize(ctx context.Context, text string) ([]uint32, error) {
	var result struct {
		IDs []uint32 `json:"ids"`
	}
	if err := r.post(ctx, "/tokenize", map[string]any{"text": text}, &result); err != nil {
		return nil, err
	}
	return result.IDs, nil
}

// Decode turns token ids back into text.
func (r *RemoteBackend) Decode(ctx context.Context, ids []uint32) (string, error) {
	var result struct {
		Text string `json:"text"`
	}
	if err := r.post(ctx, "/decode", map[string]any{"ids": ids}, &result); err != nil {
		return "", err
	}
	return result.Text, nil
}

// Infer returns the softmax scores for text in negative, neutral, positive
// order.
func (r *RemoteBackend) Infer(ctx context.Context, text string) (sentiment.Scores, error) {
	var result struct {
		Scores []float64 `json:"scores"`
	}
	if err := r.post(ctx, "/predict", map[string]any{"text": text}, &result); err != nil {
		return sentiment.Scores{}, err
	}
	if len(result.Scores) != sentiment.NumClasses {
		return sentiment.Scores{}, fmt.Errorf("model server returned %d scores, want %d", len(result.Scores), sentiment.NumClasses)
	}
	var s sentiment.Scores
	copy(s[:], result.Scores)
	return s, nil
}

func (r *RemoteBackend) post(ctx context.Context, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", r.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("model server error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("model server %s returned %d: %s", path, resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
