//go:build !ORT

package backend

import (
	"errors"

	"github.com/TobiSchelling/sentimcp/internal/sentiment"
)

// ErrONNXUnavailable is returned when the binary was built without
// onnxruntime support.
var ErrONNXUnavailable = errors.New("onnx backend not compiled in: rebuild with -tags ORT or use the remote or lexicon backend")

// NewONNXBackend always fails in builds without the ORT tag.
func NewONNXBackend(ONNXOptions) (sentiment.Backend, error) {
	return nil, ErrONNXUnavailable
}
