package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/TobiSchelling/sentimcp/internal/sentiment"
)

// logPreview is how much of each request and response line is logged.
const logPreview = 100

// Analyzer classifies one text.
type Analyzer interface {
	AnalyzeText(ctx context.Context, text string) (sentiment.Result, error)
}

// Server answers MCP requests one line at a time.
type Server struct {
	analyzer Analyzer
	logger   *slog.Logger
	info     ServerInfo
}

// NewServer creates a Server. A nil logger uses slog.Default.
func NewServer(analyzer Analyzer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		analyzer: analyzer,
		logger:   logger,
		info:     ServerInfo{Name: "sentiment-analyzer", Version: "1.0.0"},
	}
}

// Serve reads requests from r until EOF and writes exactly one response
// line to w per input line, including blank and malformed lines. A failing
// request never stops the loop; only read or write errors do.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	s.logger.Info("stdio server started")

	reader := bufio.NewReader(r)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, readErr := reader.ReadString('\n')
		if len(line) > 0 {
			resp := s.HandleLine(ctx, []byte(line))
			if err := s.write(enc, resp); err != nil {
				return err
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				s.logger.Info("stdin closed, stopping stdio server")
				return nil
			}
			return fmt.Errorf("reading request: %w", readErr)
		}
	}
}

func (s *Server) write(enc *json.Encoder, resp *Response) error {
	if err := enc.Encode(resp); err != nil {
		return fmt.Errorf("writing response: %w", err)
	}
	if s.logger.Enabled(context.Background(), slog.LevelInfo) {
		out, _ := json.Marshal(resp)
		s.logger.Info("response sent", slog.String("line", truncate(string(out), logPreview)))
	}
	return nil
}

// HandleLine turns one request line into its response.
func (s *Server) HandleLine(ctx context.Context, line []byte) *Response {
	s.logger.Info("request received", slog.String("line", truncate(string(bytes.TrimSpace(line)), logPreview)))

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(line, &envelope); err != nil {
		return s.fail(nil, protocolError(fmt.Errorf("parse error: %w", err)))
	}
	if envelope == nil {
		return s.fail(nil, protocolError(errors.New("request must be an object")))
	}
	id := envelope["id"]

	var name string
	if raw, ok := envelope["method"]; ok {
		if err := json.Unmarshal(raw, &name); err != nil {
			return s.fail(id, protocolError(errors.New("method must be a string")))
		}
	}
	method := ParseMethod(name)
	s.logger.Debug("dispatching", slog.String("method", name))

	result, err := handlers[method](s, ctx, envelope["params"])
	if err != nil {
		return s.fail(id, err)
	}
	return newSuccessResponse(id, result)
}

func (s *Server) fail(id json.RawMessage, err error) *Response {
	kind := errorKind(err)
	s.logger.Warn("request failed", slog.String("kind", kind), slog.Any("error", err))
	return newErrorResponse(id, err.Error(), kind)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
