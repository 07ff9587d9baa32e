package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/TobiSchelling/sentimcp/internal/sentiment"
)

// Method is a recognized JSON-RPC method.
type Method int

const (
	MethodUnrecognized Method = iota
	MethodInitialize
	MethodToolsList
	MethodToolsCall
)

var methodNames = map[string]Method{
	"initialize": MethodInitialize,
	"tools/list": MethodToolsList,
	"tools/call": MethodToolsCall,
}

// ParseMethod maps a method name to a Method. Unknown names map to
// MethodUnrecognized.
func ParseMethod(name string) Method {
	return methodNames[name]
}

// ToolName is a tool exposed through tools/call.
type ToolName int

const (
	ToolUnrecognized ToolName = iota
	ToolAnalyzeSentiment
)

// ParseTool maps a tool name to a ToolName.
func ParseTool(name string) ToolName {
	if name == "analyze_sentiment" {
		return ToolAnalyzeSentiment
	}
	return ToolUnrecognized
}

var analyzeSentimentTool = Tool{
	Name:        "analyze_sentiment",
	Description: "Analyze sentiment of French text (positive, neutral, negative)",
	InputSchema: ToolInputSchema{
		Type: "object",
		Properties: map[string]PropertyDetail{
			"text": {Type: "string", Description: "The text to analyze"},
		},
		Required: []string{"text"},
	},
}

type handlerFunc func(s *Server, ctx context.Context, params json.RawMessage) (any, error)

var handlers = map[Method]handlerFunc{
	MethodInitialize:   (*Server).initialize,
	MethodToolsList:    (*Server).listTools,
	MethodToolsCall:    (*Server).callTool,
	MethodUnrecognized: (*Server).ignore,
}

func (s *Server) initialize(_ context.Context, _ json.RawMessage) (any, error) {
	return InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    map[string]any{"tools": map[string]any{}},
		ServerInfo:      s.info,
	}, nil
}

func (s *Server) listTools(_ context.Context, _ json.RawMessage) (any, error) {
	return ListToolsResult{Tools: []Tool{analyzeSentimentTool}}, nil
}

func (s *Server) ignore(_ context.Context, _ json.RawMessage) (any, error) {
	return map[string]any{}, nil
}

func (s *Server) callTool(ctx context.Context, raw json.RawMessage) (any, error) {
	p, err := decodeCallParams(raw)
	if err != nil {
		return nil, err
	}

	switch ParseTool(p.Name) {
	case ToolAnalyzeSentiment:
		text, ok := p.Arguments["text"]
		if !ok {
			return nil, sentiment.ValidationError("missing required argument: text")
		}
		res, err := s.analyzer.AnalyzeText(ctx, sentiment.NormalizeAny(text))
		if err != nil {
			return nil, err
		}
		out, err := json.Marshal(res)
		if err != nil {
			return nil, fmt.Errorf("encoding tool result: %w", err)
		}
		return CallToolResult{Content: []Content{{Type: "text", Text: string(out)}}}, nil
	default:
		return nil, sentiment.ValidationError("unknown tool: %s", p.Name)
	}
}

func decodeCallParams(raw json.RawMessage) (callToolParams, error) {
	var p callToolParams
	if len(raw) == 0 || string(raw) == "null" {
		return p, sentiment.ValidationError("missing params")
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return p, protocolError(fmt.Errorf("params must be an object: %w", err))
	}
	if _, ok := m["name"]; !ok {
		return p, sentiment.ValidationError("missing required field: name")
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &p,
		TagName: "json",
	})
	if err != nil {
		return p, fmt.Errorf("creating params decoder: %w", err)
	}
	if err := decoder.Decode(m); err != nil {
		return p, protocolError(fmt.Errorf("invalid params: %w", err))
	}
	return p, nil
}

// ProtocolError marks requests that are not valid JSON-RPC.
type ProtocolError struct {
	Err error
}

func (e *ProtocolError) Error() string { return e.Err.Error() }
func (e *ProtocolError) Unwrap() error { return e.Err }

func protocolError(err error) error {
	return &ProtocolError{Err: err}
}

// errorKind names the error class reported in error.data.kind.
func errorKind(err error) string {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return "protocol"
	}
	return sentiment.KindOf(err).String()
}
