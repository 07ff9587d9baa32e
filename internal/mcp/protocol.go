// Package mcp serves the analyze_sentiment tool over line-delimited
// JSON-RPC 2.0 on stdio, following the Model Context Protocol.
package mcp

import "encoding/json"

// ProtocolVersion is the MCP revision announced by initialize.
const ProtocolVersion = "2024-11-05"

// ErrorCode is a JSON-RPC error code.
type ErrorCode int

// CodeInternalError is used for every failure, as MCP clients expect.
const CodeInternalError ErrorCode = -32603

// ErrorPayload is the error member of a failed response.
type ErrorPayload struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Data    any       `json:"data,omitempty"`
}

// Response is one output line. ID is echoed verbatim from the request and
// marshals as null when the request could not be parsed.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *ErrorPayload   `json:"error,omitempty"`
}

func newSuccessResponse(id json.RawMessage, result any) *Response {
	return &Response{JSONRPC: "2.0", ID: id, Result: result}
}

func newErrorResponse(id json.RawMessage, message string, kind string) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      id,
		Error: &ErrorPayload{
			Code:    CodeInternalError,
			Message: message,
			Data:    map[string]string{"kind": kind},
		},
	}
}

// ServerInfo identifies the server in the initialize result.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeResult is the fixed initialize descriptor.
type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      ServerInfo     `json:"serverInfo"`
}

// ToolInputSchema is the JSON Schema subset used to describe tool input.
type ToolInputSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]PropertyDetail `json:"properties,omitempty"`
	Required   []string                  `json:"required,omitempty"`
}

// PropertyDetail describes one tool input property.
type PropertyDetail struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// Tool describes a callable tool.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema ToolInputSchema `json:"inputSchema"`
}

// ListToolsResult is the tools/list result.
type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

// Content is one element of a tool result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CallToolResult is the tools/call result.
type CallToolResult struct {
	Content []Content `json:"content"`
}

// callToolParams are the params of tools/call.
type callToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}
