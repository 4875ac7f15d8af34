package mcp

import (
	"bytes"
	"encoding/json"
)

const (
	// ProtocolVersion is the only MCP revision the server speaks.
	ProtocolVersion = "2025-06-18"
	jsonRPCVersion  = "2.0"

	HeaderSessionID       = "Mcp-Session-Id"
	HeaderProtocolVersion = "MCP-Protocol-Version"
)

// Kind classifies an inbound message.
type Kind string

const (
	KindRequest      Kind = "request"
	KindNotification Kind = "notification"
	KindResponse     Kind = "response"
)

// Message is the JSON-RPC envelope shared by requests, notifications and
// responses.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
}

func (m *Message) hasID() bool {
	id := bytes.TrimSpace(m.ID)
	return len(id) > 0 && !bytes.Equal(id, []byte("null"))
}

// Kind reports what the message is. Anything without a method is treated as
// a bare response.
func (m *Message) Kind() Kind {
	switch {
	case m.Method == "":
		return KindResponse
	case m.hasID():
		return KindRequest
	default:
		return KindNotification
	}
}

// Response answers exactly one request. Result and Error are never both set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is the wire form of a JSON-RPC error.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

var nullID = json.RawMessage("null")

func resultResponse(id json.RawMessage, result any) *Response {
	return &Response{JSONRPC: jsonRPCVersion, ID: idOrNull(id), Result: result}
}

func errorResponse(id json.RawMessage, e *Error) *Response {
	return &Response{
		JSONRPC: jsonRPCVersion,
		ID:      idOrNull(id),
		Error:   &RPCError{Code: e.Code, Message: e.Message, Data: e.Data},
	}
}

// NewErrorResponse builds an error reply that is not tied to a request id,
// for failures a transport detects before the router runs.
func NewErrorResponse(code int, message string) *Response {
	return errorResponse(nil, &Error{Code: code, Message: message})
}

func idOrNull(id json.RawMessage) json.RawMessage {
	if len(bytes.TrimSpace(id)) == 0 {
		return nullID
	}
	return id
}

// ServerInfo is advertised in the initialize result.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type initializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	ServerInfo      ServerInfo     `json:"serverInfo"`
	Capabilities    map[string]any `json:"capabilities"`
}

type callParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}
