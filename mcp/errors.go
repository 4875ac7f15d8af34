package mcp

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/mohammad-safakhou/learncatalog/catalog"
	"github.com/mohammad-safakhou/learncatalog/mcp/tools"
	"github.com/mohammad-safakhou/learncatalog/scraper"
	"github.com/mohammad-safakhou/learncatalog/session"
)

// JSON-RPC error codes. The -320xx range carries session conditions.
const (
	CodeParseError      = -32700
	CodeInvalidRequest  = -32600
	CodeMethodNotFound  = -32601
	CodeInvalidParams   = -32602
	CodeInternalError   = -32603
	CodeSessionNotFound = -32001
	CodeSessionExpired  = -32002
	CodeNotInitialized  = -32003
)

// Error is a protocol failure with its JSON-RPC code and the HTTP status the
// transport should use.
type Error struct {
	Code    int
	Message string
	Data    any
	Status  int
}

func (e *Error) Error() string {
	return fmt.Sprintf("mcp error %d: %s", e.Code, e.Message)
}

func newError(status, code int, format string, args ...any) *Error {
	return &Error{Status: status, Code: code, Message: fmt.Sprintf(format, args...)}
}

// upstreamData is attached to internal errors caused by the catalog.
type upstreamData struct {
	Status int    `json:"status"`
	Body   string `json:"body,omitempty"`
}

// asError maps any error raised while handling a request to exactly one
// protocol error.
func asError(err error) *Error {
	var (
		protoErr *Error
		argErr   *tools.ArgumentError
		apiErr   *catalog.APIError
	)
	switch {
	case errors.As(err, &protoErr):
		return protoErr
	case errors.Is(err, session.ErrSessionExpired):
		return newError(http.StatusNotFound, CodeSessionExpired, "Session expired")
	case errors.Is(err, session.ErrSessionNotFound):
		return newError(http.StatusNotFound, CodeSessionNotFound, "Session not found")
	case errors.Is(err, tools.ErrUnknownTool):
		return &Error{Status: http.StatusOK, Code: CodeMethodNotFound, Message: err.Error()}
	case errors.As(err, &argErr), errors.Is(err, scraper.ErrMissingInput):
		return &Error{Status: http.StatusOK, Code: CodeInvalidParams, Message: "Invalid params", Data: err.Error()}
	case errors.As(err, &apiErr):
		return &Error{
			Status:  http.StatusOK,
			Code:    CodeInternalError,
			Message: "Catalog request failed",
			Data:    upstreamData{Status: apiErr.Status, Body: apiErr.Body},
		}
	default:
		return &Error{Status: http.StatusOK, Code: CodeInternalError, Message: "Internal error", Data: err.Error()}
	}
}
