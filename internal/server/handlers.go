package server

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/learncatalog/internal/auth"
	"github.com/mohammad-safakhou/learncatalog/mcp"
	"go.uber.org/zap"
)

// postMessage
//
//	@Summary	Deliver one JSON-RPC message
//	@Tags		mcp
//	@Accept		json
//	@Produce	json
//	@Param		Mcp-Session-Id			header	string	false	"Session issued by initialize"
//	@Param		MCP-Protocol-Version	header	string	false	"Must equal 2025-06-18 when present"
//	@Success	200	{object}	mcp.Response
//	@Success	202	"Notification or response accepted"
//	@Failure	400	{object}	mcp.Response
//	@Failure	404	{object}	mcp.Response
//	@Router		/mcp [post]
func (s *Server) postMessage(c echo.Context) error {
	req := c.Request()
	if !acceptsJSON(req.Header.Get(echo.HeaderAccept)) {
		return c.JSON(http.StatusBadRequest, mcp.NewErrorResponse(mcp.CodeInvalidRequest,
			"Accept header must include application/json, text/event-stream, or */*"))
	}
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return err
	}

	inbound := req.Header.Get(mcp.HeaderSessionID)
	out := s.router.Handle(req.Context(), mcp.Inbound{
		SessionID:       inbound,
		ProtocolVersion: req.Header.Get(mcp.HeaderProtocolVersion),
		Body:            body,
	})
	if out.SessionID != "" {
		c.Response().Header().Set(mcp.HeaderSessionID, out.SessionID)
		if out.SessionID != inbound {
			s.logger.Info("session opened", s.clientFields(c, zap.String("session_id", out.SessionID))...)
		}
	}
	if out.Response == nil {
		return c.NoContent(out.Status)
	}
	return c.JSON(out.Status, out.Response)
}

// openStream answers GET /mcp. Server-initiated streams are not offered.
func (s *Server) openStream(c echo.Context) error {
	msg := "Method not allowed - use POST for MCP messages"
	if strings.Contains(c.Request().Header.Get(echo.HeaderAccept), "text/event-stream") {
		msg = "Server-initiated SSE streams not supported"
	}
	return c.JSON(http.StatusMethodNotAllowed, mcp.NewErrorResponse(mcp.CodeMethodNotFound, msg))
}

// terminate
//
//	@Summary	End a session
//	@Tags		mcp
//	@Param		Mcp-Session-Id	header	string	true	"Session to end"
//	@Success	200
//	@Failure	400	{object}	mcp.Response
//	@Failure	404	{object}	mcp.Response
//	@Router		/mcp [delete]
func (s *Server) terminate(c echo.Context) error {
	id := c.Request().Header.Get(mcp.HeaderSessionID)
	if id == "" {
		return c.JSON(http.StatusBadRequest, mcp.NewErrorResponse(mcp.CodeInvalidRequest, "Missing "+mcp.HeaderSessionID+" header"))
	}
	removed, err := s.router.Terminate(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if !removed {
		return c.JSON(http.StatusNotFound, mcp.NewErrorResponse(mcp.CodeSessionNotFound, "Session not found"))
	}
	s.logger.Info("session closed by client", s.clientFields(c, zap.String("session_id", id))...)
	return c.NoContent(http.StatusOK)
}

// clientFields adds the bearer token subject, when auth is on, and the
// remote address to fields.
func (s *Server) clientFields(c echo.Context, fields ...zap.Field) []zap.Field {
	if sub, ok := auth.SubjectFromContext(c.Request().Context()); ok {
		fields = append(fields, zap.String("subject", sub))
	}
	return append(fields, zap.String("remote", c.RealIP()))
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Protocol  string    `json:"protocol"`
	Uptime    string    `json:"uptime"`
	Sessions  *int      `json:"sessions,omitempty"`
}

func (s *Server) health(c echo.Context) error {
	resp := healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   s.opts.Info.Version,
		Protocol:  mcp.ProtocolVersion,
		Uptime:    time.Since(s.started).Round(time.Second).String(),
	}
	if s.opts.Sessions != nil {
		n, err := s.opts.Sessions.Count(c.Request().Context())
		if err != nil {
			s.logger.Warn("session count unavailable", zap.Error(err))
			resp.Status = "degraded"
		} else {
			resp.Sessions = &n
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) describe(c echo.Context) error {
	endpoints := map[string]string{"mcp": "/mcp", "health": "/health"}
	if s.opts.Metrics != nil {
		endpoints["metrics"] = "/metrics"
	}
	return c.JSON(http.StatusOK, map[string]any{
		"name":        s.opts.Info.Name,
		"description": "HTTP MCP server for the Microsoft Learn catalog",
		"version":     s.opts.Info.Version,
		"protocol":    mcp.ProtocolVersion,
		"endpoints":   endpoints,
	})
}

func acceptsJSON(accept string) bool {
	if accept == "" {
		return true
	}
	for _, ok := range []string{echo.MIMEApplicationJSON, "text/event-stream", "*/*"} {
		if strings.Contains(accept, ok) {
			return true
		}
	}
	return false
}
