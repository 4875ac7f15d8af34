package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mohammad-safakhou/learncatalog/internal/auth"
	"github.com/mohammad-safakhou/learncatalog/mcp"
	"go.uber.org/zap"
)

// SessionCounter reports how many sessions are live, for /health.
type SessionCounter interface {
	Count(ctx context.Context) (int, error)
}

type Options struct {
	AllowedOrigins []string
	// JWTSecret guards /mcp with bearer tokens when set.
	JWTSecret    []byte
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	BodyLimit    string
	Info         mcp.ServerInfo
	Sessions     SessionCounter
	Metrics      http.Handler
	Logger       *zap.Logger
}

// Server is the HTTP transport in front of the MCP router.
type Server struct {
	echo    *echo.Echo
	router  *mcp.Router
	opts    Options
	logger  *zap.Logger
	started time.Time
}

func New(router *mcp.Router, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.BodyLimit == "" {
		opts.BodyLimit = "4M"
	}
	s := &Server{
		echo:    echo.New(),
		router:  router,
		opts:    opts,
		logger:  opts.Logger.Named("http"),
		started: time.Now(),
	}
	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = opts.ReadTimeout
	e.Server.WriteTimeout = opts.WriteTimeout
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			s.logger.Debug("request", fields...)
			return nil
		},
	}))
	e.Use(securityHeaders)
	e.Use(middleware.CORSWithConfig(corsConfig(opts.AllowedOrigins)))
	e.Use(middleware.BodyLimit(opts.BodyLimit))

	e.GET("/", s.describe)
	e.GET("/health", s.health)
	if opts.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(opts.Metrics))
	}

	g := e.Group("/mcp")
	if len(opts.JWTSecret) > 0 {
		g.Use(auth.EchoMiddleware(opts.JWTSecret))
	}
	g.POST("", s.postMessage)
	g.GET("", s.openStream)
	g.DELETE("", s.terminate)
	return s
}

// Handler exposes the echo instance, mostly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("listening", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func corsConfig(origins []string) middleware.CORSConfig {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return middleware.CORSConfig{
		AllowOrigins:  origins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, mcp.HeaderSessionID, mcp.HeaderProtocolVersion},
		ExposeHeaders: []string{mcp.HeaderSessionID},
	}
}

func securityHeaders(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		h := c.Response().Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-XSS-Protection", "1; mode=block")
		return next(c)
	}
}

// handleError writes echo errors as JSON, the way every other reply is shaped.
func (s *Server) handleError(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
	}
	req := c.Request()
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Int("status", code), zap.String("method", req.Method),
			zap.String("path", req.URL.Path), zap.String("remote", c.RealIP()), zap.Error(err))
	} else {
		s.logger.Debug("request rejected", zap.Int("status", code), zap.String("method", req.Method),
			zap.String("path", req.URL.Path), zap.Error(err))
	}
	if !c.Response().Committed {
		if req.Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, map[string]any{"error": msg})
	}
}
