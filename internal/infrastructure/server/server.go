package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	_ "github.com/keladiary/core/docs"
	httpHandlers "github.com/keladiary/core/internal/adapters/http"
	"github.com/keladiary/core/internal/adapters/repository"
	"github.com/keladiary/core/internal/infrastructure/config"
	"github.com/keladiary/core/internal/infrastructure/logger"
)

const proxyPath = "/api/openrouter"

// Server represents the HTTP server
type Server struct {
	echo   *echo.Echo
	config *config.Config
	logger *logger.Logger
	app    *App
}

// New creates a new server instance
func New(cfg *config.Config, app *App, appLogger *logger.Logger) *Server {
	e := echo.New()
	e.Validator = httpHandlers.NewValidator()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = httpHandlers.ErrorHandler(appLogger)

	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout
	e.Server.IdleTimeout = cfg.Server.IdleTimeout

	s := &Server{
		echo:   e,
		config: cfg,
		logger: appLogger,
		app:    app,
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())

	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogError:     true,
		LogRemoteIP:  true,
		LogUserAgent: true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, values middleware.RequestLoggerValues) error {
			fields := []interface{}{
				"method", values.Method,
				"uri", values.URI,
				"status", values.Status,
				"latency_ms", float64(values.Latency.Nanoseconds()) / 1000000,
				"remote_ip", values.RemoteIP,
				"user_agent", values.UserAgent,
				"request_id", values.RequestID,
			}
			if id, ok := userIDFromContext(c); ok {
				fields = append(fields, "user_id", id)
			}

			if values.Error != nil {
				fields = append(fields, "error", values.Error.Error())
				s.logger.Errorw("HTTP request failed", fields...)
			} else {
				s.logger.Infow("HTTP request", fields...)
			}
			return nil
		},
	}))

	if s.app.Metrics != nil {
		s.echo.Use(s.app.Metrics.Middleware())
	}

	// The proxy answers its own preflight and sets its own CORS headers.
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		Skipper:      isProxyRoute,
		AllowOrigins: splitOrigins(s.config.Security.CORSAllowedOrigins),
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowMethods: []string{http.MethodGet, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
	}))

	if limit := s.config.Security.RateLimitRequests; limit > 0 {
		window := s.config.Security.RateLimitWindow
		if window <= 0 {
			window = time.Minute
		}
		s.echo.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
			Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(float64(limit) / window.Seconds()),
				Burst:     limit,
				ExpiresIn: window,
			}),
			IdentifierExtractor: func(ctx echo.Context) (string, error) {
				return ctx.RealIP(), nil
			},
			ErrorHandler: func(c echo.Context, err error) error {
				return c.JSON(http.StatusForbidden, httpHandlers.ErrorResponse{Error: "rate limit exceeded"})
			},
			DenyHandler: func(c echo.Context, identifier string, err error) error {
				s.logger.LogSecurityEvent("rate_limited", "", identifier, map[string]interface{}{"path": c.Path()})
				return c.JSON(http.StatusTooManyRequests, httpHandlers.ErrorResponse{Error: "rate limit exceeded"})
			},
		}))
	}

	s.echo.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		Skipper:               func(c echo.Context) bool { return strings.HasPrefix(c.Path(), "/swagger") },
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'self'",
	}))

	// Streams run for as long as the provider keeps sending.
	if timeout := s.config.Server.RequestTimeout; timeout > 0 {
		s.echo.Use(middleware.ContextTimeoutWithConfig(middleware.ContextTimeoutConfig{
			Skipper: func(c echo.Context) bool {
				return isProxyRoute(c) || strings.HasSuffix(c.Path(), "/stream")
			},
			Timeout: timeout,
		}))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/health/detailed", s.detailedHealthCheck)
	s.echo.GET("/ready", s.readinessCheck)
	s.echo.GET("/swagger/*", echoSwagger.WrapHandler)

	if s.app.Metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.app.Metrics.Handler()))
	}

	proxy := httpHandlers.NewProviderProxy(s.config.Proxy, s.logger)
	s.echo.Any(proxyPath, proxy.Handle)
	s.echo.Any(proxyPath+"/chat/completions", proxy.Handle)

	var protected []echo.MiddlewareFunc
	if s.config.Security.RequireAuth {
		protected = append(protected, s.authMiddleware())
	}

	handlers := &httpHandlers.Handlers{
		Auth:     httpHandlers.NewAuthHandler(s.app.Auth, s.logger),
		Notes:    httpHandlers.NewNoteHandler(s.app.Notes, s.logger),
		Todos:    httpHandlers.NewTodoHandler(s.app.Todos, s.logger),
		Boards:   httpHandlers.NewBoardHandler(s.app.Boards, s.logger),
		Calendar: httpHandlers.NewCalendarHandler(s.app.Calendar, s.app.Location, s.logger),
		Chat:     httpHandlers.NewChatHandler(s.app.Chat, s.logger),
		Themes:   httpHandlers.NewThemeHandler(s.app.Themes, s.logger),
	}
	handlers.Register(s.echo.Group("/api/v1"), protected...)
}

// Health check handlers
func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) detailedHealthCheck(c echo.Context) error {
	status := "ok"
	checks := make(map[string]interface{})

	if err := s.pingStore(c.Request().Context()); err != nil {
		status = "error"
		checks["storage"] = map[string]interface{}{
			"status":  "error",
			"backend": s.config.Storage.Backend,
			"error":   err.Error(),
		}
	} else {
		checks["storage"] = map[string]interface{}{
			"status":  "ok",
			"backend": s.config.Storage.Backend,
		}
	}

	checks["chat"] = map[string]interface{}{
		"provider":   s.config.AI.Provider,
		"configured": s.app.Completer != nil,
		"last_error": s.app.Chat.LastError(),
	}
	checks["calendar"] = map[string]interface{}{
		"mirror":     s.app.Mirror != nil,
		"events":     len(s.app.Calendar.Events()),
		"last_error": s.app.Calendar.LastError(),
	}

	response := map[string]interface{}{
		"status": status,
		"time":   time.Now().UTC().Format(time.RFC3339),
		"checks": checks,
		"version": map[string]string{
			"app": s.config.App.Version,
			"go":  runtime.Version(),
		},
	}

	if status == "ok" {
		return c.JSON(http.StatusOK, response)
	}
	return c.JSON(http.StatusServiceUnavailable, response)
}

func (s *Server) readinessCheck(c echo.Context) error {
	if err := s.pingStore(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"reason": "storage_not_ready",
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) pingStore(ctx context.Context) error {
	if p, ok := s.app.Store.(repository.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Run serves HTTP and the background workers until ctx ends, then shuts the
// server down gracefully.
func (s *Server) Run(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Infow("Starting server", "address", address)
		if err := s.echo.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return s.app.RunWorkers(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		timeout := s.config.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Infow("Shutting down server")
	return s.echo.Shutdown(ctx)
}

func isProxyRoute(c echo.Context) bool {
	return strings.HasPrefix(c.Path(), proxyPath)
}

func splitOrigins(raw string) []string {
	var out []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
