// Package http serves the operational endpoints of wonquotes: /health and
// /metrics. There is no pricing API over HTTP.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/wonquotes/internal/oracle"
	"github.com/fyrsmithlabs/wonquotes/internal/telemetry"
)

// HealthChecker reports pricing readiness.
type HealthChecker interface {
	HealthCheck(ctx context.Context) oracle.Health
}

// TelemetryHealth reports exporter state.
type TelemetryHealth interface {
	Health() telemetry.HealthStatus
}

// Config holds HTTP server configuration.
type Config struct {
	Addr string
}

// Server provides the operational endpoints.
type Server struct {
	echo      *echo.Echo
	health    HealthChecker
	telemetry TelemetryHealth
	gatherer  prometheus.Gatherer
	logger    *zap.Logger
	config    *Config
	version   string
}

// Option configures a Server.
type Option func(*Server)

// WithTelemetry adds exporter state to /health.
func WithTelemetry(t TelemetryHealth) Option {
	return func(s *Server) { s.telemetry = t }
}

// WithVersion reports a build version on /health.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithMeterProvider records request metrics through mp.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Server) {
		s.echo.Use(NewHTTPMetrics(mp, s.logger).MetricsMiddleware())
	}
}

// NewServer creates the operational server. gatherer backs /metrics; nil
// means prometheus.DefaultGatherer.
func NewServer(health HealthChecker, gatherer prometheus.Gatherer, logger *zap.Logger, cfg *Config, opts ...Option) (*Server, error) {
	if health == nil {
		return nil, errors.New("health checker cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Addr: "127.0.0.1:9464"}
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger(logger))

	s := &Server{
		echo:     e,
		health:   health,
		gatherer: gatherer,
		logger:   logger,
		config:   cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerRoutes()
	return s, nil
}

func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Debug("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	}
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	oracle.Health
	Version   string                  `json:"version,omitempty"`
	Telemetry *telemetry.HealthStatus `json:"telemetry,omitempty"`
}

// handleHealth always answers 200; an empty knowledge base is reported as
// degraded in the body.
func (s *Server) handleHealth(c echo.Context) error {
	resp := HealthResponse{
		Health:  s.health.HealthCheck(c.Request().Context()),
		Version: s.version,
	}
	if s.telemetry != nil {
		th := s.telemetry.Health()
		resp.Telemetry = &th
	}
	return c.JSON(http.StatusOK, resp)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting http server", zap.String("addr", s.config.Addr))
	if err := s.echo.Start(s.config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
