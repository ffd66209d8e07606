// Package httpserver exposes the HTTP and WebSocket surface of wspush.
package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/wspush/internal/adapter/metrics"
	"github.com/pscheid92/wspush/internal/domain"
	"github.com/pscheid92/wspush/internal/geo"
	"github.com/pscheid92/wspush/internal/platform/config"
	"github.com/pscheid92/wspush/internal/platform/token"
)

type tokenParser interface {
	Parse(raw string) (token.Claims, error)
}

type geocoder interface {
	Lookup(ctx context.Context, address string) (*geo.Result, error)
}

// Dependencies are the collaborators the server routes requests to. Nil
// optional members switch the matching feature off.
type Dependencies struct {
	Connections      domain.ConnectionCounter
	Publisher        domain.Publisher
	Tokens           tokenParser
	WebSocketHandler http.Handler
	Limits           *ConnectionLimits

	Geocoder       geocoder
	HTTPMetrics    *metrics.HTTPMetrics
	LimitMetrics   *metrics.LimitMetrics
	MetricsHandler http.Handler
	HealthChecks   []HealthCheck
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	connections      domain.ConnectionCounter
	publisher        domain.Publisher
	tokens           tokenParser
	websocketHandler http.Handler
	limits           *ConnectionLimits
	geocoder         geocoder

	httpMetrics    *metrics.HTTPMetrics
	limitMetrics   *metrics.LimitMetrics
	metricsHandler http.Handler
	healthChecks   []HealthCheck
	startTime      time.Time
}

func NewServer(cfg *config.Config, deps Dependencies) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:             e,
		config:           cfg,
		connections:      deps.Connections,
		publisher:        deps.Publisher,
		tokens:           deps.Tokens,
		websocketHandler: deps.WebSocketHandler,
		limits:           deps.Limits,
		geocoder:         deps.Geocoder,
		httpMetrics:      deps.HTTPMetrics,
		limitMetrics:     deps.LimitMetrics,
		metricsHandler:   deps.MetricsHandler,
		healthChecks:     deps.HealthChecks,
		startTime:        time.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// ServeHTTP lets the server be driven directly by httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
