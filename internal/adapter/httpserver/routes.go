package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

var corsAllowHeaders = []string{
	"Authorization", "Content-Type", "Depth", "User-Agent", "X-File-Size",
	"X-Requested-With", "X-Requested-By", "If-Modified-Since", "X-File-Name",
	"X-File-Type", "Cache-Control", "Origin", "Locale",
	"Access-Control-Allow-Headers", "Access-Control-Request-Method",
	"Access-Control-Request-Headers", "Access-Control-Allow-Credentials",
	"Accept", "X-Auth-Token", "X-Accept-Charset", "X-Accept", "X-Request-ID",
}

func (s *Server) registerRoutes() {
	s.echo.HTTPErrorHandler = s.handleHTTPError

	s.echo.Use(correlationMiddleware)
	s.echo.Use(s.setupRequestLoggerMiddleware())
	s.echo.Use(requestDumpMiddleware)
	s.echo.Use(middleware.Recover())
	s.echo.Use(setupCORSMiddleware())
	if s.httpMetrics != nil {
		s.echo.Use(s.httpMetrics.Middleware())
	}
	s.echo.Use(ErrorHandlingMiddleware())

	s.registerHealthRoutes()
	s.registerExampleRoutes()
	s.registerAPIRoutes()

	if s.websocketHandler != nil {
		s.echo.GET("/ws", echo.WrapHandler(s.websocketHandler), s.connectionLimitMiddleware)
	}
	if s.metricsHandler != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metricsHandler))
	}
}

// setupRequestLoggerMiddleware writes one access-log line per request, at a
// level chosen by status: Info below 400, Warn below 500, Error otherwise.
func (s *Server) setupRequestLoggerMiddleware() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", float64(v.Latency.Microseconds()) / 1000,
				"remote_ip", v.RemoteIP,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}

			ctx := c.Request().Context()
			switch {
			case v.Status < http.StatusBadRequest:
				slog.InfoContext(ctx, "Request", attrs...)
			case v.Status < http.StatusInternalServerError:
				slog.WarnContext(ctx, "Request", attrs...)
			default:
				slog.ErrorContext(ctx, "Request", attrs...)
			}
			return nil
		},
	})
}

// setupCORSMiddleware reflects any request origin and allows credentials.
// Preflight requests are answered with 204.
func setupCORSMiddleware() echo.MiddlewareFunc {
	return middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOriginFunc:  func(string) (bool, error) { return true, nil },
		AllowMethods:     []string{http.MethodPost, http.MethodGet, http.MethodOptions, http.MethodPut, http.MethodDelete},
		AllowHeaders:     corsAllowHeaders,
		AllowCredentials: true,
	})
}
