package httpserver

import (
	"errors"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/wspush/internal/domain"
	"github.com/pscheid92/wspush/internal/geo"
	apperrors "github.com/pscheid92/wspush/internal/platform/errors"
)

type broadcastRequest struct {
	Message string `json:"message"`
}

func (s *Server) registerAPIRoutes() {
	api := s.echo.Group("/api")
	api.POST("/broadcast", s.handleBroadcast, s.requireToken)
	api.GET("/connections", s.handleConnections)
	api.GET("/geocode", s.handleGeocode)
}

func (s *Server) handleBroadcast(c echo.Context) error {
	var req broadcastRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if req.Message == "" {
		return apperrors.ValidationError(domain.ErrEmptyMessage.Error()).WithData("field", "message")
	}
	if s.publisher == nil {
		return apperrors.UnavailableError("broadcasting is not configured")
	}

	ctx := c.Request().Context()
	result, err := s.publisher.Publish(ctx, req.Message)
	if err != nil {
		return apperrors.ExternalError("failed to publish broadcast", err)
	}

	attrs := []any{"size", len(req.Message), "targets", result.Targets, "relayed", result.Relayed}
	if claims, ok := claimsFrom(c); ok {
		attrs = append(attrs, "subject", claims.Subject, "role", claims.Role.String())
	}
	slog.InfoContext(ctx, "Broadcast triggered", attrs...)

	return writeOK(c, result)
}

func (s *Server) handleConnections(c echo.Context) error {
	count := 0
	if s.connections != nil {
		count = s.connections.Len()
	}
	return writeOK(c, map[string]int{"count": count})
}

func (s *Server) handleGeocode(c echo.Context) error {
	if s.geocoder == nil {
		return apperrors.UnavailableError("geocoding is not configured")
	}

	result, err := s.geocoder.Lookup(c.Request().Context(), c.QueryParam("address"))
	if err != nil {
		if errors.Is(err, geo.ErrEmptyAddress) {
			return apperrors.ValidationError("address is required").WithData("field", "address")
		}
		return apperrors.ExternalError("geocoding service unavailable", err)
	}
	return writeOK(c, result)
}
