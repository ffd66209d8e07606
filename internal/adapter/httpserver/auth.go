package httpserver

import (
	"log/slog"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/wspush/internal/domain"
	apperrors "github.com/pscheid92/wspush/internal/platform/errors"
	"github.com/pscheid92/wspush/internal/platform/token"
)

const (
	claimsKey  = "claims"
	subjectKey = "subject"
)

// requireToken admits requests carrying a valid bearer token. Missing or
// invalid tokens get 401; disabled accounts get 403.
func (s *Server) requireToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
		if !ok || s.tokens == nil {
			return apperrors.UnauthorizedError("")
		}

		claims, err := s.tokens.Parse(raw)
		if err != nil {
			return apperrors.UnauthorizedError("")
		}

		if claims.Status == domain.StatusDisabled {
			slog.WarnContext(c.Request().Context(), "Blocked request from disabled account", "subject", claims.Subject, "username", claims.Username)
			return apperrors.ForbiddenError("")
		}

		c.Set(claimsKey, claims)
		c.Set(subjectKey, claims.Subject)
		return next(c)
	}
}

func bearerToken(header string) (string, bool) {
	scheme, raw, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

func claimsFrom(c echo.Context) (token.Claims, bool) {
	claims, ok := c.Get(claimsKey).(token.Claims)
	return claims, ok
}
