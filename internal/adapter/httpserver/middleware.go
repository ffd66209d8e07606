package httpserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/wspush/internal/platform/correlation"
	apperrors "github.com/pscheid92/wspush/internal/platform/errors"
)

const maxDumpBodySize = 64 << 10

// correlationMiddleware reuses an inbound X-Request-ID or mints one, stores
// it in the request context and echoes it on the response.
func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := correlation.FromHeader(c.Request().Header.Get(correlation.Header))
		ctx := correlation.WithID(c.Request().Context(), id)
		c.SetRequest(c.Request().WithContext(ctx))
		c.Response().Header().Set(correlation.Header, id)
		return next(c)
	}
}

// requestDumpMiddleware logs query arguments and JSON bodies at debug level.
// The body is restored for the handler.
func requestDumpMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		ctx := req.Context()
		if !slog.Default().Enabled(ctx, slog.LevelDebug) {
			return next(c)
		}

		if len(req.URL.RawQuery) > 0 {
			slog.DebugContext(ctx, "Request query", "args", req.URL.Query())
		}

		if req.Body != nil && strings.Contains(req.Header.Get(echo.HeaderContentType), "json") {
			body, err := io.ReadAll(io.LimitReader(req.Body, maxDumpBodySize))
			if err == nil && len(body) > 0 {
				req.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), req.Body))
				if json.Valid(body) {
					slog.DebugContext(ctx, "Request body", "body", json.RawMessage(body))
				}
			}
		}

		return next(c)
	}
}

// ErrorHandlingMiddleware renders errors returned by handlers as JSON
// envelopes. echo.HTTPErrors pass through to the server's HTTPErrorHandler.
func ErrorHandlingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				return err
			}

			structuredErr := apperrors.AsStructuredError(err)
			logError(c, structuredErr)

			if err := c.JSON(structuredErr.HTTPStatus(), structuredErr.ToResponse()); err != nil {
				return fmt.Errorf("failed to write error response: %w", err)
			}
			return nil
		}
	}
}

// handleHTTPError renders whatever escapes the middleware chain: router
// 404/405s, middleware HTTPErrors and recovered panics.
func (s *Server) handleHTTPError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var structuredErr *apperrors.Error
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		structuredErr = fromHTTPError(httpErr)
	} else {
		structuredErr = apperrors.AsStructuredError(err)
	}
	logError(c, structuredErr)

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(structuredErr.HTTPStatus())
		return
	}
	if err := c.JSON(structuredErr.HTTPStatus(), structuredErr.ToResponse()); err != nil {
		slog.ErrorContext(c.Request().Context(), "Failed to write error response", "error", err)
	}
}

func fromHTTPError(httpErr *echo.HTTPError) *apperrors.Error {
	message := ""
	if msg, ok := httpErr.Message.(string); ok && msg != http.StatusText(httpErr.Code) {
		message = msg
	}

	structuredErr := apperrors.FromStatus(httpErr.Code, message)
	if structuredErr.Message == "" {
		structuredErr.Message = strings.ToLower(http.StatusText(httpErr.Code))
	}
	if httpErr.Internal != nil {
		structuredErr.Cause = httpErr.Internal
	}
	return structuredErr
}

func logError(c echo.Context, err *apperrors.Error) {
	attrs := []any{
		"error_type", err.Type,
		"message", err.Message,
		"path", c.Request().URL.Path,
		"method", c.Request().Method,
		"status", err.HTTPStatus(),
	}

	for k, v := range err.Data {
		attrs = append(attrs, k, v)
	}

	if subject := c.Get(subjectKey); subject != nil {
		attrs = append(attrs, "subject", subject)
	}

	ctx := c.Request().Context()
	switch err.Type {
	case apperrors.TypeValidation, apperrors.TypeNotFound, apperrors.TypeMethodNotAllowed, apperrors.TypeUnauthorized:
		slog.InfoContext(ctx, "Client error", attrs...)
	case apperrors.TypeForbidden, apperrors.TypeConflict, apperrors.TypeUnavailable:
		slog.WarnContext(ctx, "Request rejected", attrs...)
	case apperrors.TypeInternal:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.ErrorContext(ctx, "Internal error", attrs...)
	case apperrors.TypeExternal:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.ErrorContext(ctx, "External service error", attrs...)
	default:
		slog.ErrorContext(ctx, "Unknown error type", attrs...)
	}
}
