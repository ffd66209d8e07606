package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/wspush/internal/platform/correlation"
	apperrors "github.com/pscheid92/wspush/internal/platform/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareWithStructuredError(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := ErrorHandlingMiddleware()(func(c echo.Context) error {
		return apperrors.ValidationError("invalid input").WithData("field", "name")
	})

	err := handler(c)
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp apperrors.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 400, resp.Code)
	assert.Equal(t, "invalid input", resp.Message)
	assert.Equal(t, map[string]any{"field": "name"}, resp.Data)
}

func TestMiddlewareWithStandardError(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := ErrorHandlingMiddleware()(func(c echo.Context) error {
		return errors.New("pq: password authentication failed")
	})

	err := handler(c)
	require.NoError(t, err)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"code":500,"message":"unknown error, please refresh and retry","data":{}}`, rec.Body.String())
}

func TestMiddlewareWithNoError(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := ErrorHandlingMiddleware()(func(c echo.Context) error {
		return c.String(http.StatusOK, "fine")
	})

	require.NoError(t, handler(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fine", rec.Body.String())
}

func TestMiddlewarePassesHTTPErrorThrough(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := ErrorHandlingMiddleware()(func(c echo.Context) error {
		return echo.ErrTeapot
	})

	err := handler(c)

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusTeapot, httpErr.Code)
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	srv := newTestServer(t)

	rec := serve(srv, http.MethodGet, "/nope", "", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"code":404,"message":"resource not found","data":{}}`, rec.Body.String())
}

func TestWrongMethodUsesEnvelope(t *testing.T) {
	srv := newTestServer(t)

	rec := serve(srv, http.MethodDelete, "/example/hello-world", "", nil)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.JSONEq(t, `{"code":405,"message":"method not allowed","data":{}}`, rec.Body.String())
}

func TestPanicIsRecovered(t *testing.T) {
	srv := newTestServer(t)
	srv.echo.GET("/panic", func(echo.Context) error { panic("boom") })

	rec := serve(srv, http.MethodGet, "/panic", "", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"code":500,"message":"unknown error, please refresh and retry","data":{}}`, rec.Body.String())
}

func TestCorrelationID_Generated(t *testing.T) {
	srv := newTestServer(t)

	rec := serve(srv, http.MethodGet, "/example/hello-world", "", nil)

	assert.Len(t, rec.Header().Get(correlation.Header), 8)
}

func TestCorrelationID_ReusesInbound(t *testing.T) {
	srv := newTestServer(t)

	var seen string
	srv.echo.GET("/echo-id", func(c echo.Context) error {
		seen, _ = correlation.ID(c.Request().Context())
		return c.NoContent(http.StatusNoContent)
	})

	rec := serve(srv, http.MethodGet, "/echo-id", "", http.Header{correlation.Header: []string{"req-abc-123"}})

	assert.Equal(t, "req-abc-123", rec.Header().Get(correlation.Header))
	assert.Equal(t, "req-abc-123", seen)
}

func TestCORS_ReflectsOrigin(t *testing.T) {
	srv := newTestServer(t)

	rec := serve(srv, http.MethodGet, "/example/hello-world", "", http.Header{"Origin": []string{"https://console.example.com"}})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://console.example.com", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Equal(t, "true", rec.Header().Get(echo.HeaderAccessControlAllowCredentials))
}

func TestCORS_Preflight(t *testing.T) {
	srv := newTestServer(t)

	rec := serve(srv, http.MethodOptions, "/api/broadcast", "", http.Header{
		"Origin":                        []string{"https://console.example.com"},
		"Access-Control-Request-Method": []string{http.MethodPost},
	})

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://console.example.com", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Equal(t, "POST,GET,OPTIONS,PUT,DELETE", rec.Header().Get(echo.HeaderAccessControlAllowMethods))
	assert.Contains(t, rec.Header().Get(echo.HeaderAccessControlAllowHeaders), "Authorization")
}
