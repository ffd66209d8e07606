package httpserver

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/wspush/internal/domain"
	"github.com/pscheid92/wspush/internal/geo"
	"github.com/pscheid92/wspush/internal/platform/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonHeader(auth string) http.Header {
	h := http.Header{echo.HeaderContentType: []string{echo.MIMEApplicationJSON}}
	if auth != "" {
		h.Set(echo.HeaderAuthorization, auth)
	}
	return h
}

func TestHandleHelloWorld(t *testing.T) {
	srv := newTestServer(t)

	rec := serve(srv, http.MethodGet, "/example/hello-world", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"code":0,"message":"ok","data":{"hello":"world"}}`, rec.Body.String())
}

func TestHandleBroadcast_Success(t *testing.T) {
	pub := &mockPublisher{result: domain.BroadcastResult{Targets: 2, Delivered: 2}}
	srv := newTestServer(t, withPublisher(pub))

	auth := bearer(t, token.Claims{Subject: "7", Username: "ops", Role: domain.RoleAdmin})
	rec := serve(srv, http.MethodPost, "/api/broadcast", `{"message":"x"}`, jsonHeader(auth))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"code":0,"message":"ok","data":{"targets":2,"delivered":2,"failed":0,"relayed":false}}`, rec.Body.String())
	assert.Equal(t, []string{"x"}, pub.Messages())
}

func TestHandleBroadcast_Relayed(t *testing.T) {
	pub := &mockPublisher{result: domain.BroadcastResult{Relayed: true}}
	srv := newTestServer(t, withPublisher(pub))

	auth := bearer(t, token.Claims{Subject: "7"})
	rec := serve(srv, http.MethodPost, "/api/broadcast", `{"message":"x"}`, jsonHeader(auth))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"relayed":true`)
}

func TestHandleBroadcast_MissingToken(t *testing.T) {
	pub := &mockPublisher{}
	srv := newTestServer(t, withPublisher(pub))

	rec := serve(srv, http.MethodPost, "/api/broadcast", `{"message":"x"}`, jsonHeader(""))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"code":401,"message":"login session expired, please log in again","data":{}}`, rec.Body.String())
	assert.Empty(t, pub.Messages())
}

func TestHandleBroadcast_TamperedToken(t *testing.T) {
	srv := newTestServer(t)

	auth := bearer(t, token.Claims{Subject: "7"}) + "tampered"
	rec := serve(srv, http.MethodPost, "/api/broadcast", `{"message":"x"}`, jsonHeader(auth))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleBroadcast_WrongScheme(t *testing.T) {
	srv := newTestServer(t)

	rec := serve(srv, http.MethodPost, "/api/broadcast", `{"message":"x"}`, jsonHeader("Basic dXNlcjpwYXNz"))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleBroadcast_DisabledAccount(t *testing.T) {
	pub := &mockPublisher{}
	srv := newTestServer(t, withPublisher(pub))

	auth := bearer(t, token.Claims{Subject: "7", Status: domain.StatusDisabled})
	rec := serve(srv, http.MethodPost, "/api/broadcast", `{"message":"x"}`, jsonHeader(auth))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"code":403,"message":"permission denied, contact an administrator","data":{}}`, rec.Body.String())
	assert.Empty(t, pub.Messages())
}

func TestHandleBroadcast_EmptyMessage(t *testing.T) {
	pub := &mockPublisher{}
	srv := newTestServer(t, withPublisher(pub))
	auth := bearer(t, token.Claims{Subject: "7"})

	for _, body := range []string{`{"message":""}`, `{}`, ""} {
		rec := serve(srv, http.MethodPost, "/api/broadcast", body, jsonHeader(auth))

		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
		assert.JSONEq(t, `{"code":400,"message":"broadcast message is empty","data":{"field":"message"}}`, rec.Body.String())
	}
	assert.Empty(t, pub.Messages())
}

func TestHandleBroadcast_NotJSON(t *testing.T) {
	srv := newTestServer(t)
	auth := bearer(t, token.Claims{Subject: "7"})

	header := http.Header{echo.HeaderContentType: []string{echo.MIMETextPlain}}
	header.Set(echo.HeaderAuthorization, auth)
	rec := serve(srv, http.MethodPost, "/api/broadcast", "x", header)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"code":400,"message":"request body is not JSON","data":{}}`, rec.Body.String())
}

func TestHandleBroadcast_MalformedJSON(t *testing.T) {
	srv := newTestServer(t)
	auth := bearer(t, token.Claims{Subject: "7"})

	rec := serve(srv, http.MethodPost, "/api/broadcast", `{"message":`, jsonHeader(auth))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"message":"request body is not valid JSON"`)
	assert.Contains(t, rec.Body.String(), `"detail":`)
}

func TestHandleBroadcast_PublisherFailure(t *testing.T) {
	pub := &mockPublisher{err: errors.New("dial tcp 10.0.0.5:6379: connection refused")}
	srv := newTestServer(t, withPublisher(pub))
	auth := bearer(t, token.Claims{Subject: "7"})

	rec := serve(srv, http.MethodPost, "/api/broadcast", `{"message":"x"}`, jsonHeader(auth))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t, `{"code":502,"message":"failed to publish broadcast","data":{}}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
}

func TestHandleConnections(t *testing.T) {
	srv := newTestServer(t, withConnections(4))

	rec := serve(srv, http.MethodGet, "/api/connections", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"code":0,"message":"ok","data":{"count":4}}`, rec.Body.String())
}

func TestHandleGeocode_Success(t *testing.T) {
	var gotAddress string
	g := &mockGeocoder{lookupFn: func(_ context.Context, address string) (*geo.Result, error) {
		gotAddress = address
		r := &geo.Result{Status: 0}
		r.Result.Location = geo.Location{Lng: 87.66, Lat: 43.98}
		r.Result.Level = "门址"
		return r, nil
	}}
	srv := newTestServer(t, withGeocoder(g))

	rec := serve(srv, http.MethodGet, "/api/geocode?address=%E4%B9%8C%E9%B2%81%E6%9C%A8%E9%BD%90", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "乌鲁木齐", gotAddress)
	assert.Contains(t, rec.Body.String(), `"location":{"lng":87.66,"lat":43.98}`)
	assert.Contains(t, rec.Body.String(), `"code":0`)
}

func TestHandleGeocode_EmptyAddress(t *testing.T) {
	g := &mockGeocoder{lookupFn: func(context.Context, string) (*geo.Result, error) {
		return nil, geo.ErrEmptyAddress
	}}
	srv := newTestServer(t, withGeocoder(g))

	rec := serve(srv, http.MethodGet, "/api/geocode", "", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"code":400,"message":"address is required","data":{"field":"address"}}`, rec.Body.String())
}

func TestHandleGeocode_UpstreamFailure(t *testing.T) {
	g := &mockGeocoder{lookupFn: func(context.Context, string) (*geo.Result, error) {
		return nil, geo.ErrUnavailable
	}}
	srv := newTestServer(t, withGeocoder(g))

	rec := serve(srv, http.MethodGet, "/api/geocode?address=x", "", nil)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t, `{"code":502,"message":"geocoding service unavailable","data":{}}`, rec.Body.String())
}

func TestHandleGeocode_NotConfigured(t *testing.T) {
	srv := newTestServer(t)

	rec := serve(srv, http.MethodGet, "/api/geocode?address=x", "", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
