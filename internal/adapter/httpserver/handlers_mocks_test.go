package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/wspush/internal/domain"
	"github.com/pscheid92/wspush/internal/geo"
	"github.com/pscheid92/wspush/internal/platform/config"
	"github.com/pscheid92/wspush/internal/platform/token"
	"github.com/stretchr/testify/require"
)

const testTokenSecret = "0123456789abcdef0123456789abcdef"

// --- Mock implementations ---

type mockPublisher struct {
	mu       sync.Mutex
	messages []string
	result   domain.BroadcastResult
	err      error
}

func (m *mockPublisher) Publish(_ context.Context, message string) (domain.BroadcastResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return domain.BroadcastResult{}, m.err
	}
	m.messages = append(m.messages, message)
	return m.result, nil
}

func (m *mockPublisher) Messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.messages...)
}

type fixedCounter int

func (n fixedCounter) Len() int { return int(n) }

type mockGeocoder struct {
	lookupFn func(ctx context.Context, address string) (*geo.Result, error)
}

func (m *mockGeocoder) Lookup(ctx context.Context, address string) (*geo.Result, error) {
	if m.lookupFn != nil {
		return m.lookupFn(ctx, address)
	}
	return nil, errors.New("not implemented")
}

// --- Test helpers ---

func newTestTokens(t *testing.T) *token.Helper {
	t.Helper()
	h, err := token.NewHelper(testTokenSecret, time.Hour, clockwork.NewRealClock())
	require.NoError(t, err)
	return h
}

func newTestServer(t *testing.T, opts ...func(*Dependencies)) *Server {
	t.Helper()

	deps := Dependencies{
		Connections: fixedCounter(0),
		Publisher:   &mockPublisher{},
		Tokens:      newTestTokens(t),
	}
	for _, opt := range opts {
		opt(&deps)
	}

	return NewServer(&config.Config{Port: "0", AppEnv: "test"}, deps)
}

func withPublisher(p domain.Publisher) func(*Dependencies) {
	return func(d *Dependencies) { d.Publisher = p }
}

func withConnections(n int) func(*Dependencies) {
	return func(d *Dependencies) { d.Connections = fixedCounter(n) }
}

func withGeocoder(g geocoder) func(*Dependencies) {
	return func(d *Dependencies) { d.Geocoder = g }
}

func withHealthChecks(checks ...HealthCheck) func(*Dependencies) {
	return func(d *Dependencies) { d.HealthChecks = checks }
}

func withWebSocket(h http.Handler, limits *ConnectionLimits) func(*Dependencies) {
	return func(d *Dependencies) {
		d.WebSocketHandler = h
		d.Limits = limits
	}
}

func bearer(t *testing.T, claims token.Claims) string {
	t.Helper()
	raw, err := newTestTokens(t).Generate(claims)
	require.NoError(t, err)
	return "Bearer " + raw
}

// serve runs one request through the full middleware chain.
func serve(srv *Server, method, target, body string, header http.Header) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}
