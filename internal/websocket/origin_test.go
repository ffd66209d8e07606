package websocket

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCheckOrigin(t *testing.T) {
	allowed := []string{"https://push.example.com/app", "https://admin.example.com:8443"}

	tests := []struct {
		name          string
		allowed       []string
		origin        string
		isDevelopment bool
		want          bool
	}{
		{"no allow list accepts anything", nil, "https://anywhere.example.org", false, true},
		{"no allow list accepts empty origin", nil, "", false, true},

		{"empty origin", allowed, "", false, true},
		{"allowed origin with path stripped", allowed, "https://push.example.com", false, true},
		{"allowed origin with port", allowed, "https://admin.example.com:8443", false, true},

		{"different host", allowed, "https://evil.com", false, false},
		{"different port", allowed, "https://push.example.com:9090", false, false},
		{"http instead of https", allowed, "http://push.example.com", false, false},
		{"subdomain", allowed, "https://sub.push.example.com", false, false},

		{"localhost dev", allowed, "http://localhost:8080", true, true},
		{"127.0.0.1 dev", allowed, "http://127.0.0.1:3000", true, true},
		{"localhost prod rejected", allowed, "http://localhost:8080", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewCheckOrigin(tt.allowed, tt.isDevelopment)
			r, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, checker(r))
		})
	}
}

func TestExtractOrigin(t *testing.T) {
	tests := []struct {
		name   string
		rawURL string
		want   string
	}{
		{"full URL with path", "https://example.com/ws", "https://example.com"},
		{"URL with port", "https://example.com:8443/path", "https://example.com:8443"},
		{"http URL", "http://localhost:8080/callback", "http://localhost:8080"},
		{"empty string", "", ""},
		{"no scheme", "example.com", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractOrigin(tt.rawURL))
		})
	}
}
