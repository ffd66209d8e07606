// Package token issues and verifies timed, signed bearer tokens.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/wspush/internal/domain"
)

const codecName = "wspush-token"

// ErrInvalidToken covers malformed, tampered and expired tokens alike.
var ErrInvalidToken = errors.New("invalid or expired token")

type Claims struct {
	Subject   string            `json:"sub"`
	Username  string            `json:"username,omitempty"`
	Role      domain.UserRole   `json:"role"`
	Status    domain.UserStatus `json:"status"`
	IssuedAt  int64             `json:"iat"`
	ExpiresAt int64             `json:"exp"`
}

type Helper struct {
	codec *securecookie.SecureCookie
	ttl   time.Duration
	clock clockwork.Clock
}

func NewHelper(secret string, ttl time.Duration, clock clockwork.Clock) (*Helper, error) {
	if secret == "" {
		return nil, errors.New("token secret must not be empty")
	}
	if ttl < time.Second {
		return nil, fmt.Errorf("token ttl must be at least 1s, got %v", ttl)
	}

	codec := securecookie.New([]byte(secret), nil)
	codec.SetSerializer(securecookie.JSONEncoder{})
	codec.MaxAge(int(ttl.Seconds()))
	codec.MaxLength(0)

	return &Helper{codec: codec, ttl: ttl, clock: clock}, nil
}

// Generate signs claims, stamping issue and expiry times.
func (h *Helper) Generate(claims Claims) (string, error) {
	if claims.Subject == "" {
		return "", errors.New("token subject must not be empty")
	}
	if claims.Status == 0 {
		claims.Status = domain.StatusActivated
	}
	now := h.clock.Now()
	claims.IssuedAt = now.Unix()
	claims.ExpiresAt = now.Add(h.ttl).Unix()

	encoded, err := h.codec.Encode(codecName, claims)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return encoded, nil
}

// Parse verifies the signature and expiry and returns the claims.
func (h *Helper) Parse(raw string) (Claims, error) {
	var claims Claims
	if raw == "" {
		return Claims{}, ErrInvalidToken
	}
	if err := h.codec.Decode(codecName, raw, &claims); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if h.clock.Now().Unix() > claims.ExpiresAt {
		return Claims{}, fmt.Errorf("%w: expired at %d", ErrInvalidToken, claims.ExpiresAt)
	}
	return claims, nil
}

func (h *Helper) TTL() time.Duration {
	return h.ttl
}
