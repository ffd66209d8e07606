package token

import (
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/wspush/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestHelper(t *testing.T) (*Helper, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Now())
	h, err := NewHelper(testSecret, time.Hour, clock)
	require.NoError(t, err)
	return h, clock
}

func TestGenerateAndParse(t *testing.T) {
	h, clock := newTestHelper(t)

	raw, err := h.Generate(Claims{Subject: "42", Username: "alice", Role: domain.RoleAdmin})
	require.NoError(t, err)
	assert.NotEmpty(t, raw)

	claims, err := h.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, domain.RoleAdmin, claims.Role)
	assert.Equal(t, domain.StatusActivated, claims.Status)
	assert.Equal(t, clock.Now().Unix(), claims.IssuedAt)
	assert.Equal(t, clock.Now().Add(time.Hour).Unix(), claims.ExpiresAt)
}

func TestParse_Expired(t *testing.T) {
	h, clock := newTestHelper(t)

	raw, err := h.Generate(Claims{Subject: "42"})
	require.NoError(t, err)

	clock.Advance(time.Hour + time.Second)

	_, err = h.Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParse_Tampered(t *testing.T) {
	h, _ := newTestHelper(t)

	raw, err := h.Generate(Claims{Subject: "42"})
	require.NoError(t, err)

	tampered := raw[:len(raw)-2] + strings.Repeat("A", 2)
	if tampered == raw {
		tampered = raw[:len(raw)-2] + "BB"
	}

	_, err = h.Parse(tampered)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParse_WrongSecret(t *testing.T) {
	h, clock := newTestHelper(t)
	other, err := NewHelper("ffffffffffffffffffffffffffffffff", time.Hour, clock)
	require.NoError(t, err)

	raw, err := other.Generate(Claims{Subject: "42"})
	require.NoError(t, err)

	_, err = h.Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParse_Empty(t *testing.T) {
	h, _ := newTestHelper(t)

	_, err := h.Parse("")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestGenerate_RequiresSubject(t *testing.T) {
	h, _ := newTestHelper(t)

	_, err := h.Generate(Claims{})
	assert.Error(t, err)
}

func TestNewHelper_Validation(t *testing.T) {
	_, err := NewHelper("", time.Hour, clockwork.NewRealClock())
	assert.Error(t, err)

	_, err = NewHelper(testSecret, time.Millisecond, clockwork.NewRealClock())
	assert.Error(t, err)
}
