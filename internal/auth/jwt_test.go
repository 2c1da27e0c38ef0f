package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faninteract/backend/internal/models"
)

func TestGenerateValidateRoundTrip(t *testing.T) {
	s := NewJWTService("secret", 1)
	tok, err := s.Generate("h1", "host@example.com", models.RoleHost)
	require.NoError(t, err)

	claims, err := s.Validate(tok)
	require.NoError(t, err)
	assert.Equal(t, "h1", claims.HostID)
	assert.Equal(t, "host", claims.Role)
}

func TestValidateRejects(t *testing.T) {
	s := NewJWTService("secret", 1)
	other := NewJWTService("other", 1)
	foreign, err := other.Generate("h1", "a@b.c", models.RoleHost)
	require.NoError(t, err)

	expired := NewJWTService("secret", 1)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, err := expired.Generate("h1", "a@b.c", models.RoleHost)
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{HostID: "h1"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, tok := range map[string]string{"garbage": "abc", "foreign": foreign, "expired": old, "unsigned": unsigned} {
		_, err := s.Validate(tok)
		assert.ErrorIs(t, err, ErrInvalidToken, name)
	}
}

func TestValidateFallsBackToSubject(t *testing.T) {
	s := NewJWTService("secret", 1)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "h9",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	raw, err := tok.SignedString([]byte("secret"))
	require.NoError(t, err)

	claims, err := s.Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, "h9", claims.HostID)
	assert.Equal(t, "host", claims.Role)
}
