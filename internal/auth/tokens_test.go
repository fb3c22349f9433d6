package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidtube/backend/internal/models"
)

func newTestIssuer(t *testing.T) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer(TokenConfig{
		AccessSecret:  "access-secret",
		AccessTTL:     time.Minute,
		RefreshSecret: "refresh-secret",
		RefreshTTL:    time.Hour,
	})
	require.NoError(t, err)
	return issuer
}

func TestTokenIssuerRoundTrip(t *testing.T) {
	issuer := newTestIssuer(t)
	user := models.User{ID: "user-1", Username: "annlee", Email: "ann@x.com"}
	now := time.Now().UTC()

	pair, err := issuer.SignPair(user, "session-1", now)
	require.NoError(t, err)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)
	assert.WithinDuration(t, now.Add(time.Minute), pair.AccessExpiresAt, time.Second)
	assert.WithinDuration(t, now.Add(time.Hour), pair.RefreshExpiresAt, time.Second)

	access, err := issuer.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", access.Subject)
	assert.Equal(t, "session-1", access.SessionID)
	assert.Equal(t, "annlee", access.Username)

	refresh, err := issuer.ParseRefresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", refresh.Subject)
	assert.Empty(t, refresh.Email)
}

func TestTokenIssuerRejectsWrongType(t *testing.T) {
	issuer := newTestIssuer(t)
	pair, err := issuer.SignPair(models.User{ID: "user-1"}, "session-1", time.Now())
	require.NoError(t, err)

	_, err = issuer.ParseRefresh(pair.AccessToken)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	_, err = issuer.ParseAccess(pair.RefreshToken)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestTokenIssuerRejectsExpiredAndTampered(t *testing.T) {
	issuer := newTestIssuer(t)
	pair, err := issuer.SignPair(models.User{ID: "user-1"}, "session-1", time.Now())
	require.NoError(t, err)

	_, err = issuer.ParseAccess(pair.AccessToken + "x")
	assert.ErrorIs(t, err, ErrInvalidToken)

	issuer.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = issuer.ParseRefresh(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.ParseRefresh("")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenIssuerRequiresSecrets(t *testing.T) {
	_, err := NewTokenIssuer(TokenConfig{AccessSecret: "a"})
	assert.Error(t, err)
}

func TestHashTokenIsStable(t *testing.T) {
	assert.Equal(t, HashToken("abc"), HashToken("abc"))
	assert.NotEqual(t, HashToken("abc"), HashToken("abd"))
	assert.Len(t, HashToken("abc"), 64)
}

func TestBcryptHasher(t *testing.T) {
	hasher := BcryptHasher{Cost: 4}
	hashed, err := hasher.Hash("secret123")
	require.NoError(t, err)
	assert.NotEqual(t, "secret123", hashed)
	assert.NoError(t, hasher.Compare(hashed, "secret123"))
	assert.Error(t, hasher.Compare(hashed, "wrong"))
}
