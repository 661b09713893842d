package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBearerTokenRoundTrip(t *testing.T) {
	token, hash, err := NewBearerToken()
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.NotEqual(t, token, hash)

	assert.True(t, VerifyBearerToken(hash, token))
	assert.False(t, VerifyBearerToken(hash, "wrong-token"))
	assert.False(t, VerifyBearerToken("", token))
	assert.False(t, VerifyBearerToken(hash, ""))
}

func TestSessionRoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret")
	require.True(t, tm.Enabled())

	signed, err := tm.GenerateSession("acct-1", "user@example.com", time.Hour)
	require.NoError(t, err)

	claims, err := tm.ValidateSession(signed)
	require.NoError(t, err)
	assert.Equal(t, "acct-1", claims.AccountID)
	assert.Equal(t, "user@example.com", claims.Email)
}

func TestSessionExpired(t *testing.T) {
	tm := NewTokenManager("test-secret")
	signed, err := tm.GenerateSession("acct-1", "user@example.com", -time.Minute)
	require.NoError(t, err)

	_, err = tm.ValidateSession(signed)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestSessionWrongSecret(t *testing.T) {
	signed, err := NewTokenManager("secret-a").GenerateSession("acct-1", "user@example.com", time.Hour)
	require.NoError(t, err)

	_, err = NewTokenManager("secret-b").ValidateSession(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
