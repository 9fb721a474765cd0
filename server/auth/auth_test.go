package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	secret := []byte("test-secret")

	token, err := GenerateAccessToken(42, "s-abc", time.Now().Add(time.Hour), secret)
	require.NoError(t, err)

	userID, sessionID, err := VerifyAccessToken(token, secret)
	require.NoError(t, err)
	assert.Equal(t, int32(42), userID)
	assert.Equal(t, "s-abc", sessionID)
}

func TestExpiredTokenRejected(t *testing.T) {
	secret := []byte("test-secret")

	token, err := GenerateAccessToken(42, "s-abc", time.Now().Add(-time.Minute), secret)
	require.NoError(t, err)

	_, _, err = VerifyAccessToken(token, secret)
	assert.Error(t, err)
}

func TestWrongSecretRejected(t *testing.T) {
	token, err := GenerateAccessToken(42, "s-abc", time.Now().Add(time.Hour), []byte("secret-a"))
	require.NoError(t, err)

	_, _, err = VerifyAccessToken(token, []byte("secret-b"))
	assert.Error(t, err)
}
