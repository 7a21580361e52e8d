package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "unit-test-secret-0123456789"

func TestTokenService_RoundTrip(t *testing.T) {
	svc, err := NewTokenService(testSecret)
	require.NoError(t, err)

	token, err := svc.Generate("user-123")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	userID, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", userID)
}

func TestTokenService_ShortSecretRejected(t *testing.T) {
	_, err := NewTokenService("too-short")
	assert.Error(t, err)
}

func TestTokenService_ExpiredToken(t *testing.T) {
	svc, err := NewTokenService(testSecret)
	require.NoError(t, err)

	token, err := svc.GenerateWithDuration("user-123", -time.Minute)
	require.NoError(t, err)

	_, err = svc.Validate(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestTokenService_WrongSecret(t *testing.T) {
	issuer, err := NewTokenService(testSecret)
	require.NoError(t, err)
	verifier, err := NewTokenService("a-completely-different-secret")
	require.NoError(t, err)

	token, err := issuer.Generate("user-123")
	require.NoError(t, err)

	_, err = verifier.Validate(token)
	assert.Error(t, err)
}

func TestTokenService_GarbageToken(t *testing.T) {
	svc, err := NewTokenService(testSecret)
	require.NoError(t, err)

	_, err = svc.Validate("not.a.token")
	assert.Error(t, err)
}
