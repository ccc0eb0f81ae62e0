package auth

import (
	"testing"
	"time"

	"github.com/fieldbridge/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testService() *JWTService {
	return NewJWTService(config.JWTConfig{
		Secret: "test-secret-at-least-32-characters-long",
		Issuer: "fieldbridge-test",
	})
}

func TestGenerateAndValidateToken(t *testing.T) {
	svc := testService()

	token, err := svc.GenerateToken("reviewer@ops", "reviewer", time.Hour)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "reviewer@ops", claims.Actor)
	assert.Equal(t, "reviewer", claims.Role)
	assert.Equal(t, "fieldbridge-test", claims.Issuer)
}

func TestValidateTokenFailures(t *testing.T) {
	svc := testService()

	t.Run("empty actor refused at generation", func(t *testing.T) {
		_, err := svc.GenerateToken("", "", time.Hour)
		assert.ErrorIs(t, err, ErrMissingActor)
	})

	t.Run("expired token", func(t *testing.T) {
		token, err := svc.GenerateToken("reviewer@ops", "", -time.Minute)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTService(config.JWTConfig{
			Secret: "another-secret-that-is-also-32-chars",
			Issuer: "fieldbridge-test",
		})
		token, err := other.GenerateToken("reviewer@ops", "", time.Hour)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewJWTService(config.JWTConfig{
			Secret: "test-secret-at-least-32-characters-long",
			Issuer: "someone-else",
		})
		token, err := other.GenerateToken("reviewer@ops", "", time.Hour)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := svc.ValidateToken("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
