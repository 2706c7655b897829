package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessToken(t *testing.T) {
	mgr := NewJWTManager("test-secret", time.Hour, 24*time.Hour)

	t.Run("RoundTrip", func(t *testing.T) {
		token, err := mgr.GenerateAccessToken(42, "alice@example.com", "alice")
		require.NoError(t, err)

		claims, err := mgr.ValidateAccessToken(token)
		require.NoError(t, err)
		assert.Equal(t, int64(42), claims.UserID)
		assert.Equal(t, "alice@example.com", claims.Email)
		assert.Equal(t, "alice", claims.Nickname)
		assert.Equal(t, "projecthub-api", claims.Issuer)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		other := NewJWTManager("other-secret", time.Hour, 24*time.Hour)
		token, err := other.GenerateAccessToken(42, "alice@example.com", "alice")
		require.NoError(t, err)

		_, err = mgr.ValidateAccessToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Expired", func(t *testing.T) {
		short := NewJWTManager("test-secret", -time.Minute, 24*time.Hour)
		token, err := short.GenerateAccessToken(42, "alice@example.com", "alice")
		require.NoError(t, err)

		_, err = mgr.ValidateAccessToken(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := mgr.ValidateAccessToken("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestRefreshToken(t *testing.T) {
	mgr := NewJWTManager("test-secret", time.Hour, 24*time.Hour)

	t.Run("RoundTrip", func(t *testing.T) {
		token, err := mgr.GenerateRefreshToken(42)
		require.NoError(t, err)

		userID, err := mgr.ValidateRefreshToken(token)
		require.NoError(t, err)
		assert.Equal(t, int64(42), userID)
	})

	t.Run("Expired", func(t *testing.T) {
		short := NewJWTManager("test-secret", time.Hour, -time.Minute)
		token, err := short.GenerateRefreshToken(42)
		require.NoError(t, err)

		_, err = mgr.ValidateRefreshToken(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})
}
