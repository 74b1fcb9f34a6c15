package security

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", hash)
	assert.True(t, CheckPasswordHash("hunter22", hash))
	assert.False(t, CheckPasswordHash("hunter23", hash))
}

func TestGenerateTokenCarriesUserAndID(t *testing.T) {
	InitJWT([]byte("test-secret"), time.Hour)

	issued, err := GenerateToken("user-1")
	require.NoError(t, err)
	require.NotEmpty(t, issued.Token)
	require.NotEmpty(t, issued.ID)

	tok, err := TokenAuth.Decode(issued.Token)
	require.NoError(t, err)
	claims, err := tok.AsMap(context.Background())
	require.NoError(t, err)

	userID, err := GetUserIDFromClaims(claims)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)

	jti, err := GetTokenIDFromClaims(claims)
	require.NoError(t, err)
	assert.Equal(t, issued.ID, jti)

	assert.WithinDuration(t, issued.ExpiresAt, GetExpiryFromClaims(claims), time.Second)
}

func TestClaimHelpersRejectMissingValues(t *testing.T) {
	_, err := GetUserIDFromClaims(map[string]interface{}{})
	assert.Error(t, err)
	_, err = GetTokenIDFromClaims(map[string]interface{}{"jti": 7})
	assert.Error(t, err)
}

func TestMemoryDenylist(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryDenylist()

	revoked, err := d.IsRevoked(ctx, "a")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, d.Revoke(ctx, "a", time.Now().Add(time.Hour)))
	revoked, err = d.IsRevoked(ctx, "a")
	require.NoError(t, err)
	assert.True(t, revoked)

	require.NoError(t, d.Revoke(ctx, "b", time.Now().Add(-time.Minute)))
	revoked, err = d.IsRevoked(ctx, "b")
	require.NoError(t, err)
	assert.False(t, revoked)
}
