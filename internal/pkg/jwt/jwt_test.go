package jwt

import (
	"context"
	"testing"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/user"
	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-jwt"

func TestGenerateAccessToken_RoundTrip(t *testing.T) {
	svc := NewJWTService(testSecret, "1h")
	identity := user.Identity{
		UserID:     "u-1",
		Name:       "Rina",
		Email:      "rina@example.com",
		Department: "Engineering",
		Role:       user.RoleTeamLead,
	}

	tokenString, expiresAt, err := svc.GenerateAccessToken(identity)
	require.NoError(t, err)
	assert.NotZero(t, expiresAt)

	token, err := jwtauth.VerifyToken(svc.JWTAuth(), tokenString)
	require.NoError(t, err)
	claims, err := token.AsMap(context.Background())
	require.NoError(t, err)

	got, err := IdentityFromClaims(claims)
	require.NoError(t, err)
	assert.Equal(t, identity, got)
	assert.Equal(t, "access", claims["type"])
}

func TestGenerateAccessToken_BadDuration(t *testing.T) {
	svc := NewJWTService(testSecret, "soon")
	_, _, err := svc.GenerateAccessToken(user.Identity{UserID: "u-1", Role: user.RoleEmployee})
	assert.Error(t, err)
}

func TestSSEToken_BoundToSession(t *testing.T) {
	svc := NewJWTService(testSecret, "1h")

	token, expiresIn, err := svc.GenerateSSEToken("u-1", "session-a")
	require.NoError(t, err)
	assert.Equal(t, 300, expiresIn)

	userID, err := svc.ValidateSSEToken(token, "session-a")
	require.NoError(t, err)
	assert.Equal(t, "u-1", userID)

	_, err = svc.ValidateSSEToken(token, "session-b")
	assert.Error(t, err)

	access, _, err := svc.GenerateAccessToken(user.Identity{UserID: "u-1", Role: user.RoleEmployee})
	require.NoError(t, err)
	_, err = svc.ValidateSSEToken(access, "session-a")
	assert.Error(t, err, "access tokens are not accepted on the event stream")
}

func TestIdentityFromClaims_Errors(t *testing.T) {
	_, err := IdentityFromClaims(map[string]interface{}{"role": "admin"})
	assert.ErrorIs(t, err, user.ErrIdentityMissing)

	_, err = IdentityFromClaims(map[string]interface{}{"user_id": "u-1", "role": "owner"})
	assert.ErrorIs(t, err, user.ErrUnknownRole)
}

func TestIdentityFromContext(t *testing.T) {
	svc := NewJWTService(testSecret, "1h")

	_, err := IdentityFromContext(context.Background())
	assert.ErrorIs(t, err, user.ErrIdentityMissing)

	ctx, err := NewContext(context.Background(), svc.JWTAuth(), user.Identity{UserID: "u-9", Department: "Sales", Role: user.RoleManager})
	require.NoError(t, err)

	got, err := IdentityFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u-9", got.UserID)
	assert.Equal(t, "Sales", got.Department)
	assert.Equal(t, user.RoleManager, got.Role)
}
