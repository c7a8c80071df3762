package jwt

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/user"
	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const sseTokenTTL = 5 * time.Minute

// Service verifies access tokens issued by the portal's identity provider. Tokens share
// the HS256 secret; GenerateAccessToken exists for tooling and tests.
type Service interface {
	GenerateAccessToken(identity user.Identity) (token string, expiresAt int64, err error)
	GenerateSSEToken(userID string, sessionID string) (token string, expiresIn int, err error)
	ValidateSSEToken(tokenString string, sessionID string) (userID string, err error)
	JWTAuth() *jwtauth.JWTAuth
}

type JWTService struct {
	accessTokenExpirationTime string
	tokenAuth                 *jwtauth.JWTAuth
}

func NewJWTService(secretKey string, accessTokenExpirationTime string) Service {
	return &JWTService{
		accessTokenExpirationTime: accessTokenExpirationTime,
		tokenAuth:                 jwtauth.New("HS256", []byte(secretKey), nil, jwt.WithAcceptableSkew(30*time.Second)),
	}
}

func (j *JWTService) JWTAuth() *jwtauth.JWTAuth {
	return j.tokenAuth
}

func (j *JWTService) GenerateAccessToken(identity user.Identity) (token string, expiresAt int64, err error) {
	expDuration, err := time.ParseDuration(j.accessTokenExpirationTime)
	if err != nil {
		return "", 0, err
	}
	expiresAt = time.Now().Add(expDuration).Unix()

	claims := map[string]interface{}{
		"user_id":    identity.UserID,
		"name":       identity.Name,
		"email":      identity.Email,
		"department": identity.Department,
		"role":       string(identity.Role),
		"type":       "access",
		"exp":        expiresAt,
	}

	_, tokenString, err := j.tokenAuth.Encode(claims)
	return tokenString, expiresAt, err
}

// GenerateSSEToken issues a short-lived token bound to one location session, for
// EventSource clients that cannot send an Authorization header.
func (j *JWTService) GenerateSSEToken(userID string, sessionID string) (token string, expiresIn int, err error) {
	expiresAt := time.Now().Add(sseTokenTTL).Unix()

	_, tokenString, err := j.tokenAuth.Encode(map[string]interface{}{
		"user_id":    userID,
		"session_id": sessionID,
		"type":       "sse",
		"exp":        expiresAt,
	})
	if err != nil {
		return "", 0, err
	}

	return tokenString, int(sseTokenTTL.Seconds()), nil
}

// ValidateSSEToken validates an SSE token for sessionID and returns the user ID
func (j *JWTService) ValidateSSEToken(tokenString string, sessionID string) (userID string, err error) {
	token, err := jwtauth.VerifyToken(j.tokenAuth, tokenString)
	if err != nil {
		return "", err
	}

	tokenType, ok := token.Get("type")
	if !ok || tokenType != "sse" {
		return "", jwt.ErrInvalidJWT()
	}

	boundSession, ok := token.Get("session_id")
	if !ok || boundSession != sessionID {
		return "", jwt.ErrInvalidJWT()
	}

	userIDVal, ok := token.Get("user_id")
	if !ok {
		return "", jwt.ErrInvalidJWT()
	}

	userID, ok = userIDVal.(string)
	if !ok || userID == "" {
		return "", jwt.ErrInvalidJWT()
	}

	return userID, nil
}

// IdentityFromContext reads the caller from the verified token jwtauth stored in ctx.
func IdentityFromContext(ctx context.Context) (user.Identity, error) {
	_, claims, err := jwtauth.FromContext(ctx)
	if err != nil {
		return user.Identity{}, fmt.Errorf("%w: %v", user.ErrIdentityMissing, err)
	}
	return IdentityFromClaims(claims)
}

// IdentityFromClaims maps access-token claims onto an Identity.
func IdentityFromClaims(claims map[string]interface{}) (user.Identity, error) {
	userID, _ := claims["user_id"].(string)
	if userID == "" {
		return user.Identity{}, user.ErrIdentityMissing
	}

	roleStr, _ := claims["role"].(string)
	role, ok := user.ParseRole(roleStr)
	if !ok {
		return user.Identity{}, fmt.Errorf("%w: %q", user.ErrUnknownRole, roleStr)
	}

	identity := user.Identity{UserID: userID, Role: role}
	identity.Name, _ = claims["name"].(string)
	identity.Email, _ = claims["email"].(string)
	identity.Department, _ = claims["department"].(string)
	return identity, nil
}

// NewContext returns ctx carrying a token for identity, as the Verifier middleware would.
func NewContext(ctx context.Context, ja *jwtauth.JWTAuth, identity user.Identity) (context.Context, error) {
	token, _, err := ja.Encode(map[string]interface{}{
		"user_id":    identity.UserID,
		"name":       identity.Name,
		"email":      identity.Email,
		"department": identity.Department,
		"role":       string(identity.Role),
		"type":       "access",
	})
	if err != nil {
		return nil, err
	}
	return jwtauth.NewContext(ctx, token, nil), nil
}
