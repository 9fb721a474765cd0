// Package auth issues and verifies first-party session tokens. Only requests
// carrying a valid token count as authenticated for the trust gate.
package auth

import (
	"context"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

const (
	issuer = "kestrel"

	// AccessTokenDuration is the lifetime of a session token.
	AccessTokenDuration = 7 * 24 * time.Hour
)

type contextKey int

const userIDContextKey contextKey = iota

// ClaimsMessage is the JWT payload for a session token.
type ClaimsMessage struct {
	SessionID string `json:"session_id,omitempty"`
	jwt.RegisteredClaims
}

// GenerateAccessToken signs a session token for the user.
func GenerateAccessToken(userID int32, sessionID string, expirationTime time.Time, secret []byte) (string, error) {
	claims := &ClaimsMessage{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.Itoa(int(userID)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expirationTime),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// VerifyAccessToken parses and validates a session token, returning the
// user ID and session ID it was issued for.
func VerifyAccessToken(tokenString string, secret []byte) (int32, string, error) {
	claims := &ClaimsMessage{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil {
		return 0, "", errors.Wrap(err, "parse access token")
	}
	if !token.Valid {
		return 0, "", errors.New("invalid access token")
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 32)
	if err != nil {
		return 0, "", errors.Wrap(err, "invalid token subject")
	}
	return int32(userID), claims.SessionID, nil
}

// ContextWithUserID stamps the authenticated user onto the request context.
func ContextWithUserID(ctx context.Context, userID int32) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// GetUserID returns the authenticated user from the request context.
func GetUserID(ctx context.Context) (int32, bool) {
	userID, ok := ctx.Value(userIDContextKey).(int32)
	return userID, ok
}
