package utils // package utils provides token, password and validation helpers

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for reading and signing bearer tokens
)

// TokenInfo is what the gateway can learn from a bearer token without
// holding the backend's signing secret.
type TokenInfo struct {
	Subject string    // sub claim (user id)
	Role    string    // role claim, when the backend sets one
	Exp     time.Time // zero when the token carries no exp claim
}

// Expired reports whether the token's exp lies before now.  Tokens without
// an exp claim never expire from the gateway's point of view.
func (t TokenInfo) Expired(now time.Time) bool {
	return !t.Exp.IsZero() && now.After(t.Exp)
}

// ErrOpaqueToken is returned when the bearer token is not a JWT.  Callers
// treat such tokens as valid until the backend rejects them.
var ErrOpaqueToken = errors.New("bearer token is not a jwt")

// InspectToken decodes the claims of a bearer token WITHOUT verifying its
// signature.  The backend remains the only judge of validity; the gateway
// only uses exp to discard identities that cannot work anymore.
func InspectToken(raw string) (TokenInfo, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return TokenInfo{}, ErrOpaqueToken
	}
	var info TokenInfo
	switch sub := claims["sub"].(type) {
	case string:
		info.Subject = sub
	case float64:
		info.Subject = strconv.FormatFloat(sub, 'f', -1, 64)
	}
	if role, ok := claims["role"].(string); ok {
		info.Role = role
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return TokenInfo{}, fmt.Errorf("read exp: %w", err)
	}
	if exp != nil {
		info.Exp = exp.Time.UTC()
	}
	return info, nil
}

// NewAccessToken builds and signs an HS256 JWT for a user.  The fake portal
// backend uses it to issue login tokens in tests.
func NewAccessToken(secret, userID, role string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// VerifyAccessToken parses an HS256 token signed with secret and returns
// its subject and role.
func VerifyAccessToken(secret, raw string) (string, string, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return "", "", errors.New("invalid token")
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", errors.New("invalid claims")
	}
	sub, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	return sub, role, nil
}
