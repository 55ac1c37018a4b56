// Package auth issues and verifies the bearer tokens presented in the
// authenticate event.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/omochice/roomcast/internal/chat"
)

var (
	// ErrInvalidToken is returned when a token fails signature or claim checks.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when a token is past its expiry.
	ErrExpiredToken = errors.New("token has expired")
	// ErrEmptySecret is returned when no signing secret is configured.
	ErrEmptySecret = errors.New("jwt secret must not be empty")
)

// Claims is the payload of a roomcast token.
type Claims struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarRef   string `json:"avatar_ref,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier verifies HS256 tokens against a shared secret.
type JWTVerifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

var _ chat.TokenVerifier = (*JWTVerifier)(nil)

// NewJWTVerifier creates a verifier. An empty issuer accepts any issuer.
func NewJWTVerifier(secret, issuer string) (*JWTVerifier, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &JWTVerifier{secret: []byte(secret), issuer: issuer, now: time.Now}, nil
}

// Verify checks token and returns the identity it was issued for.
func (v *JWTVerifier) Verify(_ context.Context, token string) (chat.Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return chat.Identity{}, ErrExpiredToken
		}
		return chat.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return chat.Identity{}, ErrInvalidToken
	}
	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return chat.Identity{}, fmt.Errorf("%w: no user id", ErrInvalidToken)
	}
	return chat.Identity{UserID: userID, DisplayName: claims.DisplayName, AvatarRef: claims.AvatarRef}, nil
}

// Issue signs a token for id that expires after ttl.
func (v *JWTVerifier) Issue(id chat.Identity, ttl time.Duration) (string, error) {
	now := v.now()
	claims := Claims{
		UserID:      id.UserID,
		DisplayName: id.DisplayName,
		AvatarRef:   id.AvatarRef,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.issuer,
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
