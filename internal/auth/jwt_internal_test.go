package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/roomcast/internal/chat"
)

func TestJWTVerifier_RoundTrip(t *testing.T) {
	v, err := NewJWTVerifier("secret", "roomcast")
	require.NoError(t, err)
	want := chat.Identity{UserID: "alice", DisplayName: "Alice", AvatarRef: "avatars/alice.png"}

	token, err := v.Issue(want, time.Hour)
	require.NoError(t, err)

	got, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestJWTVerifier_Expired(t *testing.T) {
	v, err := NewJWTVerifier("secret", "")
	require.NoError(t, err)
	token, err := v.Issue(chat.Identity{UserID: "alice"}, time.Minute)
	require.NoError(t, err)

	v.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = v.Verify(context.Background(), token)

	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestJWTVerifier_Rejects(t *testing.T) {
	issuer, err := NewJWTVerifier("secret", "roomcast")
	require.NoError(t, err)
	other, err := NewJWTVerifier("other-secret", "roomcast")
	require.NoError(t, err)
	foreign, err := NewJWTVerifier("secret", "someone-else")
	require.NoError(t, err)

	good, err := issuer.Issue(chat.Identity{UserID: "alice"}, time.Hour)
	require.NoError(t, err)
	wrongIssuer, err := foreign.Issue(chat.Identity{UserID: "alice"}, time.Hour)
	require.NoError(t, err)
	noUser, err := issuer.Issue(chat.Identity{}, time.Hour)
	require.NoError(t, err)
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{UserID: "alice"}).SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		v     *JWTVerifier
		token string
	}{
		{name: "garbage", v: issuer, token: "not-a-token"},
		{name: "wrong secret", v: other, token: good},
		{name: "wrong issuer", v: issuer, token: wrongIssuer},
		{name: "no user id", v: issuer, token: noUser},
		{name: "unexpected algorithm", v: newTestVerifier(t), token: hs512},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.v.Verify(context.Background(), tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestNewJWTVerifier_EmptySecret(t *testing.T) {
	_, err := NewJWTVerifier("", "roomcast")
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func newTestVerifier(t *testing.T) *JWTVerifier {
	t.Helper()
	v, err := NewJWTVerifier("secret", "")
	require.NoError(t, err)
	return v
}
