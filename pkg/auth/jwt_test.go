package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astralfield/realtime/pkg/domain"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestJWTVerifierResolvesIdentity(t *testing.T) {
	v := NewJWTVerifier(testSecret)

	token := signToken(t, testSecret, Claims{
		Username:  "Alice",
		LeagueIDs: []string{"l1", "l2"},
		TeamIDs:   []string{"team-a"},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	identity, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "alice", identity.UserID)
	assert.Equal(t, "Alice", identity.Username)
	assert.Equal(t, []string{"l1", "l2"}, identity.LeagueIDs)
	assert.Equal(t, []string{"team-a"}, identity.TeamIDs)
}

func TestJWTVerifierRejectsWrongSecret(t *testing.T) {
	v := NewJWTVerifier(testSecret)

	token := signToken(t, "other-secret", Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "alice"},
	})

	_, err := v.Verify(context.Background(), token)
	assert.Error(t, err)
}

func TestJWTVerifierRejectsExpiredToken(t *testing.T) {
	v := NewJWTVerifier(testSecret)

	token := signToken(t, testSecret, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})

	_, err := v.Verify(context.Background(), token)
	assert.Error(t, err)
}

func TestJWTVerifierRequiresSubject(t *testing.T) {
	v := NewJWTVerifier(testSecret)

	token := signToken(t, testSecret, Claims{Username: "nobody"})

	_, err := v.Verify(context.Background(), token)
	assert.Error(t, err)
}

func TestJWTVerifierRejectsEmptyToken(t *testing.T) {
	v := NewJWTVerifier(testSecret)

	_, err := v.Verify(context.Background(), "")
	assert.Error(t, err)
}

func TestStaticVerifier(t *testing.T) {
	v := NewStaticVerifier()
	v.Add("tok", &domain.Identity{UserID: "alice"})

	identity, err := v.Verify(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "alice", identity.UserID)

	_, err = v.Verify(context.Background(), "other")
	assert.Error(t, err)
}
