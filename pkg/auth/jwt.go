package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"

	"github.com/astralfield/realtime/pkg/domain"
)

// Claims carries the hub-relevant identity scope inside a signed token.
type Claims struct {
	Username  string   `json:"username"`
	LeagueIDs []string `json:"league_ids"`
	TeamIDs   []string `json:"team_ids"`
	jwt.RegisteredClaims
}

// JWTVerifier validates HMAC-signed bearer tokens locally.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a verifier for tokens signed with the shared secret.
func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

// Verify implements Verifier.
func (v *JWTVerifier) Verify(ctx context.Context, token string) (*domain.Identity, error) {
	if token == "" {
		return nil, ErrMissingToken()
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, ErrInvalidToken(err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken(jwt.ErrTokenInvalidClaims)
	}

	return &domain.Identity{
		UserID:    claims.Subject,
		Username:  claims.Username,
		LeagueIDs: claims.LeagueIDs,
		TeamIDs:   claims.TeamIDs,
	}, nil
}
