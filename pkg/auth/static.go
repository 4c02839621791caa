package auth

import (
	"context"
	"sync"

	"github.com/astralfield/realtime/pkg/domain"
)

// StaticVerifier maps fixed tokens to identities. Used by tests and local
// development where no token issuer is running.
type StaticVerifier struct {
	mu     sync.RWMutex
	tokens map[string]*domain.Identity
}

// NewStaticVerifier creates an empty static verifier.
func NewStaticVerifier() *StaticVerifier {
	return &StaticVerifier{
		tokens: make(map[string]*domain.Identity),
	}
}

// Add registers a token for an identity.
func (v *StaticVerifier) Add(token string, identity *domain.Identity) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tokens[token] = identity
}

// Verify implements Verifier.
func (v *StaticVerifier) Verify(ctx context.Context, token string) (*domain.Identity, error) {
	if token == "" {
		return nil, ErrMissingToken()
	}

	v.mu.RLock()
	identity, ok := v.tokens[token]
	v.mu.RUnlock()

	if !ok {
		return nil, ErrInvalidToken(nil)
	}

	clone := *identity
	return &clone, nil
}
