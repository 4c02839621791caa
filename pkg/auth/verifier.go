// Package auth verifies bearer tokens presented during the websocket
// handshake. The hub never issues tokens; it only resolves them to an
// identity through an injected Verifier.
package auth

import (
	"context"

	"github.com/astralfield/realtime/pkg/domain"
	"github.com/astralfield/realtime/pkg/errors"
)

// Verifier resolves a bearer token to a verified identity. Verification
// may reach an external system and is the only blocking call on the
// handshake path; callers bound it with a context deadline.
type Verifier interface {
	Verify(ctx context.Context, token string) (*domain.Identity, error)
}

// ErrInvalidToken is the structured rejection returned for tokens that
// fail verification for any reason other than a timeout.
func ErrInvalidToken(cause error) *errors.Error {
	return errors.Wrap(cause, errors.ErrorTypeAuthentication, "INVALID_TOKEN", "token verification failed")
}

// ErrMissingToken is returned when the handshake carries no token at all.
func ErrMissingToken() *errors.Error {
	return errors.New(errors.ErrorTypeAuthentication, "MISSING_TOKEN", "authentication token required")
}
