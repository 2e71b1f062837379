package port

import (
	"context"

	"github.com/arklim/practicum-auth/internal/core/domain"
)

// Credentials carry the email and password for a credential exchange.
type Credentials struct {
	Email    string
	Password string
}

// SignUpInput carries the payload for account creation.
type SignUpInput struct {
	Email    string
	Password string
	FullName string
}

// IdentityGateway is the async RPC boundary to the external identity
// service. Credential verification, token issuance and revocation all happen
// on the far side of this interface.
type IdentityGateway interface {
	// ExchangeCredentials verifies credentials and returns the identity
	// plus a revocable session token.
	ExchangeCredentials(ctx context.Context, creds Credentials) (*domain.Identity, string, error)
	// Revoke invalidates the session token on the backend.
	Revoke(ctx context.Context, token string) error
	// SignUp creates a new account.
	SignUp(ctx context.Context, input SignUpInput) (*domain.Identity, error)
}
