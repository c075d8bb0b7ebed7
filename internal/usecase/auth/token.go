package auth

import domain "community/backend/internal/domain/auth"

// TokenManager abstracts token issuance and verification.
type TokenManager interface {
	Generate(identity domain.Identity) (string, error)
	// Validate returns domain.ErrTokenInvalid for every rejected token.
	Validate(token string) (domain.Identity, error)
}
