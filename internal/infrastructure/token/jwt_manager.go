package token

import (
	"time"

	domain "community/backend/internal/domain/auth"
	usecase "community/backend/internal/usecase/auth"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultExpiry is how long an issued token stays valid.
const DefaultExpiry = 24 * time.Hour

// JWTManager issues and validates HS256 JWT tokens.
type JWTManager struct {
	secret     []byte
	expiration time.Duration
	issuer     string
	nowFunc    func() time.Time
}

// Option customises a JWTManager.
type Option func(*JWTManager)

// WithClock overrides the time source used for issuing and validating.
func WithClock(now func() time.Time) Option {
	return func(m *JWTManager) {
		m.nowFunc = now
	}
}

// NewJWTManager constructs a manager with the provided secret and expiration.
// A non-positive expiration falls back to DefaultExpiry.
func NewJWTManager(secret string, expiration time.Duration, issuer string, opts ...Option) *JWTManager {
	if expiration <= 0 {
		expiration = DefaultExpiry
	}
	m := &JWTManager{
		secret:     []byte(secret),
		expiration: expiration,
		issuer:     issuer,
		nowFunc:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Ensure JWTManager implements the TokenManager interface.
var _ usecase.TokenManager = (*JWTManager)(nil)

// Claims represents token claims.
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Generate creates a signed JWT for the identity.
func (m *JWTManager) Generate(identity domain.Identity) (string, error) {
	now := m.nowFunc().UTC()
	claims := Claims{
		UserID: identity.UserID,
		Email:  identity.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			Issuer:    m.issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiration)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Validate parses and validates the token returning the identity when valid.
// Every failure collapses to domain.ErrTokenInvalid.
func (m *JWTManager) Validate(tokenString string) (domain.Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.nowFunc),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}, opts...)
	if err != nil || !token.Valid || claims.UserID == "" {
		return domain.Identity{}, domain.ErrTokenInvalid
	}
	return domain.Identity{UserID: claims.UserID, Email: claims.Email}, nil
}
