package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/aka0kuro/hostberry-sub000/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const ephemeralSecretLength = 32 // 256 bits

// TokenService issues and verifies short-lived HS256 bearer tokens. It holds
// no mutable state and is safe for concurrent use without locking.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a TokenService signing with the given secret.
func NewTokenService(secret []byte, ttl time.Duration) *TokenService {
	return &TokenService{
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
	}
}

// GenerateEphemeralSecret produces a random in-memory signing secret for
// deployments without a configured one. Tokens signed with it become
// unverifiable after a restart; that is the documented trade-off, not a bug.
func GenerateEphemeralSecret() ([]byte, error) {
	secret := make([]byte, ephemeralSecretLength)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate ephemeral token secret: %w", err)
	}
	return secret, nil
}

// TTL returns the configured token lifetime.
func (ts *TokenService) TTL() time.Duration {
	return ts.ttl
}

// Issue creates a signed bearer token for the principal with
// exp = now + TTL and a unique JTI.
func (ts *TokenService) Issue(username string, admin bool) (string, error) {
	now := ts.now()

	claims := &models.TokenClaims{
		Admin: admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(ts.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// Verify decodes the token, checks the signature, then the expiry, and
// returns the claims. Failures come back as *models.TokenInvalidError so
// callers can distinguish expired from forged from garbage input.
func (ts *TokenService) Verify(tokenString string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return ts.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(ts.now))

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, &models.TokenInvalidError{Reason: models.TokenBadSignature}
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, &models.TokenInvalidError{Reason: models.TokenExpired}
		default:
			return nil, &models.TokenInvalidError{Reason: models.TokenMalformed}
		}
	}

	if !token.Valid || claims.Subject == "" {
		return nil, &models.TokenInvalidError{Reason: models.TokenMalformed}
	}

	return claims, nil
}
