package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lucsky/cuid"

	"workspace-search/internal/common/errors"
)

// stateTTL bounds how long an authorization round trip may take before the
// state token is considered stale.
const stateTTL = 10 * time.Minute

// StateSigner issues and verifies the signed state tokens that tie an
// OAuth callback back to the authorization redirect we produced. The token
// is an HS256 JWT carrying the provider name and a random nonce.
type StateSigner struct {
	secret []byte
	now    func() time.Time
}

// NewStateSigner creates a signer keyed with the given secret.
func NewStateSigner(secret string) *StateSigner {
	return &StateSigner{
		secret: []byte(secret),
		now:    time.Now,
	}
}

type stateClaims struct {
	Provider string `json:"provider"`
	Nonce    string `json:"nonce"`
	jwt.RegisteredClaims
}

// Issue creates a state token bound to the given provider.
func (s *StateSigner) Issue(provider string) (string, error) {
	now := s.now()
	claims := stateClaims{
		Provider: provider,
		Nonce:    cuid.New(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(stateTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", errors.InternalError("failed to sign state token", err)
	}
	return signed, nil
}

// Verify checks the token's signature, expiry and provider binding.
func (s *StateSigner) Verify(tokenString, provider string) error {
	claims := &stateClaims{}

	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.ValidationError("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now() }))

	if err != nil || !parsed.Valid {
		return errors.ValidationError("invalid state token")
	}
	if claims.Provider != provider {
		return errors.ValidationError("state token issued for a different provider")
	}
	return nil
}
