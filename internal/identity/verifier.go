// Package identity verifies login tokens and resolves invited contacts to
// player ids.
package identity

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthenticated is returned for any token that cannot be trusted.
var ErrUnauthenticated = errors.New("unauthenticated")

// Config defines how login tokens are signed and verified.
type Config struct {
	Secret   []byte
	Issuer   string
	Audience string
	Now      func() time.Time
}

// Claims are the validated contents of a login token
type Claims struct {
	Subject   string
	Name      string
	Email     string
	ExpiresAt time.Time
}

type loginClaims struct {
	jwt.RegisteredClaims
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Verifier checks HS256 login tokens
type Verifier struct {
	cfg Config
}

// NewVerifier validates cfg and returns a verifier
func NewVerifier(cfg Config) (*Verifier, error) {
	if len(cfg.Secret) == 0 {
		return nil, fmt.Errorf("token secret is required")
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, fmt.Errorf("token issuer is required")
	}
	if strings.TrimSpace(cfg.Audience) == "" {
		return nil, fmt.Errorf("token audience is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Verifier{cfg: cfg}, nil
}

// Verify parses token and checks its signature, issuer, audience, subject and
// expiry.
func (v *Verifier) Verify(token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, fmt.Errorf("%w: token is required", ErrUnauthenticated)
	}

	var parsed loginClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return v.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Claims{}, mapJWTError(err)
	}

	if parsed.Issuer != v.cfg.Issuer {
		return Claims{}, fmt.Errorf("%w: issuer mismatch", ErrUnauthenticated)
	}
	if !slices.Contains(parsed.Audience, v.cfg.Audience) {
		return Claims{}, fmt.Errorf("%w: audience mismatch", ErrUnauthenticated)
	}
	if strings.TrimSpace(parsed.Subject) == "" {
		return Claims{}, fmt.Errorf("%w: sub is required", ErrUnauthenticated)
	}
	if parsed.ExpiresAt == nil {
		return Claims{}, fmt.Errorf("%w: exp is required", ErrUnauthenticated)
	}

	now := v.cfg.Now().UTC()
	exp := parsed.ExpiresAt.Time.UTC()
	if !exp.After(now) {
		return Claims{}, fmt.Errorf("%w: token is expired", ErrUnauthenticated)
	}
	if parsed.NotBefore != nil && now.Before(parsed.NotBefore.Time) {
		return Claims{}, fmt.Errorf("%w: token not active yet", ErrUnauthenticated)
	}

	return Claims{
		Subject:   parsed.Subject,
		Name:      strings.TrimSpace(parsed.Name),
		Email:     strings.TrimSpace(parsed.Email),
		ExpiresAt: exp,
	}, nil
}

// Issue signs a token for c that expires after ttl. Used by the dev token
// command and tests.
func (v *Verifier) Issue(c Claims, ttl time.Duration) (string, error) {
	now := v.cfg.Now().UTC()
	claims := loginClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.cfg.Issuer,
			Audience:  jwt.ClaimStrings{v.cfg.Audience},
			Subject:   c.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Name:  c.Name,
		Email: c.Email,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.cfg.Secret)
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: signature is invalid", ErrUnauthenticated)
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: alg is invalid", ErrUnauthenticated)
	default:
		return fmt.Errorf("%w: token is malformed", ErrUnauthenticated)
	}
}
