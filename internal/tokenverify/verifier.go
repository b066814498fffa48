// Package tokenverify validates externally issued identity tokens against an
// expected issuer and audience. It performs no lookups and has no persistence
// side effects; linking verified claims to a local account is the caller's job.
package tokenverify

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenExpired is returned for tokens past their expiry.
	ErrTokenExpired = errors.New("identity token expired")
	// ErrAudienceMismatch is returned when the token was issued for a
	// different audience.
	ErrAudienceMismatch = errors.New("identity token audience mismatch")
	// ErrTokenMalformed covers bad signatures, wrong issuers, and anything
	// else that is not a valid token for this service.
	ErrTokenMalformed = errors.New("identity token invalid")
	// ErrNotConfigured is returned when the verifier is missing its key,
	// issuer, or audience.
	ErrNotConfigured = errors.New("token verifier is not configured")
)

// Claims is the verified payload of an identity token.
type Claims struct {
	Subject   string    `json:"sub"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Issuer    string    `json:"iss"`
	Audience  []string  `json:"aud"`
	ExpiresAt time.Time `json:"exp"`
	IssuedAt  time.Time `json:"iat"`
}

// idTokenClaims is the internal claims type used for JWT parsing.
type idTokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Name  string `json:"name"`
}

// configEnv holds raw env values before post-parse validation.
type configEnv struct {
	Issuer    string `env:"ID_TOKEN_ISSUER"`
	Audience  string `env:"ID_TOKEN_AUDIENCE"`
	PublicKey string `env:"ID_TOKEN_PUBLIC_KEY"`
}

// Config defines how identity tokens are verified.
type Config struct {
	Issuer   string
	Audience string
	Key      ed25519.PublicKey
	Now      func() time.Time
}

// LoadConfigFromEnv reads the verifier configuration from the environment.
// The audience must come from configuration, never from the request.
func LoadConfigFromEnv() (Config, error) {
	var raw configEnv
	if err := env.Parse(&raw); err != nil {
		return Config{}, fmt.Errorf("parse token verifier env: %w", err)
	}
	issuer := strings.TrimSpace(raw.Issuer)
	audience := strings.TrimSpace(raw.Audience)
	publicKey := strings.TrimSpace(raw.PublicKey)
	if issuer == "" {
		return Config{}, fmt.Errorf("ID_TOKEN_ISSUER is required")
	}
	if audience == "" {
		return Config{}, fmt.Errorf("ID_TOKEN_AUDIENCE is required")
	}
	if publicKey == "" {
		return Config{}, fmt.Errorf("ID_TOKEN_PUBLIC_KEY is required")
	}
	keyBytes, err := decodeBase64(publicKey)
	if err != nil {
		return Config{}, fmt.Errorf("decode token verifier public key: %w", err)
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		return Config{}, fmt.Errorf("token verifier public key must be %d bytes", ed25519.PublicKeySize)
	}
	return Config{
		Issuer:   issuer,
		Audience: audience,
		Key:      ed25519.PublicKey(keyBytes),
		Now:      time.Now,
	}, nil
}

// Verifier checks identity tokens against a single issuer/audience pair.
type Verifier struct {
	cfg Config
}

// New creates a Verifier from cfg.
func New(cfg Config) *Verifier {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Verifier{cfg: cfg}
}

// Verify parses and validates token, returning its claims. Failures are never
// swallowed: an expired, malformed, or wrong-audience token is an error.
func (v *Verifier) Verify(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenMalformed
	}
	if v.cfg.Issuer == "" || v.cfg.Audience == "" || len(v.cfg.Key) != ed25519.PublicKeySize {
		return nil, ErrNotConfigured
	}

	var parsed idTokenClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(t *jwt.Token) (any, error) {
		return v.cfg.Key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithIssuer(v.cfg.Issuer),
		jwt.WithAudience(v.cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.cfg.Now),
	)
	if err != nil {
		return nil, mapJWTError(err)
	}
	if parsed.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenMalformed)
	}

	claims := &Claims{
		Subject:  parsed.Subject,
		Email:    parsed.Email,
		Name:     parsed.Name,
		Issuer:   parsed.Issuer,
		Audience: parsed.Audience,
	}
	if parsed.ExpiresAt != nil {
		claims.ExpiresAt = parsed.ExpiresAt.Time
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time
	}
	return claims, nil
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return fmt.Errorf("%w: %v", ErrAudienceMismatch, err)
	default:
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
}

func decodeBase64(s string) ([]byte, error) {
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}
