package jwtinfra

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/forum-api/internal/config"
	"github.com/forum-api/internal/pkg/clock"
	"github.com/golang-jwt/jwt/v5"
)

// Token type discriminators. An access token must never pass where a refresh
// token is required, and vice versa.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Leeway absorbs clock drift between nodes when checking iat/exp boundaries.
const Leeway = 30 * time.Second

// Verification failure modes, distinguishable with errors.Is.
var (
	ErrExpired          = errors.New("token expired")
	ErrMalformed        = errors.New("token malformed")
	ErrWrongType        = errors.New("wrong token type")
	ErrSignatureInvalid = errors.New("token signature invalid")
)

// Claims holds the JWT payload fields.
type Claims struct {
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// Provider signs and verifies RS256 JWTs. The signing key is loaded once at
// startup and never mutated; each token carries the key id in its header so
// tokens signed with a retired key keep validating (via publicKeys) until
// they expire.
type Provider struct {
	privateKey *rsa.PrivateKey
	keyID      string
	publicKeys map[string]*rsa.PublicKey
	clk        clock.Clock
}

func NewProvider(cfg *config.Config) (*Provider, error) {
	privBytes, err := os.ReadFile(cfg.JWTPrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	privKey, err := jwt.ParseRSAPrivateKeyFromPEM(privBytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	pubBytes, err := os.ReadFile(cfg.JWTPublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubBytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	return NewProviderFromKeys(privKey, cfg.JWTKeyID, map[string]*rsa.PublicKey{cfg.JWTKeyID: pubKey}, clock.Real{}), nil
}

// NewProviderFromKeys wires a provider from in-memory keys. publicKeys may
// contain retired key ids alongside the active one.
func NewProviderFromKeys(priv *rsa.PrivateKey, keyID string, publicKeys map[string]*rsa.PublicKey, clk clock.Clock) *Provider {
	return &Provider{privateKey: priv, keyID: keyID, publicKeys: publicKeys, clk: clk}
}

// Sign issues a token of the given type for subject userID.
func (p *Provider) Sign(userID, tokenType, jti string, ttl time.Duration) (string, error) {
	now := p.clk.Now()
	claims := Claims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = p.keyID
	return token.SignedString(p.privateKey)
}

// Verify checks signature, expiry (with leeway) and the type discriminator.
func (p *Provider) Verify(tokenStr, wantType string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, p.keyFor,
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithLeeway(Leeway),
		jwt.WithTimeFunc(p.clk.Now),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, fmt.Errorf("%w", ErrExpired)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, fmt.Errorf("%w", ErrSignatureInvalid)
		default:
			return nil, fmt.Errorf("%v: %w", err, ErrMalformed)
		}
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrMalformed
	}
	if claims.TokenType != wantType {
		return nil, fmt.Errorf("got %q, want %q: %w", claims.TokenType, wantType, ErrWrongType)
	}
	return claims, nil
}

func (p *Provider) keyFor(t *jwt.Token) (interface{}, error) {
	if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
		return nil, errors.New("unexpected signing method")
	}
	kid, _ := t.Header["kid"].(string)
	key, ok := p.publicKeys[kid]
	if !ok {
		return nil, fmt.Errorf("unknown key id %q", kid)
	}
	return key, nil
}
