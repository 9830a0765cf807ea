package jwtx

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed    = errors.New("jwtx: malformed token")
	ErrExpired      = errors.New("jwtx: token expired")
	ErrIssuer       = errors.New("jwtx: issuer mismatch")
	ErrUnknownKID   = errors.New("jwtx: unknown kid")
	ErrInvalidClaim = errors.New("jwtx: invalid claims")
)

// Issuer signs and verifies Ed25519 session tokens with a fixed TTL. The
// keypair is generated at construction and lives for the process; key
// rotation and distribution are out of scope here.
type Issuer struct {
	issuer string
	ttl    time.Duration
	kid    string
	key    ed25519.PrivateKey
	pub    ed25519.PublicKey
}

// NewIssuer creates an Issuer with a fresh Ed25519 keypair. A non-positive
// ttl falls back to DefaultSessionTTL.
func NewIssuer(issuer string, ttl time.Duration) (*Issuer, error) {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	pub, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("jwtx: generate keypair: %w", err)
	}

	return &Issuer{
		issuer: issuer,
		ttl:    ttl,
		kid:    NewJTI(),
		key:    key,
		pub:    pub,
	}, nil
}

// TTL returns the configured session token lifetime.
func (i *Issuer) TTL() time.Duration { return i.ttl }

// Issue signs a session token for the account and returns it with its expiry.
func (i *Issuer) Issue(accountID, username string, roles []string) (string, time.Time, error) {
	now := time.Now().UTC()
	claims := NewSessionClaims(accountID, username, roles, i.issuer, i.ttl, now)

	t := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	t.Header["kid"] = i.kid

	signed, err := t.SignedString(i.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwtx: sign: %w", err)
	}
	return signed, claims.ExpiresAt.Time, nil
}

// Verify validates the token signature, algorithm, expiry, and issuer, and
// returns the parsed claims.
func (i *Issuer) Verify(tokenStr string) (SessionClaims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}))

	token, err := parser.ParseWithClaims(tokenStr, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid != i.kid {
			return nil, ErrUnknownKID
		}
		return i.pub, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return SessionClaims{}, ErrExpired
		}
		return SessionClaims{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return SessionClaims{}, ErrInvalidClaim
	}
	if i.issuer != "" && claims.Issuer != i.issuer {
		return SessionClaims{}, ErrIssuer
	}

	return *claims, nil
}

// IsExpired reports whether the token fails verification solely because its
// expiry has passed.
func (i *Issuer) IsExpired(tokenStr string) bool {
	_, err := i.Verify(tokenStr)
	return errors.Is(err, ErrExpired)
}
