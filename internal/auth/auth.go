// Package auth mints and verifies the HMAC-signed bearer tokens that
// tie a connection to a user id. Tokens are compact JWTs (HS256); the
// sub claim carries the user id the core keys everything on.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidToken indicates the token is definitively invalid:
	// malformed, bad signature, or wrong algorithm.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrExpiredToken indicates a well-formed token past its expiry.
	ErrExpiredToken = errors.New("auth: token expired")
)

// Claims is the verified identity carried by a token.
type Claims struct {
	Subject   string `json:"sub"`
	Name      string `json:"name"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// Verifier checks bearer tokens. The hub and the HTTP surface both
// consume this interface so tests can substitute a stub.
type Verifier interface {
	Verify(token string) (*Claims, error)
}

// Authenticator issues and verifies tokens with a shared HMAC secret.
type Authenticator struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Option adjusts an Authenticator.
type Option func(*Authenticator)

// WithTTL overrides the default 7-day token lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(a *Authenticator) { a.ttl = ttl }
}

// WithNow injects the clock used for iat/exp, for tests.
func WithNow(now func() time.Time) Option {
	return func(a *Authenticator) { a.now = now }
}

// New builds an Authenticator from the configured secret.
func New(secret string, opts ...Option) *Authenticator {
	a := &Authenticator{
		secret: []byte(secret),
		ttl:    7 * 24 * time.Hour,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type header struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

// Issue mints a token for the user.
func (a *Authenticator) Issue(userID, name string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("auth: issue token: empty user id")
	}
	now := a.now()
	claims := Claims{
		Subject:   userID,
		Name:      name,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(a.ttl).Unix(),
	}

	headerJSON, _ := json.Marshal(header{Alg: "HS256", Typ: "JWT"})
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("auth: marshal claims: %w", err)
	}

	enc := base64.RawURLEncoding
	signed := enc.EncodeToString(headerJSON) + "." + enc.EncodeToString(claimsJSON)
	return signed + "." + enc.EncodeToString(a.sign(signed)), nil
}

// Verify checks the signature and expiry and returns the claims.
func (a *Authenticator) Verify(token string) (*Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, ErrInvalidToken
	}
	enc := base64.RawURLEncoding

	headerJSON, err := enc.DecodeString(parts[0])
	if err != nil {
		return nil, ErrInvalidToken
	}
	var hdr header
	if err := json.Unmarshal(headerJSON, &hdr); err != nil || hdr.Alg != "HS256" {
		return nil, ErrInvalidToken
	}

	sig, err := enc.DecodeString(parts[2])
	if err != nil {
		return nil, ErrInvalidToken
	}
	if !hmac.Equal(sig, a.sign(parts[0]+"."+parts[1])) {
		return nil, ErrInvalidToken
	}

	claimsJSON, err := enc.DecodeString(parts[1])
	if err != nil {
		return nil, ErrInvalidToken
	}
	var claims Claims
	if err := json.Unmarshal(claimsJSON, &claims); err != nil {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	if claims.ExpiresAt != 0 && a.now().Unix() > claims.ExpiresAt {
		return nil, ErrExpiredToken
	}
	return &claims, nil
}

func (a *Authenticator) sign(payload string) []byte {
	mac := hmac.New(sha256.New, a.secret)
	mac.Write([]byte(payload))
	return mac.Sum(nil)
}
