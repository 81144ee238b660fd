// Package auth guards certificate generation behind a shared passphrase and
// an email-domain requirement, and issues short-lived session tokens.
package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Issuer is the "iss" claim of session tokens.
const Issuer = "certgen"

// DefaultSessionTTL is how long a session token stays valid.
const DefaultSessionTTL = 8 * time.Hour

var (
	ErrBadEmail      = errors.New("email address is not valid")
	ErrEmailDomain   = errors.New("email address is not in the allowed domain")
	ErrBadPassphrase = errors.New("incorrect passphrase")
	ErrBadToken      = errors.New("session token is invalid or expired")
)

// Gate checks credentials and signs sessions.
type Gate struct {
	hash   []byte
	domain string
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Option configures a Gate.
type Option func(*Gate)

// WithSessionTTL sets the lifetime of issued tokens.
func WithSessionTTL(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.ttl = d
		}
	}
}

// WithClock overrides the time source for issuing and verifying tokens.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// NewGate builds a gate. passphrase may be plain text or a bcrypt hash.
// domain is the required email suffix, with or without the leading "@".
// An empty secret gets a random one, so sessions end when the process does.
func NewGate(passphrase, domain string, secret []byte, opts ...Option) (*Gate, error) {
	if passphrase == "" {
		return nil, errors.New("passphrase is required")
	}
	hash, err := HashPassphrase(passphrase)
	if err != nil {
		return nil, err
	}
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("rand.Read: %w", err)
		}
	}
	g := &Gate{
		hash:   hash,
		domain: normalizeDomain(domain),
		secret: secret,
		ttl:    DefaultSessionTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// HashPassphrase returns a bcrypt hash of p. A value that is already a bcrypt
// hash is returned unchanged.
func HashPassphrase(p string) ([]byte, error) {
	if _, err := bcrypt.Cost([]byte(p)); err == nil {
		return []byte(p), nil
	}
	return bcrypt.GenerateFromPassword([]byte(p), bcrypt.DefaultCost)
}

// Domain is the required email suffix, always starting with "@". Empty means
// any domain is accepted.
func (g *Gate) Domain() string { return g.domain }

// Check validates a sign-in attempt and returns the normalized identity.
func (g *Gate) Check(email, passphrase string) (string, error) {
	identity, err := g.checkEmail(email)
	if err != nil {
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword(g.hash, []byte(passphrase)); err != nil {
		return "", ErrBadPassphrase
	}
	return identity, nil
}

func (g *Gate) checkEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrBadEmail
	}
	if g.domain != "" && !strings.HasSuffix(email, g.domain) {
		return "", fmt.Errorf("%w: want %s", ErrEmailDomain, g.domain)
	}
	return email, nil
}

// Issue signs a session token for identity.
func (g *Gate) Issue(identity string) (string, error) {
	now := g.now()
	claims := jwt.RegisteredClaims{
		Issuer:    Issuer,
		Subject:   identity,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
}

// Verify parses a session token and returns its identity.
func (g *Gate) Verify(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return g.secret, nil
	},
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return "", ErrBadToken
	}
	return claims.Subject, nil
}

func normalizeDomain(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	if d == "" || strings.HasPrefix(d, "@") {
		return d
	}
	return "@" + d
}
