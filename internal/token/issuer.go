// Package token issues the short-lived EdDSA-signed bearer tokens required by
// token-authenticated weather providers.
package token

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/i474232898/weather-gateway/internal/metrics"
	"github.com/i474232898/weather-gateway/internal/weather"
)

const (
	// clockSkew backdates iat to tolerate upstream clock drift.
	clockSkew = 30 * time.Second
	// lifetime is the validity window starting at iat.
	lifetime = 900 * time.Second
	// refreshMargin is how long before exp a cached token stops being reused.
	refreshMargin = 300 * time.Second
)

var (
	errEmptyKey       = errors.New("private key is empty")
	errNotEd25519     = errors.New("private key is not an Ed25519 key")
	errMissingSubject = errors.New("subject (project id) is empty")
	errMissingKeyID   = errors.New("key id is empty")
)

// Config is the signing material for one credential.
type Config struct {
	Subject       string // project id
	KeyID         string // credential id
	PrivateKeyPEM string // PKCS8 Ed25519 key
}

// Issuer signs tokens and caches the last one until shortly before expiry.
// It is safe for concurrent use.
type Issuer struct {
	subject string
	keyID   string
	pemData string
	now     func() time.Time

	mu      sync.Mutex
	key     ed25519.PrivateKey
	token   string
	expires time.Time
}

// NewIssuer creates an Issuer. Key material is parsed lazily so that a bad key
// fails the request that needs it, not process startup.
func NewIssuer(cfg Config) *Issuer {
	return &Issuer{
		subject: cfg.Subject,
		keyID:   cfg.KeyID,
		pemData: cfg.PrivateKeyPEM,
		now:     time.Now,
	}
}

// WithClock replaces the time source.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// Token returns a valid signed token, generating a new one when the cached
// token is missing or within refreshMargin of expiry.
func (i *Issuer) Token() (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	now := i.now()
	if i.token != "" && now.Before(i.expires.Add(-refreshMargin)) {
		return i.token, nil
	}

	tok, exp, err := i.sign(now)
	if err != nil {
		return "", &weather.TokenGenerationError{Err: err}
	}
	i.token, i.expires = tok, exp
	metrics.TokensIssuedTotal.Inc()
	return tok, nil
}

func (i *Issuer) sign(now time.Time) (string, time.Time, error) {
	if i.subject == "" {
		return "", time.Time{}, errMissingSubject
	}
	if i.keyID == "" {
		return "", time.Time{}, errMissingKeyID
	}
	if i.key == nil {
		key, err := ParsePrivateKey(i.pemData)
		if err != nil {
			return "", time.Time{}, err
		}
		i.key = key
	}

	issuedAt := now.Add(-clockSkew).Truncate(time.Second)
	expiresAt := issuedAt.Add(lifetime)

	t := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.RegisteredClaims{
		Subject:   i.subject,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})
	// Header is exactly {alg, kid}.
	delete(t.Header, "typ")
	t.Header["kid"] = i.keyID

	signed, err := t.SignedString(i.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ParsePrivateKey decodes a PEM-encoded PKCS8 Ed25519 private key. Header and
// footer lines and all whitespace (including literal "\n" escapes from
// environment variables) are stripped before base64 decoding.
func ParsePrivateKey(pemData string) (ed25519.PrivateKey, error) {
	pemData = strings.ReplaceAll(pemData, `\n`, "\n")

	var b strings.Builder
	for _, line := range strings.Split(pemData, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "-----") {
			continue
		}
		b.WriteString(strings.Join(strings.Fields(line), ""))
	}
	body := b.String()
	if body == "" {
		return nil, errEmptyKey
	}

	der, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse PKCS8 private key: %w", err)
	}
	key, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errNotEd25519
	}
	return key, nil
}
