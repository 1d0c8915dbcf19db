// Package token issues the capability tokens applications use to call back
// into appdeck.
package token

import (
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"appdeck/internal/domain/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	issuerName = "appdeck"
	keyLength  = 32
)

var ErrInvalidToken = errors.New("invalid capability token")

// Claims binds a token to an application and its source identity.
type Claims struct {
	Source string `json:"src"`
	jwt.RegisteredClaims
}

// Issuer signs HS256 tokens with a key kept on disk.
type Issuer struct {
	keyPath string
	ttl     time.Duration
	now     func() time.Time

	mu  sync.Mutex
	key []byte
}

var _ repository.TokenIssuer = (*Issuer)(nil)

// NewIssuer creates an Issuer. The key at keyPath is created on first use.
func NewIssuer(keyPath string, ttl time.Duration) *Issuer {
	return &Issuer{keyPath: keyPath, ttl: ttl, now: time.Now}
}

// Issue returns existing when it verifies, is bound to the same application
// and source, and has more than a tenth of its lifetime left.
func (i *Issuer) Issue(appID, sourceIdentity, existing string) (string, error) {
	if existing != "" {
		if claims, err := i.Verify(existing); err == nil &&
			claims.Subject == appID && claims.Source == sourceIdentity &&
			claims.ExpiresAt != nil && claims.ExpiresAt.Sub(i.now()) > i.ttl/10 {
			return existing, nil
		}
	}

	key, err := i.signingKey()
	if err != nil {
		return "", err
	}
	now := i.now()
	claims := Claims{
		Source: sourceIdentity,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuerName,
			Subject:   appID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of token and returns its claims.
func (i *Issuer) Verify(token string) (*Claims, error) {
	key, err := i.signingKey()
	if err != nil {
		return nil, err
	}
	claims := &Claims{}
	_, err = jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithIssuer(issuerName),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	return claims, nil
}

func (i *Issuer) signingKey() ([]byte, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.key != nil {
		return i.key, nil
	}

	key, err := os.ReadFile(i.keyPath)
	switch {
	case err == nil && len(key) >= keyLength:
		i.key = key
		return key, nil
	case err == nil:
		return nil, fmt.Errorf("token key %s is too short", i.keyPath)
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("failed to read token key: %w", err)
	}

	key = make([]byte, keyLength)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate token key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(i.keyPath), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create secrets directory: %w", err)
	}
	if err := os.WriteFile(i.keyPath, key, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write token key: %w", err)
	}
	i.key = key
	return key, nil
}
