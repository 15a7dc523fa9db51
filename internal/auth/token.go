package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"elsa-fe/internal/domain"
)

// TokenStore persists the bearer token across processes, the way the
// original client kept it in browser storage. The coordinator only ever
// reads it; login/logout are the only writers.
type TokenStore struct {
	path string
}

// NewTokenStore returns a store at path, or at the default location under
// the user's home directory when path is empty.
func NewTokenStore(path string) (*TokenStore, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		path = filepath.Join(home, ".elsa-fe", "token")
	}
	return &TokenStore{path: path}, nil
}

// Load returns the stored token, or ErrUnauthenticated if none exists.
func (s *TokenStore) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", domain.ErrUnauthenticated
	}
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", domain.ErrUnauthenticated
	}
	return token, nil
}

// Save writes the token, creating the parent directory if needed.
func (s *TokenStore) Save(token string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	if err := os.WriteFile(s.path, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}

// Clear removes the stored token. Missing files are not an error.
func (s *TokenStore) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token: %w", err)
	}
	return nil
}

// Identity is the caller identity carried inside the bearer token.
type Identity struct {
	Email     string
	ExpiresAt time.Time
}

type claims struct {
	jwt.RegisteredClaims
}

// ParseIdentity decodes the token's claims without verifying the signature;
// the client holds no signing secret, so the server remains the authority.
// Expired or unreadable tokens yield ErrUnauthenticated.
func ParseIdentity(token string, now time.Time) (Identity, error) {
	var c claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &c); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	if c.Subject == "" {
		return Identity{}, fmt.Errorf("%w: token has no subject", domain.ErrUnauthenticated)
	}
	id := Identity{Email: c.Subject}
	if c.ExpiresAt != nil {
		id.ExpiresAt = c.ExpiresAt.Time
		if !now.Before(id.ExpiresAt) {
			return Identity{}, fmt.Errorf("%w: token expired", domain.ErrUnauthenticated)
		}
	}
	return id, nil
}
