package auth

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"elsa-fe/internal/domain"
)

func signedToken(t *testing.T, subject string, expiresAt time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{Subject: subject}
	if !expiresAt.IsZero() {
		claims.ExpiresAt = jwt.NewNumericDate(expiresAt)
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestTokenStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token")
	store, err := NewTokenStore(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if _, err := store.Load(); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for missing token, got %v", err)
	}

	if err := store.Save("tok-abc"); err != nil {
		t.Fatalf("save: %v", err)
	}
	token, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if token != "tok-abc" {
		t.Fatalf("expected stored token back, got %q", token)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("clear must be idempotent: %v", err)
	}
	if _, err := store.Load(); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated after clear, got %v", err)
	}
}

func TestParseIdentity(t *testing.T) {
	now := time.Now()
	token := signedToken(t, "alice@example.com", now.Add(time.Hour))

	identity, err := ParseIdentity(token, now)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if identity.Email != "alice@example.com" {
		t.Fatalf("unexpected identity: %+v", identity)
	}
}

func TestParseIdentityExpired(t *testing.T) {
	now := time.Now()
	token := signedToken(t, "alice@example.com", now.Add(-time.Minute))

	if _, err := ParseIdentity(token, now); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for expired token, got %v", err)
	}
}

func TestParseIdentityGarbage(t *testing.T) {
	if _, err := ParseIdentity("not-a-jwt", time.Now()); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for unparseable token, got %v", err)
	}
	if _, err := ParseIdentity(signedToken(t, "", time.Time{}), time.Now()); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for missing subject, got %v", err)
	}
}
