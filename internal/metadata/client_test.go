package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"elsa-fe/internal/domain"
)

func newAPIServer(t *testing.T, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/quiz/code/ABC123", func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(domain.SessionDescriptor{
			ID: "s1", Code: "ABC123", Title: "Capitals", CreatedBy: "host@example.com",
			QuestionCount: 5, Status: domain.StatusWaiting,
		})
	})
	mux.HandleFunc("/quiz/s1/participants", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]domain.Participant{
			{UserID: "u1", Email: "alice@example.com"},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestSessionByCode(t *testing.T) {
	srv := newAPIServer(t, nil)
	client := NewClient(srv.URL, "tok-1", time.Second)

	desc, err := client.SessionByCode(context.Background(), "ABC123")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if desc.ID != "s1" || desc.QuestionCount != 5 {
		t.Fatalf("unexpected descriptor: %+v", desc)
	}
}

func TestSessionByCodeNotFound(t *testing.T) {
	srv := newAPIServer(t, nil)
	client := NewClient(srv.URL, "tok-1", time.Second)

	_, err := client.SessionByCode(context.Background(), "MISSING")
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestRejectedCredential(t *testing.T) {
	srv := newAPIServer(t, nil)

	client := NewClient(srv.URL, "wrong-token", time.Second)
	if _, err := client.SessionByCode(context.Background(), "ABC123"); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for rejected token, got %v", err)
	}

	empty := NewClient(srv.URL, "", time.Second)
	if _, err := empty.SessionByCode(context.Background(), "ABC123"); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated without a token, got %v", err)
	}
}

func TestParticipants(t *testing.T) {
	srv := newAPIServer(t, nil)
	client := NewClient(srv.URL, "tok-1", time.Second)

	roster, err := client.Participants(context.Background(), "s1")
	if err != nil {
		t.Fatalf("fetch roster: %v", err)
	}
	if len(roster) != 1 || roster[0].Email != "alice@example.com" {
		t.Fatalf("unexpected roster: %+v", roster)
	}
}

func TestDescriptorCacheAvoidsRefetch(t *testing.T) {
	var hits atomic.Int64
	srv := newAPIServer(t, &hits)
	cache := NewDescriptorCache(NewClient(srv.URL, "tok-1", time.Second), time.Minute)

	for i := 0; i < 3; i++ {
		if _, err := cache.SessionByCode(context.Background(), "ABC123"); err != nil {
			t.Fatalf("lookup %d: %v", i, err)
		}
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("expected a single upstream fetch, got %d", got)
	}

	cache.Invalidate("ABC123")
	if _, err := cache.SessionByCode(context.Background(), "ABC123"); err != nil {
		t.Fatalf("lookup after invalidate: %v", err)
	}
	if got := hits.Load(); got != 2 {
		t.Fatalf("expected refetch after invalidate, got %d hits", got)
	}
}

func TestDescriptorCacheExpires(t *testing.T) {
	var hits atomic.Int64
	srv := newAPIServer(t, &hits)
	cache := NewDescriptorCache(NewClient(srv.URL, "tok-1", time.Second), 10*time.Second)

	now := time.Now()
	cache.clock = func() time.Time { return now }

	if _, err := cache.SessionByCode(context.Background(), "ABC123"); err != nil {
		t.Fatalf("first lookup: %v", err)
	}
	now = now.Add(time.Minute)
	if _, err := cache.SessionByCode(context.Background(), "ABC123"); err != nil {
		t.Fatalf("lookup after expiry: %v", err)
	}
	if got := hits.Load(); got != 2 {
		t.Fatalf("expected expired entry to refetch, got %d hits", got)
	}
}

func TestLoginReturnsToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("username") != "alice@example.com" || r.PostForm.Get("password") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-9", "token_type": "bearer"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	token, err := Login(context.Background(), srv.URL, "alice@example.com", "secret", time.Second)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if token != "tok-9" {
		t.Fatalf("unexpected token %q", token)
	}

	if _, err := Login(context.Background(), srv.URL, "alice@example.com", "wrong", time.Second); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for bad password, got %v", err)
	}
}
