package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"stridestats/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestResolveEmptyStore(t *testing.T) {
	p := NewStoreProvider(openTestStore(t))

	_, err := p.Resolve(context.Background(), "")
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestResolveUnknownAthlete(t *testing.T) {
	p := NewStoreProvider(openTestStore(t))

	_, err := p.Resolve(context.Background(), "nobody")
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestResolveValidToken(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.SaveCredentials(ctx, store.Credentials{
		AthleteID:    "12345",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		AccessToken:  "valid-token",
		RefreshToken: "refresh-token",
		ExpiresAt:    time.Now().Add(6 * time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("saving: %v", err)
	}

	p := NewStoreProvider(s)

	token, err := p.Resolve(ctx, "12345")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "valid-token" {
		t.Errorf("expected valid-token, got %q", token)
	}

	// The empty athlete id selects the default account.
	token, err = p.Resolve(ctx, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "valid-token" {
		t.Errorf("expected valid-token for default athlete, got %q", token)
	}
}

func TestResolveExpiredWithoutRefreshToken(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.SaveCredentials(ctx, store.Credentials{
		AthleteID:    "12345",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		AccessToken:  "stale-token",
		ExpiresAt:    time.Now().Add(-time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("saving: %v", err)
	}

	p := NewStoreProvider(s)

	_, err = p.Resolve(ctx, "12345")
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}
