package workers

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"stridestats/internal/store"
)

func TestTokenRefresherStopsOnCancel(t *testing.T) {
	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	defer s.Close()

	refresher := NewTokenRefresher(s, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- refresher.Run(ctx) }()

	// Let a few ticks fire against the empty store, then stop.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("refresher did not stop after cancel")
	}
}

func TestRefreshSkipsFreshTokens(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	defer s.Close()

	creds := store.Credentials{
		AthleteID:    "12345",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		AccessToken:  "fresh-token",
		RefreshToken: "refresh-token",
		ExpiresAt:    time.Now().Add(6 * time.Hour).Unix(),
	}
	if err := s.SaveCredentials(ctx, creds); err != nil {
		t.Fatalf("saving: %v", err)
	}

	// A fresh token must not be touched; a refresh attempt here would hit
	// the real token endpoint and fail.
	refresher := NewTokenRefresher(s, time.Hour)
	refresher.refresh(ctx)

	got, err := s.GetCredentials(ctx, "12345")
	if err != nil {
		t.Fatalf("loading: %v", err)
	}
	if got.AccessToken != "fresh-token" {
		t.Errorf("expected token untouched, got %q", got.AccessToken)
	}
}
