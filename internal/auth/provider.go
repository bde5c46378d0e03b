package auth

import (
	"context"
	"errors"
	"fmt"

	"stridestats/internal/logging"
	"stridestats/internal/store"
)

// ErrUnauthorized indicates no valid credential exists for the athlete.
var ErrUnauthorized = errors.New("auth: not authorized")

// TokenProvider resolves a bearer credential for an athlete. An empty
// athlete id selects the default (most recently authenticated) account.
type TokenProvider interface {
	Resolve(ctx context.Context, athleteID string) (string, error)
}

// StoreProvider resolves tokens from the credential store, refreshing and
// persisting them when they are about to expire.
type StoreProvider struct {
	store *store.Store
}

// NewStoreProvider creates a store-backed token provider.
func NewStoreProvider(s *store.Store) *StoreProvider {
	return &StoreProvider{store: s}
}

// Resolve returns a valid access token for the athlete, or ErrUnauthorized
// when none is stored and a refresh is not possible.
func (p *StoreProvider) Resolve(ctx context.Context, athleteID string) (string, error) {
	log := logging.Logger

	if athleteID == "" {
		id, err := p.store.DefaultAthleteID(ctx)
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrUnauthorized
		}
		if err != nil {
			return "", err
		}
		athleteID = id
	}

	creds, err := p.store.GetCredentials(ctx, athleteID)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrUnauthorized
	}
	if err != nil {
		return "", err
	}
	if creds.AccessToken == "" {
		return "", ErrUnauthorized
	}

	if !IsTokenExpired(creds.ExpiresAt) {
		return creds.AccessToken, nil
	}

	if creds.RefreshToken == "" {
		return "", ErrUnauthorized
	}

	log.Info().Str("athlete_id", athleteID).Msg("access token expired, refreshing")

	tokens, err := RefreshAccessToken(ctx, creds.ClientID, creds.ClientSecret, creds.RefreshToken)
	if err != nil {
		// A failed refresh means the grant was revoked or expired; the
		// athlete has to re-authenticate.
		return "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	if err := p.store.UpdateTokens(ctx, athleteID, tokens.AccessToken, tokens.RefreshToken, tokens.ExpiresAt); err != nil {
		return "", fmt.Errorf("saving refreshed tokens: %w", err)
	}

	return tokens.AccessToken, nil
}
