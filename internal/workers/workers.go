// Package workers holds background loops that run for the lifetime of the
// process.
package workers

import (
	"context"
	"errors"
	"time"

	"stridestats/internal/auth"
	"stridestats/internal/logging"
	"stridestats/internal/store"
)

// refreshMargin is how far ahead of expiry the refresher renews tokens.
const refreshMargin = 10 * time.Minute

// TokenRefresher keeps the default athlete's access token fresh so that
// request-time refreshes stay the exception rather than the rule.
type TokenRefresher struct {
	store    *store.Store
	interval time.Duration
}

// NewTokenRefresher creates a refresher that checks every interval.
func NewTokenRefresher(s *store.Store, interval time.Duration) *TokenRefresher {
	return &TokenRefresher{store: s, interval: interval}
}

// Run checks immediately, then on every tick, until the context is
// cancelled. It always returns ctx.Err().
func (t *TokenRefresher) Run(ctx context.Context) error {
	log := logging.Logger
	log.Debug().Dur("interval", t.interval).Msg("token refresher started")

	t.refresh(ctx)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("token refresher stopped")
			return ctx.Err()
		case <-ticker.C:
			t.refresh(ctx)
		}
	}
}

// refresh renews the default athlete's tokens when they are close to
// expiry. Failures are logged and retried on the next tick; the request
// path refreshes on demand regardless.
func (t *TokenRefresher) refresh(ctx context.Context) {
	log := logging.Logger

	athleteID, err := t.store.DefaultAthleteID(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return
	}
	if err != nil {
		log.Warn().Err(err).Msg("token refresher: loading default athlete")
		return
	}

	creds, err := t.store.GetCredentials(ctx, athleteID)
	if err != nil {
		log.Warn().Err(err).Str("athlete_id", athleteID).Msg("token refresher: loading credentials")
		return
	}
	if creds.RefreshToken == "" {
		return
	}

	expiresIn := time.Until(time.Unix(creds.ExpiresAt, 0))
	if expiresIn > refreshMargin {
		return
	}

	log.Info().Str("athlete_id", athleteID).Dur("expires_in", expiresIn).Msg("refreshing access token")

	tokens, err := auth.RefreshAccessToken(ctx, creds.ClientID, creds.ClientSecret, creds.RefreshToken)
	if err != nil {
		log.Warn().Err(err).Str("athlete_id", athleteID).Msg("token refresh failed")
		return
	}

	if err := t.store.UpdateTokens(ctx, athleteID, tokens.AccessToken, tokens.RefreshToken, tokens.ExpiresAt); err != nil {
		log.Warn().Err(err).Str("athlete_id", athleteID).Msg("saving refreshed tokens")
		return
	}

	log.Info().Str("athlete_id", athleteID).Msg("access token refreshed")
}
