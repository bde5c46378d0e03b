package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when no credentials exist for an athlete.
var ErrNotFound = errors.New("store: credentials not found")

// Credentials holds the OAuth client configuration and tokens for one
// athlete.
type Credentials struct {
	AthleteID    string
	ClientID     string
	ClientSecret string
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64
}

// SaveCredentials inserts or replaces the credentials for an athlete.
func (s *Store) SaveCredentials(ctx context.Context, c Credentials) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credentials (athlete_id, client_id, client_secret, access_token, refresh_token, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (athlete_id) DO UPDATE SET
			client_id = excluded.client_id,
			client_secret = excluded.client_secret,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`,
		c.AthleteID, c.ClientID, c.ClientSecret,
		nullString(c.AccessToken), nullString(c.RefreshToken), nullInt64(c.ExpiresAt),
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("saving credentials: %w", err)
	}
	return nil
}

// GetCredentials loads the credentials for an athlete.
func (s *Store) GetCredentials(ctx context.Context, athleteID string) (Credentials, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT athlete_id, client_id, client_secret, access_token, refresh_token, expires_at
		FROM credentials WHERE athlete_id = ?`, athleteID)

	var (
		c            Credentials
		accessToken  sql.NullString
		refreshToken sql.NullString
		expiresAt    sql.NullInt64
	)
	err := row.Scan(&c.AthleteID, &c.ClientID, &c.ClientSecret, &accessToken, &refreshToken, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Credentials{}, ErrNotFound
	}
	if err != nil {
		return Credentials{}, fmt.Errorf("loading credentials: %w", err)
	}

	c.AccessToken = accessToken.String
	c.RefreshToken = refreshToken.String
	c.ExpiresAt = expiresAt.Int64
	return c, nil
}

// DefaultAthleteID returns the most recently updated athlete. Used when a
// caller does not name one, which is the common single-account case.
func (s *Store) DefaultAthleteID(ctx context.Context) (string, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT athlete_id FROM credentials ORDER BY updated_at DESC, athlete_id LIMIT 1`)

	var athleteID string
	err := row.Scan(&athleteID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("loading default athlete: %w", err)
	}
	return athleteID, nil
}

// UpdateTokens replaces the stored tokens for an athlete, preserving the
// client configuration.
func (s *Store) UpdateTokens(ctx context.Context, athleteID, accessToken, refreshToken string, expiresAt int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE credentials
		SET access_token = ?, refresh_token = ?, expires_at = ?, updated_at = ?
		WHERE athlete_id = ?`,
		nullString(accessToken), nullString(refreshToken), nullInt64(expiresAt),
		time.Now().Unix(), athleteID,
	)
	if err != nil {
		return fmt.Errorf("updating tokens: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating tokens: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCredentials removes the stored credentials for an athlete.
func (s *Store) DeleteCredentials(ctx context.Context, athleteID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE athlete_id = ?`, athleteID); err != nil {
		return fmt.Errorf("deleting credentials: %w", err)
	}
	return nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}
