// Package service orchestrates one stats request: validate the window,
// resolve a credential, fetch the activity set, and hand it to the pure
// aggregation functions. Nothing is cached or persisted; every call
// recomputes from a fresh fetch.
package service

import (
	"context"
	"errors"
	"time"

	"stridestats/internal/logging"
	"stridestats/internal/stats"
	"stridestats/internal/strava"
)

// ErrInvalidDateRange is returned when after is strictly later than before.
var ErrInvalidDateRange = errors.New("start date must be before or equal to end date")

// Window is an optional inclusive [after, before] bound on local civil
// dates. A nil bound is unbounded on that side.
type Window struct {
	After  *time.Time
	Before *time.Time
}

// Validate rejects windows whose lower bound is past the upper bound. This
// is a usage error and is checked before any fetch occurs.
func (w Window) Validate() error {
	if w.After != nil && w.Before != nil && w.After.After(*w.Before) {
		return ErrInvalidDateRange
	}
	return nil
}

// TokenProvider resolves a bearer credential for an athlete.
type TokenProvider interface {
	Resolve(ctx context.Context, athleteID string) (string, error)
}

// ActivityFetcher retrieves the complete activity set for a date window.
type ActivityFetcher interface {
	FetchWindow(ctx context.Context, accessToken string, after, before *time.Time) ([]strava.Activity, error)
}

// Service exposes the stats operations over a token provider and fetcher.
type Service struct {
	tokens  TokenProvider
	fetcher ActivityFetcher
	now     func() time.Time
}

// New creates a stats service.
func New(tokens TokenProvider, fetcher ActivityFetcher) *Service {
	return &Service{
		tokens:  tokens,
		fetcher: fetcher,
		now:     time.Now,
	}
}

// activities validates the window and fetches the activity set for one
// request. Fetch failures propagate; they are never flattened into an empty
// set that could read as "no activities".
func (s *Service) activities(ctx context.Context, athleteID string, win Window) ([]strava.Activity, error) {
	if err := win.Validate(); err != nil {
		return nil, err
	}

	token, err := s.tokens.Resolve(ctx, athleteID)
	if err != nil {
		return nil, err
	}

	activities, err := s.fetcher.FetchWindow(ctx, token, win.After, win.Before)
	if err != nil {
		return nil, err
	}

	logging.Logger.Debug().
		Str("athlete_id", athleteID).
		Int("activities", len(activities)).
		Msg("activity set fetched")

	return activities, nil
}

// Summary returns the total count and moving time for the window.
func (s *Service) Summary(ctx context.Context, athleteID string, win Window) (stats.Summary, error) {
	activities, err := s.activities(ctx, athleteID, win)
	if err != nil {
		return stats.Summary{}, err
	}
	return stats.Summarize(activities), nil
}

// CountDistribution returns per-category activity counts.
func (s *Service) CountDistribution(ctx context.Context, athleteID string, win Window) ([]stats.ActivityCount, error) {
	activities, err := s.activities(ctx, athleteID, win)
	if err != nil {
		return nil, err
	}
	return stats.CountDistribution(activities), nil
}

// TimeDistribution returns per-category moving-time shares.
func (s *Service) TimeDistribution(ctx context.Context, athleteID string, win Window) ([]stats.TimeShare, error) {
	activities, err := s.activities(ctx, athleteID, win)
	if err != nil {
		return nil, err
	}
	return stats.TimeDistribution(activities), nil
}

// WorkoutHeatmap returns daily moving-hour heatmap points for all
// activities.
func (s *Service) WorkoutHeatmap(ctx context.Context, athleteID string, win Window) ([]stats.HeatmapPoint, error) {
	activities, err := s.activities(ctx, athleteID, win)
	if err != nil {
		return nil, err
	}
	return stats.WorkoutHeatmap(activities), nil
}

// WorkoutHeatmapSummary returns streak and gap statistics. The reference
// date is the window's upper bound when given, otherwise today.
func (s *Service) WorkoutHeatmapSummary(ctx context.Context, athleteID string, win Window) (stats.StreakSummary, error) {
	activities, err := s.activities(ctx, athleteID, win)
	if err != nil {
		return stats.StreakSummary{}, err
	}

	reference := s.now()
	if win.Before != nil {
		reference = *win.Before
	}
	return stats.Streaks(activities, reference), nil
}

// RunStatistics returns aggregate run metrics.
func (s *Service) RunStatistics(ctx context.Context, athleteID string, win Window) (stats.RunStats, error) {
	activities, err := s.activities(ctx, athleteID, win)
	if err != nil {
		return stats.RunStats{}, err
	}
	return stats.RunStatistics(activities), nil
}

// RunDistribution returns the one-mile distance histogram of runs.
func (s *Service) RunDistribution(ctx context.Context, athleteID string, win Window) ([]stats.RunBucket, error) {
	activities, err := s.activities(ctx, athleteID, win)
	if err != nil {
		return nil, err
	}
	return stats.RunDistribution(activities), nil
}

// RunningHeatmap returns daily mileage heatmap points for runs.
func (s *Service) RunningHeatmap(ctx context.Context, athleteID string, win Window) ([]stats.HeatmapPoint, error) {
	activities, err := s.activities(ctx, athleteID, win)
	if err != nil {
		return nil, err
	}
	return stats.RunningHeatmap(activities), nil
}

// MileageTrend returns the per-period run mileage series.
func (s *Service) MileageTrend(ctx context.Context, athleteID string, win Window, period stats.Period) ([]stats.TrendPoint, error) {
	activities, err := s.activities(ctx, athleteID, win)
	if err != nil {
		return nil, err
	}
	return stats.MileageTrend(activities, period), nil
}

// PaceTrend returns the per-period aggregate pace series.
func (s *Service) PaceTrend(ctx context.Context, athleteID string, win Window, period stats.Period) ([]stats.TrendPoint, error) {
	activities, err := s.activities(ctx, athleteID, win)
	if err != nil {
		return nil, err
	}
	return stats.PaceTrend(activities, period), nil
}
