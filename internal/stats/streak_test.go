package stats

import (
	"testing"
	"time"

	"stridestats/internal/strava"
)

func activitiesOn(dates ...time.Time) []strava.Activity {
	out := make([]strava.Activity, 0, len(dates))
	for _, d := range dates {
		out = append(out, activity("Run", d, 5000, 1800))
	}
	return out
}

func TestStreaks(t *testing.T) {
	// Active Jan 1-3 and Jan 5, evaluated on Jan 5.
	acts := activitiesOn(
		day(2024, time.January, 1),
		day(2024, time.January, 2),
		day(2024, time.January, 3),
		day(2024, time.January, 5),
	)

	s := Streaks(acts, day(2024, time.January, 5))

	if s.CurrentStreak != 1 {
		t.Errorf("expected current streak 1, got %d", s.CurrentStreak)
	}
	if s.LongestStreak != 3 {
		t.Errorf("expected longest streak 3, got %d", s.LongestStreak)
	}
	if s.LongestStreakStart == nil || !s.LongestStreakStart.Equal(day(2024, time.January, 1)) {
		t.Errorf("expected longest streak to start Jan 1, got %v", s.LongestStreakStart)
	}
	if s.LongestStreakEnd == nil || !s.LongestStreakEnd.Equal(day(2024, time.January, 3)) {
		t.Errorf("expected longest streak to end Jan 3, got %v", s.LongestStreakEnd)
	}
	if s.WorkoutDays != 4 {
		t.Errorf("expected 4 workout days, got %d", s.WorkoutDays)
	}
	if s.MissedDays != 1 {
		t.Errorf("expected 1 missed day, got %d", s.MissedDays)
	}
	if s.DaysSinceLast != 0 {
		t.Errorf("expected 0 days since last, got %d", s.DaysSinceLast)
	}
	if s.LongestGap != 1 || s.TotalGapDays != 1 {
		t.Errorf("expected a single one-day gap, got longest %d total %d", s.LongestGap, s.TotalGapDays)
	}
	if !s.RangeStart.Equal(day(2024, time.January, 1)) || !s.RangeEnd.Equal(day(2024, time.January, 5)) {
		t.Errorf("unexpected range: %s .. %s", s.RangeStart, s.RangeEnd)
	}
}

func TestStreaksTrailingInactivityIsNotAGap(t *testing.T) {
	// Last activity on Jan 2, evaluated on Jan 10: the open-ended stretch
	// counts toward DaysSinceLast but never as a completed gap.
	acts := activitiesOn(
		day(2024, time.January, 1),
		day(2024, time.January, 2),
	)

	s := Streaks(acts, day(2024, time.January, 10))

	if s.CurrentStreak != 0 {
		t.Errorf("expected no current streak, got %d", s.CurrentStreak)
	}
	if s.LongestStreak != 2 {
		t.Errorf("expected longest streak 2, got %d", s.LongestStreak)
	}
	if s.DaysSinceLast != 8 {
		t.Errorf("expected 8 days since last, got %d", s.DaysSinceLast)
	}
	if s.LongestGap != 0 || s.TotalGapDays != 0 {
		t.Errorf("expected no completed gaps, got longest %d total %d", s.LongestGap, s.TotalGapDays)
	}
	if s.MissedDays != 8 {
		t.Errorf("expected 8 missed days, got %d", s.MissedDays)
	}
}

func TestStreaksMultipleActivitiesPerDayCountOnce(t *testing.T) {
	acts := activitiesOn(
		day(2024, time.January, 1),
		day(2024, time.January, 1),
		day(2024, time.January, 1),
	)

	s := Streaks(acts, day(2024, time.January, 1))
	if s.WorkoutDays != 1 {
		t.Errorf("expected 1 workout day, got %d", s.WorkoutDays)
	}
	if s.CurrentStreak != 1 {
		t.Errorf("expected current streak 1, got %d", s.CurrentStreak)
	}
}

func TestStreaksEmpty(t *testing.T) {
	ref := day(2024, time.June, 1)
	s := Streaks(nil, ref)

	if s.CurrentStreak != 0 || s.LongestStreak != 0 || s.WorkoutDays != 0 {
		t.Errorf("expected zeroed summary, got %+v", s)
	}
	if s.LongestStreakStart != nil || s.LongestStreakEnd != nil {
		t.Errorf("expected no streak dates, got %+v", s)
	}
	if !s.RangeStart.Equal(ref) || !s.RangeEnd.Equal(ref) {
		t.Errorf("expected range collapsed to reference date, got %s .. %s", s.RangeStart, s.RangeEnd)
	}
}

func TestStreaksReferenceTimeOfDayIgnored(t *testing.T) {
	acts := activitiesOn(day(2024, time.January, 5))

	// A reference instant late in the day behaves like the civil date.
	ref := day(2024, time.January, 5).Add(23*time.Hour + 59*time.Minute)
	s := Streaks(acts, ref)

	if s.CurrentStreak != 1 {
		t.Errorf("expected current streak 1, got %d", s.CurrentStreak)
	}
	if s.DaysSinceLast != 0 {
		t.Errorf("expected 0 days since last, got %d", s.DaysSinceLast)
	}
}
