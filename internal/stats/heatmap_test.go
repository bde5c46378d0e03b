package stats

import (
	"math"
	"testing"
	"time"

	"stridestats/internal/strava"
)

func TestWorkoutHeatmap(t *testing.T) {
	activities := []strava.Activity{
		// Two activities on the same day sum to one hour.
		activity("Run", day(2024, time.January, 2), 5000, 1800),
		activity("Ride", day(2024, time.January, 2), 20000, 1800),
		activity("Ride", day(2024, time.January, 1), 60000, 4*3600),
	}

	points := WorkoutHeatmap(activities)
	if len(points) != 2 {
		t.Fatalf("expected 2 days, got %d", len(points))
	}

	if !points[0].Date.Equal(day(2024, time.January, 1)) {
		t.Errorf("expected points sorted by date, first was %s", points[0].Date)
	}
	if points[0].Intensity != 4 {
		t.Errorf("expected intensity 4 for a 4-hour day, got %d", points[0].Intensity)
	}

	second := points[1]
	if math.Abs(second.Value-1.0) > 1e-9 {
		t.Errorf("expected 1 hour on Jan 2, got %v", second.Value)
	}
	if second.Intensity != 1 {
		t.Errorf("expected intensity 1 for a 1-hour day, got %d", second.Intensity)
	}
}

func TestRunningHeatmapOnlyCountsRuns(t *testing.T) {
	activities := []strava.Activity{
		activity("Run", day(2024, time.January, 1), metersForMiles(5), 2700),
		activity("Ride", day(2024, time.January, 1), metersForMiles(20), 3600),
	}

	points := RunningHeatmap(activities)
	if len(points) != 1 {
		t.Fatalf("expected 1 day, got %d", len(points))
	}
	if math.Abs(points[0].Value-5) > 1e-9 {
		t.Errorf("expected 5 miles, got %v", points[0].Value)
	}
	if points[0].Intensity != 2 {
		t.Errorf("expected intensity 2 for a 5-mile day, got %d", points[0].Intensity)
	}
}

func TestRunningHeatmapIntensityThresholds(t *testing.T) {
	tests := []struct {
		miles float64
		want  int
	}{
		{1, 1},
		{2.9, 1},
		{4, 2},
		{5.9, 2},
		{8, 3},
		{9.9, 3},
		{12, 4},
	}

	for _, tt := range tests {
		points := RunningHeatmap([]strava.Activity{
			activity("Run", day(2024, time.January, 1), metersForMiles(tt.miles), 3600),
		})
		if len(points) != 1 {
			t.Fatalf("expected 1 point for %v miles", tt.miles)
		}
		if points[0].Intensity != tt.want {
			t.Errorf("%v miles: expected intensity %d, got %d", tt.miles, tt.want, points[0].Intensity)
		}
	}
}

func TestHeatmapsEmpty(t *testing.T) {
	if points := WorkoutHeatmap(nil); len(points) != 0 {
		t.Errorf("expected no workout points, got %d", len(points))
	}
	if points := RunningHeatmap(nil); len(points) != 0 {
		t.Errorf("expected no running points, got %d", len(points))
	}
}
