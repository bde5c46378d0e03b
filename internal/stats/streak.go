package stats

import (
	"sort"
	"time"

	"stridestats/internal/strava"
)

// StreakSummary describes workout streaks and gaps relative to a reference
// date. All dates are local civil dates normalized to midnight UTC.
type StreakSummary struct {
	CurrentStreak      int        `json:"currentStreak"`
	LongestStreak      int        `json:"longestStreak"`
	LongestStreakStart *time.Time `json:"longestStreakStart,omitempty"`
	LongestStreakEnd   *time.Time `json:"longestStreakEnd,omitempty"`
	WorkoutDays        int        `json:"workoutDays"`
	MissedDays         int        `json:"missedDays"`
	DaysSinceLast      int        `json:"daysSinceLast"`
	LongestGap         int        `json:"longestGap"`
	TotalGapDays       int        `json:"totalGapDays"`
	RangeStart         time.Time  `json:"rangeStart"`
	RangeEnd           time.Time  `json:"rangeEnd"`
}

// Streaks analyzes the distinct active dates of an activity set against a
// reference date. The reported range runs from the earliest active date to
// the reference date; gap counters cover only completed inactive periods
// between activities, never the open-ended stretch after the last one.
func Streaks(activities []strava.Activity, referenceDate time.Time) StreakSummary {
	reference := dayOf(referenceDate)

	activeSet := make(map[time.Time]struct{})
	for _, a := range activities {
		activeSet[a.LocalDate()] = struct{}{}
	}

	if len(activeSet) == 0 {
		return StreakSummary{RangeStart: reference, RangeEnd: reference}
	}

	activeDates := make([]time.Time, 0, len(activeSet))
	for d := range activeSet {
		activeDates = append(activeDates, d)
	}
	sort.Slice(activeDates, func(i, j int) bool { return activeDates[i].Before(activeDates[j]) })

	// Current streak: walk backward from the reference date.
	current := 0
	for cursor := reference; ; cursor = cursor.AddDate(0, 0, -1) {
		if _, ok := activeSet[cursor]; !ok {
			break
		}
		current++
	}

	// Longest streak: single forward scan; a streak restarts whenever a
	// date is not exactly one day after its predecessor.
	var (
		longest                  int
		longestStart, longestEnd time.Time
		streakStart              time.Time
		prev                     time.Time
	)
	for i, d := range activeDates {
		if i == 0 || !d.Equal(prev.AddDate(0, 0, 1)) {
			streakStart = d
		}
		if length := daysBetween(streakStart, d) + 1; length > longest {
			longest = length
			longestStart = streakStart
			longestEnd = d
		}
		prev = d
	}

	rangeStart := activeDates[0]
	rangeEnd := reference
	if rangeEnd.Before(rangeStart) {
		// Degenerate window: all activity is after the reference date.
		rangeStart = rangeEnd
	}

	workoutDays := 0
	for _, d := range activeDates {
		if !d.Before(rangeStart) && !d.After(rangeEnd) {
			workoutDays++
		}
	}

	totalDays := daysBetween(rangeStart, rangeEnd) + 1

	// Latest active date at or before the end of the range.
	var lastActive *time.Time
	for i := len(activeDates) - 1; i >= 0; i-- {
		if !activeDates[i].After(rangeEnd) {
			d := activeDates[i]
			lastActive = &d
			break
		}
	}

	daysSinceLast := totalDays
	if lastActive != nil {
		daysSinceLast = daysBetween(*lastActive, rangeEnd)
	}

	missedDays := totalDays - workoutDays
	if missedDays < 0 {
		missedDays = 0
	}

	// Gap scan stops at the last active date so the trailing open stretch
	// up to the reference date is never counted as a gap.
	gapEnd := rangeEnd
	if lastActive != nil {
		gapEnd = *lastActive
	}
	var longestGap, totalGapDays, currentGap int
	for day := rangeStart; !day.After(gapEnd); day = day.AddDate(0, 0, 1) {
		if _, active := activeSet[day]; active {
			currentGap = 0
			continue
		}
		currentGap++
		totalGapDays++
		if currentGap > longestGap {
			longestGap = currentGap
		}
	}

	return StreakSummary{
		CurrentStreak:      current,
		LongestStreak:      longest,
		LongestStreakStart: &longestStart,
		LongestStreakEnd:   &longestEnd,
		WorkoutDays:        workoutDays,
		MissedDays:         missedDays,
		DaysSinceLast:      daysSinceLast,
		LongestGap:         longestGap,
		TotalGapDays:       totalGapDays,
		RangeStart:         rangeStart,
		RangeEnd:           rangeEnd,
	}
}
