package stats

import (
	"sort"
	"time"

	"stridestats/internal/strava"
)

// HeatmapPoint is one calendar day of an intensity heatmap. Value carries
// moving hours for the workout heatmap and miles for the running heatmap.
type HeatmapPoint struct {
	Date      time.Time `json:"date"`
	Value     float64   `json:"value"`
	Intensity int       `json:"intensity"`
}

// WorkoutHeatmap groups all activities by local date and sums moving hours
// per day. Intensity classes: 0, up to 1h, up to 2h, up to 3h, above 3h.
func WorkoutHeatmap(activities []strava.Activity) []HeatmapPoint {
	daily := make(map[time.Time]float64)
	for _, a := range activities {
		daily[a.LocalDate()] += float64(a.MovingTime) / 3600
	}
	return heatmapPoints(daily, 0, 1, 2, 3)
}

// RunningHeatmap groups run activities by local date and sums miles per day.
// Intensity classes: 0, up to 3mi, up to 6mi, up to 10mi, above 10mi.
func RunningHeatmap(activities []strava.Activity) []HeatmapPoint {
	daily := make(map[time.Time]float64)
	for _, run := range filterRuns(activities) {
		daily[run.LocalDate()] += run.Distance * metersToMiles
	}
	return heatmapPoints(daily, 0, 3, 6, 10)
}

func heatmapPoints(daily map[time.Time]float64, thresholds ...float64) []HeatmapPoint {
	out := make([]HeatmapPoint, 0, len(daily))
	for date, value := range daily {
		out = append(out, HeatmapPoint{
			Date:      date,
			Value:     value,
			Intensity: intensity(value, thresholds...),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
