package stats

import (
	"fmt"
	"math"
	"sort"

	"stridestats/internal/strava"
)

// ActivityCount is one entry of the per-category count distribution.
type ActivityCount struct {
	Type       string  `json:"type"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

// TimeShare is one entry of the per-category moving-time distribution.
type TimeShare struct {
	Type          string  `json:"type"`
	Hours         float64 `json:"hours"`
	FormattedTime string  `json:"formattedTime"`
	Percentage    float64 `json:"percentage"`
}

// RunBucket is one fixed one-mile bucket of the run distance histogram.
type RunBucket struct {
	Range string `json:"range"`
	Count int64  `json:"count"`
}

// CountDistribution groups activities by classification key and returns
// per-category counts with percentages of the total, sorted by count
// descending. Ties keep first-appearance order. Empty input yields nil.
func CountDistribution(activities []strava.Activity) []ActivityCount {
	total := len(activities)
	if total == 0 {
		return nil
	}

	counts := make(map[string]int64, 8)
	var order []string
	for _, a := range activities {
		key := classificationKey(a)
		if _, seen := counts[key]; !seen {
			order = append(order, key)
		}
		counts[key]++
	}

	out := make([]ActivityCount, 0, len(order))
	for _, key := range order {
		out = append(out, ActivityCount{
			Type:       key,
			Count:      counts[key],
			Percentage: float64(counts[key]) * 100 / float64(total),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// TimeDistribution groups activities by classification key and returns the
// moving-time share of each category, sorted by hours descending. Activities
// without a reported moving time contribute zero. A grand total of zero
// yields nil.
func TimeDistribution(activities []strava.Activity) []TimeShare {
	seconds := make(map[string]int, 8)
	var order []string
	totalSeconds := 0
	for _, a := range activities {
		key := classificationKey(a)
		if _, seen := seconds[key]; !seen {
			order = append(order, key)
		}
		seconds[key] += a.MovingTime
		totalSeconds += a.MovingTime
	}

	if totalSeconds == 0 {
		return nil
	}

	out := make([]TimeShare, 0, len(order))
	for _, key := range order {
		s := seconds[key]
		out = append(out, TimeShare{
			Type:          key,
			Hours:         float64(s) / 3600,
			FormattedTime: formatClock(s),
			Percentage:    float64(s) * 100 / float64(totalSeconds),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Hours > out[j].Hours })
	return out
}

// runBucketCount is the number of one-mile histogram buckets ("0-1".."9-10").
const runBucketCount = 10

// RunDistribution buckets run activities into fixed one-mile distance
// ranges. Runs of ten miles or more fall outside every bucket; there is no
// overflow bucket. All ten buckets are always present, zero counts included.
func RunDistribution(activities []strava.Activity) []RunBucket {
	out := make([]RunBucket, runBucketCount)
	for i := range out {
		out[i].Range = fmt.Sprintf("%d-%d", i, i+1)
	}

	for _, run := range filterRuns(activities) {
		miles := run.Distance * metersToMiles
		if miles < 0 {
			continue
		}
		bucket := int(math.Floor(miles))
		if bucket < runBucketCount {
			out[bucket].Count++
		}
	}
	return out
}
