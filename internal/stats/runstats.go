package stats

import (
	"math"

	"stridestats/internal/strava"
)

// RunStats summarizes the running activities of a set. An empty run set
// produces zeroed totals with "00:00" pace strings, not an error.
type RunStats struct {
	TotalRuns        int     `json:"totalRuns"`
	Runs10KPlus      int     `json:"runs10KPlus"`
	TotalMiles       float64 `json:"totalMiles"`
	AveragePace      string  `json:"averagePace"`
	FastestMileSplit string  `json:"fastestMileSplit"`
	Fastest10K       string  `json:"fastest10K"`
	LongestRun       float64 `json:"longestRun"`
	MostElevation    float64 `json:"mostElevation"`
}

// RunStatistics computes aggregate run metrics. The average pace is derived
// from total miles and total seconds, not averaged per run, and "fastest"
// selections compare numeric seconds so that paces past an hour order
// correctly.
func RunStatistics(activities []strava.Activity) RunStats {
	runs := filterRuns(activities)
	if len(runs) == 0 {
		return RunStats{
			AveragePace:      "00:00",
			FastestMileSplit: "00:00",
			Fastest10K:       "00:00",
		}
	}

	var (
		runs10KPlus  int
		totalMiles   float64
		totalSeconds float64
		longestMiles float64
		mostFeet     float64

		fastestSplitSeconds = math.Inf(1)
		fastest10KSeconds   = math.MaxInt
	)

	for _, run := range runs {
		miles := run.Distance * metersToMiles
		totalMiles += miles
		totalSeconds += float64(run.MovingTime)

		if run.Distance >= 10000 {
			runs10KPlus++
			if run.MovingTime > 0 && run.MovingTime < fastest10KSeconds {
				fastest10KSeconds = run.MovingTime
			}
		}

		// Single-run pace only means something past a full mile.
		if run.Distance >= metersPerMile && run.MovingTime > 0 {
			if pace := float64(run.MovingTime) / miles; pace < fastestSplitSeconds {
				fastestSplitSeconds = pace
			}
		}

		if miles > longestMiles {
			longestMiles = miles
		}
		if feet := run.TotalElevationGain * metersToFeet; feet > mostFeet {
			mostFeet = feet
		}
	}

	averagePace := "00:00"
	if totalMiles > 0 {
		averagePace = formatPace(totalSeconds / totalMiles)
	}

	fastestSplit := "00:00"
	if !math.IsInf(fastestSplitSeconds, 1) {
		fastestSplit = formatPace(fastestSplitSeconds)
	}

	fastest10K := "00:00"
	if fastest10KSeconds != math.MaxInt {
		fastest10K = formatClock(fastest10KSeconds)
	}

	return RunStats{
		TotalRuns:        len(runs),
		Runs10KPlus:      runs10KPlus,
		TotalMiles:       round2(totalMiles),
		AveragePace:      averagePace,
		FastestMileSplit: fastestSplit,
		Fastest10K:       fastest10K,
		LongestRun:       round2(longestMiles),
		MostElevation:    math.Round(mostFeet),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
