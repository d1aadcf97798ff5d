package model

import (
	"math"
	"sort"
	"time"
)

// Sample is one timed invocation.
type Sample struct {
	Wall     time.Duration
	CPU      time.Duration
	MaxRSSKB int64
}

// Metrics aggregates the samples of one unit. Medians with MAD rather than
// mean with stddev: a single stalled sample must not drown the typical cost.
type Metrics struct {
	Samples      int     `json:"samples"`
	WallMSMedian float64 `json:"wall_ms_median"`
	WallMSMAD    float64 `json:"wall_ms_mad"`
	CPUMSMedian  float64 `json:"cpu_ms_median"`
	MaxRSSKB     int64   `json:"max_rss_kb"`
}

// NewMetrics folds samples into the reported aggregate, all figures rounded
// to three decimals. Returns nil when there is nothing to aggregate.
func NewMetrics(samples []Sample) *Metrics {
	if len(samples) == 0 {
		return nil
	}

	wall := make([]float64, len(samples))
	cpu := make([]float64, len(samples))
	var maxRSS int64
	for i, s := range samples {
		wall[i] = float64(s.Wall) / float64(time.Millisecond)
		cpu[i] = float64(s.CPU) / float64(time.Millisecond)
		if s.MaxRSSKB > maxRSS {
			maxRSS = s.MaxRSSKB
		}
	}

	return &Metrics{
		Samples:      len(samples),
		WallMSMedian: round3(median(wall)),
		WallMSMAD:    round3(mad(wall)),
		CPUMSMedian:  round3(median(cpu)),
		MaxRSSKB:     maxRSS,
	}
}

func median(xs []float64) float64 {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// mad is the median absolute deviation from the median.
func mad(xs []float64) float64 {
	m := median(xs)
	devs := make([]float64, len(xs))
	for i, x := range xs {
		devs[i] = math.Abs(x - m)
	}
	return median(devs)
}

func round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}
