// Package stats provides the pure statistical primitives behind the
// analytics components: percentiles, ordinary-least-squares trend, z-score
// outlier detection, and weighted rule scoring. Everything here operates on
// plain numeric slices and never touches the data gateway.
package stats

import (
	"math"
	"sort"
)

// Quartiles holds the percentile cut points used for monetary scoring.
type Quartiles struct {
	P25 float64
	P50 float64
	P75 float64
	P90 float64
}

// Percentile computes the p-th percentile (0-100) of values using the
// continuous method: linear interpolation between order statistics. Returns
// 0 for an empty input.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if p <= 0 {
		return minValue(values)
	}
	if p >= 100 {
		return maxValue(values)
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	rank := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}

	weight := rank - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// ComputeQuartiles returns the 25th/50th/75th/90th percentiles of values.
// Zero-valued on empty input.
func ComputeQuartiles(values []float64) Quartiles {
	if len(values) == 0 {
		return Quartiles{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	return Quartiles{
		P25: percentileSorted(sorted, 25),
		P50: percentileSorted(sorted, 50),
		P75: percentileSorted(sorted, 75),
		P90: percentileSorted(sorted, 90),
	}
}

// percentileSorted avoids re-sorting when computing several cut points.
func percentileSorted(sorted []float64, p float64) float64 {
	rank := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	weight := rank - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

func minValue(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxValue(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
