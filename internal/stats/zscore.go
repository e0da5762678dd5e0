package stats

import (
	"math"
	"time"
)

// Severity classifies how far an outlier sits from the mean
type Severity string

const (
	// SeverityMedium is 2-3 standard deviations from the mean
	SeverityMedium Severity = "medium"
	// SeverityHigh is more than 3 standard deviations from the mean
	SeverityHigh Severity = "high"
)

// Direction indicates which side of the mean an outlier falls on
type Direction string

const (
	DirectionAbove Direction = "above"
	DirectionBelow Direction = "below"
)

// minOutlierSamples is the minimum series length with enough signal for
// z-score detection. Shorter series are skipped entirely.
const minOutlierSamples = 7

// Point is a dated observation in a daily metric series.
type Point struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Outlier is a flagged point with its statistical context.
type Outlier struct {
	Date         time.Time
	Value        float64
	ZScore       float64
	ExpectedLow  float64 // mean - 2*stddev
	ExpectedHigh float64 // mean + 2*stddev
	Severity     Severity
	Direction    Direction
}

// DetectOutliers flags points more than 2 population standard deviations
// from the series mean; beyond 3 the severity is high. Returns nothing when
// the series has fewer than minOutlierSamples points or zero deviation (flat
// series have no outliers by definition).
func DetectOutliers(series []Point) []Outlier {
	if len(series) < minOutlierSamples {
		return nil
	}

	values := make([]float64, len(series))
	for i, p := range series {
		values[i] = p.Value
	}

	mean := Mean(values)
	stddev := StdDev(values)
	if stddev == 0 {
		return nil
	}

	var outliers []Outlier
	for _, p := range series {
		z := (p.Value - mean) / stddev
		if math.Abs(z) <= 2 {
			continue
		}

		severity := SeverityMedium
		if math.Abs(z) > 3 {
			severity = SeverityHigh
		}
		direction := DirectionBelow
		if p.Value > mean {
			direction = DirectionAbove
		}

		outliers = append(outliers, Outlier{
			Date:         p.Date,
			Value:        p.Value,
			ZScore:       z,
			ExpectedLow:  mean - 2*stddev,
			ExpectedHigh: mean + 2*stddev,
			Severity:     severity,
			Direction:    direction,
		})
	}

	return outliers
}
