package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentileLinearInterpolation(t *testing.T) {
	values := []float64{10, 20, 30, 40}

	// rank for P25 over 4 points is 0.75, between 10 and 20
	assert.InDelta(t, 17.5, Percentile(values, 25), 1e-9)
	assert.InDelta(t, 25.0, Percentile(values, 50), 1e-9)
	assert.InDelta(t, 32.5, Percentile(values, 75), 1e-9)
}

func TestPercentileEdges(t *testing.T) {
	assert.Equal(t, 0.0, Percentile(nil, 50))
	assert.Equal(t, 42.0, Percentile([]float64{42}, 50))
	assert.Equal(t, 1.0, Percentile([]float64{3, 1, 2}, 0))
	assert.Equal(t, 3.0, Percentile([]float64{3, 1, 2}, 100))
}

func TestComputeQuartiles(t *testing.T) {
	values := []float64{100, 200, 300, 400, 500}
	q := ComputeQuartiles(values)

	assert.InDelta(t, 200, q.P25, 1e-9)
	assert.InDelta(t, 300, q.P50, 1e-9)
	assert.InDelta(t, 400, q.P75, 1e-9)
	assert.InDelta(t, 460, q.P90, 1e-9)

	assert.Equal(t, Quartiles{}, ComputeQuartiles(nil))
}

func TestSlope(t *testing.T) {
	// Perfectly linear series y = 2x + 1
	assert.InDelta(t, 2.0, Slope([]float64{1, 3, 5, 7, 9}), 1e-9)

	// Flat series
	assert.InDelta(t, 0.0, Slope([]float64{100, 100, 100}), 1e-9)

	// Degenerate inputs
	assert.Equal(t, 0.0, Slope(nil))
	assert.Equal(t, 0.0, Slope([]float64{5}))

	// Declining series
	assert.InDelta(t, -1.5, Slope([]float64{6, 4.5, 3, 1.5}), 1e-9)
}

func TestMeanAndStdDev(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	assert.InDelta(t, 5.0, Mean(values), 1e-9)
	assert.InDelta(t, 2.0, StdDev(values), 1e-9)

	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 0.0, StdDev(nil))
}

func daily(values ...float64) []Point {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	points := make([]Point, len(values))
	for i, v := range values {
		points[i] = Point{Date: start.AddDate(0, 0, i), Value: v}
	}
	return points
}

func TestDetectOutliersFlagsSpikes(t *testing.T) {
	// Eight quiet days then one large spike
	series := daily(10, 11, 9, 10, 10, 11, 9, 10, 60)

	outliers := DetectOutliers(series)
	require.Len(t, outliers, 1)

	o := outliers[0]
	assert.Equal(t, 60.0, o.Value)
	assert.Equal(t, DirectionAbove, o.Direction)
	assert.Equal(t, SeverityMedium, o.Severity)
	assert.Greater(t, o.ZScore, 2.0)
	assert.Less(t, o.ExpectedLow, o.ExpectedHigh)
}

func TestDetectOutliersHighSeverity(t *testing.T) {
	// Large population keeps the spike's leverage on stddev small enough
	// to push it past three deviations
	values := make([]float64, 0, 30)
	for i := 0; i < 29; i++ {
		values = append(values, 10+float64(i%3))
	}
	values = append(values, 100)

	outliers := DetectOutliers(daily(values...))
	require.Len(t, outliers, 1)
	assert.Equal(t, SeverityHigh, outliers[0].Severity)
}

func TestDetectOutliersSkipsFlatSeries(t *testing.T) {
	series := daily(5, 5, 5, 5, 5, 5, 5, 5)
	assert.Empty(t, DetectOutliers(series))
}

func TestDetectOutliersRequiresMinimumSamples(t *testing.T) {
	series := daily(1, 2, 3, 4, 5, 100)
	assert.Empty(t, DetectOutliers(series))
}

func TestDetectOutliersBelowDirection(t *testing.T) {
	series := daily(50, 51, 49, 50, 50, 51, 49, 50, 5)
	outliers := DetectOutliers(series)
	require.Len(t, outliers, 1)
	assert.Equal(t, DirectionBelow, outliers[0].Direction)
}

func TestWeightedScore(t *testing.T) {
	rules := []Rule{
		{Name: "recency", Met: true, Weight: 0.4},
		{Name: "frequency_decline", Met: false, Weight: 0.3},
		{Name: "spend_decline", Met: true, Weight: 0.2},
		{Name: "missed_bookings", Met: false, Weight: 0.1},
	}

	assert.InDelta(t, 0.6, WeightedScore(rules), 1e-9)
	assert.Equal(t, []string{"recency", "spend_decline"}, MetRules(rules))
	assert.Equal(t, 0.0, WeightedScore(nil))
}
