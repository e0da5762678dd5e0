package analytics

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brianlane/bizblasts-insights/internal/gateway"
)

// seedDailyPayments writes one completed payment per day covering the full
// trailing history window ending at testNow.
func seedDailyPayments(gw *gateway.MemoryGateway, days int, amount float64) {
	start := testNow.AddDate(0, 0, -days)
	for i := 0; i <= days; i++ {
		gw.AddPayment(gateway.Payment{
			ID:         fmt.Sprintf("p%d", i),
			TenantID:   "tenant-1",
			CustomerID: "c1",
			Status:     gateway.PaymentStatusCompleted,
			PaidAt:     start.AddDate(0, 0, i),
			Amount:     decimal.NewFromFloat(amount),
			Currency:   "USD",
		})
	}
}

func TestForecastRevenueSteadyHistory(t *testing.T) {
	gw := gateway.NewMemoryGateway()
	seedDailyPayments(gw, 90, 100)

	f := NewForecast("tenant-1", testDeps(gw))
	result, err := f.ForecastRevenue(context.Background(), 30)
	require.NoError(t, err)

	// Flat 100/day history: mean 100, slope 0, both projections 3000.
	assert.InDelta(t, 100, result.MovingAvg, 0.01)
	assert.InDelta(t, 0, result.Trend, 0.01)
	assert.InDelta(t, 3000, result.Conservative.InexactFloat64(), 0.01)
	assert.InDelta(t, 3000, result.Optimistic.InexactFloat64(), 0.01)
	assert.True(t, result.Confirmed.IsZero())
	assert.Equal(t, ConfidenceHigh, result.Confidence)
}

func TestForecastRevenueNoHistory(t *testing.T) {
	f := NewForecast("tenant-1", testDeps(gateway.NewMemoryGateway()))

	result, err := f.ForecastRevenue(context.Background(), 30)
	require.NoError(t, err)

	assert.True(t, result.Conservative.IsZero())
	assert.True(t, result.Optimistic.IsZero())
	assert.True(t, result.Confirmed.IsZero())
	assert.Zero(t, result.MovingAvg)
	assert.Equal(t, ConfidenceLow, result.Confidence)
}

func TestForecastRevenueZeroHorizon(t *testing.T) {
	gw := gateway.NewMemoryGateway()
	seedDailyPayments(gw, 90, 100)

	f := NewForecast("tenant-1", testDeps(gw))
	result, err := f.ForecastRevenue(context.Background(), 0)
	require.NoError(t, err)

	assert.True(t, result.Conservative.IsZero())
	assert.True(t, result.Optimistic.IsZero())
	assert.True(t, result.Confirmed.IsZero())
}

func TestForecastRevenueConfirmedBookings(t *testing.T) {
	gw := gateway.NewMemoryGateway()
	seedDailyPayments(gw, 90, 100)

	// A prepaid booking inside the horizon and one beyond it.
	gw.AddBooking(gateway.Booking{
		ID: "b-in", TenantID: "tenant-1", CustomerID: "c2",
		Status: gateway.BookingStatusConfirmed, ScheduledAt: testNow.AddDate(0, 0, 10),
		Amount: decimal.NewFromInt(250),
	})
	gw.AddBooking(gateway.Booking{
		ID: "b-out", TenantID: "tenant-1", CustomerID: "c2",
		Status: gateway.BookingStatusConfirmed, ScheduledAt: testNow.AddDate(0, 0, 60),
		Amount: decimal.NewFromInt(400),
	})
	gw.AddPayment(gateway.Payment{
		ID: "pay-in", TenantID: "tenant-1", CustomerID: "c2", BookingID: "b-in",
		Status: gateway.PaymentStatusCompleted, PaidAt: testNow.AddDate(0, 0, -1),
		Amount: decimal.NewFromInt(250), Currency: "USD",
	})
	gw.AddPayment(gateway.Payment{
		ID: "pay-out", TenantID: "tenant-1", CustomerID: "c2", BookingID: "b-out",
		Status: gateway.PaymentStatusCompleted, PaidAt: testNow.AddDate(0, 0, -1),
		Amount: decimal.NewFromInt(400), Currency: "USD",
	})

	f := NewForecast("tenant-1", testDeps(gw))
	result, err := f.ForecastRevenue(context.Background(), 30)
	require.NoError(t, err)

	assert.True(t, result.Confirmed.Equal(decimal.NewFromInt(250)),
		"got %s", result.Confirmed)
}

func TestForecastConfidenceBands(t *testing.T) {
	tests := []struct {
		nonZeroDays int
		want        string
	}{
		{90, ConfidenceHigh},
		{60, ConfidenceHigh},
		{59, ConfidenceMedium},
		{30, ConfidenceMedium},
		{29, ConfidenceLow},
		{1, ConfidenceLow},
	}
	for _, tt := range tests {
		values := make([]float64, 91)
		for i := 0; i < tt.nonZeroDays; i++ {
			values[i] = 50
		}
		assert.Equal(t, tt.want, confidenceLabel(values), "%d non-zero days", tt.nonZeroDays)
	}
}

func TestDetectAnomaliesFlagsSpike(t *testing.T) {
	gw := gateway.NewMemoryGateway()
	window := 30
	start := testNow.AddDate(0, 0, -window)

	// One booking a day, then a burst of ten on a single day.
	for i := 0; i <= window; i++ {
		gw.AddBooking(gateway.Booking{
			ID: fmt.Sprintf("b%d", i), TenantID: "tenant-1", CustomerID: "c1",
			Status: gateway.BookingStatusCompleted, ScheduledAt: start.AddDate(0, 0, i),
		})
	}
	spikeDay := start.AddDate(0, 0, 15)
	for i := 0; i < 9; i++ {
		gw.AddBooking(gateway.Booking{
			ID: fmt.Sprintf("spike%d", i), TenantID: "tenant-1", CustomerID: "c1",
			Status: gateway.BookingStatusCompleted, ScheduledAt: spikeDay,
		})
	}

	f := NewForecast("tenant-1", testDeps(gw))
	anomalies, err := f.DetectAnomalies(context.Background(), MetricBookings, start, testNow)
	require.NoError(t, err)

	require.Len(t, anomalies, 1)
	a := anomalies[0]
	assert.Equal(t, MetricBookings, a.Metric)
	assert.Equal(t, 10.0, a.Observed)
	assert.Equal(t, "above", a.Direction)
	assert.Equal(t, "high", a.Severity)
	assert.Regexp(t, `^\[-?\d+\.\d{2}, -?\d+\.\d{2}\]$`, a.ExpectedRange)
	assert.Equal(t, spikeDay.Truncate(24*time.Hour), a.Date)
}

func TestDetectAnomaliesUniformSeries(t *testing.T) {
	gw := gateway.NewMemoryGateway()
	start := testNow.AddDate(0, 0, -30)
	for i := 0; i <= 30; i++ {
		gw.AddBooking(gateway.Booking{
			ID: fmt.Sprintf("b%d", i), TenantID: "tenant-1", CustomerID: "c1",
			Status: gateway.BookingStatusCompleted, ScheduledAt: start.AddDate(0, 0, i),
		})
	}

	f := NewForecast("tenant-1", testDeps(gw))
	anomalies, err := f.DetectAnomalies(context.Background(), MetricBookings, start, testNow)
	require.NoError(t, err)

	assert.Empty(t, anomalies)
}

func TestDetectAnomaliesUnknownMetric(t *testing.T) {
	f := NewForecast("tenant-1", testDeps(gateway.NewMemoryGateway()))

	anomalies, err := f.DetectAnomalies(context.Background(), "weather", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, anomalies)
}
