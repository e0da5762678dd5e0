package analytics

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brianlane/bizblasts-insights/internal/gateway"
)

func TestBookingSummary(t *testing.T) {
	gw := gateway.NewMemoryGateway()
	start := testNow.AddDate(0, 0, -30)

	statuses := []string{
		gateway.BookingStatusCompleted,
		gateway.BookingStatusCompleted,
		gateway.BookingStatusConfirmed,
		gateway.BookingStatusCancelled,
		gateway.BookingStatusNoShow,
	}
	for i, status := range statuses {
		gw.AddBooking(gateway.Booking{
			ID: fmt.Sprintf("b%d", i), TenantID: "tenant-1", CustomerID: "c1",
			Status: status, ScheduledAt: start.AddDate(0, 0, i+1),
			Amount: decimal.NewFromInt(100),
		})
	}

	o := NewOperations("tenant-1", testDeps(gw))
	report, err := o.BookingSummary(context.Background(), start, testNow)
	require.NoError(t, err)

	assert.Equal(t, 5, report.Total)
	assert.Equal(t, 2, report.ByStatus[gateway.BookingStatusCompleted])
	assert.Equal(t, 1, report.ByStatus[gateway.BookingStatusCancelled])
	assert.Equal(t, 1, report.ByStatus[gateway.BookingStatusNoShow])
	// 1 cancellation + 1 no-show out of 5.
	assert.InDelta(t, 0.4, report.CancellationRate, 0.001)
	assert.True(t, report.TotalValue.Equal(decimal.NewFromInt(500)))
	assert.Len(t, report.DailyVolume, 31)
}

func TestBookingSummaryEmpty(t *testing.T) {
	o := NewOperations("tenant-1", testDeps(gateway.NewMemoryGateway()))

	report, err := o.BookingSummary(context.Background(), testNow.AddDate(0, 0, -30), testNow)
	require.NoError(t, err)

	assert.Zero(t, report.Total)
	assert.Zero(t, report.CancellationRate)
	assert.Zero(t, report.Trend)
	assert.True(t, report.TotalValue.IsZero())
}

func TestBookingSummaryTrend(t *testing.T) {
	gw := gateway.NewMemoryGateway()
	start := testNow.AddDate(0, 0, -9)

	// Volume ramps one booking per day: slope 1.
	id := 0
	for day := 0; day <= 9; day++ {
		for n := 0; n <= day; n++ {
			gw.AddBooking(gateway.Booking{
				ID: fmt.Sprintf("b%d", id), TenantID: "tenant-1", CustomerID: "c1",
				Status: gateway.BookingStatusCompleted, ScheduledAt: start.AddDate(0, 0, day),
			})
			id++
		}
	}

	o := NewOperations("tenant-1", testDeps(gw))
	report, err := o.BookingSummary(context.Background(), start, testNow)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, report.Trend, 0.001)
}

func TestInventoryConsumption(t *testing.T) {
	gw := gateway.NewMemoryGateway()
	start := testNow.AddDate(0, 0, -30)

	// One sale a day plus a single restock: uniform daily activity, so no
	// day stands out statistically.
	for day := 0; day <= 30; day++ {
		delta := -1
		reason := "sale"
		if day == 20 {
			delta = 30
			reason = "restock"
		}
		gw.AddInventoryAdjustment(gateway.InventoryAdjustment{
			ID: fmt.Sprintf("a%d", day), TenantID: "tenant-1", ProductID: "p1",
			Delta: delta, Reason: reason, OccurredAt: start.AddDate(0, 0, day),
		})
	}

	o := NewOperations("tenant-1", testDeps(gw))
	report, err := o.InventoryConsumption(context.Background(), start, testNow)
	require.NoError(t, err)

	assert.Equal(t, 31, report.TotalAdjustments)
	assert.Equal(t, 0, report.NetChange)
	assert.Equal(t, 30, report.UnitsConsumed)
	assert.Equal(t, 30, report.UnitsRestocked)
	assert.Empty(t, report.Outliers)
}

func TestInventoryConsumptionFlagsBurst(t *testing.T) {
	gw := gateway.NewMemoryGateway()
	start := testNow.AddDate(0, 0, -30)

	id := 0
	add := func(day, count int) {
		for n := 0; n < count; n++ {
			gw.AddInventoryAdjustment(gateway.InventoryAdjustment{
				ID: fmt.Sprintf("a%d", id), TenantID: "tenant-1", ProductID: "p1",
				Delta: -1, Reason: "sale", OccurredAt: start.AddDate(0, 0, day),
			})
			id++
		}
	}
	for day := 0; day <= 30; day++ {
		add(day, 1)
	}
	add(15, 14) // one-day burst

	o := NewOperations("tenant-1", testDeps(gw))
	report, err := o.InventoryConsumption(context.Background(), start, testNow)
	require.NoError(t, err)

	require.Len(t, report.Outliers, 1)
	assert.Equal(t, 15.0, report.Outliers[0].Observed)
	assert.Equal(t, "above", report.Outliers[0].Direction)
}
