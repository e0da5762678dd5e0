package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

func seededGateway() *MemoryGateway {
	g := NewMemoryGateway()

	g.AddBooking(Booking{ID: "b1", TenantID: "t1", CustomerID: "c1", Status: BookingStatusCompleted,
		ScheduledAt: fixedNow.AddDate(0, 0, -10), Amount: decimal.NewFromInt(100)})
	g.AddBooking(Booking{ID: "b2", TenantID: "t1", CustomerID: "c1", Status: BookingStatusCancelled,
		ScheduledAt: fixedNow.AddDate(0, 0, -5), Amount: decimal.NewFromInt(50)})
	g.AddBooking(Booking{ID: "b3", TenantID: "t2", CustomerID: "x1", Status: BookingStatusCompleted,
		ScheduledAt: fixedNow.AddDate(0, 0, -10), Amount: decimal.NewFromInt(75)})
	g.AddBooking(Booking{ID: "b4", TenantID: "t1", CustomerID: "c2", Status: BookingStatusCompleted,
		ScheduledAt: fixedNow.AddDate(0, 0, -100), Amount: decimal.NewFromInt(80)})

	return g
}

func TestBookingsTenantIsolation(t *testing.T) {
	g := seededGateway()
	spec := NewQuerySpec("t1", fixedNow.AddDate(0, 0, -30), fixedNow)

	bookings, err := g.Bookings(context.Background(), spec)
	require.NoError(t, err)
	require.Len(t, bookings, 2)
	for _, b := range bookings {
		assert.Equal(t, "t1", b.TenantID)
	}
}

func TestBookingsStatusAndRangeFilter(t *testing.T) {
	g := seededGateway()
	spec := NewQuerySpec("t1", fixedNow.AddDate(0, 0, -30), fixedNow).
		WithStatuses(BookingStatusCancelled)

	bookings, err := g.Bookings(context.Background(), spec)
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, "b2", bookings[0].ID)

	// Wider range picks up the old booking too
	wide := NewQuerySpec("t1", fixedNow.AddDate(0, 0, -365), fixedNow)
	bookings, err = g.Bookings(context.Background(), wide)
	require.NoError(t, err)
	assert.Len(t, bookings, 3)
}

func TestLimitAndOffsetPaging(t *testing.T) {
	g := seededGateway()
	spec := NewQuerySpec("t1", fixedNow.AddDate(0, 0, -365), fixedNow)

	first, err := g.Bookings(context.Background(), spec.WithLimit(2))
	require.NoError(t, err)
	assert.Len(t, first, 2)

	second, err := g.Bookings(context.Background(), spec.WithLimit(2).WithOffset(2))
	require.NoError(t, err)
	assert.Len(t, second, 1)

	empty, err := g.Bookings(context.Background(), spec.WithOffset(10))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSubscriptionsWindowOverlap(t *testing.T) {
	g := NewMemoryGateway()
	canceledAt := fixedNow.AddDate(0, 0, -60)
	g.AddSubscription(Subscription{ID: "s1", TenantID: "t1", Status: SubscriptionStatusActive,
		Price: decimal.NewFromInt(30), Interval: IntervalMonthly, CreatedAt: fixedNow.AddDate(0, -6, 0)})
	g.AddSubscription(Subscription{ID: "s2", TenantID: "t1", Status: SubscriptionStatusCanceled,
		Price: decimal.NewFromInt(90), Interval: IntervalQuarterly,
		CreatedAt: fixedNow.AddDate(-1, 0, 0), CanceledAt: &canceledAt})
	g.AddSubscription(Subscription{ID: "s3", TenantID: "t1", Status: SubscriptionStatusActive,
		Price: decimal.NewFromInt(10), Interval: IntervalWeekly, CreatedAt: fixedNow.AddDate(0, 0, 10)})

	// Window covering the last 30 days: s1 (active), not s2 (canceled 60d
	// ago), not s3 (created in the future)
	spec := NewQuerySpec("t1", fixedNow.AddDate(0, 0, -30), fixedNow)
	subs, err := g.Subscriptions(context.Background(), spec)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "s1", subs[0].ID)

	// A window reaching back 90 days overlaps the canceled subscription
	wide := NewQuerySpec("t1", fixedNow.AddDate(0, 0, -90), fixedNow)
	subs, err = g.Subscriptions(context.Background(), wide)
	require.NoError(t, err)
	assert.Len(t, subs, 2)
}

func TestSubscriptionActiveAt(t *testing.T) {
	canceledAt := fixedNow
	sub := Subscription{CreatedAt: fixedNow.AddDate(0, -1, 0), CanceledAt: &canceledAt}

	assert.True(t, sub.ActiveAt(fixedNow.AddDate(0, 0, -5)))
	assert.False(t, sub.ActiveAt(fixedNow))                   // canceled exactly then
	assert.False(t, sub.ActiveAt(fixedNow.AddDate(0, -2, 0))) // before creation

	open := Subscription{CreatedAt: fixedNow.AddDate(0, -1, 0)}
	assert.True(t, open.ActiveAt(fixedNow))
}

func TestCustomerSnapshotLifespanDays(t *testing.T) {
	first := fixedNow.AddDate(0, 0, -365)
	last := fixedNow.AddDate(0, 0, -5)
	s := CustomerSnapshot{FirstPurchaseAt: &first, LastPurchaseAt: &last}
	assert.InDelta(t, 360, s.LifespanDays(), 0.01)

	assert.Equal(t, 0.0, (&CustomerSnapshot{}).LifespanDays())
}

func TestSnapshotsScopedByTenant(t *testing.T) {
	g := NewMemoryGateway()
	g.AddCustomerSnapshot(CustomerSnapshot{CustomerID: "c1", TenantID: "t1", TotalRevenue: decimal.NewFromInt(500)})
	g.AddCustomerSnapshot(CustomerSnapshot{CustomerID: "x1", TenantID: "t2", TotalRevenue: decimal.NewFromInt(900)})

	snaps, err := g.CustomerSnapshots(context.Background(), QuerySpec{TenantID: "t1"})
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "c1", snaps[0].CustomerID)
}
