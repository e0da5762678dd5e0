// Package gateway defines the narrow read interface the analytics engine
// uses to reach the platform's transactional stores. The engine never owns
// bookings, orders, payments, or subscriptions; it only reads tenant-scoped,
// time-filterable projections of them through this package.
package gateway

import (
	"time"

	"github.com/shopspring/decimal"
)

// Booking statuses the analytics components care about.
const (
	BookingStatusConfirmed = "confirmed"
	BookingStatusCompleted = "completed"
	BookingStatusCancelled = "cancelled"
	BookingStatusNoShow    = "no_show"
)

// Payment statuses.
const (
	PaymentStatusCompleted = "completed"
	PaymentStatusPending   = "pending"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
)

// Subscription statuses and billing intervals.
const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusCanceled = "canceled"
	SubscriptionStatusPaused   = "paused"

	IntervalWeekly    = "weekly"
	IntervalMonthly   = "monthly"
	IntervalQuarterly = "quarterly"
	IntervalYearly    = "yearly"
)

// Subscription event kinds.
const (
	EventPaymentFailure = "payment_failure"
	EventDowngrade      = "downgrade"
	EventUpgrade        = "upgrade"
	EventCancellation   = "cancellation"
)

// CustomerSnapshot is the per-customer aggregate maintained by the external
// data layer. It may be stale; the engine tolerates staleness and assumes no
// freshness guarantees.
//
// Invariant: PurchaseFrequency == 0 implies DaysSinceLastPurchase is nil.
type CustomerSnapshot struct {
	CustomerID              string
	TenantID                string
	TotalRevenue            decimal.Decimal
	PurchaseFrequency       int
	DaysSinceLastPurchase   *int
	AvgDaysBetweenPurchases *float64
	FirstPurchaseAt         *time.Time
	LastPurchaseAt          *time.Time
}

// LifespanDays returns the observed customer lifespan in days, 0 when the
// snapshot has no purchase history.
func (s *CustomerSnapshot) LifespanDays() float64 {
	if s.FirstPurchaseAt == nil || s.LastPurchaseAt == nil {
		return 0
	}
	days := s.LastPurchaseAt.Sub(*s.FirstPurchaseAt).Hours() / 24
	if days < 0 {
		return 0
	}
	return days
}

// Booking is a scheduled service appointment.
type Booking struct {
	ID          string
	TenantID    string
	CustomerID  string
	ServiceName string
	Status      string
	ScheduledAt time.Time
	Amount      decimal.Decimal
}

// Order is a product purchase.
type Order struct {
	ID         string
	TenantID   string
	CustomerID string
	Status     string
	PlacedAt   time.Time
	Total      decimal.Decimal
}

// Payment is a money movement, optionally tied to a booking.
type Payment struct {
	ID         string
	TenantID   string
	CustomerID string
	BookingID  string // empty when not booking-related
	Status     string
	PaidAt     time.Time
	Amount     decimal.Decimal
	Currency   string
}

// Subscription is a recurring billing agreement.
type Subscription struct {
	ID         string
	TenantID   string
	CustomerID string
	PlanName   string
	Status     string
	Price      decimal.Decimal
	Currency   string
	Interval   string
	CreatedAt  time.Time
	CanceledAt *time.Time
}

// ActiveAt reports whether the subscription was active as of t: created on
// or before t and not yet canceled at t.
func (s *Subscription) ActiveAt(t time.Time) bool {
	if s.CreatedAt.After(t) {
		return false
	}
	if s.CanceledAt != nil && !s.CanceledAt.After(t) {
		return false
	}
	return true
}

// SubscriptionEvent is a lifecycle event on a subscription (failed payment,
// plan change, cancellation).
type SubscriptionEvent struct {
	ID             string
	TenantID       string
	SubscriptionID string
	CustomerID     string
	Kind           string
	OccurredAt     time.Time
}

// InventoryAdjustment is a stock change record.
type InventoryAdjustment struct {
	ID         string
	TenantID   string
	ProductID  string
	Delta      int
	Reason     string
	OccurredAt time.Time
}
