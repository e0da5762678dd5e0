package gateway

import (
	"context"
	"time"
)

// QuerySpec is the explicit query specification analytics components pass to
// the gateway. Components never construct storage queries directly; the
// gateway implementation is free to evaluate the spec server-side or
// client-side as long as the results match.
type QuerySpec struct {
	TenantID string
	Start    time.Time
	End      time.Time
	Statuses []string
	Limit    int
	Offset   int
}

// NewQuerySpec builds a spec for a tenant and time range.
func NewQuerySpec(tenantID string, start, end time.Time) QuerySpec {
	return QuerySpec{TenantID: tenantID, Start: start, End: end}
}

// WithStatuses returns a copy of the spec restricted to the given statuses.
func (q QuerySpec) WithStatuses(statuses ...string) QuerySpec {
	q.Statuses = statuses
	return q
}

// WithLimit returns a copy of the spec with a row limit.
func (q QuerySpec) WithLimit(limit int) QuerySpec {
	q.Limit = limit
	return q
}

// WithOffset returns a copy of the spec with a row offset.
func (q QuerySpec) WithOffset(offset int) QuerySpec {
	q.Offset = offset
	return q
}

// matchesStatus reports whether status passes the spec's status filter.
func (q QuerySpec) matchesStatus(status string) bool {
	if len(q.Statuses) == 0 {
		return true
	}
	for _, s := range q.Statuses {
		if s == status {
			return true
		}
	}
	return false
}

// inRange reports whether t falls inside [Start, End]. Zero bounds are open.
func (q QuerySpec) inRange(t time.Time) bool {
	if !q.Start.IsZero() && t.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && t.After(q.End) {
		return false
	}
	return true
}

// Gateway is the tenant data gateway: tenant-scoped, time-filterable read
// access to the transactional collections. Implementations must never leak
// one tenant's rows into another tenant's result.
type Gateway interface {
	CustomerSnapshots(ctx context.Context, spec QuerySpec) ([]CustomerSnapshot, error)
	Bookings(ctx context.Context, spec QuerySpec) ([]Booking, error)
	Orders(ctx context.Context, spec QuerySpec) ([]Order, error)
	Payments(ctx context.Context, spec QuerySpec) ([]Payment, error)
	Subscriptions(ctx context.Context, spec QuerySpec) ([]Subscription, error)
	SubscriptionEvents(ctx context.Context, spec QuerySpec) ([]SubscriptionEvent, error)
	InventoryAdjustments(ctx context.Context, spec QuerySpec) ([]InventoryAdjustment, error)
}
