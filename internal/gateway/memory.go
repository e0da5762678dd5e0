package gateway

import (
	"context"
	"sync"
)

// MemoryGateway is an in-memory Gateway implementation used by tests and the
// demo entrypoint. Records are seeded through the Add* methods and filtered
// the same way the SQL implementation filters server-side.
type MemoryGateway struct {
	mu          sync.RWMutex
	snapshots   []CustomerSnapshot
	bookings    []Booking
	orders      []Order
	payments    []Payment
	subs        []Subscription
	events      []SubscriptionEvent
	adjustments []InventoryAdjustment
}

// NewMemoryGateway creates an empty in-memory gateway.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{}
}

// AddCustomerSnapshot seeds a customer snapshot.
func (g *MemoryGateway) AddCustomerSnapshot(s CustomerSnapshot) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.snapshots = append(g.snapshots, s)
}

// AddBooking seeds a booking.
func (g *MemoryGateway) AddBooking(b Booking) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.bookings = append(g.bookings, b)
}

// AddOrder seeds an order.
func (g *MemoryGateway) AddOrder(o Order) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.orders = append(g.orders, o)
}

// AddPayment seeds a payment.
func (g *MemoryGateway) AddPayment(p Payment) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payments = append(g.payments, p)
}

// AddSubscription seeds a subscription.
func (g *MemoryGateway) AddSubscription(s Subscription) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.subs = append(g.subs, s)
}

// AddSubscriptionEvent seeds a subscription event.
func (g *MemoryGateway) AddSubscriptionEvent(e SubscriptionEvent) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.events = append(g.events, e)
}

// AddInventoryAdjustment seeds an inventory adjustment.
func (g *MemoryGateway) AddInventoryAdjustment(a InventoryAdjustment) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.adjustments = append(g.adjustments, a)
}

// CustomerSnapshots returns the tenant's customer snapshots. Snapshots are
// point-in-time aggregates, so the spec's date range does not apply; only
// tenant, limit, and offset do.
func (g *MemoryGateway) CustomerSnapshots(_ context.Context, spec QuerySpec) ([]CustomerSnapshot, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []CustomerSnapshot
	for _, s := range g.snapshots {
		if s.TenantID != spec.TenantID {
			continue
		}
		out = append(out, s)
	}
	return page(out, spec), nil
}

// Bookings returns bookings filtered by tenant, scheduled time, and status.
func (g *MemoryGateway) Bookings(_ context.Context, spec QuerySpec) ([]Booking, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []Booking
	for _, b := range g.bookings {
		if b.TenantID != spec.TenantID || !spec.inRange(b.ScheduledAt) || !spec.matchesStatus(b.Status) {
			continue
		}
		out = append(out, b)
	}
	return page(out, spec), nil
}

// Orders returns orders filtered by tenant, placement time, and status.
func (g *MemoryGateway) Orders(_ context.Context, spec QuerySpec) ([]Order, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []Order
	for _, o := range g.orders {
		if o.TenantID != spec.TenantID || !spec.inRange(o.PlacedAt) || !spec.matchesStatus(o.Status) {
			continue
		}
		out = append(out, o)
	}
	return page(out, spec), nil
}

// Payments returns payments filtered by tenant, payment time, and status.
func (g *MemoryGateway) Payments(_ context.Context, spec QuerySpec) ([]Payment, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []Payment
	for _, p := range g.payments {
		if p.TenantID != spec.TenantID || !spec.inRange(p.PaidAt) || !spec.matchesStatus(p.Status) {
			continue
		}
		out = append(out, p)
	}
	return page(out, spec), nil
}

// Subscriptions returns subscriptions overlapping the spec's window: created
// on or before End and not canceled before Start.
func (g *MemoryGateway) Subscriptions(_ context.Context, spec QuerySpec) ([]Subscription, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []Subscription
	for _, s := range g.subs {
		if s.TenantID != spec.TenantID || !spec.matchesStatus(s.Status) {
			continue
		}
		if !spec.End.IsZero() && s.CreatedAt.After(spec.End) {
			continue
		}
		if !spec.Start.IsZero() && s.CanceledAt != nil && s.CanceledAt.Before(spec.Start) {
			continue
		}
		out = append(out, s)
	}
	return page(out, spec), nil
}

// SubscriptionEvents returns events filtered by tenant and occurrence time.
func (g *MemoryGateway) SubscriptionEvents(_ context.Context, spec QuerySpec) ([]SubscriptionEvent, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []SubscriptionEvent
	for _, e := range g.events {
		if e.TenantID != spec.TenantID || !spec.inRange(e.OccurredAt) {
			continue
		}
		out = append(out, e)
	}
	return page(out, spec), nil
}

// InventoryAdjustments returns adjustments filtered by tenant and time.
func (g *MemoryGateway) InventoryAdjustments(_ context.Context, spec QuerySpec) ([]InventoryAdjustment, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []InventoryAdjustment
	for _, a := range g.adjustments {
		if a.TenantID != spec.TenantID || !spec.inRange(a.OccurredAt) {
			continue
		}
		out = append(out, a)
	}
	return page(out, spec), nil
}

// page applies the spec's offset and limit to a filtered result.
func page[T any](rows []T, spec QuerySpec) []T {
	if spec.Offset > 0 {
		if spec.Offset >= len(rows) {
			return nil
		}
		rows = rows[spec.Offset:]
	}
	if spec.Limit > 0 && len(rows) > spec.Limit {
		rows = rows[:spec.Limit]
	}
	return rows
}
