package gateway

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	// Drivers registered for the two supported transactional stores.
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// SQLGateway reads the transactional stores through database/sql. It works
// against PostgreSQL (driver "postgres") and SQLite (driver "sqlite3"); the
// two only differ in placeholder syntax. Per-customer scoring step functions
// stay client-side so both backends return identical results.
type SQLGateway struct {
	db     *sql.DB
	driver string
}

// OpenSQLGateway opens a connection pool for the given driver and DSN.
func OpenSQLGateway(driver, dsn string) (*SQLGateway, error) {
	if driver != "postgres" && driver != "sqlite3" {
		return nil, fmt.Errorf("unsupported gateway driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s gateway: %w", driver, err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &SQLGateway{db: db, driver: driver}, nil
}

// NewSQLGateway wraps an existing connection pool.
func NewSQLGateway(db *sql.DB, driver string) *SQLGateway {
	return &SQLGateway{db: db, driver: driver}
}

// Close releases the underlying connection pool.
func (g *SQLGateway) Close() error {
	return g.db.Close()
}

// Ping verifies the store is reachable.
func (g *SQLGateway) Ping(ctx context.Context) error {
	return g.db.PingContext(ctx)
}

// rebind converts ? placeholders to $N for postgres.
func (g *SQLGateway) rebind(query string) string {
	if g.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

// buildWhere assembles the tenant/time/status WHERE clause shared by every
// collection query. timeColumn may be empty for collections without a time
// axis (customer snapshots).
func buildWhere(spec QuerySpec, timeColumn string) (clause string, args []interface{}) {
	conditions := []string{"tenant_id = ?"}
	args = append(args, spec.TenantID)

	if timeColumn != "" {
		if !spec.Start.IsZero() {
			conditions = append(conditions, timeColumn+" >= ?")
			args = append(args, spec.Start)
		}
		if !spec.End.IsZero() {
			conditions = append(conditions, timeColumn+" <= ?")
			args = append(args, spec.End)
		}
	}

	if len(spec.Statuses) > 0 {
		placeholders := make([]string, len(spec.Statuses))
		for i, s := range spec.Statuses {
			placeholders[i] = "?"
			args = append(args, s)
		}
		conditions = append(conditions, "status IN ("+strings.Join(placeholders, ", ")+")")
	}

	return strings.Join(conditions, " AND "), args
}

// appendPaging adds LIMIT/OFFSET when the spec requests them.
func appendPaging(query string, spec QuerySpec, args []interface{}) (string, []interface{}) {
	if spec.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, spec.Limit)
	}
	if spec.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, spec.Offset)
	}
	return query, args
}

// CustomerSnapshots loads the tenant's customer aggregate rows.
func (g *SQLGateway) CustomerSnapshots(ctx context.Context, spec QuerySpec) ([]CustomerSnapshot, error) {
	where, args := buildWhere(QuerySpec{TenantID: spec.TenantID, Limit: spec.Limit, Offset: spec.Offset}, "")
	query := `SELECT customer_id, tenant_id, total_revenue, purchase_frequency,
		days_since_last_purchase, avg_days_between_purchases, first_purchase_at, last_purchase_at
		FROM customer_snapshots WHERE ` + where + " ORDER BY customer_id"
	query, args = appendPaging(query, spec, args)

	rows, err := g.db.QueryContext(ctx, g.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("querying customer snapshots: %w", err)
	}
	defer rows.Close()

	var out []CustomerSnapshot
	for rows.Next() {
		var (
			s         CustomerSnapshot
			revenue   string
			daysSince sql.NullInt64
			avgDays   sql.NullFloat64
			first     sql.NullTime
			last      sql.NullTime
		)
		if err := rows.Scan(&s.CustomerID, &s.TenantID, &revenue, &s.PurchaseFrequency,
			&daysSince, &avgDays, &first, &last); err != nil {
			return nil, fmt.Errorf("scanning customer snapshot: %w", err)
		}
		if s.TotalRevenue, err = decimal.NewFromString(revenue); err != nil {
			return nil, fmt.Errorf("parsing total_revenue for customer %s: %w", s.CustomerID, err)
		}
		if daysSince.Valid {
			v := int(daysSince.Int64)
			s.DaysSinceLastPurchase = &v
		}
		if avgDays.Valid {
			v := avgDays.Float64
			s.AvgDaysBetweenPurchases = &v
		}
		if first.Valid {
			t := first.Time
			s.FirstPurchaseAt = &t
		}
		if last.Valid {
			t := last.Time
			s.LastPurchaseAt = &t
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Bookings loads bookings filtered by scheduled time and status.
func (g *SQLGateway) Bookings(ctx context.Context, spec QuerySpec) ([]Booking, error) {
	where, args := buildWhere(spec, "scheduled_at")
	query := `SELECT id, tenant_id, customer_id, service_name, status, scheduled_at, amount
		FROM bookings WHERE ` + where + " ORDER BY scheduled_at"
	query, args = appendPaging(query, spec, args)

	rows, err := g.db.QueryContext(ctx, g.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("querying bookings: %w", err)
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		var (
			b      Booking
			amount string
		)
		if err := rows.Scan(&b.ID, &b.TenantID, &b.CustomerID, &b.ServiceName,
			&b.Status, &b.ScheduledAt, &amount); err != nil {
			return nil, fmt.Errorf("scanning booking: %w", err)
		}
		if b.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parsing booking amount: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Orders loads orders filtered by placement time and status.
func (g *SQLGateway) Orders(ctx context.Context, spec QuerySpec) ([]Order, error) {
	where, args := buildWhere(spec, "placed_at")
	query := `SELECT id, tenant_id, customer_id, status, placed_at, total
		FROM orders WHERE ` + where + " ORDER BY placed_at"
	query, args = appendPaging(query, spec, args)

	rows, err := g.db.QueryContext(ctx, g.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("querying orders: %w", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var (
			o     Order
			total string
		)
		if err := rows.Scan(&o.ID, &o.TenantID, &o.CustomerID, &o.Status, &o.PlacedAt, &total); err != nil {
			return nil, fmt.Errorf("scanning order: %w", err)
		}
		if o.Total, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("parsing order total: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Payments loads payments filtered by payment time and status.
func (g *SQLGateway) Payments(ctx context.Context, spec QuerySpec) ([]Payment, error) {
	where, args := buildWhere(spec, "paid_at")
	query := `SELECT id, tenant_id, customer_id, COALESCE(booking_id, ''), status, paid_at, amount, currency
		FROM payments WHERE ` + where + " ORDER BY paid_at"
	query, args = appendPaging(query, spec, args)

	rows, err := g.db.QueryContext(ctx, g.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("querying payments: %w", err)
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		var (
			p      Payment
			amount string
		)
		if err := rows.Scan(&p.ID, &p.TenantID, &p.CustomerID, &p.BookingID,
			&p.Status, &p.PaidAt, &amount, &p.Currency); err != nil {
			return nil, fmt.Errorf("scanning payment: %w", err)
		}
		if p.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parsing payment amount: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Subscriptions loads subscriptions overlapping the spec's window.
func (g *SQLGateway) Subscriptions(ctx context.Context, spec QuerySpec) ([]Subscription, error) {
	conditions := []string{"tenant_id = ?"}
	args := []interface{}{spec.TenantID}

	if !spec.End.IsZero() {
		conditions = append(conditions, "created_at <= ?")
		args = append(args, spec.End)
	}
	if !spec.Start.IsZero() {
		conditions = append(conditions, "(canceled_at IS NULL OR canceled_at >= ?)")
		args = append(args, spec.Start)
	}
	if len(spec.Statuses) > 0 {
		placeholders := make([]string, len(spec.Statuses))
		for i, s := range spec.Statuses {
			placeholders[i] = "?"
			args = append(args, s)
		}
		conditions = append(conditions, "status IN ("+strings.Join(placeholders, ", ")+")")
	}

	query := `SELECT id, tenant_id, customer_id, plan_name, status, price, currency, billing_interval, created_at, canceled_at
		FROM subscriptions WHERE ` + strings.Join(conditions, " AND ") + " ORDER BY created_at"
	query, args = appendPaging(query, spec, args)

	rows, err := g.db.QueryContext(ctx, g.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("querying subscriptions: %w", err)
	}
	defer rows.Close()

	var out []Subscription
	for rows.Next() {
		var (
			s        Subscription
			price    string
			canceled sql.NullTime
		)
		if err := rows.Scan(&s.ID, &s.TenantID, &s.CustomerID, &s.PlanName, &s.Status,
			&price, &s.Currency, &s.Interval, &s.CreatedAt, &canceled); err != nil {
			return nil, fmt.Errorf("scanning subscription: %w", err)
		}
		if s.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("parsing subscription price: %w", err)
		}
		if canceled.Valid {
			t := canceled.Time
			s.CanceledAt = &t
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SubscriptionEvents loads events filtered by occurrence time.
func (g *SQLGateway) SubscriptionEvents(ctx context.Context, spec QuerySpec) ([]SubscriptionEvent, error) {
	where, args := buildWhere(QuerySpec{TenantID: spec.TenantID, Start: spec.Start, End: spec.End,
		Limit: spec.Limit, Offset: spec.Offset}, "occurred_at")
	query := `SELECT id, tenant_id, subscription_id, customer_id, kind, occurred_at
		FROM subscription_events WHERE ` + where + " ORDER BY occurred_at"
	query, args = appendPaging(query, spec, args)

	rows, err := g.db.QueryContext(ctx, g.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("querying subscription events: %w", err)
	}
	defer rows.Close()

	var out []SubscriptionEvent
	for rows.Next() {
		var e SubscriptionEvent
		if err := rows.Scan(&e.ID, &e.TenantID, &e.SubscriptionID, &e.CustomerID, &e.Kind, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scanning subscription event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// InventoryAdjustments loads adjustments filtered by occurrence time.
func (g *SQLGateway) InventoryAdjustments(ctx context.Context, spec QuerySpec) ([]InventoryAdjustment, error) {
	where, args := buildWhere(QuerySpec{TenantID: spec.TenantID, Start: spec.Start, End: spec.End,
		Limit: spec.Limit, Offset: spec.Offset}, "occurred_at")
	query := `SELECT id, tenant_id, product_id, delta, reason, occurred_at
		FROM inventory_adjustments WHERE ` + where + " ORDER BY occurred_at"
	query, args = appendPaging(query, spec, args)

	rows, err := g.db.QueryContext(ctx, g.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("querying inventory adjustments: %w", err)
	}
	defer rows.Close()

	var out []InventoryAdjustment
	for rows.Next() {
		var a InventoryAdjustment
		if err := rows.Scan(&a.ID, &a.TenantID, &a.ProductID, &a.Delta, &a.Reason, &a.OccurredAt); err != nil {
			return nil, fmt.Errorf("scanning inventory adjustment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
