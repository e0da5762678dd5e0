package analytics

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/brianlane/bizblasts-insights/internal/gateway"
	"github.com/brianlane/bizblasts-insights/internal/httpx"
	"github.com/brianlane/bizblasts-insights/internal/safety"
)

// Subscription health bands.
const (
	HealthHealthy  = "healthy"
	HealthAtRisk   = "at_risk"
	HealthCritical = "critical"
)

// weeksPerMonth converts weekly billing to a monthly cadence.
var weeksPerMonth = decimal.NewFromFloat(4.33)

// MRRSnapshot is the tenant's monthly recurring revenue as of a date.
type MRRSnapshot struct {
	AsOf                time.Time       `json:"as_of"`
	Amount              decimal.Decimal `json:"amount"`
	Currency            string          `json:"currency"`
	ActiveSubscriptions int             `json:"active_subscriptions"`
}

// SubscriptionHealth is one subscription's scored health assessment.
type SubscriptionHealth struct {
	SubscriptionID string   `json:"subscription_id"`
	CustomerID     string   `json:"customer_id"`
	PlanName       string   `json:"plan_name"`
	Score          int      `json:"score"`
	Status         string   `json:"status"`
	Deductions     []string `json:"deductions"`
}

// RateProvider resolves a currency conversion rate.
type RateProvider interface {
	Rate(ctx context.Context, from, to string) (decimal.Decimal, error)
}

// StaticRateProvider serves rates from a fixed table so the engine works
// without any external service. Unknown pairs convert at 1:1.
type StaticRateProvider struct {
	rates map[string]decimal.Decimal
}

// NewStaticRateProvider builds a provider from "FROM/TO" keyed rates.
func NewStaticRateProvider(rates map[string]decimal.Decimal) *StaticRateProvider {
	return &StaticRateProvider{rates: rates}
}

func (p *StaticRateProvider) Rate(_ context.Context, from, to string) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	if rate, ok := p.rates[from+"/"+to]; ok {
		return rate, nil
	}
	return decimal.NewFromInt(1), nil
}

// HTTPRateProvider fetches conversion rates from an external rate service.
type HTTPRateProvider struct {
	client  *httpx.Client
	baseURL string
}

// NewHTTPRateProvider builds a provider against a rate service endpoint
// that answers GET ?base=FROM&symbols=TO with {"rates": {"TO": <rate>}}.
func NewHTTPRateProvider(client *httpx.Client, baseURL string) *HTTPRateProvider {
	return &HTTPRateProvider{client: client, baseURL: baseURL}
}

func (p *HTTPRateProvider) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	var payload struct {
		Rates map[string]decimal.Decimal `json:"rates"`
	}
	endpoint := fmt.Sprintf("%s?base=%s&symbols=%s", p.baseURL, url.QueryEscape(from), url.QueryEscape(to))
	if err := p.client.GetJSON(ctx, endpoint, &payload); err != nil {
		return decimal.Zero, err
	}
	rate, ok := payload.Rates[to]
	if !ok || rate.IsZero() {
		return decimal.NewFromInt(1), nil
	}
	return rate, nil
}

// MRR computes monthly-recurring-revenue analytics over subscriptions.
type MRR struct {
	component
	rates RateProvider
}

// NewMRR builds the MRR component for one tenant. A nil provider falls back
// to an empty static table (1:1 conversion).
func NewMRR(tenantID string, deps Deps, rates RateProvider) *MRR {
	if rates == nil {
		rates = NewStaticRateProvider(nil)
	}
	return &MRR{component: newComponent("mrr", tenantID, deps), rates: rates}
}

// NormalizeToMonthly converts a subscription price to its monthly
// equivalent. Unrecognized intervals are treated as monthly by policy.
func NormalizeToMonthly(price decimal.Decimal, interval string) decimal.Decimal {
	switch interval {
	case gateway.IntervalWeekly:
		return price.Mul(weeksPerMonth)
	case gateway.IntervalQuarterly:
		return price.Div(decimal.NewFromInt(3))
	case gateway.IntervalYearly:
		return price.Div(decimal.NewFromInt(12))
	default:
		return price
	}
}

// CalculateMRR sums normalized monthly revenue over subscriptions active as
// of the given date, converted into the tenant reporting currency.
func (m *MRR) CalculateMRR(ctx context.Context, asOf time.Time) (MRRSnapshot, error) {
	if asOf.IsZero() {
		asOf = m.now()
	}
	key := fmt.Sprintf("mrr:%s", dayKey(asOf))

	return safety.Cached(ctx, m.monitor, key, m.cacheTTL, func(ctx context.Context) (MRRSnapshot, error) {
		snapshot := MRRSnapshot{AsOf: asOf, Amount: decimal.Zero, Currency: m.cfg.Currency}

		spec := gateway.NewQuerySpec(m.tenantID, time.Time{}, asOf)
		subs, err := safety.Enforce(ctx, m.budget, "subscriptions", spec, m.gw.Subscriptions)
		if err != nil {
			return snapshot, err
		}

		for _, sub := range subs {
			if !sub.ActiveAt(asOf) {
				continue
			}
			monthly, err := m.toReportingCurrency(ctx, NormalizeToMonthly(sub.Price, sub.Interval), sub.Currency)
			if err != nil {
				return snapshot, err
			}
			snapshot.Amount = snapshot.Amount.Add(monthly)
			snapshot.ActiveSubscriptions++
		}
		snapshot.Amount = snapshot.Amount.Round(2)
		return snapshot, nil
	})
}

// GrowthRate returns the relative MRR change over the period, e.g. 0.1 for
// 10% growth. A zero past baseline yields 0.
func (m *MRR) GrowthRate(ctx context.Context, period time.Duration) (float64, error) {
	now := m.now()

	current, err := m.CalculateMRR(ctx, now)
	if err != nil {
		return 0, err
	}
	past, err := m.CalculateMRR(ctx, now.Add(-period))
	if err != nil {
		return 0, err
	}

	if past.Amount.IsZero() {
		return 0, nil
	}
	return current.Amount.Sub(past.Amount).Div(past.Amount).InexactFloat64(), nil
}

// HealthScore grades one subscription from 100 downward: recent payment
// failures, subscription youth, customer inactivity, and downgrade history
// each deduct points.
func (m *MRR) HealthScore(sub gateway.Subscription, events []gateway.SubscriptionEvent, snapshot *gateway.CustomerSnapshot, asOf time.Time) SubscriptionHealth {
	health := SubscriptionHealth{
		SubscriptionID: sub.ID,
		CustomerID:     sub.CustomerID,
		PlanName:       sub.PlanName,
		Score:          100,
		Deductions:     []string{},
	}
	failureCutoff := asOf.AddDate(0, 0, -90)

	failures, downgrades := 0, 0
	for _, e := range events {
		if e.SubscriptionID != sub.ID {
			continue
		}
		switch e.Kind {
		case gateway.EventPaymentFailure:
			if e.OccurredAt.After(failureCutoff) {
				failures++
			}
		case gateway.EventDowngrade:
			downgrades++
		}
	}

	if failures > 0 {
		deduction := failures * 20
		if deduction > 40 {
			deduction = 40
		}
		health.Score -= deduction
		health.Deductions = append(health.Deductions, fmt.Sprintf("payment_failures:%d", failures))
	}

	ageDays := asOf.Sub(sub.CreatedAt).Hours() / 24
	switch {
	case ageDays < 30:
		health.Score -= 20
		health.Deductions = append(health.Deductions, "subscription_age_under_30d")
	case ageDays < 90:
		health.Score -= 10
		health.Deductions = append(health.Deductions, "subscription_age_under_90d")
	}

	if snapshot != nil && snapshot.DaysSinceLastPurchase != nil && *snapshot.DaysSinceLastPurchase > 30 {
		health.Score -= 20
		health.Deductions = append(health.Deductions, "customer_inactive_over_30d")
	}

	if downgrades > 0 {
		deduction := downgrades * 10
		if deduction > 20 {
			deduction = 20
		}
		health.Score -= deduction
		health.Deductions = append(health.Deductions, fmt.Sprintf("downgrades:%d", downgrades))
	}

	if health.Score < 0 {
		health.Score = 0
	}
	health.Status = healthStatus(health.Score)
	return health
}

// HealthReport scores every currently active subscription, lowest score
// first so the riskiest surface at the top.
func (m *MRR) HealthReport(ctx context.Context) ([]SubscriptionHealth, error) {
	return safety.Cached(ctx, m.monitor, "subscription_health", m.cacheTTL, func(ctx context.Context) ([]SubscriptionHealth, error) {
		now := m.now()

		spec := gateway.NewQuerySpec(m.tenantID, time.Time{}, now)
		subs, err := safety.Enforce(ctx, m.budget, "subscriptions", spec, m.gw.Subscriptions)
		if err != nil {
			return nil, err
		}

		events, err := safety.Enforce(ctx, m.budget, "subscription_events", m.spec(Window{}), m.gw.SubscriptionEvents)
		if err != nil {
			return nil, err
		}

		snapshots, err := safety.Enforce(ctx, m.budget, "customer_snapshots", m.spec(Window{}), m.gw.CustomerSnapshots)
		if err != nil {
			return nil, err
		}
		byCustomer := make(map[string]*gateway.CustomerSnapshot, len(snapshots))
		for i := range snapshots {
			byCustomer[snapshots[i].CustomerID] = &snapshots[i]
		}

		report := make([]SubscriptionHealth, 0, len(subs))
		for _, sub := range subs {
			if !sub.ActiveAt(now) {
				continue
			}
			report = append(report, m.HealthScore(sub, events, byCustomer[sub.CustomerID], now))
		}
		sort.SliceStable(report, func(i, j int) bool {
			return report[i].Score < report[j].Score
		})
		return report, nil
	})
}

// ChurnedMRR sums the monthly revenue lost to subscriptions canceled inside
// the window.
func (m *MRR) ChurnedMRR(ctx context.Context, start, end time.Time) (decimal.Decimal, error) {
	w := m.window(start, end)
	key := fmt.Sprintf("churned_mrr:%s:%s", dayKey(w.Start), dayKey(w.End))

	return safety.Cached(ctx, m.monitor, key, m.cacheTTL, func(ctx context.Context) (decimal.Decimal, error) {
		spec := gateway.NewQuerySpec(m.tenantID, time.Time{}, w.End)
		subs, err := safety.Enforce(ctx, m.budget, "subscriptions", spec, m.gw.Subscriptions)
		if err != nil {
			return decimal.Zero, err
		}

		churned := decimal.Zero
		for _, sub := range subs {
			if sub.CanceledAt == nil || sub.CanceledAt.Before(w.Start) || sub.CanceledAt.After(w.End) {
				continue
			}
			monthly, err := m.toReportingCurrency(ctx, NormalizeToMonthly(sub.Price, sub.Interval), sub.Currency)
			if err != nil {
				return decimal.Zero, err
			}
			churned = churned.Add(monthly)
		}
		return churned.Round(2), nil
	})
}

// toReportingCurrency converts an amount from the subscription currency
// into the tenant reporting currency.
func (m *MRR) toReportingCurrency(ctx context.Context, amount decimal.Decimal, currency string) (decimal.Decimal, error) {
	if currency == "" || currency == m.cfg.Currency {
		return amount, nil
	}
	rate, err := m.rates.Rate(ctx, currency, m.cfg.Currency)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(rate), nil
}

func healthStatus(score int) string {
	switch {
	case score >= 80:
		return HealthHealthy
	case score >= 50:
		return HealthAtRisk
	default:
		return HealthCritical
	}
}
