package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/brianlane/bizblasts-insights/internal/gateway"
	"github.com/brianlane/bizblasts-insights/internal/safety"
	"github.com/brianlane/bizblasts-insights/internal/stats"
)

// Anomaly metric types.
const (
	MetricBookings  = "bookings"
	MetricRevenue   = "revenue"
	MetricInventory = "inventory"
)

// Forecast confidence labels, derived from how dense the observed history is.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// ForecastResult projects revenue over a forward horizon.
type ForecastResult struct {
	DaysAhead    int             `json:"days_ahead"`
	Conservative decimal.Decimal `json:"conservative"`
	Optimistic   decimal.Decimal `json:"optimistic"`
	Confirmed    decimal.Decimal `json:"confirmed"`
	MovingAvg    float64         `json:"moving_avg"`
	Trend        float64         `json:"trend"`
	Confidence   string          `json:"confidence"`
}

// Anomaly is one flagged point in a daily metric series.
type Anomaly struct {
	Date          time.Time `json:"date"`
	Metric        string    `json:"metric"`
	Observed      float64   `json:"observed"`
	ZScore        float64   `json:"z_score"`
	ExpectedRange string    `json:"expected_range"`
	Severity      string    `json:"severity"`
	Direction     string    `json:"direction"`
}

// Forecast projects revenue from trailing history and flags statistical
// anomalies in daily metric series.
type Forecast struct {
	component
}

// NewForecast builds the forecasting component for one tenant.
func NewForecast(tenantID string, deps Deps) *Forecast {
	return &Forecast{component: newComponent("forecast", tenantID, deps)}
}

// ForecastRevenue projects revenue daysAhead days forward from the trailing
// daily-revenue series. The conservative projection extrapolates the simple
// mean; the optimistic one adds the regression slope. Confirmed revenue is
// counted independently: completed payments already tied to bookings
// scheduled inside the horizon.
func (f *Forecast) ForecastRevenue(ctx context.Context, daysAhead int) (ForecastResult, error) {
	if daysAhead < 0 {
		daysAhead = 0
	}
	key := fmt.Sprintf("forecast:%d", daysAhead)

	return safety.Cached(ctx, f.monitor, key, f.cacheTTL, func(ctx context.Context) (ForecastResult, error) {
		result := ForecastResult{
			DaysAhead:    daysAhead,
			Conservative: decimal.Zero,
			Optimistic:   decimal.Zero,
			Confirmed:    decimal.Zero,
			Confidence:   ConfidenceLow,
		}

		now := f.now()
		history := Window{Start: now.AddDate(0, 0, -f.cfg.ForecastHistoryDays), End: now}
		spec := f.spec(history).WithStatuses(gateway.PaymentStatusCompleted)
		payments, err := safety.Enforce(ctx, f.budget, "payments", spec, f.gw.Payments)
		if err != nil {
			return result, err
		}
		if len(payments) == 0 {
			return result, nil
		}

		byDay := make(map[string]float64)
		for _, p := range payments {
			byDay[dayKey(p.PaidAt)] += p.Amount.InexactFloat64()
		}
		series := dailySeries(history, byDay)
		values := seriesValues(series)

		result.MovingAvg = stats.Mean(values)
		result.Trend = stats.Slope(values)
		result.Confidence = confidenceLabel(values)

		days := decimal.NewFromInt(int64(daysAhead))
		result.Conservative = decimal.NewFromFloat(result.MovingAvg).Mul(days).Round(2)
		result.Optimistic = decimal.NewFromFloat(result.MovingAvg + result.Trend).Mul(days).Round(2)

		confirmed, err := f.confirmedRevenue(ctx, now, daysAhead)
		if err != nil {
			return result, err
		}
		result.Confirmed = confirmed
		return result, nil
	})
}

// confirmedRevenue sums completed payments attached to bookings scheduled
// inside the forward horizon.
func (f *Forecast) confirmedRevenue(ctx context.Context, now time.Time, daysAhead int) (decimal.Decimal, error) {
	if daysAhead == 0 {
		return decimal.Zero, nil
	}

	horizon := Window{Start: now, End: now.AddDate(0, 0, daysAhead)}
	bookings, err := safety.Enforce(ctx, f.budget, "horizon_bookings", f.spec(horizon), f.gw.Bookings)
	if err != nil {
		return decimal.Zero, err
	}
	if len(bookings) == 0 {
		return decimal.Zero, nil
	}

	scheduled := make(map[string]bool, len(bookings))
	for _, b := range bookings {
		scheduled[b.ID] = true
	}

	spec := gateway.NewQuerySpec(f.tenantID, time.Time{}, time.Time{}).WithStatuses(gateway.PaymentStatusCompleted)
	payments, err := safety.Enforce(ctx, f.budget, "confirmed_payments", spec, f.gw.Payments)
	if err != nil {
		return decimal.Zero, err
	}

	confirmed := decimal.Zero
	for _, p := range payments {
		if p.BookingID != "" && scheduled[p.BookingID] {
			confirmed = confirmed.Add(p.Amount)
		}
	}
	return confirmed, nil
}

// DetectAnomalies flags statistically unusual days in the requested metric
// over the window. Unknown metrics and sparse series yield an empty result.
func (f *Forecast) DetectAnomalies(ctx context.Context, metric string, start, end time.Time) ([]Anomaly, error) {
	w := f.window(start, end)
	key := fmt.Sprintf("anomalies:%s:%s:%s", metric, dayKey(w.Start), dayKey(w.End))

	return safety.Cached(ctx, f.monitor, key, f.cacheTTL, func(ctx context.Context) ([]Anomaly, error) {
		series, err := f.metricSeries(ctx, metric, w)
		if err != nil {
			return nil, err
		}

		anomalies := make([]Anomaly, 0)
		for _, o := range stats.DetectOutliers(series) {
			anomalies = append(anomalies, Anomaly{
				Date:          o.Date,
				Metric:        metric,
				Observed:      o.Value,
				ZScore:        o.ZScore,
				ExpectedRange: fmt.Sprintf("[%.2f, %.2f]", o.ExpectedLow, o.ExpectedHigh),
				Severity:      string(o.Severity),
				Direction:     string(o.Direction),
			})
		}
		return anomalies, nil
	})
}

// metricSeries builds the dense daily series for one metric type.
func (f *Forecast) metricSeries(ctx context.Context, metric string, w Window) ([]stats.Point, error) {
	byDay := make(map[string]float64)

	switch metric {
	case MetricBookings:
		bookings, err := safety.Enforce(ctx, f.budget, "bookings", f.spec(w), f.gw.Bookings)
		if err != nil {
			return nil, err
		}
		for _, b := range bookings {
			byDay[dayKey(b.ScheduledAt)]++
		}
	case MetricRevenue:
		spec := f.spec(w).WithStatuses(gateway.PaymentStatusCompleted)
		payments, err := safety.Enforce(ctx, f.budget, "payments", spec, f.gw.Payments)
		if err != nil {
			return nil, err
		}
		for _, p := range payments {
			byDay[dayKey(p.PaidAt)] += p.Amount.InexactFloat64()
		}
	case MetricInventory:
		adjustments, err := safety.Enforce(ctx, f.budget, "inventory_adjustments", f.spec(w), f.gw.InventoryAdjustments)
		if err != nil {
			return nil, err
		}
		for _, a := range adjustments {
			byDay[dayKey(a.OccurredAt)]++
		}
	default:
		f.logger.Warn("unknown anomaly metric", "metric", metric)
		return nil, nil
	}

	return dailySeries(w, byDay), nil
}

// confidenceLabel grades a forecast by observed series density.
func confidenceLabel(values []float64) string {
	nonZero := 0
	for _, v := range values {
		if v != 0 {
			nonZero++
		}
	}
	switch {
	case nonZero >= 60:
		return ConfidenceHigh
	case nonZero >= 30:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}
