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

// BookingReport summarizes booking volume over a window.
type BookingReport struct {
	Window           Window          `json:"window"`
	Total            int             `json:"total"`
	ByStatus         map[string]int  `json:"by_status"`
	CancellationRate float64         `json:"cancellation_rate"`
	TotalValue       decimal.Decimal `json:"total_value"`
	DailyVolume      []stats.Point   `json:"daily_volume"`
	Trend            float64         `json:"trend"`
}

// InventoryReport summarizes stock movement over a window.
type InventoryReport struct {
	Window           Window    `json:"window"`
	TotalAdjustments int       `json:"total_adjustments"`
	NetChange        int       `json:"net_change"`
	UnitsConsumed    int       `json:"units_consumed"`
	UnitsRestocked   int       `json:"units_restocked"`
	Outliers         []Anomaly `json:"outliers"`
}

// Operations computes booking and inventory reporting.
type Operations struct {
	component
}

// NewOperations builds the operations component for one tenant.
func NewOperations(tenantID string, deps Deps) *Operations {
	return &Operations{component: newComponent("operations", tenantID, deps)}
}

// BookingSummary counts bookings per status over the window and fits a
// trend line to the daily booking volume.
func (o *Operations) BookingSummary(ctx context.Context, start, end time.Time) (BookingReport, error) {
	w := o.window(start, end)
	key := fmt.Sprintf("booking_summary:%s:%s", dayKey(w.Start), dayKey(w.End))

	return safety.Cached(ctx, o.monitor, key, o.cacheTTL, func(ctx context.Context) (BookingReport, error) {
		report := BookingReport{
			Window:     w,
			ByStatus:   make(map[string]int),
			TotalValue: decimal.Zero,
		}

		bookings, err := safety.Enforce(ctx, o.budget, "bookings", o.spec(w), o.gw.Bookings)
		if err != nil {
			return report, err
		}

		byDay := make(map[string]float64)
		cancels := 0
		for _, b := range bookings {
			report.Total++
			report.ByStatus[b.Status]++
			report.TotalValue = report.TotalValue.Add(b.Amount)
			byDay[dayKey(b.ScheduledAt)]++
			if b.Status == gateway.BookingStatusCancelled || b.Status == gateway.BookingStatusNoShow {
				cancels++
			}
		}
		if report.Total > 0 {
			report.CancellationRate = float64(cancels) / float64(report.Total)
		}

		report.DailyVolume = dailySeries(w, byDay)
		report.Trend = stats.Slope(seriesValues(report.DailyVolume))
		return report, nil
	})
}

// InventoryConsumption totals stock adjustments over the window and flags
// days with statistically unusual adjustment activity.
func (o *Operations) InventoryConsumption(ctx context.Context, start, end time.Time) (InventoryReport, error) {
	w := o.window(start, end)
	key := fmt.Sprintf("inventory:%s:%s", dayKey(w.Start), dayKey(w.End))

	return safety.Cached(ctx, o.monitor, key, o.cacheTTL, func(ctx context.Context) (InventoryReport, error) {
		report := InventoryReport{Window: w, Outliers: []Anomaly{}}

		adjustments, err := safety.Enforce(ctx, o.budget, "inventory_adjustments", o.spec(w), o.gw.InventoryAdjustments)
		if err != nil {
			return report, err
		}

		byDay := make(map[string]float64)
		for _, a := range adjustments {
			report.TotalAdjustments++
			report.NetChange += a.Delta
			if a.Delta < 0 {
				report.UnitsConsumed += -a.Delta
			} else {
				report.UnitsRestocked += a.Delta
			}
			byDay[dayKey(a.OccurredAt)]++
		}

		for _, out := range stats.DetectOutliers(dailySeries(w, byDay)) {
			report.Outliers = append(report.Outliers, Anomaly{
				Date:          out.Date,
				Metric:        MetricInventory,
				Observed:      out.Value,
				ZScore:        out.ZScore,
				ExpectedRange: fmt.Sprintf("[%.2f, %.2f]", out.ExpectedLow, out.ExpectedHigh),
				Severity:      string(out.Severity),
				Direction:     string(out.Direction),
			})
		}
		return report, nil
	})
}
