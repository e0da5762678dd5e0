// Package analytics implements the tenant-scoped analytics components:
// customer lifecycle and segmentation, churn prediction, revenue forecasting
// with anomaly detection, subscription/MRR analytics, and operational
// reporting. Every component reads through the tenant data gateway, runs
// its queries under a row budget, and reports timing through a query
// monitor. Sparse data always degrades to zero/empty results; only budget
// violations and upstream failures surface as errors.
package analytics

import (
	"time"

	"github.com/brianlane/bizblasts-insights/internal/config"
	"github.com/brianlane/bizblasts-insights/internal/gateway"
	"github.com/brianlane/bizblasts-insights/internal/logging"
	"github.com/brianlane/bizblasts-insights/internal/safety"
	"github.com/brianlane/bizblasts-insights/internal/stats"
)

// Deps carries the collaborators shared by every analytics component.
type Deps struct {
	Gateway       gateway.Gateway
	Budget        *safety.QueryBudget
	Cache         safety.Cache
	Config        config.AnalyticsConfig
	CacheTTL      time.Duration
	SlowThreshold time.Duration
	Logger        logging.Logger
	// Now is injectable for tests; defaults to time.Now
	Now func() time.Time
}

// Window is an inclusive date range for analytics queries.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Days returns the window length in whole days, minimum 1.
func (w Window) Days() int {
	days := int(w.End.Sub(w.Start).Hours() / 24)
	if days < 1 {
		return 1
	}
	return days
}

// component is the embedded base every analytics component shares.
type component struct {
	tenantID string
	gw       gateway.Gateway
	budget   *safety.QueryBudget
	monitor  *safety.QueryMonitor
	cfg      config.AnalyticsConfig
	cacheTTL time.Duration
	logger   logging.Logger
	now      func() time.Time
}

func newComponent(name, tenantID string, d Deps) component {
	logger := d.Logger
	if logger == nil {
		logger = logging.NewNoop()
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}
	cfg := d.Config
	if cfg.DefaultWindowDays <= 0 {
		cfg.DefaultWindowDays = 30
	}
	if cfg.ForecastHistoryDays <= 0 {
		cfg.ForecastHistoryDays = 90
	}
	cacheTTL := d.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = 15 * time.Minute
	}
	budget := d.Budget
	if budget == nil {
		budget = safety.NewQueryBudget(50000, logger)
	}

	return component{
		tenantID: tenantID,
		gw:       d.Gateway,
		budget:   budget,
		monitor:  safety.NewQueryMonitor(name, tenantID, d.Cache, d.SlowThreshold, logger),
		cfg:      cfg,
		cacheTTL: cacheTTL,
		logger:   logger.WithComponent(name),
		now:      now,
	}
}

// Monitor exposes the component's query monitor counters.
func (c *component) Monitor() *safety.QueryMonitor {
	return c.monitor
}

// window resolves a caller-supplied range, defaulting to the trailing
// configured window ending now.
func (c *component) window(start, end time.Time) Window {
	if end.IsZero() {
		end = c.now()
	}
	if start.IsZero() {
		start = end.AddDate(0, 0, -c.cfg.DefaultWindowDays)
	}
	return Window{Start: start, End: end}
}

// spec builds a tenant-scoped query spec for a window.
func (c *component) spec(w Window) gateway.QuerySpec {
	return gateway.NewQuerySpec(c.tenantID, w.Start, w.End)
}

// dayKey truncates a timestamp to its UTC calendar day.
func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// dailySeries expands a day-keyed value map into a dense series covering
// every day of the window. Missing days become 0 so gaps never shift the
// regression index.
func dailySeries(w Window, byDay map[string]float64) []stats.Point {
	start := w.Start.UTC().Truncate(24 * time.Hour)
	end := w.End.UTC().Truncate(24 * time.Hour)

	var series []stats.Point
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		series = append(series, stats.Point{Date: day, Value: byDay[dayKey(day)]})
	}
	return series
}

// seriesValues projects a point series onto its values.
func seriesValues(series []stats.Point) []float64 {
	values := make([]float64, len(series))
	for i, p := range series {
		values[i] = p.Value
	}
	return values
}
