package analytics

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/brianlane/bizblasts-insights/internal/gateway"
	"github.com/brianlane/bizblasts-insights/internal/safety"
	"github.com/brianlane/bizblasts-insights/internal/stats"
)

// Segment names, in assignment precedence order.
const (
	SegmentChampions   = "champions"
	SegmentLoyal       = "loyal"
	SegmentBigSpenders = "big_spenders"
	SegmentAtRisk      = "at_risk"
	SegmentLost        = "lost"
	SegmentNew         = "new"
	SegmentOccasional  = "occasional"
	SegmentHibernating = "hibernating"
)

// CLVResult is the customer-lifetime-value breakdown for one customer.
type CLVResult struct {
	CustomerID             string          `json:"customer_id"`
	TotalValue             decimal.Decimal `json:"total_value"`
	PredictedFutureValue   decimal.Decimal `json:"predicted_future_value"`
	AvgOrderValue          decimal.Decimal `json:"avg_order_value"`
	PurchaseFrequency      int             `json:"purchase_frequency"`
	EstimatedLifespanYears float64         `json:"estimated_lifespan_years"`
}

// SegmentAssignment is one customer's RFM placement.
type SegmentAssignment struct {
	CustomerID     string `json:"customer_id"`
	RecencyScore   int    `json:"recency_score"`
	FrequencyScore int    `json:"frequency_score"`
	MonetaryScore  int    `json:"monetary_score"`
	Segment        string `json:"segment"`
}

// SegmentSummary aggregates one segment for dashboard rollups.
type SegmentSummary struct {
	Count        int             `json:"count"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
}

// SegmentReport is the full segmentation output for a tenant.
type SegmentReport struct {
	Assignments []SegmentAssignment       `json:"assignments"`
	Summary     map[string]SegmentSummary `json:"summary"`
}

// Lifecycle computes customer-lifetime-value and RFM segmentation.
type Lifecycle struct {
	component
}

// NewLifecycle builds the lifecycle component for one tenant.
func NewLifecycle(tenantID string, deps Deps) *Lifecycle {
	return &Lifecycle{component: newComponent("lifecycle", tenantID, deps)}
}

// CalculateCLV estimates lifetime value from a customer snapshot. The model
// assumes a 3-year baseline customer lifetime with a 1-year remaining floor.
// Customers with no purchase history get a zero-valued result.
func (l *Lifecycle) CalculateCLV(snapshot gateway.CustomerSnapshot) CLVResult {
	result := CLVResult{
		CustomerID:           snapshot.CustomerID,
		TotalValue:           snapshot.TotalRevenue,
		PredictedFutureValue: decimal.Zero,
		AvgOrderValue:        decimal.Zero,
		PurchaseFrequency:    snapshot.PurchaseFrequency,
	}
	if snapshot.PurchaseFrequency == 0 {
		result.TotalValue = decimal.Zero
		return result
	}

	freq := decimal.NewFromInt(int64(snapshot.PurchaseFrequency))
	result.AvgOrderValue = snapshot.TotalRevenue.Div(freq)

	historicalYears := snapshot.LifespanDays() / 365
	remainingYears := 3.0 - historicalYears
	if remainingYears < 1.0 {
		remainingYears = 1.0
	}
	result.EstimatedLifespanYears = historicalYears + remainingYears

	// Annualized purchase rate. A customer whose entire history fits in a
	// single day has no observable cadence yet, so their current frequency
	// stands in for the yearly rate.
	purchasesPerYear := float64(snapshot.PurchaseFrequency)
	if historicalYears > 0 {
		purchasesPerYear = float64(snapshot.PurchaseFrequency) / historicalYears
	}

	result.PredictedFutureValue = result.AvgOrderValue.
		Mul(decimal.NewFromFloat(purchasesPerYear)).
		Mul(decimal.NewFromFloat(remainingYears)).
		Round(2)

	return result
}

// CustomerCLV loads the tenant's snapshots and returns per-customer CLV,
// sorted by total value descending.
func (l *Lifecycle) CustomerCLV(ctx context.Context) ([]CLVResult, error) {
	return safety.Cached(ctx, l.monitor, "clv", l.cacheTTL, func(ctx context.Context) ([]CLVResult, error) {
		snapshots, err := safety.Enforce(ctx, l.budget, "customer_snapshots", l.spec(Window{}), l.gw.CustomerSnapshots)
		if err != nil {
			return nil, err
		}

		results := make([]CLVResult, 0, len(snapshots))
		for _, s := range snapshots {
			results = append(results, l.CalculateCLV(s))
		}
		sort.Slice(results, func(i, j int) bool {
			return results[i].TotalValue.GreaterThan(results[j].TotalValue)
		})
		return results, nil
	})
}

// RFMSegments scores every purchasing customer on recency, frequency, and
// monetary value, then assigns a segment. Monetary thresholds adapt to the
// tenant's own revenue quartiles instead of fixed amounts.
func (l *Lifecycle) RFMSegments(ctx context.Context) (SegmentReport, error) {
	return safety.Cached(ctx, l.monitor, "rfm_segments", l.cacheTTL, func(ctx context.Context) (SegmentReport, error) {
		snapshots, err := safety.Enforce(ctx, l.budget, "customer_snapshots", l.spec(Window{}), l.gw.CustomerSnapshots)
		if err != nil {
			return SegmentReport{}, err
		}

		purchasing := snapshots[:0]
		for _, s := range snapshots {
			if s.PurchaseFrequency > 0 {
				purchasing = append(purchasing, s)
			}
		}

		revenues := make([]float64, len(purchasing))
		for i, s := range purchasing {
			revenues[i] = s.TotalRevenue.InexactFloat64()
		}
		quartiles := stats.ComputeQuartiles(revenues)

		report := SegmentReport{
			Assignments: make([]SegmentAssignment, 0, len(purchasing)),
			Summary:     make(map[string]SegmentSummary),
		}
		for _, s := range purchasing {
			a := SegmentAssignment{
				CustomerID:     s.CustomerID,
				RecencyScore:   ScoreRecency(s.DaysSinceLastPurchase),
				FrequencyScore: ScoreFrequency(s.PurchaseFrequency),
				MonetaryScore:  ScoreMonetary(s.TotalRevenue.InexactFloat64(), quartiles),
			}
			a.Segment = AssignSegment(a.RecencyScore, a.FrequencyScore, a.MonetaryScore)
			report.Assignments = append(report.Assignments, a)

			summary := report.Summary[a.Segment]
			summary.Count++
			summary.TotalRevenue = summary.TotalRevenue.Add(s.TotalRevenue)
			report.Summary[a.Segment] = summary
		}
		sort.Slice(report.Assignments, func(i, j int) bool {
			return report.Assignments[i].CustomerID < report.Assignments[j].CustomerID
		})
		return report, nil
	})
}

// ScoreRecency maps days-since-last-purchase onto a 1-5 scale. Customers
// with no recorded purchase date score 1.
func ScoreRecency(daysSince *int) int {
	if daysSince == nil {
		return 1
	}
	switch d := *daysSince; {
	case d <= 30:
		return 5
	case d <= 60:
		return 4
	case d <= 90:
		return 3
	case d <= 180:
		return 2
	default:
		return 1
	}
}

// ScoreFrequency maps purchase count onto a 1-5 scale.
func ScoreFrequency(frequency int) int {
	switch {
	case frequency >= 10:
		return 5
	case frequency >= 6:
		return 4
	case frequency >= 3:
		return 3
	case frequency == 2:
		return 2
	default:
		return 1
	}
}

// ScoreMonetary compares a customer's revenue against the tenant's own
// quartiles so the scale adapts to each tenant's distribution.
func ScoreMonetary(revenue float64, q stats.Quartiles) int {
	switch {
	case revenue >= q.P90:
		return 5
	case revenue >= q.P75:
		return 4
	case revenue >= q.P50:
		return 3
	case revenue >= q.P25:
		return 2
	default:
		return 1
	}
}

// AssignSegment places a customer by RFM scores. The decision order is a
// deliberate tie-break policy; reordering the checks reclassifies customers.
func AssignSegment(recency, frequency, monetary int) string {
	switch {
	case recency >= 4 && frequency >= 4 && monetary >= 4:
		return SegmentChampions
	case frequency >= 4 && monetary >= 3:
		return SegmentLoyal
	case monetary >= 4 && frequency < 4:
		return SegmentBigSpenders
	case monetary >= 3 && recency <= 2:
		return SegmentAtRisk
	case recency == 1:
		return SegmentLost
	case recency >= 4 && frequency == 1:
		return SegmentNew
	case recency+frequency+monetary >= 6 && recency+frequency+monetary <= 9:
		return SegmentOccasional
	default:
		return SegmentHibernating
	}
}
