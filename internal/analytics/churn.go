package analytics

import (
	"context"
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/brianlane/bizblasts-insights/internal/gateway"
	"github.com/brianlane/bizblasts-insights/internal/safety"
	"github.com/brianlane/bizblasts-insights/internal/stats"
)

// Risk factor identifiers surfaced on churn scores.
const (
	RiskNoRecentPurchase   = "no_recent_purchase"
	RiskFrequencyDecline   = "purchase_frequency_decline"
	RiskSpendDecline       = "spend_decline"
	RiskMissedAppointments = "missed_appointments"
)

// Churn model weights. They sum to 1.0 so the weighted score scales
// directly to a 0-100 probability.
const (
	weightRecency         = 0.4
	weightFrequencyDrop   = 0.3
	weightSpendDrop       = 0.2
	weightMissedBookings  = 0.1
	recencyRiskDays       = 90
	frequencyDropFraction = 0.20
	spendDropFraction     = 0.30
	missedBookingMinimum  = 2
)

// ChurnScore is one customer's churn assessment.
type ChurnScore struct {
	CustomerID  string   `json:"customer_id"`
	Probability float64  `json:"probability"`
	RiskFactors []string `json:"risk_factors"`
}

// CustomerActivity is the per-customer order/booking rollup the model
// scores against: order counts and spend for the trailing 60 days versus
// the 60 days before that, plus missed appointments in the trailing 90.
type CustomerActivity struct {
	TrailingOrders int
	PriorOrders    int
	TrailingSpend  decimal.Decimal
	PriorSpend     decimal.Decimal
	MissedBookings int
}

// Churn scores customers with a rule-based weighted model: stale recency,
// declining purchase frequency, declining spend, and missed appointments.
type Churn struct {
	component
}

// NewChurn builds the churn component for one tenant.
func NewChurn(tenantID string, deps Deps) *Churn {
	return &Churn{component: newComponent("churn", tenantID, deps)}
}

// PredictChurnProbability scores one customer. A customer with zero
// purchase frequency cannot churn from a state with no engagement, so the
// probability is defined as 0.
func (c *Churn) PredictChurnProbability(snapshot gateway.CustomerSnapshot, activity CustomerActivity) ChurnScore {
	score := ChurnScore{CustomerID: snapshot.CustomerID, RiskFactors: []string{}}
	if snapshot.PurchaseFrequency == 0 {
		return score
	}

	rules := []stats.Rule{
		{
			Name:   RiskNoRecentPurchase,
			Met:    snapshot.DaysSinceLastPurchase != nil && *snapshot.DaysSinceLastPurchase > recencyRiskDays,
			Weight: weightRecency,
		},
		{
			Name:   RiskFrequencyDecline,
			Met:    declinedBy(float64(activity.PriorOrders), float64(activity.TrailingOrders), frequencyDropFraction),
			Weight: weightFrequencyDrop,
		},
		{
			Name:   RiskSpendDecline,
			Met:    declinedBy(activity.PriorSpend.InexactFloat64(), activity.TrailingSpend.InexactFloat64(), spendDropFraction),
			Weight: weightSpendDrop,
		},
		{
			Name:   RiskMissedAppointments,
			Met:    activity.MissedBookings >= missedBookingMinimum,
			Weight: weightMissedBookings,
		},
	}

	score.Probability = math.Round(stats.WeightedScore(rules)*100*10) / 10
	if met := stats.MetRules(rules); met != nil {
		score.RiskFactors = met
	}
	return score
}

// ChurnScores scores every customer with purchase history, sorted by
// probability descending.
func (c *Churn) ChurnScores(ctx context.Context) ([]ChurnScore, error) {
	return safety.Cached(ctx, c.monitor, "churn_scores", c.cacheTTL, func(ctx context.Context) ([]ChurnScore, error) {
		now := c.now()

		snapshots, err := safety.Enforce(ctx, c.budget, "customer_snapshots", c.spec(Window{}), c.gw.CustomerSnapshots)
		if err != nil {
			return nil, err
		}

		// 120 days of orders covers both the trailing and prior comparison
		// windows in one scan.
		orderWindow := Window{Start: now.AddDate(0, 0, -120), End: now}
		orders, err := safety.Enforce(ctx, c.budget, "orders", c.spec(orderWindow), c.gw.Orders)
		if err != nil {
			return nil, err
		}

		bookingWindow := Window{Start: now.AddDate(0, 0, -90), End: now}
		bookingSpec := c.spec(bookingWindow).WithStatuses(gateway.BookingStatusCancelled, gateway.BookingStatusNoShow)
		missed, err := safety.Enforce(ctx, c.budget, "missed_bookings", bookingSpec, c.gw.Bookings)
		if err != nil {
			return nil, err
		}

		activity := make(map[string]CustomerActivity)
		cutoff := now.AddDate(0, 0, -60)
		for _, o := range orders {
			a := activity[o.CustomerID]
			if o.PlacedAt.After(cutoff) {
				a.TrailingOrders++
				a.TrailingSpend = a.TrailingSpend.Add(o.Total)
			} else {
				a.PriorOrders++
				a.PriorSpend = a.PriorSpend.Add(o.Total)
			}
			activity[o.CustomerID] = a
		}
		for _, b := range missed {
			a := activity[b.CustomerID]
			a.MissedBookings++
			activity[b.CustomerID] = a
		}

		scores := make([]ChurnScore, 0, len(snapshots))
		for _, s := range snapshots {
			scores = append(scores, c.PredictChurnProbability(s, activity[s.CustomerID]))
		}
		sort.SliceStable(scores, func(i, j int) bool {
			return scores[i].Probability > scores[j].Probability
		})
		return scores, nil
	})
}

// AtRiskCustomers returns customers scoring at or above the threshold,
// highest probability first. A non-positive threshold falls back to the
// configured default.
func (c *Churn) AtRiskCustomers(ctx context.Context, threshold float64) ([]ChurnScore, error) {
	if threshold <= 0 {
		threshold = c.cfg.ChurnRiskThreshold
	}

	scores, err := c.ChurnScores(ctx)
	if err != nil {
		return nil, err
	}

	atRisk := make([]ChurnScore, 0)
	for _, s := range scores {
		if s.Probability >= threshold {
			atRisk = append(atRisk, s)
		}
	}
	return atRisk, nil
}

// RecommendedActions maps a customer's risk factors onto retention actions.
// The mapping is deterministic and always yields at least one action.
func (c *Churn) RecommendedActions(score ChurnScore) []string {
	actions := make([]string, 0, len(score.RiskFactors))
	for _, factor := range score.RiskFactors {
		switch factor {
		case RiskNoRecentPurchase:
			actions = append(actions, "Send a personalized win-back offer")
		case RiskFrequencyDecline:
			actions = append(actions, "Enroll in a re-engagement email sequence")
		case RiskSpendDecline:
			actions = append(actions, "Offer a loyalty incentive or service bundle")
		case RiskMissedAppointments:
			actions = append(actions, "Schedule a personal outreach call")
		}
	}
	if len(actions) == 0 {
		actions = append(actions, "Add to the standard retention campaign")
	}
	return actions
}

// declinedBy reports whether current dropped below prior by more than the
// given fraction. A zero prior baseline means no decline can be measured.
func declinedBy(prior, current, fraction float64) bool {
	if prior <= 0 {
		return false
	}
	return (prior-current)/prior > fraction
}
