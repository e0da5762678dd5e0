// Package handlers implements the HTTP handlers for the tenant analytics
// API. Each handler resolves the tenant from the URL, parses the common
// query parameters (start, end, days, threshold, metric, period), delegates
// to the analytics components, and writes a standardized envelope.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/brianlane/bizblasts-insights/internal/analytics"
	"github.com/brianlane/bizblasts-insights/internal/api/response"
)

// Engine builds the per-tenant analytics components a request needs.
// Components are cheap to construct; the heavy collaborators (gateway,
// cache, budget) are shared through it.
type Engine interface {
	Lifecycle(tenantID string) *analytics.Lifecycle
	Churn(tenantID string) *analytics.Churn
	Forecast(tenantID string) *analytics.Forecast
	MRR(tenantID string) *analytics.MRR
	Operations(tenantID string) *analytics.Operations
}

// AnalyticsHandler serves the tenant analytics routes.
type AnalyticsHandler struct {
	engine Engine
}

// NewAnalyticsHandler creates the handler set backed by an engine.
func NewAnalyticsHandler(engine Engine) *AnalyticsHandler {
	return &AnalyticsHandler{engine: engine}
}

// tenantID pulls the tenant from the route. chi guarantees the param is
// present on registered routes.
func tenantID(r *http.Request) string {
	return chi.URLParam(r, "tenantID")
}

// parseWindow reads start/end (RFC 3339 or YYYY-MM-DD) or a trailing days
// count. Zero times mean "component default".
func parseWindow(r *http.Request) (start, end time.Time, err error) {
	q := r.URL.Query()

	if raw := q.Get("start"); raw != "" {
		if start, err = parseDate(raw); err != nil {
			return
		}
	}
	if raw := q.Get("end"); raw != "" {
		if end, err = parseDate(raw); err != nil {
			return
		}
	}
	if raw := q.Get("days"); raw != "" && start.IsZero() {
		var days int
		if days, err = strconv.Atoi(raw); err != nil || days <= 0 {
			err = errInvalidDays
			return
		}
		if end.IsZero() {
			end = time.Now().UTC()
		}
		start = end.AddDate(0, 0, -days)
	}
	return
}

var errInvalidDays = badParamError("days must be a positive integer")

type badParamError string

func (e badParamError) Error() string { return string(e) }

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, badParamError("dates must be RFC 3339 or YYYY-MM-DD")
	}
	return t, nil
}

// Segments handles GET /segments.
func (h *AnalyticsHandler) Segments(w http.ResponseWriter, r *http.Request) {
	report, err := h.engine.Lifecycle(tenantID(r)).RFMSegments(r.Context())
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}
	response.WriteSuccess(w, report)
}

// CLV handles GET /clv.
func (h *AnalyticsHandler) CLV(w http.ResponseWriter, r *http.Request) {
	results, err := h.engine.Lifecycle(tenantID(r)).CustomerCLV(r.Context())
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}
	response.WriteSuccess(w, results)
}

// Churn handles GET /churn. An optional threshold filters to at-risk
// customers only.
func (h *AnalyticsHandler) Churn(w http.ResponseWriter, r *http.Request) {
	churn := h.engine.Churn(tenantID(r))

	if raw := r.URL.Query().Get("threshold"); raw != "" {
		threshold, err := strconv.ParseFloat(raw, 64)
		if err != nil || threshold < 0 || threshold > 100 {
			response.WriteBadRequest(w, "threshold must be a number between 0 and 100")
			return
		}
		scores, err := churn.AtRiskCustomers(r.Context(), threshold)
		if err != nil {
			response.WriteDomainError(w, err)
			return
		}
		response.WriteSuccess(w, scores)
		return
	}

	scores, err := churn.ChurnScores(r.Context())
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}
	response.WriteSuccess(w, scores)
}

// churnAction pairs a scored customer with its retention playbook.
type churnAction struct {
	analytics.ChurnScore
	Actions []string `json:"actions"`
}

// ChurnActions handles GET /churn/actions: at-risk customers with their
// recommended retention actions.
func (h *AnalyticsHandler) ChurnActions(w http.ResponseWriter, r *http.Request) {
	churn := h.engine.Churn(tenantID(r))

	scores, err := churn.AtRiskCustomers(r.Context(), 0)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	actions := make([]churnAction, 0, len(scores))
	for _, score := range scores {
		actions = append(actions, churnAction{
			ChurnScore: score,
			Actions:    churn.RecommendedActions(score),
		})
	}
	response.WriteSuccess(w, actions)
}

// Forecast handles GET /forecast?days=N (default 30).
func (h *AnalyticsHandler) Forecast(w http.ResponseWriter, r *http.Request) {
	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			response.WriteBadRequest(w, "days must be a non-negative integer")
			return
		}
		days = parsed
	}

	result, err := h.engine.Forecast(tenantID(r)).ForecastRevenue(r.Context(), days)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}
	response.WriteSuccess(w, result)
}

// Anomalies handles GET /anomalies?metric=bookings|revenue|inventory.
func (h *AnalyticsHandler) Anomalies(w http.ResponseWriter, r *http.Request) {
	metric := r.URL.Query().Get("metric")
	switch metric {
	case analytics.MetricBookings, analytics.MetricRevenue, analytics.MetricInventory:
	case "":
		metric = analytics.MetricRevenue
	default:
		response.WriteBadRequest(w, "metric must be one of bookings, revenue, inventory")
		return
	}

	start, end, err := parseWindow(r)
	if err != nil {
		response.WriteBadRequest(w, err.Error())
		return
	}

	anomalies, err := h.engine.Forecast(tenantID(r)).DetectAnomalies(r.Context(), metric, start, end)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}
	response.WriteSuccess(w, anomalies)
}

// MRR handles GET /mrr, optionally as of a past date.
func (h *AnalyticsHandler) MRR(w http.ResponseWriter, r *http.Request) {
	var asOf time.Time
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := parseDate(raw)
		if err != nil {
			response.WriteBadRequest(w, err.Error())
			return
		}
		asOf = parsed
	}

	snapshot, err := h.engine.MRR(tenantID(r)).CalculateMRR(r.Context(), asOf)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}
	response.WriteSuccess(w, snapshot)
}

// MRRGrowth handles GET /mrr/growth?period=30d|12w|6m style durations.
func (h *AnalyticsHandler) MRRGrowth(w http.ResponseWriter, r *http.Request) {
	period := 30 * 24 * time.Hour
	if raw := r.URL.Query().Get("period"); raw != "" {
		parsed, err := parsePeriod(raw)
		if err != nil {
			response.WriteBadRequest(w, err.Error())
			return
		}
		period = parsed
	}

	growth, err := h.engine.MRR(tenantID(r)).GrowthRate(r.Context(), period)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}
	response.WriteSuccess(w, map[string]interface{}{
		"period_days": int(period.Hours() / 24),
		"growth_rate": growth,
	})
}

// parsePeriod accepts day/week/month suffixed periods (30d, 4w, 3m) plus
// plain Go durations.
func parsePeriod(raw string) (time.Duration, error) {
	if len(raw) > 1 {
		if n, err := strconv.Atoi(raw[:len(raw)-1]); err == nil && n > 0 {
			switch raw[len(raw)-1] {
			case 'd':
				return time.Duration(n) * 24 * time.Hour, nil
			case 'w':
				return time.Duration(n) * 7 * 24 * time.Hour, nil
			case 'm':
				return time.Duration(n) * 30 * 24 * time.Hour, nil
			}
		}
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d, nil
	}
	return 0, badParamError("period must look like 30d, 4w, or 3m")
}

// SubscriptionHealth handles GET /subscriptions/health.
func (h *AnalyticsHandler) SubscriptionHealth(w http.ResponseWriter, r *http.Request) {
	report, err := h.engine.MRR(tenantID(r)).HealthReport(r.Context())
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}
	response.WriteSuccess(w, report)
}

// ChurnedMRR handles GET /mrr/churned over a window.
func (h *AnalyticsHandler) ChurnedMRR(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseWindow(r)
	if err != nil {
		response.WriteBadRequest(w, err.Error())
		return
	}

	churned, err := h.engine.MRR(tenantID(r)).ChurnedMRR(r.Context(), start, end)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}
	response.WriteSuccess(w, map[string]interface{}{"churned_mrr": churned})
}

// Operations handles GET /operations: booking and inventory reports over
// one window.
func (h *AnalyticsHandler) Operations(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseWindow(r)
	if err != nil {
		response.WriteBadRequest(w, err.Error())
		return
	}

	ops := h.engine.Operations(tenantID(r))
	bookings, err := ops.BookingSummary(r.Context(), start, end)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}
	inventory, err := ops.InventoryConsumption(r.Context(), start, end)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	response.WriteSuccess(w, map[string]interface{}{
		"bookings":  bookings,
		"inventory": inventory,
	})
}
