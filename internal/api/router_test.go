package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brianlane/bizblasts-insights/internal/analytics"
	"github.com/brianlane/bizblasts-insights/internal/config"
	"github.com/brianlane/bizblasts-insights/internal/gateway"
	"github.com/brianlane/bizblasts-insights/internal/safety"
)

func testEngine(gw gateway.Gateway, budget *safety.QueryBudget) *analytics.Engine {
	return analytics.NewEngine(analytics.Deps{
		Gateway: gw,
		Budget:  budget,
		Config: config.AnalyticsConfig{
			DefaultWindowDays:   30,
			ForecastHistoryDays: 90,
			ChurnRiskThreshold:  60,
			Currency:            "USD",
		},
	}, nil)
}

func seededGateway() *gateway.MemoryGateway {
	gw := gateway.NewMemoryGateway()
	days := 12
	gw.AddCustomerSnapshot(gateway.CustomerSnapshot{
		CustomerID: "c1", TenantID: "t1",
		TotalRevenue: decimal.NewFromInt(900), PurchaseFrequency: 9,
		DaysSinceLastPurchase: &days,
	})
	gw.AddSubscription(gateway.Subscription{
		ID: "s1", TenantID: "t1", CustomerID: "c1", PlanName: "standard",
		Status: gateway.SubscriptionStatusActive, Price: decimal.NewFromInt(50),
		Currency: "USD", Interval: gateway.IntervalMonthly,
		CreatedAt: time.Now().AddDate(0, -6, 0),
	})
	return gw
}

func doRequest(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func TestHealthz(t *testing.T) {
	router := NewRouter(testEngine(seededGateway(), nil), nil)

	rec := doRequest(t, router.Handler(), "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	data := envelope["data"].(map[string]interface{})
	assert.Equal(t, "healthy", data["status"])
}

func TestSegmentsEnvelope(t *testing.T) {
	router := NewRouter(testEngine(seededGateway(), nil), nil)

	rec := doRequest(t, router.Handler(), "/api/v1/tenants/t1/segments")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	envelope := decodeEnvelope(t, rec)
	require.Contains(t, envelope, "data")
	require.Contains(t, envelope, "timestamp")
	data := envelope["data"].(map[string]interface{})
	assert.Len(t, data["assignments"], 1)
}

func TestTenantIsolationThroughRoutes(t *testing.T) {
	router := NewRouter(testEngine(seededGateway(), nil), nil)

	rec := doRequest(t, router.Handler(), "/api/v1/tenants/other-tenant/segments")

	assert.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	data := envelope["data"].(map[string]interface{})
	assert.Empty(t, data["assignments"])
}

func TestChurnThresholdValidation(t *testing.T) {
	router := NewRouter(testEngine(seededGateway(), nil), nil)

	rec := doRequest(t, router.Handler(), "/api/v1/tenants/t1/churn?threshold=nope")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	envelope := decodeEnvelope(t, rec)
	errObj := envelope["error"].(map[string]interface{})
	assert.Equal(t, "BAD_REQUEST", errObj["code"])
}

func TestBudgetViolationMapsTo422(t *testing.T) {
	gw := seededGateway()
	days := 5
	gw.AddCustomerSnapshot(gateway.CustomerSnapshot{
		CustomerID: "c2", TenantID: "t1",
		TotalRevenue: decimal.NewFromInt(100), PurchaseFrequency: 2,
		DaysSinceLastPurchase: &days,
	})

	// Budget of one row; the tenant has two snapshots.
	router := NewRouter(testEngine(gw, safety.NewQueryBudget(1, nil)), nil)

	rec := doRequest(t, router.Handler(), "/api/v1/tenants/t1/segments")

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	envelope := decodeEnvelope(t, rec)
	errObj := envelope["error"].(map[string]interface{})
	assert.Equal(t, "QUERY_BUDGET_EXCEEDED", errObj["code"])
	assert.Contains(t, errObj["details"], "narrow the date range")
}

func TestForecastRoute(t *testing.T) {
	router := NewRouter(testEngine(seededGateway(), nil), nil)

	rec := doRequest(t, router.Handler(), "/api/v1/tenants/t1/forecast?days=14")

	assert.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	data := envelope["data"].(map[string]interface{})
	assert.Equal(t, float64(14), data["days_ahead"])
	assert.Equal(t, "low", data["confidence"])
}

func TestAnomaliesRejectsUnknownMetric(t *testing.T) {
	router := NewRouter(testEngine(seededGateway(), nil), nil)

	rec := doRequest(t, router.Handler(), "/api/v1/tenants/t1/anomalies?metric=weather")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMRRRoutes(t *testing.T) {
	router := NewRouter(testEngine(seededGateway(), nil), nil)

	rec := doRequest(t, router.Handler(), "/api/v1/tenants/t1/mrr")
	assert.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	data := envelope["data"].(map[string]interface{})
	assert.Equal(t, "50", data["amount"])
	assert.Equal(t, float64(1), data["active_subscriptions"])

	rec = doRequest(t, router.Handler(), "/api/v1/tenants/t1/mrr/growth?period=30d")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router.Handler(), "/api/v1/tenants/t1/mrr/growth?period=bogus")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router.Handler(), "/api/v1/tenants/t1/subscriptions/health")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOperationsRoute(t *testing.T) {
	router := NewRouter(testEngine(seededGateway(), nil), nil)

	rec := doRequest(t, router.Handler(), "/api/v1/tenants/t1/operations?days=14")

	assert.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	data := envelope["data"].(map[string]interface{})
	require.Contains(t, data, "bookings")
	require.Contains(t, data, "inventory")
}

func TestRouteNotFound(t *testing.T) {
	router := NewRouter(testEngine(seededGateway(), nil), nil)

	rec := doRequest(t, router.Handler(), "/api/v1/tenants/t1/nope")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	envelope := decodeEnvelope(t, rec)
	errObj := envelope["error"].(map[string]interface{})
	assert.Equal(t, "NOT_FOUND", errObj["code"])
}

func TestRequestIDHonored(t *testing.T) {
	router := NewRouter(testEngine(seededGateway(), nil), nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "trace-123")
	rec := httptest.NewRecorder()
	router.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "trace-123", rec.Header().Get("X-Request-ID"))
}
