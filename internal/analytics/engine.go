package analytics

import "sync"

// Engine hands out per-tenant analytics components over one shared set of
// collaborators. Components are memoized per tenant so their monitor
// counters accumulate across requests.
type Engine struct {
	deps  Deps
	rates RateProvider

	mu         sync.Mutex
	lifecycles map[string]*Lifecycle
	churns     map[string]*Churn
	forecasts  map[string]*Forecast
	mrrs       map[string]*MRR
	operations map[string]*Operations
}

// NewEngine builds an engine over shared collaborators. A nil rate provider
// falls back to static 1:1 conversion.
func NewEngine(deps Deps, rates RateProvider) *Engine {
	return &Engine{
		deps:       deps,
		rates:      rates,
		lifecycles: make(map[string]*Lifecycle),
		churns:     make(map[string]*Churn),
		forecasts:  make(map[string]*Forecast),
		mrrs:       make(map[string]*MRR),
		operations: make(map[string]*Operations),
	}
}

// Lifecycle returns the tenant's lifecycle component.
func (e *Engine) Lifecycle(tenantID string) *Lifecycle {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.lifecycles[tenantID]; ok {
		return c
	}
	c := NewLifecycle(tenantID, e.deps)
	e.lifecycles[tenantID] = c
	return c
}

// Churn returns the tenant's churn component.
func (e *Engine) Churn(tenantID string) *Churn {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.churns[tenantID]; ok {
		return c
	}
	c := NewChurn(tenantID, e.deps)
	e.churns[tenantID] = c
	return c
}

// Forecast returns the tenant's forecasting component.
func (e *Engine) Forecast(tenantID string) *Forecast {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.forecasts[tenantID]; ok {
		return c
	}
	c := NewForecast(tenantID, e.deps)
	e.forecasts[tenantID] = c
	return c
}

// MRR returns the tenant's MRR component.
func (e *Engine) MRR(tenantID string) *MRR {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.mrrs[tenantID]; ok {
		return c
	}
	c := NewMRR(tenantID, e.deps, e.rates)
	e.mrrs[tenantID] = c
	return c
}

// Operations returns the tenant's operations component.
func (e *Engine) Operations(tenantID string) *Operations {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.operations[tenantID]; ok {
		return c
	}
	c := NewOperations(tenantID, e.deps)
	e.operations[tenantID] = c
	return c
}
