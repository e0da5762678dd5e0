package safety

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/brianlane/bizblasts-insights/internal/logging"
)

// MonitorStats exposes the monitor's counters.
type MonitorStats struct {
	Queries     int64 `json:"queries"`
	SlowQueries int64 `json:"slow_queries"`
	CacheHits   int64 `json:"cache_hits"`
	CacheMisses int64 `json:"cache_misses"`
}

// QueryMonitor times analytics computations, logs the slow ones, and caches
// results best-effort. Every analytics component holds one, namespaced by
// tenant and component so cross-tenant cache interference is structurally
// impossible. Monitoring is a side effect: it never alters results.
type QueryMonitor struct {
	component     string
	tenantID      string
	cache         Cache
	slowThreshold time.Duration
	logger        logging.Logger

	mu    sync.Mutex
	stats MonitorStats
}

// NewQueryMonitor creates a monitor for one tenant-scoped component.
func NewQueryMonitor(component, tenantID string, cache Cache, slowThreshold time.Duration, logger logging.Logger) *QueryMonitor {
	if cache == nil {
		cache = NewNoopCache()
	}
	if logger == nil {
		logger = logging.NewNoop()
	}
	if slowThreshold <= 0 {
		slowThreshold = 2 * time.Second
	}
	return &QueryMonitor{
		component:     component,
		tenantID:      tenantID,
		cache:         cache,
		slowThreshold: slowThreshold,
		logger:        logger.WithComponent(component),
	}
}

// Stats returns a copy of the monitor counters.
func (m *QueryMonitor) Stats() MonitorStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// cacheKey namespaces a computation key by tenant and component.
func (m *QueryMonitor) cacheKey(key string) string {
	return fmt.Sprintf("%s:%s:%s", m.tenantID, m.component, key)
}

// record updates counters and logs slow executions.
func (m *QueryMonitor) record(ctx context.Context, name string, threshold, elapsed time.Duration) {
	m.mu.Lock()
	m.stats.Queries++
	slow := elapsed > threshold
	if slow {
		m.stats.SlowQueries++
	}
	m.mu.Unlock()

	if slow {
		m.logger.WarnContext(ctx, "slow query",
			"name", name,
			"tenant_id", m.tenantID,
			"elapsed_ms", elapsed.Milliseconds(),
			"threshold_ms", threshold.Milliseconds(),
		)
	}
}

func (m *QueryMonitor) recordCacheHit() {
	m.mu.Lock()
	m.stats.CacheHits++
	m.mu.Unlock()
}

func (m *QueryMonitor) recordCacheMiss() {
	m.mu.Lock()
	m.stats.CacheMisses++
	m.mu.Unlock()
}

// Timed measures fn's wall-clock duration with the monitor's default slow
// threshold and returns its result unchanged.
func Timed[T any](ctx context.Context, m *QueryMonitor, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	return TimedThreshold(ctx, m, name, m.slowThreshold, fn)
}

// TimedThreshold is Timed with an explicit slow threshold.
func TimedThreshold[T any](ctx context.Context, m *QueryMonitor, name string, threshold time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	start := time.Now()
	result, err := fn(ctx)
	m.record(ctx, name, threshold, time.Since(start))
	return result, err
}

// Cached returns the cached result for key, or computes it via Timed and
// stores it with the given TTL. Cache reads and writes are best-effort:
// backend unavailability falls through to direct computation, and a corrupt
// entry is dropped and recomputed.
func Cached[T any](ctx context.Context, m *QueryMonitor, key string, ttl time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	namespaced := m.cacheKey(key)

	if data, ok := m.cache.Get(ctx, namespaced); ok {
		var cached T
		if err := json.Unmarshal(data, &cached); err == nil {
			m.recordCacheHit()
			return cached, nil
		}
		// Corrupt entry: drop it and recompute
		_ = m.cache.Delete(ctx, namespaced)
	}
	m.recordCacheMiss()

	result, err := Timed(ctx, m, key, fn)
	if err != nil {
		return result, err
	}

	if data, marshalErr := json.Marshal(result); marshalErr == nil {
		_ = m.cache.Set(ctx, namespaced, data, ttl)
	}

	return result, nil
}
