// server is the insights API binary. It serves tenant-scoped business
// analytics (segmentation, churn risk, forecasts, anomalies, MRR) over HTTP,
// reading from the platform's transactional store through the tenant data
// gateway.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/brianlane/bizblasts-insights/internal/analytics"
	"github.com/brianlane/bizblasts-insights/internal/api"
	"github.com/brianlane/bizblasts-insights/internal/config"
	"github.com/brianlane/bizblasts-insights/internal/gateway"
	"github.com/brianlane/bizblasts-insights/internal/httpx"
	"github.com/brianlane/bizblasts-insights/internal/logging"
	"github.com/brianlane/bizblasts-insights/internal/safety"
)

func main() {
	var (
		addr       = flag.String("addr", "", "listen address (overrides configured host:port)")
		configPath = flag.String("config", "", "optional YAML config file")
	)
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(logging.ParseLevel(cfg.Logging.Level))

	gw, closeGateway, err := openGateway(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to open data gateway: %v", err)
	}
	defer closeGateway()

	cache, closeCache := openCache(cfg, logger)
	defer closeCache()

	engine := analytics.NewEngine(analytics.Deps{
		Gateway:       gw,
		Budget:        safety.NewQueryBudget(cfg.Safety.MaxRecords, logger),
		Cache:         cache,
		Config:        cfg.Analytics,
		CacheTTL:      cfg.Cache.DefaultTTL,
		SlowThreshold: cfg.Safety.SlowQueryWarning,
		Logger:        logger,
	}, rateProvider(cfg, logger))

	listen := *addr
	if listen == "" {
		listen = fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	}

	server := &http.Server{
		Addr:         listen,
		Handler:      api.NewRouter(engine, logger).Handler(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		logger.Info("insights server listening", "addr", listen, "driver", cfg.Database.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err.Error())
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err.Error())
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// openGateway selects the tenant data gateway implementation. The memory
// driver carries a small demo dataset so the server is explorable without a
// database.
func openGateway(cfg *config.Config, logger logging.Logger) (gateway.Gateway, func(), error) {
	switch cfg.Database.Driver {
	case "postgres", "sqlite3":
		gw, err := gateway.OpenSQLGateway(cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			return nil, nil, err
		}
		return gw, func() {
			if err := gw.Close(); err != nil {
				logger.Warn("closing gateway", "error", err.Error())
			}
		}, nil
	default:
		logger.Info("using in-memory demo gateway")
		return demoGateway(), func() {}, nil
	}
}

func openCache(cfg *config.Config, logger logging.Logger) (safety.Cache, func()) {
	switch cfg.Cache.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		return safety.NewRedisCache(client, logger), func() {
			if err := client.Close(); err != nil {
				logger.Warn("closing redis client", "error", err.Error())
			}
		}
	case "none":
		return safety.NewNoopCache(), func() {}
	default:
		cache := safety.NewMemoryCache(safety.MemoryCacheConfig{
			MaxItems:        cfg.Cache.MaxItems,
			DefaultTTL:      cfg.Cache.DefaultTTL,
			CleanupInterval: cfg.Cache.CleanupInterval,
		})
		return cache, cache.Close
	}
}

func rateProvider(cfg *config.Config, logger logging.Logger) analytics.RateProvider {
	if cfg.Upstream.RateServiceURL == "" {
		return nil
	}
	client := httpx.NewClient(cfg.Upstream, logger)
	return analytics.NewHTTPRateProvider(client, cfg.Upstream.RateServiceURL)
}

// demoGateway seeds a single demo tenant with enough history to exercise
// every analytics route.
func demoGateway() *gateway.MemoryGateway {
	gw := gateway.NewMemoryGateway()
	now := time.Now().UTC()
	tenant := "demo"

	customers := []struct {
		id        string
		revenue   int64
		frequency int
		daysSince int
	}{
		{"cust-ava", 4200, 14, 6},
		{"cust-ben", 2650, 9, 21},
		{"cust-cari", 1800, 7, 48},
		{"cust-dion", 950, 4, 95},
		{"cust-ella", 430, 2, 160},
		{"cust-finn", 120, 1, 240},
	}
	for _, c := range customers {
		days := c.daysSince
		first := now.AddDate(0, 0, -360)
		last := now.AddDate(0, 0, -c.daysSince)
		gw.AddCustomerSnapshot(gateway.CustomerSnapshot{
			CustomerID:            c.id,
			TenantID:              tenant,
			TotalRevenue:          decimal.NewFromInt(c.revenue),
			PurchaseFrequency:     c.frequency,
			DaysSinceLastPurchase: &days,
			FirstPurchaseAt:       &first,
			LastPurchaseAt:        &last,
		})
	}

	for i := 0; i < 90; i++ {
		day := now.AddDate(0, 0, -i)
		gw.AddPayment(gateway.Payment{
			ID:         fmt.Sprintf("pay-%d", i),
			TenantID:   tenant,
			CustomerID: customers[i%len(customers)].id,
			Status:     gateway.PaymentStatusCompleted,
			PaidAt:     day,
			Amount:     decimal.NewFromInt(int64(80 + i%40)),
			Currency:   "USD",
		})
		status := gateway.BookingStatusCompleted
		if i%11 == 0 {
			status = gateway.BookingStatusCancelled
		}
		gw.AddBooking(gateway.Booking{
			ID:          fmt.Sprintf("book-%d", i),
			TenantID:    tenant,
			CustomerID:  customers[i%len(customers)].id,
			ServiceName: "standard-service",
			Status:      status,
			ScheduledAt: day,
			Amount:      decimal.NewFromInt(90),
		})
		gw.AddInventoryAdjustment(gateway.InventoryAdjustment{
			ID:         fmt.Sprintf("inv-%d", i),
			TenantID:   tenant,
			ProductID:  fmt.Sprintf("prod-%d", i%3),
			Delta:      -(1 + i%3),
			Reason:     "sale",
			OccurredAt: day,
		})
	}

	plans := []struct {
		id       string
		price    int64
		interval string
		ageDays  int
	}{
		{"sub-ava", 120, gateway.IntervalMonthly, 300},
		{"sub-ben", 40, gateway.IntervalWeekly, 200},
		{"sub-cari", 300, gateway.IntervalQuarterly, 150},
		{"sub-dion", 960, gateway.IntervalYearly, 45},
	}
	for i, p := range plans {
		gw.AddSubscription(gateway.Subscription{
			ID:         p.id,
			TenantID:   tenant,
			CustomerID: customers[i].id,
			PlanName:   "plan-" + p.interval,
			Status:     gateway.SubscriptionStatusActive,
			Price:      decimal.NewFromInt(p.price),
			Currency:   "USD",
			Interval:   p.interval,
			CreatedAt:  now.AddDate(0, 0, -p.ageDays),
		})
	}
	gw.AddSubscriptionEvent(gateway.SubscriptionEvent{
		ID:             "evt-1",
		TenantID:       tenant,
		SubscriptionID: "sub-dion",
		CustomerID:     "cust-dion",
		Kind:           gateway.EventPaymentFailure,
		OccurredAt:     now.AddDate(0, 0, -12),
	})

	return gw
}
