// Package main runs the copy-trading engine as a long-lived service:
// - Feed (continuous): WebSocket stream of wallet transaction events
// - Ingestion (scheduled): drains the feed buffer through the decision core
// - Management (scheduled): exit evaluation over the open book
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"copy-trader-lab/internal/arbiter"
	"copy-trader-lab/internal/cache"
	"copy-trader-lab/internal/domain"
	"copy-trader-lab/internal/engine"
	"copy-trader-lab/internal/exits"
	"copy-trader-lab/internal/feed"
	"copy-trader-lab/internal/ledger"
	"copy-trader-lab/internal/observability"
	"copy-trader-lab/internal/pricing"
	"copy-trader-lab/internal/risk"
	"copy-trader-lab/internal/scheduler"
	"copy-trader-lab/internal/storage"
	chstore "copy-trader-lab/internal/storage/clickhouse"
	"copy-trader-lab/internal/storage/memory"
	"copy-trader-lab/internal/storage/migrations"
	pgstore "copy-trader-lab/internal/storage/postgres"
	"copy-trader-lab/internal/strategy"
)

// allStores holds all storage implementations.
type allStores struct {
	positions storage.PositionStore
	wallets   storage.WalletStore
	counters  storage.CounterStore
	snapshots storage.SnapshotStore
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	feedEndpoint := flag.String("feed-endpoint", os.Getenv("FEED_WS_ENDPOINT"), "Watcher hub WebSocket endpoint")
	priceEndpoint := flag.String("price-endpoint", os.Getenv("PRICE_ENDPOINT"), "Price service HTTP endpoint")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	startingCapital := flag.Float64("starting-capital", 100_000, "Starting paper capital in USD")
	adaptive := flag.Bool("adaptive", false, "Enable performance-adaptive arbitration")
	ingestInterval := flag.Duration("ingest-interval", 10*time.Second, "Ingestion cycle interval")
	manageInterval := flag.Duration("manage-interval", 30*time.Second, "Position management cycle interval")
	httpAddr := flag.String("http-addr", ":9090", "HTTP address for health/metrics/status")

	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if *feedEndpoint == "" {
		logger.Fatal("--feed-endpoint is required")
	}
	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	metrics := observability.NewMetrics("")

	// Pricing: live HTTP source behind a TTL cache, falling back through
	// event-derived prices and chain floors.
	var priceSource pricing.Source
	if *priceEndpoint != "" {
		priceSource = pricing.NewCachedSource(pricing.NewHTTPSource(*priceEndpoint), 2048, 30*time.Second)
	} else {
		logger.Println("No price endpoint configured, relying on event prices and chain floors")
		priceSource = pricing.NewStaticSource(nil)
	}
	resolver := pricing.NewResolver(priceSource, log.New(os.Stdout, "[pricing] ", log.LstdFlags))

	// Shared stateful caches for the evaluators. The trade tracker window is
	// sized from the widest strategy buyer window.
	configs := strategy.DefaultConfigs()
	trades := cache.NewRecentTradeTracker(4096, buyerWindowMs(configs))
	// TODO: wire a balance RPC source; until then the whale balance gate rejects.
	balances := cache.NewBalanceCache(2048, 5*60*1000, nil)

	registry, err := strategy.Registry(configs, strategy.Deps{Balances: balances, Trades: trades})
	if err != nil {
		logger.Fatalf("Failed to build strategy registry: %v", err)
	}

	book := ledger.New(stores.positions, resolver, 16_384, log.New(os.Stdout, "[ledger] ", log.LstdFlags))
	arb := arbiter.New(registry, log.New(os.Stdout, "[arbiter] ", log.LstdFlags))
	gate := risk.NewGate(domain.DefaultRiskLimits())
	exitEval := exits.New(exits.DefaultConfig(), stores.positions, registry, trades, resolver, book,
		log.New(os.Stdout, "[exits] ", log.LstdFlags))

	var adaptiveArb *arbiter.Adaptive
	if *adaptive {
		adaptiveArb = arbiter.NewAdaptive(arb, performanceFunc(stores.positions, configs),
			log.New(os.Stdout, "[arbiter] ", log.LstdFlags))
	}

	eng := engine.New(engine.Options{
		StartingCapitalUSD: *startingCapital,
		Configs:            configs,
		Positions:          stores.positions,
		Wallets:            stores.wallets,
		Counters:           stores.counters,
		Snapshots:          stores.snapshots,
		Arbiter:            arb,
		Adaptive:           adaptiveArb,
		Gate:               gate,
		Ledger:             book,
		Exits:              exitEval,
		Trades:             trades,
		Metrics:            metrics,
		Logger:             logger,
	})

	// Feed: stream into a buffer, drained by the ingestion cycle.
	source, err := feed.NewWSSource(ctx, *feedEndpoint, nil, log.New(os.Stdout, "[feed] ", log.LstdFlags))
	if err != nil {
		logger.Fatalf("Failed to connect feed: %v", err)
	}
	defer source.Close()

	eventCh, err := source.Subscribe(ctx)
	if err != nil {
		logger.Fatalf("Failed to subscribe feed: %v", err)
	}
	buffer := feed.NewBuffer(65_536)
	go feed.Pump(ctx, eventCh, buffer)

	// Scheduled cycles: skip, never queue, when the previous run is live.
	// instrument wraps a cycle body with run/duration/skip counters; skips
	// accumulate in the job while a run is in flight, so the wrapper reads
	// the delta on each completion.
	instrument := func(job *scheduler.Job, run scheduler.CycleFunc) scheduler.CycleFunc {
		var lastSkipped int64
		return func(ctx context.Context) error {
			started := time.Now()
			err := run(ctx)
			metrics.CycleDuration.WithLabelValues(job.Name()).Observe(time.Since(started).Seconds())
			status := "ok"
			if err != nil {
				status = "error"
			}
			metrics.CycleRunsTotal.WithLabelValues(job.Name(), status).Inc()
			if _, skipped := job.Stats(); skipped > lastSkipped {
				metrics.CyclesSkipped.WithLabelValues(job.Name()).Add(float64(skipped - lastSkipped))
				lastSkipped = skipped
			}
			return err
		}
	}

	var lastReconnects int64
	ingestJob := scheduler.NewJob("ingest")
	manageJob := scheduler.NewJob("manage")
	runner := scheduler.NewRunner([]scheduler.Task{
		{
			Job:      ingestJob,
			Interval: *ingestInterval,
			Run: instrument(ingestJob, func(ctx context.Context) error {
				events := buffer.Drain()
				metrics.FeedBufferSize.Set(float64(buffer.Len()))
				if rc := source.Reconnects(); rc > lastReconnects {
					metrics.FeedReconnects.Add(float64(rc - lastReconnects))
					lastReconnects = rc
				}
				if len(events) == 0 {
					return nil
				}
				opened, err := eng.ProcessEvents(ctx, events)
				if err != nil {
					return err
				}
				metrics.LastIngestCycle.SetToCurrentTime()
				logger.Printf("ingested %d events, opened %d positions", len(events), opened)
				return nil
			}),
		},
		{
			Job:      manageJob,
			Interval: *manageInterval,
			Run: instrument(manageJob, func(ctx context.Context) error {
				res, err := eng.ManagePositions(ctx)
				if err != nil {
					return err
				}
				metrics.LastManageCycle.SetToCurrentTime()
				if open, err := stores.positions.GetOpen(ctx, ""); err == nil {
					metrics.OpenPositions.Set(float64(len(open)))
				}
				if res.Closed > 0 || res.Partials > 0 {
					logger.Printf("managed %d positions: %d closed, %d partial exits, %d errors",
						res.Evaluated, res.Closed, res.Partials, res.Errors)
				}
				return nil
			}),
		},
	}, logger)

	// HTTP surface: health, metrics, status, controls.
	go startHTTPServer(*httpAddr, eng, ingestJob, manageJob, source, buffer, logger)

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		}
	}()

	if err := runner.Run(ctx); err != nil && err != context.Canceled {
		logger.Fatalf("Server error: %v", err)
	}
	logger.Println("Shutdown complete")
}

// createStores creates all required stores and applies migrations.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			positions: memory.NewPositionStore(),
			wallets:   memory.NewWalletStore(),
			counters:  memory.NewCounterStore(),
			snapshots: memory.NewSnapshotStore(),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	chConn, err := chstore.NewConn(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	if err := migrations.RunClickhouseMigrations(ctx, chConn); err != nil {
		chConn.Close()
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	stores := &allStores{
		positions: pgstore.NewPositionStore(pool),
		wallets:   pgstore.NewWalletStore(pool),
		counters:  pgstore.NewCounterStore(pool),
		snapshots: chstore.NewSnapshotStore(chConn),
	}
	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return stores, cleanup, nil
}

// startHTTPServer serves health, metrics, status and operator controls.
func startHTTPServer(addr string, eng *engine.Engine, ingestJob, manageJob *scheduler.Job, source *feed.WSSource, buffer *feed.Buffer, logger *log.Logger) {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		ingestRuns, ingestSkipped := ingestJob.Stats()
		manageRuns, manageSkipped := manageJob.Stats()

		status, err := eng.RiskStatus(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		resp := map[string]any{
			"status":          "running",
			"risk":            status,
			"buffered_events": buffer.Len(),
			"dropped_events":  buffer.Dropped(),
			"feed_reconnects": source.Reconnects(),
			"ingest_cycles":   ingestRuns,
			"ingest_skipped":  ingestSkipped,
			"manage_cycles":   manageRuns,
			"manage_skipped":  manageSkipped,
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})

	mux.HandleFunc("/performance", func(w http.ResponseWriter, r *http.Request) {
		perfs, err := eng.Performance(r.Context(), r.URL.Query().Get("strategy"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(perfs)
	})

	mux.HandleFunc("/emergency-stop", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}
		on := r.URL.Query().Get("on") != "false"
		eng.SetEmergencyStop(on)
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "emergency stop: %v\n", on)
	})

	mux.HandleFunc("/wallet-status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}
		address := r.URL.Query().Get("address")
		status := domain.WalletStatus(r.URL.Query().Get("status"))
		if address == "" || (status != domain.WalletStatusActive && status != domain.WalletStatusPaused && status != domain.WalletStatusArchived) {
			http.Error(w, "address and status (active|paused|archived) required", http.StatusBadRequest)
			return
		}
		if err := eng.SetWalletStatus(r.Context(), address, status); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Printf("HTTP server error: %v", err)
	}
}

// buyerWindowMs returns the widest configured buyer window, so one shared
// tracker can serve every evaluator.
func buyerWindowMs(configs []domain.StrategyConfig) int64 {
	window := int64(30 * 60 * 1000)
	for _, cfg := range configs {
		if cfg.BuyerWindowMs != nil && *cfg.BuyerWindowMs > window {
			window = *cfg.BuyerWindowMs
		}
	}
	return window
}

// performanceFunc builds the per-strategy lookup the adaptive arbiter scores with.
func performanceFunc(positions storage.PositionStore, configs []domain.StrategyConfig) arbiter.PerformanceFunc {
	allocations := make(map[string]float64, len(configs))
	for _, cfg := range configs {
		allocations[cfg.Variant] = cfg.AllocationUSD
	}
	return func(ctx context.Context, name string) (domain.StrategyPerformance, error) {
		closed, err := positions.GetClosed(ctx, name)
		if err != nil {
			return domain.StrategyPerformance{}, fmt.Errorf("load closed positions for %s: %w", name, err)
		}
		return strategy.ComputePerformance(name, closed, allocations[name]), nil
	}
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
