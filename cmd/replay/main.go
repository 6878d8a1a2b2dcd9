// Package main replays a recorded event fixture through the decision core
// against in-memory storage and prints the resulting performance report.
// Useful for tuning strategy configs against captured streams without a
// live feed or database.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"sync/atomic"

	"copy-trader-lab/internal/arbiter"
	"copy-trader-lab/internal/cache"
	"copy-trader-lab/internal/domain"
	"copy-trader-lab/internal/engine"
	"copy-trader-lab/internal/exits"
	"copy-trader-lab/internal/ledger"
	"copy-trader-lab/internal/pricing"
	"copy-trader-lab/internal/risk"
	"copy-trader-lab/internal/storage/memory"
	"copy-trader-lab/internal/strategy"
)

// fixture is the replay input file: the tracked wallets, the final token
// prices used for exit evaluation, and the recorded event stream.
type fixture struct {
	Wallets []fixtureWallet    `json:"wallets"`
	Prices  map[string]float64 `json:"prices"`
	Events  []fixtureEvent     `json:"events"`
}

type fixtureWallet struct {
	Address     string  `json:"address"`
	Chain       string  `json:"chain"`
	WinRate     float64 `json:"win_rate"`
	TotalPnLUSD float64 `json:"total_pnl_usd"`
	TradeCount  int     `json:"trade_count"`
	Status      string  `json:"status"`
}

type fixtureEvent struct {
	Wallet       string  `json:"wallet"`
	Chain        string  `json:"chain"`
	Token        string  `json:"token"`
	Symbol       string  `json:"symbol"`
	Action       string  `json:"action"`
	Amount       float64 `json:"amount"`
	PriceUSD     float64 `json:"price_usd"`
	ValueUSD     float64 `json:"value_usd"`
	LiquidityUSD float64 `json:"liquidity_usd"`
	TimestampMs  int64   `json:"timestamp_ms"`
	TxHash       string  `json:"tx_hash"`
}

type report struct {
	EventsReplayed int                          `json:"events_replayed"`
	Opened         int                          `json:"opened"`
	ExitCycle      exits.CycleResult            `json:"exit_cycle"`
	Performance    []domain.StrategyPerformance `json:"performance"`
	Risk           domain.RiskStatus            `json:"risk"`
}

func main() {
	fixturePath := flag.String("fixture", "", "Path to the replay fixture JSON (required)")
	startingCapital := flag.Float64("starting-capital", 100_000, "Starting paper capital in USD")
	adaptive := flag.Bool("adaptive", false, "Enable performance-adaptive arbitration")
	batchSize := flag.Int("batch-size", 100, "Events per ingestion batch, exits run between batches")
	flag.Parse()

	logger := log.New(os.Stderr, "[replay] ", log.LstdFlags)

	if *fixturePath == "" {
		logger.Fatal("--fixture is required")
	}

	fix, err := loadFixture(*fixturePath)
	if err != nil {
		logger.Fatalf("Failed to load fixture: %v", err)
	}

	ctx := context.Background()
	rep, err := replay(ctx, fix, *startingCapital, *adaptive, *batchSize, logger)
	if err != nil {
		logger.Fatalf("Replay failed: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		logger.Fatalf("Failed to encode report: %v", err)
	}
}

func loadFixture(path string) (*fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fix fixture
	if err := json.Unmarshal(data, &fix); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(fix.Events) == 0 {
		return nil, fmt.Errorf("fixture %s has no events", path)
	}
	return &fix, nil
}

func replay(ctx context.Context, fix *fixture, startingCapital float64, adaptive bool, batchSize int, logger *log.Logger) (*report, error) {
	positions := memory.NewPositionStore()
	wallets := memory.NewWalletStore()
	counters := memory.NewCounterStore()
	snapshots := memory.NewSnapshotStore()

	for _, fw := range fix.Wallets {
		status := domain.WalletStatus(fw.Status)
		if status == "" {
			status = domain.WalletStatusActive
		}
		w := &domain.Wallet{
			Address:     fw.Address,
			Chain:       fw.Chain,
			WinRate:     fw.WinRate,
			TotalPnLUSD: fw.TotalPnLUSD,
			TradeCount:  fw.TradeCount,
			Status:      status,
		}
		if err := wallets.Upsert(ctx, w); err != nil {
			return nil, fmt.Errorf("seed wallet %s: %w", fw.Address, err)
		}
	}

	resolver := pricing.NewResolver(pricing.NewStaticSource(fix.Prices), logger)

	configs := strategy.DefaultConfigs()
	window := int64(30 * 60 * 1000)
	for _, cfg := range configs {
		if cfg.BuyerWindowMs != nil && *cfg.BuyerWindowMs > window {
			window = *cfg.BuyerWindowMs
		}
	}
	trades := cache.NewRecentTradeTracker(4096, window)
	balances := cache.NewBalanceCache(256, 5*60*1000, nil)

	registry, err := strategy.Registry(configs, strategy.Deps{Balances: balances, Trades: trades})
	if err != nil {
		return nil, err
	}

	book := ledger.New(positions, resolver, 16_384, logger)
	arb := arbiter.New(registry, logger)
	var adaptiveArb *arbiter.Adaptive
	if adaptive {
		allocations := make(map[string]float64, len(configs))
		for _, cfg := range configs {
			allocations[cfg.Variant] = cfg.AllocationUSD
		}
		adaptiveArb = arbiter.NewAdaptive(arb, func(ctx context.Context, name string) (domain.StrategyPerformance, error) {
			closed, err := positions.GetClosed(ctx, name)
			if err != nil {
				return domain.StrategyPerformance{}, err
			}
			return strategy.ComputePerformance(name, closed, allocations[name]), nil
		}, logger)
	}

	// The replay clock follows the stream: it advances to the newest event
	// timestamp seen so far, so hold-time rules (staleness, time decay, the
	// daily-loss boundary) judge positions against fixture time rather than
	// closing every historical position on the first cycle.
	var clockMs atomic.Int64
	clock := func() int64 { return clockMs.Load() }

	gate := risk.NewGate(domain.DefaultRiskLimits())
	exitCfg := exits.DefaultConfig()
	exitCfg.Now = clock
	exitEval := exits.New(exitCfg, positions, registry, trades, resolver, book, logger)

	eng := engine.New(engine.Options{
		StartingCapitalUSD: startingCapital,
		Configs:            configs,
		Positions:          positions,
		Wallets:            wallets,
		Counters:           counters,
		Snapshots:          snapshots,
		Arbiter:            arb,
		Adaptive:           adaptiveArb,
		Gate:               gate,
		Ledger:             book,
		Exits:              exitEval,
		Trades:             trades,
		Logger:             logger,
		Now:                clock,
	})

	events := make([]*domain.TransactionEvent, 0, len(fix.Events))
	for _, fe := range fix.Events {
		events = append(events, &domain.TransactionEvent{
			WalletAddress: fe.Wallet,
			Chain:         fe.Chain,
			TokenAddress:  fe.Token,
			TokenSymbol:   fe.Symbol,
			Action:        domain.Action(fe.Action),
			Amount:        fe.Amount,
			PriceUSD:      fe.PriceUSD,
			ValueUSD:      fe.ValueUSD,
			LiquidityUSD:  fe.LiquidityUSD,
			TimestampMs:   fe.TimestampMs,
			TxHash:        fe.TxHash,
		})
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].TimestampMs < events[j].TimestampMs })

	rep := &report{EventsReplayed: len(events)}
	for start := 0; start < len(events); start += batchSize {
		end := start + batchSize
		if end > len(events) {
			end = len(events)
		}
		// Events are sorted, so the batch's last timestamp is its newest.
		clockMs.Store(events[end-1].TimestampMs)
		opened, err := eng.ProcessEvents(ctx, events[start:end])
		if err != nil {
			return nil, fmt.Errorf("replay batch at %d: %w", start, err)
		}
		rep.Opened += opened

		res, err := eng.ManagePositions(ctx)
		if err != nil {
			return nil, fmt.Errorf("exit cycle at %d: %w", start, err)
		}
		rep.ExitCycle.Evaluated += res.Evaluated
		rep.ExitCycle.Closed += res.Closed
		rep.ExitCycle.Partials += res.Partials
		rep.ExitCycle.Errors += res.Errors
	}

	perfs, err := eng.Performance(ctx, "")
	if err != nil {
		return nil, err
	}
	rep.Performance = perfs

	status, err := eng.RiskStatus(ctx)
	if err != nil {
		return nil, err
	}
	rep.Risk = status

	return rep, nil
}
