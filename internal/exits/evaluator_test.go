package exits

import (
	"context"
	"testing"

	"copy-trader-lab/internal/cache"
	"copy-trader-lab/internal/domain"
	"copy-trader-lab/internal/ledger"
	"copy-trader-lab/internal/pricing"
	"copy-trader-lab/internal/storage/memory"
	"copy-trader-lab/internal/strategy"
)

const nowMs = int64(1_700_000_000_000)

type fixture struct {
	eval   *Evaluator
	store  *memory.PositionStore
	trades *cache.RecentTradeTracker
	prices *pricing.StaticSource
	book   *ledger.Ledger
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	store := memory.NewPositionStore()
	trades := cache.NewRecentTradeTracker(64, 60*60*1000)
	source := pricing.NewStaticSource(map[string]float64{})
	resolver := pricing.NewResolver(source, nil)
	book := ledger.New(store, resolver, 128, nil)

	registry, err := strategy.Registry(strategy.DefaultConfigs(), strategy.Deps{
		Balances: cache.NewBalanceCache(16, 60_000, nil),
		Trades:   trades,
	})
	if err != nil {
		t.Fatalf("Registry: %v", err)
	}

	e := New(cfg, store, registry, trades, resolver, book, nil)
	if cfg.Now == nil {
		e.now = func() int64 { return nowMs }
	}
	return &fixture{eval: e, store: store, trades: trades, prices: source, book: book}
}

func (f *fixture) openPosition(t *testing.T, token, wallet string, openedAtMs int64) *domain.Position {
	t.Helper()

	ev := &domain.TransactionEvent{
		WalletAddress: wallet,
		Chain:         domain.ChainSolana,
		TokenAddress:  token,
		TokenSymbol:   "TKN",
		Action:        domain.ActionBuy,
		Amount:        1000,
		ValueUSD:      1000, // entry price 1.0
		TimestampMs:   openedAtMs,
		TxHash:        "tx-" + token + "-" + wallet,
	}
	dec := strategy.TradeDecision{Copy: true, SizeUSD: 1000}
	p, err := f.book.Open(context.Background(), ev, &dec, domain.StrategySmartMoney)
	if err != nil {
		t.Fatalf("open fixture position: %v", err)
	}
	return p
}

func TestCycle_SourceSellOverridesProfit(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	p := f.openPosition(t, "token-1", "wallet-1", nowMs-1000)

	// Price at a 2x tier, which would normally be a partial exit. The
	// source wallet selling takes priority and forces a full close.
	f.prices.Set("token-1", 2.0)
	f.trades.RecordSell("token-1", "wallet-1", nowMs-100)

	res, err := f.eval.Cycle(context.Background())
	if err != nil {
		t.Fatalf("Cycle: %v", err)
	}
	if res.Closed != 1 || res.Partials != 0 {
		t.Fatalf("result = %+v", res)
	}

	stored, _ := f.store.GetByID(context.Background(), p.PositionID)
	if stored.ExitReason != domain.ExitReasonSourceSell {
		t.Errorf("exit reason = %s, want SOURCE_SELL", stored.ExitReason)
	}
}

func TestCycle_StrategyTierPartial(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	p := f.openPosition(t, "token-1", "wallet-1", nowMs-1000)

	f.prices.Set("token-1", 2.0)

	res, err := f.eval.Cycle(context.Background())
	if err != nil {
		t.Fatalf("Cycle: %v", err)
	}
	if res.Partials != 1 || res.Closed != 0 {
		t.Fatalf("result = %+v", res)
	}

	stored, _ := f.store.GetByID(context.Background(), p.PositionID)
	if !stored.IsOpen() {
		t.Fatal("tier exit must leave the position open")
	}
	if stored.Annotation != "tier:2;" {
		t.Errorf("annotation = %q", stored.Annotation)
	}

	// Second cycle at a higher price must not refire the tier.
	f.prices.Set("token-1", 2.5)
	res, err = f.eval.Cycle(context.Background())
	if err != nil {
		t.Fatalf("second Cycle: %v", err)
	}
	if res.Partials != 0 || res.Closed != 0 {
		t.Fatalf("tier refired: %+v", res)
	}
}

func TestCycle_StalenessCloses(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StaleAfterMs = 1000
	f := newFixture(t, cfg)

	p := f.openPosition(t, "token-1", "wallet-1", nowMs-5000)
	f.prices.Set("token-1", 1.01) // within the 5% movement band

	res, err := f.eval.Cycle(context.Background())
	if err != nil {
		t.Fatalf("Cycle: %v", err)
	}
	if res.Closed != 1 {
		t.Fatalf("result = %+v", res)
	}

	stored, _ := f.store.GetByID(context.Background(), p.PositionID)
	if stored.ExitReason != domain.ExitReasonStale {
		t.Errorf("exit reason = %s, want STALE", stored.ExitReason)
	}
}

func TestCycle_TrendReversalCloses(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	p := f.openPosition(t, "token-1", "wallet-1", nowMs-1000)

	f.prices.Set("token-1", 1.05) // no strategy rule fires
	f.trades.RecordSell("token-1", "seller-1", nowMs-500)
	f.trades.RecordSell("token-1", "seller-2", nowMs-400)
	f.trades.RecordSell("token-1", "seller-3", nowMs-300)

	res, err := f.eval.Cycle(context.Background())
	if err != nil {
		t.Fatalf("Cycle: %v", err)
	}
	if res.Closed != 1 {
		t.Fatalf("result = %+v", res)
	}

	stored, _ := f.store.GetByID(context.Background(), p.PositionID)
	if stored.ExitReason != domain.ExitReasonTrendReversal {
		t.Errorf("exit reason = %s, want TREND_REVERSAL", stored.ExitReason)
	}
}

func TestCycle_HoldsWhenNothingFires(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.openPosition(t, "token-1", "wallet-1", nowMs-1000)
	f.prices.Set("token-1", 1.05)

	res, err := f.eval.Cycle(context.Background())
	if err != nil {
		t.Fatalf("Cycle: %v", err)
	}
	if res.Evaluated != 1 || res.Closed != 0 || res.Partials != 0 || res.Errors != 0 {
		t.Fatalf("result = %+v", res)
	}
}

func TestCycle_PeakTracksPrice(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	p := f.openPosition(t, "token-1", "wallet-1", nowMs-1000)

	f.prices.Set("token-1", 1.4)
	if _, err := f.eval.Cycle(context.Background()); err != nil {
		t.Fatalf("Cycle: %v", err)
	}

	stored, _ := f.store.GetByID(context.Background(), p.PositionID)
	if stored.PeakPrice != 1.4 {
		t.Errorf("peak = %v, want 1.4", stored.PeakPrice)
	}
}

func TestCycle_ConfiguredClockDrivesHoldTime(t *testing.T) {
	// A position opened at a historical stream timestamp must be judged
	// against the configured clock, not wall time: with the clock just past
	// the open, neither staleness nor time decay fires even though the
	// timestamps are far in the past by wall-clock standards.
	openedAt := int64(1_600_000_000_000)
	cfg := DefaultConfig()
	cfg.Now = func() int64 { return openedAt + 60_000 }
	f := newFixture(t, cfg)
	f.openPosition(t, "token-1", "wallet-1", openedAt)

	f.prices.Set("token-1", 1.0) // flat, the stale/decay bait
	res, err := f.eval.Cycle(context.Background())
	if err != nil {
		t.Fatalf("Cycle: %v", err)
	}
	if res.Closed != 0 {
		t.Fatalf("fresh position closed under replay clock: %+v", res)
	}

	// Advancing the clock past the horizon closes it as stale.
	cfg.Now = func() int64 { return openedAt + DefaultConfig().StaleAfterMs + 1 }
	f2 := newFixture(t, cfg)
	f2.openPosition(t, "token-1", "wallet-1", openedAt)
	f2.prices.Set("token-1", 1.0)
	res, err = f2.eval.Cycle(context.Background())
	if err != nil {
		t.Fatalf("Cycle: %v", err)
	}
	if res.Closed != 1 {
		t.Fatalf("stale position not closed under advanced clock: %+v", res)
	}
}
