package ledger

import (
	"context"
	"errors"
	"math"
	"testing"

	"copy-trader-lab/internal/domain"
	"copy-trader-lab/internal/pricing"
	"copy-trader-lab/internal/storage/memory"
	"copy-trader-lab/internal/strategy"
)

func newTestLedger(prices map[string]float64) (*Ledger, *memory.PositionStore) {
	store := memory.NewPositionStore()
	resolver := pricing.NewResolver(pricing.NewStaticSource(prices), nil)
	return New(store, resolver, 128, nil), store
}

func testEvent() *domain.TransactionEvent {
	return &domain.TransactionEvent{
		WalletAddress: "wallet-1",
		Chain:         domain.ChainSolana,
		TokenAddress:  "token-1",
		TokenSymbol:   "TKN",
		Action:        domain.ActionBuy,
		Amount:        5000,
		ValueUSD:      5000,
		TimestampMs:   1_700_000_000_000,
		TxHash:        "tx-1",
	}
}

func TestOpen_AmountMatchesEntryValue(t *testing.T) {
	l, _ := newTestLedger(map[string]float64{"token-1": 0.5})

	dec := strategy.TradeDecision{Copy: true, SizeUSD: 1000}
	p, err := l.Open(context.Background(), testEvent(), &dec, domain.StrategySmartMoney)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if p.EntryPrice != 0.5 {
		t.Errorf("entry price = %v, want 0.5", p.EntryPrice)
	}
	if diff := math.Abs(p.Amount*p.EntryPrice - p.EntryValueUSD); diff > 1e-9 {
		t.Errorf("amount*entryPrice differs from entryValue by %g", diff)
	}
	if p.Status != domain.PositionStatusOpen {
		t.Errorf("status = %s", p.Status)
	}
	if p.PeakPrice != p.EntryPrice {
		t.Errorf("peak should start at entry, got %v", p.PeakPrice)
	}
}

func TestOpen_DuplicateEventIsIdempotent(t *testing.T) {
	l, store := newTestLedger(map[string]float64{"token-1": 1})

	dec := strategy.TradeDecision{Copy: true, SizeUSD: 1000}
	if _, err := l.Open(context.Background(), testEvent(), &dec, domain.StrategySmartMoney); err != nil {
		t.Fatalf("first Open: %v", err)
	}

	_, err := l.Open(context.Background(), testEvent(), &dec, domain.StrategySmartMoney)
	if !errors.Is(err, ErrDuplicateEvent) {
		t.Fatalf("second Open err = %v, want ErrDuplicateEvent", err)
	}

	open, err := store.GetOpen(context.Background(), "")
	if err != nil {
		t.Fatalf("GetOpen: %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("duplicate event booked %d positions", len(open))
	}
}

func TestOpen_DuplicateSurvivesCacheEviction(t *testing.T) {
	// Capacity 1 evicts the first key as soon as a second event arrives;
	// the store's unique position id must still absorb the redelivery.
	store := memory.NewPositionStore()
	resolver := pricing.NewResolver(pricing.NewStaticSource(map[string]float64{"token-1": 1, "token-2": 1}), nil)
	l := New(store, resolver, 1, nil)

	dec := strategy.TradeDecision{Copy: true, SizeUSD: 1000}
	if _, err := l.Open(context.Background(), testEvent(), &dec, domain.StrategySmartMoney); err != nil {
		t.Fatalf("first Open: %v", err)
	}

	other := testEvent()
	other.TokenAddress = "token-2"
	other.TxHash = "tx-2"
	if _, err := l.Open(context.Background(), other, &dec, domain.StrategySmartMoney); err != nil {
		t.Fatalf("second Open: %v", err)
	}

	if _, err := l.Open(context.Background(), testEvent(), &dec, domain.StrategySmartMoney); !errors.Is(err, ErrDuplicateEvent) {
		t.Fatalf("evicted duplicate err = %v, want ErrDuplicateEvent", err)
	}
}

func TestOpen_FallsBackToDerivedPrice(t *testing.T) {
	// No source price: entry derives from valueUsd/amount = 1.0.
	l, _ := newTestLedger(nil)

	dec := strategy.TradeDecision{Copy: true, SizeUSD: 1000}
	p, err := l.Open(context.Background(), testEvent(), &dec, domain.StrategySmartMoney)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if p.EntryPrice != 1.0 {
		t.Errorf("entry price = %v, want derived 1.0", p.EntryPrice)
	}
}

func TestApplyExit_PartialReducesAmountAndRecordsTag(t *testing.T) {
	l, store := newTestLedger(map[string]float64{"token-1": 1})

	dec := strategy.TradeDecision{Copy: true, SizeUSD: 1000}
	p, _ := l.Open(context.Background(), testEvent(), &dec, domain.StrategySmartMoney)
	oldAmount := p.Amount

	exit := strategy.ExitDecision{
		Exit:         true,
		SellFraction: 0.5,
		Type:         domain.ExitReasonProfitTier,
		Tag:          "tier:2",
	}
	if err := l.ApplyExit(context.Background(), p, 2.0, exit, 2000); err != nil {
		t.Fatalf("ApplyExit: %v", err)
	}

	if math.Abs(p.Amount-oldAmount*0.5) > 1e-9 {
		t.Errorf("amount = %v, want %v", p.Amount, oldAmount*0.5)
	}
	if math.Abs(p.RealizedUSD-oldAmount*0.5*2.0) > 1e-9 {
		t.Errorf("realized = %v, want %v", p.RealizedUSD, oldAmount*0.5*2.0)
	}
	if p.Annotation != "tier:2;" {
		t.Errorf("annotation = %q", p.Annotation)
	}
	if !p.IsOpen() {
		t.Error("partial exit must leave the position open")
	}

	stored, err := store.GetByID(context.Background(), p.PositionID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Annotation != "tier:2;" {
		t.Errorf("stored annotation = %q", stored.Annotation)
	}
}

func TestApplyExit_FullCloseBooksPnL(t *testing.T) {
	l, _ := newTestLedger(map[string]float64{"token-1": 1})

	dec := strategy.TradeDecision{Copy: true, SizeUSD: 1000}
	p, _ := l.Open(context.Background(), testEvent(), &dec, domain.StrategySmartMoney)

	// Sell half at 2x, then close the rest at 3x.
	partial := strategy.ExitDecision{Exit: true, SellFraction: 0.5, Type: domain.ExitReasonProfitTier, Tag: "tier:2"}
	if err := l.ApplyExit(context.Background(), p, 2.0, partial, 2000); err != nil {
		t.Fatalf("partial: %v", err)
	}
	full := strategy.ExitDecision{Exit: true, SellFraction: 1, Type: domain.ExitReasonTrailingStop}
	if err := l.ApplyExit(context.Background(), p, 3.0, full, 3000); err != nil {
		t.Fatalf("close: %v", err)
	}

	if p.Status != domain.PositionStatusClosed {
		t.Fatalf("status = %s", p.Status)
	}
	// Entry 1000 @ 1.0 = 1000 tokens. Realized 500*2 = 1000; final 500*3 =
	// 1500. PnL = 1000 + 1500 - 1000 = 1500.
	if p.PnLUSD == nil || math.Abs(*p.PnLUSD-1500) > 1e-9 {
		t.Fatalf("pnl = %v, want 1500", p.PnLUSD)
	}
	if p.PnLPct == nil || math.Abs(*p.PnLPct-1.5) > 1e-9 {
		t.Errorf("pnl pct = %v, want 1.5", p.PnLPct)
	}
	if p.Amount != 0 {
		t.Errorf("closed amount = %v", p.Amount)
	}
	if p.ExitReason != domain.ExitReasonTrailingStop {
		t.Errorf("exit reason = %s", p.ExitReason)
	}
	if p.ClosedAtMs == nil || *p.ClosedAtMs != 3000 {
		t.Errorf("closed at = %v", p.ClosedAtMs)
	}
}

func TestApplyExit_RejectsNonPositiveFraction(t *testing.T) {
	l, _ := newTestLedger(map[string]float64{"token-1": 1})

	dec := strategy.TradeDecision{Copy: true, SizeUSD: 1000}
	p, _ := l.Open(context.Background(), testEvent(), &dec, domain.StrategySmartMoney)

	bad := strategy.ExitDecision{Exit: true, SellFraction: 0, Type: domain.ExitReasonStopLoss}
	if err := l.ApplyExit(context.Background(), p, 1.0, bad, 2000); err == nil {
		t.Fatal("zero fraction must error")
	}
}

func TestTouchPeak(t *testing.T) {
	l, store := newTestLedger(map[string]float64{"token-1": 1})

	dec := strategy.TradeDecision{Copy: true, SizeUSD: 1000}
	p, _ := l.Open(context.Background(), testEvent(), &dec, domain.StrategySmartMoney)

	if err := l.TouchPeak(context.Background(), p, 1.4); err != nil {
		t.Fatalf("TouchPeak: %v", err)
	}
	if p.PeakPrice != 1.4 {
		t.Errorf("peak = %v", p.PeakPrice)
	}

	// Lower prices never lower the peak.
	if err := l.TouchPeak(context.Background(), p, 1.1); err != nil {
		t.Fatalf("TouchPeak: %v", err)
	}
	if p.PeakPrice != 1.4 {
		t.Errorf("peak dropped to %v", p.PeakPrice)
	}

	stored, _ := store.GetByID(context.Background(), p.PositionID)
	if stored.PeakPrice != 1.4 {
		t.Errorf("stored peak = %v", stored.PeakPrice)
	}
}
