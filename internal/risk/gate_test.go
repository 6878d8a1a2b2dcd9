package risk

import (
	"testing"

	"copy-trader-lab/internal/domain"
)

func healthyState() *domain.PortfolioState {
	return &domain.PortfolioState{
		StartingCapitalUSD:  100_000,
		CurrentCapitalUSD:   100_000,
		OpenValueByStrategy: map[string]float64{},
		OpenCountByStrategy: map[string]int{},
		OpenValueByToken:    map[string]float64{},
		OpenValueByChain:    map[string]float64{},
	}
}

func proposed() *Proposed {
	return &Proposed{
		Strategy:      domain.StrategySmartMoney,
		TokenAddress:  "token-1",
		Chain:         domain.ChainSolana,
		SizeUSD:       2_000,
		AllocationUSD: 25_000,
	}
}

func TestCheck_ApprovesHealthyTrade(t *testing.T) {
	g := NewGate(domain.DefaultRiskLimits())

	a := g.Check(proposed(), healthyState())
	if !a.Approved {
		t.Fatalf("expected approval, got: %s", a.RejectionReason)
	}
	for _, c := range a.Checks {
		if !c.Passed {
			t.Errorf("approved but check %s failed", c.Name)
		}
	}
	if a.RejectionReason != "" {
		t.Errorf("approved with non-empty reason %q", a.RejectionReason)
	}
}

func TestCheck_RejectsOversizedPosition(t *testing.T) {
	g := NewGate(domain.DefaultRiskLimits())

	p := proposed()
	p.SizeUSD = 15_000 // 10% cap on 100k capital
	a := g.Check(p, healthyState())
	if a.Approved {
		t.Fatal("oversized position must be rejected")
	}
	if a.RejectionReason == "" {
		t.Error("rejection must carry a reason")
	}
}

func TestCheck_RejectsDeepDrawdown(t *testing.T) {
	g := NewGate(domain.DefaultRiskLimits())

	s := healthyState()
	s.CurrentCapitalUSD = 70_000 // 30% drawdown, limit 25%
	if a := g.Check(proposed(), s); a.Approved {
		t.Fatal("drawdown beyond the limit must be rejected")
	}
}

func TestCheck_RejectsDailyLossBreach(t *testing.T) {
	g := NewGate(domain.DefaultRiskLimits())

	s := healthyState()
	s.RealizedTodayUSD = -6_000 // limit is 5% of 100k
	if a := g.Check(proposed(), s); a.Approved {
		t.Fatal("daily loss beyond the limit must be rejected")
	}
}

func TestCheck_RejectsTokenConcentration(t *testing.T) {
	g := NewGate(domain.DefaultRiskLimits())

	s := healthyState()
	s.OpenValueByToken["token-1"] = 14_000 // 15% token cap on 100k
	if a := g.Check(proposed(), s); a.Approved {
		t.Fatal("token exposure beyond the limit must be rejected")
	}
}

func TestCheck_RejectsChainConcentration(t *testing.T) {
	g := NewGate(domain.DefaultRiskLimits())

	s := healthyState()
	s.OpenValueByChain[domain.ChainSolana] = 49_000 // 50% chain cap on 100k
	if a := g.Check(proposed(), s); a.Approved {
		t.Fatal("chain exposure beyond the limit must be rejected")
	}
}

func TestCheck_EmergencyStopRejectsEverything(t *testing.T) {
	limits := domain.DefaultRiskLimits()
	limits.EmergencyStop = true
	g := NewGate(limits)

	// A trade that would otherwise sail through.
	a := g.Check(proposed(), healthyState())
	if a.Approved {
		t.Fatal("emergency stop must reject every trade")
	}

	// A tiny trade too.
	p := proposed()
	p.SizeUSD = 1
	if a := g.Check(p, healthyState()); a.Approved {
		t.Fatal("emergency stop must reject even trivial trades")
	}
}

func TestCheck_RejectsExhaustedAllocation(t *testing.T) {
	g := NewGate(domain.DefaultRiskLimits())

	s := healthyState()
	s.OpenValueByStrategy[domain.StrategySmartMoney] = 24_000 // 1000 left, asking 2000
	if a := g.Check(proposed(), s); a.Approved {
		t.Fatal("size beyond remaining allocation must be rejected")
	}
}

func TestCheck_AggregatesAllFailingReasons(t *testing.T) {
	limits := domain.DefaultRiskLimits()
	limits.EmergencyStop = true
	g := NewGate(limits)

	p := proposed()
	p.SizeUSD = 50_000
	a := g.Check(p, healthyState())

	failed := 0
	for _, c := range a.Checks {
		if !c.Passed {
			failed++
		}
	}
	if failed < 2 {
		t.Fatalf("expected multiple failing checks, got %d", failed)
	}
}
