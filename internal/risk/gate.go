package risk

import (
	"fmt"
	"strings"

	"copy-trader-lab/internal/domain"
)

// Proposed is the trade the arbiter selected, as seen by the gate.
type Proposed struct {
	Strategy      string
	TokenAddress  string
	Chain         string
	SizeUSD       float64
	AllocationUSD float64 // the strategy's capital ceiling
}

// CheckResult is one gate check's verdict.
type CheckResult struct {
	Name   string
	Passed bool
	Reason string // populated on failure
}

// Approval is the gate's aggregate verdict. Rejections are control flow, not
// errors: the reason string is surfaced to the caller but never logged as a
// failure.
type Approval struct {
	Approved        bool
	Checks          []CheckResult
	RejectionReason string // failing reasons joined with "; "
}

// Gate validates a proposed trade against portfolio-wide limits. It is a
// pure predicate: no side effects, no storage access. The portfolio state it
// reads is a snapshot and may be stale by the time the ledger commits (the
// two-phase capital check).
type Gate struct {
	limits domain.RiskLimits
}

// NewGate creates a Gate with the given limits.
func NewGate(limits domain.RiskLimits) *Gate {
	return &Gate{limits: limits}
}

// Limits returns the configured limits.
func (g *Gate) Limits() domain.RiskLimits {
	return g.limits
}

// SetEmergencyStop flips the emergency-stop flag.
func (g *Gate) SetEmergencyStop(on bool) {
	g.limits.EmergencyStop = on
}

// Check runs every limit check in a fixed order. All must pass for
// approval; on rejection every failing reason is retained.
func (g *Gate) Check(p *Proposed, state *domain.PortfolioState) Approval {
	checks := []CheckResult{
		g.checkPositionSize(p, state),
		g.checkDrawdown(state),
		g.checkDailyLoss(state),
		g.checkTokenExposure(p, state),
		g.checkChainExposure(p, state),
		g.checkEmergencyStop(),
		g.checkAvailableCapital(p, state),
	}

	var failing []string
	for _, c := range checks {
		if !c.Passed {
			failing = append(failing, c.Reason)
		}
	}
	return Approval{
		Approved:        len(failing) == 0,
		Checks:          checks,
		RejectionReason: strings.Join(failing, "; "),
	}
}

func (g *Gate) checkPositionSize(p *Proposed, state *domain.PortfolioState) CheckResult {
	limit := state.CurrentCapitalUSD * g.limits.MaxPositionFraction
	if p.SizeUSD > limit {
		return fail("position_size", "size %.2f exceeds %.2f (%.0f%% of capital)", p.SizeUSD, limit, g.limits.MaxPositionFraction*100)
	}
	return pass("position_size")
}

func (g *Gate) checkDrawdown(state *domain.PortfolioState) CheckResult {
	if d := state.Drawdown(); d > g.limits.MaxDrawdown {
		return fail("drawdown", "drawdown %.1f%% exceeds %.1f%%", d*100, g.limits.MaxDrawdown*100)
	}
	return pass("drawdown")
}

func (g *Gate) checkDailyLoss(state *domain.PortfolioState) CheckResult {
	maxLoss := g.limits.MaxDailyLossFraction * state.StartingCapitalUSD
	if loss := -state.RealizedTodayUSD; loss > maxLoss {
		return fail("daily_loss", "today's realized loss %.2f exceeds %.2f", loss, maxLoss)
	}
	return pass("daily_loss")
}

func (g *Gate) checkTokenExposure(p *Proposed, state *domain.PortfolioState) CheckResult {
	limit := state.CurrentCapitalUSD * g.limits.MaxTokenExposureFraction
	if after := state.OpenValueByToken[p.TokenAddress] + p.SizeUSD; after > limit {
		return fail("token_exposure", "token %s exposure %.2f would exceed %.2f", p.TokenAddress, after, limit)
	}
	return pass("token_exposure")
}

func (g *Gate) checkChainExposure(p *Proposed, state *domain.PortfolioState) CheckResult {
	limit := state.CurrentCapitalUSD * g.limits.MaxChainExposureFraction
	if after := state.OpenValueByChain[p.Chain] + p.SizeUSD; after > limit {
		return fail("chain_exposure", "chain %s exposure %.2f would exceed %.2f", p.Chain, after, limit)
	}
	return pass("chain_exposure")
}

func (g *Gate) checkEmergencyStop() CheckResult {
	if g.limits.EmergencyStop {
		return fail("emergency_stop", "emergency stop is set")
	}
	return pass("emergency_stop")
}

func (g *Gate) checkAvailableCapital(p *Proposed, state *domain.PortfolioState) CheckResult {
	available := state.AvailableUSD(p.Strategy, p.AllocationUSD)
	if p.SizeUSD > available {
		return fail("available_capital", "size %.2f exceeds remaining allocation %.2f for %s", p.SizeUSD, available, p.Strategy)
	}
	return pass("available_capital")
}

func pass(name string) CheckResult {
	return CheckResult{Name: name, Passed: true}
}

func fail(name, format string, args ...any) CheckResult {
	return CheckResult{Name: name, Reason: fmt.Sprintf(format, args...)}
}
