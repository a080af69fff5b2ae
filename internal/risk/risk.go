// Package risk computes position sizing and reward/risk ratios from a
// signal plan and the user's account settings.
package risk

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tradesight/tradesight/internal/models"
)

// Summary describes the trade sizing derived from a signal plan.
// All values are formatted with two decimal places except the per-unit
// distances, which keep full precision.
type Summary struct {
	RiskPerUnit   string `json:"riskPerUnit"`
	RewardPerUnit string `json:"rewardPerUnit"`
	RRRatio       string `json:"rrRatio"`      // e.g. "1:0.45"
	PositionSize  string `json:"positionSize"` // units, 2 decimal places
}

// ParsePrice converts a free-form price string into a decimal. Model output
// may carry currency symbols, thousands separators or stray formatting, so
// everything except digits, the decimal point and a leading minus is
// stripped before parsing.
func ParsePrice(s string) (decimal.Decimal, error) {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9' || r == '.':
			b.WriteRune(r)
		case r == '-' && i == 0:
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("no numeric content in price %q", s)
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse price %q: %w", s, err)
	}
	return d, nil
}

// Evaluate computes the risk summary for a plan under the given settings.
// It uses the first (most conservative) target as the reward reference,
// matching how the dashboard presents the trade.
func Evaluate(plan *models.SignalPlan, settings models.RiskSettings) (*Summary, error) {
	if len(plan.Targets) == 0 {
		return nil, fmt.Errorf("plan has no targets")
	}

	entry, err := ParsePrice(plan.Entry)
	if err != nil {
		return nil, fmt.Errorf("entry: %w", err)
	}
	stop, err := ParsePrice(plan.StopLoss)
	if err != nil {
		return nil, fmt.Errorf("stopLoss: %w", err)
	}
	target, err := ParsePrice(plan.Targets[0])
	if err != nil {
		return nil, fmt.Errorf("target: %w", err)
	}

	riskDist := entry.Sub(stop).Abs()
	if riskDist.IsZero() {
		return nil, fmt.Errorf("entry and stop loss are equal")
	}
	rewardDist := target.Sub(entry).Abs()

	rr := rewardDist.Div(riskDist).Round(2)

	balance := decimal.NewFromFloat(settings.Balance)
	riskPct := decimal.NewFromFloat(settings.RiskPercent)
	riskCash := balance.Mul(riskPct).Div(decimal.NewFromInt(100))
	size := riskCash.Div(riskDist).Round(2)

	return &Summary{
		RiskPerUnit:   riskDist.String(),
		RewardPerUnit: rewardDist.String(),
		RRRatio:       "1:" + rr.StringFixed(2),
		PositionSize:  size.StringFixed(2),
	}, nil
}
