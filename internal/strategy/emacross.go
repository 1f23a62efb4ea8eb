package strategy

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/retracehq/retrace/internal/domain"
	"github.com/retracehq/retrace/internal/indicators"
)

// EMACross trades crossovers of a fast and a slow exponential moving
// average: buy when the fast EMA crosses above the slow one, sell the
// open long when it crosses back below.
type EMACross struct {
	fast         int
	slow         int
	sizeFraction decimal.Decimal
}

// NewEMACross creates an EMA crossover strategy. Recognized params:
// fast_period (default 12), slow_period (26), size_fraction (0.2).
func NewEMACross(params map[string]float64) *EMACross {
	return &EMACross{
		fast:         int(paramOr(params, "fast_period", 12)),
		slow:         int(paramOr(params, "slow_period", 26)),
		sizeFraction: decimal.NewFromFloat(paramOr(params, "size_fraction", 0.2)),
	}
}

func (s *EMACross) Name() string {
	return "ema_cross"
}

func (s *EMACross) Warmup() int {
	return s.slow + 1
}

func (s *EMACross) OnBar(bar domain.Bar, window []domain.Bar, position *domain.Position) ([]domain.Signal, error) {
	if len(window) < s.Warmup() {
		return nil, nil
	}

	closes := make([]decimal.Decimal, len(window))
	for i, b := range window {
		closes[i] = b.Close
	}

	fast, err := indicators.EMA(closes, s.fast)
	if err != nil {
		return nil, errors.Wrap(err, "fast EMA")
	}
	slow, err := indicators.EMA(closes, s.slow)
	if err != nil {
		return nil, errors.Wrap(err, "slow EMA")
	}
	if len(fast) < 2 || len(slow) < 2 {
		return nil, nil
	}

	// both series are tail-aligned to the latest close
	fastNow, fastPrev := fast[len(fast)-1], fast[len(fast)-2]
	slowNow, slowPrev := slow[len(slow)-1], slow[len(slow)-2]

	crossedUp := fastPrev.LessThanOrEqual(slowPrev) && fastNow.GreaterThan(slowNow)
	crossedDown := fastPrev.GreaterThanOrEqual(slowPrev) && fastNow.LessThan(slowNow)

	if crossedUp && (position == nil || position.Side() != domain.SideLong) {
		return []domain.Signal{{Action: domain.ActionBuy, SizeFraction: s.sizeFraction}}, nil
	}
	if crossedDown && position != nil && position.Side() == domain.SideLong {
		return []domain.Signal{{Action: domain.ActionSell, SizeFraction: s.sizeFraction}}, nil
	}

	return nil, nil
}
