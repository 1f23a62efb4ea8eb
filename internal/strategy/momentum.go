package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/retracehq/retrace/internal/domain"
)

// Momentum trades trailing returns: buy when the return over the
// lookback window exceeds the threshold, sell the open long when it
// falls below the negative threshold.
type Momentum struct {
	lookback     int
	threshold    decimal.Decimal
	sizeFraction decimal.Decimal
}

// NewMomentum creates a momentum strategy. Recognized params:
// lookback (default 20), threshold (0.03), size_fraction (0.2).
func NewMomentum(params map[string]float64) *Momentum {
	return &Momentum{
		lookback:     int(paramOr(params, "lookback", 20)),
		threshold:    decimal.NewFromFloat(paramOr(params, "threshold", 0.03)),
		sizeFraction: decimal.NewFromFloat(paramOr(params, "size_fraction", 0.2)),
	}
}

func (s *Momentum) Name() string {
	return "momentum"
}

func (s *Momentum) Warmup() int {
	return s.lookback + 1
}

func (s *Momentum) OnBar(bar domain.Bar, window []domain.Bar, position *domain.Position) ([]domain.Signal, error) {
	if len(window) < s.Warmup() {
		return nil, nil
	}

	past := window[len(window)-1-s.lookback].Close
	if past.LessThanOrEqual(decimal.Zero) {
		return nil, nil
	}
	momentum := bar.Close.Sub(past).Div(past)

	if momentum.GreaterThan(s.threshold) && position == nil {
		return []domain.Signal{{Action: domain.ActionBuy, SizeFraction: s.sizeFraction}}, nil
	}
	if momentum.LessThan(s.threshold.Neg()) && position != nil && position.Side() == domain.SideLong {
		return []domain.Signal{{Action: domain.ActionSell, SizeFraction: s.sizeFraction}}, nil
	}

	return nil, nil
}
