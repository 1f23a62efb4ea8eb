package strategy

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/retracehq/retrace/internal/domain"
	"github.com/retracehq/retrace/internal/indicators"
)

// RSIReversion is a mean-reversion strategy: buy when RSI drops below
// the oversold level, close the long when it rises above overbought.
type RSIReversion struct {
	period       int
	oversold     decimal.Decimal
	overbought   decimal.Decimal
	sizeFraction decimal.Decimal
}

// NewRSIReversion creates an RSI mean-reversion strategy. Recognized
// params: period (default 14), oversold (30), overbought (70),
// size_fraction (0.2).
func NewRSIReversion(params map[string]float64) *RSIReversion {
	return &RSIReversion{
		period:       int(paramOr(params, "period", 14)),
		oversold:     decimal.NewFromFloat(paramOr(params, "oversold", 30)),
		overbought:   decimal.NewFromFloat(paramOr(params, "overbought", 70)),
		sizeFraction: decimal.NewFromFloat(paramOr(params, "size_fraction", 0.2)),
	}
}

func (s *RSIReversion) Name() string {
	return "rsi_reversion"
}

func (s *RSIReversion) Warmup() int {
	return s.period + 1
}

func (s *RSIReversion) OnBar(bar domain.Bar, window []domain.Bar, position *domain.Position) ([]domain.Signal, error) {
	if len(window) < s.Warmup() {
		return nil, nil
	}

	closes := make([]decimal.Decimal, len(window))
	for i, b := range window {
		closes[i] = b.Close
	}

	rsi, err := indicators.RSI(closes, s.period)
	if err != nil {
		return nil, errors.Wrap(err, "RSI")
	}
	if len(rsi) == 0 {
		return nil, nil
	}
	current := rsi[len(rsi)-1]

	if current.LessThan(s.oversold) && position == nil {
		return []domain.Signal{{Action: domain.ActionBuy, SizeFraction: s.sizeFraction}}, nil
	}
	if current.GreaterThan(s.overbought) && position != nil && position.Side() == domain.SideLong {
		return []domain.Signal{{Action: domain.ActionSell, SizeFraction: s.sizeFraction}}, nil
	}

	return nil, nil
}
