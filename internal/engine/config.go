package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/retracehq/retrace/internal/domain"
)

// Config fully describes one backtest run.
type Config struct {
	Symbols        []string
	Timeframe      domain.Timeframe
	Start          time.Time
	End            time.Time
	InitialCapital decimal.Decimal
	CommissionRate decimal.Decimal
	SlippageBps    decimal.Decimal
	MaxLeverage    decimal.Decimal
	StrategyName   string
	StrategyParams map[string]float64
}

// Validate checks the config before any data is fetched. Invalid
// configs fail fast with ConfigurationError.
func (c *Config) Validate() error {
	if len(c.Symbols) == 0 {
		return &domain.ConfigurationError{Field: "symbols", Reason: "at least one symbol is required"}
	}
	seen := make(map[string]struct{}, len(c.Symbols))
	for _, s := range c.Symbols {
		if s == "" {
			return &domain.ConfigurationError{Field: "symbols", Reason: "empty symbol"}
		}
		if _, dup := seen[s]; dup {
			return &domain.ConfigurationError{Field: "symbols", Reason: "duplicate symbol " + s}
		}
		seen[s] = struct{}{}
	}
	if !c.Timeframe.IsValid() {
		return &domain.ConfigurationError{Field: "timeframe", Reason: "unsupported timeframe " + c.Timeframe.String()}
	}
	if !c.Start.Before(c.End) {
		return &domain.ConfigurationError{Field: "date_range", Reason: "start must be before end"}
	}
	if c.InitialCapital.LessThanOrEqual(decimal.Zero) {
		return &domain.ConfigurationError{Field: "initial_capital", Reason: "must be greater than zero"}
	}
	if c.CommissionRate.IsNegative() {
		return &domain.ConfigurationError{Field: "commission_rate", Reason: "must not be negative"}
	}
	if c.SlippageBps.IsNegative() {
		return &domain.ConfigurationError{Field: "slippage_bps", Reason: "must not be negative"}
	}
	if c.MaxLeverage.LessThan(decimal.NewFromInt(1)) {
		return &domain.ConfigurationError{Field: "max_leverage", Reason: "must be at least 1"}
	}
	if c.StrategyName == "" {
		return &domain.ConfigurationError{Field: "strategy_name", Reason: "strategy name is required"}
	}
	return nil
}
