package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Trade a single executed fill recorded in the wallet ledger.
// Append-only once created. RealizedPnL is nil when the fill only
// opened or increased a position.
type Trade struct {
	OrderID         string
	Symbol          string
	Side            Side
	RequestedSize   decimal.Decimal
	FillPrice       decimal.Decimal
	Commission      decimal.Decimal
	SlippageApplied decimal.Decimal
	RealizedPnL     *decimal.Decimal
	Timestamp       time.Time
	StrategyTag     string
}

// String returns a human-readable string representation.
func (t *Trade) String() string {
	return fmt.Sprintf("%s %s size: %s fill: %s", t.Symbol, t.Side.String(), t.RequestedSize.String(), t.FillPrice.String())
}
