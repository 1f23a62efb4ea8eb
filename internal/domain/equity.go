package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EquitySnapshot wallet state at one bar boundary. Append-only,
// one snapshot per bar processed by the replay loop.
type EquitySnapshot struct {
	Timestamp      time.Time
	Cash           decimal.Decimal
	PositionsValue decimal.Decimal
	TotalEquity    decimal.Decimal
}
