package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side direction of a trade or position.
type Side int

const (
	// SideLong long exposure (buy to open).
	SideLong Side = 1
	// SideShort short exposure (sell to open).
	SideShort Side = -1
)

// String returns a human-readable representation.
func (s Side) String() string {
	if s == SideShort {
		return "short"
	}
	return "long"
}

// Sign returns +1 for long and -1 for short as a decimal multiplier.
func (s Side) Sign() decimal.Decimal {
	return decimal.NewFromInt(int64(s))
}

// Position aggregated open exposure for one symbol.
// Side is encoded by the sign of Size: positive is long, negative is short.
// EntryPrice is the volume-weighted average of all fills that built
// the position. Margin is the quote-side collateral locked for it.
type Position struct {
	Symbol     string
	Size       decimal.Decimal
	EntryPrice decimal.Decimal
	Margin     decimal.Decimal
	OpenedAt   time.Time
}

// Side returns the direction implied by the sign of Size.
func (p *Position) Side() Side {
	if p.Size.IsNegative() {
		return SideShort
	}
	return SideLong
}

// AbsSize returns the unsigned position size.
func (p *Position) AbsSize() decimal.Decimal {
	return p.Size.Abs()
}

// UnrealizedPnL calculates profit and loss at the given market price.
func (p *Position) UnrealizedPnL(price decimal.Decimal) decimal.Decimal {
	if p == nil || p.Size.IsZero() {
		return decimal.Zero
	}
	return price.Sub(p.EntryPrice).Mul(p.Size)
}

// MarketValue returns the position's contribution to total equity:
// locked collateral plus unrealized profit and loss.
func (p *Position) MarketValue(price decimal.Decimal) decimal.Decimal {
	if p == nil || p.Size.IsZero() {
		return decimal.Zero
	}
	return p.Margin.Add(p.UnrealizedPnL(price))
}
