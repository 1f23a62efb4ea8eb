package domain

import "github.com/shopspring/decimal"

// Action represents the type of trading action requested by a strategy.
type Action int

const (
	// ActionHold represents no action.
	ActionHold Action = iota
	// ActionBuy opens or increases a long position (or closes a short).
	ActionBuy
	// ActionSell opens or increases a short position (or closes a long).
	ActionSell
)

// String returns a human-readable representation.
func (a Action) String() string {
	switch a {
	case ActionBuy:
		return "BUY"
	case ActionSell:
		return "SELL"
	default:
		return "HOLD"
	}
}

// Signal trading intent emitted by a strategy for a single bar.
// SizeFraction is the share of current total equity to commit,
// in the (0, 1] range.
type Signal struct {
	Action       Action
	SizeFraction decimal.Decimal
}
