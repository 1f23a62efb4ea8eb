// Package domain defines core data structures used throughout the backtester.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bar single OHLCV candlestick for a symbol and timeframe.
// Immutable once fetched.
type Bar struct {
	Symbol    string
	Timeframe Timeframe
	OpenTime  time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
}

// CloseTime returns the end of the bar interval.
func (b *Bar) CloseTime() time.Time {
	return b.OpenTime.Add(b.Timeframe.Duration())
}

// Validate reports whether the bar carries usable prices.
// A bar with non-positive prices or an inverted high/low range is
// considered malformed and must be skipped by the replay loop.
func (b *Bar) Validate() error {
	if b.Open.LessThanOrEqual(decimal.Zero) ||
		b.High.LessThanOrEqual(decimal.Zero) ||
		b.Low.LessThanOrEqual(decimal.Zero) ||
		b.Close.LessThanOrEqual(decimal.Zero) {
		return &NumericError{Symbol: b.Symbol, Time: b.OpenTime, Reason: "non-positive price"}
	}
	if b.High.LessThan(b.Low) {
		return &NumericError{Symbol: b.Symbol, Time: b.OpenTime, Reason: "high below low"}
	}
	if b.Volume.IsNegative() {
		return &NumericError{Symbol: b.Symbol, Time: b.OpenTime, Reason: "negative volume"}
	}
	return nil
}
