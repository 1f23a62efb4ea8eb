package domain

import (
	"fmt"
	"time"
)

// Timeframe supported candlestick interval.
type Timeframe string

const (
	Timeframe1h Timeframe = "1h"
	Timeframe4h Timeframe = "4h"
	Timeframe1d Timeframe = "1d"
)

// ParseTimeframe converts a string into a supported Timeframe.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(s)
	if !tf.IsValid() {
		return "", fmt.Errorf("unsupported timeframe: %q", s)
	}
	return tf, nil
}

// IsValid checks if the Timeframe value is supported.
func (t Timeframe) IsValid() bool {
	switch t {
	case Timeframe1h, Timeframe4h, Timeframe1d:
		return true
	}
	return false
}

// String returns the string representation.
func (t Timeframe) String() string {
	return string(t)
}

// Duration returns the length of one bar interval.
func (t Timeframe) Duration() time.Duration {
	switch t {
	case Timeframe1h:
		return time.Hour
	case Timeframe4h:
		return 4 * time.Hour
	case Timeframe1d:
		return 24 * time.Hour
	}
	return 0
}

// BarsPerYear returns the number of bars in a calendar year,
// used for annualizing returns and volatility.
func (t Timeframe) BarsPerYear() float64 {
	switch t {
	case Timeframe1h:
		return 24 * 365
	case Timeframe4h:
		return 6 * 365
	case Timeframe1d:
		return 365
	}
	return 0
}
