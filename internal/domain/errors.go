package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ConfigurationError invalid run configuration. Fatal, detected before
// any data is fetched.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// DataUnavailableError every tier of the data fallback chain failed
// for a symbol. Fatal only when even synthetic generation is disabled.
type DataUnavailableError struct {
	Symbol string
	Cause  error
}

func (e *DataUnavailableError) Error() string {
	return fmt.Sprintf("historical data unavailable for %s: %v", e.Symbol, e.Cause)
}

func (e *DataUnavailableError) Unwrap() error {
	return e.Cause
}

// InsufficientFundsError a trade would require more cash than the
// wallet holds under the configured leverage. The trade is rejected,
// the run continues.
type InsufficientFundsError struct {
	Symbol    string
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds for %s: need %s, have %s",
		e.Symbol, e.Required.String(), e.Available.String())
}

// StrategyError a strategy returned an error or panicked. Fatal:
// strategy bugs must never be swallowed into a plausible result.
type StrategyError struct {
	Strategy string
	Cause    error
}

func (e *StrategyError) Error() string {
	return fmt.Sprintf("strategy %s failed: %v", e.Strategy, e.Cause)
}

func (e *StrategyError) Unwrap() error {
	return e.Cause
}

// NumericError a single malformed bar. Non-fatal, the bar is skipped
// with a warning.
type NumericError struct {
	Symbol string
	Time   time.Time
	Reason string
}

func (e *NumericError) Error() string {
	return fmt.Sprintf("malformed bar %s at %s: %s", e.Symbol, e.Time.Format(time.RFC3339), e.Reason)
}
