// Package strategy defines the signal generator contract consumed by
// the replay engine and a closed set of built-in implementations.
package strategy

import (
	"fmt"

	"github.com/retracehq/retrace/internal/domain"
)

// Strategy generates trading signals from bars. Implementations must
// be deterministic: identical inputs must yield identical signals, or
// replay reproducibility is lost. The engine never inspects strategy
// internals.
type Strategy interface {
	// Name identifies the strategy in trade records and logs.
	Name() string
	// Warmup returns the number of bars the strategy needs before it
	// can produce signals. The engine sizes the rolling window from it.
	Warmup() int
	// OnBar receives the current bar, a rolling window of preceding
	// bars for the same symbol (current bar included, oldest first),
	// and the open position for the symbol, if any. It returns zero or
	// more signals; returning an error aborts the run.
	OnBar(bar domain.Bar, window []domain.Bar, position *domain.Position) ([]domain.Signal, error)
}

// New constructs a built-in strategy by name. Unknown names are a
// configuration error.
func New(name string, params map[string]float64) (Strategy, error) {
	switch name {
	case "ema_cross":
		return NewEMACross(params), nil
	case "rsi_reversion":
		return NewRSIReversion(params), nil
	case "momentum":
		return NewMomentum(params), nil
	default:
		return nil, &domain.ConfigurationError{
			Field:  "strategy_name",
			Reason: fmt.Sprintf("unknown strategy %q", name),
		}
	}
}

func paramOr(params map[string]float64, key string, def float64) float64 {
	if v, ok := params[key]; ok {
		return v
	}
	return def
}
