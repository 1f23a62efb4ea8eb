// Package indicators provides technical analysis indicators (EMA, RSI)
// used by the built-in strategies.
package indicators

import (
	"fmt"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"
	"github.com/shopspring/decimal"
)

// EMA calculates the Exponential Moving Average for the given period.
// The result is aligned to the tail of the input: the last EMA value
// corresponds to the last close.
func EMA(closes []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if len(closes) < period {
		return nil, fmt.Errorf("not enough data points for EMA: need %d, got %d", period, len(closes))
	}

	ema := trend.NewEmaWithPeriod[float64](period)
	out := helper.ChanToSlice(ema.Compute(helper.SliceToChan(decimalsToFloat64(closes))))

	return float64ToDecimals(out), nil
}

// RSI calculates the Relative Strength Index for the given period.
func RSI(closes []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if len(closes) < period+1 {
		return nil, fmt.Errorf("not enough data points for RSI: need %d, got %d", period+1, len(closes))
	}

	rsi := momentum.NewRsiWithPeriod[float64](period)
	out := helper.ChanToSlice(rsi.Compute(helper.SliceToChan(decimalsToFloat64(closes))))

	return float64ToDecimals(out), nil
}

func decimalsToFloat64(values []decimal.Decimal) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i], _ = v.Float64()
	}
	return out
}

func float64ToDecimals(values []float64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = decimal.NewFromFloat(v)
	}
	return out
}
