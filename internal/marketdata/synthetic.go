package marketdata

import (
	"hash/fnv"
	"math"
	"math/rand"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/retracehq/retrace/internal/domain"
)

// SyntheticGenerator produces a deterministic volatility random walk
// used as the last resort when the external source and the cache both
// fail. The generator is seeded from the request key, so repeated
// requests for the same range yield byte-identical bars.
type SyntheticGenerator struct {
	basePrice  float64
	volatility float64
}

// NewSyntheticGenerator creates a generator with the given base price
// level and per-bar volatility (e.g. 0.02 for 2%).
func NewSyntheticGenerator(basePrice, volatility float64) *SyntheticGenerator {
	if basePrice <= 0 {
		basePrice = 100
	}
	if volatility <= 0 {
		volatility = 0.02
	}
	return &SyntheticGenerator{basePrice: basePrice, volatility: volatility}
}

// Generate builds bars for the symbol covering [start, end) at the
// timeframe's step.
func (g *SyntheticGenerator) Generate(symbol string, tf domain.Timeframe, start, end time.Time) []domain.Bar {
	step := tf.Duration()
	if step <= 0 || !start.Before(end) {
		return nil
	}

	rng := rand.New(rand.NewSource(seedFor(symbol, tf, start)))

	var bars []domain.Bar
	price := g.basePrice * (0.5 + rng.Float64())
	for t := start; t.Before(end); t = t.Add(step) {
		open := price
		shock := rng.NormFloat64() * g.volatility
		price = open * (1 + shock)
		if price < 0.01 {
			price = 0.01
		}

		high := math.Max(open, price) * (1 + rng.Float64()*g.volatility/2)
		low := math.Min(open, price) * (1 - rng.Float64()*g.volatility/2)
		volume := 100 + rng.Float64()*900

		bars = append(bars, domain.Bar{
			Symbol:    symbol,
			Timeframe: tf,
			OpenTime:  t,
			Open:      decimal.NewFromFloat(open).Round(8),
			High:      decimal.NewFromFloat(high).Round(8),
			Low:       decimal.NewFromFloat(low).Round(8),
			Close:     decimal.NewFromFloat(price).Round(8),
			Volume:    decimal.NewFromFloat(volume).Round(8),
		})
	}

	return bars
}

func seedFor(symbol string, tf domain.Timeframe, start time.Time) int64 {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	h.Write([]byte{'|'})
	h.Write([]byte(tf.String()))
	h.Write([]byte{'|'})
	h.Write([]byte(strconv.FormatInt(start.Unix(), 10)))
	return int64(h.Sum64())
}
