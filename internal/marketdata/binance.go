package marketdata

import (
	"context"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/retracehq/retrace/internal/domain"
)

// binance returns at most 1000 klines per request.
const binanceBatchLimit = 1000

// BinanceSource implements Source for the Binance public kline API.
// No authentication is required for historical klines.
type BinanceSource struct {
	client *binance.Client
}

// NewBinanceSource creates a new Binance historical data source.
func NewBinanceSource(client *binance.Client) *BinanceSource {
	return &BinanceSource{client: client}
}

// FetchBars fetches klines in batches until the requested range is covered.
func (s *BinanceSource) FetchBars(ctx context.Context, symbol string, tf domain.Timeframe, start, end time.Time) ([]domain.Bar, error) {
	var bars []domain.Bar

	cursor := start
	for cursor.Before(end) {
		klines, err := s.client.NewKlinesService().
			Symbol(symbol).
			Interval(tf.String()).
			StartTime(cursor.UnixMilli()).
			EndTime(end.UnixMilli()).
			Limit(binanceBatchLimit).
			Do(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "fetch klines for %s %s", symbol, tf)
		}
		if len(klines) == 0 {
			break
		}

		for _, k := range klines {
			bar, err := klineToBar(symbol, tf, k)
			if err != nil {
				return nil, err
			}
			if !bar.OpenTime.Before(end) {
				return bars, nil
			}
			bars = append(bars, bar)
		}

		next := time.UnixMilli(klines[len(klines)-1].CloseTime)
		if !next.After(cursor) {
			break
		}
		cursor = next
	}

	return bars, nil
}

func klineToBar(symbol string, tf domain.Timeframe, k *binance.Kline) (domain.Bar, error) {
	open, err := decimal.NewFromString(k.Open)
	if err != nil {
		return domain.Bar{}, errors.Wrap(err, "parse open price")
	}
	high, err := decimal.NewFromString(k.High)
	if err != nil {
		return domain.Bar{}, errors.Wrap(err, "parse high price")
	}
	low, err := decimal.NewFromString(k.Low)
	if err != nil {
		return domain.Bar{}, errors.Wrap(err, "parse low price")
	}
	closePrice, err := decimal.NewFromString(k.Close)
	if err != nil {
		return domain.Bar{}, errors.Wrap(err, "parse close price")
	}
	volume, err := decimal.NewFromString(k.Volume)
	if err != nil {
		return domain.Bar{}, errors.Wrap(err, "parse volume")
	}

	return domain.Bar{
		Symbol:    symbol,
		Timeframe: tf,
		OpenTime:  time.UnixMilli(k.OpenTime).UTC(),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
		Volume:    volume,
	}, nil
}
