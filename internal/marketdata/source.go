// Package marketdata provides historical OHLCV bars for backtesting:
// an external source, a TTL cache with single-flight request
// coalescing, and a deterministic synthetic fallback.
package marketdata

import (
	"context"
	"time"

	"github.com/retracehq/retrace/internal/domain"
)

// Source fetches historical bars from an external venue.
type Source interface {
	// FetchBars returns bars for the symbol in [start, end), strictly
	// chronological.
	FetchBars(ctx context.Context, symbol string, tf domain.Timeframe, start, end time.Time) ([]domain.Bar, error)
}
