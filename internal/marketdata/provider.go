package marketdata

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jpillora/backoff"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/retracehq/retrace/internal/domain"
)

const (
	defaultFetchTimeout = 30 * time.Second
	defaultMaxAttempts  = 3
)

// Result carries fetched bars together with the data tier that
// produced them. The Source flag must be surfaced on every run result
// so downgraded data is never mistaken for live market data.
type Result struct {
	Bars     []domain.Bar
	Source   domain.DataSource
	Warnings []string
}

// Provider is the historical data provider shared by all concurrent
// runs. Concurrent requests for the same missing key are coalesced
// into one underlying fetch, and all external calls pass through one
// process-wide rate limiter.
//
// Failure escalation per request: bounded retry with backoff, then
// stale cache if present, then deterministic synthetic bars.
type Provider struct {
	source       Source
	synthetic    *SyntheticGenerator
	cache        *barCache
	group        singleflight.Group
	limiter      *rate.Limiter
	logger       *zap.Logger
	fetchTimeout time.Duration
	maxAttempts  int
}

// NewProvider creates a provider around the given external source.
// The synthetic generator may be nil to disable the last-resort tier.
func NewProvider(source Source, synthetic *SyntheticGenerator, limiter *rate.Limiter, cacheTTL time.Duration, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &Provider{
		source:       source,
		synthetic:    synthetic,
		cache:        newBarCache(cacheTTL),
		limiter:      limiter,
		logger:       logger,
		fetchTimeout: defaultFetchTimeout,
		maxAttempts:  defaultMaxAttempts,
	}
}

// GetBars returns a strictly chronological, finite sequence of bars
// for the symbol in [start, end). Gaps are flagged in warnings, never
// interpolated.
func (p *Provider) GetBars(ctx context.Context, symbol string, tf domain.Timeframe, start, end time.Time) (Result, error) {
	key := newCacheKey(symbol, tf, start, end)

	if entry, fresh, ok := p.cache.get(key); ok && fresh {
		return Result{Bars: entry.bars, Source: domain.DataSourceLive, Warnings: entry.warnings}, nil
	}

	v, err, shared := p.group.Do(key.String(), func() (interface{}, error) {
		return p.fetchOrDegrade(ctx, key, symbol, tf, start, end)
	})
	if err != nil {
		return Result{}, err
	}
	if shared {
		p.logger.Debug("coalesced concurrent fetch", zap.String("key", key.String()))
	}

	return v.(Result), nil
}

func (p *Provider) fetchOrDegrade(ctx context.Context, key cacheKey, symbol string, tf domain.Timeframe, start, end time.Time) (Result, error) {
	// another flight may have filled the cache while we waited
	if entry, fresh, ok := p.cache.get(key); ok && fresh {
		return Result{Bars: entry.bars, Source: domain.DataSourceLive, Warnings: entry.warnings}, nil
	}

	bars, fetchErr := p.fetchWithRetry(ctx, symbol, tf, start, end)
	if fetchErr == nil {
		sort.Slice(bars, func(i, j int) bool { return bars[i].OpenTime.Before(bars[j].OpenTime) })
		warnings := detectGaps(bars, tf)
		p.cache.put(key, bars, warnings)
		return Result{Bars: bars, Source: domain.DataSourceLive, Warnings: warnings}, nil
	}

	p.logger.Warn("external source failed, degrading",
		zap.String("symbol", symbol),
		zap.String("timeframe", tf.String()),
		zap.Error(fetchErr))

	if entry, _, ok := p.cache.get(key); ok {
		warnings := append([]string{
			fmt.Sprintf("%s %s: serving stale cache, source unreachable: %v", symbol, tf, fetchErr),
		}, entry.warnings...)
		return Result{Bars: entry.bars, Source: domain.DataSourceCachedStale, Warnings: warnings}, nil
	}

	if p.synthetic != nil {
		bars := p.synthetic.Generate(symbol, tf, start, end)
		warnings := []string{
			fmt.Sprintf("%s %s: source unreachable and no cache, using synthetic data: %v", symbol, tf, fetchErr),
		}
		return Result{Bars: bars, Source: domain.DataSourceSynthetic, Warnings: warnings}, nil
	}

	return Result{}, &domain.DataUnavailableError{Symbol: symbol, Cause: fetchErr}
}

func (p *Provider) fetchWithRetry(ctx context.Context, symbol string, tf domain.Timeframe, start, end time.Time) ([]domain.Bar, error) {
	b := &backoff.Backoff{
		Min:    200 * time.Millisecond,
		Max:    5 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	var lastErr error
	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(err, "rate limiter wait")
		}

		fetchCtx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
		bars, err := p.source.FetchBars(fetchCtx, symbol, tf, start, end)
		cancel()
		if err == nil {
			return bars, nil
		}
		lastErr = err
		if attempt == p.maxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(b.Duration()):
		}
	}

	return nil, errors.Wrapf(lastErr, "fetch failed after %d attempts", p.maxAttempts)
}

// detectGaps flags missing intervals between consecutive bars.
func detectGaps(bars []domain.Bar, tf domain.Timeframe) []string {
	step := tf.Duration()
	var warnings []string
	for i := 1; i < len(bars); i++ {
		delta := bars[i].OpenTime.Sub(bars[i-1].OpenTime)
		if delta > step {
			warnings = append(warnings, fmt.Sprintf("%s %s: data gap of %s after %s",
				bars[i].Symbol, tf, delta, bars[i-1].OpenTime.Format(time.RFC3339)))
		}
	}
	return warnings
}
