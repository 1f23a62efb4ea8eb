package marketdata

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retracehq/retrace/internal/domain"
)

var testStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// stubSource serves canned bars with configurable failure and delay.
type stubSource struct {
	mu    sync.Mutex
	bars  []domain.Bar
	fail  bool
	delay time.Duration
	calls atomic.Int64
}

func (s *stubSource) FetchBars(ctx context.Context, symbol string, tf domain.Timeframe, start, end time.Time) ([]domain.Bar, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, errors.New("connection refused")
	}
	return s.bars, nil
}

func (s *stubSource) setFail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
}

func stubBars(symbol string, n int) []domain.Bar {
	bars := make([]domain.Bar, n)
	for i := 0; i < n; i++ {
		price := decimal.NewFromInt(int64(100 + i))
		bars[i] = domain.Bar{
			Symbol:    symbol,
			Timeframe: domain.Timeframe1h,
			OpenTime:  testStart.Add(time.Duration(i) * time.Hour),
			Open:      price,
			High:      price.Add(decimal.NewFromInt(1)),
			Low:       price.Sub(decimal.NewFromInt(1)),
			Close:     price,
			Volume:    decimal.NewFromInt(10),
		}
	}
	return bars
}

func newTestProvider(src Source, ttl time.Duration) *Provider {
	p := NewProvider(src, NewSyntheticGenerator(100, 0.02), nil, ttl, nil)
	p.maxAttempts = 1
	return p
}

func TestGetBars_FreshCacheSkipsFetch(t *testing.T) {
	src := &stubSource{bars: stubBars("BTCUSDT", 10)}
	p := newTestProvider(src, time.Minute)
	end := testStart.Add(10 * time.Hour)

	first, err := p.GetBars(context.Background(), "BTCUSDT", domain.Timeframe1h, testStart, end)
	require.NoError(t, err)
	assert.Equal(t, domain.DataSourceLive, first.Source)
	assert.Len(t, first.Bars, 10)

	second, err := p.GetBars(context.Background(), "BTCUSDT", domain.Timeframe1h, testStart, end)
	require.NoError(t, err)
	assert.Equal(t, first.Bars, second.Bars)
	assert.EqualValues(t, 1, src.calls.Load(), "second request must be served from cache")
}

func TestGetBars_ConcurrentRequestsCoalesced(t *testing.T) {
	src := &stubSource{bars: stubBars("BTCUSDT", 10), delay: 50 * time.Millisecond}
	p := newTestProvider(src, time.Minute)
	end := testStart.Add(10 * time.Hour)

	const goroutines = 16
	var wg sync.WaitGroup
	results := make([]Result, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := p.GetBars(context.Background(), "BTCUSDT", domain.Timeframe1h, testStart, end)
			require.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, src.calls.Load(), "concurrent misses for the same key must share one fetch")
	for i := 1; i < goroutines; i++ {
		assert.Equal(t, results[0].Bars, results[i].Bars)
	}
}

func TestGetBars_StaleCacheServedWhenSourceDown(t *testing.T) {
	src := &stubSource{bars: stubBars("BTCUSDT", 10)}
	p := newTestProvider(src, time.Nanosecond) // everything expires immediately
	end := testStart.Add(10 * time.Hour)

	first, err := p.GetBars(context.Background(), "BTCUSDT", domain.Timeframe1h, testStart, end)
	require.NoError(t, err)
	require.Equal(t, domain.DataSourceLive, first.Source)

	src.setFail(true)

	second, err := p.GetBars(context.Background(), "BTCUSDT", domain.Timeframe1h, testStart, end)
	require.NoError(t, err)
	assert.Equal(t, domain.DataSourceCachedStale, second.Source)
	assert.Equal(t, first.Bars, second.Bars)
	require.NotEmpty(t, second.Warnings)
	assert.Contains(t, second.Warnings[0], "stale cache")
}

func TestGetBars_SyntheticLastResort(t *testing.T) {
	src := &stubSource{fail: true}
	p := newTestProvider(src, time.Minute)
	end := testStart.Add(24 * time.Hour)

	res, err := p.GetBars(context.Background(), "BTCUSDT", domain.Timeframe1h, testStart, end)
	require.NoError(t, err)

	assert.Equal(t, domain.DataSourceSynthetic, res.Source)
	assert.Len(t, res.Bars, 24)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "synthetic")

	for _, bar := range res.Bars {
		require.NoError(t, bar.Validate())
	}
}

func TestGetBars_NoSyntheticTierFailsWithTypedError(t *testing.T) {
	src := &stubSource{fail: true}
	p := NewProvider(src, nil, nil, time.Minute, nil)
	p.maxAttempts = 1

	_, err := p.GetBars(context.Background(), "BTCUSDT", domain.Timeframe1h, testStart, testStart.Add(time.Hour))
	require.Error(t, err)

	var unavailable *domain.DataUnavailableError
	assert.ErrorAs(t, err, &unavailable)
}

func TestGetBars_GapsAreFlaggedNotInterpolated(t *testing.T) {
	bars := stubBars("BTCUSDT", 10)
	// drop two bars in the middle
	bars = append(bars[:4], bars[6:]...)
	src := &stubSource{bars: bars}
	p := newTestProvider(src, time.Minute)

	res, err := p.GetBars(context.Background(), "BTCUSDT", domain.Timeframe1h, testStart, testStart.Add(10*time.Hour))
	require.NoError(t, err)

	assert.Len(t, res.Bars, 8, "missing bars must not be interpolated")
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "data gap")
}

func TestSyntheticGenerator_Deterministic(t *testing.T) {
	g := NewSyntheticGenerator(100, 0.02)
	end := testStart.Add(48 * time.Hour)

	first := g.Generate("BTCUSDT", domain.Timeframe1h, testStart, end)
	second := g.Generate("BTCUSDT", domain.Timeframe1h, testStart, end)
	assert.Equal(t, first, second, "same key must yield byte-identical bars")

	other := g.Generate("ETHUSDT", domain.Timeframe1h, testStart, end)
	assert.NotEqual(t, first, other, "different symbols must diverge")

	assert.Len(t, first, 48)
	for i := 1; i < len(first); i++ {
		assert.True(t, first[i].OpenTime.After(first[i-1].OpenTime))
	}
}
