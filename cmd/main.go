// Command retrace replays historical price data against a trading
// strategy and reports how the portfolio would have performed.
//
// Usage:
//
//	retrace --config backtests.yaml
//
// Historical klines come from the Binance public API; no credentials
// are required. When the source is unreachable the run degrades to
// cached or synthetic data and flags the result accordingly.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/adshao/go-binance/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/retracehq/retrace/config"
	"github.com/retracehq/retrace/internal/domain"
	"github.com/retracehq/retrace/internal/engine"
	"github.com/retracehq/retrace/internal/marketdata"
)

const (
	cacheTTL         = 15 * time.Minute
	fetchesPerSecond = 5
	pollInterval     = 500 * time.Millisecond
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	configs, err := config.Get()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}
	if len(configs) == 0 {
		logger.Fatal("no backtests configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	source := marketdata.NewBinanceSource(binance.NewClient("", ""))
	synthetic := marketdata.NewSyntheticGenerator(100, 0.02)
	limiter := rate.NewLimiter(rate.Limit(fetchesPerSecond), 1)
	provider := marketdata.NewProvider(source, synthetic, limiter, cacheTTL, logger)

	manager := engine.NewManager(engine.New(provider, logger), logger)

	g := new(errgroup.Group)
	for _, cfg := range configs {
		cfg := cfg
		g.Go(func() error {
			id, err := manager.Start(ctx, cfg)
			if err != nil {
				return err
			}
			return waitAndReport(ctx, manager, id, logger)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Fatal("backtest failed", zap.Error(err))
	}
}

// waitAndReport polls the run until it reaches a terminal state and
// logs the outcome.
func waitAndReport(ctx context.Context, manager *engine.Manager, id string, logger *zap.Logger) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			manager.Cancel(id)
			return ctx.Err()
		case <-ticker.C:
		}

		info, err := manager.Status(id)
		if err != nil {
			return err
		}
		if !info.Status.Terminal() {
			continue
		}

		if info.Status != domain.RunStatusCompleted {
			logger.Warn("run did not complete",
				zap.String("run_id", id),
				zap.String("status", string(info.Status)),
				zap.String("reason", info.Reason))
			return nil
		}

		result, err := manager.Results(id)
		if err != nil {
			return err
		}
		logger.Info("run completed",
			zap.String("run_id", id),
			zap.String("data_source", string(result.DataSource)),
			zap.Float64("total_return", result.Metrics.TotalReturn),
			zap.Float64("max_drawdown", result.Metrics.MaxDrawdown),
			zap.Float64("win_rate", result.Metrics.WinRate),
			zap.Int("trades", len(result.Trades)),
			zap.Strings("warnings", result.Warnings))
		return nil
	}
}
