// Package engine replays historical bars against a strategy, executing
// its signals through a virtual wallet, and computes the final report.
package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/retracehq/retrace/internal/domain"
	"github.com/retracehq/retrace/internal/marketdata"
	"github.com/retracehq/retrace/internal/performance"
	"github.com/retracehq/retrace/internal/strategy"
	"github.com/retracehq/retrace/internal/wallet"
)

// ErrCancelled is returned when a run is cancelled mid-replay. The
// partial wallet state is discarded, never surfaced as a result.
var ErrCancelled = errors.New("backtest cancelled")

// Result of a completed run.
type Result struct {
	Metrics     performance.Report
	EquityCurve []domain.EquitySnapshot
	Trades      []domain.Trade
	DataSource  domain.DataSource
	Warnings    []string
}

// Engine drives backtest replays. It owns no per-run state: each Run
// call builds its own wallet, so independent runs may execute
// concurrently, sharing only the data provider's cache.
type Engine struct {
	data   *marketdata.Provider
	logger *zap.Logger
}

// New creates an engine on top of the given data provider.
func New(data *marketdata.Provider, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{data: data, logger: logger}
}

// Run replays the configured range. Within one run replay is strictly
// sequential: signal generation and execution are order-sensitive and
// must be reproducible bit for bit given identical inputs.
//
// Signals are executed at the NEXT bar's open for the same symbol,
// never at the signal bar's own close. This ordering is the
// anti-lookahead invariant.
func (e *Engine) Run(ctx context.Context, cfg Config, strat strategy.Strategy, progress *Progress) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if strat == nil {
		return nil, &domain.ConfigurationError{Field: "strategy_name", Reason: "strategy is required"}
	}
	if progress == nil {
		progress = &Progress{}
	}

	logger := e.logger.With(zap.String("strategy", strat.Name()))

	bars, dataSource, warnings, err := e.collectBars(ctx, cfg)
	if err != nil {
		return nil, err
	}
	progress.setTotal(len(bars))

	w, err := wallet.New(cfg.InitialCapital, logger)
	if err != nil {
		return nil, err
	}

	windowCap := strat.Warmup()
	if windowCap < 1 {
		windowCap = 1
	}

	lastPrices := make(map[string]decimal.Decimal, len(cfg.Symbols))
	history := make(map[string][]domain.Bar, len(cfg.Symbols))
	pending := make(map[string][]domain.Signal, len(cfg.Symbols))

	for _, bar := range bars {
		// cancellation is observed once per bar boundary
		if progress.Cancelled() || ctx.Err() != nil {
			logger.Info("run cancelled, discarding partial state")
			return nil, ErrCancelled
		}

		if err := bar.Validate(); err != nil {
			warnings = append(warnings, err.Error())
			logger.Warn("skipping malformed bar", zap.Error(err))
			progress.increment()
			continue
		}

		symbol := bar.Symbol

		// fills happen at this bar's open, for signals from the
		// previous bar of the same symbol
		for _, sig := range pending[symbol] {
			if warning := e.executeSignal(w, cfg, strat, symbol, sig, bar, lastPrices); warning != "" {
				warnings = append(warnings, warning)
			}
		}
		pending[symbol] = nil

		history[symbol] = append(history[symbol], bar)
		if len(history[symbol]) > windowCap {
			history[symbol] = history[symbol][1:]
		}
		lastPrices[symbol] = bar.Close

		w.MarkToMarket(bar.OpenTime, lastPrices)
		if err := w.CheckConservation(lastPrices); err != nil {
			return nil, errors.Wrap(err, "wallet invariant check")
		}

		signals, err := onBarSafe(strat, bar, history[symbol], w.Position(symbol))
		if err != nil {
			return nil, &domain.StrategyError{Strategy: strat.Name(), Cause: err}
		}
		for _, sig := range signals {
			if sig.Action == domain.ActionHold {
				continue
			}
			pending[symbol] = append(pending[symbol], sig)
		}

		progress.increment()
	}

	for symbol, sigs := range pending {
		if len(sigs) > 0 {
			warnings = append(warnings, fmt.Sprintf("%s: %d signal(s) expired unfilled at end of data", symbol, len(sigs)))
		}
	}

	report := performance.FromEquityCurve(w.EquityCurve(), w.Ledger(), cfg.Timeframe.BarsPerYear())

	logger.Info("run completed",
		zap.Int("bars", len(bars)),
		zap.Int("trades", len(w.Ledger())),
		zap.String("data_source", string(dataSource)),
		zap.Float64("total_return", report.TotalReturn))

	return &Result{
		Metrics:     report,
		EquityCurve: w.EquityCurve(),
		Trades:      w.Ledger(),
		DataSource:  dataSource,
		Warnings:    warnings,
	}, nil
}

// collectBars fetches all symbols and merges them into one
// chronological stream. Timestamp ties across symbols are broken by
// symbol name so replay order is deterministic.
func (e *Engine) collectBars(ctx context.Context, cfg Config) ([]domain.Bar, domain.DataSource, []string, error) {
	var (
		bars       []domain.Bar
		warnings   []string
		dataSource = domain.DataSourceLive
	)

	for _, symbol := range cfg.Symbols {
		res, err := e.data.GetBars(ctx, symbol, cfg.Timeframe, cfg.Start, cfg.End)
		if err != nil {
			return nil, "", nil, err
		}
		bars = append(bars, res.Bars...)
		warnings = append(warnings, res.Warnings...)
		dataSource = dataSource.Worse(res.Source)
	}

	sort.SliceStable(bars, func(i, j int) bool {
		if !bars[i].OpenTime.Equal(bars[j].OpenTime) {
			return bars[i].OpenTime.Before(bars[j].OpenTime)
		}
		return bars[i].Symbol < bars[j].Symbol
	})

	return bars, dataSource, warnings, nil
}

// executeSignal sizes and applies one pending signal at the given
// bar's open. A rejected trade is a warning, not a run failure.
func (e *Engine) executeSignal(w *wallet.Wallet, cfg Config, strat strategy.Strategy, symbol string, sig domain.Signal, bar domain.Bar, lastPrices map[string]decimal.Decimal) string {
	if sig.SizeFraction.LessThanOrEqual(decimal.Zero) {
		return fmt.Sprintf("%s: signal with non-positive size fraction ignored", symbol)
	}

	side := domain.SideLong
	if sig.Action == domain.ActionSell {
		side = domain.SideShort
	}

	size := w.Equity(lastPrices).Mul(sig.SizeFraction).Div(bar.Open)
	if size.LessThanOrEqual(decimal.Zero) {
		return fmt.Sprintf("%s: signal sized to zero, ignored", symbol)
	}

	_, err := w.ExecuteTrade(wallet.TradeRequest{
		Symbol:         symbol,
		Side:           side,
		Size:           size,
		ReferencePrice: bar.Open,
		Timestamp:      bar.OpenTime,
		CommissionRate: cfg.CommissionRate,
		SlippageBps:    cfg.SlippageBps,
		MaxLeverage:    cfg.MaxLeverage,
		StrategyTag:    strat.Name(),
	})
	if err != nil {
		var insufficient *domain.InsufficientFundsError
		if errors.As(err, &insufficient) {
			e.logger.Warn("trade rejected", zap.Error(err))
			return err.Error()
		}
		return fmt.Sprintf("%s: trade failed: %v", symbol, err)
	}
	return ""
}

// onBarSafe shields the replay loop from strategy panics; they abort
// the run as a StrategyError instead of crashing the process.
func onBarSafe(strat strategy.Strategy, bar domain.Bar, window []domain.Bar, pos *domain.Position) (signals []domain.Signal, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic: %v", r)
		}
	}()
	return strat.OnBar(bar, window, pos)
}
