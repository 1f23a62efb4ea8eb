// Package performance turns a finished equity curve and trade ledger
// into risk-adjusted summary statistics. All functions are pure and
// deterministic.
package performance

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/retracehq/retrace/internal/domain"
)

// Report summary statistics of one backtest run. Ratio fields are nil
// when their denominator is degenerate (zero volatility, no losing
// trades) rather than infinite or NaN.
type Report struct {
	TotalReturn         float64        `json:"total_return"`
	AnnualizedReturn    float64        `json:"annualized_return"`
	SharpeRatio         *float64       `json:"sharpe_ratio"`
	SortinoRatio        *float64       `json:"sortino_ratio"`
	MaxDrawdown         float64        `json:"max_drawdown"`
	MaxDrawdownDuration time.Duration  `json:"max_drawdown_duration"`
	DrawdownOngoing     bool           `json:"drawdown_ongoing"`
	WinRate             float64        `json:"win_rate"`
	ProfitFactor        *float64       `json:"profit_factor"`
	NoLosingTrades      bool           `json:"no_losing_trades"`
	TotalTrades         int            `json:"total_trades"`
	ClosedTrades        int            `json:"closed_trades"`
	WinningTrades       int            `json:"winning_trades"`
	FinalEquity         decimal.Decimal `json:"final_equity"`
}

// FromEquityCurve computes the report for a finished run.
// barsPerYear annualizes per-bar returns (e.g. 8760 for 1h bars).
func FromEquityCurve(curve []domain.EquitySnapshot, trades []domain.Trade, barsPerYear float64) Report {
	report := Report{}
	if len(curve) == 0 {
		return report
	}

	initial, _ := curve[0].TotalEquity.Float64()
	final, _ := curve[len(curve)-1].TotalEquity.Float64()
	report.FinalEquity = curve[len(curve)-1].TotalEquity

	if initial > 0 {
		report.TotalReturn = final/initial - 1
	}
	if len(curve) > 1 && barsPerYear > 0 {
		report.AnnualizedReturn = math.Pow(1+report.TotalReturn, barsPerYear/float64(len(curve))) - 1
	}

	returns := periodicReturns(curve)
	report.SharpeRatio = sharpe(returns, barsPerYear)
	report.SortinoRatio = sortino(returns, barsPerYear)

	report.MaxDrawdown, report.MaxDrawdownDuration, report.DrawdownOngoing = maxDrawdown(curve)

	report.TotalTrades = len(trades)
	fillTradeStats(&report, trades)

	return report
}

// periodicReturns computes simple returns between consecutive
// snapshots.
func periodicReturns(curve []domain.EquitySnapshot) []float64 {
	if len(curve) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev, _ := curve[i-1].TotalEquity.Float64()
		cur, _ := curve[i].TotalEquity.Float64()
		if prev > 0 {
			returns = append(returns, cur/prev-1)
		}
	}
	return returns
}

func sharpe(returns []float64, barsPerYear float64) *float64 {
	if len(returns) < 2 {
		return nil
	}
	m := mean(returns)
	sd := stdev(returns, m)
	if sd == 0 {
		return nil
	}
	v := m / sd * math.Sqrt(barsPerYear)
	return &v
}

func sortino(returns []float64, barsPerYear float64) *float64 {
	if len(returns) < 2 {
		return nil
	}
	var negatives []float64
	for _, r := range returns {
		if r < 0 {
			negatives = append(negatives, r)
		}
	}
	if len(negatives) == 0 {
		return nil
	}
	dd := stdev(negatives, mean(negatives))
	if dd == 0 {
		return nil
	}
	v := mean(returns) / dd * math.Sqrt(barsPerYear)
	return &v
}

// maxDrawdown returns the deepest peak-to-trough decline as a fraction
// of the peak, the duration of that episode, and whether it was still
// unrecovered at the end of the curve.
func maxDrawdown(curve []domain.EquitySnapshot) (float64, time.Duration, bool) {
	if len(curve) == 0 {
		return 0, 0, false
	}

	peak, _ := curve[0].TotalEquity.Float64()
	peakTime := curve[0].Timestamp

	var (
		maxDD         float64
		episodeStart  time.Time
		episodeEnd    time.Time
		episodePeak   float64
		episodeClosed bool
	)

	for _, snap := range curve {
		equity, _ := snap.TotalEquity.Float64()
		if equity >= peak {
			if episodePeak == peak && !episodeClosed && maxDD > 0 {
				// the deepest episode so far just recovered
				episodeEnd = snap.Timestamp
				episodeClosed = true
			}
			peak = equity
			peakTime = snap.Timestamp
			continue
		}
		if peak > 0 {
			dd := (peak - equity) / peak
			if dd > maxDD {
				maxDD = dd
				episodeStart = peakTime
				episodeEnd = snap.Timestamp
				episodePeak = peak
				episodeClosed = false
			}
		}
	}

	if maxDD == 0 {
		return 0, 0, false
	}
	ongoing := !episodeClosed
	if ongoing {
		episodeEnd = curve[len(curve)-1].Timestamp
	}
	return maxDD, episodeEnd.Sub(episodeStart), ongoing
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stdev(values []float64, m float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}

func fillTradeStats(report *Report, trades []domain.Trade) {
	var (
		wins, losses     int
		winSum, lossSum  float64
	)
	for _, t := range trades {
		if t.RealizedPnL == nil {
			continue
		}
		report.ClosedTrades++
		pnl, _ := t.RealizedPnL.Float64()
		switch {
		case pnl > 0:
			wins++
			winSum += pnl
		case pnl < 0:
			losses++
			lossSum += pnl
		}
	}
	report.WinningTrades = wins
	if report.ClosedTrades > 0 {
		report.WinRate = float64(wins) / float64(report.ClosedTrades)
	}
	if losses == 0 {
		report.NoLosingTrades = true
		return
	}
	pf := winSum / math.Abs(lossSum)
	report.ProfitFactor = &pf
}
