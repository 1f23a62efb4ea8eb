package performance

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retracehq/retrace/internal/domain"
)

var curveStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func curveOf(equities ...string) []domain.EquitySnapshot {
	curve := make([]domain.EquitySnapshot, len(equities))
	for i, e := range equities {
		eq := decimal.RequireFromString(e)
		curve[i] = domain.EquitySnapshot{
			Timestamp:   curveStart.Add(time.Duration(i) * time.Hour),
			Cash:        eq,
			TotalEquity: eq,
		}
	}
	return curve
}

func closedTrade(pnl string) domain.Trade {
	p := decimal.RequireFromString(pnl)
	return domain.Trade{RealizedPnL: &p}
}

func TestFromEquityCurve_EmptyCurve(t *testing.T) {
	report := FromEquityCurve(nil, nil, 8760)
	assert.Zero(t, report.TotalReturn)
	assert.Nil(t, report.SharpeRatio)
	assert.Zero(t, report.MaxDrawdown)
}

func TestFromEquityCurve_TotalAndAnnualizedReturn(t *testing.T) {
	curve := curveOf("1000", "1050", "1100")
	report := FromEquityCurve(curve, nil, 8760)

	assert.InDelta(t, 0.1, report.TotalReturn, 1e-12)
	assert.Greater(t, report.AnnualizedReturn, report.TotalReturn,
		"a 10%% gain over three hourly bars annualizes far above 10%%")
}

func TestFromEquityCurve_FlatCurveHasNilSharpe(t *testing.T) {
	curve := curveOf("1000", "1000", "1000", "1000")
	report := FromEquityCurve(curve, nil, 8760)

	assert.Nil(t, report.SharpeRatio, "zero stdev must yield nil, not a crash")
	assert.Nil(t, report.SortinoRatio)
	assert.Zero(t, report.TotalReturn)
	assert.Zero(t, report.MaxDrawdown)
}

func TestFromEquityCurve_SortinoNilWithoutNegativeReturns(t *testing.T) {
	curve := curveOf("1000", "1010", "1030", "1060")
	report := FromEquityCurve(curve, nil, 8760)

	require.NotNil(t, report.SharpeRatio)
	assert.Positive(t, *report.SharpeRatio)
	assert.Nil(t, report.SortinoRatio, "no downside deviation to divide by")
}

func TestFromEquityCurve_MaxDrawdownRecovered(t *testing.T) {
	curve := curveOf("1000", "1100", "990", "1100", "1200")
	report := FromEquityCurve(curve, nil, 8760)

	// peak 1100 to trough 990
	assert.InDelta(t, 0.1, report.MaxDrawdown, 1e-12)
	assert.False(t, report.DrawdownOngoing)
	assert.Equal(t, 2*time.Hour, report.MaxDrawdownDuration)
}

func TestFromEquityCurve_MaxDrawdownOngoing(t *testing.T) {
	curve := curveOf("1000", "1200", "1100", "900")
	report := FromEquityCurve(curve, nil, 8760)

	assert.InDelta(t, 0.25, report.MaxDrawdown, 1e-12)
	assert.True(t, report.DrawdownOngoing)
	assert.Equal(t, 2*time.Hour, report.MaxDrawdownDuration)
}

func TestFromEquityCurve_DrawdownBounds(t *testing.T) {
	curves := [][]domain.EquitySnapshot{
		curveOf("1000"),
		curveOf("1000", "1", "1000"),
		curveOf("1000", "2000", "500", "3000", "100"),
		curveOf("100", "100", "100"),
	}
	for i, curve := range curves {
		report := FromEquityCurve(curve, nil, 365)
		assert.GreaterOrEqual(t, report.MaxDrawdown, 0.0, "curve %d", i)
		assert.LessOrEqual(t, report.MaxDrawdown, 1.0, "curve %d", i)
	}
}

func TestFromEquityCurve_TradeStats(t *testing.T) {
	trades := []domain.Trade{
		{},                   // opening fill, not closed
		closedTrade("50"),
		closedTrade("-20"),
		closedTrade("30"),
		closedTrade("-10"),
	}
	report := FromEquityCurve(curveOf("1000", "1050"), trades, 8760)

	assert.Equal(t, 5, report.TotalTrades)
	assert.Equal(t, 4, report.ClosedTrades)
	assert.Equal(t, 2, report.WinningTrades)
	assert.InDelta(t, 0.5, report.WinRate, 1e-12)
	require.NotNil(t, report.ProfitFactor)
	assert.InDelta(t, 80.0/30.0, *report.ProfitFactor, 1e-12)
	assert.False(t, report.NoLosingTrades)
}

func TestFromEquityCurve_ProfitFactorNilWithoutLosses(t *testing.T) {
	trades := []domain.Trade{closedTrade("50"), closedTrade("30")}
	report := FromEquityCurve(curveOf("1000", "1080"), trades, 8760)

	assert.Nil(t, report.ProfitFactor, "no losing trades must yield nil, not infinity")
	assert.True(t, report.NoLosingTrades)
	assert.InDelta(t, 1.0, report.WinRate, 1e-12)
}

func TestFromEquityCurve_Deterministic(t *testing.T) {
	curve := curveOf("1000", "1040", "980", "1100", "1060")
	trades := []domain.Trade{closedTrade("40"), closedTrade("-25")}

	first := FromEquityCurve(curve, trades, 8760)
	second := FromEquityCurve(curve, trades, 8760)
	assert.Equal(t, first, second)
}
