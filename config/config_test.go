package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retracehq/retrace/internal/domain"
)

const sampleYaml = `
- strategy:
    name: ema_cross
    params:
      fast_period: 9
      slow_period: 21
  symbols: [BTCUSDT, ETHUSDT]
  start: 2024-01-01
  end: 2024-06-30
  timeframe: 1h
  initial_capital: "10000"
  commission_rate: "0.002"
  slippage_bps: "5"
  max_leverage: "3"
- strategy:
    name: momentum
  symbols: [BTCUSDT]
  start: 2024-03-01T12:00:00Z
  end: 2024-04-01T12:00:00Z
  timeframe: 1d
  initial_capital: "1000"
`

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "backtests.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFromYamlFile(t *testing.T) {
	configs, err := FromYamlFile(writeTempConfig(t, sampleYaml))
	require.NoError(t, err)
	require.Len(t, configs, 2)

	first := configs[0]
	assert.Equal(t, "ema_cross", first.StrategyName)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, first.Symbols)
	assert.Equal(t, domain.Timeframe1h, first.Timeframe)
	assert.True(t, first.InitialCapital.Equal(decimal.NewFromInt(10000)))
	assert.True(t, first.CommissionRate.Equal(decimal.RequireFromString("0.002")))
	assert.True(t, first.SlippageBps.Equal(decimal.NewFromInt(5)))
	assert.True(t, first.MaxLeverage.Equal(decimal.NewFromInt(3)))
	assert.EqualValues(t, 9, first.StrategyParams["fast_period"])
	require.NoError(t, first.Validate())

	second := configs[1]
	assert.Equal(t, domain.Timeframe1d, second.Timeframe)
	// defaults applied when omitted
	assert.True(t, second.CommissionRate.Equal(decimal.RequireFromString("0.001")))
	assert.True(t, second.SlippageBps.Equal(decimal.NewFromInt(2)))
	assert.True(t, second.MaxLeverage.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, 12, second.Start.Hour())
	require.NoError(t, second.Validate())
}

func TestFromYamlFile_BadTimeframe(t *testing.T) {
	bad := `
- strategy: {name: momentum}
  symbols: [BTCUSDT]
  start: 2024-01-01
  end: 2024-02-01
  timeframe: 7m
  initial_capital: "1000"
`
	_, err := FromYamlFile(writeTempConfig(t, bad))
	assert.Error(t, err)
}

func TestFromYamlFile_BadDate(t *testing.T) {
	bad := `
- strategy: {name: momentum}
  symbols: [BTCUSDT]
  start: January 1st
  end: 2024-02-01
  timeframe: 1h
  initial_capital: "1000"
`
	_, err := FromYamlFile(writeTempConfig(t, bad))
	assert.Error(t, err)
}

func TestFromYamlFile_Missing(t *testing.T) {
	_, err := FromYamlFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
