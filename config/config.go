// Package config loads backtest run definitions from a yaml file.
package config

import (
	"flag"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/retracehq/retrace/internal/domain"
	"github.com/retracehq/retrace/internal/engine"
)

const (
	defaultCommissionRate = "0.001"
	defaultSlippageBps    = "2"
	defaultMaxLeverage    = "1"
)

type strategyTmp struct {
	Name   string             `yaml:"name"`
	Params map[string]float64 `yaml:"params,omitempty"`
}

type runTmp struct {
	Strategy       strategyTmp `yaml:"strategy"`
	Symbols        []string    `yaml:"symbols"`
	Start          string      `yaml:"start"`
	End            string      `yaml:"end"`
	Timeframe      string      `yaml:"timeframe"`
	InitialCapital string      `yaml:"initial_capital"`
	CommissionRate string      `yaml:"commission_rate,omitempty"`
	SlippageBps    string      `yaml:"slippage_bps,omitempty"`
	MaxLeverage    string      `yaml:"max_leverage,omitempty"`
}

// Get reads run configs from the path given by the -config flag.
func Get() ([]engine.Config, error) {
	path := flag.String("config", "backtests.yaml", "path to yaml config")
	flag.Parse()
	return FromYamlFile(*path)
}

// FromYamlFile parses run configs from a yaml file.
func FromYamlFile(path string) ([]engine.Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}

	var tmp []runTmp
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return nil, errors.Wrap(err, "parse yaml config")
	}

	configs := make([]engine.Config, 0, len(tmp))
	for i, t := range tmp {
		cfg, err := t.toConfig()
		if err != nil {
			return nil, errors.Wrapf(err, "config entry %d", i)
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

func (t runTmp) toConfig() (engine.Config, error) {
	tf, err := domain.ParseTimeframe(t.Timeframe)
	if err != nil {
		return engine.Config{}, err
	}

	start, err := parseDate(t.Start)
	if err != nil {
		return engine.Config{}, errors.Wrap(err, "parse start date")
	}
	end, err := parseDate(t.End)
	if err != nil {
		return engine.Config{}, errors.Wrap(err, "parse end date")
	}

	capital, err := decimal.NewFromString(t.InitialCapital)
	if err != nil {
		return engine.Config{}, errors.Wrap(err, "parse initial_capital")
	}

	commission, err := decimalOr(t.CommissionRate, defaultCommissionRate)
	if err != nil {
		return engine.Config{}, errors.Wrap(err, "parse commission_rate")
	}
	slippage, err := decimalOr(t.SlippageBps, defaultSlippageBps)
	if err != nil {
		return engine.Config{}, errors.Wrap(err, "parse slippage_bps")
	}
	leverage, err := decimalOr(t.MaxLeverage, defaultMaxLeverage)
	if err != nil {
		return engine.Config{}, errors.Wrap(err, "parse max_leverage")
	}

	return engine.Config{
		Symbols:        t.Symbols,
		Timeframe:      tf,
		Start:          start,
		End:            end,
		InitialCapital: capital,
		CommissionRate: commission,
		SlippageBps:    slippage,
		MaxLeverage:    leverage,
		StrategyName:   t.Strategy.Name,
		StrategyParams: t.Strategy.Params,
	}, nil
}

// parseDate accepts ISO-8601 dates with or without a time component.
func parseDate(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UTC(), nil
	}
	ts, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, err
	}
	return ts.UTC(), nil
}

func decimalOr(s, def string) (decimal.Decimal, error) {
	if s == "" {
		s = def
	}
	return decimal.NewFromString(s)
}
