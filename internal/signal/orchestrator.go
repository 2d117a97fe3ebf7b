// Package signal selects a trading strategy and derives its decision and
// trade-price series from a price history.
package signal

import (
	"fmt"
	"time"

	"github.com/stratlab/backtest-backend/internal/indicator"
	"github.com/stratlab/backtest-backend/internal/series"
	"github.com/stratlab/backtest-backend/internal/tdseq"
	"github.com/stratlab/backtest-backend/pkg/types"
)

// Trades is the output of one orchestrator invocation. Decision is a 0/1
// series, TradePoint the price series trades would execute at, and MALines
// the named moving-average lines for display.
type Trades struct {
	Decision   series.Series
	TradePoint series.Series
	MALines    map[string]series.Series
}

// GetTrades derives buy or sell signals from a price history using the
// configured strategy. A nil startDate means the full history. The gap
// filter applies to moving-average strategies only; TD Sequential signals
// bypass it.
func GetTrades(history *series.PriceSeries, direction types.Direction, params types.StrategyParams, startDate *time.Time) (*Trades, error) {
	if history.Len() == 0 && params.Kind != types.StrategyHold {
		return nil, fmt.Errorf("signal: empty price history")
	}
	start := time.Time{}
	if history.Len() > 0 {
		start = history.First().Date
	}
	if startDate != nil {
		start = series.Day(*startDate)
	}

	scaling := params.Scaling
	if scaling == 0 {
		scaling = 1
	}

	var out *Trades
	var err error
	switch params.Kind {
	case types.StrategyHold:
		return &Trades{Decision: series.Empty(), TradePoint: series.Empty(), MALines: map[string]series.Series{}}, nil

	case types.StrategyMAOnPrice:
		out, err = maOnPrice(history, direction, params, scaling, start)

	case types.StrategyMACrossover:
		out, err = maCrossover(history, direction, params, start)

	case types.StrategyTDSequential:
		decision, tradePoint, tdErr := tdseq.Signals(history, direction, start)
		if tdErr != nil {
			return nil, tdErr
		}
		// TD signals are already spaced by construction; no gap filter.
		return &Trades{Decision: decision, TradePoint: tradePoint, MALines: map[string]series.Series{}}, nil

	default:
		return nil, fmt.Errorf("signal: unknown strategy %q", params.Kind)
	}
	if err != nil {
		return nil, err
	}

	out.Decision = indicator.GapFilter(out.Decision, params.GapDays)
	return out, nil
}

// maOnPrice trades where the daily price bound crosses a scaled moving
// average of the close: the High column against the line going long, the
// Low column going short.
func maOnPrice(history *series.PriceSeries, direction types.Direction, params types.StrategyParams, scaling float64, start time.Time) (*Trades, error) {
	span := 0
	if len(params.Spans) > 0 {
		span = params.Spans[0]
	}

	bound := history.ColumnSeries(series.ColHigh)
	crossDir := indicator.CrossUpward
	if direction == types.DirectionShort {
		bound = history.ColumnSeries(series.ColLow)
		crossDir = indicator.CrossDownward
	}
	bound = bound.From(start)

	line, label, err := maLine(history.Closes(), params.MA, span)
	if err != nil {
		return nil, err
	}
	line = line.Scale(scaling).From(start)

	decision, err := indicator.Crossover(bound, line, crossDir)
	if err != nil {
		return nil, err
	}

	return &Trades{
		Decision:   decision,
		TradePoint: line,
		MALines:    map[string]series.Series{label: line},
	}, nil
}

// maCrossover trades where a shorter-span moving average crosses a
// longer-span one; trades execute at the close.
func maCrossover(history *series.PriceSeries, direction types.Direction, params types.StrategyParams, start time.Time) (*Trades, error) {
	if len(params.Spans) < 2 {
		return nil, fmt.Errorf("signal: crossover strategy needs two spans, got %d", len(params.Spans))
	}

	maOne, labelOne, err := maLine(history.Closes(), params.MA, params.Spans[0])
	if err != nil {
		return nil, err
	}
	maTwo, labelTwo, err := maLine(history.Closes(), params.MA, params.Spans[1])
	if err != nil {
		return nil, err
	}

	crossDir := indicator.CrossUpward
	if direction == types.DirectionShort {
		crossDir = indicator.CrossDownward
	}
	decision, err := indicator.Crossover(maOne, maTwo, crossDir)
	if err != nil {
		return nil, err
	}
	decision = decision.From(start)

	return &Trades{
		Decision:   decision,
		TradePoint: history.Closes().From(start),
		MALines:    map[string]series.Series{labelOne: maOne, labelTwo: maTwo},
	}, nil
}

// maLine computes one moving-average line and its display label.
func maLine(closes series.Series, kind types.MAKind, span int) (series.Series, string, error) {
	switch kind {
	case types.MASimple:
		if span == 0 {
			span = indicator.DefaultSMASpan
		}
		line, err := indicator.SMA(closes, span)
		return line, fmt.Sprintf("SMA (%d)", span), err
	case types.MAExponential:
		if span == 0 {
			span = indicator.DefaultEMASpan
		}
		line, err := indicator.EMA(closes, span)
		return line, fmt.Sprintf("EMA (%d)", span), err
	default:
		return series.Empty(), "", fmt.Errorf("signal: unknown moving-average kind %q", kind)
	}
}
