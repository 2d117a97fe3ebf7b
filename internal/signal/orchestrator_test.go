// Package signal_test provides tests for the strategy orchestrator.
package signal_test

import (
	"testing"
	"time"

	"github.com/stratlab/backtest-backend/internal/series"
	"github.com/stratlab/backtest-backend/internal/signal"
	"github.com/stratlab/backtest-backend/pkg/types"
)

func day(i int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

func history(t *testing.T, bars []series.Bar) *series.PriceSeries {
	t.Helper()
	ps, err := series.NewPriceSeries(bars)
	if err != nil {
		t.Fatalf("NewPriceSeries failed: %v", err)
	}
	return ps
}

func flatHistory(t *testing.T, n int, close float64) *series.PriceSeries {
	t.Helper()
	bars := make([]series.Bar, n)
	for i := range bars {
		bars[i] = series.Bar{Date: day(i), Open: close, High: close, Low: close, Close: close}
	}
	return history(t, bars)
}

func TestGetTradesHold(t *testing.T) {
	trades, err := signal.GetTrades(flatHistory(t, 5, 100), types.DirectionLong, types.StrategyParams{Kind: types.StrategyHold}, nil)
	if err != nil {
		t.Fatalf("GetTrades failed: %v", err)
	}

	if !trades.Decision.IsEmpty() || !trades.TradePoint.IsEmpty() {
		t.Error("Expected hold strategy to produce empty series")
	}
	if len(trades.MALines) != 0 {
		t.Errorf("Expected no MA lines, got %d", len(trades.MALines))
	}
}

func TestGetTradesUnknownStrategy(t *testing.T) {
	_, err := signal.GetTrades(flatHistory(t, 5, 100), types.DirectionLong, types.StrategyParams{Kind: "martingale"}, nil)
	if err == nil {
		t.Error("Expected error for unknown strategy, got nil")
	}
}

func TestGetTradesEmptyHistory(t *testing.T) {
	empty := history(t, nil)
	params := types.StrategyParams{Kind: types.StrategyMAOnPrice, MA: types.MASimple, Spans: []int{2}}

	if _, err := signal.GetTrades(empty, types.DirectionLong, params, nil); err == nil {
		t.Error("Expected error for empty history, got nil")
	}
}

func TestGetTradesMAOnPrice(t *testing.T) {
	// Flat closes pin the SMA at 10; the highs dip under it then jump over.
	bars := []series.Bar{
		{Date: day(0), High: 9, Low: 8, Close: 10},
		{Date: day(1), High: 9, Low: 8, Close: 10},
		{Date: day(2), High: 11, Low: 8, Close: 10},
		{Date: day(3), High: 11, Low: 8, Close: 10},
	}
	params := types.StrategyParams{Kind: types.StrategyMAOnPrice, MA: types.MASimple, Spans: []int{2}}

	trades, err := signal.GetTrades(history(t, bars), types.DirectionLong, params, nil)
	if err != nil {
		t.Fatalf("GetTrades failed: %v", err)
	}

	line, ok := trades.MALines["SMA (2)"]
	if !ok {
		t.Fatalf("Expected MA line named 'SMA (2)', got %v", keys(trades.MALines))
	}
	if line.Len() != 4 {
		t.Errorf("Expected 4 line points, got %d", line.Len())
	}

	signals := 0
	for i := 0; i < trades.Decision.Len(); i++ {
		if trades.Decision.Value(i) == 1 {
			signals++
			if !trades.Decision.Date(i).Equal(day(1)) {
				t.Errorf("Expected signal at %v, got %v", day(1), trades.Decision.Date(i))
			}
		}
	}
	if signals != 1 {
		t.Errorf("Expected exactly 1 signal, got %d", signals)
	}
}

func TestGetTradesMAOnPriceUnknownMAKind(t *testing.T) {
	params := types.StrategyParams{Kind: types.StrategyMAOnPrice, Spans: []int{2}}

	if _, err := signal.GetTrades(flatHistory(t, 5, 100), types.DirectionLong, params, nil); err == nil {
		t.Error("Expected error for missing MA kind, got nil")
	}
}

func TestGetTradesMACrossoverNeedsTwoSpans(t *testing.T) {
	params := types.StrategyParams{Kind: types.StrategyMACrossover, MA: types.MASimple, Spans: []int{5}}

	if _, err := signal.GetTrades(flatHistory(t, 10, 100), types.DirectionLong, params, nil); err == nil {
		t.Error("Expected error for single span, got nil")
	}
}

func TestGetTradesMACrossover(t *testing.T) {
	// A decline drags the short SMA under the long one, then a rally pushes
	// it back over.
	closes := []float64{40, 30, 20, 10, 10, 40, 60, 60}
	bars := make([]series.Bar, len(closes))
	for i, c := range closes {
		bars[i] = series.Bar{Date: day(i), Open: c, High: c, Low: c, Close: c}
	}
	params := types.StrategyParams{Kind: types.StrategyMACrossover, MA: types.MASimple, Spans: []int{2, 4}}

	trades, err := signal.GetTrades(history(t, bars), types.DirectionLong, params, nil)
	if err != nil {
		t.Fatalf("GetTrades failed: %v", err)
	}

	if len(trades.MALines) != 2 {
		t.Errorf("Expected 2 MA lines, got %d", len(trades.MALines))
	}
	if trades.TradePoint.Len() != len(closes) {
		t.Errorf("Expected trade point on closes, got %d points", trades.TradePoint.Len())
	}

	signals := 0
	for i := 0; i < trades.Decision.Len(); i++ {
		if trades.Decision.Value(i) == 1 {
			signals++
		}
	}
	if signals == 0 {
		t.Error("Expected at least one crossover signal")
	}
}

func TestGetTradesGapFilterApplied(t *testing.T) {
	// Highs straddle the flat SMA twice in quick succession; the gap filter
	// keeps only the first signal.
	highs := []float64{9, 11, 9, 11, 9, 11}
	bars := make([]series.Bar, len(highs))
	for i, h := range highs {
		bars[i] = series.Bar{Date: day(i), High: h, Low: 8, Close: 10}
	}
	params := types.StrategyParams{Kind: types.StrategyMAOnPrice, MA: types.MASimple, Spans: []int{2}}

	unfiltered, err := signal.GetTrades(history(t, bars), types.DirectionLong, params, nil)
	if err != nil {
		t.Fatalf("GetTrades failed: %v", err)
	}

	params.GapDays = 10
	filtered, err := signal.GetTrades(history(t, bars), types.DirectionLong, params, nil)
	if err != nil {
		t.Fatalf("GetTrades failed: %v", err)
	}

	if count(unfiltered.Decision) <= count(filtered.Decision) {
		t.Errorf("Expected gap filter to drop signals, got %d unfiltered vs %d filtered",
			count(unfiltered.Decision), count(filtered.Decision))
	}
	if count(filtered.Decision) != 1 {
		t.Errorf("Expected 1 surviving signal, got %d", count(filtered.Decision))
	}
}

func count(s series.Series) int {
	n := 0
	for i := 0; i < s.Len(); i++ {
		if s.Value(i) == 1 {
			n++
		}
	}
	return n
}

func keys(m map[string]series.Series) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
