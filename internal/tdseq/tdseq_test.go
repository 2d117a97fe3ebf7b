// Package tdseq_test provides tests for the TD Sequential indicator.
package tdseq_test

import (
	"testing"
	"time"

	"github.com/stratlab/backtest-backend/internal/series"
	"github.com/stratlab/backtest-backend/internal/tdseq"
	"github.com/stratlab/backtest-backend/pkg/types"
)

func day(i int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

// decliningHistory builds n consecutive daily bars with closes 100-i, so
// every setup and countdown comparison passes going long.
func decliningHistory(t *testing.T, n int) *series.PriceSeries {
	t.Helper()
	bars := make([]series.Bar, n)
	for i := range bars {
		c := 100.0 - float64(i)
		bars[i] = series.Bar{Date: day(i), Open: c, High: c + 1, Low: c - 1, Close: c}
	}
	ps, err := series.NewPriceSeries(bars)
	if err != nil {
		t.Fatalf("NewPriceSeries failed: %v", err)
	}
	return ps
}

func TestSignalsShortHistoryReachesNoThirteen(t *testing.T) {
	history := decliningHistory(t, 20)

	decision, _, err := tdseq.Signals(history, types.DirectionLong, day(0))
	if err != nil {
		t.Fatalf("Signals failed: %v", err)
	}

	// The setup counter starts at bar 4 and reaches 9 at bar 12; the window
	// opens 2 bars earlier and the countdown passes on every remaining bar,
	// reaching only count 8 by bar 19.
	if decision.Len() != 8 {
		t.Fatalf("Expected 8 countdown entries, got %d", decision.Len())
	}
	if !decision.Date(0).Equal(day(12)) {
		t.Errorf("Expected first countdown entry at %v, got %v", day(12), decision.Date(0))
	}
	for i := 0; i < decision.Len(); i++ {
		if decision.Value(i) != 0 {
			t.Errorf("Expected no signal at position %d, got %v", i, decision.Value(i))
		}
	}
}

func TestSignalsQualifyingThirteen(t *testing.T) {
	history := decliningHistory(t, 32)

	decision, tradePoint, err := tdseq.Signals(history, types.DirectionLong, day(0))
	if err != nil {
		t.Fatalf("Signals failed: %v", err)
	}

	// Countdown count 13 lands on bar 24. The qualifier holds: the 13's low
	// (75) sits under the count-8 close (81) and its close (76) under the
	// count-11 low (77).
	signals := 0
	for i := 0; i < decision.Len(); i++ {
		if decision.Value(i) == 1 {
			signals++
			if !decision.Date(i).Equal(day(24)) {
				t.Errorf("Expected signal at %v, got %v", day(24), decision.Date(i))
			}
		}
	}
	if signals != 1 {
		t.Errorf("Expected exactly 1 qualifying signal, got %d", signals)
	}

	if tradePoint.Len() != history.Len() {
		t.Errorf("Expected trade point over the full history, got %d points", tradePoint.Len())
	}
}

func TestSignalsShortDirection(t *testing.T) {
	bars := make([]series.Bar, 32)
	for i := range bars {
		c := 100.0 + float64(i)
		bars[i] = series.Bar{Date: day(i), Open: c, High: c + 1, Low: c - 1, Close: c}
	}
	history, err := series.NewPriceSeries(bars)
	if err != nil {
		t.Fatalf("NewPriceSeries failed: %v", err)
	}

	decision, _, err := tdseq.Signals(history, types.DirectionShort, day(0))
	if err != nil {
		t.Fatalf("Signals failed: %v", err)
	}

	signals := 0
	for i := 0; i < decision.Len(); i++ {
		if decision.Value(i) == 1 {
			signals++
			if !decision.Date(i).Equal(day(24)) {
				t.Errorf("Expected signal at %v, got %v", day(24), decision.Date(i))
			}
		}
	}
	if signals != 1 {
		t.Errorf("Expected exactly 1 qualifying signal, got %d", signals)
	}
}

func TestSignalsStartDateDropsQualifierContext(t *testing.T) {
	history := decliningHistory(t, 32)

	// Truncating past the count-8 bar removes the qualifier's reference
	// bars, so the 13 is rejected rather than guessed at.
	decision, _, err := tdseq.Signals(history, types.DirectionLong, day(22))
	if err != nil {
		t.Fatalf("Signals failed: %v", err)
	}

	for i := 0; i < decision.Len(); i++ {
		if decision.Value(i) != 0 {
			t.Errorf("Expected no signal at position %d, got %v", i, decision.Value(i))
		}
		if decision.Date(i).Before(day(22)) {
			t.Errorf("Expected no entries before the start date, got %v", decision.Date(i))
		}
	}
}

func TestSignalsEmptyHistory(t *testing.T) {
	history, err := series.NewPriceSeries(nil)
	if err != nil {
		t.Fatalf("NewPriceSeries failed: %v", err)
	}

	decision, _, err := tdseq.Signals(history, types.DirectionLong, day(0))
	if err != nil {
		t.Fatalf("Signals failed: %v", err)
	}
	if !decision.IsEmpty() {
		t.Errorf("Expected empty decision series, got %d points", decision.Len())
	}
}
