package indicator_test

import (
	"testing"
	"time"

	"github.com/stratlab/backtest-backend/internal/indicator"
	"github.com/stratlab/backtest-backend/internal/series"
)

func TestCrossoverUpward(t *testing.T) {
	one := valueSeries(1, 3, 3)
	two := valueSeries(2, 2, 2)

	cross, err := indicator.Crossover(one, two, indicator.CrossUpward)
	if err != nil {
		t.Fatalf("Crossover failed: %v", err)
	}

	// The cross is confirmed with the next bar, so the mark lands on the bar
	// before the lines actually swap order.
	if cross.Value(0) != 1 {
		t.Errorf("Expected cross at position 0, got %v", cross.Value(0))
	}
	if cross.Value(1) != 0 {
		t.Errorf("Expected no cross at position 1, got %v", cross.Value(1))
	}
}

func TestCrossoverDownward(t *testing.T) {
	one := valueSeries(3, 1, 1)
	two := valueSeries(2, 2, 2)

	cross, err := indicator.Crossover(one, two, indicator.CrossDownward)
	if err != nil {
		t.Fatalf("Crossover failed: %v", err)
	}

	if cross.Value(0) != 1 {
		t.Errorf("Expected cross at position 0, got %v", cross.Value(0))
	}
}

func TestCrossoverLastBarNeverSignals(t *testing.T) {
	one := valueSeries(1, 3)
	two := valueSeries(2, 2)

	cross, err := indicator.Crossover(one, two, indicator.CrossUpward)
	if err != nil {
		t.Fatalf("Crossover failed: %v", err)
	}
	if cross.Value(cross.Len()-1) != 0 {
		t.Error("Expected last bar to carry no signal")
	}
}

func TestCrossoverRejectsMisalignedInputs(t *testing.T) {
	if _, err := indicator.Crossover(valueSeries(1, 2), valueSeries(1), indicator.CrossUpward); err == nil {
		t.Error("Expected error for misaligned inputs, got nil")
	}
}

func TestCrossoverNaNWarmUpNeverSignals(t *testing.T) {
	closes := valueSeries(10, 10, 10, 20)
	sma, err := indicator.SMA(closes, 3)
	if err != nil {
		t.Fatalf("SMA failed: %v", err)
	}

	cross, err := indicator.Crossover(closes, sma, indicator.CrossUpward)
	if err != nil {
		t.Fatalf("Crossover failed: %v", err)
	}
	// Positions 0 and 1 compare against NaN warm-up values
	if cross.Value(0) != 0 || cross.Value(1) != 0 {
		t.Errorf("Expected warm-up positions to stay 0, got [%v %v]", cross.Value(0), cross.Value(1))
	}
}

func TestGapFilter(t *testing.T) {
	decisions := series.New(
		[]time.Time{day(0), day(1), day(2), day(3), day(4)},
		[]float64{1, 1, 0, 1, 1},
	)

	filtered := indicator.GapFilter(decisions, 2)
	expected := []float64{1, 0, 0, 1, 0}
	for i, want := range expected {
		if got := filtered.Value(i); got != want {
			t.Errorf("Expected %v at position %d, got %v", want, i, got)
		}
	}
}

func TestGapFilterSurvivorReArms(t *testing.T) {
	decisions := series.New(
		[]time.Time{day(0), day(1), day(2), day(3)},
		[]float64{1, 1, 1, 1},
	)

	filtered := indicator.GapFilter(decisions, 1)
	expected := []float64{1, 0, 1, 0}
	for i, want := range expected {
		if got := filtered.Value(i); got != want {
			t.Errorf("Expected %v at position %d, got %v", want, i, got)
		}
	}
}

func TestGapFilterZeroGapPassesThrough(t *testing.T) {
	decisions := series.New([]time.Time{day(0), day(1)}, []float64{1, 1})

	filtered := indicator.GapFilter(decisions, 0)
	if filtered.Value(0) != 1 || filtered.Value(1) != 1 {
		t.Error("Expected zero gap to pass decisions through unchanged")
	}
}
