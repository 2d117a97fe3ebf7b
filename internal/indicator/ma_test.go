// Package indicator_test provides tests for the moving-average library.
package indicator_test

import (
	"math"
	"testing"
	"time"

	"github.com/stratlab/backtest-backend/internal/indicator"
	"github.com/stratlab/backtest-backend/internal/series"
)

func day(i int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

func valueSeries(values ...float64) series.Series {
	dates := make([]time.Time, len(values))
	for i := range values {
		dates[i] = day(i)
	}
	return series.New(dates, values)
}

func TestSMA(t *testing.T) {
	s := valueSeries(1, 2, 3, 4, 5)

	sma, err := indicator.SMA(s, 2)
	if err != nil {
		t.Fatalf("SMA failed: %v", err)
	}

	if !math.IsNaN(sma.Value(0)) {
		t.Errorf("Expected NaN warm-up at position 0, got %v", sma.Value(0))
	}
	expected := []float64{1.5, 2.5, 3.5, 4.5}
	for i, want := range expected {
		if got := sma.Value(i + 1); math.Abs(got-want) > 1e-9 {
			t.Errorf("Expected %v at position %d, got %v", want, i+1, got)
		}
	}
}

func TestSMADefaultSpan(t *testing.T) {
	s := valueSeries(1, 2, 3)

	// Span 0 falls back to the 200-day default, so a short series is all warm-up
	sma, err := indicator.SMA(s, 0)
	if err != nil {
		t.Fatalf("SMA failed: %v", err)
	}
	for i := 0; i < sma.Len(); i++ {
		if !math.IsNaN(sma.Value(i)) {
			t.Errorf("Expected NaN at position %d, got %v", i, sma.Value(i))
		}
	}
}

func TestSMARejectsNegativeSpan(t *testing.T) {
	if _, err := indicator.SMA(valueSeries(1, 2), -1); err == nil {
		t.Error("Expected error for negative span, got nil")
	}
}

func TestEMA(t *testing.T) {
	s := valueSeries(2, 4)

	ema, err := indicator.EMA(s, 1)
	if err != nil {
		t.Fatalf("EMA failed: %v", err)
	}

	if got := ema.Value(0); got != 2 {
		t.Errorf("Expected first value to equal first input, got %v", got)
	}
	// span 1 gives alpha 1/2: (0.5*2 + 1*4) / 1.5
	want := 10.0 / 3.0
	if got := ema.Value(1); math.Abs(got-want) > 1e-9 {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestEMAHasNoWarmUpGap(t *testing.T) {
	s := valueSeries(10, 11, 12, 13)

	ema, err := indicator.EMA(s, 25)
	if err != nil {
		t.Fatalf("EMA failed: %v", err)
	}
	for i := 0; i < ema.Len(); i++ {
		if math.IsNaN(ema.Value(i)) {
			t.Errorf("Expected finite value at position %d", i)
		}
	}
}
