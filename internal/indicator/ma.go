// Package indicator provides the moving-average library, the crossover
// detector and the signal gap filter used by the signal orchestrator.
package indicator

import (
	"fmt"
	"math"
	"time"

	"github.com/stratlab/backtest-backend/internal/series"
)

// Default spans applied when a caller passes span 0.
const (
	DefaultSMASpan = 200
	DefaultEMASpan = 25
)

// SMA computes the simple moving average of a series over a trailing window
// of span observations. The first span-1 points carry NaN.
func SMA(s series.Series, span int) (series.Series, error) {
	if span == 0 {
		span = DefaultSMASpan
	}
	if span < 1 {
		return series.Empty(), fmt.Errorf("sma: span must be >= 1, got %d", span)
	}

	n := s.Len()
	dates := make([]time.Time, n)
	values := make([]float64, n)
	sum := 0.0
	for i := 0; i < n; i++ {
		dates[i] = s.Date(i)
		sum += s.Value(i)
		if i >= span {
			sum -= s.Value(i - span)
		}
		if i >= span-1 {
			values[i] = sum / float64(span)
		} else {
			values[i] = math.NaN()
		}
	}
	return series.New(dates, values), nil
}

// EMA computes the exponentially weighted average of a series. The decay is
// derived from span as alpha = 1/(1+span), with weights renormalized over the
// observed prefix so early values are unbiased.
func EMA(s series.Series, span int) (series.Series, error) {
	if span == 0 {
		span = DefaultEMASpan
	}
	if span < 1 {
		return series.Empty(), fmt.Errorf("ema: span must be >= 1, got %d", span)
	}

	alpha := 1.0 / (1.0 + float64(span))
	decay := 1.0 - alpha

	n := s.Len()
	dates := make([]time.Time, n)
	values := make([]float64, n)
	var num, den float64
	for i := 0; i < n; i++ {
		dates[i] = s.Date(i)
		num = s.Value(i) + decay*num
		den = 1.0 + decay*den
		values[i] = num / den
	}
	return series.New(dates, values), nil
}
