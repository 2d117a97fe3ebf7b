package indicator

import (
	"time"

	"github.com/stratlab/backtest-backend/internal/series"
)

// GapFilter suppresses repeated 1s in a decision series that fall within
// gapDays bars of a surviving 1. The scan runs left to right in a single
// pass: the first 1 of a cluster survives and re-arms suppression for the
// next window. gapDays of 0 passes the series through unchanged.
func GapFilter(decisions series.Series, gapDays int) series.Series {
	if gapDays <= 0 {
		return decisions
	}

	n := decisions.Len()
	dates := make([]time.Time, n)
	values := make([]float64, n)
	suppressUntil := -1
	for i := 0; i < n; i++ {
		dates[i] = decisions.Date(i)
		if decisions.Value(i) != 1 {
			values[i] = 0
			continue
		}
		if i <= suppressUntil {
			values[i] = 0
			continue
		}
		values[i] = 1
		suppressUntil = i + gapDays
	}
	return series.New(dates, values)
}
