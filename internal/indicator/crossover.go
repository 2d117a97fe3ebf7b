package indicator

import (
	"fmt"
	"time"

	"github.com/stratlab/backtest-backend/internal/series"
)

// CrossDirection selects which way a cross must resolve.
type CrossDirection string

const (
	CrossUpward   CrossDirection = "upward"
	CrossDownward CrossDirection = "downward"
)

// Crossover marks where one crosses two in the requested direction. The two
// inputs must be aligned to the same date index.
//
// The comparison is forward-shifted for parity with historical reports: the
// signal at bar t confirms the cross using bar t+1, so a marked bar is known
// only in hindsight. A causal reinterpretation would use the backward shift
// instead; that is a deliberate behavior change, not a bug fix, and must not
// be made silently.
func Crossover(one, two series.Series, direction CrossDirection) (series.Series, error) {
	if one.Len() != two.Len() {
		return series.Empty(), fmt.Errorf("crossover: misaligned inputs (%d vs %d points)", one.Len(), two.Len())
	}

	n := one.Len()
	dates := make([]time.Time, n)
	values := make([]float64, n)
	for i := 0; i < n; i++ {
		dates[i] = one.Date(i)
		if i+1 >= n {
			values[i] = 0
			continue
		}
		var crossed bool
		switch direction {
		case CrossUpward:
			crossed = one.Value(i) < two.Value(i) && one.Value(i+1) > two.Value(i+1)
		case CrossDownward:
			crossed = one.Value(i) > two.Value(i) && one.Value(i+1) < two.Value(i+1)
		default:
			return series.Empty(), fmt.Errorf("crossover: unknown direction %q", direction)
		}
		if crossed {
			values[i] = 1
		}
	}
	return series.New(dates, values), nil
}
