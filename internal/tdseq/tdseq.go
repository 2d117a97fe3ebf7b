// Package tdseq implements the TD Sequential entry indicator: a two-phase
// counter over daily closes producing discrete entry signals at qualifying
// countdown-13 bars. Countdown cancellation and recycling are not
// implemented. See https://oxfordstrat.com/indicators/td-sequential-3/ for
// background on the indicator family.
package tdseq

import (
	"sort"
	"time"

	"github.com/stratlab/backtest-backend/internal/series"
	"github.com/stratlab/backtest-backend/pkg/types"
)

const (
	setupLookback     = 4
	setupTarget       = 9
	countdownLookback = 2
	countdownTarget   = 13
	windowDays        = 35
)

// entry is one countdown observation: a bar that passed the countdown test,
// tagged with its running count inside the window.
type entry struct {
	date  time.Time
	pos   int // bar position in the price series
	count int
}

// Signals scans a price history in the given polarity and returns a 0/1
// decision series with 1 exactly at qualifying TD-13 dates, together with
// the raw close series as the trade-point reference. The decision index is
// truncated to start at startDate.
//
// Both counter phases and the qualifier run in single linear passes; no
// per-window rescan of the full history occurs.
func Signals(history *series.PriceSeries, direction types.Direction, startDate time.Time) (series.Series, series.Series, error) {
	closes := history.Closes()
	if history.Len() == 0 {
		return series.Empty(), closes, nil
	}
	long := direction == types.DirectionLong

	nines := setupNines(history, long)
	entries := countdownEntries(history, nines, long)

	// First occurrence wins where windows overlap.
	seen := make(map[time.Time]bool, len(entries))
	deduped := entries[:0]
	for _, e := range entries {
		if seen[e.date] {
			continue
		}
		seen[e.date] = true
		deduped = append(deduped, e)
	}
	sort.SliceStable(deduped, func(i, j int) bool { return deduped[i].date.Before(deduped[j].date) })

	start := series.Day(startDate)
	trimmed := deduped[:0]
	for _, e := range deduped {
		if !e.date.Before(start) {
			trimmed = append(trimmed, e)
		}
	}

	qualified := qualifyThirteens(history, trimmed, long)

	dates := make([]time.Time, len(trimmed))
	values := make([]float64, len(trimmed))
	for i, e := range trimmed {
		dates[i] = e.date
		if e.count == countdownTarget && qualified[e.date] {
			values[i] = 1
		}
	}
	return series.New(dates, values), closes, nil
}

// setupNines runs the setup phase and returns the bar positions where the
// consecutive counter reaches 9. The first 4 bars have no comparison and
// hold the counter at zero.
func setupNines(history *series.PriceSeries, long bool) []int {
	var nines []int
	count := 0
	for i := setupLookback; i < history.Len(); i++ {
		cur := history.Bar(i).Close
		ref := history.Bar(i - setupLookback).Close
		ok := cur < ref
		if !long {
			ok = cur > ref
		}
		if ok {
			count++
		} else {
			count = 0
		}
		if count == setupTarget {
			nines = append(nines, i)
		}
	}
	return nines
}

// countdownEntries opens one countdown window per TD-9 event and collects
// the bars that pass the two-bars-back close test, each tagged with its
// running count. A window starts 2 bars before its TD-9 and ends at the
// earlier of the next TD-9 date and 35 calendar days after the window
// start, plus one day to capture ties.
func countdownEntries(history *series.PriceSeries, nines []int, long bool) []entry {
	var entries []entry
	for k, ninePos := range nines {
		startPos := ninePos - countdownLookback
		if startPos < 0 {
			startPos = 0
		}
		endDate := history.Date(startPos).AddDate(0, 0, windowDays)
		if k+1 < len(nines) {
			if next := history.Date(nines[k+1]); next.Before(endDate) {
				endDate = next
			}
		}
		endDate = endDate.AddDate(0, 0, 1)

		count := 0
		for i := startPos + countdownLookback; i < history.Len() && !history.Date(i).After(endDate); i++ {
			cur := history.Bar(i).Close
			var passed bool
			if long {
				passed = cur < history.Bar(i-countdownLookback).Low
			} else {
				passed = cur > history.Bar(i-countdownLookback).High
			}
			if passed {
				count++
				entries = append(entries, entry{date: history.Date(i), pos: i, count: count})
			}
		}
	}
	return entries
}

// qualifyThirteens applies the TD-13 qualifier. For each provisional 13 the
// lookup span runs from the end of the previous qualifying window up to and
// including the countdown entry following the 13. A 13 whose span holds no
// count-8 or count-11 bar is rejected rather than treated as an error.
func qualifyThirteens(history *series.PriceSeries, entries []entry, long bool) map[time.Time]bool {
	qualified := make(map[time.Time]bool)
	prior := 0
	for i, e := range entries {
		if e.count != countdownTarget {
			continue
		}
		until := i
		if i+1 < len(entries) {
			until = i + 1
		}

		eightPos, elevenPos := -1, -1
		for j := prior; j <= until; j++ {
			switch entries[j].count {
			case 8:
				eightPos = entries[j].pos
			case 11:
				elevenPos = entries[j].pos
			}
		}
		prior = until
		if eightPos < 0 || elevenPos < 0 {
			continue
		}

		thirteen := history.Bar(e.pos)
		eightClose := history.Bar(eightPos).Close
		if long {
			elevenLow := history.Bar(elevenPos).Low
			if thirteen.Low <= eightClose && thirteen.Close <= elevenLow {
				qualified[e.date] = true
			}
		} else {
			elevenHigh := history.Bar(elevenPos).High
			if thirteen.High >= eightClose && thirteen.Close >= elevenHigh {
				qualified[e.date] = true
			}
		}
	}
	return qualified
}
