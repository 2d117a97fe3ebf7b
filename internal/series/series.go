// Package series provides date-indexed price and signal series.
//
// A PriceSeries is an immutable, strictly date-ascending sequence of daily
// bars. A Series is an ordered sequence of (date, value) pairs aligned to a
// subset of those dates; math.NaN marks "no value" (warm-up windows, failed
// indicator tests). Consumers look up by date and treat a missing date as
// "no signal".
package series

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Bar is a single daily price bar. Auxiliary feed columns (dividends,
// splits) are stripped before a Bar is constructed.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Day truncates a timestamp to its calendar day in UTC. All series dates are
// normalized through it so lookups are timezone-naive.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// PriceSeries is an ordered, date-unique sequence of bars.
type PriceSeries struct {
	bars   []Bar
	byDate map[time.Time]int
}

// NewPriceSeries builds a PriceSeries from bars. Bars are sorted by date;
// duplicate dates are rejected.
func NewPriceSeries(bars []Bar) (*PriceSeries, error) {
	sorted := make([]Bar, len(bars))
	copy(sorted, bars)
	for i := range sorted {
		sorted[i].Date = Day(sorted[i].Date)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	byDate := make(map[time.Time]int, len(sorted))
	for i, b := range sorted {
		if _, ok := byDate[b.Date]; ok {
			return nil, fmt.Errorf("duplicate bar date %s", b.Date.Format("2006-01-02"))
		}
		byDate[b.Date] = i
	}

	return &PriceSeries{bars: sorted, byDate: byDate}, nil
}

// Len returns the number of bars.
func (p *PriceSeries) Len() int { return len(p.bars) }

// Bar returns the bar at position i.
func (p *PriceSeries) Bar(i int) Bar { return p.bars[i] }

// Date returns the date at position i.
func (p *PriceSeries) Date(i int) time.Time { return p.bars[i].Date }

// IndexOf returns the position of a date, if present.
func (p *PriceSeries) IndexOf(date time.Time) (int, bool) {
	i, ok := p.byDate[Day(date)]
	return i, ok
}

// First returns the earliest bar. The series must be non-empty.
func (p *PriceSeries) First() Bar { return p.bars[0] }

// Last returns the latest bar. The series must be non-empty.
func (p *PriceSeries) Last() Bar { return p.bars[len(p.bars)-1] }

// Column identifies a bar field usable as a numeric series.
type Column string

const (
	ColOpen   Column = "open"
	ColHigh   Column = "high"
	ColLow    Column = "low"
	ColClose  Column = "close"
	ColVolume Column = "volume"
)

// Column returns the named field of the bar, defaulting to Close.
func (b Bar) Column(col Column) float64 {
	switch col {
	case ColOpen:
		return b.Open
	case ColHigh:
		return b.High
	case ColLow:
		return b.Low
	case ColVolume:
		return b.Volume
	default:
		return b.Close
	}
}

// ColumnSeries extracts one column as a Series aligned to the bar dates.
func (p *PriceSeries) ColumnSeries(col Column) Series {
	dates := make([]time.Time, len(p.bars))
	values := make([]float64, len(p.bars))
	for i, b := range p.bars {
		dates[i] = b.Date
		values[i] = b.Column(col)
	}
	return Series{dates: dates, values: values}
}

// Closes returns the Close column as a Series.
func (p *PriceSeries) Closes() Series { return p.ColumnSeries(ColClose) }

// Series is an ordered sequence of (date, value) pairs.
type Series struct {
	dates  []time.Time
	values []float64
}

// New builds a Series from parallel date and value slices.
func New(dates []time.Time, values []float64) Series {
	if len(dates) != len(values) {
		panic("series: date/value length mismatch")
	}
	d := make([]time.Time, len(dates))
	v := make([]float64, len(values))
	for i := range dates {
		d[i] = Day(dates[i])
		v[i] = values[i]
	}
	return Series{dates: d, values: v}
}

// Empty returns an empty Series.
func Empty() Series { return Series{} }

// Len returns the number of pairs.
func (s Series) Len() int { return len(s.dates) }

// IsEmpty reports whether the series has no pairs.
func (s Series) IsEmpty() bool { return len(s.dates) == 0 }

// Date returns the date at position i.
func (s Series) Date(i int) time.Time { return s.dates[i] }

// Value returns the value at position i.
func (s Series) Value(i int) float64 { return s.values[i] }

// At returns the value for a date, if present. Dates are ascending, so the
// lookup is a binary search.
func (s Series) At(date time.Time) (float64, bool) {
	if i, ok := s.IndexOf(date); ok {
		return s.values[i], true
	}
	return math.NaN(), false
}

// IndexOf returns the position of a date, if present.
func (s Series) IndexOf(date time.Time) (int, bool) {
	d := Day(date)
	i := sort.Search(len(s.dates), func(i int) bool { return !s.dates[i].Before(d) })
	if i < len(s.dates) && s.dates[i].Equal(d) {
		return i, true
	}
	return 0, false
}

// From returns the suffix with dates on or after the given date.
func (s Series) From(date time.Time) Series {
	d := Day(date)
	i := sort.Search(len(s.dates), func(i int) bool { return !s.dates[i].Before(d) })
	return Series{dates: s.dates[i:], values: s.values[i:]}
}

// Until returns the prefix with dates on or before the given date.
func (s Series) Until(date time.Time) Series {
	d := Day(date)
	i := sort.Search(len(s.dates), func(i int) bool { return s.dates[i].After(d) })
	return Series{dates: s.dates[:i], values: s.values[:i]}
}

// Scale returns a copy with every value multiplied by factor.
func (s Series) Scale(factor float64) Series {
	values := make([]float64, len(s.values))
	for i, v := range s.values {
		values[i] = v * factor
	}
	return Series{dates: s.dates, values: values}
}

// DropNaN returns a copy without NaN-valued pairs.
func (s Series) DropNaN() Series {
	dates := make([]time.Time, 0, len(s.dates))
	values := make([]float64, 0, len(s.values))
	for i, v := range s.values {
		if !math.IsNaN(v) {
			dates = append(dates, s.dates[i])
			values = append(values, v)
		}
	}
	return Series{dates: dates, values: values}
}

// NonZero returns a copy keeping only pairs with non-zero, non-NaN values.
func (s Series) NonZero() Series {
	dates := make([]time.Time, 0, len(s.dates))
	values := make([]float64, 0, len(s.values))
	for i, v := range s.values {
		if !math.IsNaN(v) && v != 0 {
			dates = append(dates, s.dates[i])
			values = append(values, v)
		}
	}
	return Series{dates: dates, values: values}
}

// Mul multiplies two series pairwise over s's index. Dates absent from other
// yield NaN.
func (s Series) Mul(other Series) Series {
	values := make([]float64, len(s.values))
	for i, d := range s.dates {
		if ov, ok := other.At(d); ok {
			values[i] = s.values[i] * ov
		} else {
			values[i] = math.NaN()
		}
	}
	return Series{dates: s.dates, values: values}
}
