// Package dca produces dollar-cost-averaging purchase reports: a fixed
// recurring spend on a chosen weekday, accumulated into a running position.
package dca

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stratlab/backtest-backend/internal/series"
	"github.com/stratlab/backtest-backend/pkg/types"
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Row is one purchase (or the closing valuation) of a DCA report.
type Row struct {
	Date            time.Time       `json:"date"`
	Price           decimal.Decimal `json:"price"`
	SharesBought    decimal.Decimal `json:"sharesBought"`
	ShareBalance    decimal.Decimal `json:"shareBalance"`
	CostBasis       decimal.Decimal `json:"costBasis"`
	CumulativeSpend decimal.Decimal `json:"cumulativeSpend"`
	UPNL            decimal.Decimal `json:"upnl"`
	Value           decimal.Decimal `json:"value"`
	ROE             decimal.Decimal `json:"roe"`
}

// Report builds the purchase schedule and running position for a recurring
// buy. One row per purchase date, plus a terminal row valuing the position
// at the last bar's close. Spend that buys less than one whole share still
// buys one when fractional shares are disabled.
func Report(history *series.PriceSeries, req types.DCARequest) ([]Row, []time.Time, error) {
	if history == nil || history.Len() == 0 {
		return nil, nil, errors.New("dca: empty price history")
	}
	if req.Spend.LessThanOrEqual(decimal.Zero) {
		return nil, nil, fmt.Errorf("dca: spend must be positive, got %s", req.Spend)
	}

	col, err := purchaseColumn(req.PurchaseColumn)
	if err != nil {
		return nil, nil, err
	}

	start := history.First().Date
	if req.StartDate != nil {
		start = series.Day(*req.StartDate)
	}
	interval := req.IntervalWeeks
	if interval < 1 {
		interval = 1
	}

	dates := purchaseDates(history, start, req.Weekday, interval)
	if len(dates) == 0 {
		return nil, dates, nil
	}

	var (
		rows     = make([]Row, 0, len(dates)+1)
		balance  decimal.Decimal
		cumSpend decimal.Decimal
		basis    decimal.Decimal
	)
	for _, date := range dates {
		idx, _ := history.IndexOf(date)
		price := decimal.NewFromFloat(history.Bar(idx).Column(col))
		if price.IsZero() {
			continue
		}

		shares := req.Spend.Div(price)
		if !req.AllowFractional {
			shares = shares.Floor()
			if shares.LessThan(one) {
				shares = one
			}
		}
		spent := shares.Mul(price).Round(2)

		balance = balance.Add(shares)
		cumSpend = cumSpend.Add(spent)
		basis = cumSpend.Div(balance).Round(4)

		rows = append(rows, valuation(date, price, shares, balance, basis, cumSpend))
	}

	last := history.Last()
	lastClose := decimal.NewFromFloat(last.Close)
	rows = append(rows, valuation(last.Date, lastClose, decimal.Zero, balance, basis, cumSpend))
	return rows, dates, nil
}

// valuation marks a position to the given price.
func valuation(date time.Time, price, shares, balance, basis, cumSpend decimal.Decimal) Row {
	value := balance.Mul(price).Round(2)
	row := Row{
		Date:            date,
		Price:           price,
		SharesBought:    shares,
		ShareBalance:    balance,
		CostBasis:       basis,
		CumulativeSpend: cumSpend,
		UPNL:            price.Sub(basis).Mul(balance).Round(2),
		Value:           value,
	}
	if cumSpend.IsPositive() {
		row.ROE = value.Div(cumSpend).Sub(one).Mul(hundred).Round(2)
	}
	return row
}

// purchaseDates walks the history from start and keeps every interval-th bar
// that lands on the requested weekday.
func purchaseDates(history *series.PriceSeries, start time.Time, weekday time.Weekday, interval int) []time.Time {
	var dates []time.Time
	kept := 0
	for i := 0; i < history.Len(); i++ {
		date := history.Date(i)
		if date.Before(start) || date.Weekday() != weekday {
			continue
		}
		if kept%interval == 0 {
			dates = append(dates, date)
		}
		kept++
	}
	return dates
}

func purchaseColumn(name string) (series.Column, error) {
	switch name {
	case "", "close":
		return series.ColClose, nil
	case "open":
		return series.ColOpen, nil
	default:
		return "", fmt.Errorf("dca: unknown purchase column %q", name)
	}
}
