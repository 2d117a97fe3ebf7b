// Package ledger converts buy and sell signal series into a trade-by-trade
// PnL ledger with lot accounting carried across sell tranches.
package ledger

import (
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stratlab/backtest-backend/internal/series"
	"github.com/stratlab/backtest-backend/pkg/types"
)

var one = decimal.NewFromInt(1)

// carryover is the position state threaded from one sell tranche into the
// next.
type carryover struct {
	shareBalance decimal.Decimal
	balanceValue decimal.Decimal
	cashBalance  decimal.Decimal
	costBasis    decimal.Decimal
}

// event is a single dated trade signal with its execution price.
type event struct {
	date  time.Time
	price decimal.Decimal
	sell  bool
}

// Calculate produces the PnL ledger for the given buy and sell price series.
// Buys and sells carry the execution price at each signal date. TradeSize is
// the notional per trade; without allowFractional share counts floor to whole
// shares with a minimum of one. With sellAll each sell liquidates the whole
// position, carried-over balance included. Sells never take the share balance
// negative: an oversized sell is clamped to the shares available.
func Calculate(history *series.PriceSeries, buys, sells series.Series, tradeSize decimal.Decimal, allowFractional, sellAll bool) ([]types.LedgerRow, error) {
	if buys.IsEmpty() {
		return []types.LedgerRow{emptyClosingRow()}, nil
	}
	if history == nil || history.Len() == 0 {
		return nil, errors.New("ledger: empty price history")
	}

	events := mergeEvents(buys, sells)
	closes := history.Closes()

	var (
		rows     []types.LedgerRow
		carry    carryover
		cumRPNL  decimal.Decimal
		lastRow  types.LedgerRow
		haveRows bool
	)

	i := 0
	for i < len(events) {
		// A tranche runs from the first unprocessed event through the
		// next sell, or to the end of the events when no sell remains.
		end := i
		for end < len(events) && !events[end].sell {
			end++
		}

		cumShares := decimal.Zero
		cumCost := decimal.Zero
		costBasis := carry.costBasis

		last := end
		if last >= len(events) {
			last = len(events) - 1
		}
		for k := i; k <= last; k++ {
			ev := events[k]
			closing := closeAt(closes, ev.date, ev.price)

			var diff decimal.Decimal
			if ev.sell {
				available := carry.shareBalance.Add(cumShares)
				if sellAll {
					diff = available.Neg()
				} else {
					want := tradeShares(tradeSize, ev.price, allowFractional)
					if want.GreaterThan(available) {
						want = available
					}
					diff = want.Neg()
				}
			} else {
				diff = tradeShares(tradeSize, ev.price, allowFractional)
				cumCost = cumCost.Add(ev.price.Mul(diff))
			}
			cumShares = cumShares.Add(diff)

			shareBalance := carry.shareBalance.Add(cumShares.Round(2))
			if !ev.sell && !shareBalance.IsZero() {
				held := carry.shareBalance.Mul(carry.costBasis)
				costBasis = held.Add(cumCost).Div(shareBalance).Round(4)
			}

			cash := carry.cashBalance
			decision := types.DecisionBuy
			if ev.sell {
				decision = types.DecisionSell
				proceeds := diff.Neg().Mul(ev.price).Round(2)
				cash = carry.cashBalance.Add(proceeds)
				cumRPNL = cumRPNL.Add(ev.price.Sub(costBasis).Mul(diff.Neg()).Round(2))
			}

			row := types.LedgerRow{
				Date:         ev.date,
				Price:        ev.price,
				Decision:     decision,
				ShareDiff:    diff,
				ClosingPrice: closing,
				ShareBalance: shareBalance,
				BalanceValue: shareBalance.Mul(closing).Round(2),
				CashBalance:  cash,
				CostBasis:    costBasis,
				TradeValue:   diff.Mul(ev.price).Round(2),
				UPNL:         closing.Sub(costBasis).Mul(shareBalance).Round(2),
				RPNL:         cumRPNL,
			}
			rows = append(rows, row)
			lastRow = row
			haveRows = true

			if ev.sell {
				carry = carryover{
					shareBalance: row.ShareBalance,
					balanceValue: row.BalanceValue,
					cashBalance:  row.CashBalance,
					costBasis:    row.CostBasis,
				}
			}
		}
		i = last + 1
	}

	// Signals the clamp reduced to nothing leave no trade behind.
	kept := rows[:0]
	for _, row := range rows {
		if !row.TradeValue.IsZero() {
			kept = append(kept, row)
		}
	}
	rows = kept

	lastClose := decimal.NewFromFloat(history.Last().Close)
	closingRow := types.LedgerRow{
		Date:         history.Last().Date,
		Price:        lastClose,
		Decision:     types.DecisionClosing,
		ClosingPrice: lastClose,
		RPNL:         cumRPNL,
	}
	if haveRows {
		closingRow.ShareBalance = lastRow.ShareBalance
		closingRow.CashBalance = lastRow.CashBalance
		closingRow.CostBasis = lastRow.CostBasis
		closingRow.BalanceValue = lastRow.ShareBalance.Mul(lastClose).Round(2)
		closingRow.UPNL = lastClose.Sub(lastRow.CostBasis).Mul(lastRow.ShareBalance).Round(2)
	}
	return append(rows, closingRow), nil
}

// Summarize reduces a ledger to its closing-position digest. Cumulative
// spend is the sum of buy trade values; total value is cash plus unrealized
// gains on the open position.
func Summarize(rows []types.LedgerRow) types.RunSummary {
	var summary types.RunSummary
	if len(rows) == 0 {
		return summary
	}
	for _, row := range rows {
		if row.Decision == types.DecisionBuy {
			summary.CumulativeSpend = summary.CumulativeSpend.Add(row.TradeValue)
		}
	}
	last := rows[len(rows)-1]
	summary.ShareBalance = last.ShareBalance
	summary.BalanceValue = last.BalanceValue
	summary.CashBalance = last.CashBalance
	summary.RPNL = last.RPNL
	summary.UPNL = last.UPNL
	summary.TotalValue = last.CashBalance.Add(last.UPNL)
	return summary
}

// mergeEvents interleaves buy and sell signals in date order. On a shared
// date the buy sorts first so the sell can liquidate it.
func mergeEvents(buys, sells series.Series) []event {
	events := make([]event, 0, buys.Len()+sells.Len())
	for i := 0; i < buys.Len(); i++ {
		events = append(events, event{date: buys.Date(i), price: decimal.NewFromFloat(buys.Value(i))})
	}
	for i := 0; i < sells.Len(); i++ {
		events = append(events, event{date: sells.Date(i), price: decimal.NewFromFloat(sells.Value(i)), sell: true})
	}
	sort.SliceStable(events, func(a, b int) bool { return events[a].date.Before(events[b].date) })
	return events
}

// tradeShares converts a notional trade size into a share count at the given
// price. Whole-share mode floors the quotient and buys at least one share.
func tradeShares(tradeSize, price decimal.Decimal, allowFractional bool) decimal.Decimal {
	if price.IsZero() {
		return decimal.Zero
	}
	shares := tradeSize.Div(price)
	if allowFractional {
		return shares
	}
	whole := shares.Floor()
	if whole.LessThan(one) {
		whole = one
	}
	return whole
}

// closeAt resolves the closing price on a given date, falling back to the
// trade price when the date is not in the history.
func closeAt(closes series.Series, date time.Time, fallback decimal.Decimal) decimal.Decimal {
	if v, ok := closes.At(date); ok {
		return decimal.NewFromFloat(v)
	}
	return fallback
}

// emptyClosingRow is the ledger for a run that never generated a buy.
func emptyClosingRow() types.LedgerRow {
	return types.LedgerRow{
		Date:     series.Day(time.Now().UTC()),
		Decision: types.DecisionClosing,
	}
}
