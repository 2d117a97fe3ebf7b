// Package types provides shared type definitions for the backtest backend.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction represents the polarity of a signal scan.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// StrategyKind identifies a signal-generation strategy.
type StrategyKind string

const (
	StrategyHold         StrategyKind = "hold"
	StrategyMAOnPrice    StrategyKind = "ma_on_price"
	StrategyMACrossover  StrategyKind = "ma_crossover"
	StrategyTDSequential StrategyKind = "td_sequential"
)

// MAKind identifies a moving-average flavor.
type MAKind string

const (
	MASimple      MAKind = "sma"
	MAExponential MAKind = "ema"
)

// Decision labels a ledger row.
type Decision string

const (
	DecisionBuy     Decision = "Buy"
	DecisionSell    Decision = "Sell"
	DecisionClosing Decision = "Closing Statement"
)

// LedgerRow is one row of the trade-by-trade PnL ledger.
type LedgerRow struct {
	Date         time.Time       `json:"date"`
	Price        decimal.Decimal `json:"price"`
	Decision     Decision        `json:"decision"`
	ShareDiff    decimal.Decimal `json:"shareDiff"`
	ClosingPrice decimal.Decimal `json:"closingPrice"`
	ShareBalance decimal.Decimal `json:"shareBalance"`
	BalanceValue decimal.Decimal `json:"balanceValue"`
	CashBalance  decimal.Decimal `json:"cashBalance"`
	CostBasis    decimal.Decimal `json:"costBasis"`
	TradeValue   decimal.Decimal `json:"tradeValue"`
	UPNL         decimal.Decimal `json:"upnl"`
	RPNL         decimal.Decimal `json:"rpnl"`
}

// StrategyParams configures one side (buy or sell) of a backtest run.
type StrategyParams struct {
	Kind    StrategyKind `json:"kind"`
	MA      MAKind       `json:"ma,omitempty"`
	Spans   []int        `json:"spans,omitempty"`
	Scaling float64      `json:"scaling,omitempty"`
	GapDays int          `json:"gapDays,omitempty"`
}

// RunRequest describes a single backtest run.
type RunRequest struct {
	ID              string          `json:"id,omitempty"`
	Symbol          string          `json:"symbol"`
	StartDate       *time.Time      `json:"startDate,omitempty"`
	Buy             StrategyParams  `json:"buy"`
	Sell            StrategyParams  `json:"sell"`
	TradeSize       decimal.Decimal `json:"tradeSize"`
	AllowFractional bool            `json:"allowFractional"`
	SellAll         bool            `json:"sellAll"`
}

// RunSummary is the closing-position digest of a ledger.
type RunSummary struct {
	ShareBalance    decimal.Decimal `json:"shareBalance"`
	BalanceValue    decimal.Decimal `json:"balanceValue"`
	CashBalance     decimal.Decimal `json:"cashBalance"`
	CumulativeSpend decimal.Decimal `json:"cumulativeSpend"`
	RPNL            decimal.Decimal `json:"rpnl"`
	UPNL            decimal.Decimal `json:"upnl"`
	TotalValue      decimal.Decimal `json:"totalValue"`
}

// Point is one (date, value) pair of a plotted line.
type Point struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// RunResult is the outcome of a backtest run.
type RunResult struct {
	ID          string             `json:"id"`
	Request     *RunRequest        `json:"request"`
	Ledger      []LedgerRow        `json:"ledger"`
	Summary     RunSummary         `json:"summary"`
	BuyLines    map[string][]Point `json:"buyLines,omitempty"`
	SellLines   map[string][]Point `json:"sellLines,omitempty"`
	StartedAt   time.Time          `json:"startedAt"`
	CompletedAt time.Time          `json:"completedAt"`
	Duration    time.Duration      `json:"duration"`
}

// DCARequest describes a dollar-cost-averaging report run.
type DCARequest struct {
	Symbol          string          `json:"symbol"`
	StartDate       *time.Time      `json:"startDate,omitempty"`
	Weekday         time.Weekday    `json:"weekday"`
	PurchaseColumn  string          `json:"purchaseColumn"` // "open" or "close"
	IntervalWeeks   int             `json:"intervalWeeks"`
	Spend           decimal.Decimal `json:"spend"`
	AllowFractional bool            `json:"allowFractional"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	WebSocketPath  string        `json:"websocketPath"`
	ReadTimeout    time.Duration `json:"readTimeout"`
	WriteTimeout   time.Duration `json:"writeTimeout"`
	MaxConnections int           `json:"maxConnections"`
}

// DataConfig represents price-history storage configuration.
type DataConfig struct {
	DataDir string `json:"dataDir"`
}
