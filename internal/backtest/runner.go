// Package backtest wires signal generation and ledger accounting into full
// backtest runs over stored price histories.
package backtest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/stratlab/backtest-backend/internal/data"
	"github.com/stratlab/backtest-backend/internal/dca"
	"github.com/stratlab/backtest-backend/internal/ledger"
	"github.com/stratlab/backtest-backend/internal/series"
	"github.com/stratlab/backtest-backend/internal/signal"
	"github.com/stratlab/backtest-backend/internal/workers"
	"github.com/stratlab/backtest-backend/pkg/types"
)

// DefaultTradeSize is the notional per trade when a request leaves it unset.
var DefaultTradeSize = decimal.NewFromInt(1000)

// Runner executes backtest runs against the data store.
type Runner struct {
	logger *zap.Logger
	store  *data.Store
	pool   *workers.Pool
}

// NewRunner creates a backtest runner.
func NewRunner(logger *zap.Logger, store *data.Store, pool *workers.Pool) *Runner {
	return &Runner{logger: logger, store: store, pool: pool}
}

// Run executes one backtest: derive buy signals long over the full history,
// derive sell signals short from the start date, and feed both into the
// ledger. Buy signals before the start date are discarded after derivation so
// long-span indicators still warm up on the full history.
func (r *Runner) Run(ctx context.Context, req *types.RunRequest) (*types.RunResult, error) {
	if req.Symbol == "" {
		return nil, errors.New("backtest: symbol is required")
	}
	startedAt := time.Now()

	history, err := r.store.LoadHistory(ctx, req.Symbol)
	if err != nil {
		return nil, err
	}
	if history.Len() == 0 {
		return nil, errors.New("backtest: no price history for " + req.Symbol)
	}

	start := history.First().Date
	if req.StartDate != nil {
		start = series.Day(*req.StartDate)
	}
	tradeSize := req.TradeSize
	if tradeSize.LessThanOrEqual(decimal.Zero) {
		tradeSize = DefaultTradeSize
	}

	buyTrades, err := signal.GetTrades(history, types.DirectionLong, req.Buy, nil)
	if err != nil {
		return nil, err
	}
	buySeries := buyTrades.TradePoint.Mul(buyTrades.Decision).NonZero().From(start)

	sellTrades, err := signal.GetTrades(history, types.DirectionShort, req.Sell, &start)
	if err != nil {
		return nil, err
	}
	sellSeries := sellTrades.TradePoint.Mul(sellTrades.Decision).NonZero()

	rows, err := ledger.Calculate(history, buySeries, sellSeries, tradeSize, req.AllowFractional, req.SellAll)
	if err != nil {
		return nil, err
	}

	id := req.ID
	if id == "" {
		id = uuid.New().String()
	}
	completedAt := time.Now()

	r.logger.Info("backtest completed",
		zap.String("id", id),
		zap.String("symbol", req.Symbol),
		zap.Int("buys", buySeries.Len()),
		zap.Int("sells", sellSeries.Len()),
		zap.Duration("duration", completedAt.Sub(startedAt)),
	)

	return &types.RunResult{
		ID:          id,
		Request:     req,
		Ledger:      rows,
		Summary:     ledger.Summarize(rows),
		BuyLines:    toPointLines(buyTrades.MALines),
		SellLines:   toPointLines(sellTrades.MALines),
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		Duration:    completedAt.Sub(startedAt),
	}, nil
}

// Sweep runs a batch of backtests on the worker pool. Results line up with
// the requests; the first failure is returned alongside whatever completed.
func (r *Runner) Sweep(ctx context.Context, reqs []*types.RunRequest) ([]*types.RunResult, error) {
	results := make([]*types.RunResult, len(reqs))
	errs := make([]error, len(reqs))

	var wg sync.WaitGroup
	for i, req := range reqs {
		i, req := i, req
		wg.Add(1)
		if err := r.pool.SubmitFunc(func() error {
			defer wg.Done()
			results[i], errs[i] = r.Run(ctx, req)
			return errs[i]
		}); err != nil {
			wg.Done()
			errs[i] = err
		}
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// DCA builds a dollar-cost-averaging report over a symbol's stored history.
func (r *Runner) DCA(ctx context.Context, req *types.DCARequest) ([]dca.Row, []time.Time, error) {
	if req.Symbol == "" {
		return nil, nil, errors.New("backtest: symbol is required")
	}
	history, err := r.store.LoadHistory(ctx, req.Symbol)
	if err != nil {
		return nil, nil, err
	}
	return dca.Report(history, *req)
}

// toPointLines converts named indicator lines to plottable point slices.
func toPointLines(lines map[string]series.Series) map[string][]types.Point {
	out := make(map[string][]types.Point, len(lines))
	for name, line := range lines {
		clean := line.DropNaN()
		points := make([]types.Point, clean.Len())
		for i := 0; i < clean.Len(); i++ {
			points[i] = types.Point{Date: clean.Date(i), Value: clean.Value(i)}
		}
		out[name] = points
	}
	return out
}
