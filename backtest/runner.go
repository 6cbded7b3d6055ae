package backtest

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/avasek/simtrade/marketdata"
	"github.com/avasek/simtrade/position"
	"github.com/avasek/simtrade/shared"
	"github.com/avasek/simtrade/stats"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	// defaultMaxConcurrent bounds the number of markets replayed in
	// parallel.
	defaultMaxConcurrent = 4
	// checkpointInterval is the number of bars between cooperative yields
	// during replay.
	checkpointInterval = 500
)

// RunnerConfig represents the backtest runner configuration.
type RunnerConfig struct {
	// MarketData supplies candle windows.
	MarketData *marketdata.Manager
	// Positions converts signals into position operations.
	Positions *position.Manager
	// Strategy produces the signals under test.
	Strategy shared.StrategyEngine
	// Profile parametrizes asset specific details.
	Profile AssetProfile
	// MaxConcurrent bounds parallel market replays.
	MaxConcurrent int
	// Logger represents the application logger.
	Logger zerolog.Logger
}

// Runner replays historical candles through the strategy and position
// pipeline and aggregates the results. Bars for one market are processed
// strictly in timestamp order, distinct markets replay in parallel.
type Runner struct {
	cfg *RunnerConfig
}

// NewRunner initializes a new backtest runner.
func NewRunner(cfg *RunnerConfig) (*Runner, error) {
	if cfg.MarketData == nil {
		return nil, fmt.Errorf("market data manager cannot be nil")
	}
	if cfg.Positions == nil {
		return nil, fmt.Errorf("position manager cannot be nil")
	}
	if cfg.Strategy == nil {
		return nil, fmt.Errorf("strategy engine cannot be nil")
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaultMaxConcurrent
	}

	return &Runner{
		cfg: cfg,
	}, nil
}

// HandleBar advances the simulation with one bar: exit conditions for the
// open position are evaluated first, then the strategy signal for the bar is
// applied. It returns the trades closed by the bar.
func (r *Runner) HandleBar(ctx context.Context, candle *shared.Candlestick) ([]*shared.Trade, error) {
	sctx, err := r.cfg.Strategy.StrategyContext(ctx, candle)
	if err != nil {
		// Contextual exit rules tolerate absent strategy state.
		r.cfg.Logger.Debug().Msgf("no strategy context for %s @ %s: %v",
			candle.Market, candle.Date.Format(time.RFC3339), err)
		sctx = nil
	}

	var closed []*shared.Trade

	exited, err := r.cfg.Positions.ProcessTick(ctx, candle, sctx)
	if err != nil {
		return nil, err
	}
	if exited != nil {
		closed = append(closed, exited)
	}

	signal, err := r.cfg.Strategy.ExecuteStrategy(ctx, candle)
	if err != nil {
		return closed, fmt.Errorf("executing strategy for %s: %w", candle.Market, err)
	}

	reversed, _, err := r.cfg.Positions.ProcessSignal(ctx, &signal, candle)
	if err != nil {
		return closed, err
	}
	if reversed != nil {
		closed = append(closed, reversed)
	}

	return closed, nil
}

// tradeFees returns the fees charged for the provided trade under the
// configured asset profile, one taker fill per side on one unit of exposure.
func (r *Runner) tradeFees(trade *shared.Trade) float64 {
	return (trade.EntryPrice + trade.ExitPrice) * r.cfg.Profile.FeeRate
}

// runMarket replays the provided date range for one market. Cancellation is
// checked at every bar boundary, a cancelled replay leaves no partially
// recorded trade behind.
func (r *Runner) runMarket(ctx context.Context, market string, timeframe shared.Timeframe, start time.Time, end time.Time) (*Summary, error) {
	window, err := r.cfg.MarketData.FetchWindow(ctx, market, timeframe, start, end)
	if err != nil {
		return nil, err
	}

	var totalFees float64
	for idx := range window {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if idx > 0 && idx%checkpointInterval == 0 {
			runtime.Gosched()
		}

		closed, err := r.HandleBar(ctx, &window[idx])
		if err != nil {
			return nil, err
		}

		for k := range closed {
			totalFees += r.tradeFees(closed[k])
		}
	}

	trades := make([]*shared.Trade, 0)
	for _, trade := range r.cfg.Positions.Trades() {
		if trade.Market == market {
			trades = append(trades, trade)
		}
	}

	summary := &Summary{
		Strategy:  r.cfg.Strategy.Name(),
		Mode:      "historical",
		Market:    market,
		Timeframe: timeframe.String(),
		Report:    stats.Compute(trades),
		TotalFees: totalFees,
		StartDate: start,
		EndDate:   end,
		TotalDays: end.Sub(start).Hours() / 24,
		CreatedAt: time.Now().UTC(),
	}

	r.cfg.Logger.Info().Msgf("backtest for %s done: %d trades, net %.2f",
		market, summary.Report.TotalTrades, summary.Report.NetProfit)

	return summary, nil
}

// Run replays the provided date range for every market, in parallel up to
// the configured bound. One market's failure is reported in the result and
// does not abort the others.
func (r *Runner) Run(ctx context.Context, markets []string, timeframe shared.Timeframe, start time.Time, end time.Time) (*Result, error) {
	if len(markets) == 0 {
		return nil, fmt.Errorf("no markets provided for backtest")
	}
	if !end.After(start) {
		return nil, fmt.Errorf("backtest range end %s must be after start %s",
			end.Format(time.RFC3339), start.Format(time.RFC3339))
	}

	summaries := make([]*Summary, len(markets))
	errs := make([]error, len(markets))

	var g errgroup.Group
	g.SetLimit(r.cfg.MaxConcurrent)

	for idx := range markets {
		g.Go(func() error {
			summary, err := r.runMarket(ctx, markets[idx], timeframe, start, end)
			summaries[idx] = summary
			errs[idx] = err
			return nil
		})
	}

	// Goroutines report failures through their result slots.
	_ = g.Wait()

	result := &Result{
		Summaries: make(map[string]*Summary),
		Errors:    make(map[string]error),
	}

	for idx := range markets {
		if errs[idx] != nil {
			r.cfg.Logger.Error().Msgf("backtesting %s: %v", markets[idx], errs[idx])
			result.Errors[markets[idx]] = errs[idx]
			continue
		}

		result.Summaries[markets[idx]] = summaries[idx]
	}

	return result, nil
}
