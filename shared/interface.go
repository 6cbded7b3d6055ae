package shared

import (
	"context"
	"time"
)

// MarketFetcher defines the requirements for fetching market candle data.
type MarketFetcher interface {
	// FetchCandles fetches historical candle data for the provided market and
	// timeframe over the given range, ordered by timestamp.
	FetchCandles(ctx context.Context, market string, timeframe Timeframe, start time.Time, end time.Time) ([]Candlestick, error)
}

// StrategyEngine defines the requirements for producing strategy signals.
// Implementations are external collaborators, the simulator only consumes
// their output.
type StrategyEngine interface {
	// ExecuteStrategy produces a signal for the provided market tick.
	ExecuteStrategy(ctx context.Context, candle *Candlestick) (Signal, error)
	// StrategyContext returns the optional contextual strategy state for the
	// provided market tick, used by contextual exit rules.
	StrategyContext(ctx context.Context, candle *Candlestick) (*StrategyContext, error)
	// Name returns the strategy name.
	Name() string
}
