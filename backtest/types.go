package backtest

import (
	"time"

	"github.com/avasek/simtrade/stats"
)

// AssetProfile parametrizes the engine over asset specific details so one
// engine serves every asset family.
type AssetProfile struct {
	// Name identifies the asset family.
	Name string
	// TickSize is the minimum price increment.
	TickSize float64
	// FeeRate is the taker fee rate charged per fill, as a fraction of
	// notional.
	FeeRate float64
}

// SpotProfile is the default spot asset profile.
var SpotProfile = AssetProfile{
	Name:     "spot",
	TickSize: 0.01,
	FeeRate:  0.001,
}

// FuturesProfile is the default perpetual futures asset profile.
var FuturesProfile = AssetProfile{
	Name:     "futures",
	TickSize: 0.1,
	FeeRate:  0.0004,
}

// Summary represents the result of a backtest run for one market.
type Summary struct {
	Strategy  string
	Mode      string
	Market    string
	Timeframe string

	// Report carries the aggregate trade statistics.
	Report *stats.Report

	TotalFees float64
	StartDate time.Time
	EndDate   time.Time
	TotalDays float64
	CreatedAt time.Time
}

// Result represents the outcome of a multi-market backtest. Failures are
// isolated and reported per market, one market's failure does not abort the
// others.
type Result struct {
	Summaries map[string]*Summary
	Errors    map[string]error
}
