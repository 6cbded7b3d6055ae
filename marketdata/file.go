package marketdata

import (
	"context"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/avasek/simtrade/shared"
	"github.com/tidwall/gjson"
)

// FileFetcher serves candle data from a json file, used by backtests that
// replay captured market data without touching an exchange. The file holds
// the market name and one candle array per timeframe keyed by the timeframe
// string.
type FileFetcher struct {
	market  string
	candles map[shared.Timeframe][]shared.Candlestick
}

// Ensure the file fetcher implements the MarketFetcher interface.
var _ shared.MarketFetcher = (*FileFetcher)(nil)

// NewFileFetcher initializes a new file fetcher from the provided file path.
func NewFileFetcher(path string) (*FileFetcher, error) {
	readb, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading market data from file with path '%s': %v", path, err)
	}

	b := gjson.ParseBytes(readb)
	market := b.Get("market").String()
	if market == "" {
		return nil, fmt.Errorf("market data file '%s' has no market", path)
	}

	fetcher := &FileFetcher{
		market:  market,
		candles: make(map[shared.Timeframe][]shared.Candlestick),
	}

	timeframes := []shared.Timeframe{shared.OneMinute, shared.FiveMinute,
		shared.FifteenMinute, shared.OneHour, shared.FourHour, shared.OneDay}
	for idx := range timeframes {
		timeframe := timeframes[idx]

		data := b.Get(timeframe.String()).Array()
		if len(data) == 0 {
			continue
		}

		candles, err := shared.ParseCandlesticks(data, market, timeframe, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parsing %s candlesticks: %v", timeframe.String(), err)
		}

		slices.SortFunc(candles, func(a, b shared.Candlestick) int {
			return a.Date.Compare(b.Date)
		})

		fetcher.candles[timeframe] = candles
	}

	if len(fetcher.candles) == 0 {
		return nil, fmt.Errorf("market data file '%s' has no candles", path)
	}

	return fetcher, nil
}

// Market returns the market served by the fetcher.
func (f *FileFetcher) Market() string {
	return f.market
}

// FetchCandles fetches candle data for the provided market and timeframe
// over the given range.
func (f *FileFetcher) FetchCandles(ctx context.Context, market string, timeframe shared.Timeframe, start time.Time, end time.Time) ([]shared.Candlestick, error) {
	if market != f.market {
		return nil, fmt.Errorf("unexpected market %s requested from %s data file", market, f.market)
	}

	candles := f.candles[timeframe]
	set := make([]shared.Candlestick, 0, len(candles))
	for idx := range candles {
		date := candles[idx].Date
		if date.Before(start) {
			continue
		}
		if !end.IsZero() && date.After(end) {
			continue
		}

		set = append(set, candles[idx])
	}

	return set, nil
}
