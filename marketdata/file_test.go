package marketdata

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/avasek/simtrade/shared"
	"github.com/peterldowns/testy/assert"
)

const sampleDataFile = `{
  "market": "BTCUSDT",
  "15m": [
    {"date": "2024-05-01 10:00:00", "open": 100, "high": 102, "low": 99, "close": 101, "volume": 10},
    {"date": "2024-05-01 10:15:00", "open": 101, "high": 103, "low": 100, "close": 102, "volume": 12},
    {"date": "2024-05-01 10:30:00", "open": 102, "high": 104, "low": 101, "close": 103, "volume": 9}
  ],
  "1h": [
    {"date": "2024-05-01 10:00:00", "open": 100, "high": 104, "low": 99, "close": 103, "volume": 31}
  ]
}`

func writeDataFile(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "btcusdt.json")
	err := os.WriteFile(path, []byte(contents), 0o644)
	assert.NoError(t, err)

	return path
}

func TestNewFileFetcher(t *testing.T) {
	fetcher, err := NewFileFetcher(writeDataFile(t, sampleDataFile))
	assert.NoError(t, err)
	assert.Equal(t, "BTCUSDT", fetcher.Market())

	// Ensure a file with no market is rejected.
	_, err = NewFileFetcher(writeDataFile(t, `{"15m": []}`))
	assert.Error(t, err)

	// Ensure a file with no candles is rejected.
	_, err = NewFileFetcher(writeDataFile(t, `{"market": "BTCUSDT"}`))
	assert.Error(t, err)
}

func TestFileFetcherFetchCandles(t *testing.T) {
	fetcher, err := NewFileFetcher(writeDataFile(t, sampleDataFile))
	assert.NoError(t, err)

	ctx := context.Background()
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	candles, err := fetcher.FetchCandles(ctx, "BTCUSDT", shared.FifteenMinute, start, start.Add(time.Hour))
	assert.NoError(t, err)
	assert.Equal(t, 3, len(candles))
	assert.Equal(t, float64(101), candles[0].Close)

	// Derived fields are estimated for file data.
	assert.Equal(t, candles[0].Volume*candles[0].Close, candles[0].QuoteVolume)

	// The range bounds are respected.
	candles, err = fetcher.FetchCandles(ctx, "BTCUSDT", shared.FifteenMinute,
		start.Add(time.Minute*15), start.Add(time.Minute*15))
	assert.NoError(t, err)
	assert.Equal(t, 1, len(candles))

	// An unexpected market is rejected.
	_, err = fetcher.FetchCandles(ctx, "ETHUSDT", shared.FifteenMinute, start, start.Add(time.Hour))
	assert.Error(t, err)
}
