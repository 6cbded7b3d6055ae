package marketdata

import (
	"testing"
	"time"

	"github.com/avasek/simtrade/shared"
	"github.com/peterldowns/testy/assert"
)

func windowOf(market string, n int) []shared.Candlestick {
	candles := make([]shared.Candlestick, n)
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for idx := range candles {
		candles[idx] = shared.Candlestick{
			Market:    market,
			Timeframe: shared.FifteenMinute,
			Close:     float64(100 + idx),
			Date:      start.Add(time.Duration(idx) * time.Minute * 15),
		}
	}

	return candles
}

func TestMemoryCache(t *testing.T) {
	cache := NewMemoryCache(2, time.Minute)

	_, ok := cache.Get("missing")
	assert.False(t, ok)

	cache.Set("a", windowOf("BTCUSDT", 3))
	got, ok := cache.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 3, len(got))

	// Exceeding the bound evicts the oldest entry.
	cache.Set("b", windowOf("ETHUSDT", 1))
	cache.Set("c", windowOf("SOLUSDT", 1))

	_, ok = cache.Get("a")
	assert.False(t, ok)
	_, ok = cache.Get("b")
	assert.True(t, ok)
	_, ok = cache.Get("c")
	assert.True(t, ok)

	cache.Clear()
	_, ok = cache.Get("b")
	assert.False(t, ok)
}

func TestMemoryCacheExpiry(t *testing.T) {
	cache := NewMemoryCache(4, time.Millisecond*10)

	cache.Set("a", windowOf("BTCUSDT", 1))
	_, ok := cache.Get("a")
	assert.True(t, ok)

	time.Sleep(time.Millisecond * 25)

	_, ok = cache.Get("a")
	assert.False(t, ok)
}

func TestMemoryCacheOverwrite(t *testing.T) {
	cache := NewMemoryCache(2, time.Minute)

	for i := 0; i < 3; i++ {
		cache.Set("a", windowOf("BTCUSDT", i+1))
	}

	got, ok := cache.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 3, len(got))

	// Re-setting the same key must not consume extra capacity.
	cache.Set("b", windowOf("ETHUSDT", 1))
	_, ok = cache.Get("a")
	assert.True(t, ok)
}
