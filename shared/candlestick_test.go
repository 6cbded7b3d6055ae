package shared

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/peterldowns/testy/assert"
	"github.com/tidwall/gjson"
)

func TestEstimateDerivedFields(t *testing.T) {
	candle := Candlestick{
		Open:   100,
		High:   102,
		Low:    99,
		Close:  101,
		Volume: 10,
	}

	candle.EstimateDerivedFields()
	assert.Equal(t, float64(1010), candle.QuoteVolume)
	assert.Equal(t, float64(5), candle.TakerBuyVolume)

	// Fields reported by the venue are not overwritten.
	reported := Candlestick{
		Close:          101,
		Volume:         10,
		QuoteVolume:    999,
		TakerBuyVolume: 7,
	}
	reported.EstimateDerivedFields()
	assert.Equal(t, float64(999), reported.QuoteVolume)
	assert.Equal(t, float64(7), reported.TakerBuyVolume)
}

func TestParseCandlesticks(t *testing.T) {
	payload := `[
		{"date": "2024-05-01 10:00:00", "open": 100, "high": 102, "low": 99, "close": 101, "volume": 10},
		{"date": "2024-05-01 10:15:00", "open": 101, "high": 103, "low": 100, "close": 102, "volume": 12, "quoteVolume": 1220, "takerBuyVolume": 8}
	]`

	candles, err := ParseCandlesticks(gjson.Parse(payload).Array(), "BTCUSDT",
		FifteenMinute, time.UTC)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(candles))

	want := Candlestick{
		Open:           100,
		High:           102,
		Low:            99,
		Close:          101,
		Volume:         10,
		Date:           time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Market:         "BTCUSDT",
		Timeframe:      FifteenMinute,
		QuoteVolume:    1010,
		TakerBuyVolume: 5,
	}
	if !cmp.Equal(want, candles[0]) {
		t.Errorf("mismatching candle, got %v", cmp.Diff(want, candles[0]))
	}

	// Reported derived fields survive parsing unchanged.
	assert.Equal(t, float64(1220), candles[1].QuoteVolume)
	assert.Equal(t, float64(8), candles[1].TakerBuyVolume)

	// Ensure a malformed date is rejected.
	_, err = ParseCandlesticks(gjson.Parse(`[{"date": "yesterday"}]`).Array(),
		"BTCUSDT", FifteenMinute, time.UTC)
	assert.Error(t, err)
}
