package marketdata

import (
	"testing"
	"time"

	"github.com/avasek/simtrade/shared"
	"github.com/peterldowns/testy/assert"
	"github.com/rs/zerolog/log"
)

func setupStream(t *testing.T, markets []string) *Stream {
	t.Helper()

	stream, err := NewStream(&StreamConfig{
		URL:         "wss://stream.binance.com:9443",
		Markets:     markets,
		Timeframe:   shared.FifteenMinute,
		RelayCandle: func(candle shared.Candlestick) {},
		Logger:      log.Logger,
	})
	assert.NoError(t, err)

	return stream
}

func TestNewStream(t *testing.T) {
	// Ensure missing config fields are rejected.
	_, err := NewStream(&StreamConfig{})
	assert.Error(t, err)

	_, err = NewStream(&StreamConfig{URL: "wss://stream.binance.com:9443"})
	assert.Error(t, err)

	_, err = NewStream(&StreamConfig{
		URL:     "wss://stream.binance.com:9443",
		Markets: []string{"BTCUSDT"},
	})
	assert.Error(t, err)
}

func TestStreamURL(t *testing.T) {
	stream := setupStream(t, []string{"BTCUSDT", "ETHUSDT"})

	url := stream.streamURL()
	assert.Equal(t, "wss://stream.binance.com:9443/stream?streams=btcusdt@kline_15m/ethusdt@kline_15m", url)
}

func TestParseStreamCandle(t *testing.T) {
	stream := setupStream(t, []string{"BTCUSDT"})

	closed := `{"stream":"btcusdt@kline_15m","data":{"k":{"s":"BTCUSDT","t":1714557600000,
		"o":"100","h":"102","l":"99","c":"101","v":"10","q":"1010","V":"6","x":true}}}`
	candle, err := stream.parseStreamCandle([]byte(closed))
	assert.NoError(t, err)
	assert.NotNil(t, candle)
	assert.Equal(t, "BTCUSDT", candle.Market)
	assert.Equal(t, float64(101), candle.Close)
	assert.Equal(t, float64(1010), candle.QuoteVolume)
	assert.Equal(t, time.UnixMilli(1714557600000).UTC(), candle.Date)

	// Open candles are skipped.
	open := `{"data":{"k":{"s":"BTCUSDT","c":"101","x":false}}}`
	candle, err = stream.parseStreamCandle([]byte(open))
	assert.NoError(t, err)
	assert.Nil(t, candle)

	// Non-kline messages are skipped.
	candle, err = stream.parseStreamCandle([]byte(`{"result":null,"id":1}`))
	assert.NoError(t, err)
	assert.Nil(t, candle)
}
