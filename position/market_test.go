package position

import (
	"testing"
	"time"

	"github.com/avasek/simtrade/shared"
	"github.com/peterldowns/testy/assert"
)

func TestObserveTickOrdering(t *testing.T) {
	mkt := NewMarket("BTCUSDT")

	first := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	assert.NoError(t, mkt.ObserveTick(first))
	assert.NoError(t, mkt.ObserveTick(first.Add(time.Minute*15)))

	// Ensure an out of order tick is rejected.
	err := mkt.ObserveTick(first)
	assert.Error(t, err)
}

func TestSetPosition(t *testing.T) {
	mkt := NewMarket("BTCUSDT")

	signal := shared.NewBuySignal("BTCUSDT", 95, 110, 0.8, time.Now())
	candle := entryCandle("BTCUSDT", 100)
	pos, err := NewPosition(&signal, candle)
	assert.NoError(t, err)

	assert.NoError(t, mkt.SetPosition(pos))

	// Ensure only one open position can be tracked per market.
	second, err := NewPosition(&signal, candle)
	assert.NoError(t, err)
	assert.Error(t, mkt.SetPosition(second))

	// Ensure a position for another market is rejected.
	other := NewMarket("ETHUSDT")
	assert.Error(t, other.SetPosition(pos))

	mkt.ClearPosition()
	assert.Nil(t, mkt.Position())
}

func TestObserveTickBarAge(t *testing.T) {
	mkt := NewMarket("BTCUSDT")

	signal := shared.NewBuySignal("BTCUSDT", 95, 110, 0.8, time.Now())
	candle := entryCandle("BTCUSDT", 100)
	pos, err := NewPosition(&signal, candle)
	assert.NoError(t, err)

	assert.NoError(t, mkt.ObserveTick(candle.Date))
	assert.NoError(t, mkt.SetPosition(pos))

	// The entry tick does not age the position, subsequent bars do.
	assert.NoError(t, mkt.ObserveTick(candle.Date))
	assert.Equal(t, uint32(0), pos.BarsHeld)

	for i := 1; i <= 3; i++ {
		tick := candle.Date.Add(time.Duration(i) * time.Minute * 15)
		assert.NoError(t, mkt.ObserveTick(tick))
	}
	assert.Equal(t, uint32(3), pos.BarsHeld)
}
