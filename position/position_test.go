package position

import (
	"testing"
	"time"

	"github.com/avasek/simtrade/shared"
	"github.com/peterldowns/testy/assert"
)

func entryCandle(market string, close float64) *shared.Candlestick {
	return &shared.Candlestick{
		Market:    market,
		Timeframe: shared.FifteenMinute,
		Open:      close,
		High:      close,
		Low:       close,
		Close:     close,
		Volume:    10,
		Date:      time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestNewPosition(t *testing.T) {
	signal := shared.NewBuySignal("BTCUSDT", 95, 110, 0.8, time.Now())
	candle := entryCandle("BTCUSDT", 100)

	pos, err := NewPosition(&signal, candle)
	assert.NoError(t, err)
	assert.Equal(t, "BTCUSDT", pos.Market)
	assert.Equal(t, shared.Long, pos.Direction)
	assert.Equal(t, float64(100), pos.EntryPrice)
	assert.Equal(t, Open, pos.Status)

	// Ensure a hold signal cannot create a position.
	hold := shared.HoldSignal("BTCUSDT")
	_, err = NewPosition(&hold, candle)
	assert.Error(t, err)

	// Ensure a non-positive entry price is rejected.
	_, err = NewPosition(&signal, entryCandle("BTCUSDT", 0))
	assert.Error(t, err)
}

func TestNewPositionLevelValidation(t *testing.T) {
	candle := entryCandle("BTCUSDT", 100)

	tests := []struct {
		name    string
		signal  shared.Signal
		wantErr bool
	}{
		{
			name:    "valid long levels",
			signal:  shared.NewBuySignal("BTCUSDT", 95, 110, 0.8, time.Now()),
			wantErr: false,
		},
		{
			name:    "long stop above entry",
			signal:  shared.NewBuySignal("BTCUSDT", 105, 110, 0.8, time.Now()),
			wantErr: true,
		},
		{
			name:    "long target below entry",
			signal:  shared.NewBuySignal("BTCUSDT", 95, 90, 0.8, time.Now()),
			wantErr: true,
		},
		{
			name:    "valid short levels",
			signal:  shared.NewSellSignal("BTCUSDT", 105, 90, 0.8, time.Now()),
			wantErr: false,
		},
		{
			name:    "short stop below entry",
			signal:  shared.NewSellSignal("BTCUSDT", 95, 90, 0.8, time.Now()),
			wantErr: true,
		},
		{
			name:    "unset levels accepted",
			signal:  shared.NewBuySignal("BTCUSDT", 0, 0, 0.8, time.Now()),
			wantErr: false,
		},
	}

	for _, test := range tests {
		_, err := NewPosition(&test.signal, candle)
		if test.wantErr && err == nil {
			t.Errorf("%s: expected an error, got none", test.name)
		}
		if !test.wantErr && err != nil {
			t.Errorf("%s: unexpected error: %v", test.name, err)
		}
	}
}

func TestClose(t *testing.T) {
	signal := shared.NewBuySignal("BTCUSDT", 95, 110, 0.8, time.Now())
	candle := entryCandle("BTCUSDT", 100)

	pos, err := NewPosition(&signal, candle)
	assert.NoError(t, err)

	exitTime := candle.Date.Add(time.Hour)
	trade, err := pos.Close(110, exitTime, shared.TakeProfitHit)
	assert.NoError(t, err)
	assert.Equal(t, Closed, pos.Status)
	assert.Equal(t, float64(10), trade.PNL)
	assert.Equal(t, float64(10), trade.PNLPercent)
	assert.Equal(t, time.Hour, trade.Duration)
	assert.Equal(t, shared.TakeProfitHit, trade.CloseReason)
	// Risked 5 points for 10 points of profit.
	assert.Equal(t, float64(2), trade.RiskRewardActual)

	// Ensure re-closing a closed position is rejected.
	_, err = pos.Close(120, exitTime.Add(time.Hour), shared.TakeProfitHit)
	assert.Error(t, err)
	assert.Equal(t, Closed, pos.Status)
	assert.Equal(t, float64(110), trade.ExitPrice)
}

func TestCloseShortPNL(t *testing.T) {
	signal := shared.NewSellSignal("BTCUSDT", 105, 90, 0.8, time.Now())
	candle := entryCandle("BTCUSDT", 100)

	pos, err := NewPosition(&signal, candle)
	assert.NoError(t, err)

	trade, err := pos.Close(105, candle.Date.Add(time.Minute*30), shared.StopLossHit)
	assert.NoError(t, err)
	assert.Equal(t, float64(-5), trade.PNL)
	assert.Equal(t, float64(-1), trade.RiskRewardActual)
}
