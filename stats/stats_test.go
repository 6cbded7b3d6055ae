package stats

import (
	"math"
	"testing"
	"time"

	"github.com/avasek/simtrade/shared"
	"github.com/peterldowns/testy/assert"
)

func tradesFromPNLs(pnls []float64) []*shared.Trade {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	trades := make([]*shared.Trade, len(pnls))

	for idx := range pnls {
		entry := start.Add(time.Duration(idx) * time.Hour * 4)
		reason := shared.TakeProfitHit
		if pnls[idx] < 0 {
			reason = shared.StopLossHit
		}

		trades[idx] = &shared.Trade{
			Market:      "BTCUSDT",
			Direction:   shared.Long,
			EntryPrice:  100,
			EntryTime:   entry,
			ExitPrice:   100 + pnls[idx],
			ExitTime:    entry.Add(time.Hour * 2),
			PNL:         pnls[idx],
			Duration:    time.Hour * 2,
			CloseReason: reason,
		}
	}

	return trades
}

func TestComputeEmpty(t *testing.T) {
	report := Compute(nil)
	assert.Equal(t, 0, report.TotalTrades)
	assert.Equal(t, float64(0), report.WinRate)
	assert.Equal(t, float64(0), report.ProfitFactor)
	assert.Equal(t, float64(0), report.MaxDrawdown)
	assert.Equal(t, float64(0), report.SharpeRatio)
}

func TestCompute(t *testing.T) {
	// pnl series +10, -5, +15: two winners out of three, peak 10 falls to 5
	// before recovering to 25.
	report := Compute(tradesFromPNLs([]float64{10, -5, 15}))

	assert.Equal(t, 3, report.TotalTrades)
	assert.Equal(t, 2, report.WinningTrades)
	assert.Equal(t, 1, report.LosingTrades)
	assert.True(t, math.Abs(report.WinRate-66.666666) < 0.001)
	assert.Equal(t, float64(20), report.NetProfit)
	assert.Equal(t, float64(5), report.ProfitFactor)
	assert.Equal(t, float64(12.5), report.AvgWin)
	assert.Equal(t, float64(-5), report.AvgLoss)
	assert.Equal(t, float64(5), report.MaxDrawdown)

	assert.Equal(t, float64(15), report.PNLDistribution.Max)
	assert.Equal(t, float64(-5), report.PNLDistribution.Min)
	assert.Equal(t, float64(10), report.PNLDistribution.Median)

	assert.Equal(t, float64(2), report.HoldTimeStats.MeanHours)
	assert.Equal(t, float64(2), report.HoldTimeStats.MedianHours)

	assert.Equal(t, 2, report.CloseReasonStats[shared.TakeProfitHit].Count)
	assert.Equal(t, 1, report.CloseReasonStats[shared.StopLossHit].Count)
	assert.Equal(t, 0, report.CloseReasonStats[shared.TimeStop].Count)
}

func TestComputeNoLosses(t *testing.T) {
	// Profit factor is defined as zero when there are no losing trades.
	report := Compute(tradesFromPNLs([]float64{10, 5}))
	assert.Equal(t, float64(0), report.ProfitFactor)
	assert.Equal(t, float64(0), report.AvgLoss)
	assert.Equal(t, float64(100), report.WinRate)

	// A non-decreasing cumulative pnl series has no drawdown.
	assert.Equal(t, float64(0), report.MaxDrawdown)
}

func TestComputeSharpe(t *testing.T) {
	// A single trade has no defined sharpe.
	report := Compute(tradesFromPNLs([]float64{10}))
	assert.Equal(t, float64(0), report.SharpeRatio)

	// A constant pnl series has zero variance and a zero sharpe.
	report = Compute(tradesFromPNLs([]float64{10, 10, 10}))
	assert.Equal(t, float64(0), report.SharpeRatio)

	// mean 5, population stddev 5 over [0, 10].
	report = Compute(tradesFromPNLs([]float64{0, 10}))
	assert.Equal(t, float64(1), report.SharpeRatio)
}

func TestMaxDrawdown(t *testing.T) {
	tests := []struct {
		name string
		pnls []float64
		want float64
	}{
		{
			name: "empty series",
			pnls: []float64{},
			want: 0,
		},
		{
			name: "monotonic gains",
			pnls: []float64{1, 2, 3},
			want: 0,
		},
		{
			name: "single deep trough",
			pnls: []float64{10, -15, 20},
			want: 15,
		},
		{
			name: "losses from the start",
			pnls: []float64{-5, -5},
			want: 10,
		},
	}

	for _, test := range tests {
		got := maxDrawdown(test.pnls)
		if got != test.want {
			t.Errorf("%s: expected drawdown %v, got %v", test.name, test.want, got)
		}
	}
}
