// Package stats aggregates closed trades into performance metrics.
package stats

import (
	"math"
	"sort"

	"github.com/avasek/simtrade/shared"
)

// ReasonStat represents the close reason bucket of a trade set.
type ReasonStat struct {
	Count   int
	Percent float64
}

// PNLDistribution represents the distribution of trade pnl values.
type PNLDistribution struct {
	Max     float64
	Min     float64
	AvgWin  float64
	AvgLoss float64
	Median  float64
}

// HoldTimeStats represents the distribution of trade durations in hours.
type HoldTimeStats struct {
	MinHours    float64
	MaxHours    float64
	MeanHours   float64
	MedianHours float64
}

// Report represents the aggregate performance metrics of a set of closed
// trades. All fields are derived, a report is recomputed from the trade
// list rather than maintained incrementally.
type Report struct {
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       float64
	NetProfit     float64
	ProfitFactor  float64
	AvgWin        float64
	AvgLoss       float64
	MaxDrawdown   float64

	// SharpeRatio is the per-trade mean pnl over its standard deviation. It
	// is not annualized, no sqrt(252) multiplier is applied.
	SharpeRatio float64

	CloseReasonStats map[shared.CloseReason]ReasonStat
	PNLDistribution  PNLDistribution
	HoldTimeStats    HoldTimeStats
}

// median returns the median of the provided values. The input is sorted in
// place.
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sort.Float64s(values)
	mid := len(values) / 2
	if len(values)%2 == 0 {
		return (values[mid-1] + values[mid]) / 2
	}

	return values[mid]
}

// maxDrawdown walks the pnl sequence in trade order, tracking the running
// cumulative sum and its running peak. The result is the largest peak to
// trough decline observed, always non-negative.
func maxDrawdown(pnls []float64) float64 {
	var cumulative, peak, maxDD float64

	for idx := range pnls {
		cumulative += pnls[idx]
		if cumulative > peak {
			peak = cumulative
		}

		drawdown := peak - cumulative
		if drawdown > maxDD {
			maxDD = drawdown
		}
	}

	return maxDD
}

// sharpeRatio returns the per-trade sharpe ratio of the provided pnl series,
// zero when there are fewer than two trades or no variance.
func sharpeRatio(pnls []float64) float64 {
	if len(pnls) < 2 {
		return 0
	}

	var sum float64
	for idx := range pnls {
		sum += pnls[idx]
	}
	mean := sum / float64(len(pnls))

	var variance float64
	for idx := range pnls {
		diff := pnls[idx] - mean
		variance += diff * diff
	}
	variance /= float64(len(pnls))

	stddev := math.Sqrt(variance)
	if stddev == 0 {
		return 0
	}

	return mean / stddev
}

// Compute aggregates the provided closed trades into a report. Ratios that
// would divide by zero default to zero instead of failing.
func Compute(trades []*shared.Trade) *Report {
	report := &Report{
		TotalTrades:      len(trades),
		CloseReasonStats: make(map[shared.CloseReason]ReasonStat),
	}

	pnls := make([]float64, 0, len(trades))
	holdHours := make([]float64, 0, len(trades))
	reasonCounts := make(map[shared.CloseReason]int)

	var grossProfit, grossLoss float64
	for _, trade := range trades {
		pnls = append(pnls, trade.PNL)
		holdHours = append(holdHours, trade.Duration.Hours())
		reasonCounts[trade.CloseReason]++

		report.NetProfit += trade.PNL
		switch {
		case trade.PNL > 0:
			report.WinningTrades++
			grossProfit += trade.PNL
		case trade.PNL < 0:
			report.LosingTrades++
			grossLoss += -trade.PNL
		}
	}

	if report.TotalTrades > 0 {
		report.WinRate = float64(report.WinningTrades) / float64(report.TotalTrades) * 100
	}
	if grossLoss > 0 {
		report.ProfitFactor = grossProfit / grossLoss
	}
	if report.WinningTrades > 0 {
		report.AvgWin = grossProfit / float64(report.WinningTrades)
	}
	if report.LosingTrades > 0 {
		report.AvgLoss = -grossLoss / float64(report.LosingTrades)
	}

	report.MaxDrawdown = maxDrawdown(pnls)
	report.SharpeRatio = sharpeRatio(pnls)

	for _, reason := range shared.CloseReasons {
		count := reasonCounts[reason]
		stat := ReasonStat{Count: count}
		if report.TotalTrades > 0 {
			stat.Percent = float64(count) / float64(report.TotalTrades) * 100
		}
		report.CloseReasonStats[reason] = stat
	}

	if report.TotalTrades > 0 {
		report.PNLDistribution = PNLDistribution{
			Max:     pnls[0],
			Min:     pnls[0],
			AvgWin:  report.AvgWin,
			AvgLoss: report.AvgLoss,
		}
		for idx := range pnls {
			if pnls[idx] > report.PNLDistribution.Max {
				report.PNLDistribution.Max = pnls[idx]
			}
			if pnls[idx] < report.PNLDistribution.Min {
				report.PNLDistribution.Min = pnls[idx]
			}
		}

		report.HoldTimeStats = HoldTimeStats{
			MinHours: holdHours[0],
			MaxHours: holdHours[0],
		}
		var holdSum float64
		for idx := range holdHours {
			holdSum += holdHours[idx]
			if holdHours[idx] > report.HoldTimeStats.MaxHours {
				report.HoldTimeStats.MaxHours = holdHours[idx]
			}
			if holdHours[idx] < report.HoldTimeStats.MinHours {
				report.HoldTimeStats.MinHours = holdHours[idx]
			}
		}
		report.HoldTimeStats.MeanHours = holdSum / float64(len(holdHours))

		// Medians sort their inputs, compute them last.
		report.HoldTimeStats.MedianHours = median(holdHours)
		report.PNLDistribution.Median = median(pnls)
	}

	return report
}
