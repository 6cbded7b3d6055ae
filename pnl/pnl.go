// Package pnl computes trade profit and loss under the two conventions used
// by the simulator.
//
// The unit price-difference convention treats a trade as one unit of
// exposure and is the authoritative convention for historical backtests. The
// margin convention scales the signed price change by margin and leverage
// and is the authoritative convention for simulated live trading records.
// The two are never merged, each call site picks one explicitly.
package pnl

import (
	"github.com/avasek/simtrade/shared"
)

// Points returns the per-unit-exposure profit or loss of a trade under the
// unit price-difference convention, unscaled by margin or leverage.
func Points(entryPrice float64, exitPrice float64, direction shared.Direction) float64 {
	switch direction {
	case shared.Short:
		return entryPrice - exitPrice
	default:
		return exitPrice - entryPrice
	}
}

// PointsPercent returns the unit convention profit or loss as a percentage
// of the entry price. It is zero when the entry price is zero.
func PointsPercent(entryPrice float64, exitPrice float64, direction shared.Direction) float64 {
	if entryPrice == 0 {
		return 0
	}

	return Points(entryPrice, exitPrice, direction) / entryPrice * 100
}

// Leveraged returns the profit or loss of a trade under the margin
// convention: the signed price change percentage scaled by margin and
// leverage. It is zero when the entry price is zero.
func Leveraged(entryPrice float64, exitPrice float64, direction shared.Direction, margin float64, leverage float64) float64 {
	if entryPrice == 0 {
		return 0
	}

	priceChangePct := (exitPrice - entryPrice) / entryPrice
	if direction == shared.Short {
		priceChangePct = -priceChangePct
	}

	return margin * leverage * priceChangePct
}

// LeveragedPercent returns the margin convention profit or loss as a
// percentage of margin. It is zero when the margin is zero.
func LeveragedPercent(entryPrice float64, exitPrice float64, direction shared.Direction, margin float64, leverage float64) float64 {
	if margin == 0 {
		return 0
	}

	return Leveraged(entryPrice, exitPrice, direction, margin, leverage) / margin * 100
}
