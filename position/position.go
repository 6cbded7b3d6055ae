package position

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/avasek/simtrade/pnl"
	"github.com/avasek/simtrade/shared"
	"github.com/google/uuid"
)

// ErrAlreadyClosed is returned when closing a position that has already been
// closed.
var ErrAlreadyClosed = errors.New("position already closed")

// Status represents the status of a position.
type Status int

const (
	Open Status = iota
	Closed
)

// String stringifies the provided position status.
func (s Status) String() string {
	switch s {
	case Open:
		return "open"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Position represents an open market position created from a strategy
// signal. The entry fields are immutable once set, only the status, bar age
// and exit fields change over the position's lifetime.
type Position struct {
	ID         string
	Market     string
	Direction  shared.Direction
	EntryPrice float64
	EntryTime  time.Time
	StopLoss   float64
	TakeProfit float64
	Confidence float64
	Metadata   map[string]string
	Status     Status

	// BarsHeld counts decision-timeframe bars processed since entry.
	BarsHeld uint32
}

// validateLevels asserts the stop loss and take profit are directionally
// consistent with the position direction. Zero levels are treated as unset.
func validateLevels(direction shared.Direction, entryPrice float64, stopLoss float64, takeProfit float64) error {
	var errs error

	switch direction {
	case shared.Long:
		if stopLoss != 0 && stopLoss >= entryPrice {
			errs = errors.Join(errs, fmt.Errorf("long stop loss %v must be below entry price %v", stopLoss, entryPrice))
		}
		if takeProfit != 0 && takeProfit <= entryPrice {
			errs = errors.Join(errs, fmt.Errorf("long take profit %v must be above entry price %v", takeProfit, entryPrice))
		}
	case shared.Short:
		if stopLoss != 0 && stopLoss <= entryPrice {
			errs = errors.Join(errs, fmt.Errorf("short stop loss %v must be above entry price %v", stopLoss, entryPrice))
		}
		if takeProfit != 0 && takeProfit >= entryPrice {
			errs = errors.Join(errs, fmt.Errorf("short take profit %v must be below entry price %v", takeProfit, entryPrice))
		}
	}

	return errs
}

// NewPosition initializes a new position from the provided signal and entry
// tick. The tick close is used as the entry price.
func NewPosition(signal *shared.Signal, candle *shared.Candlestick) (*Position, error) {
	if signal == nil {
		return nil, fmt.Errorf("signal cannot be nil")
	}
	if candle == nil {
		return nil, fmt.Errorf("entry candle cannot be nil")
	}
	if candle.Close <= 0 {
		return nil, fmt.Errorf("entry price must be positive, got %v", candle.Close)
	}

	direction, err := signal.Direction()
	if err != nil {
		return nil, err
	}

	err = validateLevels(direction, candle.Close, signal.StopLoss, signal.TakeProfit)
	if err != nil {
		return nil, err
	}

	pos := &Position{
		ID:         uuid.New().String(),
		Market:     signal.Market,
		Direction:  direction,
		EntryPrice: candle.Close,
		EntryTime:  candle.Date,
		StopLoss:   signal.StopLoss,
		TakeProfit: signal.TakeProfit,
		Confidence: signal.Confidence,
		Metadata:   signal.Metadata,
		Status:     Open,
	}

	return pos, nil
}

// Close concludes the position at the provided exit price and time,
// returning the immutable trade record. The trade pnl uses the unit
// price-difference convention, the authoritative convention for backtests.
// Closing an already closed position returns ErrAlreadyClosed.
func (p *Position) Close(exitPrice float64, exitTime time.Time, reason shared.CloseReason) (*shared.Trade, error) {
	if p.Status == Closed {
		return nil, ErrAlreadyClosed
	}

	p.Status = Closed

	profit := pnl.Points(p.EntryPrice, exitPrice, p.Direction)

	var riskReward float64
	plannedRisk := math.Abs(p.EntryPrice - p.StopLoss)
	if p.StopLoss != 0 && plannedRisk != 0 {
		riskReward = profit / plannedRisk
	}

	trade := &shared.Trade{
		ID:               p.ID,
		Market:           p.Market,
		Direction:        p.Direction,
		EntryPrice:       p.EntryPrice,
		EntryTime:        p.EntryTime,
		ExitPrice:        exitPrice,
		ExitTime:         exitTime,
		StopLoss:         p.StopLoss,
		TakeProfit:       p.TakeProfit,
		PNL:              profit,
		PNLPercent:       pnl.PointsPercent(p.EntryPrice, exitPrice, p.Direction),
		Duration:         exitTime.Sub(p.EntryTime),
		CloseReason:      reason,
		RiskRewardActual: riskReward,
		Confidence:       p.Confidence,
		Metadata:         p.Metadata,
	}

	return trade, nil
}
