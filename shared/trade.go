package shared

import (
	"time"
)

// Trade represents a concluded position. A trade is immutable once created,
// it is only read for aggregation.
type Trade struct {
	ID               string
	Market           string
	Direction        Direction
	EntryPrice       float64
	EntryTime        time.Time
	ExitPrice        float64
	ExitTime         time.Time
	StopLoss         float64
	TakeProfit       float64
	PNL              float64
	PNLPercent       float64
	Duration         time.Duration
	CloseReason      CloseReason
	RiskRewardActual float64
	Confidence       float64
	Metadata         map[string]string
}
