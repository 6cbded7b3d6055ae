package store

import (
	"sync"
	"time"

	"github.com/avasek/simtrade/shared"
)

// RecordStatus represents the status of a simulation record.
type RecordStatus int

const (
	RecordOpen RecordStatus = iota
	RecordClosed
)

// String stringifies the provided record status.
func (s RecordStatus) String() string {
	switch s {
	case RecordOpen:
		return "open"
	case RecordClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// SimulationRecord represents a persisted simulated trade. Open records
// track a live simulated position, closed records are immutable trade
// results. The record pnl uses the margin convention since simulated live
// trading sizes positions with margin and leverage.
type SimulationRecord struct {
	ID          string
	Market      string
	Direction   shared.Direction
	EntryPrice  float64
	EntryTime   time.Time
	StopLoss    float64
	TakeProfit  float64
	Margin      float64
	Leverage    float64
	ExitPrice   float64
	ExitTime    time.Time
	PNL         float64
	PNLPercent  float64
	CloseReason shared.CloseReason
	Confidence  float64
	Status      RecordStatus
	CreatedOn   time.Time
}

// recentTracker remembers the most recent record created per market and
// direction, backing the signal chatter cooldown. It suppresses duplicates,
// it is not a correctness guarantee.
type recentTracker struct {
	mtx     sync.Mutex
	records map[string]*SimulationRecord
}

// newRecentTracker initializes a new recent record tracker.
func newRecentTracker() *recentTracker {
	return &recentTracker{
		records: make(map[string]*SimulationRecord),
	}
}

// trackerKey builds the tracker key for a market and direction.
func trackerKey(market string, direction shared.Direction) string {
	return market + ":" + direction.String()
}

// recent returns the tracked record for the provided market and direction
// when it was created within the cooldown window of the given time.
func (t *recentTracker) recent(market string, direction shared.Direction, now time.Time, cooldown time.Duration) *SimulationRecord {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	record, ok := t.records[trackerKey(market, direction)]
	if !ok {
		return nil
	}

	if now.Sub(record.CreatedOn) > cooldown {
		return nil
	}

	return record
}

// track remembers the provided record as the most recent for its market and
// direction.
func (t *recentTracker) track(record *SimulationRecord) {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	t.records[trackerKey(record.Market, record.Direction)] = record
}
