package position

import (
	"fmt"
	"sync"
	"time"
)

// Market tracks the open position and tick ordering state for one market.
// At most one open position exists per market at any instant, and all
// mutations happen in strict tick timestamp order.
type Market struct {
	market   string
	mtx      sync.RWMutex
	position *Position
	lastTick time.Time
}

// NewMarket initializes a new market.
func NewMarket(market string) *Market {
	return &Market{
		market: market,
	}
}

// ObserveTick records the provided tick time, rejecting out-of-order
// delivery. Out-of-order ticks are a protocol violation to be corrected
// upstream, not tolerated here.
func (m *Market) ObserveTick(tickTime time.Time) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if tickTime.Before(m.lastTick) {
		return fmt.Errorf("out of order tick for %s: %s arrived after %s",
			m.market, tickTime.Format(time.RFC3339), m.lastTick.Format(time.RFC3339))
	}

	m.lastTick = tickTime

	if m.position != nil && tickTime.After(m.position.EntryTime) {
		m.position.BarsHeld++
	}

	return nil
}

// SetPosition tracks the provided position for the market.
func (m *Market) SetPosition(position *Position) error {
	if position == nil {
		return fmt.Errorf("position cannot be nil")
	}
	if position.Market != m.market {
		return fmt.Errorf("unexpected position market provided: %s", position.Market)
	}

	m.mtx.Lock()
	defer m.mtx.Unlock()

	if m.position != nil {
		return fmt.Errorf("market %s already has an open position", m.market)
	}

	m.position = position

	return nil
}

// Position returns the currently open position for the market, nil when the
// market is flat.
func (m *Market) Position() *Position {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	return m.position
}

// ClearPosition removes the tracked position from the market.
func (m *Market) ClearPosition() {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	m.position = nil
}
