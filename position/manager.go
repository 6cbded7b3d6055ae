package position

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/avasek/simtrade/engine"
	"github.com/avasek/simtrade/shared"
	"github.com/rs/zerolog"
)

// ManagerConfig represents the position manager configuration.
type ManagerConfig struct {
	// CheckExit evaluates exit conditions for the provided position snapshot.
	CheckExit func(snap *engine.Snapshot, candle *shared.Candlestick, sctx *shared.StrategyContext) engine.Decision
	// Notify sends the provided message.
	Notify func(message string)
	// PersistOpenPosition persists the provided opened position. Failures
	// here propagate to the caller since a lost open record corrupts the
	// position map invariants.
	PersistOpenPosition func(ctx context.Context, position *Position) error
	// PersistClosedTrade persists the provided closed trade. Failures here
	// are logged and processing continues.
	PersistClosedTrade func(ctx context.Context, trade *shared.Trade) error
	// Logger represents the application logger.
	Logger zerolog.Logger
}

// Manager owns the per-market position map and converts strategy signals
// into position open, close and reverse operations. All mutations to one
// market's state are serialized in tick timestamp order, distinct markets
// are independent.
type Manager struct {
	cfg        *ManagerConfig
	markets    map[string]*Market
	marketsMtx sync.RWMutex
	trades     []*shared.Trade
	tradesMtx  sync.RWMutex
}

// NewManager initializes a new position manager.
func NewManager(cfg *ManagerConfig) *Manager {
	return &Manager{
		cfg:     cfg,
		markets: make(map[string]*Market),
		trades:  []*shared.Trade{},
	}
}

// fetchMarket returns the tracked market for the provided name, creating it
// on first use.
func (m *Manager) fetchMarket(name string) *Market {
	m.marketsMtx.RLock()
	mkt, ok := m.markets[name]
	m.marketsMtx.RUnlock()

	if ok {
		return mkt
	}

	m.marketsMtx.Lock()
	defer m.marketsMtx.Unlock()

	mkt, ok = m.markets[name]
	if !ok {
		mkt = NewMarket(name)
		m.markets[name] = mkt
	}

	return mkt
}

// closePosition concludes the provided position and records the resulting
// trade. Re-closing an already closed position is a no-op.
func (m *Manager) closePosition(ctx context.Context, mkt *Market, pos *Position, exitPrice float64, candle *shared.Candlestick, reason shared.CloseReason) (*shared.Trade, error) {
	trade, err := pos.Close(exitPrice, candle.Date, reason)
	if err != nil {
		if errors.Is(err, ErrAlreadyClosed) {
			return nil, nil
		}
		return nil, fmt.Errorf("closing %s position: %w", pos.Market, err)
	}

	mkt.ClearPosition()

	m.tradesMtx.Lock()
	m.trades = append(m.trades, trade)
	m.tradesMtx.Unlock()

	if m.cfg.PersistClosedTrade != nil {
		// Best effort, a failed close persist must not stall the loop for
		// other open positions.
		err = m.cfg.PersistClosedTrade(ctx, trade)
		if err != nil {
			m.cfg.Logger.Error().Msgf("persisting closed trade %s: %v", trade.ID, err)
		}
	}

	if m.cfg.Notify != nil {
		msg := fmt.Sprintf("Closed %s position (%s) for %s @ %f (%s), pnl %f",
			trade.Direction.String(), trade.ID, trade.Market, trade.ExitPrice,
			trade.CloseReason.String(), trade.PNL)
		m.cfg.Notify(msg)
	}

	return trade, nil
}

// ProcessTick advances the market state with the provided tick, evaluating
// exit conditions against the open position before any new signals for the
// tick are considered. It returns the closed trade if an exit rule fired.
func (m *Manager) ProcessTick(ctx context.Context, candle *shared.Candlestick, sctx *shared.StrategyContext) (*shared.Trade, error) {
	mkt := m.fetchMarket(candle.Market)

	err := mkt.ObserveTick(candle.Date)
	if err != nil {
		return nil, err
	}

	pos := mkt.Position()
	if pos == nil {
		return nil, nil
	}

	snap := &engine.Snapshot{
		Market:     pos.Market,
		Direction:  pos.Direction,
		EntryPrice: pos.EntryPrice,
		StopLoss:   pos.StopLoss,
		TakeProfit: pos.TakeProfit,
		BarsHeld:   pos.BarsHeld,
	}

	decision := m.cfg.CheckExit(snap, candle, sctx)
	if !decision.Exit {
		return nil, nil
	}

	return m.closePosition(ctx, mkt, pos, decision.Price, candle, decision.Reason)
}

// ProcessSignal applies the provided strategy signal against the current
// position state for its market. A hold signal is a no-op. A signal whose
// direction opposes the open position closes it as a reverse signal before
// opening the new position on the same tick. A same-direction signal while a
// position is already open is a no-op, pyramiding is intentionally not
// supported.
func (m *Manager) ProcessSignal(ctx context.Context, signal *shared.Signal, candle *shared.Candlestick) (*shared.Trade, *Position, error) {
	if !signal.Actionable() {
		return nil, nil, nil
	}

	direction, err := signal.Direction()
	if err != nil {
		return nil, nil, err
	}

	mkt := m.fetchMarket(signal.Market)

	var closed *shared.Trade
	pos := mkt.Position()
	if pos != nil {
		if pos.Direction == direction {
			// No pyramiding.
			return nil, nil, nil
		}

		closed, err = m.closePosition(ctx, mkt, pos, candle.Close, candle, shared.ReverseSignal)
		if err != nil {
			return nil, nil, err
		}
	}

	opened, err := NewPosition(signal, candle)
	if err != nil {
		return closed, nil, fmt.Errorf("creating new position: %w", err)
	}

	if m.cfg.PersistOpenPosition != nil {
		err = m.cfg.PersistOpenPosition(ctx, opened)
		if err != nil {
			return closed, nil, fmt.Errorf("persisting open position: %w", err)
		}
	}

	err = mkt.SetPosition(opened)
	if err != nil {
		return closed, nil, err
	}

	if m.cfg.Notify != nil {
		msg := fmt.Sprintf("Created new %s position (%s) for %s @ %f with stoploss %f",
			opened.Direction.String(), opened.ID, opened.Market, opened.EntryPrice, opened.StopLoss)
		m.cfg.Notify(msg)
	}

	return closed, opened, nil
}

// OpenPosition returns the open position for the provided market, nil when
// the market is flat.
func (m *Manager) OpenPosition(market string) *Position {
	return m.fetchMarket(market).Position()
}

// Trades returns a copy of the closed trades recorded so far, in close
// order.
func (m *Manager) Trades() []*shared.Trade {
	m.tradesMtx.RLock()
	defer m.tradesMtx.RUnlock()

	trades := make([]*shared.Trade, len(m.trades))
	copy(trades, m.trades)

	return trades
}

// PersistTradesCSV writes the recorded trades to a csv file at the provided
// path for backtest review.
func (m *Manager) PersistTradesCSV(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating trades csv: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"id", "market", "direction", "entryprice", "entrytime",
		"exitprice", "exittime", "stoploss", "takeprofit", "pnl", "pnlpercent",
		"duration", "closereason"}
	err = writer.Write(header)
	if err != nil {
		return fmt.Errorf("writing trades csv header: %w", err)
	}

	m.tradesMtx.RLock()
	defer m.tradesMtx.RUnlock()

	for _, trade := range m.trades {
		record := []string{
			trade.ID,
			trade.Market,
			trade.Direction.String(),
			strconv.FormatFloat(trade.EntryPrice, 'f', -1, 64),
			trade.EntryTime.Format(shared.DateLayout),
			strconv.FormatFloat(trade.ExitPrice, 'f', -1, 64),
			trade.ExitTime.Format(shared.DateLayout),
			strconv.FormatFloat(trade.StopLoss, 'f', -1, 64),
			strconv.FormatFloat(trade.TakeProfit, 'f', -1, 64),
			strconv.FormatFloat(trade.PNL, 'f', -1, 64),
			strconv.FormatFloat(trade.PNLPercent, 'f', -1, 64),
			trade.Duration.String(),
			trade.CloseReason.String(),
		}

		err = writer.Write(record)
		if err != nil {
			return fmt.Errorf("writing trade %s to csv: %w", trade.ID, err)
		}
	}

	return nil
}
