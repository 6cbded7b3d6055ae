package engine

import (
	"github.com/avasek/simtrade/shared"
	"github.com/rs/zerolog"
)

const (
	// defaultMinConfirmations is the minimum trend confirmation score required
	// to keep a position open.
	defaultMinConfirmations = 3
	// defaultMinFlowRatio is the minimum same-direction to opposite-direction
	// order flow pressure ratio required to keep a position open.
	defaultMinFlowRatio = 1.1
	// defaultSwingLookback is the lookback window, in bars, used by the
	// strategy engine when computing the swing levels consumed here.
	defaultSwingLookback = 20
	// defaultMaxHoldBars is the maximum position age in decision-timeframe
	// bars before the time stop fires.
	defaultMaxHoldBars = 12
)

// EngineConfig represents the exit engine configuration.
type EngineConfig struct {
	// MinConfirmations is the minimum trend confirmation score.
	MinConfirmations uint32
	// MinFlowRatio is the minimum order flow pressure ratio.
	MinFlowRatio float64
	// SwingLookback is the swing level lookback window in bars.
	SwingLookback int
	// MaxHoldBars is the maximum position age in bars.
	MaxHoldBars uint32
	// Logger represents the application logger.
	Logger zerolog.Logger
}

// Snapshot represents the open position state needed for exit evaluation.
type Snapshot struct {
	Market     string
	Direction  shared.Direction
	EntryPrice float64
	StopLoss   float64
	TakeProfit float64
	BarsHeld   uint32
}

// Decision represents the outcome of an exit evaluation.
type Decision struct {
	Exit   bool
	Reason shared.CloseReason
	Price  float64
}

// Engine evaluates exit conditions for open positions. It is a stateless
// evaluator, all position and market state is provided per call.
//
// Rules are evaluated in a fixed priority order and the first matching rule
// wins: stop loss, take profit, trend reversal, order flow weakening, key
// level break, time stop. The contextual rules tolerate absent strategy
// state and simply do not fire without it.
type Engine struct {
	cfg *EngineConfig
}

// NewEngine initializes a new exit engine.
func NewEngine(cfg *EngineConfig) *Engine {
	if cfg.MinConfirmations == 0 {
		cfg.MinConfirmations = defaultMinConfirmations
	}
	if cfg.MinFlowRatio == 0 {
		cfg.MinFlowRatio = defaultMinFlowRatio
	}
	if cfg.SwingLookback == 0 {
		cfg.SwingLookback = defaultSwingLookback
	}
	if cfg.MaxHoldBars == 0 {
		cfg.MaxHoldBars = defaultMaxHoldBars
	}

	return &Engine{
		cfg: cfg,
	}
}

// checkStopLoss evaluates a stop loss breach. The exit price is the
// configured stop level, not the tick price.
func (e *Engine) checkStopLoss(snap *Snapshot, price float64) *Decision {
	if snap.StopLoss == 0 {
		return nil
	}

	switch snap.Direction {
	case shared.Long:
		if price <= snap.StopLoss {
			return &Decision{Exit: true, Reason: shared.StopLossHit, Price: snap.StopLoss}
		}
	case shared.Short:
		if price >= snap.StopLoss {
			return &Decision{Exit: true, Reason: shared.StopLossHit, Price: snap.StopLoss}
		}
	}

	return nil
}

// checkTakeProfit evaluates a take profit breach. The exit price is the
// configured target level, not the tick price.
func (e *Engine) checkTakeProfit(snap *Snapshot, price float64) *Decision {
	if snap.TakeProfit == 0 {
		return nil
	}

	switch snap.Direction {
	case shared.Long:
		if price >= snap.TakeProfit {
			return &Decision{Exit: true, Reason: shared.TakeProfitHit, Price: snap.TakeProfit}
		}
	case shared.Short:
		if price <= snap.TakeProfit {
			return &Decision{Exit: true, Reason: shared.TakeProfitHit, Price: snap.TakeProfit}
		}
	}

	return nil
}

// checkTrendReversal evaluates whether the prevailing trend no longer
// supports the position.
func (e *Engine) checkTrendReversal(snap *Snapshot, price float64, sctx *shared.StrategyContext) *Decision {
	if sctx == nil || sctx.Trend == nil {
		return nil
	}

	if !sctx.Trend.Direction.Matches(snap.Direction) ||
		sctx.Trend.Confirmations < e.cfg.MinConfirmations {
		return &Decision{Exit: true, Reason: shared.TrendReversal, Price: price}
	}

	return nil
}

// checkFlowWeakening evaluates whether same-direction order flow pressure
// has weakened below the configured ratio.
func (e *Engine) checkFlowWeakening(price float64, sctx *shared.StrategyContext) *Decision {
	if sctx == nil || sctx.Flow == nil {
		return nil
	}

	if sctx.Flow.Ratio < e.cfg.MinFlowRatio {
		return &Decision{Exit: true, Reason: shared.DeltaWeakening, Price: price}
	}

	return nil
}

// checkKeyLevelBreak evaluates whether price has crossed against the
// position through a moving average or the recent swing level.
func (e *Engine) checkKeyLevelBreak(snap *Snapshot, price float64, sctx *shared.StrategyContext) *Decision {
	if sctx == nil || sctx.Levels == nil {
		return nil
	}

	levels := sctx.Levels
	broken := false

	switch snap.Direction {
	case shared.Long:
		broken = (levels.ShortTermMA > 0 && price < levels.ShortTermMA) ||
			(levels.MidTermMA > 0 && price < levels.MidTermMA) ||
			(levels.SwingLow > 0 && price < levels.SwingLow)
	case shared.Short:
		broken = (levels.ShortTermMA > 0 && price > levels.ShortTermMA) ||
			(levels.MidTermMA > 0 && price > levels.MidTermMA) ||
			(levels.SwingHigh > 0 && price > levels.SwingHigh)
	}

	if broken {
		return &Decision{Exit: true, Reason: shared.SupportResistanceBreak, Price: price}
	}

	return nil
}

// checkTimeStop evaluates whether the position has exceeded its maximum age
// in decision-timeframe bars. The exit price is the current tick price.
func (e *Engine) checkTimeStop(snap *Snapshot, price float64) *Decision {
	if snap.BarsHeld >= e.cfg.MaxHoldBars {
		return &Decision{Exit: true, Reason: shared.TimeStop, Price: price}
	}

	return nil
}

// Evaluate runs the exit rules against the provided position snapshot and
// market tick, returning at most one exit decision.
func (e *Engine) Evaluate(snap *Snapshot, candle *shared.Candlestick, sctx *shared.StrategyContext) Decision {
	price := candle.Close

	checks := []func() *Decision{
		func() *Decision { return e.checkStopLoss(snap, price) },
		func() *Decision { return e.checkTakeProfit(snap, price) },
		func() *Decision { return e.checkTrendReversal(snap, price, sctx) },
		func() *Decision { return e.checkFlowWeakening(price, sctx) },
		func() *Decision { return e.checkKeyLevelBreak(snap, price, sctx) },
		func() *Decision { return e.checkTimeStop(snap, price) },
	}

	for idx := range checks {
		decision := checks[idx]()
		if decision != nil {
			return *decision
		}
	}

	return Decision{}
}
