package shared

// TrendDirection represents the prevailing trend label of a market.
type TrendDirection int

const (
	Sideways TrendDirection = iota
	Uptrend
	Downtrend
)

// String stringifies the provided trend direction.
func (t TrendDirection) String() string {
	switch t {
	case Sideways:
		return "sideways"
	case Uptrend:
		return "uptrend"
	case Downtrend:
		return "downtrend"
	default:
		return "unknown"
	}
}

// Matches returns whether the trend direction supports the provided position
// direction.
func (t TrendDirection) Matches(direction Direction) bool {
	switch direction {
	case Long:
		return t == Uptrend
	case Short:
		return t == Downtrend
	default:
		return false
	}
}

// TrendContext represents the trend state supplied by the strategy engine.
type TrendContext struct {
	Direction     TrendDirection
	Confirmations uint32
}

// FlowContext represents order flow pressure supplied by the strategy engine.
// Ratio is the same-direction taker pressure divided by the opposite
// direction pressure.
type FlowContext struct {
	Ratio float64
}

// LevelContext represents key price levels supplied by the strategy engine.
type LevelContext struct {
	ShortTermMA float64
	MidTermMA   float64
	SwingHigh   float64
	SwingLow    float64
}

// StrategyContext carries optional strategy state used by contextual exit
// rules. Any of its members may be nil when the strategy engine has not
// computed the corresponding state, the affected rules then do not fire.
type StrategyContext struct {
	Trend  *TrendContext
	Flow   *FlowContext
	Levels *LevelContext
}
