package shared

// Direction represents market direction.
type Direction int

const (
	Long Direction = iota
	Short
)

// String stringifies the provided direction.
func (d Direction) String() string {
	switch d {
	case Long:
		return "long"
	case Short:
		return "short"
	default:
		return "unknown"
	}
}

// CloseReason represents the reason a position was closed.
type CloseReason int

const (
	StopLossHit CloseReason = iota
	TakeProfitHit
	ReverseSignal
	TrendReversal
	DeltaWeakening
	SupportResistanceBreak
	TimeStop
	UnknownReason
)

// String stringifies the provided close reason.
func (r CloseReason) String() string {
	switch r {
	case StopLossHit:
		return "stop loss"
	case TakeProfitHit:
		return "take profit"
	case ReverseSignal:
		return "reverse signal"
	case TrendReversal:
		return "trend reversal"
	case DeltaWeakening:
		return "delta weakening"
	case SupportResistanceBreak:
		return "support/resistance break"
	case TimeStop:
		return "time stop"
	default:
		return "unknown"
	}
}

// CloseReasons is the enumerated set of close reasons used by statistics
// bucketing.
var CloseReasons = []CloseReason{StopLossHit, TakeProfitHit, ReverseSignal,
	TrendReversal, DeltaWeakening, SupportResistanceBreak, TimeStop, UnknownReason}
