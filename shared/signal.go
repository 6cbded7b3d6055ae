package shared

import (
	"fmt"
	"time"
)

// SignalKind represents the kind of strategy signal.
type SignalKind int

const (
	Hold SignalKind = iota
	Buy
	Sell
)

// String stringifies the provided signal kind.
func (k SignalKind) String() string {
	switch k {
	case Hold:
		return "hold"
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "unknown"
	}
}

// Signal represents a strategy signal for a market. A hold signal carries no
// trade levels; buy and sell signals carry the stop loss, take profit and
// confidence set by the strategy engine, plus opaque strategy metadata passed
// through to the resulting trade record.
type Signal struct {
	Market     string
	Kind       SignalKind
	StopLoss   float64
	TakeProfit float64
	Confidence float64
	Metadata   map[string]string
	CreatedOn  time.Time
}

// NewBuySignal initializes a new buy signal.
func NewBuySignal(market string, stopLoss float64, takeProfit float64, confidence float64, created time.Time) Signal {
	return Signal{
		Market:     market,
		Kind:       Buy,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
		Confidence: confidence,
		CreatedOn:  created,
	}
}

// NewSellSignal initializes a new sell signal.
func NewSellSignal(market string, stopLoss float64, takeProfit float64, confidence float64, created time.Time) Signal {
	return Signal{
		Market:     market,
		Kind:       Sell,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
		Confidence: confidence,
		CreatedOn:  created,
	}
}

// HoldSignal initializes a new hold signal.
func HoldSignal(market string) Signal {
	return Signal{
		Market: market,
		Kind:   Hold,
	}
}

// Actionable returns whether the signal calls for a position.
func (s *Signal) Actionable() bool {
	return s.Kind == Buy || s.Kind == Sell
}

// Direction returns the position direction implied by the signal. Hold
// signals have no direction.
func (s *Signal) Direction() (Direction, error) {
	switch s.Kind {
	case Buy:
		return Long, nil
	case Sell:
		return Short, nil
	default:
		return 0, fmt.Errorf("no direction for %s signal", s.Kind.String())
	}
}
