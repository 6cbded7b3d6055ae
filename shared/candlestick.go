package shared

import (
	"fmt"
	"time"

	"github.com/tidwall/gjson"
)

const (
	// takerBuyEstimateRatio is the assumed taker buy share of volume used when
	// the raw data source does not report taker flow.
	takerBuyEstimateRatio = 0.5
)

// Candlestick represents a unit candlestick for a market.
type Candlestick struct {
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	Date   time.Time

	// Metadata and derived fields.
	Market    string
	Timeframe Timeframe

	// QuoteVolume and TakerBuyVolume are estimated when the raw source omits
	// them, see EstimateDerivedFields. Callers must treat them as estimates,
	// not ground truth.
	QuoteVolume    float64
	TakerBuyVolume float64
}

// EstimateDerivedFields fills the quote volume and taker buy volume fields
// when the raw data source lacks them. The quote volume is approximated using
// the close price and the taker buy volume assumes an even split of buy and
// sell flow.
func (c *Candlestick) EstimateDerivedFields() {
	if c.QuoteVolume == 0 {
		c.QuoteVolume = c.Volume * c.Close
	}
	if c.TakerBuyVolume == 0 {
		c.TakerBuyVolume = c.Volume * takerBuyEstimateRatio
	}
}

// ParseCandlesticks parses candlesticks from the provided json data.
func ParseCandlesticks(data []gjson.Result, market string, timeframe Timeframe, loc *time.Location) ([]Candlestick, error) {
	candles := make([]Candlestick, len(data))

	for idx := range data {
		var candle Candlestick

		candle.Open = data[idx].Get("open").Float()
		candle.High = data[idx].Get("high").Float()
		candle.Low = data[idx].Get("low").Float()
		candle.Close = data[idx].Get("close").Float()
		candle.Volume = data[idx].Get("volume").Float()
		candle.QuoteVolume = data[idx].Get("quoteVolume").Float()
		candle.TakerBuyVolume = data[idx].Get("takerBuyVolume").Float()

		candle.Market = market
		candle.Timeframe = timeframe

		dt, err := time.ParseInLocation(DateLayout, data[idx].Get("date").String(), loc)
		if err != nil {
			return nil, fmt.Errorf("parsing candlestick date: %w", err)
		}

		candle.Date = dt
		candle.EstimateDerivedFields()
		candles[idx] = candle
	}

	return candles, nil
}
