package marketdata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avasek/simtrade/shared"
	"github.com/tidwall/gjson"
)

const (
	// BaseURL is the binance spot api endpoint.
	BaseURL = "https://api.binance.com"
	// maxKlineLimit is the maximum number of klines returned per request.
	maxKlineLimit = 1000
)

// BinanceConfig represents the configuration for the binance client.
type BinanceConfig struct {
	// BaseURL is the api endpoint.
	BaseURL string
}

// BinanceClient represents the binance market data api client. The client is
// safe for concurrent use, window fetches for multiple markets run in
// parallel against it.
type BinanceClient struct {
	cfg   *BinanceConfig
	httpc http.Client
}

// Ensure the binance client implements the MarketFetcher interface.
var _ shared.MarketFetcher = (*BinanceClient)(nil)

// NewBinanceClient instantiates a new binance client.
func NewBinanceClient(cfg *BinanceConfig) *BinanceClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = BaseURL
	}

	return &BinanceClient{
		cfg:   cfg,
		httpc: http.Client{Timeout: time.Second * 5},
	}
}

// formURL creates full urls including parameters for the api.
func (c *BinanceClient) formURL(path string, params string) string {
	var b strings.Builder
	b.Grow(len(c.cfg.BaseURL) + len(path) + len(params) + 1)
	b.WriteString(c.cfg.BaseURL)
	b.WriteString(path)
	b.WriteString("?")
	b.WriteString(params)

	return b.String()
}

// parseKlines parses candlesticks from the provided kline array payload.
// Kline entries carry quote volume and taker buy volume natively, no
// estimation is needed for this venue.
func parseKlines(data []gjson.Result, market string, timeframe shared.Timeframe) ([]shared.Candlestick, error) {
	candles := make([]shared.Candlestick, len(data))

	for idx := range data {
		fields := data[idx].Array()
		if len(fields) < 10 {
			return nil, fmt.Errorf("malformed kline entry with %d fields", len(fields))
		}

		var candle shared.Candlestick
		candle.Date = time.UnixMilli(fields[0].Int()).UTC()
		candle.Open = fields[1].Float()
		candle.High = fields[2].Float()
		candle.Low = fields[3].Float()
		candle.Close = fields[4].Float()
		candle.Volume = fields[5].Float()
		candle.QuoteVolume = fields[7].Float()
		candle.TakerBuyVolume = fields[9].Float()

		candle.Market = market
		candle.Timeframe = timeframe

		candles[idx] = candle
	}

	return candles, nil
}

// FetchCandles fetches historical candle data for the provided market and
// timeframe over the given range.
func (c *BinanceClient) FetchCandles(ctx context.Context, market string, timeframe shared.Timeframe, start time.Time, end time.Time) ([]shared.Candlestick, error) {
	const klinesPath = "/api/v3/klines"

	params := url.Values{}
	params.Add("symbol", market)
	params.Add("interval", timeframe.String())
	params.Add("startTime", strconv.FormatInt(start.UnixMilli(), 10))
	if !end.IsZero() {
		params.Add("endTime", strconv.FormatInt(end.UnixMilli(), 10))
	}
	params.Add("limit", strconv.Itoa(maxKlineLimit))

	formedURL := c.formURL(klinesPath, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, formedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating klines request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s klines (%s): %w", market, timeframe.String(), err)
	}

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading klines response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected klines response status %d: %s", resp.StatusCode, string(body))
	}

	data := gjson.ParseBytes(body).Array()

	return parseKlines(data, market, timeframe)
}
