package marketdata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/avasek/simtrade/shared"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

const (
	// reconnectDelay is the wait before redialing a dropped stream.
	reconnectDelay = time.Second * 5
	// readTimeout bounds how long a stream read may block.
	readTimeout = time.Minute
)

// StreamConfig represents the live candle stream configuration.
type StreamConfig struct {
	// URL is the websocket stream endpoint.
	URL string
	// Markets are the markets to stream.
	Markets []string
	// Timeframe is the streamed candle timeframe.
	Timeframe shared.Timeframe
	// RelayCandle relays a closed candle to the simulation pipeline.
	RelayCandle func(candle shared.Candlestick)
	// Logger represents the application logger.
	Logger zerolog.Logger
}

// Stream consumes live closed candles for a set of markets over a websocket
// connection, redialing on failure until its context is cancelled.
type Stream struct {
	cfg    *StreamConfig
	dialer *websocket.Dialer
}

// NewStream initializes a new candle stream.
func NewStream(cfg *StreamConfig) (*Stream, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("stream url cannot be an empty string")
	}
	if len(cfg.Markets) == 0 {
		return nil, fmt.Errorf("no markets provided for streaming")
	}
	if cfg.RelayCandle == nil {
		return nil, fmt.Errorf("candle relay cannot be nil")
	}

	return &Stream{
		cfg:    cfg,
		dialer: &websocket.Dialer{},
	}, nil
}

// streamURL forms the combined kline stream url for the configured markets.
func (s *Stream) streamURL() string {
	streams := make([]string, len(s.cfg.Markets))
	for idx := range s.cfg.Markets {
		streams[idx] = fmt.Sprintf("%s@kline_%s",
			strings.ToLower(s.cfg.Markets[idx]), s.cfg.Timeframe.String())
	}

	return fmt.Sprintf("%s/stream?streams=%s", s.cfg.URL, strings.Join(streams, "/"))
}

// parseStreamCandle parses a closed candle from a combined stream kline
// message. Open candles are skipped, only bar closes advance the simulation.
func (s *Stream) parseStreamCandle(message []byte) (*shared.Candlestick, error) {
	kline := gjson.GetBytes(message, "data.k")
	if !kline.Exists() {
		return nil, nil
	}
	if !kline.Get("x").Bool() {
		// Candle still open.
		return nil, nil
	}

	candle := shared.Candlestick{
		Market:         kline.Get("s").String(),
		Timeframe:      s.cfg.Timeframe,
		Open:           kline.Get("o").Float(),
		High:           kline.Get("h").Float(),
		Low:            kline.Get("l").Float(),
		Close:          kline.Get("c").Float(),
		Volume:         kline.Get("v").Float(),
		QuoteVolume:    kline.Get("q").Float(),
		TakerBuyVolume: kline.Get("V").Float(),
		Date:           time.UnixMilli(kline.Get("t").Int()).UTC(),
	}
	candle.EstimateDerivedFields()

	return &candle, nil
}

// readLoop consumes messages from the provided connection until it fails or
// the context is cancelled.
func (s *Stream) readLoop(ctx context.Context, conn *websocket.Conn) error {
	defer conn.Close()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := conn.SetReadDeadline(time.Now().Add(readTimeout))
		if err != nil {
			return fmt.Errorf("setting stream read deadline: %w", err)
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("reading stream message: %w", err)
		}

		candle, err := s.parseStreamCandle(message)
		if err != nil {
			s.cfg.Logger.Error().Msgf("parsing stream candle: %v", err)
			continue
		}
		if candle == nil {
			continue
		}

		s.cfg.RelayCandle(*candle)
	}
}

// Run manages the lifecycle processes of the stream.
func (s *Stream) Run(ctx context.Context) {
	url := s.streamURL()

	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := s.dialer.DialContext(ctx, url, nil)
		if err != nil {
			s.cfg.Logger.Error().Msgf("dialing stream: %v", err)
		} else {
			err = s.readLoop(ctx, conn)
			if err != nil && ctx.Err() == nil {
				s.cfg.Logger.Error().Msgf("stream read loop: %v", err)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}
