package marketdata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/avasek/simtrade/shared"
	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

const (
	// DefaultLookback is the default lookback window size in bars.
	DefaultLookback = 100
)

// ErrNoMarketData is returned when a requested range has no market data.
// Callers can distinguish an empty range from a request that produced zero
// trades.
var ErrNoMarketData = errors.New("no market data for requested range")

// ManagerConfig represents the market data manager configuration.
type ManagerConfig struct {
	// Fetcher represents the market data source.
	Fetcher shared.MarketFetcher
	// Cache caches fetched windows by composite key.
	Cache Cache
	// JobScheduler schedules periodic refreshes in live mode.
	JobScheduler *gocron.Scheduler
	// Logger represents the application logger.
	Logger zerolog.Logger
}

// Manager supplies bounded, ordered windows of historical bars and fans out
// live market updates to subscribers.
type Manager struct {
	cfg            *ManagerConfig
	subscribers    []chan shared.Candlestick
	subscribersMtx sync.RWMutex
}

// NewManager initializes the market data manager.
func NewManager(cfg *ManagerConfig) (*Manager, error) {
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("market data fetcher cannot be nil")
	}
	if cfg.Cache == nil {
		cfg.Cache = NewMemoryCache(0, 0)
	}

	return &Manager{
		cfg:         cfg,
		subscribers: []chan shared.Candlestick{},
	}, nil
}

// windowKey builds the composite cache key for a window request.
func windowKey(market string, timeframe shared.Timeframe, start time.Time, end time.Time) string {
	var b strings.Builder
	b.WriteString(market)
	b.WriteString(":")
	b.WriteString(timeframe.String())
	b.WriteString(":")
	b.WriteString(start.UTC().Format(time.RFC3339))
	b.WriteString(":")
	b.WriteString(end.UTC().Format(time.RFC3339))

	return b.String()
}

// FetchWindow returns the ordered candle window for the provided market,
// timeframe and date range. Repeated calls with the same key are served from
// the cache until ClearCache is invoked or the entry expires. An empty range
// is an explicit error, not a silent empty result.
func (m *Manager) FetchWindow(ctx context.Context, market string, timeframe shared.Timeframe, start time.Time, end time.Time) ([]shared.Candlestick, error) {
	key := windowKey(market, timeframe, start, end)

	candles, ok := m.cfg.Cache.Get(key)
	if ok {
		return cloneWindow(candles), nil
	}

	candles, err := m.cfg.Fetcher.FetchCandles(ctx, market, timeframe, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetching %s window (%s): %w", market, timeframe.String(), err)
	}

	if len(candles) == 0 {
		return nil, fmt.Errorf("%w: %s %s from %s to %s", ErrNoMarketData, market,
			timeframe.String(), start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	m.cfg.Cache.Set(key, cloneWindow(candles))

	return candles, nil
}

// cloneWindow copies a window so callers never alias cached bars.
func cloneWindow(candles []shared.Candlestick) []shared.Candlestick {
	clone := make([]shared.Candlestick, len(candles))
	copy(clone, candles)

	return clone
}

// ClearCache invalidates all cached windows.
func (m *Manager) ClearCache() {
	m.cfg.Cache.Clear()
}

// Subscribe registers the provided subscriber for market updates.
func (m *Manager) Subscribe(sub chan shared.Candlestick) {
	m.subscribersMtx.Lock()
	defer m.subscribersMtx.Unlock()

	m.subscribers = append(m.subscribers, sub)
}

// NotifySubscribers notifies subscribers of the new market update.
func (m *Manager) NotifySubscribers(candle shared.Candlestick) {
	m.subscribersMtx.RLock()
	defer m.subscribersMtx.RUnlock()

	for k := range m.subscribers {
		m.subscribers[k] <- candle
	}
}

// ScheduleRefresh schedules a recurring fetch of the latest bars for the
// provided market and timeframe, relaying new candles to subscribers. Used
// for live simulation where no tick stream is available.
func (m *Manager) ScheduleRefresh(ctx context.Context, market string, timeframe shared.Timeframe, every time.Duration) error {
	if m.cfg.JobScheduler == nil {
		return fmt.Errorf("no job scheduler configured for refreshes")
	}

	// A refresh that outlasts its interval overlaps the next run, the cursor
	// is guarded so overlapping runs stay ordered.
	var refreshMtx sync.Mutex
	lastSeen := time.Now().Add(-every)
	_, err := m.cfg.JobScheduler.Every(every).Do(func() {
		refreshMtx.Lock()
		defer refreshMtx.Unlock()

		candles, err := m.cfg.Fetcher.FetchCandles(ctx, market, timeframe, lastSeen, time.Time{})
		if err != nil {
			m.cfg.Logger.Error().Msgf("refreshing %s (%s): %v", market, timeframe.String(), err)
			return
		}

		for idx := range candles {
			if !candles[idx].Date.After(lastSeen) {
				continue
			}

			lastSeen = candles[idx].Date
			m.NotifySubscribers(candles[idx])
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling %s refresh: %w", market, err)
	}

	return nil
}

// LookbackWindow slices up to n bars backward from the provided index,
// inclusive. Slicing lookback context is the caller's responsibility, the
// provider only serves full windows.
func LookbackWindow(candles []shared.Candlestick, idx int, n int) []shared.Candlestick {
	if idx < 0 || idx >= len(candles) {
		return nil
	}
	if n <= 0 {
		n = DefaultLookback
	}

	start := idx - n + 1
	if start < 0 {
		start = 0
	}

	return candles[start : idx+1]
}
