package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/avasek/simtrade/backtest"
	"github.com/avasek/simtrade/engine"
	"github.com/avasek/simtrade/marketdata"
	"github.com/avasek/simtrade/position"
	"github.com/avasek/simtrade/shared"
	"github.com/avasek/simtrade/store"
	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
)

const (
	// bufferSize is the default buffer size for channels.
	bufferSize = 64
	// defaultMargin is the margin allotted per simulated live position.
	defaultMargin = float64(100)
	// defaultLeverage is the leverage applied per simulated live position.
	defaultLeverage = float64(1)
)

// SimulateConfig represents the configuration struct for the simulation
// service.
type SimulateConfig struct {
	// Markets represents the simulated markets.
	Markets []string
	// Timeframe is the decision timeframe for the simulation.
	Timeframe shared.Timeframe
	// Strategy produces the signals under simulation.
	Strategy shared.StrategyEngine
	// Backtest is the backtesting flag.
	Backtest bool
	// BacktestStart is the start of the backtested range.
	BacktestStart time.Time
	// BacktestEnd is the end of the backtested range.
	BacktestEnd time.Time
	// BacktestDataFilepath is the filepath to captured backtest data. When
	// set the backtest replays the file instead of fetching from the
	// exchange.
	BacktestDataFilepath string
	// ExchangeBaseURL is the exchange rest api endpoint.
	ExchangeBaseURL string
	// StreamURL is the exchange websocket stream endpoint for live
	// simulation.
	StreamURL string
	// StoreEndpoint is the simulation store database endpoint. When empty
	// live simulated positions are not persisted.
	StoreEndpoint string
	// StoreUser is the simulation store database user.
	StoreUser string
	// StorePass is the simulation store database pass.
	StorePass string
	// MaxLossPerTrade caps the loss a simulated live position may realize at
	// its stop. Zero disables the cap.
	MaxLossPerTrade float64
	// TradesCSVPath is the filepath closed backtest trades are written to.
	TradesCSVPath string
	// Cancel is the context cancellation function.
	Cancel context.CancelFunc
}

// Validate asserts the config sane inputs.
func (cfg *SimulateConfig) Validate() error {
	var errs error

	if len(cfg.Markets) == 0 {
		errs = errors.Join(errs, fmt.Errorf("no markets provided for simulation service"))
	}
	if cfg.Strategy == nil {
		errs = errors.Join(errs, fmt.Errorf("strategy engine cannot be nil"))
	}
	if cfg.Cancel == nil {
		errs = errors.Join(errs, fmt.Errorf("context cancellation function cannot be nil"))
	}
	if cfg.Backtest {
		if !cfg.BacktestEnd.After(cfg.BacktestStart) {
			errs = errors.Join(errs, fmt.Errorf("backtest range end must be after its start"))
		}
	} else {
		if cfg.StreamURL == "" {
			errs = errors.Join(errs, fmt.Errorf("stream url cannot be an empty string for live simulation"))
		}
	}

	return errs
}

// Simulate represents the trade simulation service.
type Simulate struct {
	cfg          *SimulateConfig
	marketData   *marketdata.Manager
	positionMgr  *position.Manager
	exitEngine   *engine.Engine
	runner       *backtest.Runner
	stream       *marketdata.Stream
	storer       store.SimulationStorer
	jobScheduler *gocron.Scheduler
	updates      chan shared.Candlestick
	logger       *zerolog.Logger
	wg           sync.WaitGroup
}

// NewSimulate initializes a new simulation service.
func NewSimulate(ctx context.Context, cfg *SimulateConfig) (*Simulate, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	logger := log.With().Str("service", "simulate").Logger()

	var fetcher shared.MarketFetcher
	switch {
	case cfg.BacktestDataFilepath != "":
		fetcher, err = marketdata.NewFileFetcher(cfg.BacktestDataFilepath)
		if err != nil {
			return nil, fmt.Errorf("creating file fetcher: %v", err)
		}
	default:
		fetcher = marketdata.NewBinanceClient(&marketdata.BinanceConfig{
			BaseURL: cfg.ExchangeBaseURL,
		})
	}

	jobScheduler := gocron.NewScheduler(time.UTC)

	marketDataLogger := logger.With().Str("component", "marketdata").Logger()
	marketData, err := marketdata.NewManager(&marketdata.ManagerConfig{
		Fetcher:      fetcher,
		JobScheduler: jobScheduler,
		Logger:       marketDataLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating market data manager: %v", err)
	}

	var storer store.SimulationStorer
	if cfg.StoreEndpoint != "" {
		storeLogger := logger.With().Str("component", "store").Logger()
		storer, err = store.NewStore(ctx, &store.StoreConfig{
			Endpoint:        cfg.StoreEndpoint,
			User:            cfg.StoreUser,
			Pass:            cfg.StorePass,
			MaxLossPerTrade: cfg.MaxLossPerTrade,
			Logger:          storeLogger,
		})
		if err != nil {
			return nil, fmt.Errorf("creating simulation store: %v", err)
		}
	}

	engineLogger := logger.With().Str("component", "engine").Logger()
	exitEngine := engine.NewEngine(&engine.EngineConfig{
		Logger: engineLogger,
	})

	persistOpenFunc := func(ctx context.Context, pos *position.Position) error {
		if storer == nil {
			return nil
		}

		record := &store.SimulationRecord{
			ID:         pos.ID,
			Market:     pos.Market,
			Direction:  pos.Direction,
			EntryPrice: pos.EntryPrice,
			EntryTime:  pos.EntryTime,
			StopLoss:   pos.StopLoss,
			TakeProfit: pos.TakeProfit,
			Margin:     defaultMargin,
			Leverage:   defaultLeverage,
			Confidence: pos.Confidence,
			CreatedOn:  pos.EntryTime,
		}

		_, err := storer.CreateSimulation(ctx, record)
		return err
	}

	persistClosedFunc := func(ctx context.Context, trade *shared.Trade) error {
		if storer == nil {
			return nil
		}

		return storer.CloseSimulation(ctx, trade.ID, trade.ExitPrice,
			trade.ExitTime, trade.CloseReason)
	}

	positionMgrLogger := logger.With().Str("component", "positionmanager").Logger()
	positionMgr := position.NewManager(&position.ManagerConfig{
		CheckExit: exitEngine.Evaluate,
		Notify: func(message string) {
			positionMgrLogger.Info().Msg(message)
		},
		PersistOpenPosition: persistOpenFunc,
		PersistClosedTrade:  persistClosedFunc,
		Logger:              positionMgrLogger,
	})

	runnerLogger := logger.With().Str("component", "backtest").Logger()
	runner, err := backtest.NewRunner(&backtest.RunnerConfig{
		MarketData: marketData,
		Positions:  positionMgr,
		Strategy:   cfg.Strategy,
		Profile:    backtest.SpotProfile,
		Logger:     runnerLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating backtest runner: %v", err)
	}

	service := &Simulate{
		cfg:          cfg,
		marketData:   marketData,
		positionMgr:  positionMgr,
		exitEngine:   exitEngine,
		runner:       runner,
		storer:       storer,
		jobScheduler: jobScheduler,
		updates:      make(chan shared.Candlestick, bufferSize),
		logger:       &logger,
	}

	if !cfg.Backtest {
		marketData.Subscribe(service.updates)

		streamLogger := logger.With().Str("component", "stream").Logger()
		service.stream, err = marketdata.NewStream(&marketdata.StreamConfig{
			URL:         cfg.StreamURL,
			Markets:     cfg.Markets,
			Timeframe:   cfg.Timeframe,
			RelayCandle: marketData.NotifySubscribers,
			Logger:      streamLogger,
		})
		if err != nil {
			return nil, fmt.Errorf("creating candle stream: %v", err)
		}
	}

	return service, nil
}

// runBacktest replays the configured range and reports the per-market
// results.
func (s *Simulate) runBacktest(ctx context.Context) {
	result, err := s.runner.Run(ctx, s.cfg.Markets, s.cfg.Timeframe,
		s.cfg.BacktestStart, s.cfg.BacktestEnd)
	if err != nil {
		s.logger.Error().Msgf("running backtest: %v", err)
		s.cfg.Cancel()
		return
	}

	for market, summary := range result.Summaries {
		s.logger.Info().Msgf("%s: %d trades, win rate %.2f%%, net %.2f, max drawdown %.2f",
			market, summary.Report.TotalTrades, summary.Report.WinRate,
			summary.Report.NetProfit, summary.Report.MaxDrawdown)
	}

	if s.cfg.TradesCSVPath != "" {
		err = s.positionMgr.PersistTradesCSV(s.cfg.TradesCSVPath)
		if err != nil {
			s.logger.Error().Msgf("persisting trades: %v", err)
		}

		s.logger.Info().Msgf("backtest done, review %s for trade details", s.cfg.TradesCSVPath)
	}

	s.cfg.Cancel()
}

// processUpdates advances the simulation with live market updates until the
// context is cancelled. A failed bar for one market is logged and does not
// stall the others.
func (s *Simulate) processUpdates(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case candle := <-s.updates:
			_, err := s.runner.HandleBar(ctx, &candle)
			if err != nil {
				s.logger.Error().Msgf("handling %s bar: %v", candle.Market, err)
			}
		}
	}
}

// Run handles the lifecycle processes of the simulation service.
func (s *Simulate) Run(ctx context.Context) {
	s.jobScheduler.StartAsync()
	defer s.jobScheduler.Stop()

	if s.cfg.Backtest {
		s.wg.Add(1)
		go func() {
			s.runBacktest(ctx)
			s.wg.Done()
		}()

		s.wg.Wait()
		return
	}

	s.wg.Add(2)

	go func() {
		s.stream.Run(ctx)
		s.wg.Done()
	}()

	go func() {
		s.processUpdates(ctx)
		s.wg.Done()
	}()

	s.wg.Wait()
}
