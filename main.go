package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/avasek/simtrade/service"
	"github.com/avasek/simtrade/shared"
)

// holdStrategy is the built-in placeholder strategy. It never signals an
// entry, so a simulation run with it only exercises the market data and exit
// pipeline.
//
// todo: load strategy implementations from a plugin boundary once external
// strategy engines are available.
type holdStrategy struct{}

func (s *holdStrategy) ExecuteStrategy(ctx context.Context, candle *shared.Candlestick) (shared.Signal, error) {
	return shared.HoldSignal(candle.Market), nil
}

func (s *holdStrategy) StrategyContext(ctx context.Context, candle *shared.Candlestick) (*shared.StrategyContext, error) {
	return nil, nil
}

func (s *holdStrategy) Name() string {
	return "hold"
}

// handleTermination processes context cancellation signals or interrupt signals from the OS.
func handleTermination(ctx context.Context, cancel context.CancelFunc) {
	// Listen for interrupt signals.
	signals := []os.Signal{os.Interrupt}
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, signals...)

	// Wait for the context to be cancelled or an interrupt signal.
	for {
		select {
		case <-ctx.Done():
			return

		case <-interrupt:
			cancel()
		}
	}
}

func main() {
	var cfg Config
	err := loadConfig(&cfg, "")
	if err != nil {
		log.Printf("loading config: %v", err)
		return
	}

	timeframe, err := shared.ParseTimeframe(cfg.Timeframe)
	if err != nil {
		log.Printf("parsing timeframe: %v", err)
		return
	}

	var backtestStart, backtestEnd time.Time
	if cfg.Backtest {
		backtestStart, _ = time.Parse(rangeLayout, cfg.BacktestStart)
		backtestEnd, _ = time.Parse(rangeLayout, cfg.BacktestEnd)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	simulateCfg := service.SimulateConfig{
		Markets:              cfg.Markets,
		Timeframe:            timeframe,
		Strategy:             &holdStrategy{},
		Backtest:             cfg.Backtest,
		BacktestStart:        backtestStart,
		BacktestEnd:          backtestEnd,
		BacktestDataFilepath: cfg.BacktestDataFilepath,
		StreamURL:            cfg.StreamURL,
		StoreEndpoint:        cfg.StoreEndpoint,
		StoreUser:            cfg.StoreUser,
		StorePass:            cfg.StorePass,
		MaxLossPerTrade:      cfg.MaxLossPerTrade,
		TradesCSVPath:        cfg.TradesCSVPath,
		Cancel:               cancel,
	}
	simulate, err := service.NewSimulate(ctx, &simulateCfg)
	if err != nil {
		log.Printf("creating simulation service: %v", err)
		return
	}

	go handleTermination(ctx, cancel)
	simulate.Run(ctx)
}
