package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/avasek/simtrade/shared"
	"github.com/joho/godotenv"
)

// rangeLayout is the format layout for the backtest range flags.
const rangeLayout = "2006-01-02"

// Config is the configuration struct for the service.
type Config struct {
	// Markets represents the simulated markets.
	Markets []string
	// Timeframe is the decision timeframe for the simulation.
	Timeframe string
	// Backtest is the backtesting flag.
	Backtest bool
	// BacktestStart is the start date of the backtested range.
	BacktestStart string
	// BacktestEnd is the end date of the backtested range.
	BacktestEnd string
	// BacktestDataFilepath is the filepath to the backtest data.
	BacktestDataFilepath string
	// StreamURL is the exchange websocket stream endpoint.
	StreamURL string
	// StoreEndpoint is the simulation store database endpoint.
	StoreEndpoint string
	// StoreUser is the simulation store database user.
	StoreUser string
	// StorePass is the simulation store database pass.
	StorePass string
	// MaxLossPerTrade caps the loss a simulated position may realize.
	MaxLossPerTrade float64
	// TradesCSVPath is the filepath backtest trades are written to.
	TradesCSVPath string

	registeredFlags map[string]bool
}

// Validate asserts the config sane inputs.
func (cfg *Config) Validate() error {
	var errs error

	if len(cfg.Markets) == 0 {
		errs = errors.Join(errs, fmt.Errorf("no markets provided for simulation service"))
	}

	_, err := shared.ParseTimeframe(cfg.Timeframe)
	if err != nil {
		errs = errors.Join(errs, err)
	}

	switch cfg.Backtest {
	case true:
		start, startErr := time.Parse(rangeLayout, cfg.BacktestStart)
		if startErr != nil {
			errs = errors.Join(errs, fmt.Errorf("parsing backtest start date: %v", startErr))
		}
		end, endErr := time.Parse(rangeLayout, cfg.BacktestEnd)
		if endErr != nil {
			errs = errors.Join(errs, fmt.Errorf("parsing backtest end date: %v", endErr))
		}
		if startErr == nil && endErr == nil && !end.After(start) {
			errs = errors.Join(errs, fmt.Errorf("backtest end date must be after its start date"))
		}
	case false:
		if cfg.StreamURL == "" {
			errs = errors.Join(errs, fmt.Errorf("stream url cannot be an empty string"))
		}
	}

	return errs
}

// registerFlag registers command line arguments of any type and tracks them to avoid reregistration.
func (cfg *Config) registerFlag(name string, value interface{}, usage string) error {
	if cfg.registeredFlags == nil {
		cfg.registeredFlags = make(map[string]bool)
	}

	if cfg.registeredFlags[name] {
		return nil
	}

	cfg.registeredFlags[name] = true

	defValue := os.Getenv(name)
	val := reflect.ValueOf(value)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return fmt.Errorf("%s: value must be a non-nil pointer", name)
	}

	switch val.Elem().Kind() {
	case reflect.String:
		flag.StringVar(value.(*string), name, defValue, usage)
	case reflect.Bool:
		var def bool
		if defValue != "" {
			def, _ = strconv.ParseBool(defValue)
		}
		flag.BoolVar(value.(*bool), name, def, usage)
	case reflect.Int:
		var def int
		if defValue != "" {
			def, _ = strconv.Atoi(defValue)
		}
		flag.IntVar(value.(*int), name, def, usage)
	case reflect.Float64:
		var def float64
		if defValue != "" {
			def, _ = strconv.ParseFloat(defValue, 64)
		}
		flag.Float64Var(value.(*float64), name, def, usage)
	case reflect.Slice:
		// Only handle []string
		if val.Elem().Type().Elem().Kind() == reflect.String {
			var def []string
			if defValue != "" {
				def = strings.Split(defValue, ",")
			}
			flag.Func(name, usage, func(s string) error {
				*value.(*[]string) = strings.Split(s, ",")
				return nil
			})
			// Set default if not provided via flag
			if len(def) > 0 {
				*value.(*[]string) = def
			}
		} else {
			return fmt.Errorf("%s: unsupported slice type", name)
		}
	default:
		return fmt.Errorf("%s: unsupported type", name)
	}

	return nil
}

// loadConfig loads the configuration from environment variables and command line flags.
func loadConfig(cfg *Config, path string) error {
	if path == "" {
		path = ".env"
	}

	// Check if the expected .env file exists before loading it.
	_, err := os.Stat(path)
	if err == nil {
		err := godotenv.Load(path)
		if err != nil {
			return fmt.Errorf("loading .env file: %w", err)
		}
	}

	// Register command line arguments using loaded environment variables as defaults.
	err = cfg.registerFlag("markets", &cfg.Markets, "the simulated markets")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("timeframe", &cfg.Timeframe, "the decision timeframe")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("backtest", &cfg.Backtest, "the backtest flag")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("backteststart", &cfg.BacktestStart, "the backtest range start date")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("backtestend", &cfg.BacktestEnd, "the backtest range end date")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("backtestdatafilepath", &cfg.BacktestDataFilepath, "the backtest data filepath")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("streamurl", &cfg.StreamURL, "the exchange websocket stream endpoint")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("storeendpoint", &cfg.StoreEndpoint, "the simulation store endpoint")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("storeuser", &cfg.StoreUser, "the simulation store user")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("storepass", &cfg.StorePass, "the simulation store pass")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("maxlosspertrade", &cfg.MaxLossPerTrade, "the max loss allowed per simulated trade")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("tradescsvpath", &cfg.TradesCSVPath, "the backtest trades csv filepath")
	if err != nil {
		return err
	}

	// Parse command-line flags.
	flag.Parse()

	return cfg.Validate()
}
