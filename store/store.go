package store

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/avasek/simtrade/pnl"
	"github.com/avasek/simtrade/shared"
	"github.com/davecgh/go-spew/spew"
	"github.com/google/uuid"
	rqlitehttp "github.com/rqlite/rqlite-go-http"
	"github.com/rs/zerolog"
)

const (
	// defaultCooldown is the minimum time between two record creations for
	// the same market and direction.
	defaultCooldown = time.Minute * 10

	// SQL statements.
	createSimulationTableSQL = "CREATE TABLE IF NOT EXISTS simulation (id TEXT PRIMARY KEY, market TEXT, direction TEXT, entryprice REAL, entrytime INTEGER, stoploss REAL, takeprofit REAL, margin REAL, leverage REAL, exitprice REAL, exittime INTEGER, pnl REAL, pnlpercent REAL, closereason TEXT, confidence REAL, status TEXT, createdon INTEGER)"
	createMetadataTableSQL   = "CREATE TABLE IF NOT EXISTS metadata (id TEXT PRIMARY KEY, total INTEGER, wins INTEGER, winpercent REAL, losses INTEGER, losspercent REAL, createdon INTEGER)"
	insertSimulationSQL      = "INSERT INTO simulation(id, market, direction, entryprice, entrytime, stoploss, takeprofit, margin, leverage, exitprice, exittime, pnl, pnlpercent, closereason, confidence, status, createdon) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)"
	closeSimulationSQL       = "UPDATE simulation SET exitprice = ?, exittime = ?, pnl = ?, pnlpercent = ?, closereason = ?, status = ? WHERE id = ? AND status = ?"
	findMetadataSQL          = "SELECT * FROM metadata WHERE id = ?"
	updateMetadataSQL        = "UPDATE metadata SET total = total + 1, wins = wins + ?, winpercent = winpercent + ?, losses = losses + ?, losspercent = losspercent + ? WHERE id = ?"
	insertMetadataSQL        = "INSERT INTO metadata(id, total, wins, winpercent, losses, losspercent, createdon) VALUES(?,?,?,?,?,?,?)"
)

// SimulationStorer defines the requirements for persisting simulated trades.
type SimulationStorer interface {
	// CreateSimulation persists a new open simulation record.
	CreateSimulation(ctx context.Context, record *SimulationRecord) (*SimulationRecord, error)
	// CloseSimulation concludes an open simulation record.
	CloseSimulation(ctx context.Context, id string, exitPrice float64, exitTime time.Time, reason shared.CloseReason) error
}

// StoreConfig is the configuration for the simulation store.
type StoreConfig struct {
	// Endpoint represents the database connection endpoint.
	Endpoint string
	// User is the database user.
	User string
	// Pass is the database user pass.
	Pass string
	// Cooldown is the duplicate suppression window for record creation.
	Cooldown time.Duration
	// MaxLossPerTrade caps the loss a record may realize at its stop, in
	// quote currency. Zero disables the cap.
	MaxLossPerTrade float64
	// Logger is the store logger.
	Logger zerolog.Logger
}

// Store persists simulation records to rqlite.
type Store struct {
	cfg     *StoreConfig
	client  *rqlitehttp.Client
	recent  *recentTracker
	openMtx sync.Mutex
	open    map[string]*SimulationRecord
}

// Ensure the store implements the SimulationStorer interface.
var _ SimulationStorer = (*Store)(nil)

// NewStore initializes a new simulation store.
func NewStore(ctx context.Context, cfg *StoreConfig) (*Store, error) {
	httpc := &http.Client{Timeout: time.Second * 5}
	client, err := rqlitehttp.NewClient(cfg.Endpoint, httpc)
	if err != nil {
		return nil, fmt.Errorf("creating store client: %w", err)
	}

	if cfg.User != "" {
		client.SetBasicAuth(cfg.User, cfg.Pass)
	}
	if cfg.Cooldown == 0 {
		cfg.Cooldown = defaultCooldown
	}

	store := &Store{
		cfg:    cfg,
		client: client,
		recent: newRecentTracker(),
		open:   make(map[string]*SimulationRecord),
	}

	err = store.bootstrap(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrapping store: %w", err)
	}

	return store, nil
}

// bootstrap initializes the store tables.
func (s *Store) bootstrap(ctx context.Context) error {
	resp, err := s.client.Execute(ctx, rqlitehttp.SQLStatements{
		{SQL: createSimulationTableSQL},
		{SQL: createMetadataTableSQL},
	}, &rqlitehttp.ExecuteOptions{
		Transaction: true,
		Timings:     true,
	})
	if err != nil {
		return err
	}
	has, idx, errStr := resp.HasError()
	if has {
		return fmt.Errorf("creating store tables: %d -> %s", idx, errStr)
	}

	return nil
}

// capRisk shrinks the leverage, then the margin, of a record until the loss
// realized at its stop satisfies the provided cap. The loss at stop follows
// the margin convention: risk percent times margin times leverage.
func capRisk(record *SimulationRecord, maxLoss float64) {
	if maxLoss <= 0 || record.EntryPrice == 0 || record.StopLoss == 0 {
		return
	}

	riskPct := math.Abs(record.EntryPrice-record.StopLoss) / record.EntryPrice
	if riskPct == 0 {
		return
	}

	for record.Leverage > 1 && record.Margin*record.Leverage*riskPct > maxLoss {
		record.Leverage--
	}

	if record.Margin*record.Leverage*riskPct > maxLoss {
		record.Margin = maxLoss / (record.Leverage * riskPct)
	}
}

// generateMetadataID generates deterministic ids for metadata using the
// current month, week and market.
func generateMetadataID(currentTime time.Time, market string) string {
	month := currentTime.Month().String()
	week := currentTime.Day() / 7

	id := fmt.Sprintf("%s-Week-%d-%s", month, week, market)
	return id
}

// CreateSimulation persists a new open simulation record. A record created
// for the same market and direction within the cooldown window is treated as
// signal chatter, the existing record is returned and nothing is persisted.
// The max loss cap is applied before persisting.
func (s *Store) CreateSimulation(ctx context.Context, record *SimulationRecord) (*SimulationRecord, error) {
	if record == nil {
		return nil, fmt.Errorf("simulation record cannot be nil")
	}

	existing := s.recent.recent(record.Market, record.Direction, record.CreatedOn, s.cfg.Cooldown)
	if existing != nil {
		return existing, nil
	}

	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	record.Status = RecordOpen
	capRisk(record, s.cfg.MaxLossPerTrade)

	resp, err := s.client.Execute(ctx, rqlitehttp.SQLStatements{
		{
			SQL: insertSimulationSQL,
			PositionalParams: []any{record.ID, record.Market, record.Direction.String(),
				record.EntryPrice, record.EntryTime.Unix(), record.StopLoss, record.TakeProfit,
				record.Margin, record.Leverage, record.ExitPrice, int64(0), record.PNL,
				record.PNLPercent, record.CloseReason.String(), record.Confidence,
				record.Status.String(), record.CreatedOn.Unix()},
		},
	}, &rqlitehttp.ExecuteOptions{Transaction: true, Timings: true})
	if err != nil {
		return nil, fmt.Errorf("persisting simulation %s: %w", record.ID, err)
	}
	has, idx, errStr := resp.HasError()
	if has {
		return nil, fmt.Errorf("persisting simulation %s: %d -> %s", record.ID, idx, errStr)
	}

	s.recent.track(record)

	s.openMtx.Lock()
	s.open[record.ID] = record
	s.openMtx.Unlock()

	return record, nil
}

// CloseSimulation concludes an open simulation record with the provided exit
// details, computing the record pnl under the margin convention. Closing an
// already closed record is a no-op.
func (s *Store) CloseSimulation(ctx context.Context, id string, exitPrice float64, exitTime time.Time, reason shared.CloseReason) error {
	s.openMtx.Lock()
	record, ok := s.open[id]
	s.openMtx.Unlock()
	if !ok {
		// Unknown or already closed, nothing to do.
		return nil
	}

	record.ExitPrice = exitPrice
	record.ExitTime = exitTime
	record.CloseReason = reason
	record.PNL = pnl.Leveraged(record.EntryPrice, exitPrice, record.Direction, record.Margin, record.Leverage)
	record.PNLPercent = pnl.LeveragedPercent(record.EntryPrice, exitPrice, record.Direction, record.Margin, record.Leverage)
	record.Status = RecordClosed

	resp, err := s.client.Execute(ctx, rqlitehttp.SQLStatements{
		{
			SQL: closeSimulationSQL,
			PositionalParams: []any{record.ExitPrice, record.ExitTime.Unix(), record.PNL,
				record.PNLPercent, record.CloseReason.String(), RecordClosed.String(),
				record.ID, RecordOpen.String()},
		},
	}, &rqlitehttp.ExecuteOptions{Transaction: true, Timings: true})
	if err != nil {
		return fmt.Errorf("closing simulation %s: %w", record.ID, err)
	}
	has, idx, errStr := resp.HasError()
	if has {
		return fmt.Errorf("closing simulation %s: %d -> %s", record.ID, idx, errStr)
	}

	s.openMtx.Lock()
	delete(s.open, id)
	s.openMtx.Unlock()

	err = s.updateMetadata(ctx, record)
	if err != nil {
		return fmt.Errorf("updating metadata for %s: %w", record.Market, err)
	}

	return nil
}

// updateMetadata folds the provided closed record into the weekly
// performance metadata for its market.
func (s *Store) updateMetadata(ctx context.Context, record *SimulationRecord) error {
	var win, loss int
	var winpercent, losspercent float64

	switch {
	case record.PNL < 0:
		loss++
		losspercent = record.PNLPercent
	case record.PNL > 0:
		win++
		winpercent = record.PNLPercent
	default:
		s.cfg.Logger.Debug().Msgf("flat closed record excluded from metadata: %s", spew.Sdump(record))
		return nil
	}

	id := generateMetadataID(record.ExitTime, record.Market)
	resp, err := s.client.QuerySingle(ctx, findMetadataSQL, id)
	if err != nil {
		return err
	}

	exists := len(resp.GetQueryResultsAssoc()) > 0
	switch {
	case exists:
		resp, err := s.client.Execute(ctx, rqlitehttp.SQLStatements{
			{
				SQL:              updateMetadataSQL,
				PositionalParams: []any{win, winpercent, loss, losspercent, id},
			},
		}, &rqlitehttp.ExecuteOptions{Transaction: true, Timings: true})
		if err != nil {
			return err
		}
		has, idx, errStr := resp.HasError()
		if has {
			return fmt.Errorf("updating metadata %s: %d -> %s", id, idx, errStr)
		}
	default:
		resp, err := s.client.Execute(ctx, rqlitehttp.SQLStatements{
			{
				SQL:              insertMetadataSQL,
				PositionalParams: []any{id, 1, win, winpercent, loss, losspercent, record.ExitTime.Unix()},
			},
		}, &rqlitehttp.ExecuteOptions{Transaction: true, Timings: true})
		if err != nil {
			return err
		}
		has, idx, errStr := resp.HasError()
		if has {
			return fmt.Errorf("inserting metadata %s: %d -> %s", id, idx, errStr)
		}
	}

	return nil
}
