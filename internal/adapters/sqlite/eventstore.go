package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"investstream/internal/domain"
	"investstream/internal/ports"

	"github.com/shopspring/decimal"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Store implements the ports.EventStore interface using SQLite.
// Prices and volumes are stored as exact decimal text, never as REAL.
type Store struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite event store.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewStore creates a new SQLite event store instance.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite event store")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/marketdata.db" // Default path
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite event store initialization failed")
		return nil, err
	}

	// WAL mode for better concurrency between the stream writer and readers.
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite event store initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite event store initialization failed")
		return nil, err
	}

	// SQLite handles concurrency internally; the Go driver benefits from a
	// single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	store := &Store{db: db, logger: cfg.Logger}

	if err := store.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite event store initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "SQLite event store ready", map[string]interface{}{"path": dbPath})

	return store, nil
}

// initializeSchema creates tables if they don't exist.
func (s *Store) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS candles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		figi TEXT NOT NULL,
		interval TEXT NOT NULL,
		open TEXT NOT NULL,
		close TEXT NOT NULL,
		high TEXT NOT NULL,
		low TEXT NOT NULL,
		volume TEXT NOT NULL,
		time TIMESTAMP NOT NULL,
		UNIQUE(figi, interval, time)
	);
	CREATE TABLE IF NOT EXISTS orderbooks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		figi TEXT NOT NULL,
		depth INTEGER NOT NULL,
		bids TEXT NOT NULL,
		asks TEXT NOT NULL,
		received_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_orderbooks_figi ON orderbooks(figi, received_at);
	CREATE TABLE IF NOT EXISTS instrument_info (
		figi TEXT PRIMARY KEY,
		trade_status TEXT NOT NULL,
		min_price_increment TEXT NOT NULL,
		lot INTEGER NOT NULL,
		accrued_interest TEXT,
		limit_up TEXT,
		limit_down TEXT,
		updated_at TIMESTAMP NOT NULL
	);`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%w: %w", ports.ErrQueryFailed, err)
	}
	return nil
}

// SaveCandle inserts a candle or updates the stored one for the same figi,
// interval and formation time. Candles update repeatedly while they form.
func (s *Store) SaveCandle(ctx context.Context, candle domain.Candle) error {
	const query = `
	INSERT INTO candles (figi, interval, open, close, high, low, volume, time)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(figi, interval, time) DO UPDATE SET
		open = excluded.open,
		close = excluded.close,
		high = excluded.high,
		low = excluded.low,
		volume = excluded.volume`

	_, err := s.db.ExecContext(ctx, query,
		candle.FIGI, string(candle.Interval),
		candle.Open.String(), candle.Close.String(), candle.High.String(), candle.Low.String(),
		candle.Volume.String(), candle.Time.UTC())
	if err != nil {
		err = fmt.Errorf("save candle: %w: %w", ports.ErrUpdateFailed, err)
		s.logger.Error(ctx, err, "failed to save candle", map[string]interface{}{"figi": candle.FIGI})
		return err
	}
	return nil
}

// SaveOrderBook appends an order book snapshot; levels are stored as JSON
// arrays of [price, size] strings in received order.
func (s *Store) SaveOrderBook(ctx context.Context, orderBook domain.OrderBook) error {
	bids, err := encodeLevels(orderBook.Bids)
	if err != nil {
		return fmt.Errorf("save orderbook: encode bids: %w", err)
	}
	asks, err := encodeLevels(orderBook.Asks)
	if err != nil {
		return fmt.Errorf("save orderbook: encode asks: %w", err)
	}

	const query = `
	INSERT INTO orderbooks (figi, depth, bids, asks, received_at)
	VALUES (?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query, orderBook.FIGI, orderBook.Depth, bids, asks, time.Now().UTC())
	if err != nil {
		err = fmt.Errorf("save orderbook: %w: %w", ports.ErrUpdateFailed, err)
		s.logger.Error(ctx, err, "failed to save orderbook", map[string]interface{}{"figi": orderBook.FIGI})
		return err
	}
	return nil
}

// SaveInstrumentInfo upserts the latest trading status for an instrument.
func (s *Store) SaveInstrumentInfo(ctx context.Context, info domain.InstrumentInfo) error {
	const query = `
	INSERT INTO instrument_info (figi, trade_status, min_price_increment, lot, accrued_interest, limit_up, limit_down, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(figi) DO UPDATE SET
		trade_status = excluded.trade_status,
		min_price_increment = excluded.min_price_increment,
		lot = excluded.lot,
		accrued_interest = excluded.accrued_interest,
		limit_up = excluded.limit_up,
		limit_down = excluded.limit_down,
		updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		info.FIGI, info.TradeStatus, info.MinPriceIncrement.String(), info.Lot,
		optDecimalText(info.AccruedInterest), optDecimalText(info.LimitUp), optDecimalText(info.LimitDown),
		time.Now().UTC())
	if err != nil {
		err = fmt.Errorf("save instrument info: %w: %w", ports.ErrUpdateFailed, err)
		s.logger.Error(ctx, err, "failed to save instrument info", map[string]interface{}{"figi": info.FIGI})
		return err
	}
	return nil
}

// LatestCandle returns the stored candle for figi/interval with the most
// recent formation time, or ports.ErrNotFound.
func (s *Store) LatestCandle(ctx context.Context, figi string, interval domain.CandleInterval) (*domain.Candle, error) {
	const query = `
	SELECT figi, interval, open, close, high, low, volume, time
	FROM candles WHERE figi = ? AND interval = ?
	ORDER BY time DESC LIMIT 1`

	row := s.db.QueryRowContext(ctx, query, figi, string(interval))

	var (
		candle                        domain.Candle
		intervalStr                   string
		open, closing, high, low, vol string
	)
	err := row.Scan(&candle.FIGI, &intervalStr, &open, &closing, &high, &low, &vol, &candle.Time)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("latest candle for %s/%s: %w", figi, interval, ports.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("latest candle: %w: %w", ports.ErrQueryFailed, err)
	}

	candle.Interval = domain.CandleInterval(intervalStr)
	if candle.Open, err = decimal.NewFromString(open); err != nil {
		return nil, fmt.Errorf("latest candle: corrupt open %q: %w", open, err)
	}
	if candle.Close, err = decimal.NewFromString(closing); err != nil {
		return nil, fmt.Errorf("latest candle: corrupt close %q: %w", closing, err)
	}
	if candle.High, err = decimal.NewFromString(high); err != nil {
		return nil, fmt.Errorf("latest candle: corrupt high %q: %w", high, err)
	}
	if candle.Low, err = decimal.NewFromString(low); err != nil {
		return nil, fmt.Errorf("latest candle: corrupt low %q: %w", low, err)
	}
	if candle.Volume, err = decimal.NewFromString(vol); err != nil {
		return nil, fmt.Errorf("latest candle: corrupt volume %q: %w", vol, err)
	}
	return &candle, nil
}

// FindInstrumentInfo returns the latest stored status for an instrument, or
// ports.ErrNotFound.
func (s *Store) FindInstrumentInfo(ctx context.Context, figi string) (*domain.InstrumentInfo, error) {
	const query = `
	SELECT figi, trade_status, min_price_increment, lot, accrued_interest, limit_up, limit_down
	FROM instrument_info WHERE figi = ?`

	row := s.db.QueryRowContext(ctx, query, figi)

	var (
		info                        domain.InstrumentInfo
		increment                   string
		accrued, limitUp, limitDown sql.NullString
	)
	err := row.Scan(&info.FIGI, &info.TradeStatus, &increment, &info.Lot, &accrued, &limitUp, &limitDown)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("instrument info for %s: %w", figi, ports.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("instrument info: %w: %w", ports.ErrQueryFailed, err)
	}

	if info.MinPriceIncrement, err = decimal.NewFromString(increment); err != nil {
		return nil, fmt.Errorf("instrument info: corrupt min_price_increment %q: %w", increment, err)
	}
	if info.AccruedInterest, err = optDecimalValue(accrued); err != nil {
		return nil, fmt.Errorf("instrument info: corrupt accrued_interest: %w", err)
	}
	if info.LimitUp, err = optDecimalValue(limitUp); err != nil {
		return nil, fmt.Errorf("instrument info: corrupt limit_up: %w", err)
	}
	if info.LimitDown, err = optDecimalValue(limitDown); err != nil {
		return nil, fmt.Errorf("instrument info: corrupt limit_down: %w", err)
	}
	return &info, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func encodeLevels(levels []domain.OrderBookLevel) (string, error) {
	pairs := make([][2]string, len(levels))
	for i, l := range levels {
		pairs[i] = [2]string{l.Price.String(), l.Size.String()}
	}
	data, err := json.Marshal(pairs)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func optDecimalText(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return d.String()
}

func optDecimalValue(v sql.NullString) (*decimal.Decimal, error) {
	if !v.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(v.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
