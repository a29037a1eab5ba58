package ports

import (
	"context"

	"investstream/internal/domain"
)

// EventStore persists decoded market data events.
// This abstraction decouples the stream consumer from the storage backend.
type EventStore interface {
	// SaveCandle inserts a candle or updates the stored one for the same
	// figi, interval and formation time (candles update as they form).
	SaveCandle(ctx context.Context, candle domain.Candle) error

	// SaveOrderBook appends an order book snapshot.
	SaveOrderBook(ctx context.Context, orderBook domain.OrderBook) error

	// SaveInstrumentInfo upserts the latest trading status per instrument.
	SaveInstrumentInfo(ctx context.Context, info domain.InstrumentInfo) error
}
