package app

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"investstream/internal/domain"
	"investstream/internal/ports"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// mockStream delivers a fixed sequence of events after invoking OnConnect,
// then closes its done channel, imitating a stream that ends cleanly.
type mockStream struct {
	mu            sync.Mutex
	events        []domain.StreamingEvent
	candleSubs    []string
	orderBookSubs []string
	infoSubs      []string
}

func (m *mockStream) StreamEvents(ctx context.Context, handlers ports.StreamHandlers) (<-chan struct{}, error) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if handlers.OnConnect != nil {
			handlers.OnConnect(ctx)
		}
		for _, event := range m.events {
			handlers.OnEvent(event)
		}
	}()
	return done, nil
}

func (m *mockStream) SubscribeCandles(ctx context.Context, figi string, interval domain.CandleInterval) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candleSubs = append(m.candleSubs, figi)
	return fmt.Sprintf("candle-req-%d", len(m.candleSubs)), nil
}

func (m *mockStream) UnsubscribeCandles(ctx context.Context, figi string, interval domain.CandleInterval) error {
	return nil
}

func (m *mockStream) SubscribeOrderBook(ctx context.Context, figi string, depth int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orderBookSubs = append(m.orderBookSubs, figi)
	return fmt.Sprintf("orderbook-req-%d", len(m.orderBookSubs)), nil
}

func (m *mockStream) UnsubscribeOrderBook(ctx context.Context, figi string, depth int) error {
	return nil
}

func (m *mockStream) SubscribeInstrumentInfo(ctx context.Context, figi string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infoSubs = append(m.infoSubs, figi)
	return fmt.Sprintf("info-req-%d", len(m.infoSubs)), nil
}

func (m *mockStream) UnsubscribeInstrumentInfo(ctx context.Context, figi string) error {
	return nil
}

// mockStore records everything it is asked to persist.
type mockStore struct {
	mu         sync.Mutex
	candles    []domain.Candle
	orderBooks []domain.OrderBook
	infos      []domain.InstrumentInfo
	failWith   error
}

func (m *mockStore) SaveCandle(ctx context.Context, candle domain.Candle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.candles = append(m.candles, candle)
	return nil
}

func (m *mockStore) SaveOrderBook(ctx context.Context, orderBook domain.OrderBook) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.orderBooks = append(m.orderBooks, orderBook)
	return nil
}

func (m *mockStore) SaveInstrumentInfo(ctx context.Context, info domain.InstrumentInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.infos = append(m.infos, info)
	return nil
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func strPtr(s string) *string { return &s }

func TestNew_Validation(t *testing.T) {
	logger := &mockLogger{}
	stream := &mockStream{}
	store := &mockStore{}
	cfg := Config{FIGIs: []string{"BBG1"}}

	_, err := New(cfg, nil, stream, store)
	assert.Error(t, err)

	_, err = New(cfg, logger, nil, store)
	assert.Error(t, err)

	_, err = New(cfg, logger, stream, nil)
	assert.Error(t, err)

	_, err = New(Config{}, logger, stream, store)
	assert.Error(t, err)

	service, err := New(cfg, logger, stream, store)
	require.NoError(t, err)
	require.NotNil(t, service)
}

func TestService_RunDispatchesEvents(t *testing.T) {
	candle := domain.Candle{
		FIGI:     "BBG1",
		Interval: domain.Interval1Min,
		Open:     dec(t, "100"),
		Close:    dec(t, "101"),
		High:     dec(t, "102"),
		Low:      dec(t, "99"),
		Volume:   dec(t, "10"),
	}
	orderBook := domain.OrderBook{
		FIGI:  "BBG1",
		Depth: 1,
		Bids:  []domain.OrderBookLevel{{Price: dec(t, "100.5"), Size: dec(t, "10")}},
		Asks:  []domain.OrderBookLevel{{Price: dec(t, "101.0"), Size: dec(t, "3")}},
	}
	tradableInfo := domain.InstrumentInfo{
		FIGI:              "BBG1",
		TradeStatus:       domain.NormalTrading,
		MinPriceIncrement: dec(t, "0.01"),
		Lot:               1,
	}
	haltedInfo := tradableInfo
	haltedInfo.TradeStatus = "break_in_trading"

	stream := &mockStream{
		events: []domain.StreamingEvent{
			candle,
			orderBook,
			tradableInfo,
			domain.Error{Message: "subscription limit exceeded", RequestID: strPtr("abc-123")},
			haltedInfo,
		},
	}
	store := &mockStore{}

	service, err := New(Config{
		FIGIs:          []string{"BBG1", "BBG2"},
		CandleInterval: domain.Interval1Min,
		OrderBookDepth: 5,
	}, &mockLogger{}, stream, store)
	require.NoError(t, err)

	require.NoError(t, service.Run(context.Background()))

	// Subscriptions issued for every configured instrument.
	assert.Equal(t, []string{"BBG1", "BBG2"}, stream.candleSubs)
	assert.Equal(t, []string{"BBG1", "BBG2"}, stream.orderBookSubs)
	assert.Equal(t, []string{"BBG1", "BBG2"}, stream.infoSubs)

	// Market data persisted; error events are log-only.
	require.Len(t, store.candles, 1)
	assert.True(t, candle.Equal(store.candles[0]))
	require.Len(t, store.orderBooks, 1)
	assert.True(t, orderBook.Equal(store.orderBooks[0]))
	require.Len(t, store.infos, 2)

	// The last status update wins.
	tradable, known := service.Tradable("BBG1")
	assert.True(t, known)
	assert.False(t, tradable)

	_, known = service.Tradable("BBG2")
	assert.False(t, known)
}

func TestService_RunSkipsOrderBookSubsWhenDepthZero(t *testing.T) {
	stream := &mockStream{}
	service, err := New(Config{
		FIGIs:          []string{"BBG1"},
		OrderBookDepth: 0,
	}, &mockLogger{}, stream, &mockStore{})
	require.NoError(t, err)

	require.NoError(t, service.Run(context.Background()))

	assert.Equal(t, []string{"BBG1"}, stream.candleSubs)
	assert.Empty(t, stream.orderBookSubs)
	assert.Equal(t, []string{"BBG1"}, stream.infoSubs)
}

func TestService_StoreFailureDoesNotStopConsumption(t *testing.T) {
	stream := &mockStream{
		events: []domain.StreamingEvent{
			domain.Candle{FIGI: "BBG1", Interval: domain.Interval1Min},
			domain.Error{Message: "boom"},
		},
	}
	store := &mockStore{failWith: fmt.Errorf("disk full")}

	service, err := New(Config{FIGIs: []string{"BBG1"}}, &mockLogger{}, stream, store)
	require.NoError(t, err)

	// Persistence failures are logged per event; the run still completes.
	require.NoError(t, service.Run(context.Background()))
	assert.Empty(t, store.candles)
}
