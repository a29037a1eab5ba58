package ports

import (
	"context"

	"investstream/internal/domain"
)

// StreamHandlers carries the callbacks a consumer registers with the stream.
type StreamHandlers struct {
	// OnConnect is invoked after every successful connect or reconnect,
	// before any events are delivered. Consumers issue their subscription
	// requests here so they are replayed on reconnect.
	OnConnect func(ctx context.Context)

	// OnEvent receives each successfully decoded streaming event.
	OnEvent func(event domain.StreamingEvent)

	// OnError receives transport failures and per-message decode failures.
	// A decode failure is scoped to a single message; the stream keeps
	// delivering subsequent ones.
	OnError func(err error)
}

// StreamClient is the persistent-connection transport that delivers decoded
// streaming events. It owns connection lifecycle, keepalive and reconnects;
// the decoder it feeds is stateless.
type StreamClient interface {
	// StreamEvents starts the connection loop and returns a channel that is
	// closed once the loop exits, either because ctx was cancelled or
	// because reconnect attempts were exhausted.
	StreamEvents(ctx context.Context, handlers StreamHandlers) (done <-chan struct{}, err error)

	// SubscribeCandles requests candle events for the instrument at the
	// given interval. The returned request id correlates later Error events
	// with this request.
	SubscribeCandles(ctx context.Context, figi string, interval domain.CandleInterval) (requestID string, err error)

	// UnsubscribeCandles stops candle events for the instrument and interval.
	UnsubscribeCandles(ctx context.Context, figi string, interval domain.CandleInterval) error

	// SubscribeOrderBook requests order book snapshots at the given depth.
	SubscribeOrderBook(ctx context.Context, figi string, depth int) (requestID string, err error)

	// UnsubscribeOrderBook stops order book snapshots for the instrument.
	UnsubscribeOrderBook(ctx context.Context, figi string, depth int) error

	// SubscribeInstrumentInfo requests trading status updates.
	SubscribeInstrumentInfo(ctx context.Context, figi string) (requestID string, err error)

	// UnsubscribeInstrumentInfo stops trading status updates.
	UnsubscribeInstrumentInfo(ctx context.Context, figi string) error
}
