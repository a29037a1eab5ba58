package wsclient

import (
	"context"

	"investstream/internal/domain"

	"github.com/google/uuid"
)

// request is an outgoing control message on the stream. The server echoes
// request_id back in Error events, which is how subscription failures are
// correlated with the request that caused them.
type request struct {
	Event     string                `json:"event"`
	FIGI      string                `json:"figi"`
	Interval  domain.CandleInterval `json:"interval,omitempty"`
	Depth     int                   `json:"depth,omitempty"`
	RequestID string                `json:"request_id,omitempty"`
}

const (
	eventCandleSubscribe           = "candle:subscribe"
	eventCandleUnsubscribe         = "candle:unsubscribe"
	eventOrderBookSubscribe        = "orderbook:subscribe"
	eventOrderBookUnsubscribe      = "orderbook:unsubscribe"
	eventInstrumentInfoSubscribe   = "instrument_info:subscribe"
	eventInstrumentInfoUnsubscribe = "instrument_info:unsubscribe"
)

// SubscribeCandles requests candle events for the instrument at the given
// interval and returns the generated request id.
func (c *Client) SubscribeCandles(ctx context.Context, figi string, interval domain.CandleInterval) (string, error) {
	requestID := uuid.NewString()
	if err := c.send(request{Event: eventCandleSubscribe, FIGI: figi, Interval: interval, RequestID: requestID}); err != nil {
		return "", err
	}
	c.logger.Debug(ctx, "candle subscription requested",
		map[string]interface{}{"figi": figi, "interval": interval.String(), "requestID": requestID})
	return requestID, nil
}

// UnsubscribeCandles stops candle events for the instrument and interval.
func (c *Client) UnsubscribeCandles(ctx context.Context, figi string, interval domain.CandleInterval) error {
	if err := c.send(request{Event: eventCandleUnsubscribe, FIGI: figi, Interval: interval}); err != nil {
		return err
	}
	c.logger.Debug(ctx, "candle subscription cancelled",
		map[string]interface{}{"figi": figi, "interval": interval.String()})
	return nil
}

// SubscribeOrderBook requests order book snapshots at the given depth and
// returns the generated request id.
func (c *Client) SubscribeOrderBook(ctx context.Context, figi string, depth int) (string, error) {
	requestID := uuid.NewString()
	if err := c.send(request{Event: eventOrderBookSubscribe, FIGI: figi, Depth: depth, RequestID: requestID}); err != nil {
		return "", err
	}
	c.logger.Debug(ctx, "orderbook subscription requested",
		map[string]interface{}{"figi": figi, "depth": depth, "requestID": requestID})
	return requestID, nil
}

// UnsubscribeOrderBook stops order book snapshots for the instrument.
func (c *Client) UnsubscribeOrderBook(ctx context.Context, figi string, depth int) error {
	if err := c.send(request{Event: eventOrderBookUnsubscribe, FIGI: figi, Depth: depth}); err != nil {
		return err
	}
	c.logger.Debug(ctx, "orderbook subscription cancelled",
		map[string]interface{}{"figi": figi, "depth": depth})
	return nil
}

// SubscribeInstrumentInfo requests trading status updates and returns the
// generated request id.
func (c *Client) SubscribeInstrumentInfo(ctx context.Context, figi string) (string, error) {
	requestID := uuid.NewString()
	if err := c.send(request{Event: eventInstrumentInfoSubscribe, FIGI: figi, RequestID: requestID}); err != nil {
		return "", err
	}
	c.logger.Debug(ctx, "instrument info subscription requested",
		map[string]interface{}{"figi": figi, "requestID": requestID})
	return requestID, nil
}

// UnsubscribeInstrumentInfo stops trading status updates for the instrument.
func (c *Client) UnsubscribeInstrumentInfo(ctx context.Context, figi string) error {
	if err := c.send(request{Event: eventInstrumentInfoUnsubscribe, FIGI: figi}); err != nil {
		return err
	}
	c.logger.Debug(ctx, "instrument info subscription cancelled",
		map[string]interface{}{"figi": figi})
	return nil
}
