package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// EventKind identifies which StreamingEvent variant a wire message carries.
type EventKind string

const (
	KindCandle         EventKind = "candle"
	KindOrderBook      EventKind = "orderbook"
	KindInstrumentInfo EventKind = "instrument_info"
	KindError          EventKind = "error"
)

// NormalTrading is the trade status under which an instrument accepts orders.
const NormalTrading = "normal_trading"

// StreamingEvent is the closed set of events delivered over the market data
// stream. The set is sealed: only Candle, OrderBook, InstrumentInfo and Error
// implement it, so a type switch over those four variants is exhaustive.
//
// Every variant is an immutable value. Instances are created once per decoded
// message and never mutated afterwards, which makes them safe to hand across
// goroutines.
type StreamingEvent interface {
	fmt.Stringer

	// Kind returns the wire tag of the variant.
	Kind() EventKind

	streamingEvent()
}

// Candle is a single OHLCV tick for an instrument at a given interval.
// Prices and volume are exact decimals; the decoder does not enforce
// high >= open/close/low, it only guarantees shape.
type Candle struct {
	FIGI     string          // Instrument identifier
	Interval CandleInterval  // Candle granularity
	Open     decimal.Decimal // Opening price
	Close    decimal.Decimal // Closing price
	High     decimal.Decimal // Highest price
	Low      decimal.Decimal // Lowest price
	Volume   decimal.Decimal // Traded volume
	Time     time.Time       // Formation timestamp, offset preserved
}

func (Candle) Kind() EventKind { return KindCandle }
func (Candle) streamingEvent() {}

// Equal reports field-by-field equality. Decimals compare by value, so
// 100.5 and 100.50 are equal; timestamps compare as instants.
func (c Candle) Equal(other Candle) bool {
	return c.FIGI == other.FIGI &&
		c.Interval == other.Interval &&
		c.Open.Equal(other.Open) &&
		c.Close.Equal(other.Close) &&
		c.High.Equal(other.High) &&
		c.Low.Equal(other.Low) &&
		c.Volume.Equal(other.Volume) &&
		c.Time.Equal(other.Time)
}

func (c Candle) String() string {
	return fmt.Sprintf("Candle(figi=%s, interval=%s, open=%s, close=%s, high=%s, low=%s, volume=%s, time=%s)",
		c.FIGI, c.Interval, c.Open, c.Close, c.High, c.Low, c.Volume, c.Time.Format(time.RFC3339Nano))
}

// OrderBookLevel is a single price level: a price and the size resting at it.
type OrderBookLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// Equal reports value equality of price and size.
func (l OrderBookLevel) Equal(other OrderBookLevel) bool {
	return l.Price.Equal(other.Price) && l.Size.Equal(other.Size)
}

func (l OrderBookLevel) String() string {
	return fmt.Sprintf("(%s, %s)", l.Price, l.Size)
}

// OrderBook is a depth snapshot for an instrument. Bids and Asks keep the
// order in which levels arrived (best price first by upstream convention);
// they are never re-sorted.
type OrderBook struct {
	FIGI  string
	Depth int
	Bids  []OrderBookLevel
	Asks  []OrderBookLevel
}

func (OrderBook) Kind() EventKind { return KindOrderBook }
func (OrderBook) streamingEvent() {}

// Equal reports field-by-field equality, including level order.
func (o OrderBook) Equal(other OrderBook) bool {
	return o.FIGI == other.FIGI &&
		o.Depth == other.Depth &&
		equalLevels(o.Bids, other.Bids) &&
		equalLevels(o.Asks, other.Asks)
}

func (o OrderBook) String() string {
	return fmt.Sprintf("OrderBook(figi=%s, depth=%d, bids=%s, asks=%s)",
		o.FIGI, o.Depth, formatLevels(o.Bids), formatLevels(o.Asks))
}

func equalLevels(a, b []OrderBookLevel) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func formatLevels(levels []OrderBookLevel) string {
	parts := make([]string, len(levels))
	for i, l := range levels {
		parts[i] = l.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// InstrumentInfo is a trading status update for an instrument.
//
// AccruedInterest is populated only for bonds; LimitUp and LimitDown only for
// instruments subject to price band rules. Absent is distinct from zero, so
// the conditional fields are pointers.
type InstrumentInfo struct {
	FIGI              string
	TradeStatus       string
	MinPriceIncrement decimal.Decimal
	Lot               int
	AccruedInterest   *decimal.Decimal
	LimitUp           *decimal.Decimal
	LimitDown         *decimal.Decimal
}

func (InstrumentInfo) Kind() EventKind { return KindInstrumentInfo }
func (InstrumentInfo) streamingEvent() {}

// Tradable reports whether the instrument is in normal trading.
func (i InstrumentInfo) Tradable() bool {
	return i.TradeStatus == NormalTrading
}

// Equal reports field-by-field equality. Optional decimals are equal when
// both are absent, or both present with equal values.
func (i InstrumentInfo) Equal(other InstrumentInfo) bool {
	return i.FIGI == other.FIGI &&
		i.TradeStatus == other.TradeStatus &&
		i.MinPriceIncrement.Equal(other.MinPriceIncrement) &&
		i.Lot == other.Lot &&
		equalOptDecimal(i.AccruedInterest, other.AccruedInterest) &&
		equalOptDecimal(i.LimitUp, other.LimitUp) &&
		equalOptDecimal(i.LimitDown, other.LimitDown)
}

func (i InstrumentInfo) String() string {
	return fmt.Sprintf("InstrumentInfo(figi=%s, tradeStatus=%s, minPriceIncrement=%s, lot=%d, accruedInterest=%s, limitUp=%s, limitDown=%s)",
		i.FIGI, i.TradeStatus, i.MinPriceIncrement, i.Lot,
		formatOptDecimal(i.AccruedInterest), formatOptDecimal(i.LimitUp), formatOptDecimal(i.LimitDown))
}

// Error is an error notice pushed by the server. RequestID correlates the
// notice with a specific subscription request and is absent when the error
// is not tied to one.
type Error struct {
	Message   string
	RequestID *string
}

func (Error) Kind() EventKind { return KindError }
func (Error) streamingEvent() {}

// Equal reports field-by-field equality.
func (e Error) Equal(other Error) bool {
	return e.Message == other.Message && equalOptString(e.RequestID, other.RequestID)
}

func (e Error) String() string {
	requestID := "null"
	if e.RequestID != nil {
		requestID = *e.RequestID
	}
	return fmt.Sprintf("Error(message=%s, requestID=%s)", e.Message, requestID)
}

func equalOptDecimal(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func equalOptString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func formatOptDecimal(d *decimal.Decimal) string {
	if d == nil {
		return "null"
	}
	return d.String()
}
