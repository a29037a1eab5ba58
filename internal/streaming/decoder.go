// Package streaming decodes the envelope format of the market data stream
// into the closed set of domain.StreamingEvent variants.
//
// Every message on the wire is an object of the shape
//
//	{"event": "<tag>", "payload": { ...variant fields... }}
//
// Decode is a pure function over one raw message: it holds no state, performs
// no I/O and is safe to call concurrently from any number of goroutines. A
// failure is always scoped to the offending message and never affects the
// decoding of subsequent ones.
package streaming

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"investstream/internal/domain"

	"github.com/shopspring/decimal"
)

// Decode inspects one raw envelope and produces exactly one StreamingEvent
// variant, or a typed failure:
//
//   - *MalformedEnvelopeError when the top-level tag or payload is broken,
//   - *UnknownEventKindError when the tag is not in the supported set,
//   - *FieldDecodeError when a payload field of the matched variant is
//     missing, mistyped or unparseable.
//
// Fields the decoder does not recognize are ignored; servers may add payload
// fields without breaking older clients.
func Decode(data []byte) (domain.StreamingEvent, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil || envelope == nil {
		return nil, &MalformedEnvelopeError{Reason: "message is not a JSON object"}
	}

	rawTag, ok := envelope["event"]
	var tag string
	if !ok || isNull(rawTag) || json.Unmarshal(rawTag, &tag) != nil {
		return nil, &MalformedEnvelopeError{Reason: "missing or non-string 'event' field"}
	}

	rawPayload, ok := envelope["payload"]
	if !ok || !isObject(rawPayload) {
		return nil, &MalformedEnvelopeError{Reason: "missing or non-object 'payload' field"}
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(rawPayload, &fields); err != nil {
		return nil, &MalformedEnvelopeError{Reason: "missing or non-object 'payload' field"}
	}

	switch domain.EventKind(tag) {
	case domain.KindCandle:
		return parseCandle(fields)
	case domain.KindOrderBook:
		return parseOrderBook(fields)
	case domain.KindInstrumentInfo:
		return parseInstrumentInfo(fields)
	case domain.KindError:
		return parseError(fields)
	default:
		return nil, &UnknownEventKindError{Kind: tag}
	}
}

func parseCandle(fields map[string]json.RawMessage) (domain.StreamingEvent, error) {
	p := payload{variant: "Candle", fields: fields}

	open, err := p.decimal("o")
	if err != nil {
		return nil, err
	}
	closing, err := p.decimal("c")
	if err != nil {
		return nil, err
	}
	high, err := p.decimal("h")
	if err != nil {
		return nil, err
	}
	low, err := p.decimal("l")
	if err != nil {
		return nil, err
	}
	volume, err := p.decimal("v")
	if err != nil {
		return nil, err
	}
	ts, err := p.timestamp("time")
	if err != nil {
		return nil, err
	}
	interval, err := p.interval("interval")
	if err != nil {
		return nil, err
	}
	figi, err := p.str("figi")
	if err != nil {
		return nil, err
	}

	return domain.Candle{
		FIGI:     figi,
		Interval: interval,
		Open:     open,
		Close:    closing,
		High:     high,
		Low:      low,
		Volume:   volume,
		Time:     ts,
	}, nil
}

func parseOrderBook(fields map[string]json.RawMessage) (domain.StreamingEvent, error) {
	p := payload{variant: "OrderBook", fields: fields}

	depth, err := p.integer("depth")
	if err != nil {
		return nil, err
	}
	bids, err := p.levels("bids")
	if err != nil {
		return nil, err
	}
	asks, err := p.levels("asks")
	if err != nil {
		return nil, err
	}
	figi, err := p.str("figi")
	if err != nil {
		return nil, err
	}

	return domain.OrderBook{
		FIGI:  figi,
		Depth: depth,
		Bids:  bids,
		Asks:  asks,
	}, nil
}

func parseInstrumentInfo(fields map[string]json.RawMessage) (domain.StreamingEvent, error) {
	p := payload{variant: "InstrumentInfo", fields: fields}

	tradeStatus, err := p.str("trade_status")
	if err != nil {
		return nil, err
	}
	minIncrement, err := p.decimal("min_price_increment")
	if err != nil {
		return nil, err
	}
	lot, err := p.integer("lot")
	if err != nil {
		return nil, err
	}
	accruedInterest, err := p.optionalDecimal("accrued_interest")
	if err != nil {
		return nil, err
	}
	limitUp, err := p.optionalDecimal("limit_up")
	if err != nil {
		return nil, err
	}
	limitDown, err := p.optionalDecimal("limit_down")
	if err != nil {
		return nil, err
	}
	figi, err := p.str("figi")
	if err != nil {
		return nil, err
	}

	return domain.InstrumentInfo{
		FIGI:              figi,
		TradeStatus:       tradeStatus,
		MinPriceIncrement: minIncrement,
		Lot:               lot,
		AccruedInterest:   accruedInterest,
		LimitUp:           limitUp,
		LimitDown:         limitDown,
	}, nil
}

func parseError(fields map[string]json.RawMessage) (domain.StreamingEvent, error) {
	p := payload{variant: "Error", fields: fields}

	message, err := p.str("error")
	if err != nil {
		return nil, err
	}
	requestID, err := p.optionalString("request_id")
	if err != nil {
		return nil, err
	}

	return domain.Error{
		Message:   message,
		RequestID: requestID,
	}, nil
}

// payload reads variant fields straight out of the raw payload subtree in a
// single structural pass; there is no intermediate re-encode of the payload.
type payload struct {
	variant string
	fields  map[string]json.RawMessage
}

// required returns the raw value of a field, treating absence and explicit
// null the same way: both are hard failures for required fields.
func (p payload) required(field string) (json.RawMessage, error) {
	raw, ok := p.fields[field]
	if !ok || isNull(raw) {
		return nil, &FieldDecodeError{Variant: p.variant, Field: field, Err: errMissingField}
	}
	return raw, nil
}

func (p payload) str(field string) (string, error) {
	raw, err := p.required(field)
	if err != nil {
		return "", err
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", &FieldDecodeError{Variant: p.variant, Field: field, Err: err}
	}
	return s, nil
}

// optionalString returns nil when the field is absent or null.
func (p payload) optionalString(field string) (*string, error) {
	raw, ok := p.fields[field]
	if !ok || isNull(raw) {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, &FieldDecodeError{Variant: p.variant, Field: field, Err: err}
	}
	return &s, nil
}

// decimal accepts both JSON number and string encodings; the wire uses them
// interchangeably for prices and volumes.
func (p payload) decimal(field string) (decimal.Decimal, error) {
	raw, err := p.required(field)
	if err != nil {
		return decimal.Decimal{}, err
	}
	var d decimal.Decimal
	if err := json.Unmarshal(raw, &d); err != nil {
		return decimal.Decimal{}, &FieldDecodeError{Variant: p.variant, Field: field, Err: err}
	}
	return d, nil
}

// optionalDecimal returns nil when the field is absent or null. A present
// zero is kept as a value: absent and zero mean different things for fields
// like accrued interest.
func (p payload) optionalDecimal(field string) (*decimal.Decimal, error) {
	raw, ok := p.fields[field]
	if !ok || isNull(raw) {
		return nil, nil
	}
	var d decimal.Decimal
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, &FieldDecodeError{Variant: p.variant, Field: field, Err: err}
	}
	return &d, nil
}

func (p payload) integer(field string) (int, error) {
	raw, err := p.required(field)
	if err != nil {
		return 0, err
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, &FieldDecodeError{Variant: p.variant, Field: field, Err: err}
	}
	return n, nil
}

func (p payload) timestamp(field string) (time.Time, error) {
	s, err := p.str(field)
	if err != nil {
		return time.Time{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, &FieldDecodeError{Variant: p.variant, Field: field, Err: err}
	}
	return ts, nil
}

func (p payload) interval(field string) (domain.CandleInterval, error) {
	s, err := p.str(field)
	if err != nil {
		return "", err
	}
	interval, err := domain.ParseCandleInterval(s)
	if err != nil {
		return "", &FieldDecodeError{Variant: p.variant, Field: field, Err: err}
	}
	return interval, nil
}

// levels parses an ordered sequence of [price, size] pairs, preserving the
// order in which they arrive.
func (p payload) levels(field string) ([]domain.OrderBookLevel, error) {
	raw, err := p.required(field)
	if err != nil {
		return nil, err
	}
	var pairs [][]decimal.Decimal
	if err := json.Unmarshal(raw, &pairs); err != nil {
		return nil, &FieldDecodeError{Variant: p.variant, Field: field, Err: err}
	}
	levels := make([]domain.OrderBookLevel, len(pairs))
	for i, pair := range pairs {
		if len(pair) != 2 {
			return nil, &FieldDecodeError{
				Variant: p.variant,
				Field:   field,
				Err:     fmt.Errorf("level %d has %d elements, want 2", i, len(pair)),
			}
		}
		levels[i] = domain.OrderBookLevel{Price: pair[0], Size: pair[1]}
	}
	return levels, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
