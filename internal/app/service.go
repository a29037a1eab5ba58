package app

import (
	"context"
	"fmt"
	"sync"

	"investstream/internal/domain"
	"investstream/internal/ports"
)

// Config holds the consumer-side parameters of the service.
type Config struct {
	FIGIs          []string              // Instruments to subscribe
	CandleInterval domain.CandleInterval // Interval for candle subscriptions
	OrderBookDepth int                   // Depth for orderbook subscriptions; 0 disables them
}

// Service is the stream consumer: it subscribes the configured instruments,
// receives decoded events from the stream client and dispatches them to the
// event store. It holds no decoding state; the only mutable state is the
// per-instrument tradability cache used to log status transitions.
type Service struct {
	cfg    Config
	logger ports.Logger
	stream ports.StreamClient
	store  ports.EventStore

	mu       sync.Mutex
	tradable map[string]bool
}

// New creates the stream consumer service.
func New(cfg Config, logger ports.Logger, stream ports.StreamClient, store ports.EventStore) (*Service, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required: %w", ports.ErrConfigurationError)
	}
	if stream == nil {
		return nil, fmt.Errorf("stream client is required: %w", ports.ErrConfigurationError)
	}
	if store == nil {
		return nil, fmt.Errorf("event store is required: %w", ports.ErrConfigurationError)
	}
	if len(cfg.FIGIs) == 0 {
		return nil, fmt.Errorf("at least one FIGI is required: %w", ports.ErrConfigurationError)
	}
	if cfg.CandleInterval == "" {
		cfg.CandleInterval = domain.Interval1Min
	}

	return &Service{
		cfg:      cfg,
		logger:   logger,
		stream:   stream,
		store:    store,
		tradable: make(map[string]bool),
	}, nil
}

// Run starts the stream and blocks until ctx is cancelled or the stream
// client gives up reconnecting.
func (s *Service) Run(ctx context.Context) error {
	handlers := ports.StreamHandlers{
		OnConnect: s.subscribeAll,
		OnEvent: func(event domain.StreamingEvent) {
			s.handleEvent(ctx, event)
		},
		OnError: func(err error) {
			s.logger.Error(ctx, err, "stream reported an error")
		},
	}

	done, err := s.stream.StreamEvents(ctx, handlers)
	if err != nil {
		return fmt.Errorf("starting stream: %w", err)
	}
	s.logger.Info(ctx, "stream consumer started",
		map[string]interface{}{"figis": s.cfg.FIGIs, "interval": s.cfg.CandleInterval.String()})

	<-done
	return ctx.Err()
}

// subscribeAll is invoked on every (re)connect so subscriptions survive
// reconnects.
func (s *Service) subscribeAll(ctx context.Context) {
	for _, figi := range s.cfg.FIGIs {
		if _, err := s.stream.SubscribeCandles(ctx, figi, s.cfg.CandleInterval); err != nil {
			s.logger.Error(ctx, err, "candle subscription failed", map[string]interface{}{"figi": figi})
		}
		if s.cfg.OrderBookDepth > 0 {
			if _, err := s.stream.SubscribeOrderBook(ctx, figi, s.cfg.OrderBookDepth); err != nil {
				s.logger.Error(ctx, err, "orderbook subscription failed", map[string]interface{}{"figi": figi})
			}
		}
		if _, err := s.stream.SubscribeInstrumentInfo(ctx, figi); err != nil {
			s.logger.Error(ctx, err, "instrument info subscription failed", map[string]interface{}{"figi": figi})
		}
	}
}

// handleEvent dispatches one decoded event. The switch is exhaustive over
// the closed StreamingEvent set.
func (s *Service) handleEvent(ctx context.Context, event domain.StreamingEvent) {
	switch ev := event.(type) {
	case domain.Candle:
		if err := s.store.SaveCandle(ctx, ev); err != nil {
			s.logger.Error(ctx, err, "persisting candle failed", map[string]interface{}{"figi": ev.FIGI})
		}

	case domain.OrderBook:
		if err := s.store.SaveOrderBook(ctx, ev); err != nil {
			s.logger.Error(ctx, err, "persisting orderbook failed", map[string]interface{}{"figi": ev.FIGI})
		}

	case domain.InstrumentInfo:
		if err := s.store.SaveInstrumentInfo(ctx, ev); err != nil {
			s.logger.Error(ctx, err, "persisting instrument info failed", map[string]interface{}{"figi": ev.FIGI})
		}
		s.trackTradability(ctx, ev)

	case domain.Error:
		fields := map[string]interface{}{"message": ev.Message}
		if ev.RequestID != nil {
			fields["requestID"] = *ev.RequestID
		}
		s.logger.Warn(ctx, "server pushed an error event", fields)

	default:
		// Unreachable while the StreamingEvent set stays sealed.
		s.logger.Warn(ctx, "unhandled event variant", map[string]interface{}{"kind": event.Kind()})
	}
}

func (s *Service) trackTradability(ctx context.Context, info domain.InstrumentInfo) {
	now := info.Tradable()

	s.mu.Lock()
	prev, seen := s.tradable[info.FIGI]
	s.tradable[info.FIGI] = now
	s.mu.Unlock()

	if !seen || prev != now {
		s.logger.Info(ctx, "instrument tradability changed",
			map[string]interface{}{"figi": info.FIGI, "tradable": now, "status": info.TradeStatus})
	}
}

// Tradable reports the last known tradability of an instrument and whether
// any status update has been seen for it.
func (s *Service) Tradable(figi string) (tradable, known bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tradable, known = s.tradable[figi]
	return tradable, known
}
