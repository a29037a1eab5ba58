package wsclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"investstream/internal/domain"
	"investstream/internal/ports"
	"investstream/internal/streaming"

	"github.com/gorilla/websocket"
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

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting on channel")
		panic("unreachable")
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{URL: "ws://localhost"})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	_, err = New(Config{Logger: &mockLogger{}})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	client, err := New(Config{URL: "ws://localhost", Logger: &mockLogger{}})
	require.NoError(t, err)

	// Zero values fall back to defaults.
	assert.Equal(t, 25*time.Second, client.cfg.PingInterval)
	assert.Equal(t, 10*time.Second, client.cfg.WriteTimeout)
	assert.Equal(t, 1*time.Second, client.cfg.ReconnectMinDelay)
	assert.Equal(t, 30*time.Second, client.cfg.ReconnectMaxDelay)
	assert.Equal(t, 10, client.cfg.MaxReconnectAttempts)
}

func TestStreamEvents_RequiresOnEvent(t *testing.T) {
	client, err := New(Config{URL: "ws://localhost", Logger: &mockLogger{}})
	require.NoError(t, err)

	_, err = client.StreamEvents(context.Background(), ports.StreamHandlers{})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
}

func TestSubscribe_NotConnected(t *testing.T) {
	client, err := New(Config{URL: "ws://localhost", Logger: &mockLogger{}})
	require.NoError(t, err)

	_, err = client.SubscribeCandles(context.Background(), "BBG1", domain.Interval1Min)
	assert.ErrorIs(t, err, ports.ErrNotConnected)

	err = client.UnsubscribeOrderBook(context.Background(), "BBG1", 10)
	assert.ErrorIs(t, err, ports.ErrNotConnected)
}

func TestRequestJSON(t *testing.T) {
	tests := []struct {
		name string
		req  request
		want string
	}{
		{
			name: "candle subscribe carries interval and request id",
			req:  request{Event: eventCandleSubscribe, FIGI: "BBG1", Interval: domain.Interval5Min, RequestID: "r-1"},
			want: `{"event":"candle:subscribe","figi":"BBG1","interval":"5min","request_id":"r-1"}`,
		},
		{
			name: "orderbook subscribe carries depth, omits interval",
			req:  request{Event: eventOrderBookSubscribe, FIGI: "BBG1", Depth: 10, RequestID: "r-2"},
			want: `{"event":"orderbook:subscribe","figi":"BBG1","depth":10,"request_id":"r-2"}`,
		},
		{
			name: "instrument info unsubscribe omits everything optional",
			req:  request{Event: eventInstrumentInfoUnsubscribe, FIGI: "BBG1"},
			want: `{"event":"instrument_info:unsubscribe","figi":"BBG1"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.req)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestClient_StreamAndSubscribe(t *testing.T) {
	authHeader := make(chan string, 1)
	subscriptions := make(chan request, 1)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader <- r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var req request
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		subscriptions <- req

		frames := []string{
			`{"event":"candle","payload":{"o":64.0925,"c":"64.3","h":64.5,"l":64,"v":156,"time":"2019-08-07T15:35:00Z","interval":"5min","figi":"BBG0013HGFT4"}}`,
			`not even json`,
			`{"event":"ticker","payload":{}}`,
			`{"event":"error","payload":{"error":"subscription limit exceeded","request_id":"abc-123"}}`,
		}
		for _, frame := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}

		// Hold the connection open until the client closes it.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, err := New(Config{URL: wsURL, Token: "test-token", Logger: &mockLogger{}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan domain.StreamingEvent, 8)
	decodeErrs := make(chan error, 8)
	done, err := client.StreamEvents(ctx, ports.StreamHandlers{
		OnConnect: func(ctx context.Context) {
			_, subErr := client.SubscribeCandles(ctx, "BBG0013HGFT4", domain.Interval5Min)
			assert.NoError(t, subErr)
		},
		OnEvent: func(event domain.StreamingEvent) { events <- event },
		OnError: func(err error) { decodeErrs <- err },
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-token", recv(t, authHeader))

	sub := recv(t, subscriptions)
	assert.Equal(t, eventCandleSubscribe, sub.Event)
	assert.Equal(t, "BBG0013HGFT4", sub.FIGI)
	assert.Equal(t, domain.Interval5Min, sub.Interval)
	assert.NotEmpty(t, sub.RequestID)

	first := recv(t, events)
	candle, ok := first.(domain.Candle)
	require.True(t, ok, "got %T", first)
	assert.Equal(t, "BBG0013HGFT4", candle.FIGI)
	assert.Equal(t, domain.Interval5Min, candle.Interval)

	// The unparseable frame surfaces through OnError without breaking the
	// stream; the unknown "ticker" kind is skipped silently.
	assert.ErrorIs(t, recv(t, decodeErrs), streaming.ErrMalformedEnvelope)

	second := recv(t, events)
	serverErr, ok := second.(domain.Error)
	require.True(t, ok, "got %T", second)
	assert.Equal(t, "subscription limit exceeded", serverErr.Message)
	require.NotNil(t, serverErr.RequestID)
	assert.Equal(t, "abc-123", *serverErr.RequestID)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop after cancellation")
	}
}

func TestClient_AuthenticationRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, err := New(Config{
		URL:                  wsURL,
		Token:                "bad-token",
		Logger:               &mockLogger{},
		ReconnectMinDelay:    time.Millisecond,
		ReconnectMaxDelay:    2 * time.Millisecond,
		MaxReconnectAttempts: 2,
	})
	require.NoError(t, err)

	dialErrs := make(chan error, 8)
	done, err := client.StreamEvents(context.Background(), ports.StreamHandlers{
		OnEvent: func(domain.StreamingEvent) {},
		OnError: func(err error) { dialErrs <- err },
	})
	require.NoError(t, err)

	dialErr := recv(t, dialErrs)
	assert.ErrorIs(t, dialErr, ports.ErrConnectionFailed)
	assert.ErrorIs(t, dialErr, ports.ErrAuthenticationFailed)

	// The loop gives up after the configured number of failed dials.
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not give up after max reconnect attempts")
	}
}
