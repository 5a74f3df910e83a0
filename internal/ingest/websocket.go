package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/folkertvanheusden/GHBot-BTC/internal/model"
)

const (
	initialReconnectDelay = 1 * time.Second
	maxReconnectDelay     = 30 * time.Second
	handshakeTimeout      = 5 * time.Second
	readTimeout           = 60 * time.Second
	writeTimeout          = 10 * time.Second
)

// ErrReconnectRequested is returned when the exchange asks clients to reconnect.
var ErrReconnectRequested = errors.New("server requested reconnect")

// WebSocketSource follows the live trade channel of a Bitstamp-style exchange.
type WebSocketSource struct {
	URL          string
	Pair         string
	InitialDelay time.Duration // first reconnect wait, and the wait after a subscribed session
	MaxDelay     time.Duration
}

// NewWebSocketSource creates a WebSocketSource for pair, e.g. "btcusd".
func NewWebSocketSource(url, pair string) *WebSocketSource {
	return &WebSocketSource{URL: url, Pair: pair, InitialDelay: initialReconnectDelay, MaxDelay: maxReconnectDelay}
}

func (s *WebSocketSource) Name() string { return "websocket:" + s.Pair }

func (s *WebSocketSource) channel() string { return "live_trades_" + s.Pair }

// Run keeps a connection open, reconnecting with exponential backoff.
func (s *WebSocketSource) Run(ctx context.Context, rec Recorder) error {
	delay := s.InitialDelay
	for {
		subscribed, err := s.session(ctx, rec)
		if ctx.Err() != nil {
			return nil
		}
		if subscribed {
			delay = s.InitialDelay
		}
		log.Warnf("websocket %s: %v, reconnecting in %v", s.URL, err, delay)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay = s.nextDelay(delay)
	}
}

func (s *WebSocketSource) nextDelay(d time.Duration) time.Duration {
	d *= 2
	if d > s.MaxDelay {
		d = s.MaxDelay
	}
	return d
}

// session runs one connection. subscribed reports whether the subscription was sent,
// after which the next reconnect starts from the initial delay again.
func (s *WebSocketSource) session(ctx context.Context, rec Recorder) (subscribed bool, err error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, s.URL, nil)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	sub := map[string]any{
		"event": "bts:subscribe",
		"data":  map[string]string{"channel": s.channel()},
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(sub); err != nil {
		return false, fmt.Errorf("subscribe %s: %w", s.channel(), err)
	}
	log.Infof("websocket subscribed to %s", s.channel())

	for {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("read: %w", err)
		}
		tick, err := ParseTradeEvent(msg)
		if err != nil {
			if errors.Is(err, ErrReconnectRequested) {
				return true, err
			}
			log.Warnf("websocket message: %v", err)
			continue
		}
		if tick == nil {
			continue
		}
		if err := rec.Record(ctx, tick.Price, tick.Time); err != nil {
			log.Errorf("record tick: %v", err)
		}
	}
}

type tradeEvent struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

type tradeData struct {
	Price     json.Number `json:"price"`
	Timestamp string      `json:"timestamp"`
}

// ParseTradeEvent extracts the tick from a trade event. Other events yield nil.
func ParseTradeEvent(msg []byte) (*model.PriceSample, error) {
	var ev tradeEvent
	if err := json.Unmarshal(msg, &ev); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	switch ev.Event {
	case "trade":
	case "bts:request_reconnect":
		return nil, ErrReconnectRequested
	default:
		return nil, nil
	}

	var d tradeData
	if err := json.Unmarshal(ev.Data, &d); err != nil {
		return nil, fmt.Errorf("decode trade: %w", err)
	}
	price, err := d.Price.Float64()
	if err != nil {
		return nil, fmt.Errorf("trade price %q: %w", d.Price, err)
	}
	var at time.Time
	if d.Timestamp != "" {
		sec, err := strconv.ParseInt(d.Timestamp, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("trade timestamp %q: %w", d.Timestamp, err)
		}
		at = time.Unix(sec, 0)
	}
	return &model.PriceSample{Time: at, Price: price}, nil
}
