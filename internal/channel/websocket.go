package channel

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/helpchat/internal/logger"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = (wsPongWait * 9) / 10
	wsMaxMessageSize = 1 << 20
	wsEventBufSize   = 64
)

// WebSocketFactory subscribes by dialing the realtime gateway's
// per-conversation endpoint.
type WebSocketFactory struct {
	BaseURL string // ws:// or wss:// root
	Header  http.Header
	Dialer  *websocket.Dialer
}

func NewWebSocketFactory(baseURL string) *WebSocketFactory {
	return &WebSocketFactory{BaseURL: baseURL}
}

func (f *WebSocketFactory) Subscribe(ctx context.Context, conversationID string) (Subscription, error) {
	dialer := f.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	url := strings.TrimSuffix(f.BaseURL, "/") + "/ws/conversations/" + conversationID
	conn, resp, err := dialer.DialContext(ctx, url, f.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("channel: dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("channel: dial %s: %w", url, err)
	}
	sub := &wsSubscription{
		conversationID: conversationID,
		conn:           conn,
		events:         make(chan Event, wsEventBufSize),
		done:           make(chan struct{}),
	}
	go sub.readPump(ctx)
	go sub.pingLoop(ctx)
	return sub, nil
}

type wsSubscription struct {
	conversationID string
	conn           *websocket.Conn
	events         chan Event
	done           chan struct{}
	once           sync.Once
}

func (s *wsSubscription) Events() <-chan Event { return s.events }

// Close is idempotent. Closing the connection unblocks the read pump,
// which then closes the events channel.
func (s *wsSubscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close()
	})
	return nil
}

func (s *wsSubscription) readPump(ctx context.Context) {
	defer close(s.events)
	defer s.Close()

	s.conn.SetReadLimit(wsMaxMessageSize)
	if err := s.conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
		logger.Errorf("channel: set read deadline conv=%s: %v", s.conversationID, err)
		return
	}
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Errorf("channel: read conv=%s: %v", s.conversationID, err)
			}
			return
		}
		ev, err := DecodeEvent(raw)
		if err != nil {
			logger.Debugf("channel: drop malformed frame conv=%s: %v", s.conversationID, err)
			continue
		}
		select {
		case s.events <- ev:
		case <-ctx.Done():
			return
		case <-s.done:
			return
		}
	}
}

func (s *wsSubscription) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
				return
			}
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			s.Close()
			return
		case <-s.done:
			return
		}
	}
}
