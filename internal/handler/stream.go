package handler

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/helpchat/internal/chat"
	"github.com/helpchat/internal/logger"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
	streamBufSize    = 64
)

// StreamHandler pushes engine events to dashboard WebSocket clients.
// One broadcaster goroutine drains the engine's event channel and
// fans out to every connected socket; a slow socket drops events
// rather than stalling the rest.
type StreamHandler struct {
	eng            *chat.Engine
	allowedOrigins string

	mu    sync.Mutex
	conns map[*streamConn]struct{}
	once  sync.Once
}

type streamConn struct {
	conn *websocket.Conn
	send chan chat.Event
}

func NewStreamHandler(eng *chat.Engine, allowedOrigins string) *StreamHandler {
	return &StreamHandler{
		eng:            eng,
		allowedOrigins: strings.TrimSpace(allowedOrigins),
		conns:          make(map[*streamConn]struct{}),
	}
}

func (h *StreamHandler) checkOrigin(r *http.Request) bool {
	if h.allowedOrigins == "*" || h.allowedOrigins == "" {
		return true
	}
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	for _, o := range strings.Split(h.allowedOrigins, ",") {
		if strings.TrimSpace(o) == origin {
			return true
		}
	}
	return false
}

// ServeWS handles GET /ws: upgrades the connection and streams engine
// events until the client hangs up or the engine shuts down.
func (h *StreamHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	if !h.checkOrigin(r) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return h.checkOrigin(r) },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Errorf("stream upgrade: %v", err)
		return
	}

	h.once.Do(func() { go h.broadcast() })

	sc := &streamConn{conn: conn, send: make(chan chat.Event, streamBufSize)}
	h.mu.Lock()
	h.conns[sc] = struct{}{}
	h.mu.Unlock()

	go h.writePump(sc)
	h.readPump(sc)
}

// broadcast drains the engine event channel for the lifetime of the
// process and copies each event to every connected socket.
func (h *StreamHandler) broadcast() {
	for {
		select {
		case ev := <-h.eng.Events():
			h.mu.Lock()
			for sc := range h.conns {
				select {
				case sc.send <- ev:
				default:
					// Slow consumer: drop this event for this socket.
				}
			}
			h.mu.Unlock()
		case <-h.eng.Done():
			h.mu.Lock()
			for sc := range h.conns {
				close(sc.send)
			}
			h.conns = make(map[*streamConn]struct{})
			h.mu.Unlock()
			return
		}
	}
}

func (h *StreamHandler) drop(sc *streamConn) {
	h.mu.Lock()
	if _, ok := h.conns[sc]; ok {
		delete(h.conns, sc)
		close(sc.send)
	}
	h.mu.Unlock()
	sc.conn.Close()
}

// readPump discards inbound frames; the stream is one-directional.
// It exists to notice pongs and disconnects.
func (h *StreamHandler) readPump(sc *streamConn) {
	defer h.drop(sc)
	sc.conn.SetReadLimit(512)
	if err := sc.conn.SetReadDeadline(time.Now().Add(streamPongWait)); err != nil {
		return
	}
	sc.conn.SetPongHandler(func(string) error {
		return sc.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	for {
		if _, _, err := sc.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Errorf("stream read: %v", err)
			}
			return
		}
	}
}

func (h *StreamHandler) writePump(sc *streamConn) {
	ticker := time.NewTicker(streamPingPeriod)
	defer func() {
		ticker.Stop()
		sc.conn.Close()
	}()
	for {
		select {
		case ev, ok := <-sc.send:
			sc.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if !ok {
				sc.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sc.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			sc.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := sc.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
