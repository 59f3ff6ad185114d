package devstub

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/helpchat/internal/logger"
)

const (
	hubWriteWait  = 10 * time.Second
	hubPongWait   = 60 * time.Second
	hubPingPeriod = (hubPongWait * 9) / 10
	hubSendBuf    = 128
)

// Hub fans realtime frames out to WebSocket subscribers, one room per
// conversation. It is the devstub's counterpart of the production
// realtime service.
type Hub struct {
	mu             sync.Mutex
	rooms          map[string]map[*hubConn]struct{}
	allowedOrigins string
}

type hubConn struct {
	conn *websocket.Conn
	send chan []byte
}

func NewHub(allowedOrigins string) *Hub {
	return &Hub{
		rooms:          make(map[string]map[*hubConn]struct{}),
		allowedOrigins: strings.TrimSpace(allowedOrigins),
	}
}

// Broadcast delivers a frame to every subscriber of the conversation.
// Slow subscribers lose the frame rather than blocking the sender.
func (h *Hub) Broadcast(conversationID string, frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.rooms[conversationID] {
		select {
		case c.send <- frame:
		default:
		}
	}
}

func (h *Hub) checkOrigin(r *http.Request) bool {
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

// ServeWS handles GET /ws/conversations/{id}: subscribes the caller to
// that conversation's frames until it disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, conversationID string) {
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
		logger.Errorf("hub upgrade conv=%s: %v", conversationID, err)
		return
	}

	c := &hubConn{conn: conn, send: make(chan []byte, hubSendBuf)}
	h.mu.Lock()
	room := h.rooms[conversationID]
	if room == nil {
		room = make(map[*hubConn]struct{})
		h.rooms[conversationID] = room
	}
	room[c] = struct{}{}
	h.mu.Unlock()

	go c.writePump()
	h.readPump(conversationID, c)
}

func (h *Hub) drop(conversationID string, c *hubConn) {
	h.mu.Lock()
	if room := h.rooms[conversationID]; room != nil {
		if _, ok := room[c]; ok {
			delete(room, c)
			close(c.send)
		}
		if len(room) == 0 {
			delete(h.rooms, conversationID)
		}
	}
	h.mu.Unlock()
	c.conn.Close()
}

// readPump exists to notice pongs and disconnects; subscribers do not
// send application frames.
func (h *Hub) readPump(conversationID string, c *hubConn) {
	defer h.drop(conversationID, c)
	c.conn.SetReadLimit(4096)
	if err := c.conn.SetReadDeadline(time.Now().Add(hubPongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(hubPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *hubConn) writePump() {
	ticker := time.NewTicker(hubPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(hubWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(hubWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
