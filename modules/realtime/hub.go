package realtime

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"escena-studio/modules/common/logger"
	"escena-studio/modules/common/response"
	"escena-studio/modules/studio"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// 메시지 타입
const (
	TypeState        = "state"
	TypeRequestState = "request_state"
)

// Message - 서버 ↔ 클라이언트 메시지
type Message struct {
	Type    string           `json:"type"`
	Session string           `json:"session,omitempty"`
	State   *studio.Snapshot `json:"state,omitempty"`
}

// Stats - 연결 통계
type Stats struct {
	TotalConnections int `json:"totalConnections"`
	CurrentClients   int `json:"currentClients"`
}

// Hub - 세션 컨트롤러의 스냅샷을 WebSocket 클라이언트로 전달
type Hub struct {
	registry *studio.Registry
	upgrader websocket.Upgrader
	log      *logrus.Entry

	mu      sync.Mutex
	clients map[string]int
	stats   Stats
}

func NewHub(registry *studio.Registry) *Hub {
	return &Hub{
		registry: registry,
		upgrader: websocket.Upgrader{
			// 개발용 - 모든 origin 허용
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log:     logger.WithModule("Realtime"),
		clients: make(map[string]int),
	}
}

func (h *Hub) Register(r *mux.Router) {
	r.HandleFunc("/ws", h.HandleWebSocket)
}

// Stats - 누적/현재 연결 수
func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}

// Clients - 세션에 연결된 클라이언트 수
func (h *Hub) Clients(session string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clients[session]
}

type client struct {
	hub        *Hub
	conn       *websocket.Conn
	session    string
	controller *studio.Controller
	updates    <-chan studio.Snapshot
	requests   chan struct{}
}

// HandleWebSocket - GET /ws?session=<id>
// 연결 직후 현재 스냅샷, 이후 상태가 바뀔 때마다 스냅샷 전송
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	session := r.URL.Query().Get("session")
	if session == "" {
		response.Error(w, http.StatusBadRequest, response.ErrCodeInvalidRequest, "Missing session parameter")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Errorf("❌ WebSocket upgrade failed: %v", err)
		return
	}

	controller := h.registry.GetOrCreate(session)
	updates, unsubscribe := controller.Subscribe()
	c := &client{
		hub:        h,
		conn:       conn,
		session:    session,
		controller: controller,
		updates:    updates,
		requests:   make(chan struct{}, 1),
	}
	c.requests <- struct{}{}

	h.connected(session)
	h.log.Infof("🔍 New WebSocket connection - Session: %s", session)

	go c.writePump()
	go c.readPump(unsubscribe)
}

func (h *Hub) connected(session string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[session]++
	h.stats.TotalConnections++
	h.stats.CurrentClients++
}

func (h *Hub) disconnected(session string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[session]--
	if h.clients[session] <= 0 {
		delete(h.clients, session)
	}
	h.stats.CurrentClients--
}

// readPump - 클라이언트 메시지 읽기. 연결이 끊기면 구독 해제
func (c *client) readPump(unsubscribe func()) {
	defer func() {
		unsubscribe()
		c.conn.Close()
		c.hub.disconnected(c.session)
		c.hub.log.Infof("👋 WebSocket disconnected - Session: %s", c.session)
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warnf("⚠️ WebSocket error: %v", err)
			}
			return
		}

		switch msg.Type {
		case TypeRequestState:
			select {
			case c.requests <- struct{}{}:
			default:
			}
		default:
			c.hub.log.Debugf("Ignoring message type %q from session %s", msg.Type, c.session)
		}
	}
}

// writePump - 연결에 쓰는 유일한 고루틴
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case snap, ok := <-c.updates:
			if !ok {
				_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if !c.write(snap) {
				return
			}
		case <-c.requests:
			if !c.write(c.controller.Snapshot()) {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) write(snap studio.Snapshot) bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(Message{Type: TypeState, Session: c.session, State: &snap}); err != nil {
		c.hub.log.Warnf("⚠️ WebSocket write error: %v", err)
		return false
	}
	return true
}
