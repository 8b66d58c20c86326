package realtime

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/phillip/localhub-go/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
)

// Envelope is the frame pushed to conversation subscribers.
type Envelope struct {
	Type           string      `json:"type"`
	ConversationID string      `json:"conversation_id"`
	Data           interface{} `json:"data,omitempty"`
}

type client struct {
	conn   *websocket.Conn
	userID string
	send   chan Envelope
}

// Hub fans conversation events out to every open stream of that conversation.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[*client]struct{}
	upgrader websocket.Upgrader
	log      logrus.FieldLogger
}

// NewHub accepts upgrades from the listed origins; an empty list allows any.
func NewHub(allowedOrigins []string, log logrus.FieldLogger) *Hub {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &Hub{
		rooms: make(map[string]map[*client]struct{}),
		log:   log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowed) == 0 || allowed[origin]
			},
		},
	}
}

// Subscribers reports the number of open streams for a conversation.
func (h *Hub) Subscribers(conversationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[conversationID])
}

func (h *Hub) register(conversationID string, cl *client) {
	h.mu.Lock()
	if h.rooms[conversationID] == nil {
		h.rooms[conversationID] = make(map[*client]struct{})
	}
	h.rooms[conversationID][cl] = struct{}{}
	h.mu.Unlock()
	metrics.ChatConnections.Inc()
}

func (h *Hub) unregister(conversationID string, cl *client) {
	h.mu.Lock()
	clients, ok := h.rooms[conversationID]
	if ok {
		if _, present := clients[cl]; present {
			delete(clients, cl)
			close(cl.send)
			metrics.ChatConnections.Dec()
		}
		if len(clients) == 0 {
			delete(h.rooms, conversationID)
		}
	}
	h.mu.Unlock()
}

// Broadcast queues an event for every subscriber. Slow subscribers whose
// buffer is full are dropped.
func (h *Hub) Broadcast(conversationID, eventType string, data interface{}) {
	env := Envelope{Type: eventType, ConversationID: conversationID, Data: data}

	h.mu.RLock()
	var slow []*client
	for cl := range h.rooms[conversationID] {
		select {
		case cl.send <- env:
		default:
			slow = append(slow, cl)
		}
	}
	h.mu.RUnlock()

	for _, cl := range slow {
		h.log.WithFields(logrus.Fields{"conversation_id": conversationID, "user_id": cl.userID}).Warn("dropping slow chat stream")
		h.unregister(conversationID, cl)
	}
}

// Serve upgrades the request and streams conversation events until the
// client disconnects. Incoming frames are ignored apart from pongs.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, conversationID, userID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	cl := &client{conn: conn, userID: userID, send: make(chan Envelope, sendBuffer)}
	cl.send <- Envelope{Type: "connected", ConversationID: conversationID}
	h.register(conversationID, cl)
	log := h.log.WithFields(logrus.Fields{"conversation_id": conversationID, "user_id": userID})
	log.Debug("chat stream opened")

	go h.writePump(cl, log)

	defer func() {
		h.unregister(conversationID, cl)
		conn.Close()
		log.Debug("chat stream closed")
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Warn("chat stream error")
			}
			return nil
		}
	}
}

func (h *Hub) writePump(cl *client, log logrus.FieldLogger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case env, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteJSON(env); err != nil {
				log.WithError(err).Debug("chat stream write failed")
				cl.conn.Close()
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				cl.conn.Close()
				return
			}
		}
	}
}
