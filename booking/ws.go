package booking

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/loiphan2202/BAT/access"
	"github.com/loiphan2202/BAT/models"
	"github.com/loiphan2202/BAT/utils"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/sirupsen/logrus"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins; the token decides what the socket carries
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StatusEvent is pushed to a booking's owner when its status changes.
type StatusEvent struct {
	Type          string               `json:"type"`
	BookingID     string               `json:"bookingId"`
	Status        models.BookingStatus `json:"status"`
	PaymentStatus models.PaymentStatus `json:"paymentStatus"`
	UpdatedAt     time.Time            `json:"updatedAt"`
}

type subscriber struct {
	userID string
	send   chan []byte
}

// Hub fans booking status changes out to the owners' open websockets.
type Hub struct {
	mu          sync.Mutex
	subscribers map[string]map[*subscriber]struct{}
	closed      bool
	log         logrus.FieldLogger
}

func NewHub(log logrus.FieldLogger) *Hub {
	return &Hub{subscribers: make(map[string]map[*subscriber]struct{}), log: log}
}

func (h *Hub) add(s *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	if h.subscribers[s.userID] == nil {
		h.subscribers[s.userID] = make(map[*subscriber]struct{})
	}
	h.subscribers[s.userID][s] = struct{}{}
	return true
}

func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.subscribers[s.userID]; ok {
		if _, ok := conns[s]; ok {
			delete(conns, s)
			close(s.send)
		}
		if len(conns) == 0 {
			delete(h.subscribers, s.userID)
		}
	}
}

// PublishStatus never blocks: a subscriber whose buffer is full is dropped.
func (h *Hub) PublishStatus(b models.Booking) {
	data, err := json.Marshal(StatusEvent{
		Type:          "booking.status",
		BookingID:     b.ID,
		Status:        b.Status,
		PaymentStatus: b.PaymentStatus,
		UpdatedAt:     b.UpdatedAt,
	})
	if err != nil {
		h.log.WithError(err).Warn("status event not encoded")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subscribers[b.UserID] {
		select {
		case s.send <- data:
		default:
			delete(h.subscribers[b.UserID], s)
			close(s.send)
		}
	}
}

// Subscribers reports how many sockets userID has open.
func (h *Hub) Subscribers(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[userID])
}

// Close disconnects everyone and refuses new subscribers.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for userID, conns := range h.subscribers {
		for s := range conns {
			close(s.send)
		}
		delete(h.subscribers, userID)
	}
}

// ServeWS upgrades an authenticated request and streams the caller's
// booking status events until the socket closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, ok := access.FromContext(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		h.log.WithError(err).Debug("websocket upgrade failed")
		return
	}

	s := &subscriber{userID: actor.UserID, send: make(chan []byte, 16)}
	if !h.add(s) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		conn.Close()
		return
	}
	go h.writePump(conn, s)
	h.readPump(conn, s)
}

// readPump only watches for the client going away.
func (h *Hub) readPump(conn *websocket.Conn, s *subscriber) {
	defer func() {
		h.remove(s)
		conn.Close()
	}()
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(conn *websocket.Conn, s *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for {
		select {
		case msg, ok := <-s.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
