package api

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/boardkit/backend/internal/httputil"
	"github.com/boardkit/backend/internal/message"
	"github.com/boardkit/backend/internal/pubsub"
)

const (
	// writeWait is the maximum time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// pongWait is the maximum time to wait for a pong reply from the peer.
	pongWait = 60 * time.Second
	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// maxMessageSize is the maximum inbound frame size in bytes.
	maxMessageSize = 512
)

// subscribeRequest is the single control frame a client sends after the
// upgrade to choose its subscription.
type subscribeRequest struct {
	Subscribe string `json:"subscribe"` // "receiveMessage" | "receiveMessageForUser"
	Name      string `json:"name,omitempty"`
}

// ServeSubscription handles GET /query: the path is upgraded to a WebSocket
// and the connection maps 1:1 onto one broker subscription, streaming one
// JSON message per event until the peer disconnects.
func (h *Handlers) ServeSubscription(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		httputil.WriteError(w, http.StatusBadRequest, "expected websocket upgrade")
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))

	var req subscribeRequest
	if err := conn.ReadJSON(&req); err != nil {
		conn.Close()
		return
	}

	sub, err := h.subscribe(req)
	if err != nil {
		conn.WriteJSON(map[string]string{"error": err.Error()}) //nolint:errcheck
		conn.Close()
		return
	}

	log.Printf("api: subscription %s opened (%s)", sub.ID, sub.Topic())
	go h.writePump(conn, sub)
	go h.readPump(conn, sub)
}

func (h *Handlers) subscribe(req subscribeRequest) (*pubsub.Subscription, error) {
	switch req.Subscribe {
	case "receiveMessage":
		return h.service.SubscribeAll()
	case "receiveMessageForUser":
		if req.Name == "" {
			return nil, &message.ValidationError{Field: "name", Reason: "required"}
		}
		return h.service.SubscribeUser(req.Name)
	default:
		return nil, &message.ValidationError{
			Field:  "subscribe",
			Reason: fmt.Sprintf("unknown subscription %q", req.Subscribe),
		}
	}
}

// readPump drains the connection so pongs and the close handshake are
// processed. Any read error cancels the subscription, which promptly
// deregisters it from the broker.
func (h *Handlers) readPump(conn *websocket.Conn, sub *pubsub.Subscription) {
	defer func() {
		sub.Cancel()
		conn.Close()
		log.Printf("api: subscription %s closed", sub.ID)
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("api: subscription %s read error: %v", sub.ID, err)
			}
			return
		}
	}
}

// writePump streams subscription events to the peer and keeps the
// connection alive with pings. It exits when the subscription channel
// closes or a write fails.
func (h *Handlers) writePump(conn *websocket.Conn, sub *pubsub.Subscription) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		sub.Cancel()
		conn.Close()
	}()

	for {
		select {
		case m, ok := <-sub.C():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := conn.WriteJSON(m); err != nil {
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

// checkOrigin accepts requests without an Origin header (same-origin or
// non-browser clients) and otherwise requires an exact match against the
// configured allowed origins.
func (h *Handlers) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if strings.EqualFold(origin, allowed) {
			return true
		}
	}
	return false
}
