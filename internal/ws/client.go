package ws

import (
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/kiwari-pos/restaurant-ops/internal/auth"
)

// Connection timings. pingEvery must stay below idleTimeout.
const (
	writeTimeout = 10 * time.Second
	idleTimeout  = 60 * time.Second
	pingEvery    = 50 * time.Second

	// screens only answer pings; anything bigger is dropped
	readLimit  = 512
	sendBuffer = 256
)

// Client is one staff screen subscribed to a restaurant's events.
type Client struct {
	hub          *Hub
	conn         *websocket.Conn
	restaurantID uuid.UUID
	staffID      int64
	send         chan []byte
}

// Handler upgrades GET /ws/restaurants/{rid}/events?token=JWT and
// subscribes the connection to the restaurant's room.
type Handler struct {
	hub      *Hub
	secret   string
	upgrader websocket.Upgrader
}

// NewHandler creates a new Handler. Browser origins are checked against
// allowedOrigins; "*" allows any origin.
func NewHandler(hub *Hub, jwtSecret string, allowedOrigins []string) *Handler {
	return &Handler{
		hub:    hub,
		secret: jwtSecret,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		http.Error(w, "invalid restaurant id", http.StatusBadRequest)
		return
	}

	// browsers cannot set headers on a websocket handshake
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	claims, err := auth.ValidateToken(h.secret, token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	if !claims.CanAccess(restaurantID) {
		http.Error(w, "restaurant access denied", http.StatusForbidden)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already answered the request
		h.hub.logger.Warn().Err(err).Str("restaurant_id", restaurantID.String()).Msg("websocket upgrade")
		return
	}

	c := &Client{
		hub:          h.hub,
		conn:         conn,
		restaurantID: restaurantID,
		staffID:      claims.StaffID,
		send:         make(chan []byte, sendBuffer),
	}
	h.hub.register <- c
	h.hub.logger.Debug().Str("restaurant_id", restaurantID.String()).Int64("staff_id", claims.StaffID).
		Msg("screen subscribed")

	go c.writeLoop()
	go c.readLoop()
}

// readLoop keeps the read deadline moving on pongs and unregisters the
// client once the peer goes away.
func (c *Client) readLoop() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	})

	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug().Err(err).Str("restaurant_id", c.restaurantID.String()).
					Int64("staff_id", c.staffID).Msg("screen disconnected")
			}
			return
		}
	}
}

// writeLoop sends one websocket message per event. It exits when the hub
// closes c.send or a write fails.
func (c *Client) writeLoop() {
	ping := time.NewTicker(pingEvery)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
