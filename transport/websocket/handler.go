package websocket

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/spellclash/relay/relay/service"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins in development
		// TODO: Configure this for production
		return true
	},
}

// Relay is the loop-side surface the transport needs.
type Relay interface {
	Attach(sink service.Sink) string
	HandleMessage(clientID string, data []byte)
	HandleClose(clientID string)
}

// Handler upgrades HTTP requests into relay connections.
type Handler struct {
	relay Relay
	log   *logrus.Entry
}

// NewHandler creates the /ws handler. A nil logger falls back to the logrus
// standard logger.
func NewHandler(relay Relay, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{
		relay: relay,
		log:   logger.WithField("component", "ws"),
	}
}

// ServeHTTP implements http.Handler: upgrade, attach, start the pumps.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	peer := newPeer(conn, h.log)
	clientID := h.relay.Attach(peer)
	if clientID == "" {
		// Relay already shut down.
		conn.Close()
		return
	}

	go peer.writePump()
	go peer.readPump(clientID, h.relay)
}
