package websocket

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// Outbound frames buffered per peer before writes start failing.
	sendQueueSize = 256
)

var (
	// ErrPeerClosed is returned by Send after the peer has been torn down.
	ErrPeerClosed = errors.New("peer closed")

	// ErrSendQueueFull is returned when the peer's consumer is too slow to
	// drain its queue. The frame is dropped; delivery is best-effort.
	ErrSendQueueFull = errors.New("peer send queue full")
)

// Peer wraps one websocket connection with a non-blocking send queue. It is
// the relay's Sink for that client.
type Peer struct {
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	log       *logrus.Entry
}

func newPeer(conn *websocket.Conn, log *logrus.Entry) *Peer {
	return &Peer{
		conn: conn,
		send: make(chan []byte, sendQueueSize),
		done: make(chan struct{}),
		log:  log,
	}
}

// Send queues one frame for delivery. It never blocks: a closed peer or a
// full queue is an error the caller may log and ignore.
func (p *Peer) Send(data []byte) error {
	select {
	case <-p.done:
		return ErrPeerClosed
	default:
	}
	select {
	case p.send <- data:
		return nil
	case <-p.done:
		return ErrPeerClosed
	default:
		return ErrSendQueueFull
	}
}

// Close tears the peer down. Idempotent and safe from any goroutine; the
// pumps observe done and exit.
func (p *Peer) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
	})
	return nil
}

// readPump pumps frames from the connection into the relay until the socket
// closes or errors, then reports the close. It runs in its own goroutine.
func (p *Peer) readPump(clientID string, relay Relay) {
	defer func() {
		relay.HandleClose(clientID)
		p.Close()
		p.conn.Close()
	}()

	p.conn.SetReadLimit(maxMessageSize)
	p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		p.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				p.log.WithField("client_id", clientID).WithError(err).Warn("websocket read error")
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		relay.HandleMessage(clientID, data)
	}
}

// writePump pumps queued frames to the connection and sends transport-level
// pings. It runs in its own goroutine and owns all writes to the conn.
func (p *Peer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		p.conn.Close()
	}()

	for {
		select {
		case <-p.done:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			p.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case data := <-p.send:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
