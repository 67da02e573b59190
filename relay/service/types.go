package service

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/spellclash/relay/relay/state"
)

// Sink is the outbound half of one client connection. Send must not block:
// transports queue the frame and report a full queue or closed peer as an
// error, which the relay logs and otherwise ignores (best-effort delivery).
type Sink interface {
	Send(data []byte) error
	Close() error
}

// Options configures a Relay.
type Options struct {
	// PingInterval is the liveness sweep period. Defaults to 10s.
	PingInterval time.Duration
	// IdleTimeout is how long a client may stay silent before the sweep
	// evicts it. Defaults to 60s.
	IdleTimeout time.Duration
	// Logger defaults to the logrus standard logger.
	Logger *logrus.Logger
}

// Stats are the relay's lifetime counters. They are owned by the event loop
// and only ever read through Snapshot.
type Stats struct {
	Connections    uint64 `json:"connections_total"`
	Disconnections uint64 `json:"disconnections_total"`
	Evictions      uint64 `json:"evictions_total"`
	FramesRouted   uint64 `json:"frames_routed_total"`
	Broadcasts     uint64 `json:"broadcasts_total"`
	ProtocolErrors uint64 `json:"protocol_errors_total"`
	LiveClients    int    `json:"live_clients"`
	LiveRooms      int    `json:"live_rooms"`
}

// RoomInfo is a room as seen from outside the loop.
type RoomInfo struct {
	Code      string           `json:"roomCode"`
	Members   []string         `json:"members"`
	Version   int64            `json:"version"`
	CreatedAt time.Time        `json:"createdAt"`
	State     *state.GameState `json:"gameState"`
}

// ClientInfo is a client as seen from outside the loop. The session token is
// deliberately not exposed.
type ClientInfo struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	RoomCode     string    `json:"roomCode,omitempty"`
	ConnectedAt  time.Time `json:"connectedAt"`
	LastActivity time.Time `json:"lastActivity"`
}

// Snapshot is a consistent copy of the relay's state, taken inside the event
// loop.
type Snapshot struct {
	Rooms   []RoomInfo   `json:"rooms"`
	Clients []ClientInfo `json:"clients"`
	Stats   Stats        `json:"stats"`
	TakenAt time.Time    `json:"takenAt"`
}

// StatusKind enumerates connection and room lifecycle events.
type StatusKind int

const (
	ClientConnected StatusKind = iota
	ClientDisconnected
	RoomCreated
	RoomDeleted
)

// String implements fmt.Stringer for log output.
func (k StatusKind) String() string {
	switch k {
	case ClientConnected:
		return "client_connected"
	case ClientDisconnected:
		return "client_disconnected"
	case RoomCreated:
		return "room_created"
	case RoomDeleted:
		return "room_deleted"
	default:
		return "unknown"
	}
}

// StatusEvent describes one lifecycle transition.
type StatusEvent struct {
	Kind     StatusKind
	ClientID string
	RoomCode string
	At       time.Time
}

// StatusListener receives lifecycle events. Listeners run on the event loop
// and must return quickly.
type StatusListener func(StatusEvent)

// Loop events. Each inbound socket event and each query becomes one of these
// on the relay's single channel.

type attachEvent struct {
	sink  Sink
	reply chan string
}

type frameEvent struct {
	clientID string
	data     []byte
}

type closeEvent struct {
	clientID string
}

type snapshotEvent struct {
	reply chan Snapshot
}
