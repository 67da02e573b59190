package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/spellclash/relay/relay/protocol"
	"github.com/spellclash/relay/relay/state"
)

const (
	defaultPingInterval = 10 * time.Second
	defaultIdleTimeout  = 60 * time.Second

	// eventQueueSize buffers transport events so readPump goroutines rarely
	// block while the loop is busy.
	eventQueueSize = 512
)

type handlerFunc func(c *state.Client, msg protocol.Message)

// Relay owns the registries and processes every socket event and liveness
// tick on a single goroutine. Create with New, start with Run.
type Relay struct {
	clients *state.ClientRegistry
	rooms   *state.RoomRegistry
	sinks   map[string]Sink

	handlers map[protocol.MessageType]handlerFunc

	events chan any
	done   chan struct{}

	pingInterval time.Duration
	idleTimeout  time.Duration

	stats Stats

	listenerMu sync.Mutex
	listeners  map[int]StatusListener
	nextToken  int

	log *logrus.Entry
}

// New builds a Relay with the given options.
func New(opts Options) *Relay {
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaultPingInterval
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = defaultIdleTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	r := &Relay{
		clients:      state.NewClientRegistry(),
		rooms:        state.NewRoomRegistry(),
		sinks:        make(map[string]Sink),
		events:       make(chan any, eventQueueSize),
		done:         make(chan struct{}),
		pingInterval: opts.PingInterval,
		idleTimeout:  opts.IdleTimeout,
		listeners:    make(map[int]StatusListener),
		log:          opts.Logger.WithField("component", "relay"),
	}
	r.handlers = map[protocol.MessageType]handlerFunc{
		protocol.TypeConnect:           r.handleConnect,
		protocol.TypeDisconnect:        r.handleDisconnect,
		protocol.TypeJoinRoom:          r.handleJoinRoom,
		protocol.TypeLeaveRoom:         r.handleLeaveRoom,
		protocol.TypeGameStateUpdate:   r.handleGameStateUpdate,
		protocol.TypePlayerMove:        r.handleRelayVerbatim,
		protocol.TypeTransactionUpdate: r.handleRelayVerbatim,
		protocol.TypeSyncRequest:       r.handleSyncRequest,
		protocol.TypePing:              r.handlePing,
		protocol.TypePong:              r.handlePong,
		protocol.TypeChatMessage:       r.handleChatMessage,
		protocol.TypeChatJoin:          r.handleChatPresence,
		protocol.TypeChatLeave:         r.handleChatPresence,
	}
	return r
}

// Run drives the event loop until ctx is cancelled, then closes every open
// connection. It should be run in its own goroutine.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.pingInterval)
	defer ticker.Stop()
	defer close(r.done)

	r.log.WithFields(logrus.Fields{
		"ping_interval": r.pingInterval,
		"idle_timeout":  r.idleTimeout,
	}).Info("relay loop started")

	for {
		select {
		case <-ctx.Done():
			r.shutdown()
			return
		case ev := <-r.events:
			r.handleEvent(ev)
		case now := <-ticker.C:
			r.sweep(now)
		}
	}
}

// Attach registers a new connection and returns its relay-assigned client
// id, or "" if the relay has already shut down.
func (r *Relay) Attach(sink Sink) string {
	reply := make(chan string, 1)
	select {
	case r.events <- attachEvent{sink: sink, reply: reply}:
		// The loop may have exited between queueing and here; the done
		// check keeps the caller from waiting on a reply that never comes.
		select {
		case id := <-reply:
			return id
		case <-r.done:
			return ""
		}
	case <-r.done:
		return ""
	}
}

// HandleMessage posts one inbound frame for routing. Safe to call from any
// goroutine; frames from a single connection keep their arrival order.
func (r *Relay) HandleMessage(clientID string, data []byte) {
	select {
	case r.events <- frameEvent{clientID: clientID, data: data}:
	case <-r.done:
	}
}

// HandleClose reports that a connection ended (socket close or error). The
// client is removed and its room updated; calling it again is a no-op.
func (r *Relay) HandleClose(clientID string) {
	select {
	case r.events <- closeEvent{clientID: clientID}:
	case <-r.done:
	}
}

// Snapshot returns a consistent copy of rooms, clients, and counters. After
// shutdown it returns the zero Snapshot.
func (r *Relay) Snapshot() Snapshot {
	reply := make(chan Snapshot, 1)
	select {
	case r.events <- snapshotEvent{reply: reply}:
		select {
		case snap := <-reply:
			return snap
		case <-r.done:
			return Snapshot{}
		}
	case <-r.done:
		return Snapshot{}
	}
}

// Subscribe registers a lifecycle listener and returns its removal func.
func (r *Relay) Subscribe(l StatusListener) func() {
	r.listenerMu.Lock()
	defer r.listenerMu.Unlock()
	token := r.nextToken
	r.nextToken++
	r.listeners[token] = l
	return func() {
		r.listenerMu.Lock()
		defer r.listenerMu.Unlock()
		delete(r.listeners, token)
	}
}

func (r *Relay) notify(ev StatusEvent) {
	r.listenerMu.Lock()
	ls := make([]StatusListener, 0, len(r.listeners))
	for _, l := range r.listeners {
		ls = append(ls, l)
	}
	r.listenerMu.Unlock()
	for _, l := range ls {
		l(ev)
	}
}

// handleEvent runs one loop iteration's worth of work.
func (r *Relay) handleEvent(ev any) {
	switch e := ev.(type) {
	case attachEvent:
		c := r.attach(e.sink, time.Now())
		e.reply <- c.ID
	case frameEvent:
		r.handleFrame(e.clientID, e.data)
	case closeEvent:
		r.removeClient(e.clientID)
	case snapshotEvent:
		e.reply <- r.snapshot(time.Now())
	default:
		r.log.Warnf("dropping unknown loop event %T", ev)
	}
}

func (r *Relay) attach(sink Sink, now time.Time) *state.Client {
	c := r.clients.Register(now)
	r.sinks[c.ID] = sink
	r.stats.Connections++
	r.log.WithField("client_id", c.ID).Info("client connected")
	r.notify(StatusEvent{Kind: ClientConnected, ClientID: c.ID, At: now})
	return c
}

// removeClient tears a client down: room leave, sink close, listener notify.
// Idempotent, so a transport close racing an eviction is harmless.
func (r *Relay) removeClient(id string) {
	c := r.clients.Remove(id)
	if c == nil {
		return
	}
	if c.RoomCode != "" {
		r.leaveRoom(c)
	}
	if sink, ok := r.sinks[id]; ok {
		delete(r.sinks, id)
		if err := sink.Close(); err != nil {
			r.log.WithField("client_id", id).WithError(err).Debug("sink close failed")
		}
	}
	r.stats.Disconnections++
	r.log.WithFields(logrus.Fields{
		"client_id": c.ID,
		"user_id":   c.UserID,
	}).Info("client disconnected")
	r.notify(StatusEvent{Kind: ClientDisconnected, ClientID: c.ID, At: time.Now()})
}

// leaveRoom removes c from its current room, broadcasting the departure to
// whoever remains and deleting the room when it empties.
func (r *Relay) leaveRoom(c *state.Client) {
	code := c.RoomCode
	if code == "" {
		return
	}
	room, removed, deleted := r.rooms.Leave(c.ID, code)
	c.RoomCode = ""
	if !removed {
		return
	}
	logCtx := r.log.WithFields(logrus.Fields{
		"client_id": c.ID,
		"user_id":   c.UserID,
		"room_code": code,
	})
	if deleted {
		logCtx.Info("room emptied, deleted")
		r.notify(StatusEvent{Kind: RoomDeleted, RoomCode: code, At: time.Now()})
		return
	}
	logCtx.Info("client left room")
	if c.Identified() {
		chat := protocol.New(protocol.TypeChatLeave, protocol.ChatPresencePayload{Username: c.UserID})
		chat.Sender = c.UserID
		chat.RoomCode = code
		r.broadcastRoom(room, chat, "")
	}
	notice := protocol.New(protocol.TypeLeaveRoom, protocol.LeaveNotice{UserID: c.UserID})
	notice.Sender = c.UserID
	notice.RoomCode = code
	r.broadcastRoom(room, notice, "")
}

// sweep is the liveness monitor's tick: evict the silent, ping the rest.
func (r *Relay) sweep(now time.Time) {
	for _, c := range r.clients.All() {
		if now.Sub(c.LastActivity) > r.idleTimeout {
			r.stats.Evictions++
			r.log.WithFields(logrus.Fields{
				"client_id": c.ID,
				"user_id":   c.UserID,
				"idle":      now.Sub(c.LastActivity),
			}).Warn("evicting silent client")
			// Presumed unreachable: no ERROR, no goodbye, just the normal
			// leave path for whoever shares its room.
			r.removeClient(c.ID)
			continue
		}
		r.send(c.ID, protocol.New(protocol.TypePing, protocol.PingPayload{Timestamp: now.UnixMilli()}))
	}
}

func (r *Relay) shutdown() {
	r.log.Info("relay shutting down, closing connections")
	for id, sink := range r.sinks {
		if err := sink.Close(); err != nil {
			r.log.WithField("client_id", id).WithError(err).Debug("close during shutdown failed")
		}
	}
	r.sinks = make(map[string]Sink)
}

// send serializes msg and writes it to one client, best-effort.
func (r *Relay) send(clientID string, msg protocol.Message) {
	sink, ok := r.sinks[clientID]
	if !ok {
		return
	}
	data, err := msg.Encode()
	if err != nil {
		r.log.WithError(err).Error("failed to encode outbound message")
		return
	}
	if err := sink.Send(data); err != nil {
		r.log.WithFields(logrus.Fields{
			"client_id": clientID,
			"type":      msg.Type,
		}).WithError(err).Warn("write to client failed")
	}
}

// broadcastRoom fans msg out to the room's members, excluding excludeID when
// non-empty. One failed write never aborts delivery to the others.
func (r *Relay) broadcastRoom(room *state.Room, msg protocol.Message, excludeID string) {
	data, err := msg.Encode()
	if err != nil {
		r.log.WithError(err).Error("failed to encode broadcast message")
		return
	}
	for id := range room.Members {
		if id == excludeID {
			continue
		}
		sink, ok := r.sinks[id]
		if !ok {
			continue
		}
		if err := sink.Send(data); err != nil {
			r.log.WithFields(logrus.Fields{
				"client_id": id,
				"room_code": room.Code,
				"type":      msg.Type,
			}).WithError(err).Warn("broadcast write failed, skipping recipient")
		}
	}
	r.stats.Broadcasts++
}

func (r *Relay) snapshot(now time.Time) Snapshot {
	snap := Snapshot{
		Rooms:   make([]RoomInfo, 0, r.rooms.Len()),
		Clients: make([]ClientInfo, 0, r.clients.Len()),
		Stats:   r.stats,
		TakenAt: now,
	}
	snap.Stats.LiveClients = r.clients.Len()
	snap.Stats.LiveRooms = r.rooms.Len()

	for _, room := range r.rooms.All() {
		members := room.MemberIDs()
		sort.Strings(members)
		snap.Rooms = append(snap.Rooms, RoomInfo{
			Code:      room.Code,
			Members:   members,
			Version:   room.State.Version,
			CreatedAt: room.CreatedAt,
			State:     room.State.Clone(),
		})
	}
	sort.Slice(snap.Rooms, func(i, j int) bool { return snap.Rooms[i].Code < snap.Rooms[j].Code })

	for _, c := range r.clients.All() {
		snap.Clients = append(snap.Clients, ClientInfo{
			ID:           c.ID,
			UserID:       c.UserID,
			RoomCode:     c.RoomCode,
			ConnectedAt:  c.ConnectedAt,
			LastActivity: c.LastActivity,
		})
	}
	sort.Slice(snap.Clients, func(i, j int) bool { return snap.Clients[i].ID < snap.Clients[j].ID })

	return snap
}
