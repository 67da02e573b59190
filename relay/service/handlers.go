package service

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/spellclash/relay/relay/protocol"
	"github.com/spellclash/relay/relay/state"
)

// Error reply texts. These are part of the client-facing contract.
const (
	errInvalidFormat    = "Invalid message format"
	errUnknownType      = "Unknown message type"
	errNotInRoom        = "Not in a room"
	errRoomCodeRequired = "Room code is required"
	errUsernameRequired = "Username is required"
	errContentRequired  = "Message content is required"
	errSenderRequired   = "Sender is required"
	errRoomNotFound     = "Room not found"
)

// handleFrame validates and routes one inbound frame. Errors are always
// replies; the connection is never closed from here.
func (r *Relay) handleFrame(clientID string, data []byte) {
	c, ok := r.clients.Get(clientID)
	if !ok {
		// Evicted while the frame was in flight.
		return
	}
	r.clients.Touch(clientID, time.Now())

	msg, err := protocol.Decode(data)
	if err != nil {
		r.stats.ProtocolErrors++
		r.log.WithFields(logrus.Fields{
			"client_id": c.ID,
			"size":      len(data),
		}).WithError(err).Warn("rejected inbound frame")
		if errors.Is(err, protocol.ErrUnknownType) {
			r.sendError(c.ID, errUnknownType)
		} else {
			r.sendError(c.ID, errInvalidFormat)
		}
		return
	}

	handler, ok := r.handlers[msg.Type]
	if !ok {
		// Known type, but server-to-client only (SYNC_RESPONSE, ERROR, ...).
		r.stats.ProtocolErrors++
		r.sendError(c.ID, errUnknownType)
		return
	}

	r.stats.FramesRouted++
	r.invoke(handler, c, msg)
}

// invoke runs a handler behind a recover so one client's input can never
// take the loop (and every other client's connection) down with it.
func (r *Relay) invoke(h handlerFunc, c *state.Client, msg protocol.Message) {
	defer func() {
		if p := recover(); p != nil {
			r.stats.ProtocolErrors++
			r.log.WithFields(logrus.Fields{
				"client_id": c.ID,
				"type":      msg.Type,
				"panic":     p,
			}).Error("handler panicked")
			r.sendError(c.ID, errInvalidFormat)
		}
	}()
	h(c, msg)
}

func (r *Relay) sendError(clientID, text string) {
	r.send(clientID, protocol.New(protocol.TypeError, protocol.ErrorPayload{Message: text}))
}

func (r *Relay) handleConnect(c *state.Client, msg protocol.Message) {
	var p protocol.ConnectPayload
	if err := msg.DecodePayload(&p); err != nil {
		r.sendError(c.ID, errInvalidFormat)
		return
	}
	if p.UserID != "" {
		c.UserID = p.UserID
	}
	if p.SessionID != "" {
		// Resumption is acknowledged, not implemented: the claimed token is
		// adopted and echoed, but no room membership or state is restored.
		c.SessionID = p.SessionID
	}
	r.log.WithFields(logrus.Fields{
		"client_id":  c.ID,
		"user_id":    c.UserID,
		"session_id": c.SessionID,
	}).Info("client identified")
	r.send(c.ID, protocol.New(protocol.TypeConnect, protocol.ConnectAck{
		UserID:    c.UserID,
		SessionID: c.SessionID,
	}))
}

func (r *Relay) handleDisconnect(c *state.Client, _ protocol.Message) {
	// An explicit goodbye is the same as a socket close.
	r.removeClient(c.ID)
}

func (r *Relay) handleJoinRoom(c *state.Client, msg protocol.Message) {
	var p protocol.JoinRoomPayload
	if err := msg.DecodePayload(&p); err != nil {
		r.sendError(c.ID, errInvalidFormat)
		return
	}
	if p.RoomCode == "" {
		r.sendError(c.ID, errRoomCodeRequired)
		return
	}
	if c.RoomCode == p.RoomCode {
		// Already a member; re-ack rather than bouncing through leave, which
		// would destroy a solo client's room state.
		r.send(c.ID, protocol.New(protocol.TypeJoinRoom, protocol.JoinRoomAck{RoomCode: p.RoomCode, Success: true}))
		return
	}
	if c.RoomCode != "" {
		r.leaveRoom(c)
	}

	now := time.Now()
	room, created := r.rooms.Join(c.ID, p.RoomCode, now)
	c.RoomCode = room.Code

	logCtx := r.log.WithFields(logrus.Fields{
		"client_id": c.ID,
		"user_id":   c.UserID,
		"room_code": room.Code,
		"members":   len(room.Members),
	})
	if created {
		logCtx.Info("room created")
		r.notify(StatusEvent{Kind: RoomCreated, RoomCode: room.Code, ClientID: c.ID, At: now})
	} else {
		logCtx.Info("client joined room")
	}

	r.send(c.ID, protocol.New(protocol.TypeJoinRoom, protocol.JoinRoomAck{RoomCode: room.Code, Success: true}))
}

func (r *Relay) handleLeaveRoom(c *state.Client, _ protocol.Message) {
	if c.RoomCode == "" {
		r.sendError(c.ID, errNotInRoom)
		return
	}
	r.leaveRoom(c)
}

func (r *Relay) handleGameStateUpdate(c *state.Client, msg protocol.Message) {
	if c.RoomCode == "" {
		r.sendError(c.ID, errNotInRoom)
		return
	}
	patch := make(map[string]any)
	if err := msg.DecodePayload(&patch); err != nil {
		r.sendError(c.ID, errInvalidFormat)
		return
	}
	room, err := r.rooms.ApplyStateUpdate(c.RoomCode, patch, protocol.Now())
	if err != nil {
		r.sendError(c.ID, errRoomNotFound)
		return
	}
	r.log.WithFields(logrus.Fields{
		"client_id": c.ID,
		"room_code": room.Code,
		"version":   room.State.Version,
	}).Debug("state update applied")

	// Recipients get the full merged state, not the raw patch, so the
	// version they see always describes the whole blob.
	out := protocol.New(protocol.TypeGameStateUpdate, room.State)
	out.Sender = c.UserID
	out.RoomCode = room.Code
	r.broadcastRoom(room, out, c.ID)
}

// handleRelayVerbatim serves PLAYER_MOVE and TRANSACTION_UPDATE: the payload
// is not interpreted, just fanned out to the rest of the room.
func (r *Relay) handleRelayVerbatim(c *state.Client, msg protocol.Message) {
	if c.RoomCode == "" {
		r.sendError(c.ID, errNotInRoom)
		return
	}
	room, err := r.rooms.Get(c.RoomCode)
	if err != nil {
		r.sendError(c.ID, errRoomNotFound)
		return
	}
	out := protocol.Message{
		Type:      msg.Type,
		Payload:   msg.Payload,
		Timestamp: protocol.Now(),
		Sender:    c.UserID,
		RoomCode:  room.Code,
	}
	r.broadcastRoom(room, out, c.ID)
}

func (r *Relay) handleSyncRequest(c *state.Client, _ protocol.Message) {
	if c.RoomCode == "" {
		r.sendError(c.ID, errNotInRoom)
		return
	}
	room, err := r.rooms.Get(c.RoomCode)
	if err != nil {
		r.sendError(c.ID, errRoomNotFound)
		return
	}
	reply := protocol.New(protocol.TypeSyncResponse, protocol.SyncResponsePayload{GameState: room.State})
	reply.RoomCode = room.Code
	r.send(c.ID, reply)
}

func (r *Relay) handlePing(c *state.Client, msg protocol.Message) {
	r.send(c.ID, protocol.New(protocol.TypePong, protocol.PingPayload{Timestamp: msg.Timestamp}))
}

func (r *Relay) handlePong(_ *state.Client, _ protocol.Message) {
	// LastActivity was already refreshed in handleFrame; a PONG carries
	// nothing else.
}

func (r *Relay) handleChatMessage(c *state.Client, msg protocol.Message) {
	if c.RoomCode == "" {
		r.sendError(c.ID, errNotInRoom)
		return
	}
	var p protocol.ChatMessagePayload
	if err := msg.DecodePayload(&p); err != nil {
		r.sendError(c.ID, errInvalidFormat)
		return
	}
	if p.Content == "" {
		r.sendError(c.ID, errContentRequired)
		return
	}
	if p.Sender == "" {
		r.sendError(c.ID, errSenderRequired)
		return
	}
	room, err := r.rooms.Get(c.RoomCode)
	if err != nil {
		r.sendError(c.ID, errRoomNotFound)
		return
	}
	out := protocol.Message{
		Type:      protocol.TypeChatMessage,
		Payload:   msg.Payload,
		Timestamp: protocol.Now(),
		Sender:    p.Sender,
		RoomCode:  room.Code,
	}
	// Chat echoes back to the sender too.
	r.broadcastRoom(room, out, "")
}

func (r *Relay) handleChatPresence(c *state.Client, msg protocol.Message) {
	if c.RoomCode == "" {
		r.sendError(c.ID, errNotInRoom)
		return
	}
	var p protocol.ChatPresencePayload
	if err := msg.DecodePayload(&p); err != nil {
		r.sendError(c.ID, errInvalidFormat)
		return
	}
	if p.Username == "" {
		r.sendError(c.ID, errUsernameRequired)
		return
	}
	room, err := r.rooms.Get(c.RoomCode)
	if err != nil {
		r.sendError(c.ID, errRoomNotFound)
		return
	}
	out := protocol.Message{
		Type:      msg.Type,
		Payload:   msg.Payload,
		Timestamp: protocol.Now(),
		Sender:    p.Username,
		RoomCode:  room.Code,
	}
	r.broadcastRoom(room, out, "")
}
