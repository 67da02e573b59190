package protocol

// ConnectPayload identifies the caller. Both fields are optional: an empty
// userId keeps the relay-assigned "anonymous" label, and a non-empty
// sessionId claims a previous session token.
type ConnectPayload struct {
	UserID    string `json:"userId,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

// ConnectAck is the reply to CONNECT. SessionID is either freshly generated
// or an echo of the token the caller claimed; no prior state is replayed
// either way.
type ConnectAck struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
}

// JoinRoomPayload names the room to join.
type JoinRoomPayload struct {
	RoomCode string `json:"roomCode"`
}

// JoinRoomAck is the reply to a successful JOIN_ROOM.
type JoinRoomAck struct {
	RoomCode string `json:"roomCode"`
	Success  bool   `json:"success"`
}

// LeaveNotice is broadcast to the remaining members when a client leaves or
// is evicted from a room.
type LeaveNotice struct {
	UserID string `json:"userId"`
}

// SyncResponsePayload carries the room's authoritative state blob.
type SyncResponsePayload struct {
	GameState any `json:"gameState"`
}

// ErrorPayload names what went wrong. Errors never close the connection.
type ErrorPayload struct {
	Message string `json:"message"`
}

// PingPayload carries the sender's clock; PONG echoes it back unchanged.
type PingPayload struct {
	Timestamp int64 `json:"timestamp"`
}

// ChatMessagePayload is a user-visible chat line.
type ChatMessagePayload struct {
	Content string `json:"content"`
	Sender  string `json:"sender"`
}

// ChatPresencePayload announces a user entering or leaving the room chat
// (CHAT_JOIN / CHAT_LEAVE).
type ChatPresencePayload struct {
	Username string `json:"username"`
}
