package protocol

import (
	"encoding/json"
	"errors"
	"time"
)

// MessageType identifies what a frame means and which payload shape it carries.
type MessageType string

const (
	TypeConnect           MessageType = "CONNECT"
	TypeDisconnect        MessageType = "DISCONNECT"
	TypeJoinRoom          MessageType = "JOIN_ROOM"
	TypeLeaveRoom         MessageType = "LEAVE_ROOM"
	TypeGameStateUpdate   MessageType = "GAME_STATE_UPDATE"
	TypePlayerMove        MessageType = "PLAYER_MOVE"
	TypeSyncRequest       MessageType = "SYNC_REQUEST"
	TypeSyncResponse      MessageType = "SYNC_RESPONSE"
	TypeTransactionUpdate MessageType = "TRANSACTION_UPDATE"
	TypeError             MessageType = "ERROR"
	TypePing              MessageType = "PING"
	TypePong              MessageType = "PONG"
	TypeChatMessage       MessageType = "CHAT_MESSAGE"
	TypeChatJoin          MessageType = "CHAT_JOIN"
	TypeChatLeave         MessageType = "CHAT_LEAVE"
)

var knownTypes = map[MessageType]bool{
	TypeConnect:           true,
	TypeDisconnect:        true,
	TypeJoinRoom:          true,
	TypeLeaveRoom:         true,
	TypeGameStateUpdate:   true,
	TypePlayerMove:        true,
	TypeSyncRequest:       true,
	TypeSyncResponse:      true,
	TypeTransactionUpdate: true,
	TypeError:             true,
	TypePing:              true,
	TypePong:              true,
	TypeChatMessage:       true,
	TypeChatJoin:          true,
	TypeChatLeave:         true,
}

// Known reports whether t is part of the wire protocol.
func (t MessageType) Known() bool {
	return knownTypes[t]
}

var (
	// ErrInvalidMessage covers frames that do not parse as the envelope.
	ErrInvalidMessage = errors.New("invalid message format")

	// ErrUnknownType covers well-formed envelopes with a type the relay
	// does not speak.
	ErrUnknownType = errors.New("unknown message type")
)

// Message is the wire envelope shared by every frame in both directions.
type Message struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
	Sender    string          `json:"sender,omitempty"`
	RoomCode  string          `json:"roomCode,omitempty"`
}

// Now returns the current time in the protocol's timestamp unit
// (milliseconds since the Unix epoch).
func Now() int64 {
	return time.Now().UnixMilli()
}

// New builds an envelope of the given type, marshaling payload into place and
// stamping the current time. A nil payload leaves the payload field empty.
// Payload values are producer-owned structs, so a marshal failure is a
// programming error and panics rather than returning.
func New(t MessageType, payload any) Message {
	msg := Message{
		Type:      t,
		Timestamp: Now(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			panic("protocol: unmarshalable payload: " + err.Error())
		}
		msg.Payload = data
	}
	return msg
}

// Decode parses a raw frame into a Message. It returns ErrInvalidMessage for
// anything that is not the JSON envelope (including a missing type field) and
// ErrUnknownType for envelopes whose type is not part of the protocol.
func Decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, ErrInvalidMessage
	}
	if msg.Type == "" {
		return Message{}, ErrInvalidMessage
	}
	if !msg.Type.Known() {
		return msg, ErrUnknownType
	}
	return msg, nil
}

// Encode serializes the envelope for the wire.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// DecodePayload unmarshals the payload into v. An absent payload decodes as
// the zero value.
func (m Message) DecodePayload(v any) error {
	if len(m.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return ErrInvalidMessage
	}
	return nil
}
