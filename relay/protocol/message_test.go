package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	t.Run("ValidFrame", func(t *testing.T) {
		raw := []byte(`{"type":"JOIN_ROOM","payload":{"roomCode":"ABC123"},"timestamp":1700000000000}`)

		msg, err := Decode(raw)
		require.NoError(t, err)
		assert.Equal(t, TypeJoinRoom, msg.Type)
		assert.Equal(t, int64(1700000000000), msg.Timestamp)

		var p JoinRoomPayload
		require.NoError(t, msg.DecodePayload(&p))
		assert.Equal(t, "ABC123", p.RoomCode)
	})

	t.Run("MalformedJSON", func(t *testing.T) {
		_, err := Decode([]byte(`{not json`))
		assert.ErrorIs(t, err, ErrInvalidMessage)
	})

	t.Run("NotAnObject", func(t *testing.T) {
		_, err := Decode([]byte(`"JOIN_ROOM"`))
		assert.ErrorIs(t, err, ErrInvalidMessage)
	})

	t.Run("MissingType", func(t *testing.T) {
		_, err := Decode([]byte(`{"payload":{},"timestamp":123}`))
		assert.ErrorIs(t, err, ErrInvalidMessage)
	})

	t.Run("UnknownType", func(t *testing.T) {
		msg, err := Decode([]byte(`{"type":"TELEPORT","timestamp":123}`))
		assert.ErrorIs(t, err, ErrUnknownType)
		// The envelope itself survives so callers can log the offender.
		assert.Equal(t, MessageType("TELEPORT"), msg.Type)
	})

	t.Run("OptionalFieldsSurvive", func(t *testing.T) {
		raw := []byte(`{"type":"CHAT_MESSAGE","payload":{"content":"hi","sender":"alice"},"timestamp":5,"sender":"alice","roomCode":"XYZ"}`)

		msg, err := Decode(raw)
		require.NoError(t, err)
		assert.Equal(t, "alice", msg.Sender)
		assert.Equal(t, "XYZ", msg.RoomCode)
	})
}

func TestNew(t *testing.T) {
	t.Run("StampsCurrentTime", func(t *testing.T) {
		before := time.Now().UnixMilli()
		msg := New(TypePing, PingPayload{Timestamp: 42})
		after := time.Now().UnixMilli()

		assert.Equal(t, TypePing, msg.Type)
		assert.GreaterOrEqual(t, msg.Timestamp, before)
		assert.LessOrEqual(t, msg.Timestamp, after)
	})

	t.Run("NilPayloadOmitted", func(t *testing.T) {
		msg := New(TypeSyncRequest, nil)
		data, err := msg.Encode()
		require.NoError(t, err)
		assert.NotContains(t, string(data), "payload")
	})

	t.Run("RoundTrip", func(t *testing.T) {
		msg := New(TypeError, ErrorPayload{Message: "Not in a room"})
		data, err := msg.Encode()
		require.NoError(t, err)

		got, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, msg.Type, got.Type)

		var p ErrorPayload
		require.NoError(t, got.DecodePayload(&p))
		assert.Equal(t, "Not in a room", p.Message)
	})
}

func TestDecodePayload(t *testing.T) {
	t.Run("EmptyPayloadIsZeroValue", func(t *testing.T) {
		msg := Message{Type: TypeLeaveRoom}
		var p JoinRoomPayload
		require.NoError(t, msg.DecodePayload(&p))
		assert.Empty(t, p.RoomCode)
	})

	t.Run("WrongShape", func(t *testing.T) {
		msg := Message{Type: TypeJoinRoom, Payload: []byte(`"just a string"`)}
		var p JoinRoomPayload
		assert.ErrorIs(t, msg.DecodePayload(&p), ErrInvalidMessage)
	})
}

func TestKnown(t *testing.T) {
	for _, mt := range []MessageType{
		TypeConnect, TypeDisconnect, TypeJoinRoom, TypeLeaveRoom,
		TypeGameStateUpdate, TypePlayerMove, TypeSyncRequest, TypeSyncResponse,
		TypeTransactionUpdate, TypeError, TypePing, TypePong,
		TypeChatMessage, TypeChatJoin, TypeChatLeave,
	} {
		assert.True(t, mt.Known(), "%s should be known", mt)
	}
	assert.False(t, MessageType("NOPE").Known())
	assert.False(t, MessageType("").Known())
}
