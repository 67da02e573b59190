package websocket

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spellclash/relay/relay/protocol"
	"github.com/spellclash/relay/relay/service"
)

func startRelay(t *testing.T) *service.Relay {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	relay := service.New(service.Options{Logger: logger})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go relay.Run(ctx)
	return relay
}

func dialTest(t *testing.T, relay *service.Relay) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(NewHandler(relay, nil))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err, "failed to connect to websocket")
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) protocol.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err, "failed to read websocket message")
	msg, err := protocol.Decode(data)
	require.NoError(t, err)
	return msg
}

func writeFrame(t *testing.T, conn *websocket.Conn, msg protocol.Message) {
	t.Helper()
	data, err := msg.Encode()
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func TestWebSocketUpgrade(t *testing.T) {
	relay := startRelay(t)
	dialTest(t, relay)

	// The connection shows up in the snapshot once attached.
	require.Eventually(t, func() bool {
		return len(relay.Snapshot().Clients) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestWebSocketRoundTrip(t *testing.T) {
	relay := startRelay(t)
	conn := dialTest(t, relay)

	writeFrame(t, conn, protocol.New(protocol.TypeConnect,
		protocol.ConnectPayload{UserID: "alice"}))

	ack := readFrame(t, conn)
	assert.Equal(t, protocol.TypeConnect, ack.Type)
	var p protocol.ConnectAck
	require.NoError(t, ack.DecodePayload(&p))
	assert.Equal(t, "alice", p.UserID)
	assert.NotEmpty(t, p.SessionID)

	writeFrame(t, conn, protocol.New(protocol.TypeJoinRoom,
		protocol.JoinRoomPayload{RoomCode: "WS1"}))

	join := readFrame(t, conn)
	assert.Equal(t, protocol.TypeJoinRoom, join.Type)
	var jp protocol.JoinRoomAck
	require.NoError(t, join.DecodePayload(&jp))
	assert.True(t, jp.Success)
	assert.Equal(t, "WS1", jp.RoomCode)
}

func TestWebSocketFanOut(t *testing.T) {
	relay := startRelay(t)
	alice := dialTest(t, relay)
	bob := dialTest(t, relay)

	writeFrame(t, alice, protocol.New(protocol.TypeConnect, protocol.ConnectPayload{UserID: "alice"}))
	readFrame(t, alice)
	writeFrame(t, alice, protocol.New(protocol.TypeJoinRoom, protocol.JoinRoomPayload{RoomCode: "FAN"}))
	readFrame(t, alice)

	writeFrame(t, bob, protocol.New(protocol.TypeJoinRoom, protocol.JoinRoomPayload{RoomCode: "FAN"}))
	readFrame(t, bob)

	writeFrame(t, alice, protocol.New(protocol.TypeGameStateUpdate,
		map[string]any{"playerHealth": 21}))

	got := readFrame(t, bob)
	assert.Equal(t, protocol.TypeGameStateUpdate, got.Type)
	assert.Equal(t, "alice", got.Sender)
	assert.Equal(t, "FAN", got.RoomCode)

	var blob map[string]any
	require.NoError(t, got.DecodePayload(&blob))
	assert.Equal(t, float64(1), blob["version"])
	assert.Equal(t, float64(21), blob["playerHealth"])
}

func TestWebSocketCloseRemovesClient(t *testing.T) {
	relay := startRelay(t)
	conn := dialTest(t, relay)

	require.Eventually(t, func() bool {
		return len(relay.Snapshot().Clients) == 1
	}, time.Second, 10*time.Millisecond)

	conn.Close()

	require.Eventually(t, func() bool {
		snap := relay.Snapshot()
		return len(snap.Clients) == 0 && snap.Stats.Disconnections == 1
	}, time.Second, 10*time.Millisecond)
}

func TestPeerSend(t *testing.T) {
	t.Run("ClosedPeer", func(t *testing.T) {
		p := newPeer(nil, logrus.NewEntry(logrus.StandardLogger()))
		p.Close()
		assert.ErrorIs(t, p.Send([]byte("x")), ErrPeerClosed)
	})

	t.Run("CloseIsIdempotent", func(t *testing.T) {
		p := newPeer(nil, logrus.NewEntry(logrus.StandardLogger()))
		require.NoError(t, p.Close())
		require.NoError(t, p.Close())
	})

	t.Run("QueueFull", func(t *testing.T) {
		p := newPeer(nil, logrus.NewEntry(logrus.StandardLogger()))
		for i := 0; i < sendQueueSize; i++ {
			require.NoError(t, p.Send([]byte("x")))
		}
		assert.ErrorIs(t, p.Send([]byte("x")), ErrSendQueueFull)
	})
}
