// Command relayctl is a small operator client for the match relay.
//
// It speaks the relay's websocket protocol directly, which makes it useful
// for poking at a running relay without a game client:
//
//	relayctl join -room ABC123 -user alice     # join a room and stream traffic
//	relayctl chat -room ABC123 -user alice -m "hello"
//	relayctl ping                              # measure round-trip time
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
	"github.com/urfave/cli/v3"

	"github.com/spellclash/relay/relay/protocol"
)

func main() {
	cmd := &cli.Command{
		Name:  "relayctl",
		Usage: "operator client for the match relay",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "relay websocket URL",
				Value: "ws://localhost:8765/ws",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "join",
				Usage: "join a room and stream its traffic to stdout",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "room", Usage: "room code", Required: true},
					&cli.StringFlag{Name: "user", Usage: "user id to announce", Value: "relayctl"},
				},
				Action: runJoin,
			},
			{
				Name:  "chat",
				Usage: "send one chat message to a room",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "room", Usage: "room code", Required: true},
					&cli.StringFlag{Name: "user", Usage: "sender name", Value: "relayctl"},
					&cli.StringFlag{Name: "m", Usage: "message content", Required: true},
				},
				Action: runChat,
			},
			{
				Name:   "ping",
				Usage:  "measure round-trip time to the relay",
				Action: runPing,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "relayctl:", err)
		os.Exit(1)
	}
}

// dial connects and performs the CONNECT handshake.
func dial(addr, userID string) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	connect := protocol.New(protocol.TypeConnect, protocol.ConnectPayload{UserID: userID})
	if err := writeMessage(conn, connect); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func writeMessage(conn *websocket.Conn, msg protocol.Message) error {
	data, err := msg.Encode()
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// readMessage reads one frame and decodes the envelope. Frames the relay
// sends always carry a known type, so decode errors are reported as-is.
func readMessage(conn *websocket.Conn) (protocol.Message, error) {
	_, data, err := conn.ReadMessage()
	if err != nil {
		return protocol.Message{}, err
	}
	return protocol.Decode(data)
}

// awaitType reads frames until one of the wanted type arrives, answering
// liveness pings along the way.
func awaitType(conn *websocket.Conn, want protocol.MessageType, timeout time.Duration) (protocol.Message, error) {
	deadline := time.Now().Add(timeout)
	conn.SetReadDeadline(deadline)
	defer conn.SetReadDeadline(time.Time{})

	for {
		msg, err := readMessage(conn)
		if err != nil {
			return protocol.Message{}, err
		}
		switch msg.Type {
		case want:
			return msg, nil
		case protocol.TypePing:
			if err := writeMessage(conn, protocol.New(protocol.TypePong, nil)); err != nil {
				return protocol.Message{}, err
			}
		case protocol.TypeError:
			var p protocol.ErrorPayload
			if err := msg.DecodePayload(&p); err == nil {
				return protocol.Message{}, fmt.Errorf("relay error: %s", p.Message)
			}
			return protocol.Message{}, fmt.Errorf("relay error")
		}
	}
}

func joinRoom(conn *websocket.Conn, roomCode string) error {
	join := protocol.New(protocol.TypeJoinRoom, protocol.JoinRoomPayload{RoomCode: roomCode})
	if err := writeMessage(conn, join); err != nil {
		return err
	}
	if _, err := awaitType(conn, protocol.TypeJoinRoom, 5*time.Second); err != nil {
		return fmt.Errorf("join %s: %w", roomCode, err)
	}
	return nil
}

func runJoin(ctx context.Context, cmd *cli.Command) error {
	conn, err := dial(cmd.String("addr"), cmd.String("user"))
	if err != nil {
		return err
	}
	defer conn.Close()

	roomCode := cmd.String("room")
	if err := joinRoom(conn, roomCode); err != nil {
		return err
	}

	announce := protocol.New(protocol.TypeChatJoin, protocol.ChatPresencePayload{Username: cmd.String("user")})
	if err := writeMessage(conn, announce); err != nil {
		return err
	}

	fmt.Printf("joined %s, streaming (ctrl-c to leave)\n", roomCode)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	frames := make(chan protocol.Message)
	readErr := make(chan error, 1)
	go func() {
		for {
			msg, err := readMessage(conn)
			if err != nil {
				readErr <- err
				return
			}
			frames <- msg
		}
	}()

	for {
		select {
		case <-ctx.Done():
			writeMessage(conn, protocol.New(protocol.TypeLeaveRoom, nil))
			return nil
		case err := <-readErr:
			return fmt.Errorf("connection lost: %w", err)
		case msg := <-frames:
			if msg.Type == protocol.TypePing {
				writeMessage(conn, protocol.New(protocol.TypePong, nil))
				continue
			}
			at := time.UnixMilli(msg.Timestamp).Format("15:04:05.000")
			if msg.Sender != "" {
				fmt.Printf("[%s] %s from %s: %s\n", at, msg.Type, msg.Sender, msg.Payload)
			} else {
				fmt.Printf("[%s] %s: %s\n", at, msg.Type, msg.Payload)
			}
		}
	}
}

func runChat(ctx context.Context, cmd *cli.Command) error {
	user := cmd.String("user")
	conn, err := dial(cmd.String("addr"), user)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := joinRoom(conn, cmd.String("room")); err != nil {
		return err
	}

	chat := protocol.New(protocol.TypeChatMessage, protocol.ChatMessagePayload{
		Content: cmd.String("m"),
		Sender:  user,
	})
	if err := writeMessage(conn, chat); err != nil {
		return err
	}

	// Our own chat comes back on the broadcast, which confirms delivery.
	if _, err := awaitType(conn, protocol.TypeChatMessage, 5*time.Second); err != nil {
		return fmt.Errorf("chat not echoed: %w", err)
	}
	fmt.Println("sent")
	return nil
}

func runPing(ctx context.Context, cmd *cli.Command) error {
	conn, err := dial(cmd.String("addr"), "relayctl")
	if err != nil {
		return err
	}
	defer conn.Close()

	start := time.Now()
	ping := protocol.New(protocol.TypePing, protocol.PingPayload{Timestamp: start.UnixMilli()})
	if err := writeMessage(conn, ping); err != nil {
		return err
	}
	if _, err := awaitType(conn, protocol.TypePong, 5*time.Second); err != nil {
		return err
	}
	fmt.Printf("pong in %s\n", time.Since(start).Round(time.Microsecond))
	return nil
}
