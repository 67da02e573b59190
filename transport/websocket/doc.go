// Package websocket is the relay's wire transport.
//
// Each accepted connection becomes a Peer: a gorilla/websocket conn wrapped
// with a buffered send queue. Each connection runs two goroutines: readPump
// posts inbound frames and the close event into the relay's event loop, and
// writePump drains the send queue while keeping the connection alive with
// protocol-level pings.
//
// The Peer is the relay's Sink for that client: Send never blocks. A full
// queue or a closed peer is reported as an error, which the relay treats as
// a failed best-effort write.
//
// Connection lifecycle:
//
//  1. HTTP request upgraded
//  2. Peer attached to the relay, which assigns the client id
//  3. Frames flow through the relay's router
//  4. Read error, close, or relay-side Close tears the connection down
//
// Transport-level ping/pong (websocket control frames) is independent of the
// relay's JSON PING/PONG liveness messages: the former keeps the TCP
// connection from idling out, the latter drives eviction of silently dead
// clients.
package websocket
