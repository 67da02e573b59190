// Package service implements the relay core: the event loop that owns the
// client and room registries, the message router, the broadcast engine, and
// the liveness monitor.
//
// Concurrency model:
//
// One goroutine (Run) drains a single event channel. Socket events posted by
// the transport (attach, inbound frame, close) and liveness ticks are
// processed to completion in arrival order, so the registries need no locks
// and no handler ever observes half-applied state. Outbound writes go to
// per-peer Sink implementations that must not block (the websocket transport
// uses a buffered channel drained by a writer goroutine), so a slow consumer
// only affects its own connection.
//
// Message routing:
//
// Inbound frames are decoded into the protocol envelope and dispatched
// through a table keyed by message type. Every handler failure turns into an
// ERROR reply to the sender; nothing a client sends can take the loop down.
//
// Liveness:
//
// A ticker owned by Run sweeps all clients each period: clients idle past
// the timeout are evicted through the normal leave path, silently, since an
// unreachable peer gets nothing further. Everyone else is sent a PING whose
// PONG refreshes the activity clock through ordinary message handling.
//
// Observation:
//
// Snapshot posts a query into the loop and returns a consistent copy of
// rooms, clients, and counters; the HTTP and MCP surfaces are built on it.
// Subscribe registers a removable listener for connection/room lifecycle
// events.
package service
