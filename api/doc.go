// Package api provides the relay's HTTP surface.
//
// Endpoints:
//
// WebSocket:
//   - GET /ws - upgrade to the relay protocol
//
// Inspection (read-only, served from loop snapshots):
//   - GET /healthz - process liveness
//   - GET /api/rooms - list live rooms
//   - GET /api/rooms/{code} - one room with its game state
//   - GET /api/clients - list live clients
//   - GET /api/stats - lifetime counters
//
// The inspection endpoints never mutate relay state; the websocket endpoint
// is the only writable surface. Errors are returned as JSON:
//
//	{
//	  "error": "error message"
//	}
package api
