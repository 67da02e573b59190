// Package mcp exposes relay inspection tools over the Model Context
// Protocol.
//
// It is a thin client: every tool proxies a GET against the relay's REST API
// and formats the JSON for a text-oriented consumer. Nothing here can mutate
// relay state.
//
// Tools:
//   - list_rooms: live rooms with member counts and state versions
//   - get_room: one room's members and full game state
//   - list_clients: live connections with identity and activity
//   - relay_stats: lifetime counters
//
// The MCP server is served two ways by main: mounted on POST /mcp next to
// the REST API, and over stdio in stdio-mcp mode.
package mcp
