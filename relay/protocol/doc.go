// Package protocol defines the wire format spoken between game clients and
// the relay.
//
// Every frame is a JSON-encoded Message envelope:
//
//	{
//	  "type": "JOIN_ROOM",
//	  "payload": {"roomCode": "ABCD"},
//	  "timestamp": 1756080000000,
//	  "sender": "alice",
//	  "roomCode": "ABCD"
//	}
//
// The type field selects the payload shape; payloads the relay never
// interprets (PLAYER_MOVE, TRANSACTION_UPDATE) stay raw JSON and are relayed
// verbatim. Timestamps are milliseconds since the Unix epoch.
//
// Decode rejects frames that are not parseable per this envelope or that
// carry an unknown type; callers reply with an ERROR frame and keep the
// connection open.
package protocol
