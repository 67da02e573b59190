// Package state owns the relay's two registries: live client connections and
// active rooms with their authoritative game state.
//
// The registries are plain maps with no internal locking. All mutation is
// funneled through the relay's single event loop (see relay/service), which
// is the only goroutine that touches them; exposing them lock-free keeps the
// invariants enforceable in one place instead of smearing them across
// critical sections.
//
// Invariants maintained here:
//   - a room exists in the registry if and only if its member set is non-empty
//   - a game state's version increases by exactly 1 per accepted update and
//     never decreases
//   - clients are owned by the ClientRegistry; rooms hold member ids only
package state
