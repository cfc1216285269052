// Package relay implements the Room Hub component: the registry of active
// match rooms and the connection lifecycle within them.
//
// The hub:
//   - Creates rooms lazily on first Connect, loading the roster exactly once
//     even under concurrent first access
//   - Fans broadcasts out to every live connection of a room, isolating
//     per-connection delivery failures
//   - Tracks dropped participants through a reconnection grace window
//   - Periodically sweeps finished rooms and expired reconnection records
//
// Payloads are opaque to this package; the wire encoding belongs to the
// transport boundary.
package relay
