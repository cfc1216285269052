// Package transport implements the boundary service in front of the relay
// core: websocket upgrade, caller identity, membership validation, and the
// per-stream read loop that forwards frames into the hub.
//
// The relay core never sees wire encoding. This package owns the JSON
// envelope written to clients and treats inbound frames as opaque payloads.
package transport
