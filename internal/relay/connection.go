package relay

import (
	"sync"

	"github.com/google/uuid"
)

// Connection binds one participant's stream to one room for the stream's
// lifetime. The boundary service must call Close on every exit path; Close is
// idempotent because cancellation and normal completion can race.
type Connection struct {
	hub         *Hub
	room        *Room
	participant uuid.UUID
	sink        Sink

	closeOnce sync.Once
}

// Participant returns the identity this connection is bound to.
func (c *Connection) Participant() uuid.UUID {
	return c.participant
}

// MatchID returns the match this connection belongs to.
func (c *Connection) MatchID() int64 {
	return c.room.id
}

// Close unregisters the connection from its room. If the connection was
// still current at teardown, the stream dropped unexpectedly (it was neither
// replaced by a reconnect nor ended by an explicit disconnect), so the hub
// arms the reconnection grace window for the participant.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		if !c.room.unregister(c.participant, c) {
			return
		}
		if err := c.hub.SignalReconnecting(c.room.id, c.participant); err != nil {
			// The room can disappear between unregister and signal; nothing
			// to arm in that case.
			c.hub.logger.Debug("reconnection window not armed",
				"match", c.room.id,
				"participant", c.participant,
				"error", err,
			)
		}
	})
	return nil
}
