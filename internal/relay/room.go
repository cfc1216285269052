package relay

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Room holds the live state of one match: the immutable roster, the set of
// live connections, and the participants currently in a reconnection grace
// window. Rooms are created by the hub and torn down only by its sweep.
type Room struct {
	id     int64
	roster map[uuid.UUID]int64 // participant -> external serial id, immutable after creation
	logger *slog.Logger

	mu           sync.Mutex
	conns        map[uuid.UUID]*Connection
	reconnecting map[uuid.UUID]time.Time
	closed       bool
}

func newRoom(id int64, roster map[uuid.UUID]int64, logger *slog.Logger) *Room {
	return &Room{
		id:           id,
		roster:       roster,
		logger:       logger,
		conns:        make(map[uuid.UUID]*Connection),
		reconnecting: make(map[uuid.UUID]time.Time),
	}
}

// ID returns the externally assigned match id.
func (r *Room) ID() int64 {
	return r.id
}

// SerialID returns the external serial id of a roster participant.
func (r *Room) SerialID(participant uuid.UUID) (int64, bool) {
	sid, ok := r.roster[participant]
	return sid, ok
}

// RegisterConnection installs conn as the current connection for participant,
// replacing any prior one and cancelling a pending reconnection. It fails
// with ErrRoomClosed if the room was already evicted.
func (r *Room) RegisterConnection(participant uuid.UUID, conn *Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRoomClosed
	}

	delete(r.reconnecting, participant)
	r.conns[participant] = conn
	return nil
}

// BroadcastMessage delivers msg to every live connection's sink, including
// the sender's own. A failed send is logged and never affects delivery to the
// other connections.
func (r *Room) BroadcastMessage(msg Message) {
	for _, conn := range r.snapshot() {
		if err := conn.sink.Send(msg); err != nil {
			r.logger.Warn("dropping undeliverable message",
				"match", r.id,
				"participant", conn.participant,
				"kind", msg.Kind.String(),
				"error", err,
			)
		}
	}
}

// SendReconnecting notifies all other live connections that participant
// entered its grace window.
func (r *Room) SendReconnecting(participant uuid.UUID) {
	msg := Message{
		Kind:        KindReconnecting,
		MatchID:     r.id,
		Participant: participant,
		Timestamp:   time.Now(),
	}

	for _, conn := range r.snapshot() {
		if conn.participant == participant {
			continue
		}
		if err := conn.sink.Send(msg); err != nil {
			r.logger.Warn("dropping reconnecting notice",
				"match", r.id,
				"participant", conn.participant,
				"error", err,
			)
		}
	}
}

// SendDisconnected notifies the remaining live connections that participant
// permanently left, removing their live connection and any pending
// reconnection record.
func (r *Room) SendDisconnected(participant uuid.UUID) {
	r.mu.Lock()
	delete(r.reconnecting, participant)
	delete(r.conns, participant)
	targets := make([]*Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		targets = append(targets, conn)
	}
	r.mu.Unlock()

	msg := Message{
		Kind:        KindDisconnected,
		MatchID:     r.id,
		Participant: participant,
		Timestamp:   time.Now(),
	}

	for _, conn := range targets {
		if err := conn.sink.Send(msg); err != nil {
			r.logger.Warn("dropping disconnected notice",
				"match", r.id,
				"participant", conn.participant,
				"error", err,
			)
		}
	}
}

// IsFinished reports whether no participant has a live connection and none is
// within its grace window.
func (r *Room) IsFinished() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed || (len(r.conns) == 0 && len(r.reconnecting) == 0)
}

// unregister removes conn if it is still the participant's current
// connection and reports whether it was. A connection replaced by a newer one
// or already removed by SendDisconnected is not current anymore.
func (r *Room) unregister(participant uuid.UUID, conn *Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.conns[participant]
	if !ok || current != conn {
		return false
	}
	delete(r.conns, participant)
	return true
}

// markReconnecting arms the grace-window entry for participant unless they
// already reconnected.
func (r *Room) markReconnecting(participant uuid.UUID, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	if _, live := r.conns[participant]; live {
		return
	}
	r.reconnecting[participant] = at
}

// stillReconnecting reports whether participant is still within an armed
// grace window.
func (r *Room) stillReconnecting(participant uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.reconnecting[participant]
	return ok
}

// closeIfFinished atomically re-checks the finished condition and marks the
// room closed. The sweep calls this under the registry write lock so a
// concurrent RegisterConnection either lands before the check (aborting the
// eviction) or observes the closed flag and fails.
func (r *Room) closeIfFinished() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.conns) != 0 || len(r.reconnecting) != 0 {
		return false
	}
	r.closed = true
	return true
}

// snapshot returns the current live connections without holding the lock
// during sink sends.
func (r *Room) snapshot() []*Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns := make([]*Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	return conns
}

// connectionCount is used for hub stats.
func (r *Room) connectionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}
