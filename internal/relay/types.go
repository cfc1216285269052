package relay

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Errors
var (
	// ErrUnknownRoom reports an operation against a match id with no active
	// room. Broadcasting into a room that was never connected-to is a
	// consistency error on the caller's side, not a recoverable condition.
	ErrUnknownRoom = errors.New("no such room")

	// ErrRoomClosed reports a registration attempt on a room already evicted
	// by the sweep. A removed room cannot be revived.
	ErrRoomClosed = errors.New("room closed")
)

// Kind discriminates the message envelopes delivered to sinks.
type Kind int

const (
	// KindData carries an opaque payload relayed between participants.
	KindData Kind = iota
	// KindReconnecting signals that a participant entered its grace window.
	KindReconnecting
	// KindDisconnected signals that a participant permanently left.
	KindDisconnected
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindReconnecting:
		return "reconnecting"
	case KindDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// Message is the envelope delivered to connection sinks. Payload is an opaque
// byte sequence, set only for KindData.
type Message struct {
	Kind    Kind
	MatchID int64

	// Participant is the sender for data messages and the subject of the
	// presence change for reconnecting/disconnected notices.
	Participant uuid.UUID

	Timestamp time.Time
	Payload   []byte
}

// Sink is the ordered outbound destination of one connection. Send must not
// block indefinitely; a failed send is isolated to that connection.
type Sink interface {
	Send(msg Message) error
}

// RosterSource loads the fixed participant roster for a match: participant id
// to external serial id. An unknown match must be reported with an error
// wrapping ErrUnknownRoom.
type RosterSource interface {
	MatchRoster(ctx context.Context, matchID int64) (map[uuid.UUID]int64, error)
}

// HubConfig configures room lifecycle timing.
type HubConfig struct {
	// GraceWindow is how long a dropped participant may take to reconnect
	// before a forced disconnect notice is sent.
	GraceWindow time.Duration

	// SweepInterval is the period of the orphan/reconnection sweep.
	SweepInterval time.Duration
}

// DefaultHubConfig returns production timing.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		GraceWindow:   30 * time.Second,
		SweepInterval: 1 * time.Second,
	}
}

// HubStats provides a point-in-time view of hub state.
type HubStats struct {
	Rooms        int
	Connections  int
	Reconnecting int
}

// reconnectRecord tracks one participant inside its grace window.
type reconnectRecord struct {
	matchID     int64
	participant uuid.UUID
	since       time.Time
}
