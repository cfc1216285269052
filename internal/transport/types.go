package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/matchforge/relay/internal/relay"
)

// Errors
var (
	ErrStreamClosed = errors.New("stream closed")
	ErrNoIdentity   = errors.New("no participant identity on request")
)

// ParticipantHeader is where HeaderIdentity reads the caller's id from.
const ParticipantHeader = "X-Participant-Id"

// Envelope is the JSON frame written to clients. Payload is base64-encoded
// by encoding/json and set only for data frames.
type Envelope struct {
	Type        string    `json:"type"`
	MatchID     int64     `json:"match_id"`
	Participant uuid.UUID `json:"participant"`
	Timestamp   time.Time `json:"ts"`
	Payload     []byte    `json:"payload,omitempty"`
}

func envelopeFrom(msg relay.Message) Envelope {
	return Envelope{
		Type:        msg.Kind.String(),
		MatchID:     msg.MatchID,
		Participant: msg.Participant,
		Timestamp:   msg.Timestamp,
		Payload:     msg.Payload,
	}
}

// IdentityProvider resolves the authenticated caller's participant identity.
// Authentication itself happens upstream (gateway or middleware); the relay
// only needs the resulting identity.
type IdentityProvider interface {
	ParticipantID(r *http.Request) (uuid.UUID, error)
}

// HeaderIdentity trusts a UUID carried in a request header. Deployments sit
// behind a gateway that strips and re-issues this header after verifying the
// caller's token.
type HeaderIdentity struct {
	Header string
}

func (h HeaderIdentity) ParticipantID(r *http.Request) (uuid.UUID, error) {
	header := h.Header
	if header == "" {
		header = ParticipantHeader
	}

	raw := r.Header.Get(header)
	if raw == "" {
		return uuid.Nil, ErrNoIdentity
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse participant id: %w", err)
	}
	return id, nil
}

// Membership answers whether a player belongs to a match. Satisfied by
// roster.Store.
type Membership interface {
	IsMember(ctx context.Context, matchID int64, playerID uuid.UUID) (bool, error)
}
