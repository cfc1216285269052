package transport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/matchforge/relay/internal/config"
	"github.com/matchforge/relay/internal/relay"
)

// Handler upgrades match streams and drives their read loops.
type Handler struct {
	hub      *relay.Hub
	members  Membership
	identity IdentityProvider
	cfg      config.TransportConfig
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates the /ws handler.
func NewHandler(hub *relay.Hub, members Membership, identity IdentityProvider, cfg config.TransportConfig, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		hub:      hub,
		members:  members,
		identity: identity,
		cfg:      cfg,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// ServeHTTP validates the caller and, once upgraded, relays frames between
// the stream and the hub until the stream ends.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "websocket endpoint only accepts GET", http.StatusMethodNotAllowed)
		return
	}

	matchID, err := strconv.ParseInt(r.URL.Query().Get("match"), 10, 64)
	if err != nil {
		http.Error(w, "missing or malformed match id", http.StatusBadRequest)
		return
	}

	participant, err := h.identity.ParticipantID(r)
	if err != nil {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	// Membership is validated entirely out here; the core assumes a
	// validated caller.
	member, err := h.members.IsMember(r.Context(), matchID, participant)
	if err != nil {
		h.logger.Error("membership check failed",
			"match", matchID,
			"participant", participant,
			"error", err,
		)
		http.Error(w, "membership check failed", http.StatusInternalServerError)
		return
	}
	if !member {
		http.Error(w, "not a participant of this match", http.StatusForbidden)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	h.serveStream(r.Context(), conn, matchID, participant)
}

// serveStream owns the connection after the upgrade.
func (h *Handler) serveStream(ctx context.Context, conn *websocket.Conn, matchID int64, participant uuid.UUID) {
	defer conn.Close()

	sink := newSink(conn, h.cfg, h.logger.With("match", matchID, "participant", participant))
	go sink.writePump()
	defer sink.close()

	handle, err := h.hub.Connect(ctx, matchID, participant, sink)
	if err != nil {
		h.logger.Error("connect failed",
			"match", matchID,
			"participant", participant,
			"error", err,
		)
		return
	}
	// Runs on every exit path; an unexpected drop arms the grace window.
	defer handle.Close()

	conn.SetReadLimit(h.cfg.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
	})

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				// Clean leave: permanent disconnect, no grace window.
				if err := h.hub.SignalDisconnected(matchID, participant); err != nil &&
					!errors.Is(err, relay.ErrUnknownRoom) {
					h.logger.Warn("disconnect signal failed", "match", matchID, "error", err)
				}
			}
			return
		}

		if err := h.hub.Broadcast(matchID, participant, time.Now(), payload); err != nil {
			// The room vanished mid-stream; nothing left to relay to.
			h.logger.Warn("broadcast failed, ending stream",
				"match", matchID,
				"participant", participant,
				"error", err,
			)
			return
		}
	}
}
