package relay

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/matchforge/relay/internal/scheduler"
)

// Hub is the process-wide registry of active rooms keyed by match id.
type Hub struct {
	cfg    HubConfig
	roster RosterSource
	pool   *scheduler.Pool
	logger *slog.Logger

	mu    sync.RWMutex
	rooms map[int64]*Room

	// Roster loads are deduplicated per match id so concurrent first-time
	// Connect calls install exactly one room without holding the registry
	// lock across roster I/O.
	creating singleflight.Group

	recMu   sync.Mutex
	records []reconnectRecord

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHub creates a hub. pool may be nil, in which case presence fan-out and
// forced disconnects run inline instead of on the scheduler.
func NewHub(cfg HubConfig, roster RosterSource, pool *scheduler.Pool, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.GraceWindow == 0 {
		cfg.GraceWindow = DefaultHubConfig().GraceWindow
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = DefaultHubConfig().SweepInterval
	}

	return &Hub{
		cfg:    cfg,
		roster: roster,
		pool:   pool,
		logger: logger,
		rooms:  make(map[int64]*Room),
	}
}

// Start launches the background sweep.
func (h *Hub) Start(ctx context.Context) error {
	h.ctx, h.cancel = context.WithCancel(ctx)

	h.wg.Add(1)
	go h.sweepLoop()

	h.logger.Info("room hub started",
		"grace_window", h.cfg.GraceWindow,
		"sweep_interval", h.cfg.SweepInterval,
	)
	return nil
}

// Stop shuts the sweep down, waiting until ctx expires at most.
func (h *Hub) Stop(ctx context.Context) error {
	if h.cancel != nil {
		h.cancel()
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info("room hub stopped")
		return nil
	case <-ctx.Done():
		h.logger.Warn("room hub stop timed out")
		return ctx.Err()
	}
}

// Connect returns a registered connection for participant in matchID,
// creating the room on first access by loading its roster. The returned
// connection must be closed on every exit path of the stream.
func (h *Hub) Connect(ctx context.Context, matchID int64, participant uuid.UUID, sink Sink) (*Connection, error) {
	// One retry: a lookup can race with the sweep evicting a room that just
	// finished, in which case the next attempt creates a fresh room.
	for attempt := 0; attempt < 2; attempt++ {
		room, err := h.getOrCreateRoom(ctx, matchID)
		if err != nil {
			return nil, err
		}

		conn := &Connection{
			hub:         h,
			room:        room,
			participant: participant,
			sink:        sink,
		}
		if err := room.RegisterConnection(participant, conn); err != nil {
			continue
		}

		h.dropRecords(matchID, participant)
		h.logger.Debug("connection registered",
			"match", matchID,
			"participant", participant,
		)
		return conn, nil
	}

	return nil, fmt.Errorf("connect to match %d: %w", matchID, ErrRoomClosed)
}

// Broadcast delivers payload to every live connection of the room, the
// sender's own included. The sender identity and timestamp travel in the
// envelope for downstream ordering and logging.
func (h *Hub) Broadcast(matchID int64, sender uuid.UUID, timestamp time.Time, payload []byte) error {
	room, err := h.room(matchID)
	if err != nil {
		return err
	}

	room.BroadcastMessage(Message{
		Kind:        KindData,
		MatchID:     matchID,
		Participant: sender,
		Timestamp:   timestamp,
		Payload:     payload,
	})
	return nil
}

// SignalReconnecting arms the grace window for participant and notifies the
// other live connections of the room. The notification fan-out runs on the
// scheduler so stream teardown does not wait on slow sinks.
func (h *Hub) SignalReconnecting(matchID int64, participant uuid.UUID) error {
	room, err := h.room(matchID)
	if err != nil {
		return err
	}

	room.markReconnecting(participant, time.Now())

	h.recMu.Lock()
	h.records = append(h.records, reconnectRecord{
		matchID:     matchID,
		participant: participant,
		since:       time.Now(),
	})
	h.recMu.Unlock()

	h.submit(scheduler.Normal, func() error {
		room.SendReconnecting(participant)
		return nil
	})

	h.logger.Info("participant reconnecting",
		"match", matchID,
		"participant", participant,
	)
	return nil
}

// SignalDisconnected notifies the room that participant permanently left and
// discards their reconnection record.
func (h *Hub) SignalDisconnected(matchID int64, participant uuid.UUID) error {
	room, err := h.room(matchID)
	if err != nil {
		return err
	}

	h.dropRecords(matchID, participant)
	room.SendDisconnected(participant)

	h.logger.Info("participant disconnected",
		"match", matchID,
		"participant", participant,
	)
	return nil
}

// Stats returns a point-in-time view of the registry.
func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	rooms := make([]*Room, 0, len(h.rooms))
	for _, room := range h.rooms {
		rooms = append(rooms, room)
	}
	h.mu.RUnlock()

	stats := HubStats{Rooms: len(rooms)}
	for _, room := range rooms {
		stats.Connections += room.connectionCount()
	}

	h.recMu.Lock()
	stats.Reconnecting = len(h.records)
	h.recMu.Unlock()

	return stats
}

// room looks a live room up, failing with ErrUnknownRoom.
func (h *Hub) room(matchID int64) (*Room, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	room, ok := h.rooms[matchID]
	if !ok {
		return nil, fmt.Errorf("match %d: %w", matchID, ErrUnknownRoom)
	}
	return room, nil
}

// getOrCreateRoom resolves the creation race so exactly one room instance is
// installed per match id even under concurrent first access.
func (h *Hub) getOrCreateRoom(ctx context.Context, matchID int64) (*Room, error) {
	h.mu.RLock()
	room, ok := h.rooms[matchID]
	h.mu.RUnlock()
	if ok {
		return room, nil
	}

	v, err, _ := h.creating.Do(strconv.FormatInt(matchID, 10), func() (any, error) {
		// A previous flight may have installed the room already.
		h.mu.RLock()
		room, ok := h.rooms[matchID]
		h.mu.RUnlock()
		if ok {
			return room, nil
		}

		roster, err := h.roster.MatchRoster(ctx, matchID)
		if err != nil {
			return nil, fmt.Errorf("load roster for match %d: %w", matchID, err)
		}

		room = newRoom(matchID, roster, h.logger)
		h.mu.Lock()
		h.rooms[matchID] = room
		h.mu.Unlock()

		h.logger.Info("room created",
			"match", matchID,
			"roster_size", len(roster),
		)
		return room, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Room), nil
}

// dropRecords discards reconnection records for participant in matchID.
func (h *Hub) dropRecords(matchID int64, participant uuid.UUID) {
	h.recMu.Lock()
	defer h.recMu.Unlock()

	kept := h.records[:0]
	for _, rec := range h.records {
		if rec.matchID == matchID && rec.participant == participant {
			continue
		}
		kept = append(kept, rec)
	}
	h.records = kept
}

// submit runs fn on the scheduler, falling back to inline execution when the
// pool is absent or already stopping. Presence notices must not be lost to a
// draining pool.
func (h *Hub) submit(pr scheduler.Priority, fn func() error) {
	if h.pool != nil && h.pool.Execute(scheduler.TaskFunc(fn), pr) {
		return
	}
	if err := fn(); err != nil {
		h.logger.Warn("inline task failed", "error", err)
	}
}

func (h *Hub) sweepLoop() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			h.sweep(time.Now())
		}
	}
}

// sweep evicts finished rooms and expires stale reconnection records. It
// snapshots before acting and never touches room state while holding the
// registry lock beyond the eviction re-check.
func (h *Hub) sweep(now time.Time) {
	h.mu.RLock()
	candidates := make([]int64, 0)
	for id, room := range h.rooms {
		if room.IsFinished() {
			candidates = append(candidates, id)
		}
	}
	h.mu.RUnlock()

	if len(candidates) > 0 {
		h.mu.Lock()
		for _, id := range candidates {
			room, ok := h.rooms[id]
			if !ok {
				continue
			}
			if room.closeIfFinished() {
				delete(h.rooms, id)
				h.logger.Info("finished room evicted", "match", id)
			}
		}
		h.mu.Unlock()
	}

	cutoff := now.Add(-h.cfg.GraceWindow)

	h.recMu.Lock()
	kept := h.records[:0]
	var expired []reconnectRecord
	for _, rec := range h.records {
		if rec.since.After(cutoff) {
			kept = append(kept, rec)
			continue
		}
		expired = append(expired, rec)
	}
	h.records = kept
	h.recMu.Unlock()

	for _, rec := range expired {
		room, err := h.room(rec.matchID)
		if err != nil {
			// Room evicted while the participant was away; nothing left to
			// notify and nowhere to reconnect to.
			continue
		}
		if !room.stillReconnecting(rec.participant) {
			continue
		}

		h.logger.Info("reconnection window expired",
			"match", rec.matchID,
			"participant", rec.participant,
		)
		h.submit(scheduler.High, func() error {
			room.SendDisconnected(rec.participant)
			return nil
		})
	}
}
