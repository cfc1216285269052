package roster

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/matchforge/relay/internal/relay"
)

// Store reads match rosters from PostgreSQL. It satisfies relay.RosterSource.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a roster store on the given pool.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}
}

// MatchRoster returns every participant of the match and their external
// serial id. A match with no participants does not exist as far as the relay
// is concerned, so the error wraps relay.ErrUnknownRoom.
func (s *Store) MatchRoster(ctx context.Context, matchID int64) (map[uuid.UUID]int64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT mp.player_id, p.serial_id
		FROM match_players mp
		JOIN players p ON p.id = mp.player_id
		WHERE mp.match_id = $1`,
		matchID,
	)
	if err != nil {
		return nil, fmt.Errorf("query roster for match %d: %w", matchID, err)
	}
	defer rows.Close()

	roster := make(map[uuid.UUID]int64)
	for rows.Next() {
		var playerID uuid.UUID
		var serialID int64
		if err := rows.Scan(&playerID, &serialID); err != nil {
			return nil, fmt.Errorf("scan roster row: %w", err)
		}
		roster[playerID] = serialID
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read roster for match %d: %w", matchID, err)
	}

	if len(roster) == 0 {
		return nil, fmt.Errorf("match %d: %w", matchID, relay.ErrUnknownRoom)
	}

	s.logger.Debug("roster loaded", "match", matchID, "participants", len(roster))
	return roster, nil
}

// IsMember reports whether the player belongs to the match. The transport
// boundary validates this before a stream reaches the relay core.
func (s *Store) IsMember(ctx context.Context, matchID int64, playerID uuid.UUID) (bool, error) {
	var member bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM match_players
			WHERE match_id = $1 AND player_id = $2
		)`,
		matchID, playerID,
	).Scan(&member)
	if err != nil {
		return false, fmt.Errorf("check membership of %s in match %d: %w", playerID, matchID, err)
	}
	return member, nil
}
