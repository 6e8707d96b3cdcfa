package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jobinpjoseph707/word-game-multiplayer/internal/game"
)

// PostgresStore keeps rooms and players in PostgreSQL so several server
// processes can share them. Every mutation runs in its own transaction holding
// the room row lock, which makes each upsert atomic (including vote increments)
// and gives read-your-writes through the returned snapshot.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgresStore connects a pool to connString
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{pool: pool, now: time.Now}, nil
}

// NewPostgresStoreFromPool wraps an existing pool
func NewPostgresStoreFromPool(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, now: time.Now}
}

// Pool returns the underlying connection pool
func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

// Ping checks the database connection
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool
func (s *PostgresStore) Close() {
	s.pool.Close()
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const roomColumns = `code, settings, phase, round, time_left, vote_counts, elimination_result,
	last_eliminated_player_id, game_winner, majority_word, imposter_word, created_at, last_activity_at`

const playerColumns = `id, room_code, name, is_admin, word, clue, votes, is_eliminated,
	has_submitted_clue, has_voted, score, joined_at, last_seen_at`

// GetRoom retrieves a room and its players
func (s *PostgresStore) GetRoom(ctx context.Context, code string) (*game.Room, error) {
	room, err := loadRoom(ctx, s.pool, code)
	if err != nil {
		return nil, wrapErr(err)
	}
	return room, nil
}

// UpsertRoom creates or updates a room
func (s *PostgresStore) UpsertRoom(ctx context.Context, code string, patch game.RoomPatch) (*game.Room, error) {
	var snapshot *game.Room
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		now := s.now()
		room, err := scanRoom(tx.QueryRow(ctx, `SELECT `+roomColumns+` FROM rooms WHERE code = $1 FOR UPDATE`, code))
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			if patch.IfPhase != nil || patch.IfRound != nil || patch.IfPlayers != nil {
				return fmt.Errorf("%w: room %s", game.ErrNotFound, code)
			}
			room = game.NewRoom(code, game.DefaultSettings(), now)
		case err != nil:
			return err
		}
		if err := patch.Check(room); err != nil {
			return err
		}
		if patch.IfPlayers != nil {
			rows, err := tx.Query(ctx, `SELECT id FROM players WHERE room_code = $1`, code)
			if err != nil {
				return err
			}
			ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
			if err != nil {
				return err
			}
			if err := patch.CheckPlayers(code, ids); err != nil {
				return err
			}
		}

		patch.Apply(room)
		room.LastActivityAt = now
		if err := writeRoom(ctx, tx, room); err != nil {
			return err
		}

		snapshot, err = loadRoom(ctx, tx, code)
		return err
	})
	if err != nil {
		return nil, wrapErr(err)
	}
	return snapshot, nil
}

// UpsertPlayer creates or updates a player of an existing room
func (s *PostgresStore) UpsertPlayer(ctx context.Context, roomCode, playerID string, patch game.PlayerPatch) (*game.Room, error) {
	return s.UpsertPlayers(ctx, roomCode, map[string]game.PlayerPatch{playerID: patch})
}

// UpsertPlayers applies several player patches in one transaction
func (s *PostgresStore) UpsertPlayers(ctx context.Context, roomCode string, patches map[string]game.PlayerPatch) (*game.Room, error) {
	var snapshot *game.Room
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		now := s.now()
		phase, err := lockRoom(ctx, tx, roomCode)
		if err != nil {
			return err
		}

		for id, patch := range patches {
			p, err := scanPlayer(tx.QueryRow(ctx, `SELECT `+playerColumns+` FROM players WHERE id = $1 FOR UPDATE`, id))
			switch {
			case errors.Is(err, pgx.ErrNoRows):
				p = nil
			case err != nil:
				return err
			case p.RoomCode != roomCode:
				return fmt.Errorf("%w: player %s belongs to room %s", game.ErrValidation, id, p.RoomCode)
			}
			if err := patch.Check(p, roomCode, phase); err != nil {
				return err
			}
			if p == nil {
				p = game.NewPlayer(id, roomCode, "", now)
			}

			patch.Apply(p)
			if err := writePlayer(ctx, tx, p); err != nil {
				return err
			}
		}

		if err := touchRoom(ctx, tx, roomCode, now); err != nil {
			return err
		}
		snapshot, err = loadRoom(ctx, tx, roomCode)
		return err
	})
	if err != nil {
		return nil, wrapErr(err)
	}
	return snapshot, nil
}

// DeleteRoom removes a room; players go with it through the cascading key
func (s *PostgresStore) DeleteRoom(ctx context.Context, code string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM rooms WHERE code = $1`, code); err != nil {
		return wrapErr(err)
	}
	return nil
}

// DeletePlayer removes a player from its room
func (s *PostgresStore) DeletePlayer(ctx context.Context, playerID string) (*game.Room, error) {
	var snapshot *game.Room
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var code string
		err := tx.QueryRow(ctx, `SELECT room_code FROM players WHERE id = $1`, playerID).Scan(&code)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: player %s", game.ErrNotFound, playerID)
		}
		if err != nil {
			return err
		}
		if _, err := lockRoom(ctx, tx, code); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM players WHERE id = $1`, playerID); err != nil {
			return err
		}
		if err := touchRoom(ctx, tx, code, s.now()); err != nil {
			return err
		}
		snapshot, err = loadRoom(ctx, tx, code)
		return err
	})
	if err != nil {
		return nil, wrapErr(err)
	}
	return snapshot, nil
}

// ListRooms returns every room, used by operators' cleanup jobs
func (s *PostgresStore) ListRooms(ctx context.Context) ([]*game.Room, error) {
	rows, err := s.pool.Query(ctx, `SELECT code FROM rooms ORDER BY created_at`)
	if err != nil {
		return nil, wrapErr(err)
	}
	codes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, wrapErr(err)
	}

	rooms := make([]*game.Room, 0, len(codes))
	for _, code := range codes {
		room, err := loadRoom(ctx, s.pool, code)
		if errors.Is(err, game.ErrNotFound) {
			continue // deleted meanwhile
		}
		if err != nil {
			return nil, wrapErr(err)
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

func (s *PostgresStore) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// lockRoom locks the room row for the rest of the transaction and returns its phase
func lockRoom(ctx context.Context, q querier, code string) (game.Phase, error) {
	var phase game.Phase
	err := q.QueryRow(ctx, `SELECT phase FROM rooms WHERE code = $1 FOR UPDATE`, code).Scan(&phase)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w: room %s", game.ErrNotFound, code)
	}
	return phase, err
}

func touchRoom(ctx context.Context, q querier, code string, now time.Time) error {
	_, err := q.Exec(ctx, `UPDATE rooms SET last_activity_at = $2 WHERE code = $1`, code, now)
	return err
}

func loadRoom(ctx context.Context, q querier, code string) (*game.Room, error) {
	room, err := scanRoom(q.QueryRow(ctx, `SELECT `+roomColumns+` FROM rooms WHERE code = $1`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: room %s", game.ErrNotFound, code)
	}
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `SELECT `+playerColumns+` FROM players WHERE room_code = $1 ORDER BY joined_at, id`, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		room.Players = append(room.Players, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	game.SortPlayers(room.Players)
	return room, nil
}

func scanRoom(row pgx.Row) (*game.Room, error) {
	var (
		room       game.Room
		settings   []byte
		voteCounts []byte
		phase      string
		winner     string
	)
	err := row.Scan(&room.Code, &settings, &phase, &room.Round, &room.TimeLeft, &voteCounts,
		&room.EliminationResult, &room.LastEliminatedPlayer, &winner, &room.MajorityWord,
		&room.ImposterWord, &room.CreatedAt, &room.LastActivityAt)
	if err != nil {
		return nil, err
	}

	room.Phase = game.Phase(phase)
	room.GameWinner = game.Winner(winner)
	if err := json.Unmarshal(settings, &room.Settings); err != nil {
		return nil, fmt.Errorf("decode settings of room %s: %w", room.Code, err)
	}
	if len(voteCounts) > 0 {
		if err := json.Unmarshal(voteCounts, &room.VoteCounts); err != nil {
			return nil, fmt.Errorf("decode vote counts of room %s: %w", room.Code, err)
		}
	}
	room.Players = []*game.Player{}
	return &room, nil
}

func scanPlayer(row pgx.Row) (*game.Player, error) {
	var p game.Player
	err := row.Scan(&p.ID, &p.RoomCode, &p.Name, &p.IsAdmin, &p.Word, &p.Clue, &p.Votes,
		&p.IsEliminated, &p.HasSubmittedClue, &p.HasVoted, &p.Score, &p.JoinedAt, &p.LastSeenAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func writeRoom(ctx context.Context, q querier, room *game.Room) error {
	settings, err := json.Marshal(room.Settings)
	if err != nil {
		return err
	}
	var voteCounts []byte
	if room.VoteCounts != nil {
		if voteCounts, err = json.Marshal(room.VoteCounts); err != nil {
			return err
		}
	}

	_, err = q.Exec(ctx, `
		INSERT INTO rooms (`+roomColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (code) DO UPDATE SET
			settings = EXCLUDED.settings,
			phase = EXCLUDED.phase,
			round = EXCLUDED.round,
			time_left = EXCLUDED.time_left,
			vote_counts = EXCLUDED.vote_counts,
			elimination_result = EXCLUDED.elimination_result,
			last_eliminated_player_id = EXCLUDED.last_eliminated_player_id,
			game_winner = EXCLUDED.game_winner,
			majority_word = EXCLUDED.majority_word,
			imposter_word = EXCLUDED.imposter_word,
			last_activity_at = EXCLUDED.last_activity_at`,
		room.Code, settings, string(room.Phase), room.Round, room.TimeLeft, voteCounts,
		room.EliminationResult, room.LastEliminatedPlayer, string(room.GameWinner), room.MajorityWord,
		room.ImposterWord, room.CreatedAt, room.LastActivityAt)
	return err
}

func writePlayer(ctx context.Context, q querier, p *game.Player) error {
	_, err := q.Exec(ctx, `
		INSERT INTO players (`+playerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			is_admin = EXCLUDED.is_admin,
			word = EXCLUDED.word,
			clue = EXCLUDED.clue,
			votes = EXCLUDED.votes,
			is_eliminated = EXCLUDED.is_eliminated,
			has_submitted_clue = EXCLUDED.has_submitted_clue,
			has_voted = EXCLUDED.has_voted,
			score = EXCLUDED.score,
			last_seen_at = EXCLUDED.last_seen_at`,
		p.ID, p.RoomCode, p.Name, p.IsAdmin, p.Word, p.Clue, p.Votes, p.IsEliminated,
		p.HasSubmittedClue, p.HasVoted, p.Score, p.JoinedAt, p.LastSeenAt)
	return err
}

// wrapErr marks unexpected database failures as game.ErrStore while letting
// domain errors and context cancellation through untouched
func wrapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, game.ErrNotFound), errors.Is(err, game.ErrInvalidPhase), errors.Is(err, game.ErrValidation),
		errors.Is(err, game.ErrAlreadyVoted):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %w", game.ErrStore, err)
	}
}

var (
	_ RoomStore = (*PostgresStore)(nil)
	_ Lister    = (*PostgresStore)(nil)
)
