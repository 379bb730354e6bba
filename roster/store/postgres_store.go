// roster/store/postgres_store.go
package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kwanta/matchday/shared/models"
)

const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	maxPostgresTxAttempts  = 8
	postgresRetryBaseDelay = 5 * time.Millisecond
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS matches (
	id             TEXT PRIMARY KEY,
	title          TEXT NOT NULL,
	match_date     TEXT NOT NULL,
	match_time     TEXT NOT NULL,
	location       TEXT NOT NULL,
	team_size      INT NOT NULL CHECK (team_size IN (5, 7, 11)),
	status         TEXT NOT NULL CHECK (status IN ('open', 'closed')),
	owner_id       TEXT NOT NULL DEFAULT '',
	owner_email    TEXT NOT NULL DEFAULT '',
	created_by     TEXT NOT NULL DEFAULT '',
	roster_version BIGINT NOT NULL DEFAULT 0,
	created_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS matches_created_at_idx ON matches (created_at DESC);
CREATE INDEX IF NOT EXISTS matches_owner_idx ON matches (owner_id, created_at DESC);

CREATE TABLE IF NOT EXISTS teams (
	id       TEXT PRIMARY KEY,
	match_id TEXT NOT NULL REFERENCES matches (id),
	name     TEXT NOT NULL,
	idx      INT NOT NULL CHECK (idx IN (0, 1)),
	UNIQUE (match_id, idx)
);

CREATE TABLE IF NOT EXISTS players (
	id          TEXT PRIMARY KEY,
	match_id    TEXT NOT NULL REFERENCES matches (id),
	team_id     TEXT NOT NULL REFERENCES teams (id),
	slot_number INT NOT NULL CHECK (slot_number >= 1),
	name        TEXT NOT NULL,
	email       TEXT NOT NULL DEFAULT '',
	phone       TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL,
	CONSTRAINT players_slot_key UNIQUE (match_id, team_id, slot_number)
);
CREATE INDEX IF NOT EXISTS players_match_idx ON players (match_id);
`

var (
	psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	matchColumns  = []string{"id", "title", "match_date", "match_time", "location", "team_size", "status", "owner_id", "owner_email", "created_by", "roster_version", "created_at"}
	teamColumns   = []string{"id", "match_id", "name", "idx"}
	playerColumns = []string{"id", "match_id", "team_id", "slot_number", "name", "email", "phone", "created_at"}
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists the roster in Postgres. Transactions run READ COMMITTED and lock the match row by
// updating its roster_version, so writers on one match queue behind each other and each statement after
// the lock sees the previous holder's commit. The players_slot_key constraint backs slot exclusivity.
type PostgresStore struct {
	pool *pgxpool.Pool
	pgQueries
}

// NewPostgresStore creates a PostgresStore on an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, pgQueries: pgQueries{db: pool}}
}

var _ RosterStore = (*PostgresStore)(nil)

// RunInTx retries deadlocks and serialization failures with jittered backoff until the attempts or ctx
// run out; any other error aborts and is returned as is.
func (ps *PostgresStore) RunInTx(ctx context.Context, fn TxFunc) error {
	var err error
	for attempt := 1; attempt <= maxPostgresTxAttempts; attempt++ {
		err = ps.runOnce(ctx, fn)
		if !isRetryablePgError(err) {
			return err
		}
		log.Printf("WARN: Postgres transaction conflict (attempt %d/%d): %v", attempt, maxPostgresTxAttempts, err)

		select {
		case <-ctx.Done():
			return fmt.Errorf("transaction abandoned after %d attempts: %w", attempt, ctx.Err())
		case <-time.After(retryDelay(attempt)):
		}
	}
	return fmt.Errorf("transaction gave up after %d attempts: %w", maxPostgresTxAttempts, err)
}

// retryDelay doubles per attempt and adds up to the same again in jitter.
func retryDelay(attempt int) time.Duration {
	d := postgresRetryBaseDelay << min(attempt-1, 6)
	return d + rand.N(d)
}

func (ps *PostgresStore) runOnce(ctx context.Context, fn TxFunc) (err error) {
	tx, err := ps.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.Background())
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(context.Background()); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				log.Printf("ERROR: Transaction rollback failed: %v (after %v)", rbErr, err)
			}
			return
		}
		if cErr := tx.Commit(ctx); cErr != nil {
			err = fmt.Errorf("failed to commit transaction: %w", cErr)
		}
	}()
	return fn(ctx, &pgTx{pgQueries{db: tx}})
}

func (ps *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := ps.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to apply Postgres schema: %w", err)
	}
	log.Println("INFO: Postgres roster schema ensured.")
	return nil
}

func (ps *PostgresStore) Ping(ctx context.Context) error {
	return ps.pool.Ping(ctx)
}

func (ps *PostgresStore) Close(ctx context.Context) error {
	ps.pool.Close()
	return nil
}

func (ps *PostgresStore) ListMatches(ctx context.Context, filter MatchFilter) ([]models.Match, error) {
	q := psql.Select(matchColumns...).From("matches").OrderBy("created_at DESC", "id")
	if filter.OwnerID != "" {
		q = q.Where(sq.Eq{"owner_id": filter.OwnerID})
	}
	if filter.Status != "" {
		q = q.Where(sq.Eq{"status": string(filter.Status)})
	}
	rows, err := ps.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	return collect(rows, scanMatch)
}

// pgQueries holds the reads shared by the pool and a transaction.
type pgQueries struct {
	db querier
}

func (q pgQueries) query(ctx context.Context, b sq.SelectBuilder) (pgx.Rows, error) {
	sql, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	return q.db.Query(ctx, sql, args...)
}

func (q pgQueries) queryRow(ctx context.Context, b sq.Sqlizer) (pgx.Row, error) {
	sql, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	return q.db.QueryRow(ctx, sql, args...), nil
}

func (q pgQueries) exec(ctx context.Context, b sq.Sqlizer) (pgconn.CommandTag, error) {
	sql, args, err := b.ToSql()
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	return q.db.Exec(ctx, sql, args...)
}

func (q pgQueries) GetMatch(ctx context.Context, matchID string) (*models.Match, error) {
	row, err := q.queryRow(ctx, psql.Select(matchColumns...).From("matches").Where(sq.Eq{"id": matchID}))
	if err != nil {
		return nil, err
	}
	m, err := scanMatch(row)
	if err != nil {
		return nil, pgNotFoundOr(err, "failed to get match %s", matchID)
	}
	return m, nil
}

func (q pgQueries) GetTeam(ctx context.Context, teamID string) (*models.Team, error) {
	row, err := q.queryRow(ctx, psql.Select(teamColumns...).From("teams").Where(sq.Eq{"id": teamID}))
	if err != nil {
		return nil, err
	}
	t, err := scanTeam(row)
	if err != nil {
		return nil, pgNotFoundOr(err, "failed to get team %s", teamID)
	}
	return t, nil
}

func (q pgQueries) FindPlayerInSlot(ctx context.Context, matchID, teamID string, slotNumber int) (*models.Player, error) {
	row, err := q.queryRow(ctx, psql.Select(playerColumns...).From("players").
		Where(sq.Eq{"match_id": matchID, "team_id": teamID, "slot_number": slotNumber}))
	if err != nil {
		return nil, err
	}
	p, err := scanPlayer(row)
	if err != nil {
		return nil, pgNotFoundOr(err, "failed to find player in slot %s/%s/%d", matchID, teamID, slotNumber)
	}
	return p, nil
}

func (q pgQueries) ListTeams(ctx context.Context, matchIDs ...string) ([]models.Team, error) {
	rows, err := q.query(ctx, psql.Select(teamColumns...).From("teams").
		Where(sq.Eq{"match_id": matchIDs}).OrderBy("match_id", "idx"))
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	return collect(rows, scanTeam)
}

func (q pgQueries) ListPlayers(ctx context.Context, matchIDs ...string) ([]models.Player, error) {
	rows, err := q.query(ctx, psql.Select(playerColumns...).From("players").
		Where(sq.Eq{"match_id": matchIDs}).OrderBy("team_id", "slot_number"))
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	return collect(rows, scanPlayer)
}

type pgTx struct {
	pgQueries
}

func (tx *pgTx) LockMatch(ctx context.Context, matchID string) (*models.Match, error) {
	row, err := tx.queryRow(ctx, psql.Update("matches").
		Set("roster_version", sq.Expr("roster_version + 1")).
		Where(sq.Eq{"id": matchID}).
		Suffix("RETURNING "+strings.Join(matchColumns, ", ")))
	if err != nil {
		return nil, err
	}
	m, err := scanMatch(row)
	if err != nil {
		return nil, pgNotFoundOr(err, "failed to lock match %s", matchID)
	}
	return m, nil
}

func (tx *pgTx) InsertMatch(ctx context.Context, m *models.Match) error {
	_, err := tx.exec(ctx, psql.Insert("matches").Columns(matchColumns...).Values(
		m.ID, m.Title, m.Date, m.Time, m.Location, m.TeamSize, string(m.Status),
		m.OwnerID, m.OwnerEmail, m.CreatedBy, m.RosterVersion, m.CreatedAt))
	return pgDuplicateOr(err, "failed to insert match %s", m.ID)
}

func (tx *pgTx) InsertTeam(ctx context.Context, t *models.Team) error {
	_, err := tx.exec(ctx, psql.Insert("teams").Columns(teamColumns...).Values(t.ID, t.MatchID, t.Name, t.Index))
	return pgDuplicateOr(err, "failed to insert team %s", t.ID)
}

func (tx *pgTx) InsertPlayer(ctx context.Context, p *models.Player) error {
	_, err := tx.exec(ctx, psql.Insert("players").Columns(playerColumns...).Values(
		p.ID, p.MatchID, p.TeamID, p.SlotNumber, p.Name, p.Email, p.Phone, p.CreatedAt))
	return pgDuplicateOr(err, "failed to insert player into slot %s/%s/%d", p.MatchID, p.TeamID, p.SlotNumber)
}

func (tx *pgTx) UpdateMatchStatus(ctx context.Context, matchID string, status models.MatchStatus) error {
	tag, err := tx.exec(ctx, psql.Update("matches").Set("status", string(status)).Where(sq.Eq{"id": matchID}))
	if err != nil {
		return fmt.Errorf("failed to update status of match %s: %w", matchID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (tx *pgTx) DeletePlayer(ctx context.Context, playerID string) error {
	tag, err := tx.exec(ctx, psql.Delete("players").Where(sq.Eq{"id": playerID}))
	if err != nil {
		return fmt.Errorf("failed to delete player %s: %w", playerID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (tx *pgTx) DeletePlayersByMatch(ctx context.Context, matchID string) (int64, error) {
	tag, err := tx.exec(ctx, psql.Delete("players").Where(sq.Eq{"match_id": matchID}))
	if err != nil {
		return 0, fmt.Errorf("failed to delete players of match %s: %w", matchID, err)
	}
	return tag.RowsAffected(), nil
}

func (tx *pgTx) DeleteTeamsByMatch(ctx context.Context, matchID string) (int64, error) {
	tag, err := tx.exec(ctx, psql.Delete("teams").Where(sq.Eq{"match_id": matchID}))
	if err != nil {
		return 0, fmt.Errorf("failed to delete teams of match %s: %w", matchID, err)
	}
	return tag.RowsAffected(), nil
}

func (tx *pgTx) DeleteMatch(ctx context.Context, matchID string) error {
	tag, err := tx.exec(ctx, psql.Delete("matches").Where(sq.Eq{"id": matchID}))
	if err != nil {
		return fmt.Errorf("failed to delete match %s: %w", matchID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanMatch(row pgx.Row) (*models.Match, error) {
	var m models.Match
	var status string
	err := row.Scan(&m.ID, &m.Title, &m.Date, &m.Time, &m.Location, &m.TeamSize, &status,
		&m.OwnerID, &m.OwnerEmail, &m.CreatedBy, &m.RosterVersion, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	m.Status = models.MatchStatus(status)
	return &m, nil
}

func scanTeam(row pgx.Row) (*models.Team, error) {
	var t models.Team
	if err := row.Scan(&t.ID, &t.MatchID, &t.Name, &t.Index); err != nil {
		return nil, err
	}
	return &t, nil
}

func scanPlayer(row pgx.Row) (*models.Player, error) {
	var p models.Player
	if err := row.Scan(&p.ID, &p.MatchID, &p.TeamID, &p.SlotNumber, &p.Name, &p.Email, &p.Phone, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (*T, error)) ([]T, error) {
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return out, nil
}

func pgNotFoundOr(err error, format string, args ...any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

func pgDuplicateOr(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf(format+": %w", append(args, ErrDuplicate)...)
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

func isRetryablePgError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
}
