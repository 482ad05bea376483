package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/docrouter/internal/model"
)

// Pool is the subset of *pgxpool.Pool the store uses. pgxmock pools
// satisfy it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

var outcomeCopyColumns = []string{
	"id", "document_id", "processing_mode", "complexity_score", "complexity_level", "confidence",
	"fallback_used", "processing_time_seconds", "assessment", "result", "created_at",
}

const postgresUpsert = `INSERT INTO routing_outcomes (` + outcomeColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (id) DO UPDATE SET
	 processing_mode = EXCLUDED.processing_mode,
	 complexity_score = EXCLUDED.complexity_score,
	 complexity_level = EXCLUDED.complexity_level,
	 confidence = EXCLUDED.confidence,
	 fallback_used = EXCLUDED.fallback_used,
	 processing_time_seconds = EXCLUDED.processing_time_seconds,
	 assessment = EXCLUDED.assessment,
	 result = EXCLUDED.result`

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"save_outcome": postgresUpsert,
	"get_outcome":  `SELECT ` + outcomeColumns + ` FROM routing_outcomes WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS routing_outcomes (
	id                      TEXT PRIMARY KEY,
	document_id             TEXT NOT NULL,
	processing_mode         TEXT NOT NULL,
	complexity_score        DOUBLE PRECISION NOT NULL DEFAULT 0,
	complexity_level        TEXT NOT NULL DEFAULT '',
	confidence              DOUBLE PRECISION NOT NULL DEFAULT 0,
	fallback_used           BOOLEAN NOT NULL DEFAULT false,
	processing_time_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
	assessment              JSONB,
	result                  JSONB,
	created_at              TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_outcomes_document_id ON routing_outcomes(document_id);
CREATE INDEX IF NOT EXISTS idx_outcomes_mode ON routing_outcomes(processing_mode);
CREATE INDEX IF NOT EXISTS idx_outcomes_created_at ON routing_outcomes(created_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) SaveOutcome(ctx context.Context, o *model.RoutingOutcome) error {
	row, err := toRow(o)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, postgresUpsert, postgresArgs(row)...)
	return eris.Wrapf(err, "postgres: save outcome %s", row.ID)
}

// SaveOutcomes bulk-upserts outcomes: rows are COPYed into a temp table and
// merged with INSERT ... ON CONFLICT in one transaction.
func (s *PostgresStore) SaveOutcomes(ctx context.Context, outcomes []*model.RoutingOutcome) (int64, error) {
	if len(outcomes) == 0 {
		return 0, nil
	}

	rows := make([][]any, 0, len(outcomes))
	for _, o := range outcomes {
		row, err := toRow(o)
		if err != nil {
			return 0, err
		}
		rows = append(rows, postgresArgs(row))
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const temp = "_tmp_routing_outcomes"
	if _, err := tx.Exec(ctx, fmt.Sprintf(
		"CREATE TEMP TABLE %s (LIKE routing_outcomes INCLUDING DEFAULTS) ON COMMIT DROP",
		pgx.Identifier{temp}.Sanitize(),
	)); err != nil {
		return 0, eris.Wrap(err, "postgres: create temp table")
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{temp}, outcomeCopyColumns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrap(err, "postgres: copy outcomes")
	}

	var sets []string
	for _, col := range outcomeCopyColumns[2:] {
		if col == "created_at" {
			continue
		}
		ident := pgx.Identifier{col}.Sanitize()
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", ident, ident))
	}
	cols := strings.Join(outcomeCopyColumns, ", ")
	tag, err := tx.Exec(ctx, fmt.Sprintf(
		"INSERT INTO routing_outcomes (%s) SELECT %s FROM %s ON CONFLICT (id) DO UPDATE SET %s",
		cols, cols, pgx.Identifier{temp}.Sanitize(), strings.Join(sets, ", "),
	))
	if err != nil {
		return 0, eris.Wrap(err, "postgres: merge outcomes")
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit outcomes")
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) GetOutcome(ctx context.Context, id string) (*model.RoutingOutcome, error) {
	o, err := scanPostgresOutcome(s.pool.QueryRow(ctx,
		`SELECT `+outcomeColumns+` FROM routing_outcomes WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "id %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get outcome %s", id)
	}
	return o, nil
}

func (s *PostgresStore) ListOutcomes(ctx context.Context, filter OutcomeFilter) ([]model.RoutingOutcome, error) {
	query := `SELECT ` + outcomeColumns + ` FROM routing_outcomes WHERE true`
	args := []any{}
	argIdx := 1

	if filter.DocumentID != "" {
		query += fmt.Sprintf(` AND document_id = $%d`, argIdx)
		args = append(args, filter.DocumentID)
		argIdx++
	}
	if filter.Mode != "" {
		query += fmt.Sprintf(` AND processing_mode = $%d`, argIdx)
		args = append(args, string(filter.Mode))
		argIdx++
	}
	if filter.FallbackOnly {
		query += ` AND fallback_used`
	}
	if !filter.Since.IsZero() {
		query += fmt.Sprintf(` AND created_at >= $%d`, argIdx)
		args = append(args, filter.Since.UTC())
		argIdx++
	}
	query += ` ORDER BY created_at DESC, id`

	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, filter.limit())
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list outcomes")
	}
	defer rows.Close()

	var out []model.RoutingOutcome
	for rows.Next() {
		o, err := scanPostgresOutcome(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan outcome")
		}
		out = append(out, *o)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list outcomes iterate")
}

func postgresArgs(r outcomeRow) []any {
	return []any{
		r.ID, r.DocumentID, r.Mode, r.Score, r.Level, r.Confidence,
		r.FallbackUsed, r.ProcessingSecs, r.Assessment, r.Result, r.CreatedAt,
	}
}

func scanPostgresOutcome(s scannable) (*model.RoutingOutcome, error) {
	var r outcomeRow
	err := s.Scan(&r.ID, &r.DocumentID, &r.Mode, &r.Score, &r.Level, &r.Confidence,
		&r.FallbackUsed, &r.ProcessingSecs, &r.Assessment, &r.Result, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return fromRow(r)
}
