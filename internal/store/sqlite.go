package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/docrouter/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS routing_outcomes (
	id                      TEXT PRIMARY KEY,
	document_id             TEXT NOT NULL,
	processing_mode         TEXT NOT NULL,
	complexity_score        REAL NOT NULL DEFAULT 0,
	complexity_level        TEXT NOT NULL DEFAULT '',
	confidence              REAL NOT NULL DEFAULT 0,
	fallback_used           INTEGER NOT NULL DEFAULT 0,
	processing_time_seconds REAL NOT NULL DEFAULT 0,
	assessment              TEXT,
	result                  TEXT,
	created_at              DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_outcomes_document_id ON routing_outcomes(document_id);
CREATE INDEX IF NOT EXISTS idx_outcomes_mode ON routing_outcomes(processing_mode);
CREATE INDEX IF NOT EXISTS idx_outcomes_created_at ON routing_outcomes(created_at);
`

const sqliteUpsert = `INSERT INTO routing_outcomes
	(id, document_id, processing_mode, complexity_score, complexity_level, confidence,
	 fallback_used, processing_time_seconds, assessment, result, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
	 processing_mode = excluded.processing_mode,
	 complexity_score = excluded.complexity_score,
	 complexity_level = excluded.complexity_level,
	 confidence = excluded.confidence,
	 fallback_used = excluded.fallback_used,
	 processing_time_seconds = excluded.processing_time_seconds,
	 assessment = excluded.assessment,
	 result = excluded.result`

const outcomeColumns = `id, document_id, processing_mode, complexity_score, complexity_level, confidence,
	fallback_used, processing_time_seconds, assessment, result, created_at`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveOutcome(ctx context.Context, o *model.RoutingOutcome) error {
	row, err := toRow(o)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, sqliteUpsert, sqliteArgs(row)...)
	return eris.Wrapf(err, "sqlite: save outcome %s", row.ID)
}

func (s *SQLiteStore) SaveOutcomes(ctx context.Context, outcomes []*model.RoutingOutcome) (int64, error) {
	if len(outcomes) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteUpsert)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare upsert")
	}
	defer stmt.Close() //nolint:errcheck

	var n int64
	for _, o := range outcomes {
		row, err := toRow(o)
		if err != nil {
			return 0, err
		}
		if _, err := stmt.ExecContext(ctx, sqliteArgs(row)...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: save outcome %s", row.ID)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit outcomes")
	}
	return n, nil
}

func (s *SQLiteStore) GetOutcome(ctx context.Context, id string) (*model.RoutingOutcome, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+outcomeColumns+` FROM routing_outcomes WHERE id = ?`, id)
	o, err := scanSQLiteOutcome(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "id %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get outcome %s", id)
	}
	return o, nil
}

func (s *SQLiteStore) ListOutcomes(ctx context.Context, filter OutcomeFilter) ([]model.RoutingOutcome, error) {
	query := `SELECT ` + outcomeColumns + ` FROM routing_outcomes WHERE 1=1`
	var args []any

	if filter.DocumentID != "" {
		query += ` AND document_id = ?`
		args = append(args, filter.DocumentID)
	}
	if filter.Mode != "" {
		query += ` AND processing_mode = ?`
		args = append(args, string(filter.Mode))
	}
	if filter.FallbackOnly {
		query += ` AND fallback_used = 1`
	}
	if !filter.Since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.Since.UTC())
	}
	query += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, filter.limit())

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list outcomes")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.RoutingOutcome
	for rows.Next() {
		o, err := scanSQLiteOutcome(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan outcome")
		}
		out = append(out, *o)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list outcomes iterate")
}

func sqliteArgs(r outcomeRow) []any {
	return []any{
		r.ID, r.DocumentID, r.Mode, r.Score, r.Level, r.Confidence,
		r.FallbackUsed, r.ProcessingSecs, nullString(r.Assessment), nullString(r.Result), r.CreatedAt,
	}
}

func nullString(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteOutcome(s scannable) (*model.RoutingOutcome, error) {
	var r outcomeRow
	var assessment, result sql.NullString
	err := s.Scan(&r.ID, &r.DocumentID, &r.Mode, &r.Score, &r.Level, &r.Confidence,
		&r.FallbackUsed, &r.ProcessingSecs, &assessment, &result, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	if assessment.Valid {
		r.Assessment = []byte(assessment.String)
	}
	if result.Valid {
		r.Result = []byte(result.String)
	}
	return fromRow(r)
}
