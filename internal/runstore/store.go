// Package runstore archives completed workflow runs in Postgres so past
// drafts and check reports stay retrievable. The store is optional: with
// no DSN configured every operation is a no-op.
package runstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"pressdesk/internal/pipeline"
)

type Store struct {
	db *sql.DB

	schemaOnce sync.Once
	schemaErr  error
}

// New opens a Postgres-backed store.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// NewFromEnv reads RUN_STORE_PG_DSN. An empty DSN yields a nil store,
// which every method tolerates.
func NewFromEnv() (*Store, error) {
	dsn := strings.TrimSpace(os.Getenv("RUN_STORE_PG_DSN"))
	if dsn == "" {
		return nil, nil
	}
	return New(dsn)
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS workflow_runs (
    id           TEXT PRIMARY KEY,
    created_at   TIMESTAMPTZ NOT NULL,
    state        TEXT NOT NULL,
    raw_input    TEXT NOT NULL DEFAULT '',
    extraction   JSONB,
    concept      JSONB,
    article      TEXT NOT NULL DEFAULT '',
    check_report TEXT NOT NULL DEFAULT '',
    run_log      JSONB
)`)
	})
	return s.schemaErr
}

// Save archives one run under the given id. Missing stage outputs are
// stored as their zero values; partial runs are archived too.
func (s *Store) Save(ctx context.Context, id string, res *pipeline.Result) error {
	if s == nil || s.db == nil {
		return nil
	}
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	extraction, _ := json.Marshal(res.Extraction())
	concept, _ := json.Marshal(res.Concept())
	runLog, _ := json.Marshal(res.Log.Lines())
	var article string
	if out, ok := res.Article(); ok {
		article = out.Serialize()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO workflow_runs (id, created_at, state, raw_input, extraction, concept, article, check_report, run_log)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET
    state = EXCLUDED.state,
    raw_input = EXCLUDED.raw_input,
    extraction = EXCLUDED.extraction,
    concept = EXCLUDED.concept,
    article = EXCLUDED.article,
    check_report = EXCLUDED.check_report,
    run_log = EXCLUDED.run_log`,
		id, time.Now().UTC(), string(res.State()), res.RawInput(),
		extraction, concept, article, res.CheckReport(), runLog)
	return err
}

// Record is one archived run row.
type Record struct {
	ID          string
	CreatedAt   time.Time
	State       string
	Article     string
	CheckReport string
}

// Recent lists the latest archived runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, created_at, state, article, check_report
FROM workflow_runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.State, &r.Article, &r.CheckReport); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
