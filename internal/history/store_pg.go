package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Lengi96/ai-qa-framework/internal/probe"
)

const schema = `CREATE TABLE IF NOT EXISTS case_results (
	id          TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL,
	test_id     TEXT NOT NULL,
	name        TEXT NOT NULL DEFAULT '',
	category    TEXT NOT NULL,
	provider    TEXT NOT NULL,
	model       TEXT NOT NULL,
	verdict     JSONB NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	duration_ms BIGINT NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS case_results_run_idx ON case_results (run_id);
CREATE INDEX IF NOT EXISTS case_results_category_idx ON case_results (category, created_at DESC)`

type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore connects and bootstraps the schema. The DSN holds the
// database password, so its value never goes into error messages or
// logs; pgx's own errors carry only host and database names.
func NewPgStore(ctx context.Context, dsn string) (*PgStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect history database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap history schema: %w", err)
	}
	return &PgStore{pool: pool}, nil
}

func (s *PgStore) Append(ctx context.Context, entries []Entry) error {
	for _, e := range entries {
		verdictJSON, err := json.Marshal(e.Verdict)
		if err != nil {
			return fmt.Errorf("encode verdict for %s: %w", e.TestID, err)
		}
		_, err = s.pool.Exec(ctx,
			`INSERT INTO case_results (id,run_id,test_id,name,category,provider,model,verdict,error,duration_ms,created_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			e.ID, e.RunID, e.TestID, e.Name, string(e.Category), e.Provider, e.Model,
			verdictJSON, e.Error, e.DurationMS, e.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert case result %s: %w", e.TestID, err)
		}
	}
	return nil
}

const selectCols = `id,run_id,test_id,name,category,provider,model,verdict,error,duration_ms,created_at`

func (s *PgStore) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+selectCols+` FROM case_results ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list case results: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *PgStore) ListByCategory(ctx context.Context, category probe.Category, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+selectCols+` FROM case_results WHERE category=$1 ORDER BY created_at DESC LIMIT $2`,
		string(category), limit)
	if err != nil {
		return nil, fmt.Errorf("list case results by category: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *PgStore) Overview(ctx context.Context) ([]CategoryStats, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT category,
		        COUNT(*),
		        COUNT(*) FILTER (WHERE error = '' AND (verdict->>'passed')::bool),
		        COUNT(*) FILTER (WHERE error <> ''),
		        COALESCE(AVG(duration_ms),0)
		 FROM case_results GROUP BY category ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("history overview: %w", err)
	}
	defer rows.Close()
	var out []CategoryStats
	for rows.Next() {
		var st CategoryStats
		var cat string
		if err := rows.Scan(&cat, &st.Total, &st.Passed, &st.Errors, &st.MeanMS); err != nil {
			return nil, fmt.Errorf("scan history overview: %w", err)
		}
		st.Category = probe.Category(cat)
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *PgStore) Close() {
	s.pool.Close()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanEntry(row scannable) (Entry, error) {
	var e Entry
	var cat string
	var verdictJSON []byte
	err := row.Scan(&e.ID, &e.RunID, &e.TestID, &e.Name, &cat, &e.Provider, &e.Model,
		&verdictJSON, &e.Error, &e.DurationMS, &e.CreatedAt)
	if err != nil {
		return Entry{}, err
	}
	e.Category = probe.Category(cat)
	if len(verdictJSON) > 0 {
		if err := json.Unmarshal(verdictJSON, &e.Verdict); err != nil {
			return Entry{}, fmt.Errorf("decode verdict for %s: %w", e.TestID, err)
		}
	}
	return e, nil
}

func scanEntries(rows interface {
	scannable
	Next() bool
	Err() error
}) ([]Entry, error) {
	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

var _ Store = (*PgStore)(nil)
var _ Store = (*MemoryFileStore)(nil)
