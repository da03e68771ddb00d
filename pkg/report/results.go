package report

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cachesim/cachesim/pkg/metrics"
)

// ResultsStore persists per-run metrics in a SQLite database so runs
// can be compared after the fact. Only raw counters are stored; derived
// rates are recomputed on read.
type ResultsStore struct {
	db *sql.DB
}

const createResultsTable = `
CREATE TABLE IF NOT EXISTS run_results (
	run_id TEXT NOT NULL,
	label TEXT NOT NULL,
	hits INTEGER NOT NULL,
	misses INTEGER NOT NULL,
	sets INTEGER NOT NULL,
	evictions INTEGER NOT NULL,
	entries INTEGER NOT NULL,
	hit_latency_ns INTEGER NOT NULL,
	hit_latency_count INTEGER NOT NULL,
	miss_latency_ns INTEGER NOT NULL,
	miss_latency_count INTEGER NOT NULL,
	duration_ns INTEGER NOT NULL,
	backend_up INTEGER NOT NULL,
	created_at DATETIME NOT NULL,
	PRIMARY KEY (run_id, label)
);
CREATE INDEX IF NOT EXISTS idx_results_created ON run_results(created_at);
`

// NewResultsStore opens the results database, creating it if needed.
func NewResultsStore(dbPath string) (*ResultsStore, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open results db: %w", err)
	}

	if _, err := db.Exec(createResultsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate results db: %w", err)
	}

	return &ResultsStore{db: db}, nil
}

// Save persists every labeled snapshot of a run under the given run ID.
// Saving the same run ID again overwrites its rows.
func (s *ResultsStore) Save(ctx context.Context, runID string, results Results) error {
	labels := make([]string, 0, len(results))
	for label := range results {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, label := range labels {
		snap := results[label]
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO run_results
			(run_id, label, hits, misses, sets, evictions, entries,
			 hit_latency_ns, hit_latency_count, miss_latency_ns, miss_latency_count,
			 duration_ns, backend_up, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, label, snap.Hits, snap.Misses, snap.Sets, snap.Evictions, snap.Entries,
			snap.HitLatency.SumNS, snap.HitLatency.Count, snap.MissLatency.SumNS, snap.MissLatency.Count,
			snap.DurationNS, boolToInt(snap.BackendUp), now,
		); err != nil {
			return fmt.Errorf("save result %s: %w", label, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// RunRow is one stored result row.
type RunRow struct {
	RunID     string
	Label     string
	Snap      metrics.Snapshot
	CreatedAt time.Time
}

// List returns stored results newest first, capped at limit when it is
// positive.
func (s *ResultsStore) List(ctx context.Context, limit int) ([]RunRow, error) {
	query := `SELECT run_id, label, hits, misses, sets, evictions, entries,
		hit_latency_ns, hit_latency_count, miss_latency_ns, miss_latency_count,
		duration_ns, backend_up, created_at
		FROM run_results ORDER BY created_at DESC, run_id, label`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		r, err := scanRunRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Run loads one stored run back as labeled snapshots.
func (s *ResultsStore) Run(ctx context.Context, runID string) (Results, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, label, hits, misses, sets, evictions, entries,
		 hit_latency_ns, hit_latency_count, miss_latency_ns, miss_latency_count,
		 duration_ns, backend_up, created_at
		 FROM run_results WHERE run_id = ? ORDER BY label`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	defer rows.Close()

	results := make(Results)
	for rows.Next() {
		r, err := scanRunRow(rows)
		if err != nil {
			return nil, err
		}
		results[r.Label] = r.Snap
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	return results, nil
}

// Prune keeps the most recent keepRuns runs and deletes the rest.
// Returns the number of rows removed.
func (s *ResultsStore) Prune(ctx context.Context, keepRuns int) (int64, error) {
	if keepRuns < 0 {
		keepRuns = 0
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM run_results WHERE run_id NOT IN (
			SELECT run_id FROM run_results
			GROUP BY run_id
			ORDER BY MAX(created_at) DESC
			LIMIT ?
		)`, keepRuns)
	if err != nil {
		return 0, fmt.Errorf("prune results: %w", err)
	}
	return res.RowsAffected()
}

// Close releases the database connection.
func (s *ResultsStore) Close() error {
	return s.db.Close()
}

func scanRunRow(rows *sql.Rows) (RunRow, error) {
	var r RunRow
	var backendUp int64
	if err := rows.Scan(
		&r.RunID, &r.Label, &r.Snap.Hits, &r.Snap.Misses, &r.Snap.Sets, &r.Snap.Evictions, &r.Snap.Entries,
		&r.Snap.HitLatency.SumNS, &r.Snap.HitLatency.Count, &r.Snap.MissLatency.SumNS, &r.Snap.MissLatency.Count,
		&r.Snap.DurationNS, &backendUp, &r.CreatedAt,
	); err != nil {
		return RunRow{}, fmt.Errorf("scan result: %w", err)
	}
	r.Snap.BackendUp = backendUp != 0
	return r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
