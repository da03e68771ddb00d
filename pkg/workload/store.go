package workload

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/cachesim/cachesim/pkg/models"
)

// QuestionStore persists the question corpus that drives simulations.
type QuestionStore struct {
	db *sql.DB
}

const createQuestionsTable = `
CREATE TABLE IF NOT EXISTS questions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	category INTEGER NOT NULL DEFAULT 0,
	title TEXT NOT NULL,
	content TEXT NOT NULL DEFAULT '',
	best_answer TEXT NOT NULL DEFAULT '',
	baseline_quality REAL NOT NULL DEFAULT 0,
	access_count INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(title, content)
);
CREATE INDEX IF NOT EXISTS idx_questions_category ON questions(category);
`

const upsertQuestion = `
INSERT INTO questions (category, title, content, best_answer, baseline_quality)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(title, content) DO UPDATE SET access_count = access_count + 1`

// NewQuestionStore opens the corpus database, creating it if needed.
func NewQuestionStore(dbPath string) (*QuestionStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open questions db: %w", err)
	}

	if _, err := db.Exec(createQuestionsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate questions db: %w", err)
	}

	return &QuestionStore{db: db}, nil
}

// ImportCSV loads question records from a CSV file with columns
// category, title, content, best_answer and an optional baseline_quality.
// A header row is detected and skipped. At most limit rows are ingested
// when limit is positive; rows with an empty title are dropped, and
// re-importing an existing row bumps its access count instead of
// duplicating it. Returns the number of rows ingested.
func (s *QuestionStore) ImportCSV(ctx context.Context, path string, limit int) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	imported := 0
	for line := 1; limit <= 0 || imported < limit; line++ {
		fields, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("read csv line %d: %w", line, err)
		}
		if len(fields) < 2 {
			continue
		}

		category, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			// Header row or malformed category.
			continue
		}
		title := strings.TrimSpace(fields[1])
		if title == "" {
			continue
		}

		var content, bestAnswer string
		if len(fields) > 2 {
			content = fields[2]
		}
		if len(fields) > 3 {
			bestAnswer = fields[3]
		}
		var quality float64
		if len(fields) > 4 {
			quality, _ = strconv.ParseFloat(strings.TrimSpace(fields[4]), 64)
		}

		if _, err := tx.ExecContext(ctx, upsertQuestion, category, title, content, bestAnswer, quality); err != nil {
			return 0, fmt.Errorf("import question %q: %w", title, err)
		}
		imported++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	return imported, nil
}

// Records returns up to limit question records in insertion order.
// A limit of zero or less returns everything.
func (s *QuestionStore) Records(ctx context.Context, limit int) ([]models.Record, error) {
	query := `SELECT id, category, title, content, best_answer, baseline_quality, access_count, created_at
	 FROM questions ORDER BY id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	var records []models.Record
	for rows.Next() {
		var rec models.Record
		if err := rows.Scan(&rec.ID, &rec.Category, &rec.Title, &rec.Content, &rec.BestAnswer, &rec.BaselineQuality, &rec.AccessCount, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Count returns the number of stored questions.
func (s *QuestionStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return n, nil
}

// Source returns a restartable source over the stored corpus, capped at
// limit records when limit is positive.
func (s *QuestionStore) Source(ctx context.Context, limit int) (*SliceSource, error) {
	records, err := s.Records(ctx, limit)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	return NewSliceSource(records), nil
}

// Close releases the database connection.
func (s *QuestionStore) Close() error {
	return s.db.Close()
}
