package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/jansahayak/agent/domain/entities"
)

// RetentionCap is the number of summaries kept; older rows are pruned on
// every save.
const RetentionCap = 20

// SQLite persists conversation summaries locally.
type SQLite struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open creates or opens the summary database at path.
func Open(ctx context.Context, path string, logger *zap.Logger) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &SQLite{db: db, logger: logger}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS conversation_summaries (
    id TEXT PRIMARY KEY,
    language TEXT NOT NULL,
    summary TEXT NOT NULL,
    entries INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_summaries_created_at
    ON conversation_summaries (created_at DESC);`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Save writes one summary and prunes the table to the retention cap.
func (s *SQLite) Save(ctx context.Context, sum entities.ConversationSummary) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO conversation_summaries (id, language, summary, entries, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		sum.ID, sum.Language, sum.Summary, sum.Entries, sum.CreatedAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("insert summary: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM conversation_summaries WHERE id NOT IN (
		    SELECT id FROM conversation_summaries
		    ORDER BY created_at DESC, rowid DESC LIMIT ?
		)`, RetentionCap,
	); err != nil {
		return fmt.Errorf("prune summaries: %w", err)
	}

	return tx.Commit()
}

// Recent returns up to limit summaries, newest first.
func (s *SQLite) Recent(ctx context.Context, limit int) ([]entities.ConversationSummary, error) {
	if limit <= 0 || limit > RetentionCap {
		limit = RetentionCap
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, language, summary, entries, created_at
		 FROM conversation_summaries
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}
	defer rows.Close()

	var out []entities.ConversationSummary
	for rows.Next() {
		var sum entities.ConversationSummary
		var created string
		if err := rows.Scan(&sum.ID, &sum.Language, &sum.Summary, &sum.Entries, &created); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
			sum.CreatedAt = t
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
