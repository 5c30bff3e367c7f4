package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/glebarez/sqlite"
)

// ErrPathRequired is returned when the backing store path is missing.
var ErrPathRequired = errors.New("relayd storage path must be configured")

// Storage wraps the relayd audit trail persistence layer.
type Storage struct {
	db *sql.DB
}

// Open initialises the backing store using a sqlite-compatible DSN.
func Open(path string) (*Storage, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, ErrPathRequired
	}
	db, err := sql.Open("sqlite", trimmed)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Storage{db: db}, nil
}

// Close releases database resources.
func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SubmissionRecord captures one signed swap submission and its outcome.
type SubmissionRecord struct {
	ID         string
	Signer     string
	AssetIn    string
	AssetOut   string
	AmountIn   string
	AmountOut  string
	Fee        string
	Nonce      uint64
	Outcome    string
	Detail     string
	ReceivedAt time.Time
}

// RecordSubmission persists one submission attempt.
func (s *Storage) RecordSubmission(ctx context.Context, rec SubmissionRecord) error {
	if s == nil {
		return fmt.Errorf("storage not configured")
	}
	id := strings.TrimSpace(rec.ID)
	if id == "" {
		return fmt.Errorf("submission id required")
	}
	received := rec.ReceivedAt.UTC()
	if received.IsZero() {
		received = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO swap_submissions(id, signer, asset_in, asset_out, amount_in, amount_out, fee, nonce, outcome, detail, received_at)
        VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `, id, strings.TrimSpace(rec.Signer), rec.AssetIn, rec.AssetOut, rec.AmountIn, rec.AmountOut, rec.Fee, rec.Nonce, rec.Outcome, rec.Detail, received.Unix())
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

// Submission returns the persisted record for the given id.
func (s *Storage) Submission(ctx context.Context, id string) (SubmissionRecord, error) {
	rec := SubmissionRecord{}
	if s == nil {
		return rec, fmt.Errorf("storage not configured")
	}
	row := s.db.QueryRowContext(ctx, `
        SELECT id, signer, asset_in, asset_out, amount_in, amount_out, fee, nonce, outcome, detail, received_at
        FROM swap_submissions
        WHERE id = ?
    `, strings.TrimSpace(id))
	var received int64
	if err := row.Scan(&rec.ID, &rec.Signer, &rec.AssetIn, &rec.AssetOut, &rec.AmountIn, &rec.AmountOut, &rec.Fee, &rec.Nonce, &rec.Outcome, &rec.Detail, &received); err != nil {
		if err == sql.ErrNoRows {
			return rec, fmt.Errorf("submission not found")
		}
		return rec, fmt.Errorf("query submission: %w", err)
	}
	rec.ReceivedAt = time.Unix(received, 0).UTC()
	return rec, nil
}

// RecentSubmissions returns the most recent submissions for a signer, newest
// first.
func (s *Storage) RecentSubmissions(ctx context.Context, signer string, limit int) ([]SubmissionRecord, error) {
	if s == nil {
		return nil, fmt.Errorf("storage not configured")
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, signer, asset_in, asset_out, amount_in, amount_out, fee, nonce, outcome, detail, received_at
        FROM swap_submissions
        WHERE signer = ?
        ORDER BY received_at DESC, rowid DESC
        LIMIT ?
    `, strings.TrimSpace(signer), limit)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()
	records := make([]SubmissionRecord, 0)
	for rows.Next() {
		var rec SubmissionRecord
		var received int64
		if err := rows.Scan(&rec.ID, &rec.Signer, &rec.AssetIn, &rec.AssetOut, &rec.AmountIn, &rec.AmountOut, &rec.Fee, &rec.Nonce, &rec.Outcome, &rec.Detail, &received); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		rec.ReceivedAt = time.Unix(received, 0).UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return records, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS swap_submissions (
    id TEXT PRIMARY KEY,
    signer TEXT NOT NULL,
    asset_in TEXT NOT NULL,
    asset_out TEXT NOT NULL,
    amount_in TEXT NOT NULL,
    amount_out TEXT NOT NULL DEFAULT '',
    fee TEXT NOT NULL DEFAULT '',
    nonce INTEGER NOT NULL,
    outcome TEXT NOT NULL,
    detail TEXT NOT NULL DEFAULT '',
    received_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_swap_submissions_signer ON swap_submissions(signer, received_at);
`
