// Package sqlite provides a SQLite-backed token ledger.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// Ledger persists emitted tokens in SQLite so duplicates can be audited across batches.
type Ledger struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite ledger and applies the schema.
func Open(path string) (*Ledger, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Ledger{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (l *Ledger) Close() error {
	if l == nil || l.sqlDB == nil {
		return nil
	}
	return l.sqlDB.Close()
}

// Record upserts one emitted token.
func (l *Ledger) Record(ctx context.Context, entry ports.LedgerEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(entry.BatchID) == "" {
		return fmt.Errorf("batch id is required")
	}
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := l.sqlDB.ExecContext(
		ctx,
		`INSERT INTO tokens (batch_id, token_id, combo_key, image, attempts, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (batch_id, token_id) DO UPDATE SET
		   combo_key = excluded.combo_key,
		   image = excluded.image,
		   attempts = excluded.attempts,
		   created_at = excluded.created_at`,
		entry.BatchID,
		entry.TokenID,
		string(entry.Key),
		entry.Image,
		entry.Attempts,
		toMillis(createdAt),
	)
	if err != nil {
		return fmt.Errorf("record token %d: %w", entry.TokenID, err)
	}
	return nil
}

// Entries lists the tokens of a batch ordered by id.
func (l *Ledger) Entries(ctx context.Context, batchID string) ([]ports.LedgerEntry, error) {
	rows, err := l.sqlDB.QueryContext(
		ctx,
		`SELECT batch_id, token_id, combo_key, image, attempts, created_at
		 FROM tokens WHERE batch_id = ? ORDER BY token_id`,
		batchID,
	)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []ports.LedgerEntry{}
	for rows.Next() {
		var (
			e       ports.LedgerEntry
			key     string
			created int64
		)
		if err := rows.Scan(&e.BatchID, &e.TokenID, &key, &e.Image, &e.Attempts, &created); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Key = domain.ComboKey(key)
		e.CreatedAt = fromMillis(created)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// Duplicates groups token ids that share a non-empty ComboKey across all batches.
func (l *Ledger) Duplicates(ctx context.Context) ([]ports.DuplicateGroup, error) {
	rows, err := l.sqlDB.QueryContext(
		ctx,
		`SELECT combo_key, token_id FROM tokens
		 WHERE combo_key IN (
		   SELECT combo_key FROM tokens
		   WHERE combo_key <> ''
		   GROUP BY combo_key HAVING COUNT(*) > 1
		 )
		 ORDER BY combo_key, token_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query duplicates: %w", err)
	}
	defer rows.Close()

	var groups []ports.DuplicateGroup
	for rows.Next() {
		var (
			key string
			id  int64
		)
		if err := rows.Scan(&key, &id); err != nil {
			return nil, fmt.Errorf("scan duplicate: %w", err)
		}
		if n := len(groups); n == 0 || groups[n-1].Key != domain.ComboKey(key) {
			groups = append(groups, ports.DuplicateGroup{Key: domain.ComboKey(key)})
		}
		last := &groups[len(groups)-1]
		last.TokenIDs = append(last.TokenIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate duplicates: %w", err)
	}
	return groups, nil
}
