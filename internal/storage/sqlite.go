package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"rss_glue/internal/model"
	"rss_glue/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Cache backed by a SQLite database.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Get returns a single document.
func (s *SQLite) Get(ctx context.Context, namespace, key string) (model.Document, bool, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE namespace = ? AND key = ?`, namespace, key,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get document %s/%s: %w", namespace, key, err)
	}

	var doc model.Document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, false, fmt.Errorf("decode document %s/%s: %w", namespace, key, err)
	}
	return doc, true, nil
}

// Set inserts or replaces a document, stamping it with its posted time.
func (s *SQLite) Set(ctx context.Context, namespace, key string, doc model.Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document %s/%s: %w", namespace, key, err)
	}
	mtime := modTime(doc, s.now)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := ensureNamespace(ctx, tx, namespace, s.now()); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents (namespace, key, body, mtime) VALUES (?, ?, ?, ?)
		 ON CONFLICT(namespace, key) DO UPDATE SET body = excluded.body, mtime = excluded.mtime`,
		namespace, key, string(body), mtime.UnixNano(),
	); err != nil {
		return fmt.Errorf("upsert document %s/%s: %w", namespace, key, err)
	}
	return tx.Commit()
}

// Delete removes a document. Deleting a missing key is not an error.
func (s *SQLite) Delete(ctx context.Context, namespace, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE namespace = ? AND key = ?`, namespace, key,
	)
	if err != nil {
		return fmt.Errorf("delete document %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Keys lists document keys newest first.
func (s *SQLite) Keys(ctx context.Context, namespace string, q Query) ([]string, error) {
	where := []string{"namespace = ?", "key != ?"}
	args := []any{namespace, model.MetaKey}
	if !q.Start.IsZero() {
		where = append(where, "mtime >= ?")
		args = append(args, q.Start.UnixNano())
	}
	if !q.End.IsZero() {
		where = append(where, "mtime < ?")
		args = append(args, q.End.UnixNano())
	}

	query := "SELECT key FROM documents WHERE " + strings.Join(where, " AND ") + " ORDER BY mtime DESC, key ASC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query keys %s: %w", namespace, err)
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func ensureNamespace(ctx context.Context, tx *sql.Tx, namespace string, now time.Time) error {
	_, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO namespaces (name, created_at) VALUES (?, ?)`,
		namespace, now.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("create namespace %s: %w", namespace, err)
	}
	return nil
}
