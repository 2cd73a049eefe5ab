package embedded

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// docRow is a stored document.
type docRow struct {
	id       string
	text     string
	metadata map[string]any
}

// docTable persists document text and metadata in SQLite so hits can be
// reconstructed after the lexical/vector indexes rank ids.
type docTable struct {
	db *sql.DB
}

const docSchema = `
CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	text       TEXT NOT NULL,
	metadata   TEXT NOT NULL DEFAULT '{}',
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// openDocTable opens (and migrates) the document table. An empty path uses
// an in-memory database.
func openDocTable(path string) (*docTable, error) {
	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open document db: %w", err)
	}
	// A single connection keeps the in-memory database coherent and avoids
	// sqlite write contention on disk.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(docSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create documents table: %w", err)
	}
	return &docTable{db: db}, nil
}

// upsert writes documents, overwriting existing ids.
func (t *docTable) upsert(ctx context.Context, rows []docRow) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO documents (id, text, metadata, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			text = excluded.text,
			metadata = excluded.metadata,
			updated_at = CURRENT_TIMESTAMP`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, row := range rows {
		metadata, err := json.Marshal(row.metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", row.id, err)
		}
		if _, err := stmt.ExecContext(ctx, row.id, row.text, string(metadata)); err != nil {
			return fmt.Errorf("upsert document %s: %w", row.id, err)
		}
	}
	return tx.Commit()
}

// get returns the documents for the given ids, keyed by id. Missing ids are
// simply absent.
func (t *docTable) get(ctx context.Context, ids []string) (map[string]docRow, error) {
	if len(ids) == 0 {
		return map[string]docRow{}, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := t.db.QueryContext(ctx,
		"SELECT id, text, metadata FROM documents WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := make(map[string]docRow, len(ids))
	for rows.Next() {
		var row docRow
		var metadata string
		if err := rows.Scan(&row.id, &row.text, &metadata); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		if err := json.Unmarshal([]byte(metadata), &row.metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata for %s: %w", row.id, err)
		}
		result[row.id] = row
	}
	return result, rows.Err()
}

// delete removes documents by id.
func (t *docTable) delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	if _, err := t.db.ExecContext(ctx,
		"DELETE FROM documents WHERE id IN ("+placeholders+")", args...); err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	return nil
}

// count returns the number of stored documents.
func (t *docTable) count(ctx context.Context) (int, error) {
	var n int
	if err := t.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// close closes the database.
func (t *docTable) close() error {
	return t.db.Close()
}
