package storage

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// migrate applies every numbered *.up.sql file newer than the recorded version.
// Each migration runs in its own transaction together with its version record.
func (s *SQLiteStore) migrate(ctx context.Context, fsys fs.FS) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	var currentVersion int
	if err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}
	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		if err := s.applyMigration(ctx, version, string(content)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", name, err)
		}
		s.log.Info("Applied migration %s", name)
	}

	return s.ensureColumns(ctx)
}

func (s *SQLiteStore) applyMigration(ctx context.Context, version int, content string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, content); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
		return err
	}
	return tx.Commit()
}

// columnSpec is a column that older databases may lack
type columnSpec struct {
	table      string
	name       string
	definition string
}

var addedColumns = []columnSpec{
	{"items", "display_offset", "INTEGER NOT NULL DEFAULT 0"},
	{"items", "library_book_id", "INTEGER"},
	{"items", "content_hash", "TEXT"},
	{"items", "source_path", "TEXT"},
	{"items", "page_count", "INTEGER"},
	{"chunks", "display_start", "INTEGER"},
	{"chunks", "display_end", "INTEGER"},
	{"chunks", "display_start_label", "TEXT"},
	{"chunks", "display_end_label", "TEXT"},
}

// ensureColumns brings databases created by earlier ingest tools up to the
// current column set. It only ever adds columns, so it is safe to rerun.
func (s *SQLiteStore) ensureColumns(ctx context.Context) error {
	existing := make(map[string]map[string]bool)
	for _, col := range addedColumns {
		if existing[col.table] == nil {
			names, err := s.tableColumns(ctx, s.db, col.table)
			if err != nil {
				return err
			}
			existing[col.table] = names
		}
		if existing[col.table][col.name] {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", col.table, col.name, col.definition)
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to add column %s.%s: %w", col.table, col.name, err)
		}
		existing[col.table][col.name] = true
		s.log.Info("Added missing column %s.%s", col.table, col.name)
	}

	if _, err := s.db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_items_content_hash ON items(content_hash)"); err != nil {
		return fmt.Errorf("failed to create content hash index: %w", err)
	}
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *SQLiteStore) tableColumns(ctx context.Context, q queryer, table string) (map[string]bool, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("failed to inspect table %s: %w", table, err)
	}
	defer rows.Close()

	names := make(map[string]bool)
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan table info for %s: %w", table, err)
		}
		names[name] = true
	}
	return names, rows.Err()
}

// requiredSchema lists the tables and columns retrieval and labelling depend on
var requiredSchema = []struct {
	table   string
	columns []string
}{
	{"items", []string{"id", "title", "author", "year", "display_offset"}},
	{"chunks", []string{"id", "item_id", "section", "page_start", "page_end", "text", "embedding", "token_count",
		"display_start", "display_end", "display_start_label", "display_end_label"}},
	{"page_map", []string{"item_id", "pdf_page", "display_label", "display_number", "method", "confidence"}},
}

// VerifySchema checks that every required table and column exists
func (s *SQLiteStore) VerifySchema(ctx context.Context) error {
	for _, req := range requiredSchema {
		var found int
		err := s.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", req.table).Scan(&found)
		if err != nil {
			return fmt.Errorf("failed to check table %s: %w", req.table, err)
		}
		if found == 0 {
			return &SchemaError{Table: req.table}
		}
		names, err := s.tableColumns(ctx, s.db, req.table)
		if err != nil {
			return err
		}
		for _, col := range req.columns {
			if !names[col] {
				return &SchemaError{Table: req.table, Column: col}
			}
		}
	}
	return nil
}
