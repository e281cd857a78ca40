// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sink writes result tables out: CSV files for interchange, a
// SQLite database for local querying.
package sink

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/davidrpo/macrofetch/pkg/types"
)

// Sink writes one table to a named destination. For CSV the destination is
// a file path; for SQLite it is a table name.
type Sink interface {
	Write(ctx context.Context, t *types.Table, dest string) error
}

// CSV writes tables as RFC 4180 files, creating parent directories as
// needed. Null cells render empty; dates and timestamps render ISO 8601.
type CSV struct{}

func (CSV) Write(ctx context.Context, t *types.Table, dest string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if dir := filepath.Dir(dest); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(t.Columns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, col := range t.Columns {
			record[i] = types.CellString(row[col])
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("writing %s: %w", dest, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	return f.Close()
}

// SQLite writes tables into a SQLite database, one database table per
// destination name. An existing table of the same name is replaced.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens or creates the database at path.
func NewSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close releases the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Write(ctx context.Context, t *types.Table, dest string) error {
	table := quoteIdent(dest)

	if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
		return fmt.Errorf("dropping %s: %w", dest, err)
	}

	defs := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		defs[i] = quoteIdent(col) + " " + sqliteType(t, col)
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(defs, ", "))
	if _, err := s.db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(t.Columns)), ",")
	insert := fmt.Sprintf("INSERT INTO %s VALUES (%s)", table, placeholders)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(t.Columns))
	for _, row := range t.Rows {
		for i, col := range t.Columns {
			args[i] = sqliteValue(row[col])
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting into %s: %w", dest, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing %s: %w", dest, err)
	}
	return nil
}

// sqliteType picks a column affinity from the first non-null cell.
func sqliteType(t *types.Table, col string) string {
	for _, row := range t.Rows {
		switch row[col].(type) {
		case nil:
			continue
		case float64:
			return "REAL"
		case int64:
			return "INTEGER"
		default:
			return "TEXT"
		}
	}
	return "TEXT"
}

func sqliteValue(cell any) any {
	switch v := cell.(type) {
	case time.Time:
		return types.CellString(v)
	case bool:
		if v {
			return int64(1)
		}
		return int64(0)
	default:
		return cell
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
