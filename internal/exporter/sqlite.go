package exporter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "modernc.org/sqlite"

	"stockpipe/internal/config"
	"stockpipe/pkg/contracts/domain"
)

// SQLiteSink mirrors every table into one SQLite database. All tables are
// replaced inside a single transaction, so readers see either the previous
// run or this one.
type SQLiteSink struct {
	path   string
	logger *slog.Logger
}

// NewSQLiteSink creates a SQLite mirror writer
func NewSQLiteSink(paths *config.Paths, logger *slog.Logger) *SQLiteSink {
	return &SQLiteSink{path: paths.SQLiteFile, logger: logger}
}

// Name implements Sink
func (s *SQLiteSink) Name() string { return config.MirrorSQLite }

func (s *SQLiteSink) open() (*sql.DB, error) {
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS ` + config.ViewColumnsTable + ` (
		table_name  TEXT NOT NULL,
		position    INTEGER NOT NULL,
		column_name TEXT NOT NULL,
		column_type TEXT NOT NULL,
		PRIMARY KEY (table_name, position)
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Write implements Sink; the database is a single artifact
func (s *SQLiteSink) Write(ctx context.Context, tables []domain.Dataset) ([]Artifact, []error) {
	db, err := s.open()
	if err != nil {
		return nil, []error{err}
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, []error{fmt.Errorf("begin: %w", err)}
	}
	defer tx.Rollback()

	rows := 0
	for _, ds := range tables {
		if err := replaceTable(ctx, tx, ds); err != nil {
			return nil, []error{fmt.Errorf("%s: %w", ds.TableName(), err)}
		}
		rows += ds.Len()
	}
	if err := tx.Commit(); err != nil {
		return nil, []error{fmt.Errorf("commit: %w", err)}
	}

	s.logger.DebugContext(ctx, "sqlite mirror written", slog.String("file_path", s.path), slog.Int("tables", len(tables)))
	return []Artifact{{Name: config.SQLiteFileName, Format: s.Name(), Path: s.path, Rows: rows}}, nil
}

// Remove implements Sink by dropping the named tables
func (s *SQLiteSink) Remove(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	db, err := s.open()
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, name := range names {
		if err := dropTable(ctx, tx, name); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func replaceTable(ctx context.Context, tx *sql.Tx, ds domain.Dataset) error {
	name := ds.TableName()
	staging := name + "__staging"
	schema := ds.Schema()

	defs := make([]string, len(schema))
	cols := make([]string, len(schema))
	marks := make([]string, len(schema))
	for i, c := range schema {
		defs[i] = quoteIdent(c.Name) + " " + sqlType(c.Type)
		cols[i] = quoteIdent(c.Name)
		marks[i] = "?"
	}

	stmts := []string{
		"DROP TABLE IF EXISTS " + quoteIdent(staging),
		"CREATE TABLE " + quoteIdent(staging) + " (" + strings.Join(defs, ", ") + ")",
	}
	for _, q := range stmts {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return err
		}
	}

	insert, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(staging), strings.Join(cols, ", "), strings.Join(marks, ", ")))
	if err != nil {
		return err
	}
	defer insert.Close()

	args := make([]any, len(schema))
	for i := 0; i < ds.Len(); i++ {
		for j, v := range ds.Cells(i) {
			args[j] = mirrorValue(v, true)
		}
		if _, err := insert.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	if err := dropTable(ctx, tx, name); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "ALTER TABLE "+quoteIdent(staging)+" RENAME TO "+quoteIdent(name)); err != nil {
		return err
	}
	for i, c := range schema {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO "+config.ViewColumnsTable+" (table_name, position, column_name, column_type) VALUES (?, ?, ?, ?)",
			name, i, c.Name, string(c.Type)); err != nil {
			return err
		}
	}
	return nil
}

func dropTable(ctx context.Context, tx *sql.Tx, name string) error {
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(name)); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, "DELETE FROM "+config.ViewColumnsTable+" WHERE table_name = ?", name)
	return err
}

func sqlType(t domain.ColumnType) string {
	switch t {
	case domain.TypeDecimal:
		return "REAL"
	case domain.TypeInteger, domain.TypeBoolean:
		return "INTEGER"
	}
	return "TEXT"
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
