package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"ScholarshipImporter/internal/ports"
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const headerRow = 1

// insertBatchSize keeps each INSERT well under the bind variable limits of
// SQLite (32766) and Postgres (65535) at three variables per row.
const insertBatchSize = 500

// ErrSheetNotFound is returned for operations on a sheet that was never ensured.
var ErrSheetNotFound = errors.New("sheet not found")

//go:embed schema.sql
var schema string

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore persists sheets as JSON-encoded rows in a relational database.
type SQLStore struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var _ ports.SheetStore = (*SQLStore)(nil)

// Open connects to dsn with driver and applies the schema.
func Open(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	store, err := NewSQLStore(db, driver)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLStore wraps an existing connection pool.
func NewSQLStore(db *sql.DB, driver string) (*SQLStore, error) {
	var format sq.PlaceholderFormat
	switch driver {
	case DriverPostgres:
		format = sq.Dollar
	case DriverSQLite:
		format = sq.Question
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}
	return &SQLStore{db: db, sb: sq.StatementBuilder.PlaceholderFormat(format)}, nil
}

// Migrate creates the sheet tables when missing.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// EnsureSheet creates sheet with header as row 1 when absent.
func (s *SQLStore) EnsureSheet(ctx context.Context, sheet string, header []string, hidden bool) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ok, err := s.exists(ctx, tx, sheet)
	if err != nil {
		return false, err
	}
	if ok {
		return false, nil
	}

	query, args, err := s.sb.Insert("sheets").Columns("name", "hidden").Values(sheet, hidden).ToSql()
	if err != nil {
		return false, fmt.Errorf("build insert sheet: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return false, fmt.Errorf("insert sheet %s: %w", sheet, err)
	}

	if len(header) > 0 {
		if err := s.insertRows(ctx, tx, sheet, headerRow, [][]string{header}); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

// Header returns row 1 of sheet, or nil when the sheet is empty.
func (s *SQLStore) Header(ctx context.Context, sheet string) ([]string, error) {
	if err := s.mustExist(ctx, sheet); err != nil {
		return nil, err
	}

	query, args, err := s.sb.Select("cells").From("sheet_rows").
		Where(sq.Eq{"sheet": sheet, "row_index": headerRow}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select header: %w", err)
	}

	var raw string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select header %s: %w", sheet, err)
	}
	return decodeCells(raw)
}

// WriteHeader upserts row 1 of sheet.
func (s *SQLStore) WriteHeader(ctx context.Context, sheet string, header []string) error {
	if err := s.mustExist(ctx, sheet); err != nil {
		return err
	}

	cells, err := encodeCells(header)
	if err != nil {
		return err
	}
	query, args, err := s.sb.Insert("sheet_rows").
		Columns("sheet", "row_index", "cells").
		Values(sheet, headerRow, cells).
		Suffix("ON CONFLICT (sheet, row_index) DO UPDATE SET cells = EXCLUDED.cells").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert header: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert header %s: %w", sheet, err)
	}
	return nil
}

// Rows returns every row after the header ordered by position.
func (s *SQLStore) Rows(ctx context.Context, sheet string) ([][]string, error) {
	if err := s.mustExist(ctx, sheet); err != nil {
		return nil, err
	}

	query, args, err := s.sb.Select("cells").From("sheet_rows").
		Where(sq.Eq{"sheet": sheet}).
		Where(sq.Gt{"row_index": headerRow}).
		OrderBy("row_index").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select rows: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query rows %s: %w", sheet, err)
	}

	var result [][]string
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan row: %w", err)
		}
		cells, err := decodeCells(raw)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		result = append(result, cells)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}
	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}
	return result, nil
}

// AppendRows writes rows after the last populated row in one transaction.
func (s *SQLStore) AppendRows(ctx context.Context, sheet string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ok, err := s.exists(ctx, tx, sheet)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("sheet %q: %w", sheet, ErrSheetNotFound)
	}

	query, args, err := s.sb.Select("COALESCE(MAX(row_index), 0)").From("sheet_rows").
		Where(sq.Eq{"sheet": sheet}).ToSql()
	if err != nil {
		return fmt.Errorf("build select last row: %w", err)
	}
	var last int64
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&last); err != nil {
		return fmt.Errorf("select last row %s: %w", sheet, err)
	}

	if err := s.insertRows(ctx, tx, sheet, last+1, rows); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ReplaceRows deletes every data row of sheet and writes rows in their place.
func (s *SQLStore) ReplaceRows(ctx context.Context, sheet string, rows [][]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ok, err := s.exists(ctx, tx, sheet)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("sheet %q: %w", sheet, ErrSheetNotFound)
	}

	query, args, err := s.sb.Delete("sheet_rows").
		Where(sq.Eq{"sheet": sheet}).
		Where(sq.Gt{"row_index": headerRow}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete rows: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete rows %s: %w", sheet, err)
	}

	if len(rows) > 0 {
		if err := s.insertRows(ctx, tx, sheet, headerRow+1, rows); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Hidden reports whether sheet is flagged hidden.
func (s *SQLStore) Hidden(ctx context.Context, sheet string) (bool, error) {
	query, args, err := s.sb.Select("hidden").From("sheets").Where(sq.Eq{"name": sheet}).ToSql()
	if err != nil {
		return false, fmt.Errorf("build select hidden: %w", err)
	}
	var hidden bool
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&hidden)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("sheet %q: %w", sheet, ErrSheetNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("select hidden %s: %w", sheet, err)
	}
	return hidden, nil
}

func (s *SQLStore) insertRows(ctx context.Context, tx *sql.Tx, sheet string, start int64, rows [][]string) error {
	for offset := 0; offset < len(rows); offset += insertBatchSize {
		end := min(offset+insertBatchSize, len(rows))

		insert := s.sb.Insert("sheet_rows").Columns("sheet", "row_index", "cells")
		for i, row := range rows[offset:end] {
			cells, err := encodeCells(row)
			if err != nil {
				return err
			}
			insert = insert.Values(sheet, start+int64(offset+i), cells)
		}

		query, args, err := insert.ToSql()
		if err != nil {
			return fmt.Errorf("build insert rows: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert rows %s: %w", sheet, err)
		}
	}
	return nil
}

func (s *SQLStore) mustExist(ctx context.Context, sheet string) error {
	ok, err := s.exists(ctx, s.db, sheet)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("sheet %q: %w", sheet, ErrSheetNotFound)
	}
	return nil
}

func (s *SQLStore) exists(ctx context.Context, q queryer, sheet string) (bool, error) {
	query, args, err := s.sb.Select("COUNT(*)").From("sheets").Where(sq.Eq{"name": sheet}).ToSql()
	if err != nil {
		return false, fmt.Errorf("build select sheet: %w", err)
	}
	var count int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("select sheet %s: %w", sheet, err)
	}
	return count > 0, nil
}

func encodeCells(row []string) (string, error) {
	if row == nil {
		row = []string{}
	}
	raw, err := json.Marshal(row)
	if err != nil {
		return "", fmt.Errorf("encode cells: %w", err)
	}
	return string(raw), nil
}

func decodeCells(raw string) ([]string, error) {
	var cells []string
	if err := json.Unmarshal([]byte(raw), &cells); err != nil {
		return nil, fmt.Errorf("decode cells: %w", err)
	}
	return cells, nil
}
