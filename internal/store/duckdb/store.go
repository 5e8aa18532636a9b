package duckdb

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/huggingduck/huggingduck/internal/store"
)

var missingTablePattern = regexp.MustCompile(`Table with name "?([^"\s]+)"? does not exist`)

// Store is a store.Store backed by an embedded DuckDB database.
type Store struct {
	db *sql.DB
}

// Open opens DuckDB at path; an empty path or ":memory:" is in-memory.
func Open(ctx context.Context, path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == ":memory:" {
		path = ""
	}
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}
	return &Store{db: db}, nil
}

func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) CreateTable(ctx context.Context, table string, format store.Format, localPath string) error {
	if strings.TrimSpace(table) == "" {
		return fmt.Errorf("table name is required")
	}
	var reader string
	switch format {
	case store.FormatCSV:
		reader = fmt.Sprintf(`read_csv(%s, header=true, delim=',', quote='"', strict_mode=true, null_padding=false)`, quoteString(localPath))
		if err := s.checkCSVWidth(ctx, table, reader, localPath); err != nil {
			return err
		}
	case store.FormatParquet:
		reader = fmt.Sprintf("read_parquet(%s)", quoteString(localPath))
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
	createSQL := fmt.Sprintf(`CREATE OR REPLACE TABLE %s AS SELECT * FROM %s`, quoteIdent(table), reader)
	if _, err := s.db.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("create table %q: %w", table, err)
	}
	return nil
}

// checkCSVWidth rejects a file whose sniffed column count differs from its
// header row, before any existing table is replaced.
func (s *Store) checkCSVWidth(ctx context.Context, table, source, localPath string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open csv %q: %w", localPath, err)
	}
	defer func() { _ = file.Close() }()

	headerReader := csv.NewReader(file)
	headerReader.FieldsPerRecord = -1
	headerReader.LazyQuotes = true
	header, err := headerReader.Read()
	if err != nil {
		return fmt.Errorf("read csv header of %q: %w", localPath, err)
	}
	var columns int
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM (DESCRIBE SELECT * FROM %s)`, source)).Scan(&columns); err != nil {
		return fmt.Errorf("create table %q: %w", table, err)
	}
	if columns != len(header) {
		return fmt.Errorf("create table %q: csv header has %d fields but %d columns were read", table, len(header), columns)
	}
	return nil
}

func (s *Store) DropTable(ctx context.Context, table string) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, quoteIdent(table))); err != nil {
		return fmt.Errorf("drop table %q: %w", table, err)
	}
	return nil
}

func (s *Store) ListTables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tables := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return tables, nil
}

func (s *Store) RowCount(ctx context.Context, table string) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, quoteIdent(table))).Scan(&count); err != nil {
		return 0, mapError(fmt.Errorf("count rows in %q: %w", table, err))
	}
	return count, nil
}

func (s *Store) Columns(ctx context.Context, table string) ([]store.Column, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT column_name, data_type, is_nullable, ordinal_position
FROM information_schema.columns
WHERE table_schema = current_schema() AND table_name = ?
ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns := make([]store.Column, 0)
	for rows.Next() {
		var column store.Column
		var nullable string
		if err := rows.Scan(&column.Name, &column.Type, &nullable, &column.Position); err != nil {
			return nil, fmt.Errorf("scan column metadata: %w", err)
		}
		column.Nullable = nullable == "YES"
		columns = append(columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column metadata: %w", err)
	}
	if len(columns) == 0 {
		return nil, &store.MissingTableError{Table: table, Err: errors.New("no columns found")}
	}
	return columns, nil
}

// Query runs one statement inside a transaction that is always rolled
// back, so statements that write leave the loaded tables untouched.
func (s *Store) Query(ctx context.Context, sqlText string) (store.Result, error) {
	sqlText, err := store.SingleStatement(sqlText)
	if err != nil {
		return store.Result{}, err
	}

	start := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Result{}, fmt.Errorf("begin query transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, sqlText)
	if err != nil {
		return store.Result{}, mapError(fmt.Errorf("execute query: %w", err))
	}
	defer func() { _ = rows.Close() }()

	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return store.Result{}, fmt.Errorf("query columns: %w", err)
	}
	columns := make([]store.Column, 0, len(columnTypes))
	for index, columnType := range columnTypes {
		nullable, _ := columnType.Nullable()
		columns = append(columns, store.Column{
			Name:     columnType.Name(),
			Type:     columnType.DatabaseTypeName(),
			Nullable: nullable,
			Position: index + 1,
		})
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return store.Result{}, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return store.Result{}, mapError(fmt.Errorf("iterate rows: %w", err))
	}

	return store.Result{
		Columns:  columns,
		Rows:     resultRows,
		Duration: time.Since(start),
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if match := missingTablePattern.FindStringSubmatch(err.Error()); match != nil {
		return &store.MissingTableError{Table: match[1], Err: err}
	}
	return err
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteString(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}
