package store

import (
	"context"
	"fmt"
	"time"
)

type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

type Column struct {
	Name     string
	Type     string
	Nullable bool
	Position int
}

type Result struct {
	Columns  []Column
	Rows     [][]any
	Duration time.Duration
}

// ColumnNames returns the result's column names in order.
func (r Result) ColumnNames() []string {
	names := make([]string, 0, len(r.Columns))
	for _, column := range r.Columns {
		names = append(names, column.Name)
	}
	return names
}

// Store is the embedded analytical database tables are materialized into.
type Store interface {
	CreateTable(ctx context.Context, table string, format Format, localPath string) error
	DropTable(ctx context.Context, table string) error
	ListTables(ctx context.Context) ([]string, error)
	RowCount(ctx context.Context, table string) (int64, error)
	Columns(ctx context.Context, table string) ([]Column, error)
	Query(ctx context.Context, sql string) (Result, error)
	Close() error
}

// MissingTableError is returned when the engine reports a reference to a
// table that does not exist.
type MissingTableError struct {
	Table string
	Err   error
}

func (e *MissingTableError) Error() string {
	return fmt.Sprintf("table %q does not exist: %v", e.Table, e.Err)
}

func (e *MissingTableError) Unwrap() error {
	return e.Err
}
