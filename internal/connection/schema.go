package connection

import (
	"context"
	"errors"

	"github.com/huggingduck/huggingduck/internal/store"
)

// Schema returns the column name to DuckDB type mapping of a loaded table.
func (c *Connection) Schema(ctx context.Context, table string) (map[string]string, error) {
	columns, err := c.Columns(ctx, table)
	if err != nil {
		return nil, err
	}
	schema := make(map[string]string, len(columns))
	for _, column := range columns {
		schema[column.Name] = column.Type
	}
	return schema, nil
}

// Columns returns the ordered columns of a loaded table.
func (c *Connection) Columns(ctx context.Context, table string) ([]store.Column, error) {
	if err := c.ensureOpen(); err != nil {
		return nil, err
	}
	if !c.hasTable(table) {
		return nil, &UnknownTableError{Table: table}
	}

	c.storeMu.Lock()
	columns, err := c.store.Columns(ctx, table)
	c.storeMu.Unlock()
	if err != nil {
		var missing *store.MissingTableError
		if errors.As(err, &missing) {
			return nil, &UnknownTableError{Table: table, Err: err}
		}
		return nil, err
	}
	return columns, nil
}
