package connection

import (
	"fmt"
	"strings"
)

// UnknownTableError reports a table that was not created by the loader.
type UnknownTableError struct {
	Table string
	Err   error
}

func (e *UnknownTableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("unknown table %q", e.Table)
	}
	return fmt.Sprintf("unknown table %q: %v", e.Table, e.Err)
}

func (e *UnknownTableError) Unwrap() error {
	return e.Err
}

// QueryError wraps the engine error for a failed query verbatim.
type QueryError struct {
	SQL string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed: %v (sql=%q)", e.Err, abbreviate(e.SQL, 200))
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

func abbreviate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if len(value) <= limit {
		return value
	}
	return value[:limit] + "..."
}
