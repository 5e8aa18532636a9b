package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/huggingduck/huggingduck/internal/observability"
	"github.com/huggingduck/huggingduck/internal/store"
)

const (
	defaultPreviewLimit = 10
	maxPreviewLimit     = 1000
)

// Query runs sqlText with the connection's default cache duration.
func (c *Connection) Query(ctx context.Context, sqlText string) (QueryResult, error) {
	return c.QueryTTL(ctx, sqlText, c.defaultTTL)
}

// QueryTTL runs sqlText, returning a result cached under (sqlText, ttl) when
// one is still fresh. A ttl <= 0 always executes and caches nothing.
func (c *Connection) QueryTTL(ctx context.Context, sqlText string, ttl time.Duration) (QueryResult, error) {
	if err := c.ensureOpen(); err != nil {
		return QueryResult{}, err
	}
	if _, err := store.SingleStatement(sqlText); err != nil {
		observability.IncrementQueryFailed(c.metrics)
		return QueryResult{}, &QueryError{SQL: sqlText, Err: err}
	}
	if ttl <= 0 {
		return c.execute(ctx, sqlText)
	}

	key := CacheKey{SQL: sqlText, TTL: ttl}
	if cached, ok := c.cache.Get(key, c.now()); ok {
		observability.IncrementQueryCached(c.metrics)
		cached.Cached = true
		return cached, nil
	}

	value, err, _ := c.group.Do(fmt.Sprintf("%d\x00%s", ttl, sqlText), func() (any, error) {
		if cached, ok := c.cache.Get(key, c.now()); ok {
			cached.Cached = true
			return cached, nil
		}
		result, err := c.execute(ctx, sqlText)
		if err != nil {
			return nil, err
		}
		c.cache.Set(key, result, c.now(), result.ExecutedAt.Add(ttl))
		return result, nil
	})
	if err != nil {
		return QueryResult{}, err
	}
	return value.(QueryResult), nil
}

// Preview returns up to limit rows of a loaded table.
func (c *Connection) Preview(ctx context.Context, table string, limit int) (QueryResult, error) {
	if !c.hasTable(table) {
		return QueryResult{}, &UnknownTableError{Table: table}
	}
	if limit <= 0 {
		limit = defaultPreviewLimit
	}
	if limit > maxPreviewLimit {
		limit = maxPreviewLimit
	}
	return c.Query(ctx, fmt.Sprintf(`SELECT * FROM "%s" LIMIT %d`, strings.ReplaceAll(table, `"`, `""`), limit))
}

func (c *Connection) execute(ctx context.Context, sqlText string) (QueryResult, error) {
	executedAt := c.now()

	c.storeMu.Lock()
	result, err := c.store.Query(ctx, sqlText)
	c.storeMu.Unlock()
	if err != nil {
		observability.IncrementQueryFailed(c.metrics)
		var missing *store.MissingTableError
		if errors.As(err, &missing) {
			err = &UnknownTableError{Table: missing.Table, Err: err}
		}
		c.logger.WarnContext(ctx, "query failed", slog.String("sql", abbreviate(sqlText, 200)), slog.Any("error", err))
		return QueryResult{}, &QueryError{SQL: sqlText, Err: err}
	}

	observability.ObserveQueryExecuted(c.metrics, result.Duration)
	level := slog.LevelDebug
	if c.verbose {
		level = slog.LevelInfo
	}
	c.logger.Log(ctx, level, "query executed",
		slog.String("sql", abbreviate(sqlText, 200)),
		slog.Int("rows", len(result.Rows)),
		slog.Duration("duration", result.Duration),
	)
	return QueryResult{
		Columns:    result.Columns,
		Rows:       result.Rows,
		Duration:   result.Duration,
		ExecutedAt: executedAt,
	}, nil
}

// ColumnNames returns the result's column names in order.
func (r QueryResult) ColumnNames() []string {
	return store.Result{Columns: r.Columns}.ColumnNames()
}
