package connection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/huggingduck/huggingduck/internal/dataset"
	"github.com/huggingduck/huggingduck/internal/observability"
	"github.com/huggingduck/huggingduck/internal/store"
	"github.com/huggingduck/huggingduck/internal/store/duckdb"
)

const DefaultQueryTTL = time.Hour

type Options struct {
	Name      string
	DatasetID string
	Source    dataset.Source
	// Store receives the tables. When nil a DuckDB store is opened at DBPath.
	Store  store.Store
	DBPath string
	// ForceRecreate reloads the dataset even when DBPath already holds
	// tables from an earlier run.
	ForceRecreate bool
	Filters       []string
	WorkDir       string
	// DefaultTTL is the cache duration used by Query. Zero means DefaultQueryTTL.
	DefaultTTL time.Duration
	Verbose    bool
	Cache      Cache
	Logger     *slog.Logger
	Now        func() time.Time
}

// LoadRecord describes one resource of the last load.
type LoadRecord struct {
	FileName  string    `json:"file_name"`
	FileSize  int64     `json:"file_size"`
	FileType  string    `json:"file_type"`
	RowCount  int64     `json:"row_count"`
	IsLoaded  bool      `json:"is_loaded"`
	TableName string    `json:"table_name"`
	LoadedAt  time.Time `json:"loaded_at"`
}

type QueryResult struct {
	Columns    []store.Column
	Rows       [][]any
	Duration   time.Duration
	ExecutedAt time.Time
	Cached     bool
}

// Connection owns one embedded store, the tables loaded into it and a
// result cache. Calls into the store are serialized.
type Connection struct {
	name       string
	datasetID  string
	store      store.Store
	loader     *dataset.Loader
	defaultTTL time.Duration
	verbose    bool
	cache      Cache
	logger     *slog.Logger
	metrics    observability.Labels
	now        func() time.Time

	storeMu sync.Mutex
	group   singleflight.Group

	stateMu sync.RWMutex
	tables  map[string]dataset.LoadedTable
	records []LoadRecord
	closed  bool
}

// Open loads the dataset into a new store. When DBPath names an existing
// database that already holds tables, those tables are used as they are
// unless ForceRecreate is set. A load failure closes the store and no
// connection is returned.
func Open(ctx context.Context, opts Options) (*Connection, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("dataset source is required")
	}
	if opts.DefaultTTL < 0 {
		return nil, fmt.Errorf("default ttl must not be negative")
	}

	st := opts.Store
	existing := false
	if st == nil {
		existing = databaseFileExists(opts.DBPath)
		opened, err := duckdb.Open(ctx, opts.DBPath)
		if err != nil {
			return nil, err
		}
		st = opened
	}

	conn := &Connection{
		name:       strings.TrimSpace(opts.Name),
		datasetID:  strings.TrimSpace(opts.DatasetID),
		store:      st,
		defaultTTL: opts.DefaultTTL,
		verbose:    opts.Verbose,
		cache:      opts.Cache,
		logger:     opts.Logger,
		now:        opts.Now,
		tables:     make(map[string]dataset.LoadedTable),
	}
	if conn.name == "" {
		conn.name = conn.datasetID
	}
	if conn.defaultTTL == 0 {
		conn.defaultTTL = DefaultQueryTTL
	}
	if conn.cache == nil {
		conn.cache = NewMemoryCache()
	}
	if conn.logger == nil {
		conn.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	loaderLogger := conn.logger.With(slog.String("connection", conn.name))
	conn.logger = loaderLogger.With(slog.String("dataset", conn.datasetID))
	conn.metrics = observability.Labels{Connection: conn.name, Dataset: conn.datasetID}
	if conn.now == nil {
		conn.now = time.Now
	}
	conn.loader = &dataset.Loader{
		Source:  opts.Source,
		Store:   st,
		Filters: opts.Filters,
		WorkDir: opts.WorkDir,
		Logger:  loaderLogger,
	}

	if existing {
		restored, err := conn.restore(ctx)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		if restored > 0 && !opts.ForceRecreate {
			conn.logger.InfoContext(ctx, "using existing database, skipping dataset load",
				slog.String("db_path", opts.DBPath),
				slog.Int("tables", restored),
			)
			return conn, nil
		}
	}
	if err := conn.load(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return conn, nil
}

func databaseFileExists(path string) bool {
	path = strings.TrimSpace(path)
	if path == "" || path == ":memory:" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// restore adopts the tables already present in the store. Their load
// records carry the table name and row count only.
func (c *Connection) restore(ctx context.Context) (int, error) {
	c.storeMu.Lock()
	defer c.storeMu.Unlock()

	names, err := c.store.ListTables(ctx)
	if err != nil {
		return 0, err
	}
	tables := make(map[string]dataset.LoadedTable, len(names))
	records := make([]LoadRecord, 0, len(names))
	for _, name := range names {
		rows, err := c.store.RowCount(ctx, name)
		if err != nil {
			return 0, err
		}
		table := dataset.LoadedTable{Name: name, RowCount: rows}
		tables[name] = table
		records = append(records, recordOf(table))
	}

	c.stateMu.Lock()
	c.tables = tables
	c.records = records
	c.stateMu.Unlock()
	return len(names), nil
}

func (c *Connection) Name() string {
	return c.name
}

func (c *Connection) DatasetID() string {
	return c.datasetID
}

// Reload re-resolves the dataset, replaces its tables, drops tables that
// are no longer part of it and empties the cache. A failed reload may have
// replaced some tables already, so the cache is emptied either way.
func (c *Connection) Reload(ctx context.Context) error {
	if err := c.ensureOpen(); err != nil {
		return err
	}
	err := c.load(ctx)
	c.cache.Clear()
	return err
}

func (c *Connection) load(ctx context.Context) error {
	c.storeMu.Lock()
	defer c.storeMu.Unlock()

	start := time.Now()
	loaded, err := c.loader.Load(ctx, c.datasetID)
	if err != nil {
		observability.ObserveDatasetLoad(c.metrics, 0, 0, time.Since(start), err)
		if len(loaded) > 0 {
			c.mergeLoaded(loaded)
			c.logger.WarnContext(ctx, "dataset load failed after replacing tables",
				slog.Int("replaced", len(loaded)),
				slog.Any("error", err),
			)
		}
		return err
	}

	next := make(map[string]dataset.LoadedTable, len(loaded))
	records := make([]LoadRecord, 0, len(loaded))
	var rows int64
	for _, table := range loaded {
		next[table.Name] = table
		rows += table.RowCount
		records = append(records, recordOf(table))
	}

	c.stateMu.Lock()
	previous := c.tables
	c.tables = next
	c.records = records
	c.stateMu.Unlock()

	for name := range previous {
		if _, ok := next[name]; ok {
			continue
		}
		if err := c.store.DropTable(ctx, name); err != nil {
			c.logger.WarnContext(ctx, "drop stale table failed", slog.String("table", name), slog.Any("error", err))
		}
	}

	observability.ObserveDatasetLoad(c.metrics, len(loaded), rows, time.Since(start), nil)
	c.logger.InfoContext(ctx, "dataset loaded",
		slog.Int("tables", len(loaded)),
		slog.Int64("rows", rows),
		slog.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// mergeLoaded records tables a failed load replaced so that the load
// records match the store. Tables the load never reached keep their
// previous records.
func (c *Connection) mergeLoaded(loaded []dataset.LoadedTable) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	next := make(map[string]dataset.LoadedTable, len(c.tables)+len(loaded))
	for name, table := range c.tables {
		next[name] = table
	}
	records := append([]LoadRecord(nil), c.records...)
	for _, table := range loaded {
		next[table.Name] = table
		record := recordOf(table)
		replaced := false
		for i := range records {
			if records[i].TableName == table.Name {
				records[i] = record
				replaced = true
				break
			}
		}
		if !replaced {
			records = append(records, record)
		}
	}
	c.tables = next
	c.records = records
}

func recordOf(table dataset.LoadedTable) LoadRecord {
	size := table.Resource.Size
	if size <= 0 {
		size = table.Bytes
	}
	return LoadRecord{
		FileName:  table.Resource.Path,
		FileSize:  size,
		FileType:  string(table.Resource.Format),
		RowCount:  table.RowCount,
		IsLoaded:  true,
		TableName: table.Name,
		LoadedAt:  table.LoadedAt,
	}
}

// Tables returns the loaded table names in sorted order.
func (c *Connection) Tables() []string {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()

	names := make([]string, 0, len(c.tables))
	for name := range c.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Connection) LoadRecords() []LoadRecord {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return append([]LoadRecord(nil), c.records...)
}

func (c *Connection) hasTable(table string) bool {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	_, ok := c.tables[table]
	return ok
}

// Close releases the store and discards cached results.
func (c *Connection) Close() error {
	c.stateMu.Lock()
	if c.closed {
		c.stateMu.Unlock()
		return nil
	}
	c.closed = true
	c.stateMu.Unlock()

	c.cache.Clear()
	c.storeMu.Lock()
	defer c.storeMu.Unlock()
	return c.store.Close()
}

var errClosed = errors.New("connection is closed")

func (c *Connection) ensureOpen() error {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	if c.closed {
		return errClosed
	}
	return nil
}
