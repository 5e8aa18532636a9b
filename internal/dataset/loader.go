package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/huggingduck/huggingduck/internal/storage"
	"github.com/huggingduck/huggingduck/internal/store"
)

var ErrNameCollision = errors.New("ambiguous table name collision")

// LoadedTable describes one table materialized by a load.
type LoadedTable struct {
	Name     string
	Resource Resource
	RowCount int64
	Bytes    int64
	LoadedAt time.Time
}

type Loader struct {
	Source  Source
	Store   store.Store
	Filters []string
	// WorkDir holds downloaded files while DuckDB reads them. Defaults to os.TempDir().
	WorkDir string
	Logger  *slog.Logger
}

// Load resolves datasetID and creates one table per resource. Tables are
// created with CREATE OR REPLACE, so loading the same dataset twice replaces
// rather than duplicates. Any failure aborts the whole load; the tables
// already replaced before the failure are returned with the error.
func (l *Loader) Load(ctx context.Context, datasetID string) ([]LoadedTable, error) {
	if l.Source == nil {
		return nil, fmt.Errorf("dataset source is required")
	}
	if l.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	datasetID = strings.TrimSpace(datasetID)
	if datasetID == "" {
		return nil, fmt.Errorf("dataset id is required")
	}
	logger := l.logger()

	resources, err := l.Source.ListResources(ctx, datasetID)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, &ResourceNotFoundError{DatasetID: datasetID, Filters: l.Filters, Err: err}
		}
		return nil, fmt.Errorf("list resources for %q: %w", datasetID, err)
	}
	resources = FilterResources(resources, l.Filters)
	for i := range resources {
		if resources[i].DatasetID == "" {
			resources[i].DatasetID = datasetID
		}
	}
	if len(resources) == 0 {
		return nil, &ResourceNotFoundError{DatasetID: datasetID, Filters: l.Filters}
	}

	planned, err := planTables(datasetID, resources)
	if err != nil {
		return nil, err
	}

	workDir, err := os.MkdirTemp(l.WorkDir, "huggingduck-load-")
	if err != nil {
		return nil, fmt.Errorf("create load temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	loaded := make([]LoadedTable, 0, len(planned))
	for index, item := range planned {
		table, err := l.loadOne(ctx, workDir, index, item)
		if err != nil {
			logger.ErrorContext(ctx, "dataset resource load failed",
				slog.String("dataset", datasetID),
				slog.String("resource", item.resource.Path),
				slog.Any("error", err),
			)
			return loaded, err
		}
		logger.InfoContext(ctx, "loaded dataset resource",
			slog.String("dataset", datasetID),
			slog.String("resource", item.resource.Path),
			slog.String("table", table.Name),
			slog.Int64("rows", table.RowCount),
		)
		loaded = append(loaded, table)
	}
	return loaded, nil
}

type plannedTable struct {
	name     string
	resource Resource
}

func planTables(datasetID string, resources []Resource) ([]plannedTable, error) {
	sorted := append([]Resource(nil), resources...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	owners := make(map[string]string, len(sorted))
	planned := make([]plannedTable, 0, len(sorted))
	for _, resource := range sorted {
		name := TableName(resource.Path)
		if previous, ok := owners[name]; ok {
			return nil, &LoadError{
				DatasetID: datasetID,
				Resource:  resource.Path,
				Table:     name,
				Err:       fmt.Errorf("%w: %q and %q", ErrNameCollision, previous, resource.Path),
			}
		}
		owners[name] = resource.Path
		planned = append(planned, plannedTable{name: name, resource: resource})
	}
	return planned, nil
}

func (l *Loader) loadOne(ctx context.Context, workDir string, index int, item plannedTable) (LoadedTable, error) {
	fail := func(err error) (LoadedTable, error) {
		return LoadedTable{}, &LoadError{DatasetID: item.resource.DatasetID, Resource: item.resource.Path, Table: item.name, Err: err}
	}

	reader, err := l.Source.Open(ctx, item.resource)
	if err != nil {
		return fail(fmt.Errorf("open resource: %w", err))
	}
	localPath := filepath.Join(workDir, fmt.Sprintf("%s_%d.%s", item.name, index, item.resource.Format))
	written, err := copyToFile(localPath, reader)
	if err != nil {
		_ = reader.Close()
		return fail(fmt.Errorf("write local file %q: %w", localPath, err))
	}
	if err := reader.Close(); err != nil {
		return fail(fmt.Errorf("close resource: %w", err))
	}
	if written == 0 {
		return fail(fmt.Errorf("resource is empty"))
	}

	if err := l.Store.CreateTable(ctx, item.name, item.resource.Format, localPath); err != nil {
		return fail(err)
	}
	rows, err := l.Store.RowCount(ctx, item.name)
	if err != nil {
		return fail(err)
	}
	return LoadedTable{
		Name:     item.name,
		Resource: item.resource,
		RowCount: rows,
		Bytes:    written,
		LoadedAt: time.Now().UTC(),
	}, nil
}

func copyToFile(path string, reader io.Reader) (int64, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	written, err := io.Copy(file, reader)
	if err != nil {
		_ = file.Close()
		return written, err
	}
	return written, file.Close()
}

func (l *Loader) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
