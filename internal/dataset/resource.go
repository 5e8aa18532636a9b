package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/huggingduck/huggingduck/internal/storage"
	"github.com/huggingduck/huggingduck/internal/store"
)

// Resource is one file of a dataset that becomes one table.
type Resource struct {
	DatasetID string
	Path      string
	Size      int64
	Format    store.Format
}

// Source resolves dataset identifiers to resources and streams their bytes.
type Source interface {
	ListResources(ctx context.Context, datasetID string) ([]Resource, error)
	Open(ctx context.Context, resource Resource) (io.ReadCloser, error)
}

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// TableName derives a table name from a resource path: the base name without
// extension, lower-cased, with runs of non-alphanumerics replaced by "_".
func TableName(resourcePath string) string {
	base := path.Base(strings.ReplaceAll(resourcePath, "\\", "/"))
	if ext := path.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	name := nonAlphanumeric.ReplaceAllString(strings.ToLower(base), "_")
	name = strings.Trim(name, "_")
	if name == "" {
		return "t_resource"
	}
	if name[0] >= '0' && name[0] <= '9' {
		name = "t_" + name
	}
	return name
}

// FormatOf returns the table format for a file path based on its extension.
func FormatOf(resourcePath string) (store.Format, bool) {
	switch strings.ToLower(strings.TrimPrefix(path.Ext(resourcePath), ".")) {
	case "csv":
		return store.FormatCSV, true
	case "parquet":
		return store.FormatParquet, true
	default:
		return "", false
	}
}

// FilterResources keeps resources whose extension matches one of filters.
// An empty filter list keeps every loadable resource.
func FilterResources(resources []Resource, filters []string) []Resource {
	wanted := make(map[string]struct{}, len(filters))
	for _, filter := range filters {
		filter = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(filter), "."))
		if filter != "" {
			wanted[filter] = struct{}{}
		}
	}
	out := make([]Resource, 0, len(resources))
	for _, resource := range resources {
		format, ok := FormatOf(resource.Path)
		if !ok {
			continue
		}
		if len(wanted) > 0 {
			if _, ok := wanted[string(format)]; !ok {
				continue
			}
		}
		resource.Format = format
		out = append(out, resource)
	}
	return out
}

// ObjectStoreSource treats a dataset identifier as a key prefix in an object store.
type ObjectStoreSource struct {
	Store storage.ObjectStore
}

func (s ObjectStoreSource) ListResources(ctx context.Context, datasetID string) ([]Resource, error) {
	if s.Store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	objects, err := s.Store.List(ctx, datasetID)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, storage.ErrObjectNotFound
		}
		return nil, fmt.Errorf("list dataset %q: %w", datasetID, err)
	}
	resources := make([]Resource, 0, len(objects))
	for _, object := range objects {
		resources = append(resources, Resource{DatasetID: datasetID, Path: object.Key, Size: object.Size})
	}
	return resources, nil
}

func (s ObjectStoreSource) Open(ctx context.Context, resource Resource) (io.ReadCloser, error) {
	if s.Store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	return s.Store.Get(ctx, resource.Path)
}
