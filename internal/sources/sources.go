package sources

import (
	"context"
	"fmt"
	"os"

	"github.com/huggingduck/huggingduck/internal/config"
	"github.com/huggingduck/huggingduck/internal/connection"
	"github.com/huggingduck/huggingduck/internal/dataset"
	"github.com/huggingduck/huggingduck/internal/hub"
	"github.com/huggingduck/huggingduck/internal/storage"
	"github.com/huggingduck/huggingduck/internal/storage/local"
	s3store "github.com/huggingduck/huggingduck/internal/storage/s3"
)

// New builds the dataset source selected by cfg.Connection.Source.
func New(ctx context.Context, cfg config.Config) (dataset.Source, error) {
	switch cfg.Connection.Source {
	case config.SourceHub:
		return NewHub(cfg)
	case config.SourceS3:
		objectStore, err := newS3(ctx, cfg, false)
		if err != nil {
			return nil, fmt.Errorf("initialize object store source: %w", err)
		}
		return dataset.ObjectStoreSource{Store: objectStore}, nil
	case config.SourceLocal:
		objectStore, err := local.New(cfg.Local.Root)
		if err != nil {
			return nil, fmt.Errorf("initialize local source: %w", err)
		}
		return dataset.ObjectStoreSource{Store: objectStore}, nil
	default:
		return nil, fmt.Errorf("unsupported dataset source %q", cfg.Connection.Source)
	}
}

// NewObjectWriter returns a writable store for the configured source. The hub
// source is read-only.
func NewObjectWriter(ctx context.Context, cfg config.Config) (storage.ObjectWriter, error) {
	switch cfg.Connection.Source {
	case config.SourceS3:
		objectStore, err := newS3(ctx, cfg, true)
		if err != nil {
			return nil, fmt.Errorf("initialize object store: %w", err)
		}
		return objectStore, nil
	case config.SourceLocal:
		if err := os.MkdirAll(cfg.Local.Root, 0o755); err != nil {
			return nil, fmt.Errorf("create local root: %w", err)
		}
		objectStore, err := local.New(cfg.Local.Root)
		if err != nil {
			return nil, fmt.Errorf("initialize local store: %w", err)
		}
		return objectStore, nil
	default:
		return nil, fmt.Errorf("dataset source %q is not writable", cfg.Connection.Source)
	}
}

func newS3(ctx context.Context, cfg config.Config, autoCreateBucket bool) (*s3store.Store, error) {
	return s3store.New(ctx, s3store.Config{
		Endpoint:         cfg.ObjectStore.Endpoint,
		Region:           cfg.ObjectStore.Region,
		Bucket:           cfg.ObjectStore.Bucket,
		AccessKeyID:      cfg.ObjectStore.AccessKeyID,
		SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
		UseSSL:           cfg.ObjectStore.UseSSL,
		Prefix:           cfg.ObjectStore.Prefix,
		AutoCreateBucket: autoCreateBucket,
	})
}

func NewHub(cfg config.Config) (*hub.Client, error) {
	return hub.New(hub.Config{
		BaseURL:  cfg.Hub.BaseURL,
		Token:    cfg.Hub.Token,
		Revision: cfg.Hub.Revision,
		CacheDir: cfg.Hub.CacheDir,
		Timeout:  cfg.Hub.Timeout,
	})
}

// OpenConnection builds the configured source and loads the configured
// dataset into a new connection.
func OpenConnection(ctx context.Context, cfg config.Config, opts connection.Options) (*connection.Connection, error) {
	source, err := New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	opts.Source = source
	if opts.Name == "" {
		opts.Name = cfg.Connection.Name
	}
	if opts.DatasetID == "" {
		opts.DatasetID = cfg.Connection.Dataset
	}
	if opts.DBPath == "" {
		opts.DBPath = cfg.Connection.DBPath
	}
	if opts.Filters == nil {
		opts.Filters = cfg.Connection.FileFilters
	}
	if opts.DefaultTTL == 0 {
		opts.DefaultTTL = cfg.Connection.QueryTTL
	}
	opts.ForceRecreate = opts.ForceRecreate || cfg.Connection.ForceRecreate
	opts.Verbose = opts.Verbose || cfg.Connection.Verbose
	return connection.Open(ctx, opts)
}
