package benchmark

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/huggingduck/huggingduck/internal/dataset"
	"github.com/huggingduck/huggingduck/internal/storage"
	"github.com/huggingduck/huggingduck/internal/storage/local"
	"github.com/huggingduck/huggingduck/internal/store"
	"github.com/huggingduck/huggingduck/internal/store/duckdb"
)

func TestPublishedBenchmarkLoadsWithExpectedCounts(t *testing.T) {
	for _, format := range []store.Format{store.FormatCSV, store.FormatParquet} {
		t.Run(string(format), func(t *testing.T) {
			objectStore, err := local.New(t.TempDir())
			if err != nil {
				t.Fatalf("local.New() error = %v", err)
			}
			data, err := NewGenerator(1912).Generate(DefaultPassengers, DefaultDiscrepancies)
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			files, err := data.Files(format)
			if err != nil {
				t.Fatalf("Files() error = %v", err)
			}
			published, err := Publish(context.Background(), objectStore, "owner/titanic", files, nil)
			if err != nil {
				t.Fatalf("Publish() error = %v", err)
			}
			if len(published) != 3 || published[2].Key != "owner/titanic/README.md" {
				t.Fatalf("published = %#v", published)
			}

			db, err := duckdb.Open(context.Background(), "")
			if err != nil {
				t.Fatalf("duckdb.Open() error = %v", err)
			}
			defer func() { _ = db.Close() }()

			loader := &dataset.Loader{Source: dataset.ObjectStoreSource{Store: objectStore}, Store: db}
			tables, err := loader.Load(context.Background(), "owner/titanic")
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			for _, table := range tables {
				if table.RowCount != DefaultPassengers {
					t.Fatalf("%s rows = %d", table.Name, table.RowCount)
				}
			}
			result, err := db.Query(context.Background(), "SELECT COUNT(*) FROM corrected_v1 WHERE is_age_discrepancy = true")
			if err != nil {
				t.Fatalf("Query() error = %v", err)
			}
			if result.Rows[0][0] != int64(DefaultDiscrepancies) {
				t.Fatalf("discrepancies = %#v", result.Rows)
			}
		})
	}
}

func TestPublishStopsAtFirstFailure(t *testing.T) {
	writer := &failingWriter{failAt: 2}
	files := []File{{Key: "a.csv", Data: []byte("a")}, {Key: "b.csv", Data: []byte("b")}}
	published, err := Publish(context.Background(), writer, "d", files, nil)
	if !errors.Is(err, errWriteFailed) {
		t.Fatalf("Publish() error = %v", err)
	}
	if len(published) != 1 || published[0].Key != "d/a.csv" {
		t.Fatalf("published = %#v", published)
	}
}

func TestPublishValidatesArguments(t *testing.T) {
	if _, err := Publish(context.Background(), nil, "d", nil, nil); err == nil {
		t.Fatal("expected writer required error")
	}
	if _, err := Publish(context.Background(), &failingWriter{}, " / ", nil, nil); err == nil {
		t.Fatal("expected dataset id required error")
	}
}

var errWriteFailed = errors.New("write failed")

type failingWriter struct {
	calls  int
	failAt int
}

func (f *failingWriter) Put(_ context.Context, key string, body io.Reader, size int64, _ storage.PutOptions) (storage.ObjectInfo, error) {
	f.calls++
	if f.calls == f.failAt {
		return storage.ObjectInfo{}, errWriteFailed
	}
	_, _ = io.Copy(io.Discard, body)
	return storage.ObjectInfo{Key: key, Size: size}, nil
}
