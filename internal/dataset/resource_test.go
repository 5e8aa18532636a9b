package dataset

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/huggingduck/huggingduck/internal/storage"
	"github.com/huggingduck/huggingduck/internal/store"
)

func TestTableName(t *testing.T) {
	cases := map[string]string{
		"original.csv":                     "original",
		"data/Corrected-V1.csv":            "corrected_v1",
		"nested/dir/Titanic Survivors.csv": "titanic_survivors",
		"2023_report.parquet":              "t_2023_report",
		"__weird__.csv":                    "weird",
		"---.csv":                          "t_resource",
		`windows\style\Path.CSV`:           "path",
		"archive.tar.csv":                  "archive_tar",
	}
	for input, want := range cases {
		if got := TableName(input); got != want {
			t.Fatalf("TableName(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestFormatOf(t *testing.T) {
	if format, ok := FormatOf("a/B.CSV"); !ok || format != store.FormatCSV {
		t.Fatalf("FormatOf(csv) = %q, %v", format, ok)
	}
	if format, ok := FormatOf("x.parquet"); !ok || format != store.FormatParquet {
		t.Fatalf("FormatOf(parquet) = %q, %v", format, ok)
	}
	if _, ok := FormatOf("README.md"); ok {
		t.Fatal("FormatOf(md) should not be loadable")
	}
}

func TestFilterResources(t *testing.T) {
	resources := []Resource{
		{Path: "a.csv"},
		{Path: "b.parquet"},
		{Path: "README.md"},
		{Path: ".gitattributes"},
	}

	csvOnly := FilterResources(resources, []string{".CSV"})
	if len(csvOnly) != 1 || csvOnly[0].Path != "a.csv" || csvOnly[0].Format != store.FormatCSV {
		t.Fatalf("FilterResources(csv) = %#v", csvOnly)
	}

	all := FilterResources(resources, nil)
	if len(all) != 2 {
		t.Fatalf("FilterResources(nil) = %#v", all)
	}
	if all[1].Format != store.FormatParquet {
		t.Fatalf("parquet format = %q", all[1].Format)
	}

	none := FilterResources(resources, []string{"json"})
	if len(none) != 0 {
		t.Fatalf("FilterResources(json) = %#v", none)
	}
}

func TestObjectStoreSourcePassesNotFoundThrough(t *testing.T) {
	source := ObjectStoreSource{Store: missingStore{}}
	_, err := source.ListResources(context.Background(), "nope")
	if !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("ListResources() error = %v, want ErrObjectNotFound", err)
	}
}

func TestErrorMessagesNameTheDataset(t *testing.T) {
	notFound := &ResourceNotFoundError{DatasetID: "owner/name", Filters: []string{"csv"}}
	if got := notFound.Error(); got == "" || !strings.Contains(got, "owner/name") {
		t.Fatalf("ResourceNotFoundError.Error() = %q", got)
	}
	cause := errors.New("boom")
	loadErr := &LoadError{DatasetID: "owner/name", Resource: "a.csv", Table: "a", Err: cause}
	if !errors.Is(loadErr, cause) {
		t.Fatal("LoadError should unwrap to its cause")
	}
	if !strings.Contains(loadErr.Error(), "a.csv") {
		t.Fatalf("LoadError.Error() = %q", loadErr.Error())
	}
}

type missingStore struct{}

func (missingStore) Get(context.Context, string) (io.ReadCloser, error) {
	return nil, storage.ErrObjectNotFound
}

func (missingStore) Stat(context.Context, string) (storage.ObjectInfo, error) {
	return storage.ObjectInfo{}, storage.ErrObjectNotFound
}

func (missingStore) List(context.Context, string) ([]storage.ObjectInfo, error) {
	return nil, storage.ErrObjectNotFound
}
