package hub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/huggingduck/huggingduck/internal/dataset"
	"github.com/huggingduck/huggingduck/internal/storage"
)

const originalCSV = "passenger_id,age\n1,22\n2,38\n"

func newHubServer(t *testing.T, downloads *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/api/datasets/mjboothaus/titanic-databooth/tree/main", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("recursive") != "true" {
			t.Errorf("recursive query = %q", r.URL.Query().Get("recursive"))
		}
		if r.Header.Get("Authorization") != "Bearer hf_test" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("cursor") == "" {
			w.Header().Set("Link", fmt.Sprintf(`<%s/api/datasets/mjboothaus/titanic-databooth/tree/main?recursive=true&cursor=p2>; rel="next"`, server.URL))
			_, _ = io.WriteString(w, fmt.Sprintf(`[{"type":"directory","path":"data","size":0},{"type":"file","path":"data/original.csv","size":%d}]`, len(originalCSV)))
			return
		}
		_, _ = io.WriteString(w, `[{"type":"file","path":"README.md","size":12}]`)
	})
	mux.HandleFunc("/datasets/mjboothaus/titanic-databooth/resolve/main/data/original.csv", func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(downloads, 1)
		_, _ = io.WriteString(w, originalCSV)
	})
	mux.HandleFunc("/api/datasets/nobody/nothing/tree/main", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"Repository not found"}`, http.StatusNotFound)
	})
	mux.HandleFunc("/api/datasets/broken/hub/tree/main", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	})
	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestListResourcesFollowsPagination(t *testing.T) {
	var downloads int32
	server := newHubServer(t, &downloads)
	client, err := New(Config{BaseURL: server.URL, Token: "hf_test"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	resources, err := client.ListResources(context.Background(), "mjboothaus/titanic-databooth")
	if err != nil {
		t.Fatalf("ListResources() error = %v", err)
	}
	if len(resources) != 2 {
		t.Fatalf("resources = %#v", resources)
	}
	if resources[0].Path != "data/original.csv" || resources[0].Size != int64(len(originalCSV)) {
		t.Fatalf("first resource = %#v", resources[0])
	}
	if resources[1].Path != "README.md" || resources[1].DatasetID != "mjboothaus/titanic-databooth" {
		t.Fatalf("second resource = %#v", resources[1])
	}
}

func TestListResourcesMapsMissingDatasetToNotFound(t *testing.T) {
	var downloads int32
	server := newHubServer(t, &downloads)
	client, err := New(Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = client.ListResources(context.Background(), "nobody/nothing")
	if !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("ListResources() error = %v, want ErrObjectNotFound", err)
	}

	_, err = client.ListResources(context.Background(), "broken/hub")
	if err == nil || errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("ListResources() error = %v, want upstream failure", err)
	}
}

func TestOpenCachesDownloadsAndClearCacheRemovesThem(t *testing.T) {
	var downloads int32
	server := newHubServer(t, &downloads)
	cacheDir := t.TempDir()
	client, err := New(Config{BaseURL: server.URL, Token: "hf_test", CacheDir: cacheDir})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	resource := dataset.Resource{
		DatasetID: "mjboothaus/titanic-databooth",
		Path:      "data/original.csv",
		Size:      int64(len(originalCSV)),
	}

	for i := 0; i < 2; i++ {
		reader, err := client.Open(context.Background(), resource)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		payload, err := io.ReadAll(reader)
		_ = reader.Close()
		if err != nil {
			t.Fatalf("ReadAll() error = %v", err)
		}
		if string(payload) != originalCSV {
			t.Fatalf("payload = %q", payload)
		}
	}
	if got := atomic.LoadInt32(&downloads); got != 1 {
		t.Fatalf("downloads = %d, want 1", got)
	}

	cached := filepath.Join(cacheDir, "datasets--mjboothaus--titanic-databooth", "main", "data", "original.csv")
	if _, err := os.Stat(cached); err != nil {
		t.Fatalf("cached file missing: %v", err)
	}

	if err := client.ClearCache("mjboothaus/titanic-databooth"); err != nil {
		t.Fatalf("ClearCache() error = %v", err)
	}
	if _, err := os.Stat(cached); !os.IsNotExist(err) {
		t.Fatalf("cached file still present: %v", err)
	}

	reader, err := client.Open(context.Background(), resource)
	if err != nil {
		t.Fatalf("Open() after clear error = %v", err)
	}
	_ = reader.Close()
	if got := atomic.LoadInt32(&downloads); got != 2 {
		t.Fatalf("downloads after clear = %d, want 2", got)
	}
}

func TestOpenCachesFilesWithUnusualNames(t *testing.T) {
	bodies := map[string]string{
		"/datasets/owner/name/resolve/main/data/titanic train.csv": "a\n1\n",
		"/datasets/owner/name/resolve/main/_private.csv":           "b\n2\n",
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := bodies[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)

	cacheDir := t.TempDir()
	client, err := New(Config{BaseURL: server.URL, CacheDir: cacheDir})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	cases := map[string]string{
		"data/titanic train.csv": filepath.Join(cacheDir, "datasets--owner--name", "main", "data", "titanic%20train.csv"),
		"_private.csv":           filepath.Join(cacheDir, "datasets--owner--name", "main", "_private.csv"),
	}
	for resourcePath, cached := range cases {
		reader, err := client.Open(context.Background(), dataset.Resource{DatasetID: "owner/name", Path: resourcePath})
		if err != nil {
			t.Fatalf("Open(%q) error = %v", resourcePath, err)
		}
		payload, err := io.ReadAll(reader)
		_ = reader.Close()
		if err != nil {
			t.Fatalf("ReadAll() error = %v", err)
		}
		if string(payload) != bodies["/datasets/owner/name/resolve/main/"+resourcePath] {
			t.Fatalf("Open(%q) payload = %q", resourcePath, payload)
		}
		if _, err := os.Stat(cached); err != nil {
			t.Fatalf("cached file for %q missing: %v", resourcePath, err)
		}
	}
}

func TestOpenRedownloadsWhenCachedSizeDiffers(t *testing.T) {
	var downloads int32
	server := newHubServer(t, &downloads)
	cacheDir := t.TempDir()
	client, err := New(Config{BaseURL: server.URL, CacheDir: cacheDir})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	stale := filepath.Join(cacheDir, "datasets--mjboothaus--titanic-databooth", "main", "data", "original.csv")
	if err := os.MkdirAll(filepath.Dir(stale), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(stale, []byte("truncated"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	reader, err := client.Open(context.Background(), dataset.Resource{
		DatasetID: "mjboothaus/titanic-databooth",
		Path:      "data/original.csv",
		Size:      int64(len(originalCSV)),
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	payload, _ := io.ReadAll(reader)
	_ = reader.Close()
	if string(payload) != originalCSV {
		t.Fatalf("payload = %q", payload)
	}
	if got := atomic.LoadInt32(&downloads); got != 1 {
		t.Fatalf("downloads = %d, want 1", got)
	}
}

func TestParseNextLink(t *testing.T) {
	header := `<https://huggingface.co/api/datasets/a/b/tree/main?cursor=x>; rel="next", <https://huggingface.co/prev>; rel="prev"`
	if got := parseNextLink(header); got != "https://huggingface.co/api/datasets/a/b/tree/main?cursor=x" {
		t.Fatalf("parseNextLink() = %q", got)
	}
	if got := parseNextLink(`<https://huggingface.co/prev>; rel="prev"`); got != "" {
		t.Fatalf("parseNextLink(prev only) = %q", got)
	}
}

func TestClearCacheRejectsInvalidDatasetID(t *testing.T) {
	client, err := New(Config{CacheDir: t.TempDir()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := client.ClearCache("../etc"); err == nil {
		t.Fatal("expected invalid dataset id error")
	}
}
