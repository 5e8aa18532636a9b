package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/huggingduck/huggingduck/internal/dataset"
	"github.com/huggingduck/huggingduck/internal/storage"
)

const (
	DefaultBaseURL  = "https://huggingface.co"
	DefaultRevision = "main"
)

var nextLinkPattern = regexp.MustCompile(`<([^>]+)>\s*;\s*rel="?next"?`)

type Config struct {
	BaseURL  string
	Token    string
	Revision string
	// CacheDir is the root of the download cache. Downloads are not cached when empty.
	CacheDir string
	Timeout  time.Duration
}

// Client lists and downloads dataset files from a Hugging Face compatible hub.
type Client struct {
	baseURL  string
	token    string
	revision string
	cacheDir string
	client   *http.Client
}

var _ dataset.Source = (*Client)(nil)

func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse hub base URL: %w", err)
	}
	revision := strings.TrimSpace(cfg.Revision)
	if revision == "" {
		revision = DefaultRevision
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:  baseURL,
		token:    strings.TrimSpace(cfg.Token),
		revision: revision,
		cacheDir: strings.TrimSpace(cfg.CacheDir),
		client:   &http.Client{Timeout: timeout},
	}, nil
}

type treeEntry struct {
	Type string `json:"type"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// ListResources returns every file in the dataset repository at the configured
// revision, following paginated tree listings.
func (c *Client) ListResources(ctx context.Context, datasetID string) ([]dataset.Resource, error) {
	datasetID = strings.Trim(strings.TrimSpace(datasetID), "/")
	if datasetID == "" {
		return nil, fmt.Errorf("dataset id is required")
	}

	next := fmt.Sprintf("%s/api/datasets/%s/tree/%s?recursive=true", c.baseURL, escapeSegments(datasetID), url.PathEscape(c.revision))
	resources := make([]dataset.Resource, 0)
	for next != "" {
		entries, link, err := c.listPage(ctx, next)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if entry.Type != "file" {
				continue
			}
			resources = append(resources, dataset.Resource{DatasetID: datasetID, Path: entry.Path, Size: entry.Size})
		}
		next = link
	}
	return resources, nil
}

func (c *Client) listPage(ctx context.Context, pageURL string) ([]treeEntry, string, error) {
	resp, err := c.get(ctx, pageURL)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = resp.Body.Close() }()

	var entries []treeEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, "", fmt.Errorf("decode dataset tree: %w", err)
	}
	return entries, parseNextLink(resp.Header.Get("Link")), nil
}

// Open returns the resource's bytes, serving them from the download cache when
// a file of the expected size is already present.
func (c *Client) Open(ctx context.Context, resource dataset.Resource) (io.ReadCloser, error) {
	if c.cacheDir == "" {
		resp, err := c.get(ctx, c.resolveURL(resource))
		if err != nil {
			return nil, err
		}
		return resp.Body, nil
	}

	relative, err := storage.BuildCachePath(resource.DatasetID, c.revision, resource.Path)
	if err != nil {
		return nil, err
	}
	cached := filepath.Join(c.cacheDir, filepath.FromSlash(relative))
	if info, err := os.Stat(cached); err == nil && !info.IsDir() && (resource.Size == 0 || info.Size() == resource.Size) {
		return os.Open(cached)
	}
	if err := c.download(ctx, resource, cached); err != nil {
		return nil, err
	}
	return os.Open(cached)
}

func (c *Client) download(ctx context.Context, resource dataset.Resource, target string) error {
	resp, err := c.get(ctx, c.resolveURL(resource))
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".download-*")
	if err != nil {
		return fmt.Errorf("create cache temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("download %q: %w", resource.Path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close cache temp file: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("move download into cache: %w", err)
	}
	return nil
}

// ClearCache removes every cached file of datasetID.
func (c *Client) ClearCache(datasetID string) error {
	if c.cacheDir == "" {
		return nil
	}
	dir, err := storage.DatasetCacheDir(datasetID)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(c.cacheDir, dir)); err != nil {
		return fmt.Errorf("clear cache for %q: %w", datasetID, err)
	}
	return nil
}

func (c *Client) resolveURL(resource dataset.Resource) string {
	return fmt.Sprintf("%s/datasets/%s/resolve/%s/%s",
		c.baseURL,
		escapeSegments(resource.DatasetID),
		url.PathEscape(c.revision),
		escapeSegments(resource.Path),
	)
}

func (c *Client) get(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build hub request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", target, err)
	}
	if resp.StatusCode < 400 {
		return resp, nil
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	statusErr := fmt.Errorf("hub request failed status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	// The hub answers 401 for repositories that do not exist when unauthenticated.
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusUnauthorized {
		return nil, errors.Join(storage.ErrObjectNotFound, statusErr)
	}
	return nil, statusErr
}

func parseNextLink(header string) string {
	if header == "" {
		return ""
	}
	for _, part := range strings.Split(header, ",") {
		if match := nextLinkPattern.FindStringSubmatch(part); match != nil {
			return match[1]
		}
	}
	return ""
}

func escapeSegments(value string) string {
	segments := strings.Split(strings.Trim(value, "/"), "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}
