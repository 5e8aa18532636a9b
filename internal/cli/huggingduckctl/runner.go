package huggingduckctl

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	// ClearCache removes a dataset's local download cache. clear-cache fails when nil.
	ClearCache func(datasetID string) error
	Stdout     io.Writer
	Stderr     io.Writer
}

type request struct {
	method string
	path   string
	body   []byte
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("huggingduckctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8501"), "huggingduck dashboard API base URL")
	apiKey := fs.String("api-key", defaults.APIKey, "API key for authenticated requests")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 30*time.Second), "HTTP timeout (e.g. 10s)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	command := strings.TrimSpace(fs.Arg(0))
	if command == "clear-cache" {
		return runClearCache(fs.Args()[1:], defaults.ClearCache, stdout, stderr)
	}

	req, err := buildRequest(command, fs.Args()[1:], stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%v\n\n", err)
		writeUsage(stderr)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}
	endpoint := strings.TrimRight(*baseURL, "/") + req.path
	code, responseBody, err := doRequest(ctx, client, req.method, endpoint, *apiKey, req.body)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}

	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}

	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(stdout, pretty)
		return 0
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(stdout, string(responseBody))
	}
	return 0
}

func buildRequest(command string, args []string, stderr io.Writer) (request, error) {
	switch command {
	case "health":
		return request{method: http.MethodGet, path: "/v1/health"}, nil
	case "ready":
		return request{method: http.MethodGet, path: "/v1/ready"}, nil
	case "tables":
		return request{method: http.MethodGet, path: "/v1/tables"}, nil
	case "loads":
		return request{method: http.MethodGet, path: "/v1/loads"}, nil
	case "reload":
		return request{method: http.MethodPost, path: "/v1/reload"}, nil
	case "dataset-health":
		query := url.Values{}
		for _, table := range args {
			query.Add("table", table)
		}
		path := "/v1/datasets/health"
		if len(query) > 0 {
			path += "?" + query.Encode()
		}
		return request{method: http.MethodGet, path: path}, nil
	case "schema":
		if len(args) != 1 {
			return request{}, fmt.Errorf("schema requires exactly one table name")
		}
		return request{method: http.MethodGet, path: "/v1/tables/" + url.PathEscape(args[0]) + "/schema"}, nil
	case "preview":
		sub := flag.NewFlagSet("preview", flag.ContinueOnError)
		sub.SetOutput(stderr)
		limit := sub.Int("limit", 10, "maximum rows to return")
		if err := sub.Parse(args); err != nil {
			return request{}, err
		}
		if sub.NArg() != 1 {
			return request{}, fmt.Errorf("preview requires exactly one table name")
		}
		return request{
			method: http.MethodGet,
			path:   "/v1/tables/" + url.PathEscape(sub.Arg(0)) + "/preview?limit=" + strconv.Itoa(*limit),
		}, nil
	case "query":
		sub := flag.NewFlagSet("query", flag.ContinueOnError)
		sub.SetOutput(stderr)
		ttl := sub.Duration("ttl", -1, "cache duration for this query (0 disables caching; default uses the server setting)")
		if err := sub.Parse(args); err != nil {
			return request{}, err
		}
		sqlText := strings.TrimSpace(strings.Join(sub.Args(), " "))
		if sqlText == "" {
			return request{}, fmt.Errorf("query requires SQL text")
		}
		payload := map[string]any{"sql": sqlText}
		if *ttl >= 0 {
			payload["ttl_seconds"] = int(ttl.Seconds())
		}
		body, err := json.Marshal(payload)
		if err != nil {
			return request{}, fmt.Errorf("encode query request: %w", err)
		}
		return request{method: http.MethodPost, path: "/v1/query", body: body}, nil
	default:
		return request{}, fmt.Errorf("unknown command %q", command)
	}
}

func runClearCache(args []string, clear func(string) error, stdout, stderr io.Writer) int {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		_, _ = fmt.Fprintln(stderr, "clear-cache requires exactly one dataset id")
		return 2
	}
	if clear == nil {
		_, _ = fmt.Fprintln(stderr, "clear-cache is not available: no download cache configured")
		return 1
	}
	if err := clear(args[0]); err != nil {
		_, _ = fmt.Fprintf(stderr, "clear cache failed: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(stdout, "cleared download cache for %s\n", args[0])
	return 0
}

func doRequest(ctx context.Context, client *http.Client, method, url, apiKey string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(apiKey) != "" {
		req.Header.Set("X-API-Key", strings.TrimSpace(apiKey))
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, responseBody, nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: huggingduckctl [flags] <command> [args]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health                      GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready                       GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  dataset-health [table...]   GET /v1/datasets/health")
	_, _ = fmt.Fprintln(w, "  tables                      GET /v1/tables")
	_, _ = fmt.Fprintln(w, "  schema <table>              GET /v1/tables/{table}/schema")
	_, _ = fmt.Fprintln(w, "  preview [-limit n] <table>  GET /v1/tables/{table}/preview")
	_, _ = fmt.Fprintln(w, "  loads                       GET /v1/loads")
	_, _ = fmt.Fprintln(w, "  query [-ttl d] <sql>        POST /v1/query")
	_, _ = fmt.Fprintln(w, "  reload                      POST /v1/reload")
	_, _ = fmt.Fprintln(w, "  clear-cache <dataset>       remove the local hub download cache")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
