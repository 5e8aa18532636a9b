package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/huggingduck/huggingduck/internal/cli/huggingduckctl"
	"github.com/huggingduck/huggingduck/internal/config"
	"github.com/huggingduck/huggingduck/internal/sources"
)

func main() {
	timeout := parseDurationWithDefault(strings.TrimSpace(os.Getenv("HUGGINGDUCK_CLI_TIMEOUT")), 30*time.Second)
	options := huggingduckctl.Options{
		BaseURL: envOr("HUGGINGDUCK_API_URL", "http://localhost:8501"),
		APIKey:  strings.TrimSpace(os.Getenv("HUGGINGDUCK_API_KEY")),
		Timeout: timeout,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}
	if cfg, err := config.LoadFromEnv("huggingduckctl"); err == nil {
		if client, err := sources.NewHub(cfg); err == nil {
			options.ClearCache = client.ClearCache
		}
	}

	code := huggingduckctl.Run(context.Background(), os.Args[1:], options)
	os.Exit(code)
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parseDurationWithDefault(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid HUGGINGDUCK_CLI_TIMEOUT %q; using %s\n", raw, fallback)
		return fallback
	}
	return parsed
}
