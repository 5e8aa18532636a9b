package connection

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/huggingduck/huggingduck/internal/observability"
)

type HealthReport struct {
	Healthy   bool             `json:"healthy"`
	Tables    map[string]int64 `json:"tables"`
	Missing   []string         `json:"missing,omitempty"`
	CheckedAt time.Time        `json:"checked_at"`
}

// Health reports whether every expected table exists and has rows. With no
// expected names it checks the loaded tables. Failures are reported in the
// returned report, never as an error.
func (c *Connection) Health(ctx context.Context, expected ...string) HealthReport {
	report := HealthReport{
		Tables:    make(map[string]int64),
		Missing:   make([]string, 0),
		CheckedAt: c.now().UTC(),
	}
	if len(expected) == 0 {
		expected = c.Tables()
	}
	if err := c.ensureOpen(); err != nil {
		report.Missing = append(report.Missing, dedupe(expected)...)
		observability.SetUnhealthyTables(c.metrics, len(report.Missing))
		return report
	}

	c.storeMu.Lock()
	present := c.presentTables(ctx)
	unhealthy := 0
	for _, name := range dedupe(expected) {
		if _, ok := present[name]; !ok {
			report.Missing = append(report.Missing, name)
			unhealthy++
			continue
		}
		count, err := c.store.RowCount(ctx, name)
		if err != nil {
			c.logger.WarnContext(ctx, "health row count failed", slog.String("table", name), slog.Any("error", err))
			count = 0
		}
		report.Tables[name] = count
		if count <= 0 {
			unhealthy++
		}
	}
	c.storeMu.Unlock()

	report.Healthy = len(expected) > 0 && unhealthy == 0
	observability.SetUnhealthyTables(c.metrics, unhealthy)
	return report
}

func (c *Connection) presentTables(ctx context.Context) map[string]struct{} {
	present := make(map[string]struct{})
	names, err := c.store.ListTables(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "list tables failed", slog.Any("error", err))
		for _, name := range c.Tables() {
			present[name] = struct{}{}
		}
		return present
	}
	for _, name := range names {
		present[name] = struct{}{}
	}
	return present
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
