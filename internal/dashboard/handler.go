package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/huggingduck/huggingduck/internal/auth"
	"github.com/huggingduck/huggingduck/internal/config"
	"github.com/huggingduck/huggingduck/internal/connection"
	"github.com/huggingduck/huggingduck/internal/observability"
	"github.com/huggingduck/huggingduck/internal/store"
)

type ReadinessCheck func(ctx context.Context) error

// Connection is the part of a loaded dataset connection the dashboard serves.
type Connection interface {
	Name() string
	DatasetID() string
	Tables() []string
	LoadRecords() []connection.LoadRecord
	Columns(ctx context.Context, table string) ([]store.Column, error)
	Health(ctx context.Context, expected ...string) connection.HealthReport
	Query(ctx context.Context, sql string) (connection.QueryResult, error)
	QueryTTL(ctx context.Context, sql string, ttl time.Duration) (connection.QueryResult, error)
	Preview(ctx context.Context, table string, limit int) (connection.QueryResult, error)
	Reload(ctx context.Context) error
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Connection        Connection
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	protected := http.NewServeMux()
	protected.HandleFunc("GET /v1/datasets/health", func(w http.ResponseWriter, r *http.Request) {
		handleDatasetHealth(deps, w, r)
	})
	protected.HandleFunc("GET /v1/tables", func(w http.ResponseWriter, r *http.Request) {
		handleListTables(deps, w, r)
	})
	protected.HandleFunc("GET /v1/tables/{table}/schema", func(w http.ResponseWriter, r *http.Request) {
		handleTableSchema(deps, w, r)
	})
	protected.HandleFunc("GET /v1/tables/{table}/preview", func(w http.ResponseWriter, r *http.Request) {
		handleTablePreview(deps, w, r)
	})
	protected.HandleFunc("GET /v1/loads", func(w http.ResponseWriter, r *http.Request) {
		handleListLoads(deps, w, r)
	})
	protected.HandleFunc("POST /v1/query", func(w http.ResponseWriter, r *http.Request) {
		handleQuery(deps, w, r)
	})
	protected.HandleFunc("POST /v1/reload", func(w http.ResponseWriter, r *http.Request) {
		handleReload(deps, w, r)
	})

	var protectedHandler http.Handler = protected
	if cfg.Auth.Required {
		if deps.AuthMiddleware == nil {
			if deps.Logger != nil {
				deps.Logger.Error("auth required but auth middleware missing")
			}
			protectedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
			})
		} else {
			protectedHandler = deps.AuthMiddleware(protectedHandler)
		}
	}
	for _, pattern := range []string{
		"GET /v1/datasets/health",
		"GET /v1/tables",
		"GET /v1/tables/{table}/schema",
		"GET /v1/tables/{table}/preview",
		"GET /v1/loads",
		"POST /v1/query",
		"POST /v1/reload",
	} {
		mux.Handle(pattern, protectedHandler)
	}

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware(observability.Labels{Connection: cfg.Connection.Name, Dataset: cfg.Connection.Dataset}),
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

// CheckConnectionHealthy fails while any loaded table is missing or empty.
func CheckConnectionHealthy(conn Connection) ReadinessCheck {
	return func(ctx context.Context) error {
		if conn == nil {
			return errors.New("dataset connection is not configured")
		}
		report := conn.Health(ctx)
		if !report.Healthy {
			return fmt.Errorf("dataset %q is unhealthy: missing=%v", conn.DatasetID(), report.Missing)
		}
		return nil
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func requireRole(r *http.Request, role string) error {
	return auth.Authorize(r.Context(), role)
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
