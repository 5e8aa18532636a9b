package dashboard

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/huggingduck/huggingduck/internal/auth"
	"github.com/huggingduck/huggingduck/internal/connection"
	"github.com/huggingduck/huggingduck/internal/dataset"
)

func handleDatasetHealth(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !requireConnection(deps, w, r) || !requireReader(w, r) {
		return
	}
	expected := make([]string, 0)
	for _, table := range r.URL.Query()["table"] {
		for _, name := range strings.Split(table, ",") {
			if name = strings.TrimSpace(name); name != "" {
				expected = append(expected, name)
			}
		}
	}
	report := deps.Connection.Health(r.Context(), expected...)
	status := http.StatusOK
	if !report.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"connection": deps.Connection.Name(),
		"dataset":    deps.Connection.DatasetID(),
		"healthy":    report.Healthy,
		"tables":     report.Tables,
		"missing":    report.Missing,
		"checked_at": report.CheckedAt,
	})
}

func handleListTables(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !requireConnection(deps, w, r) || !requireReader(w, r) {
		return
	}
	rowCounts := make(map[string]int64)
	for _, record := range deps.Connection.LoadRecords() {
		rowCounts[record.TableName] = record.RowCount
	}
	tables := deps.Connection.Tables()
	items := make([]map[string]any, 0, len(tables))
	for _, table := range tables {
		items = append(items, map[string]any{
			"table_name": table,
			"row_count":  rowCounts[table],
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"connection": deps.Connection.Name(),
		"dataset":    deps.Connection.DatasetID(),
		"tables":     items,
	})
}

func handleTableSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !requireConnection(deps, w, r) || !requireReader(w, r) {
		return
	}
	table := strings.TrimSpace(r.PathValue("table"))
	columns, err := deps.Connection.Columns(r.Context(), table)
	if err != nil {
		writeConnectionError(w, r, err)
		return
	}
	items := make([]map[string]any, 0, len(columns))
	schema := make(map[string]string, len(columns))
	for _, column := range columns {
		schema[column.Name] = column.Type
		items = append(items, map[string]any{
			"name":     column.Name,
			"type":     column.Type,
			"nullable": column.Nullable,
			"position": column.Position,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"table_name": table,
		"schema":     schema,
		"columns":    items,
	})
}

func handleTablePreview(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !requireConnection(deps, w, r) || !requireReader(w, r) {
		return
	}
	table := strings.TrimSpace(r.PathValue("table"))
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer", false, map[string]any{"limit": raw})
			return
		}
		limit = parsed
	}
	result, err := deps.Connection.Preview(r.Context(), table, limit)
	if err != nil {
		writeConnectionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newQueryResponse(result))
}

func handleListLoads(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !requireConnection(deps, w, r) || !requireReader(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"connection": deps.Connection.Name(),
		"dataset":    deps.Connection.DatasetID(),
		"loads":      deps.Connection.LoadRecords(),
	})
}

func handleReload(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !requireConnection(deps, w, r) {
		return
	}
	if err := requireRole(r, auth.RoleAdmin); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	if err := deps.Connection.Reload(r.Context()); err != nil {
		writeConnectionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "reloaded",
		"tables": deps.Connection.Tables(),
	})
}

func requireConnection(deps Dependencies, w http.ResponseWriter, r *http.Request) bool {
	if deps.Connection == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CONNECTION_NOT_CONFIGURED", "dataset connection is not configured", false, nil)
		return false
	}
	return true
}

func requireReader(w http.ResponseWriter, r *http.Request) bool {
	if err := requireRole(r, auth.RoleReader); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return false
	}
	return true
}

func writeConnectionError(w http.ResponseWriter, r *http.Request, err error) {
	var unknown *connection.UnknownTableError
	if errors.As(err, &unknown) {
		writeError(r.Context(), w, http.StatusNotFound, "UNKNOWN_TABLE", "table was not loaded", false, map[string]any{
			"table":   unknown.Table,
			"details": err.Error(),
		})
		return
	}
	var queryErr *connection.QueryError
	if errors.As(err, &queryErr) {
		writeError(r.Context(), w, http.StatusBadRequest, "QUERY_FAILED", "query execution failed", false, map[string]any{"details": err.Error()})
		return
	}
	var resourceErr *dataset.ResourceNotFoundError
	if errors.As(err, &resourceErr) {
		writeError(r.Context(), w, http.StatusNotFound, "DATASET_NOT_FOUND", "dataset has no loadable resources", false, map[string]any{"details": err.Error()})
		return
	}
	var loadErr *dataset.LoadError
	if errors.As(err, &loadErr) {
		writeError(r.Context(), w, http.StatusBadGateway, "LOAD_FAILED", "dataset resource failed to load", true, map[string]any{
			"resource": loadErr.Resource,
			"details":  err.Error(),
		})
		return
	}
	writeError(r.Context(), w, http.StatusInternalServerError, "INTERNAL", "request failed", true, map[string]any{"details": err.Error()})
}
