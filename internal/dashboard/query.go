package dashboard

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/huggingduck/huggingduck/internal/auth"
	"github.com/huggingduck/huggingduck/internal/connection"
	"github.com/huggingduck/huggingduck/internal/store"
)

type queryRequest struct {
	SQL        string `json:"sql"`
	TTLSeconds *int   `json:"ttl_seconds"`
}

type queryResponse struct {
	Columns     []string       `json:"columns"`
	ColumnTypes []string       `json:"column_types"`
	Rows        [][]any        `json:"rows"`
	Cached      bool           `json:"cached"`
	Stats       map[string]any `json:"stats"`
}

func handleQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !requireConnection(deps, w, r) {
		return
	}
	if err := requireRole(r, auth.RoleReader); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var request queryRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid query request body", false, map[string]any{"details": err.Error()})
		return
	}

	if strings.TrimSpace(request.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "sql is required", false, nil)
		return
	}
	if !isAllowedSQL(request.SQL) {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_NOT_ALLOWED", "only a single read-only SELECT/WITH/DESCRIBE/SHOW/SUMMARIZE statement is allowed", false, nil)
		return
	}

	var (
		result connection.QueryResult
		err    error
	)
	if request.TTLSeconds != nil {
		result, err = deps.Connection.QueryTTL(r.Context(), request.SQL, time.Duration(*request.TTLSeconds)*time.Second)
	} else {
		result, err = deps.Connection.Query(r.Context(), request.SQL)
	}
	if err != nil {
		writeConnectionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newQueryResponse(result))
}

func newQueryResponse(result connection.QueryResult) queryResponse {
	types := make([]string, 0, len(result.Columns))
	for _, column := range result.Columns {
		types = append(types, column.Type)
	}
	rows := result.Rows
	if rows == nil {
		rows = [][]any{}
	}
	return queryResponse{
		Columns:     result.ColumnNames(),
		ColumnTypes: types,
		Rows:        rows,
		Cached:      result.Cached,
		Stats: map[string]any{
			"duration_ms": result.Duration.Milliseconds(),
			"row_count":   len(result.Rows),
			"executed_at": result.ExecutedAt,
		},
	}
}

// isAllowedSQL accepts exactly one statement that starts with a read-only
// keyword.
func isAllowedSQL(sqlText string) bool {
	statement, err := store.SingleStatement(sqlText)
	if err != nil {
		return false
	}
	normalized := strings.ToLower(statement)
	for _, prefix := range []string{"select", "with", "describe", "show", "summarize", "from"} {
		if strings.HasPrefix(normalized, prefix) {
			return true
		}
	}
	return false
}
