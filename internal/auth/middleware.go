package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/huggingduck/huggingduck/internal/observability"
)

type contextKey string

const identityKey contextKey = "auth_identity"

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey).(Identity)
	return identity, ok
}

// ForbiddenError is returned when an authenticated caller lacks the role an
// endpoint needs.
type ForbiddenError struct {
	Subject string
	Role    string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("subject %q is missing required role %q", e.Subject, e.Role)
}

// Authorize checks the caller in ctx for role. Requests that passed through
// no auth middleware carry no identity and are allowed.
func Authorize(ctx context.Context, role string) error {
	identity, ok := IdentityFromContext(ctx)
	if !ok || identity.HasRole(role) {
		return nil
	}
	observability.IncrementAuthFailure("forbidden")
	return &ForbiddenError{Subject: identity.Subject, Role: role}
}

// Middleware rejects requests without a valid X-API-Key or bearer token, and
// keys that grant neither dashboard role. Dataset admin calls that change
// state are logged for audit.
func Middleware(logger *slog.Logger, validator APIKeyValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := extractAPIKey(r)
			if apiKey == "" {
				observability.IncrementAuthFailure("missing_key")
				writeAuthError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing API key")
				return
			}

			identity, ok := validator.Validate(r.Context(), apiKey)
			if !ok {
				observability.IncrementAuthFailure("invalid_key")
				if logger != nil {
					logger.WarnContext(r.Context(), "authentication failed",
						slog.String("trace_id", observability.TraceIDFromContext(r.Context())),
						slog.String("path", r.URL.Path),
					)
				}
				writeAuthError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid API key")
				return
			}
			if !identity.HasRole(RoleReader) && !identity.HasRole(RoleAdmin) {
				observability.IncrementAuthFailure("forbidden")
				writeAuthError(w, r, http.StatusForbidden, "FORBIDDEN", "API key grants no dashboard role")
				return
			}

			if logger != nil {
				level := slog.LevelDebug
				if identity.HasRole(RoleAdmin) && r.Method != http.MethodGet && r.Method != http.MethodHead {
					level = slog.LevelInfo
				}
				logger.Log(r.Context(), level, "request authenticated",
					slog.String("trace_id", observability.TraceIDFromContext(r.Context())),
					slog.String("subject", identity.Subject),
					slog.String("roles", strings.Join(identity.Roles, "|")),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

func extractAPIKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key
	}
	authorization := strings.TrimSpace(r.Header.Get("Authorization"))
	if authorization == "" {
		return ""
	}
	const bearerPrefix = "Bearer "
	if strings.HasPrefix(authorization, bearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(authorization, bearerPrefix))
	}
	return ""
}

func writeAuthError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  false,
		"trace_id":   observability.TraceIDFromContext(r.Context()),
	})
}
