package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
)

type Middleware func(next http.Handler) http.Handler

type contextKey string

const (
	teamKey      contextKey = "team"
	requestIDKey contextKey = "request_id"
)

// NewMiddleware authenticates the x-api-key header and injects the team
// and a request ID into the request context.
func NewMiddleware(authenticator *Authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			requestID := uuid.New().String()
			ctx = context.WithValue(ctx, requestIDKey, requestID)
			w.Header().Set("X-Request-ID", requestID)

			team, err := authenticator.Authenticate(ctx, r.Header.Get("x-api-key"))
			if err != nil {
				switch {
				case errors.Is(err, ErrMissingKey):
					unauthorized(w, "Missing API key. Include x-api-key header.")
				case errors.Is(err, ErrInvalidKey):
					unauthorized(w, "Invalid API key.")
				default:
					writeJSONError(w, http.StatusInternalServerError, "Authentication error.")
				}
				return
			}

			ctx = context.WithValue(ctx, teamKey, team)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	writeJSONError(w, http.StatusUnauthorized, message)
}

func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": message,
			"type":    "gateway_error",
			"code":    code,
		},
	})
}

// Helpers to extract from context
func GetTeam(ctx context.Context) *Team {
	if t, ok := ctx.Value(teamKey).(*Team); ok {
		return t
	}
	return nil
}

func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// Helpers for testing
func WithTeam(ctx context.Context, team *Team) context.Context {
	return context.WithValue(ctx, teamKey, team)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}
