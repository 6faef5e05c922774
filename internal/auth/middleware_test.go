package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestMiddleware(t *testing.T) {
	key := "llm-0123456789abcdef0123456789abcdef"
	store := newFakeStore()
	store.records[HashKey(key)] = activeRecord(key)
	mw := NewMiddleware(NewAuthenticator(store, nil, 30*time.Second, testLogger()))

	var seenTeam *Team
	var seenRequestID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenTeam = GetTeam(r.Context())
		seenRequestID = GetRequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", nil)
	req.Header.Set("x-api-key", key)
	w := httptest.NewRecorder()
	mw(next).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if seenTeam == nil || seenTeam.ID != "team-a" {
		t.Errorf("Expected team-a in context, got %+v", seenTeam)
	}
	if seenRequestID == "" {
		t.Error("Expected a request ID in context")
	}
	if w.Header().Get("X-Request-ID") != seenRequestID {
		t.Error("X-Request-ID header should match the context request ID")
	}
}

func TestMiddlewareMissingKey(t *testing.T) {
	mw := NewMiddleware(NewAuthenticator(newFakeStore(), nil, 30*time.Second, testLogger()))
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler should not run without a key")
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", nil)
	w := httptest.NewRecorder()
	mw(next).ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON error body, got %q", ct)
	}
}

func TestMiddlewareInvalidKey(t *testing.T) {
	mw := NewMiddleware(NewAuthenticator(newFakeStore(), nil, 30*time.Second, testLogger()))
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler should not run with an unknown key")
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", nil)
	req.Header.Set("x-api-key", "llm-nope")
	w := httptest.NewRecorder()
	mw(next).ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Code)
	}
}
