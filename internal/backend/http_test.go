package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInvoke(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "secret", testLogger())
	body, err := c.Invoke(context.Background(), "anthropic.claude-3-haiku-20240307-v1:0", []byte(`{}`))
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if string(body) != `{"ok": true}` {
		t.Errorf("Unexpected body %q", body)
	}
	if gotPath != "/model/anthropic.claude-3-haiku-20240307-v1:0/invoke" {
		t.Errorf("Unexpected path %q", gotPath)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Unexpected Authorization header %q", gotAuth)
	}
}

func TestInvokeClassifiesStatus(t *testing.T) {
	tests := []struct {
		status int
		check  func(error) bool
		name   string
	}{
		{http.StatusTooManyRequests, func(err error) bool { return errors.Is(err, ErrThrottled) }, "throttled"},
		{http.StatusBadRequest, func(err error) bool {
			var rejected *RejectedError
			return errors.As(err, &rejected) && rejected.Status == http.StatusBadRequest
		}, "rejected"},
		{http.StatusInternalServerError, func(err error) bool { return errors.Is(err, ErrUnavailable) }, "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "backend says no", tt.status)
			}))
			defer srv.Close()

			c := NewHTTPClient(srv.URL, "", testLogger())
			_, err := c.Invoke(context.Background(), "m", []byte(`{}`))
			if err == nil || !tt.check(err) {
				t.Errorf("Status %d not classified as expected, got %v", tt.status, err)
			}
		})
	}
}

func TestInvokeCircuitOpens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", testLogger())
	for i := 0; i < 3; i++ {
		if _, err := c.Invoke(context.Background(), "m", []byte(`{}`)); err == nil {
			t.Fatalf("Request %d should have failed", i+1)
		}
	}

	// The breaker trips after three consecutive failures; the next call
	// fails without reaching the backend.
	_, err := c.Invoke(context.Background(), "m", []byte(`{}`))
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable from open circuit, got %v", err)
	}

	if _, err := c.InvokeStream(context.Background(), "m", []byte(`{}`)); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Expected stream setup to fail while the circuit is open, got %v", err)
	}
}

func TestInvokeStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/model/m/invoke-with-response-stream" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: message_start\ndata: {\"a\":1}\n\n")
		fmt.Fprint(w, "event: content_block_delta\ndata: {\"b\":2}\n\n")
		fmt.Fprint(w, "event: message_stop\ndata: {}\n\n")
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", testLogger())
	ch, err := c.InvokeStream(context.Background(), "m", []byte(`{}`))
	if err != nil {
		t.Fatalf("InvokeStream failed: %v", err)
	}

	var events []Event
	for ev := range ch {
		if ev.Err != nil {
			t.Fatalf("Unexpected stream error: %v", ev.Err)
		}
		events = append(events, ev)
	}

	if len(events) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(events))
	}
	if events[0].Type != "message_start" || string(events[0].Data) != `{"a":1}` {
		t.Errorf("Unexpected first event: %+v", events[0])
	}
	if events[2].Type != "message_stop" {
		t.Errorf("Expected message_stop last, got %q", events[2].Type)
	}
}

func TestInvokeStreamRejectedSetup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad model", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", testLogger())
	_, err := c.InvokeStream(context.Background(), "m", []byte(`{}`))
	var rejected *RejectedError
	if !errors.As(err, &rejected) {
		t.Errorf("Expected RejectedError, got %v", err)
	}
}
