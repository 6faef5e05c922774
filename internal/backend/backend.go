package backend

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel classifications for backend failures. The pipeline surfaces
// these without retrying; retries are a transport concern.
var (
	ErrThrottled   = errors.New("backend throttled")
	ErrUnavailable = errors.New("backend unavailable")
)

// RejectedError marks input the backend refused (malformed or unsupported).
type RejectedError struct {
	Status  int
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("backend rejected request (status %d): %s", e.Status, e.Message)
}

// Event is one unit of a backend response stream. Type carries the
// backend's event name; Data the raw JSON payload.
type Event struct {
	Type string
	Data []byte
	Err  error
}

// Invoker is the inference backend contract. Payloads are backend-native;
// translation to and from them is the adapters' job.
type Invoker interface {
	Invoke(ctx context.Context, modelID string, payload []byte) ([]byte, error)
	InvokeStream(ctx context.Context, modelID string, payload []byte) (<-chan Event, error)
}
