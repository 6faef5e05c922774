package backend

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// HTTPClient talks to a Bedrock-runtime-shaped HTTP service:
// POST {base}/model/{id}/invoke for synchronous calls and
// POST {base}/model/{id}/invoke-with-response-stream for SSE streams.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	log     *slog.Logger
}

func NewHTTPClient(baseURL, apiKey string, log *slog.Logger) *HTTPClient {
	settings := gobreaker.Settings{
		Name:        "bedrock",
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 120 * time.Second},
		breaker: gobreaker.NewCircuitBreaker(settings),
		log:     log,
	}
}

func (c *HTTPClient) Invoke(ctx context.Context, modelID string, payload []byte) ([]byte, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doInvoke(ctx, modelID, payload)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, fmt.Errorf("%w: circuit open", ErrUnavailable)
		}
		return nil, err
	}
	return result.([]byte), nil
}

func (c *HTTPClient) doInvoke(ctx context.Context, modelID string, payload []byte) ([]byte, error) {
	resp, err := c.post(ctx, modelID, "invoke", payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}
	return body, nil
}

func (c *HTTPClient) InvokeStream(ctx context.Context, modelID string, payload []byte) (<-chan Event, error) {
	if c.breaker.State() == gobreaker.StateOpen {
		return nil, fmt.Errorf("%w: circuit open", ErrUnavailable)
	}

	resp, err := c.post(ctx, modelID, "invoke-with-response-stream", payload)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrUnavailable, err)
		c.recordFailure(err)
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		err := classifyStatus(resp)
		resp.Body.Close()
		c.recordFailure(err)
		return nil, err
	}

	ch := make(chan Event)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		reader := bufio.NewReader(resp.Body)
		var currentEvent string
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				if err != io.EOF {
					select {
					case ch <- Event{Err: fmt.Errorf("%w: reading stream: %v", ErrUnavailable, err)}:
					case <-ctx.Done():
					}
				}
				return
			}

			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if strings.HasPrefix(line, "event: ") {
				currentEvent = strings.TrimPrefix(line, "event: ")
				continue
			}
			if strings.HasPrefix(line, "data: ") {
				data := strings.TrimPrefix(line, "data: ")
				select {
				case ch <- Event{Type: currentEvent, Data: []byte(data)}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}

func (c *HTTPClient) post(ctx context.Context, modelID, op string, payload []byte) (*http.Response, error) {
	u := fmt.Sprintf("%s/model/%s/%s", c.baseURL, url.PathEscape(modelID), op)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return c.client.Do(req)
}

// recordFailure feeds a stream setup failure into the breaker, which
// Execute-wrapped synchronous calls get for free.
func (c *HTTPClient) recordFailure(err error) {
	c.log.Warn("stream setup failed", "error", err)
	_, _ = c.breaker.Execute(func() (interface{}, error) {
		return nil, err
	})
}

func classifyStatus(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(body))
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrThrottled, msg)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &RejectedError{Status: resp.StatusCode, Message: msg}
	default:
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, msg)
	}
}
