// Package engine orchestrates one model invocation: format the request
// for the model's family, call the backend, normalize the result.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Newbigfonsz/llm-gateway/internal/adapter"
	"github.com/Newbigfonsz/llm-gateway/internal/backend"
	"github.com/Newbigfonsz/llm-gateway/internal/model"
)

// ErrStreamingUnsupported fails a stream request before the backend is
// ever invoked.
var ErrStreamingUnsupported = errors.New("model does not support streaming")

type Engine struct {
	backend backend.Invoker
	log     *slog.Logger
}

func New(b backend.Invoker, log *slog.Logger) *Engine {
	return &Engine{backend: b, log: log}
}

// Invoke performs a synchronous completion. Backend errors surface as-is,
// already classified; the engine never retries on the caller's behalf.
func (e *Engine) Invoke(ctx context.Context, req *adapter.ChatRequest, desc model.Descriptor, ad adapter.Adapter) (*adapter.NormalizedResponse, error) {
	payload, err := ad.FormatRequest(req)
	if err != nil {
		return nil, fmt.Errorf("formatting %s request: %w", desc.Family, err)
	}

	raw, err := e.backend.Invoke(ctx, desc.BackendID, payload)
	if err != nil {
		return nil, err
	}

	resp, err := ad.ParseResponse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing %s response: %w", desc.Family, err)
	}

	// Each side is estimated independently: a backend may report prompt
	// tokens while omitting completion tokens, or the reverse.
	if resp.PromptTokens == 0 {
		resp.PromptTokens = adapter.EstimatePromptTokens(req)
		resp.TokensEstimated = true
	}
	if resp.CompletionTokens == 0 {
		resp.CompletionTokens = adapter.EstimateTokens(resp.Text)
		resp.TokensEstimated = true
	}
	if resp.FinishReason == "" {
		resp.FinishReason = "stop"
	}
	return resp, nil
}

// InvokeStream performs a streamed completion. Chunks are emitted in
// backend arrival order; the terminal chunk is emitted exactly once and
// always last, even if the backend signals completion more than once or
// reports usage after the stop event. Cancelling ctx stops backend
// consumption.
func (e *Engine) InvokeStream(ctx context.Context, req *adapter.ChatRequest, desc model.Descriptor, ad adapter.Adapter) (<-chan *adapter.StreamChunk, error) {
	if !desc.SupportsStreaming || !ad.SupportsStreaming() {
		return nil, ErrStreamingUnsupported
	}

	payload, err := ad.FormatRequest(req)
	if err != nil {
		return nil, fmt.Errorf("formatting %s request: %w", desc.Family, err)
	}

	events, err := e.backend.InvokeStream(ctx, desc.BackendID, payload)
	if err != nil {
		return nil, err
	}

	out := make(chan *adapter.StreamChunk)
	go func() {
		defer close(out)

		emit := func(chunk *adapter.StreamChunk) bool {
			select {
			case out <- chunk:
				return true
			case <-ctx.Done():
				return false
			}
		}

		var finishReason string
		var terminal *adapter.StreamChunk

		for ev := range events {
			if ev.Err != nil {
				emit(&adapter.StreamChunk{Err: ev.Err})
				return
			}
			chunk, err := ad.ParseStreamChunk(ev)
			if err != nil {
				e.log.Debug("skipping unparseable stream event", "family", desc.Family, "type", ev.Type, "error", err)
				continue
			}
			if chunk == nil {
				continue
			}
			if chunk.Err != nil {
				emit(chunk)
				return
			}
			if chunk.FinishReason != "" {
				finishReason = chunk.FinishReason
			}
			if chunk.Terminal {
				// Held back until the backend closes: some protocols
				// deliver the usage event after the stop event, and the
				// terminal chunk must be both last and unique.
				if terminal == nil {
					terminal = chunk
				}
				continue
			}
			if terminal != nil {
				// Post-stop chunks contribute token counts only.
				if chunk.InputTokens > 0 {
					terminal.InputTokens = chunk.InputTokens
				}
				if chunk.OutputTokens > 0 {
					terminal.OutputTokens = chunk.OutputTokens
				}
				continue
			}
			if !emit(chunk) {
				return
			}
		}

		if terminal == nil {
			// Backend closed without an explicit stop event.
			terminal = &adapter.StreamChunk{Terminal: true}
		}
		if terminal.FinishReason == "" {
			terminal.FinishReason = defaultFinish(finishReason)
		}
		emit(terminal)
	}()

	return out, nil
}

func defaultFinish(reason string) string {
	if reason == "" {
		return "stop"
	}
	return reason
}
