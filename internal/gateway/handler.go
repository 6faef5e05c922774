package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Newbigfonsz/llm-gateway/internal/adapter"
	"github.com/Newbigfonsz/llm-gateway/internal/auth"
	"github.com/Newbigfonsz/llm-gateway/internal/backend"
	"github.com/Newbigfonsz/llm-gateway/internal/billing"
	"github.com/Newbigfonsz/llm-gateway/internal/engine"
	"github.com/Newbigfonsz/llm-gateway/internal/model"
	"github.com/Newbigfonsz/llm-gateway/internal/observability"
	"github.com/Newbigfonsz/llm-gateway/internal/ratelimit"
)

const (
	serviceName    = "llm-gateway"
	serviceVersion = "1.0.0"
	providerLabel  = "aws-bedrock"

	defaultMaxTokens   = 1024
	defaultTemperature = 0.7
	defaultUsageDays   = 30
)

// Handler drives one request through the pipeline: authenticated team
// (from middleware) -> rate-limit admission -> model resolution ->
// adapter selection -> invocation -> cost -> usage recording.
type Handler struct {
	registry *model.Registry
	engine   *engine.Engine
	limiter  *ratelimit.Limiter
	recorder *billing.Recorder
	tracer   trace.Tracer
	log      *slog.Logger
}

func NewHandler(registry *model.Registry, eng *engine.Engine, limiter *ratelimit.Limiter, recorder *billing.Recorder, tracer trace.Tracer, log *slog.Logger) *Handler {
	return &Handler{
		registry: registry,
		engine:   eng,
		limiter:  limiter,
		recorder: recorder,
		tracer:   tracer,
		log:      log,
	}
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   serviceVersion,
	})
}

func (h *Handler) HandleModels(w http.ResponseWriter, r *http.Request) {
	descriptors := h.registry.List()
	data := make([]map[string]any, 0, len(descriptors))
	for _, d := range descriptors {
		data = append(data, map[string]any{
			"id":          d.Alias,
			"object":      "model",
			"provider":    d.Provider,
			"description": d.Description,
			"pricing": map[string]float64{
				"input_per_1k":  d.PriceInputPer1K,
				"output_per_1k": d.PriceOutputPer1K,
			},
			"supports_streaming": d.SupportsStreaming,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"object": "list",
		"data":   data,
	})
}

func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	team := auth.GetTeam(ctx)
	if team == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized.")
		return
	}
	requestID := auth.GetRequestID(ctx)
	if requestID == "" {
		requestID = uuid.New().String()
	}

	var req adapter.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, span := h.tracer.Start(ctx, "gateway.chat")
	defer span.End()
	span.SetAttributes(
		attribute.String("team_id", team.ID),
		attribute.String("request_id", requestID),
		attribute.String("model", req.Model),
		attribute.Bool("stream", req.Stream),
	)

	if err := h.limiter.Admit(ctx, team.ID, team.RateLimitRPM); err != nil {
		var limited *ratelimit.LimitExceededError
		if errors.As(err, &limited) {
			observability.RateLimitRejectedTotal.WithLabelValues(team.ID).Inc()
			w.Header().Set("Retry-After", strconv.Itoa(limited.RetryAfter))
			writeJSON(w, http.StatusTooManyRequests, map[string]any{
				"error": map[string]any{
					"message":             "Rate limit exceeded. Please slow down.",
					"type":                "gateway_error",
					"code":                http.StatusTooManyRequests,
					"retry_after_seconds": limited.RetryAfter,
				},
			})
			return
		}
		writeError(w, http.StatusInternalServerError, "Rate limit check failed.")
		return
	}

	desc, err := h.registry.Resolve(req.Model)
	if err != nil {
		var unknown *model.UnknownModelError
		if errors.As(err, &unknown) {
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("Unknown model: %s. Use /v1/models to see available models.", unknown.Alias))
			return
		}
		writeError(w, http.StatusInternalServerError, "Model resolution failed.")
		return
	}

	ad, err := adapter.ForFamily(desc.Family)
	if err != nil {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Unsupported model provider for: %s", desc.BackendID))
		return
	}

	if req.MaxTokens <= 0 {
		req.MaxTokens = defaultMaxTokens
	}
	// An explicit temperature of 0 is valid input; only an absent field
	// gets the default.
	if req.Temperature == nil {
		temp := defaultTemperature
		req.Temperature = &temp
	}

	if req.Stream {
		h.streamChat(w, ctx, team, requestID, &req, desc, ad, start)
		return
	}

	resp, err := h.engine.Invoke(ctx, &req, desc, ad)
	if err != nil {
		h.writeBackendError(w, desc.Alias, err)
		return
	}

	latencyMs := time.Since(start).Milliseconds()
	cost := billing.Cost(resp.PromptTokens, resp.CompletionTokens, desc)
	h.recorder.Record(context.WithoutCancel(ctx), team.ID, requestID, desc.Alias,
		resp.PromptTokens, resp.CompletionTokens, cost, latencyMs)

	observability.RequestsTotal.WithLabelValues("200", desc.Alias).Inc()
	observability.RequestDuration.WithLabelValues(desc.Alias).Observe(time.Since(start).Seconds())
	observability.TokensTotal.WithLabelValues(desc.Alias, "input").Add(float64(resp.PromptTokens))
	observability.TokensTotal.WithLabelValues(desc.Alias, "output").Add(float64(resp.CompletionTokens))

	writeJSON(w, http.StatusOK, map[string]any{
		"id":      completionID(),
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   desc.Alias,
		"choices": []any{
			map[string]any{
				"index": 0,
				"message": map[string]string{
					"role":    "assistant",
					"content": resp.Text,
				},
				"finish_reason": resp.FinishReason,
			},
		},
		"usage": map[string]int{
			"prompt_tokens":     resp.PromptTokens,
			"completion_tokens": resp.CompletionTokens,
			"total_tokens":      resp.PromptTokens + resp.CompletionTokens,
		},
		"gateway_metadata": map[string]any{
			"team_id":          team.ID,
			"latency_ms":       latencyMs,
			"cost_usd":         cost.USD(),
			"provider":         providerLabel,
			"tokens_estimated": resp.TokensEstimated,
		},
	})
}

func (h *Handler) streamChat(w http.ResponseWriter, ctx context.Context, team *auth.Team, requestID string, req *adapter.ChatRequest, desc model.Descriptor, ad adapter.Adapter, start time.Time) {
	ch, err := h.engine.InvokeStream(ctx, req, desc, ad)
	if err != nil {
		if errors.Is(err, engine.ErrStreamingUnsupported) {
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("Model %s does not support streaming.", desc.Alias))
			return
		}
		h.writeBackendError(w, desc.Alias, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming unsupported by server.")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	observability.StreamingConnections.Inc()
	defer observability.StreamingConnections.Dec()

	var text strings.Builder
	var inputTokens, outputTokens int
	chunkID := completionID()

	for chunk := range ch {
		if chunk.Err != nil {
			payload, _ := json.Marshal(map[string]string{"error": chunk.Err.Error()})
			fmt.Fprintf(w, "event: error\ndata: %s\n\n", payload)
			flusher.Flush()
			break
		}
		if chunk.InputTokens > 0 {
			inputTokens = chunk.InputTokens
		}
		if chunk.OutputTokens > 0 {
			outputTokens = chunk.OutputTokens
		}
		if chunk.Terminal {
			payload, _ := json.Marshal(streamEvent(chunkID, desc.Alias, "", chunk.FinishReason))
			fmt.Fprintf(w, "data: %s\n\n", payload)
			fmt.Fprintf(w, "data: [DONE]\n\n")
			flusher.Flush()
			break
		}
		if chunk.Delta != "" {
			text.WriteString(chunk.Delta)
			payload, _ := json.Marshal(streamEvent(chunkID, desc.Alias, chunk.Delta, ""))
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}

	// Usage is recorded once per request, after the stream ends, from
	// counts accumulated across chunks. Each side is estimated
	// independently when the backend did not report it.
	estimated := false
	if inputTokens == 0 {
		inputTokens = adapter.EstimatePromptTokens(req)
		estimated = true
	}
	if outputTokens == 0 {
		outputTokens = adapter.EstimateTokens(text.String())
		estimated = true
	}
	latencyMs := time.Since(start).Milliseconds()
	cost := billing.Cost(inputTokens, outputTokens, desc)
	h.recorder.Record(context.WithoutCancel(ctx), team.ID, requestID, desc.Alias,
		inputTokens, outputTokens, cost, latencyMs)

	observability.RequestsTotal.WithLabelValues("200", desc.Alias).Inc()
	observability.RequestDuration.WithLabelValues(desc.Alias).Observe(time.Since(start).Seconds())
	observability.TokensTotal.WithLabelValues(desc.Alias, "input").Add(float64(inputTokens))
	observability.TokensTotal.WithLabelValues(desc.Alias, "output").Add(float64(outputTokens))

	h.log.Info("stream completed",
		"team_id", team.ID,
		"request_id", requestID,
		"model", desc.Alias,
		"input_tokens", inputTokens,
		"output_tokens", outputTokens,
		"tokens_estimated", estimated,
		"latency_ms", latencyMs,
	)
}

func (h *Handler) HandleUsage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	team := auth.GetTeam(ctx)
	if team == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized.")
		return
	}

	days := defaultUsageDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid 'days' parameter.")
			return
		}
		days = v
	}

	summary, daily, byModel, err := h.recorder.Usage(ctx, team.ID, days)
	if err != nil {
		h.log.Error("usage query failed", "team_id", team.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load usage.")
		return
	}

	now := time.Now().UTC()
	writeJSON(w, http.StatusOK, map[string]any{
		"team_id":   team.ID,
		"team_name": team.Name,
		"period": map[string]any{
			"days":  days,
			"start": now.AddDate(0, 0, -days).Format("2006-01-02"),
			"end":   now.Format("2006-01-02"),
		},
		"summary":  summary,
		"daily":    daily,
		"by_model": byModel,
	})
}

func (h *Handler) writeBackendError(w http.ResponseWriter, alias string, err error) {
	var rejected *backend.RejectedError
	switch {
	case errors.As(err, &rejected):
		observability.RequestsTotal.WithLabelValues("400", alias).Inc()
		writeError(w, http.StatusBadRequest, "Model rejected the request.")
	case errors.Is(err, backend.ErrThrottled):
		observability.RequestsTotal.WithLabelValues("503", alias).Inc()
		writeError(w, http.StatusServiceUnavailable, "Model is throttling requests. Try again shortly.")
	default:
		observability.RequestsTotal.WithLabelValues("503", alias).Inc()
		writeError(w, http.StatusServiceUnavailable, "Model invocation failed.")
	}
	h.log.Error("backend invocation failed", "model", alias, "error", err)
}

func streamEvent(id, alias, delta, finishReason string) map[string]any {
	choice := map[string]any{
		"index": 0,
		"delta": map[string]string{},
	}
	if delta != "" {
		choice["delta"] = map[string]string{"content": delta}
	}
	if finishReason != "" {
		choice["finish_reason"] = finishReason
	}
	return map[string]any{
		"id":      id,
		"object":  "chat.completion.chunk",
		"model":   alias,
		"choices": []any{choice},
	}
}

// completionID mints a gateway-scoped id; backend ids never leak into the
// response envelope.
func completionID() string {
	return "chatcmpl-" + strings.ReplaceAll(uuid.New().String(), "-", "")[:24]
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": message,
			"type":    "gateway_error",
			"code":    code,
		},
	})
}
