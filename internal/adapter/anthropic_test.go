package adapter

import (
	"encoding/json"
	"testing"

	"github.com/Newbigfonsz/llm-gateway/internal/backend"
)

func TestAnthropicFormatRequest(t *testing.T) {
	a := &anthropicAdapter{}
	req := &ChatRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: "You are a helpful assistant."},
			{Role: RoleUser, Content: "hi"},
			{Role: RoleAssistant, Content: "hello"},
			{Role: RoleUser, Content: "how are you?"},
		},
		MaxTokens:   256,
		Temperature: floatPtr(0.5),
	}

	payload, err := a.FormatRequest(req)
	if err != nil {
		t.Fatalf("FormatRequest failed: %v", err)
	}

	var out anthropicRequest
	if err := json.Unmarshal(payload, &out); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if out.AnthropicVersion != anthropicVersion {
		t.Errorf("Expected version %s, got %s", anthropicVersion, out.AnthropicVersion)
	}
	if out.System != "You are a helpful assistant." {
		t.Errorf("Expected system prompt extracted, got %q", out.System)
	}
	if len(out.Messages) != 3 {
		t.Fatalf("Expected 3 turn messages after system extraction, got %d", len(out.Messages))
	}
	wantRoles := []string{"user", "assistant", "user"}
	for i, role := range wantRoles {
		if out.Messages[i].Role != role {
			t.Errorf("Message %d: expected role %s, got %s", i, role, out.Messages[i].Role)
		}
	}
	if out.MaxTokens != 256 {
		t.Errorf("Expected max_tokens 256, got %d", out.MaxTokens)
	}
	if out.Temperature != 0.5 {
		t.Errorf("Expected temperature 0.5, got %v", out.Temperature)
	}
}

func TestAnthropicFormatRequestZeroTemperature(t *testing.T) {
	a := &anthropicAdapter{}
	req := &ChatRequest{
		Messages:    []Message{{Role: RoleUser, Content: "hi"}},
		MaxTokens:   16,
		Temperature: floatPtr(0),
	}

	payload, err := a.FormatRequest(req)
	if err != nil {
		t.Fatalf("FormatRequest failed: %v", err)
	}
	var out anthropicRequest
	if err := json.Unmarshal(payload, &out); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if out.Temperature != 0 {
		t.Errorf("Explicit temperature 0 must reach the payload, got %v", out.Temperature)
	}
}

func TestAnthropicParseResponse(t *testing.T) {
	a := &anthropicAdapter{}
	raw := []byte(`{
		"id": "msg_123",
		"content": [{"type": "text", "text": "Hello there"}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 12, "output_tokens": 7}
	}`)

	resp, err := a.ParseResponse(raw)
	if err != nil {
		t.Fatalf("ParseResponse failed: %v", err)
	}
	if resp.Text != "Hello there" {
		t.Errorf("Expected 'Hello there', got %q", resp.Text)
	}
	if resp.PromptTokens != 12 || resp.CompletionTokens != 7 {
		t.Errorf("Expected tokens 12/7, got %d/%d", resp.PromptTokens, resp.CompletionTokens)
	}
	if resp.FinishReason != "stop" {
		t.Errorf("Expected finish reason 'stop', got %q", resp.FinishReason)
	}
}

func TestAnthropicParseResponse_MaxTokens(t *testing.T) {
	a := &anthropicAdapter{}
	raw := []byte(`{"id":"m","content":[{"type":"text","text":"x"}],"stop_reason":"max_tokens","usage":{"input_tokens":1,"output_tokens":2}}`)

	resp, err := a.ParseResponse(raw)
	if err != nil {
		t.Fatalf("ParseResponse failed: %v", err)
	}
	if resp.FinishReason != "length" {
		t.Errorf("Expected 'length', got %q", resp.FinishReason)
	}
}

func TestAnthropicParseResponse_NoContent(t *testing.T) {
	a := &anthropicAdapter{}
	if _, err := a.ParseResponse([]byte(`{"id":"m","content":[]}`)); err == nil {
		t.Error("Expected error for empty content")
	}
}

func TestAnthropicParseStreamChunk(t *testing.T) {
	a := &anthropicAdapter{}

	chunk, err := a.ParseStreamChunk(backend.Event{
		Type: "message_start",
		Data: []byte(`{"type":"message_start","message":{"usage":{"input_tokens":9}}}`),
	})
	if err != nil {
		t.Fatalf("message_start failed: %v", err)
	}
	if chunk.InputTokens != 9 {
		t.Errorf("Expected 9 input tokens, got %d", chunk.InputTokens)
	}

	chunk, err = a.ParseStreamChunk(backend.Event{
		Type: "content_block_delta",
		Data: []byte(`{"type":"content_block_delta","delta":{"type":"text_delta","text":"Hel"}}`),
	})
	if err != nil {
		t.Fatalf("content_block_delta failed: %v", err)
	}
	if chunk.Delta != "Hel" {
		t.Errorf("Expected delta 'Hel', got %q", chunk.Delta)
	}

	chunk, err = a.ParseStreamChunk(backend.Event{
		Type: "message_delta",
		Data: []byte(`{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":5}}`),
	})
	if err != nil {
		t.Fatalf("message_delta failed: %v", err)
	}
	if chunk.OutputTokens != 5 {
		t.Errorf("Expected 5 output tokens, got %d", chunk.OutputTokens)
	}
	if chunk.FinishReason != "stop" {
		t.Errorf("Expected finish reason 'stop', got %q", chunk.FinishReason)
	}

	chunk, err = a.ParseStreamChunk(backend.Event{Type: "message_stop", Data: []byte(`{"type":"message_stop"}`)})
	if err != nil {
		t.Fatalf("message_stop failed: %v", err)
	}
	if !chunk.Terminal {
		t.Error("Expected terminal chunk for message_stop")
	}

	chunk, err = a.ParseStreamChunk(backend.Event{Type: "ping", Data: []byte(`{}`)})
	if err != nil || chunk != nil {
		t.Errorf("Expected ping to be skipped, got chunk=%v err=%v", chunk, err)
	}
}
