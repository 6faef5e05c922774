package adapter

import (
	"encoding/json"
	"fmt"

	"github.com/Newbigfonsz/llm-gateway/internal/backend"
	"github.com/Newbigfonsz/llm-gateway/internal/model"
)

const anthropicVersion = "bedrock-2023-05-31"

// anthropicAdapter speaks the Anthropic messages schema: a system prompt
// lifted to a top-level field, alternating user/assistant turns under
// "messages".
type anthropicAdapter struct{}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	Temperature      float64            `json:"temperature"`
	System           string             `json:"system,omitempty"`
	Messages         []anthropicMessage `json:"messages"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicResponse struct {
	Content    []anthropicContent `json:"content"`
	StopReason string             `json:"stop_reason"`
	Usage      anthropicUsage     `json:"usage"`
}

type anthropicStreamEvent struct {
	Type    string `json:"type"`
	Message struct {
		Usage anthropicUsage `json:"usage"`
	} `json:"message"`
	Delta struct {
		Type       string `json:"type"`
		Text       string `json:"text"`
		StopReason string `json:"stop_reason"`
	} `json:"delta"`
	Usage anthropicUsage `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (a *anthropicAdapter) Family() model.Family    { return model.FamilyAnthropic }
func (a *anthropicAdapter) SupportsStreaming() bool { return true }

func (a *anthropicAdapter) FormatRequest(req *ChatRequest) ([]byte, error) {
	out := anthropicRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        req.MaxTokens,
		Temperature:      req.temperature(),
	}
	for _, m := range req.Messages {
		if m.Role == RoleSystem {
			out.System = m.Content
			continue
		}
		out.Messages = append(out.Messages, anthropicMessage{Role: m.Role, Content: m.Content})
	}
	return json.Marshal(out)
}

func (a *anthropicAdapter) ParseResponse(raw []byte) (*NormalizedResponse, error) {
	var resp anthropicResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decoding anthropic response: %w", err)
	}
	if len(resp.Content) == 0 {
		return nil, fmt.Errorf("anthropic response has no content")
	}
	return &NormalizedResponse{
		Text:             resp.Content[0].Text,
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
		FinishReason:     anthropicFinishReason(resp.StopReason),
	}, nil
}

func (a *anthropicAdapter) ParseStreamChunk(ev backend.Event) (*StreamChunk, error) {
	switch ev.Type {
	case "message_start":
		var e anthropicStreamEvent
		if err := json.Unmarshal(ev.Data, &e); err != nil {
			return nil, fmt.Errorf("decoding message_start: %w", err)
		}
		return &StreamChunk{InputTokens: e.Message.Usage.InputTokens}, nil
	case "content_block_delta":
		var e anthropicStreamEvent
		if err := json.Unmarshal(ev.Data, &e); err != nil {
			return nil, fmt.Errorf("decoding content_block_delta: %w", err)
		}
		if e.Delta.Type != "text_delta" {
			return nil, nil
		}
		return &StreamChunk{Delta: e.Delta.Text}, nil
	case "message_delta":
		var e anthropicStreamEvent
		if err := json.Unmarshal(ev.Data, &e); err != nil {
			return nil, fmt.Errorf("decoding message_delta: %w", err)
		}
		return &StreamChunk{
			OutputTokens: e.Usage.OutputTokens,
			FinishReason: anthropicFinishReason(e.Delta.StopReason),
		}, nil
	case "message_stop":
		return &StreamChunk{Terminal: true}, nil
	case "error":
		var e anthropicStreamEvent
		if err := json.Unmarshal(ev.Data, &e); err != nil || e.Error == nil {
			return &StreamChunk{Err: fmt.Errorf("anthropic stream error")}, nil
		}
		return &StreamChunk{Err: fmt.Errorf("anthropic stream error: %s", e.Error.Message)}, nil
	default:
		// ping, content_block_start, content_block_stop
		return nil, nil
	}
}

func anthropicFinishReason(stopReason string) string {
	switch stopReason {
	case "end_turn", "stop_sequence":
		return "stop"
	case "max_tokens":
		return "length"
	default:
		return stopReason
	}
}
