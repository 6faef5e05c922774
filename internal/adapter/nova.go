package adapter

import (
	"encoding/json"
	"fmt"

	"github.com/Newbigfonsz/llm-gateway/internal/backend"
	"github.com/Newbigfonsz/llm-gateway/internal/model"
)

// novaAdapter speaks the Nova converse schema: content wrapped in text
// blocks, generation knobs under "inferenceConfig".
type novaAdapter struct{}

type novaContentBlock struct {
	Text string `json:"text"`
}

type novaMessage struct {
	Role    string             `json:"role"`
	Content []novaContentBlock `json:"content"`
}

type novaInferenceConfig struct {
	MaxTokens   int     `json:"maxTokens"`
	Temperature float64 `json:"temperature"`
}

type novaRequest struct {
	System          []novaContentBlock  `json:"system,omitempty"`
	Messages        []novaMessage       `json:"messages"`
	InferenceConfig novaInferenceConfig `json:"inferenceConfig"`
}

type novaUsage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

type novaResponse struct {
	Output struct {
		Message novaMessage `json:"message"`
	} `json:"output"`
	StopReason string    `json:"stopReason"`
	Usage      novaUsage `json:"usage"`
}

type novaStreamEvent struct {
	Delta struct {
		Text string `json:"text"`
	} `json:"delta"`
	StopReason string    `json:"stopReason"`
	Usage      novaUsage `json:"usage"`
	Message    string    `json:"message"`
}

func (n *novaAdapter) Family() model.Family    { return model.FamilyNova }
func (n *novaAdapter) SupportsStreaming() bool { return true }

func (n *novaAdapter) FormatRequest(req *ChatRequest) ([]byte, error) {
	out := novaRequest{
		InferenceConfig: novaInferenceConfig{
			MaxTokens:   req.MaxTokens,
			Temperature: req.temperature(),
		},
	}
	for _, m := range req.Messages {
		if m.Role == RoleSystem {
			out.System = append(out.System, novaContentBlock{Text: m.Content})
			continue
		}
		out.Messages = append(out.Messages, novaMessage{
			Role:    m.Role,
			Content: []novaContentBlock{{Text: m.Content}},
		})
	}
	return json.Marshal(out)
}

func (n *novaAdapter) ParseResponse(raw []byte) (*NormalizedResponse, error) {
	var resp novaResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decoding nova response: %w", err)
	}
	if len(resp.Output.Message.Content) == 0 {
		return nil, fmt.Errorf("nova response has no content")
	}
	return &NormalizedResponse{
		Text:             resp.Output.Message.Content[0].Text,
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
		FinishReason:     novaFinishReason(resp.StopReason),
	}, nil
}

func (n *novaAdapter) ParseStreamChunk(ev backend.Event) (*StreamChunk, error) {
	switch ev.Type {
	case "contentBlockDelta":
		var e novaStreamEvent
		if err := json.Unmarshal(ev.Data, &e); err != nil {
			return nil, fmt.Errorf("decoding contentBlockDelta: %w", err)
		}
		return &StreamChunk{Delta: e.Delta.Text}, nil
	case "metadata":
		var e novaStreamEvent
		if err := json.Unmarshal(ev.Data, &e); err != nil {
			return nil, fmt.Errorf("decoding metadata: %w", err)
		}
		return &StreamChunk{
			InputTokens:  e.Usage.InputTokens,
			OutputTokens: e.Usage.OutputTokens,
		}, nil
	case "messageStop":
		var e novaStreamEvent
		if err := json.Unmarshal(ev.Data, &e); err != nil {
			return nil, fmt.Errorf("decoding messageStop: %w", err)
		}
		return &StreamChunk{Terminal: true, FinishReason: novaFinishReason(e.StopReason)}, nil
	case "error":
		var e novaStreamEvent
		if err := json.Unmarshal(ev.Data, &e); err != nil {
			return &StreamChunk{Err: fmt.Errorf("nova stream error")}, nil
		}
		return &StreamChunk{Err: fmt.Errorf("nova stream error: %s", e.Message)}, nil
	default:
		// messageStart, contentBlockStart, contentBlockStop
		return nil, nil
	}
}

func novaFinishReason(stopReason string) string {
	switch stopReason {
	case "end_turn":
		return "stop"
	case "max_tokens":
		return "length"
	default:
		return stopReason
	}
}
