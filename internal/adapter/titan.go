package adapter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Newbigfonsz/llm-gateway/internal/backend"
	"github.com/Newbigfonsz/llm-gateway/internal/model"
)

// titanAdapter flattens the conversation into a single marked-up prompt.
// Titan does not stream through this gateway.
type titanAdapter struct{}

type titanGenerationConfig struct {
	MaxTokenCount int     `json:"maxTokenCount"`
	Temperature   float64 `json:"temperature"`
	TopP          float64 `json:"topP"`
}

type titanRequest struct {
	InputText            string                `json:"inputText"`
	TextGenerationConfig titanGenerationConfig `json:"textGenerationConfig"`
}

type titanResult struct {
	OutputText       string `json:"outputText"`
	TokenCount       int    `json:"tokenCount"`
	CompletionReason string `json:"completionReason"`
}

type titanResponse struct {
	InputTextTokenCount int           `json:"inputTextTokenCount"`
	Results             []titanResult `json:"results"`
}

func (t *titanAdapter) Family() model.Family    { return model.FamilyTitan }
func (t *titanAdapter) SupportsStreaming() bool { return false }

func (t *titanAdapter) FormatRequest(req *ChatRequest) ([]byte, error) {
	out := titanRequest{
		InputText: flattenPrompt(req.Messages),
		TextGenerationConfig: titanGenerationConfig{
			MaxTokenCount: req.MaxTokens,
			Temperature:   req.temperature(),
			TopP:          0.9,
		},
	}
	return json.Marshal(out)
}

// flattenPrompt preserves message order with User:/Assistant: markers;
// system content is prepended.
func flattenPrompt(messages []Message) string {
	var b strings.Builder
	var system string
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = m.Content
		case RoleUser:
			b.WriteString("User: ")
			b.WriteString(m.Content)
			b.WriteString("\n")
		case RoleAssistant:
			b.WriteString("Assistant: ")
			b.WriteString(m.Content)
			b.WriteString("\n")
		}
	}
	prompt := b.String() + "Assistant:"
	if system != "" {
		prompt = system + "\n\n" + prompt
	}
	return prompt
}

func (t *titanAdapter) ParseResponse(raw []byte) (*NormalizedResponse, error) {
	var resp titanResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decoding titan response: %w", err)
	}
	if len(resp.Results) == 0 {
		return nil, fmt.Errorf("titan response has no results")
	}
	result := resp.Results[0]
	// Token counts may be absent; zeros trigger the engine's estimation
	// fallback.
	return &NormalizedResponse{
		Text:             result.OutputText,
		PromptTokens:     resp.InputTextTokenCount,
		CompletionTokens: result.TokenCount,
		FinishReason:     titanFinishReason(result.CompletionReason),
	}, nil
}

func (t *titanAdapter) ParseStreamChunk(ev backend.Event) (*StreamChunk, error) {
	return nil, fmt.Errorf("titan does not support streaming")
}

func titanFinishReason(completionReason string) string {
	switch completionReason {
	case "FINISH", "FINISHED":
		return "stop"
	case "LENGTH":
		return "length"
	default:
		return strings.ToLower(completionReason)
	}
}
