// Package adapter translates the gateway's chat schema to and from each
// backend model family's native request/response format.
package adapter

import (
	"fmt"
	"math"
	"strings"

	"github.com/Newbigfonsz/llm-gateway/internal/backend"
	"github.com/Newbigfonsz/llm-gateway/internal/model"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens"`
	// Temperature is a pointer so an explicit 0 (greedy decoding) is
	// distinguishable from an absent field, which the handler defaults.
	Temperature *float64 `json:"temperature"`
	Stream      bool     `json:"stream"`
}

func (r *ChatRequest) temperature() float64 {
	if r.Temperature == nil {
		return 0
	}
	return *r.Temperature
}

// Validate enforces the request invariants: at least one message, every
// role from the allowed set.
func (r *ChatRequest) Validate() error {
	if len(r.Messages) == 0 {
		return fmt.Errorf("messages array is required")
	}
	for i, m := range r.Messages {
		switch m.Role {
		case RoleSystem, RoleUser, RoleAssistant:
		case "":
			return fmt.Errorf("message at index %d missing required field: role", i)
		default:
			return fmt.Errorf("invalid role at index %d: %s", i, m.Role)
		}
	}
	return nil
}

// NormalizedResponse is the provider-independent result of one
// non-streaming invocation.
type NormalizedResponse struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	FinishReason     string
	TokensEstimated  bool
}

// StreamChunk is the provider-independent unit of a streamed response.
// Token counts are filled on the chunks where the backend reports them.
type StreamChunk struct {
	Delta        string
	FinishReason string
	Terminal     bool
	InputTokens  int
	OutputTokens int
	Err          error
}

// Adapter is implemented once per backend family. FormatRequest and
// ParseResponse must round-trip message order and role semantics exactly.
type Adapter interface {
	Family() model.Family
	SupportsStreaming() bool
	FormatRequest(req *ChatRequest) ([]byte, error)
	ParseResponse(raw []byte) (*NormalizedResponse, error)
	// ParseStreamChunk maps one backend event to a chunk. A nil chunk with
	// nil error means the event carries nothing for the caller.
	ParseStreamChunk(ev backend.Event) (*StreamChunk, error)
}

// ForFamily dispatches over the closed set of supported families.
func ForFamily(f model.Family) (Adapter, error) {
	switch f {
	case model.FamilyAnthropic:
		return &anthropicAdapter{}, nil
	case model.FamilyNova:
		return &novaAdapter{}, nil
	case model.FamilyTitan:
		return &titanAdapter{}, nil
	default:
		return nil, fmt.Errorf("unsupported model family: %s", f)
	}
}

// EstimateTokens approximates a token count when the backend omits usage
// data: whitespace-split words at ~1.3 tokens per word, rounded up.
func EstimateTokens(text string) int {
	words := len(strings.Fields(text))
	return int(math.Ceil(float64(words) * 1.3))
}

// EstimatePromptTokens sums the estimate over all message contents.
func EstimatePromptTokens(req *ChatRequest) int {
	total := 0
	for _, m := range req.Messages {
		total += EstimateTokens(m.Content)
	}
	return total
}
