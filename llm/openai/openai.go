// Package openai is the llm dialect for OpenAI-compatible chat completion
// APIs such as DeepInfra. Importing it registers the "openai" dialect.
package openai

import (
	"encoding/json"
	"fmt"

	"github.com/kbukum/captiongen/llm"
)

// Name is the registered dialect name.
const Name = "openai"

func init() {
	llm.RegisterDialect(Name, Dialect{})
}

// Dialect maps llm requests to /chat/completions.
type Dialect struct{}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []llm.Message `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      llm.Message `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage llm.Usage `json:"usage"`
}

// Name returns the dialect name.
func (Dialect) Name() string { return Name }

// ChatPath returns the completion endpoint.
func (Dialect) ChatPath() string { return "/chat/completions" }

// HealthPath is empty; listing models costs a billed call on some hosts.
func (Dialect) HealthPath() string { return "" }

// BuildRequest maps req to a non-streaming chat completion body.
func (Dialect) BuildRequest(req llm.CompletionRequest) (any, error) {
	msgs := llm.ChatMessages(req)
	if len(msgs) == 0 {
		return nil, fmt.Errorf("openai: no messages")
	}
	return chatRequest{
		Model:       req.Model,
		Messages:    msgs,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
	}, nil
}

// ParseResponse takes the first choice.
func (Dialect) ParseResponse(body []byte) (*llm.CompletionResponse, error) {
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("openai: decode: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: response has no choices")
	}
	c := resp.Choices[0]
	return &llm.CompletionResponse{
		Content:      c.Message.Content,
		Model:        resp.Model,
		FinishReason: c.FinishReason,
		Usage:        resp.Usage,
	}, nil
}
