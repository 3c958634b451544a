package llm

import (
	"context"
	"errors"
	"strings"
)

// ErrEmptyCompletion is returned when the model produced no text.
var ErrEmptyCompletion = errors.New("llm: empty completion")

// Complete sends a system and user prompt and returns the trimmed reply.
func Complete(ctx context.Context, c Completer, system, user string) (string, error) {
	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: system,
		Messages:     []Message{{Role: RoleUser, Content: user}},
	})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

// ChatMessages returns the system prompt, when set, followed by req.Messages.
func ChatMessages(req CompletionRequest) []Message {
	msgs := make([]Message, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: req.SystemPrompt})
	}
	return append(msgs, req.Messages...)
}
