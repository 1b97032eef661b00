package oracle

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicOracle is the production Completer, calling the Anthropic
// Messages API. The teacher's go.mod declared anthropic-sdk-go but never
// wired it to anything; this is its first use, filling the Completer role
// spec.md §6 describes as an injected collaborator.
type AnthropicOracle struct {
	client *anthropic.Client
	model  anthropic.Model
}

// NewAnthropicOracle builds an AnthropicOracle using apiKey and model
// (e.g. anthropic.ModelClaude3_5SonnetLatest).
func NewAnthropicOracle(apiKey string, model anthropic.Model) *AnthropicOracle {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicOracle{client: &client, model: model}
}

// Complete sends prompt as a single user message and returns the
// concatenated text of the response, honouring ctx cancellation per
// spec.md §6's cancel_token requirement.
func (a *AnthropicOracle) Complete(ctx context.Context, prompt string) (string, error) {
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic: completion failed: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		text += block.Text
	}
	if text == "" {
		return "", fmt.Errorf("anthropic: empty response content")
	}
	return text, nil
}
