package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
)

// LLMClient is the interface for the text-completion oracle backing the
// classifier, synthesizer, judge, and refiner. The convergence algorithm is
// deterministic over this injected capability.
type LLMClient interface {
	// Complete sends a prompt and returns the response text.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// AnthropicLLMClient backs LLMClient with the Anthropic Messages API.
type AnthropicLLMClient struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
	log       *slog.Logger
}

// NewAnthropicLLMClient builds the Anthropic-backed client. Credentials come
// from the environment (ANTHROPIC_API_KEY), picked up by the SDK itself.
func NewAnthropicLLMClient(model string, maxTokens int64, log *slog.Logger) *AnthropicLLMClient {
	return &AnthropicLLMClient{
		client:    anthropic.NewClient(),
		model:     anthropic.Model(model),
		maxTokens: maxTokens,
		log:       log,
	}
}

// Complete runs one system+user exchange and returns the first text block
// of the reply.
func (c *AnthropicLLMClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	start := time.Now()

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Type: "text", Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		if c.log != nil {
			c.log.Error("oracle request failed", "model", c.model, "duration", time.Since(start), "error", err)
		}
		return "", fmt.Errorf("anthropic completion failed: %w", err)
	}
	if c.log != nil {
		c.log.Debug("oracle request completed", "model", c.model, "duration", time.Since(start), "stopReason", msg.StopReason)
	}

	for _, block := range msg.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}

	return "", fmt.Errorf("anthropic reply carried no text blocks")
}
