// Package openai adapts the OpenAI Chat Completions API to the
// core.Capability interface. A task's prompt becomes a single-shot completion
// whose text is recorded as the task's result.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/hupe1980/actormesh/core"
)

// Options configure the OpenAI capability adapter.
// Fields mirror a subset of Chat Completion parameters intentionally kept
// minimal; extend via functional options without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	SystemPrompt        string
}

// Capability wraps the OpenAI Chat Completions API behind core.Capability.
type Capability struct {
	name   string
	client *openai.Client
	opts   Options
}

// New creates an OpenAI capability using the official client (credentials
// come from the environment).
func New(name string, optFns ...func(o *Options)) *Capability {
	client := openai.NewClient()
	return NewFromClient(name, &client, optFns...)
}

// NewFromClient creates an OpenAI capability from an existing client.
func NewFromClient(name string, client *openai.Client, optFns ...func(o *Options)) *Capability {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Capability{name: name, client: client, opts: opts}
}

// Name implements core.Capability.
func (c *Capability) Name() string { return c.name }

// Invoke implements core.Capability with a non-streaming completion.
func (c *Capability) Invoke(ctx context.Context, req core.CapabilityRequest) (*core.CapabilityResult, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if c.opts.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(c.opts.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               c.opts.Model,
		Temperature:         openai.Float(c.opts.Temperature),
		MaxCompletionTokens: openai.Int(c.opts.MaxCompletionTokens),
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned")
	}

	return &core.CapabilityResult{
		Text: resp.Choices[0].Message.Content,
		Data: map[string]any{
			"model":         resp.Model,
			"finish_reason": string(resp.Choices[0].FinishReason),
			"total_tokens":  resp.Usage.TotalTokens,
		},
	}, nil
}
