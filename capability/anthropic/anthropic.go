// Package anthropic adapts the Anthropic Claude Messages API to the
// core.Capability interface. A task's prompt becomes a single-shot completion
// whose text is recorded as the task's result.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hupe1980/actormesh/core"
)

// Options configures the Anthropic capability adapter (temperature, model id,
// max tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model        anthropic.Model
	Temperature  float64
	MaxTokens    int64
	APIKey       string
	SystemPrompt string
}

// Capability wraps the Anthropic Messages API behind core.Capability.
type Capability struct {
	name   string
	client *anthropic.Client
	opts   Options
}

// New creates an Anthropic capability using the official client.
func New(name string, optFns ...func(o *Options)) *Capability {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Capability{name: name, client: &client, opts: opts}
}

// NewFromClient creates an Anthropic capability from an existing client.
func NewFromClient(name string, client *anthropic.Client, optFns ...func(o *Options)) *Capability {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Capability{name: name, client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

// Name implements core.Capability.
func (c *Capability) Name() string { return c.name }

// Invoke implements core.Capability with a non-streaming message call.
func (c *Capability) Invoke(ctx context.Context, req core.CapabilityRequest) (*core.CapabilityResult, error) {
	params := anthropic.MessageNewParams{
		Model:       c.opts.Model,
		MaxTokens:   c.opts.MaxTokens,
		Temperature: anthropic.Float(c.opts.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if c.opts.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: c.opts.SystemPrompt}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic api error: %w", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.AsText().Text)
		}
	}

	return &core.CapabilityResult{
		Text: b.String(),
		Data: map[string]any{
			"model":         string(resp.Model),
			"stop_reason":   string(resp.StopReason),
			"output_tokens": resp.Usage.OutputTokens,
		},
	}, nil
}
